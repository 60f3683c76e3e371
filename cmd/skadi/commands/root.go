package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath  string
	circuitPath string
	logLevel    string
	jsonOutput  bool
	eventsLevel string
	eventTypes  []string
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "skadi",
		Short: "Skadi - verified quantum circuit generation",
		Long: `Skadi turns natural-language descriptions into verified quantum circuit
programs and reworks them with deterministic transforms.

Features:
  - Program synthesis with a draft, verify and retry loop
  - Knowledge augmentation from a concept base and cached API docs
  - Named transforms and optimization levels
  - Resource analysis, comparison and circuit policies
  - Natural-language rewriting of existing circuits`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "settings file (.yaml, .json or .cue)")
	rootCmd.PersistentFlags().StringVarP(&circuitPath, "file", "f", "", "circuit file (default from settings, circuit.py)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&eventsLevel, "events", "", "print pipeline events at or above this level (info, warning, error) to stderr")
	rootCmd.PersistentFlags().StringSliceVar(&eventTypes, "event-types", nil, "only print these event types, e.g. transform.applied")

	rootCmd.AddCommand(newGenerateCommand())
	rootCmd.AddCommand(newTransformCommand())
	rootCmd.AddCommand(newOptimizeCommand())
	rootCmd.AddCommand(newAnalyzeCommand())
	rootCmd.AddCommand(newRewriteCommand())
	rootCmd.AddCommand(newKnowledgeCommand())
	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}
