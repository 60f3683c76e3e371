package commands

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/skadi/skadi/pkg/circuit"
	"github.com/skadi/skadi/pkg/optimize"
	"github.com/spf13/cobra"
)

func newOptimizeCommand() *cobra.Command {
	var (
		level   string
		passes  int
		custom  []string
		gateSet []string
		compare bool
		report  bool
		save    bool
	)

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Optimize the circuit file",
		Long: `Run an optimization level over the circuit in the circuit file.

Built-in levels:
  - basic: cancel_inverses
  - default: commute_controlled, cancel_inverses, merge_rotations
  - aggressive: default followed by simplify

Further levels can be defined in the settings file under
optimization.levels.`,
		Example: `  # Optimize with the default level
  skadi optimize

  # Two aggressive passes
  skadi optimize --level aggressive --passes 2

  # Compare the built-in levels without saving
  skadi optimize --compare

  # Optimize and decompose into a gate set
  skadi optimize --gate-set RX,RY,RZ,CNOT`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				opt, err := a.optimizer()
				if err != nil {
					return err
				}
				rep, err := a.loadCircuit(ctx)
				if err != nil {
					return err
				}

				if compare {
					return compareLevels(ctx, cmd, opt, rep)
				}

				opts := optimize.Options{Passes: passes, Custom: custom, GateSet: gateSet}
				out, err := opt.Optimize(ctx, rep, level, opts)
				if err != nil {
					return err
				}
				if err := reportChange(cmd, a, rep, out, save); err != nil {
					return err
				}
				if report && !jsonOutput {
					r, err := opt.Report(out)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), r.Summary)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&level, "level", "l", optimize.LevelDefault, "optimization level")
	cmd.Flags().IntVar(&passes, "passes", 1, "number of passes over the pipeline")
	cmd.Flags().StringSliceVar(&custom, "custom", nil, "run these transforms instead of a level")
	cmd.Flags().StringSliceVar(&gateSet, "gate-set", nil, "decompose the result into these gates")
	cmd.Flags().BoolVar(&compare, "compare", false, "compare the built-in levels")
	cmd.Flags().BoolVar(&report, "report", false, "print the optimization history summary")
	cmd.Flags().BoolVar(&save, "save", true, "write the result to the circuit file")

	return cmd
}

// levelResult is one row of a level comparison.
type levelResult struct {
	Level       string              `json:"level"`
	Operations  int                 `json:"operations"`
	Depth       int                 `json:"depth"`
	Improvement circuit.Improvement `json:"improvement"`
}

func compareLevels(ctx context.Context, cmd *cobra.Command, opt *optimize.Optimizer, rep *circuit.Representation) error {
	before, err := rep.Statistics(false)
	if err != nil {
		return err
	}
	results, err := opt.CompareLevels(ctx, rep)
	if err != nil {
		return err
	}

	rows := make([]levelResult, 0, len(results))
	for level, out := range results {
		after, err := out.Statistics(false)
		if err != nil {
			return err
		}
		rows = append(rows, levelResult{
			Level:       level,
			Operations:  after.NumOperations,
			Depth:       after.Depth,
			Improvement: circuit.CompareSummaries(before, after),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Operations != rows[j].Operations {
			return rows[i].Operations < rows[j].Operations
		}
		return rows[i].Level < rows[j].Level
	})

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), rows)
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "LEVEL\tOPERATIONS\tDEPTH\tREDUCTION\n")
	fmt.Fprintf(w, "(original)\t%d\t%d\t-\n", before.NumOperations, before.Depth)
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.1f%%\n", r.Level, r.Operations, r.Depth, r.Improvement.OperationsPercent)
	}
	return w.Flush()
}
