package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/skadi/skadi/pkg/circuit"
	"github.com/skadi/skadi/pkg/circuitfile"
	"github.com/spf13/cobra"
)

func newWatchCommand() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reload and report the circuit file on every change",
		Long: `Watch the circuit file and print its statistics and diagram whenever it
is written. Edits that fail verification are reported and the previous
circuit stays current. Stop with Ctrl-C.`,
		Example: `  # Watch the default circuit file
  skadi watch

  # Watch another file
  skadi watch --file experiments/ghz.py`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				v, err := a.verifier()
				if err != nil {
					return err
				}
				w, err := circuitfile.NewWatcher(a.circuitFile(), v, debounce, a.tel)
				if err != nil {
					return err
				}
				defer w.Close()

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Watching %s\n", w.Path())
				return w.Run(ctx, func(rep *circuit.Representation, err error) {
					if err != nil {
						fmt.Fprintf(out, "\n[%s] rejected: %v\n", time.Now().Format(time.TimeOnly), err)
						return
					}
					fmt.Fprintf(out, "\n[%s] reloaded\n", time.Now().Format(time.TimeOnly))
					if err := printCircuit(out, rep); err != nil {
						fmt.Fprintf(out, "error: %v\n", err)
					}
				})
			})
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", circuitfile.DefaultDebounce, "quiet period before reloading")

	return cmd
}
