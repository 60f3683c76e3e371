package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newGenerateCommand() *cobra.Command {
	var (
		withCode bool
		save     bool
	)

	cmd := &cobra.Command{
		Use:   "generate <description>",
		Short: "Generate a verified circuit from a description",
		Long: `Generate a circuit program from a natural-language description.

Each attempt is drafted by the synthesis model and verified:
  - Static checks for the device, decorator, function and measurement
  - Loading the program in an isolated interpreter
  - Tracing the circuit into a tape

Failures are fed back into the next attempt until the retry budget is
spent. The verified program is written to the circuit file.`,
		Example: `  # Generate a Bell state circuit
  skadi generate "Create a Bell state on two qubits"

  # Print the generated code without saving it
  skadi generate "3-qubit GHZ state" --with-code --save=false`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			description := strings.Join(args, " ")
			return run(cmd, func(ctx context.Context, a *app) error {
				orch, err := a.orchestrator(ctx)
				if err != nil {
					return err
				}
				res, err := orch.Run(ctx, description)
				if err != nil {
					return err
				}

				var path string
				if save {
					if path, err = a.saveCircuit(res.Circuit); err != nil {
						return err
					}
				}

				out := cmd.OutOrStdout()
				if jsonOutput {
					v, err := viewOf(res.Circuit, path, withCode)
					if err != nil {
						return err
					}
					return printJSON(out, v)
				}

				fmt.Fprintf(out, "Generated circuit %s in %d attempt(s)\n\n", res.Circuit.ID(), len(res.Attempts))
				if err := printCircuit(out, res.Circuit); err != nil {
					return err
				}
				if withCode {
					fmt.Fprintf(out, "\n%s\n", res.Source)
				}
				if path != "" {
					fmt.Fprintf(out, "Saved to %s\n", path)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&withCode, "with-code", false, "print the generated program")
	cmd.Flags().BoolVar(&save, "save", true, "write the program to the circuit file")

	return cmd
}
