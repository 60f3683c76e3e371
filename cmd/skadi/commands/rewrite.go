package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/skadi/skadi/pkg/circuit"
	"github.com/skadi/skadi/pkg/generator"
	"github.com/spf13/cobra"
)

func newRewriteCommand() *cobra.Command {
	var (
		noKnowledge bool
		restructure bool
		simplify    bool
		withCode    bool
		save        bool
	)

	cmd := &cobra.Command{
		Use:   "rewrite [request]",
		Short: "Rewrite the circuit file from a natural-language request",
		Long: `Ask the synthesis model to modify the circuit in the circuit file.

The model sees the description, source and diagram of the current circuit.
The rewritten program is verified like a generated one; a rejected rewrite
leaves the circuit file untouched.`,
		Example: `  # Add a gate
  skadi rewrite "add a Hadamard on qubit 2 before measurement"

  # Let the model restructure the circuit
  skadi rewrite "use fewer CNOT gates" --restructure

  # Simplify without a request
  skadi rewrite --simplify`,
		Args: func(cmd *cobra.Command, args []string) error {
			if simplify {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			request := strings.Join(args, " ")
			return run(cmd, func(ctx context.Context, a *app) error {
				orch, err := a.orchestrator(ctx)
				if err != nil {
					return err
				}
				rep, err := a.loadCircuit(ctx)
				if err != nil {
					return err
				}

				rw := generator.NewRewriter(orch, a.tel)
				var out *circuit.Representation
				if simplify {
					out, err = rw.Simplify(ctx, rep)
				} else {
					out, err = rw.Rewrite(ctx, rep, request, generator.RewriteOptions{
						UseKnowledge:      !noKnowledge,
						PreserveStructure: !restructure,
					})
				}
				if err != nil {
					return err
				}

				var path string
				if save {
					if path, err = a.saveCircuit(out); err != nil {
						return err
					}
				}

				w := cmd.OutOrStdout()
				if jsonOutput {
					v, err := viewOf(out, path, withCode)
					if err != nil {
						return err
					}
					return printJSON(w, v)
				}
				fmt.Fprintf(w, "%s\n\n", out.Description())
				if err := printCircuit(w, out); err != nil {
					return err
				}
				if withCode {
					fmt.Fprintf(w, "\n%s\n", out.Source())
				}
				if path != "" {
					fmt.Fprintf(w, "Saved to %s\n", path)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&noKnowledge, "no-knowledge", false, "do not add retrieved knowledge to the prompt")
	cmd.Flags().BoolVar(&restructure, "restructure", false, "allow the model to restructure the circuit")
	cmd.Flags().BoolVar(&simplify, "simplify", false, "ask for a simpler equivalent circuit")
	cmd.Flags().BoolVar(&withCode, "with-code", false, "print the rewritten program")
	cmd.Flags().BoolVar(&save, "save", true, "write the result to the circuit file")

	return cmd
}
