package commands

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/skadi/skadi/pkg/circuit"
	"github.com/skadi/skadi/pkg/transform"
	"github.com/spf13/cobra"
)

func newTransformCommand() *cobra.Command {
	var (
		params []string
		list   bool
		save   bool
	)

	cmd := &cobra.Command{
		Use:   "transform [name]",
		Short: "Apply a named transform to the circuit file",
		Long: `Apply a registered transform to the circuit in the circuit file.

Transforms rewrite the traced tape deterministically, for example:
  - cancel_inverses: remove adjacent inverse gate pairs
  - merge_rotations: merge adjacent rotations on the same wires
  - commute_controlled: move single-qubit gates through controls
  - decompose: rewrite gates into a target gate set
  - transpile: route two-qubit gates over a coupling map

Parameters are passed as key=value pairs.`,
		Example: `  # List the available transforms
  skadi transform --list

  # Cancel inverse pairs
  skadi transform cancel_inverses

  # Decompose into a gate set
  skadi transform decompose --param gate_set=RX,RY,RZ,CNOT

  # Route over a line coupling map
  skadi transform transpile --param coupling_map=0-1,1-2`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				eng := a.transforms()
				if list || len(args) == 0 {
					return listTransforms(cmd, eng)
				}

				p, err := parseParams(params)
				if err != nil {
					return err
				}
				rep, err := a.loadCircuit(ctx)
				if err != nil {
					return err
				}
				out, err := eng.Apply(ctx, rep, args[0], p)
				if err != nil {
					return err
				}
				return reportChange(cmd, a, rep, out, save)
			})
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "transform parameter as key=value (repeatable)")
	cmd.Flags().BoolVar(&list, "list", false, "list the available transforms")
	cmd.Flags().BoolVar(&save, "save", true, "write the result to the circuit file")

	return cmd
}

func listTransforms(cmd *cobra.Command, eng *transform.Engine) error {
	infos := make([]transform.Info, 0)
	for _, name := range eng.List() {
		info, err := eng.Info(name)
		if err != nil {
			return err
		}
		infos = append(infos, info)
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), infos)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPARAMS\tDESCRIPTION")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s\n", info.Name, strings.Join(info.Params, ","), info.Description)
	}
	return w.Flush()
}

// parseParams turns key=value pairs into transform parameters. Values stay
// strings; the transforms convert them.
func parseParams(pairs []string) (transform.Params, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	p := make(transform.Params, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q: expected key=value", pair)
		}
		p[key] = strings.TrimSpace(value)
	}
	return p, nil
}

// reportChange prints the effect of a transform or optimization and saves
// the result when asked.
func reportChange(cmd *cobra.Command, a *app, before, after *circuit.Representation, save bool) error {
	sb, err := before.Statistics(false)
	if err != nil {
		return err
	}
	sa, err := after.Statistics(false)
	if err != nil {
		return err
	}

	var path string
	if save {
		if after, err = materialize(after); err != nil {
			return err
		}
		if path, err = a.saveCircuit(after); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		v, err := viewOf(after, path, false)
		if err != nil {
			return err
		}
		return printJSON(out, v)
	}

	fmt.Fprintf(out, "%s\n\n", after.Description())
	printImprovement(out, circuit.CompareSummaries(sb, sa))
	diagram, err := after.Diagram(circuit.DefaultDrawOptions())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%s\n", diagram)
	if path != "" {
		fmt.Fprintf(out, "Saved to %s\n", path)
	}
	return nil
}

// materialize replaces the source of a transformed circuit with source
// emitted from its tape, so the saved file holds the transformed program.
func materialize(rep *circuit.Representation) (*circuit.Representation, error) {
	tape, err := rep.Trace(false)
	if err != nil {
		return nil, err
	}
	return rep.Clone(nil, circuit.EmitSource(tape)), nil
}
