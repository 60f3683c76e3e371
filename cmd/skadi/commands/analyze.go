package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/skadi/skadi/pkg/analysis"
	"github.com/skadi/skadi/pkg/circuit"
	"github.com/skadi/skadi/pkg/circuitfile"
	"github.com/skadi/skadi/pkg/policy"
	"github.com/spf13/cobra"
)

func newAnalyzeCommand() *cobra.Command {
	var (
		explain    bool
		noDiagram  bool
		noPolicies bool
		dot        bool
		compareTo  string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze the circuit file",
		Long: `Report the resources, complexity and gate breakdown of the circuit in
the circuit file, and evaluate the circuit policies.

With --explain the synthesis model describes what the circuit does.
With --compare the circuit is placed side by side with another file.
With --dot the operation dependency graph is printed in Graphviz DOT.`,
		Example: `  # Analyze the current circuit
  skadi analyze

  # Include a natural-language explanation
  skadi analyze --explain

  # Compare with another circuit file
  skadi analyze --compare ghz.py

  # Render the dependency graph with Graphviz
  skadi analyze --dot | dot -Tsvg > circuit.svg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				rep, err := a.loadCircuit(ctx)
				if err != nil {
					return err
				}

				if dot {
					tape, err := rep.Trace(false)
					if err != nil {
						return err
					}
					fmt.Fprint(cmd.OutOrStdout(), circuit.BuildDAG(tape.Operations).ToDOT())
					return nil
				}

				if compareTo != "" {
					v, err := a.verifier()
					if err != nil {
						return err
					}
					other, err := circuitfile.Load(ctx, compareTo, v)
					if err != nil {
						return err
					}
					names := [2]string{filepath.Base(a.circuitFile()), filepath.Base(compareTo)}
					cmp, err := analysis.Compare(rep, other, names)
					if err != nil {
						return err
					}
					if jsonOutput {
						return printJSON(cmd.OutOrStdout(), cmp)
					}
					printComparison(cmd.OutOrStdout(), cmp)
					return nil
				}

				an, err := a.analyzer(ctx, explain)
				if err != nil {
					return err
				}
				res, err := an.Analyze(ctx, rep, analysis.Options{
					Explanation:   explain,
					Visualization: !noDiagram,
					Policies:      !noPolicies,
				})
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), res)
				}
				printAnalysis(cmd.OutOrStdout(), res)
				if res.Policy != nil && !res.Policy.Allowed {
					return fmt.Errorf("circuit violates %d policy rule(s)", len(res.Policy.Violations))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&explain, "explain", false, "ask the synthesis model for an explanation")
	cmd.Flags().BoolVar(&noDiagram, "no-diagram", false, "omit the circuit diagram")
	cmd.Flags().BoolVar(&noPolicies, "no-policies", false, "skip policy evaluation")
	cmd.Flags().StringVar(&compareTo, "compare", "", "compare with another circuit file")
	cmd.Flags().BoolVar(&dot, "dot", false, "print the dependency graph in Graphviz DOT format")
	cmd.MarkFlagsMutuallyExclusive("dot", "compare")

	return cmd
}

func printAnalysis(w io.Writer, res *analysis.Analysis) {
	if res.Description != "" {
		fmt.Fprintf(w, "%s\n\n", res.Description)
	}
	printSummary(w, res.Summary)
	c := res.Complexity
	fmt.Fprintf(w, "\nComplexity: %s (%d entangling gates, %.2f operations per qubit)\n",
		c.Level, c.EntanglingGates, c.OperationsPerQubit)
	fmt.Fprintf(w, "Single-qubit gates: %d %s\n", res.Gates.SingleQubitCount, formatCounts(res.Gates.SingleQubitGates))
	fmt.Fprintf(w, "Multi-qubit gates:  %d %s\n", res.Gates.MultiQubitCount, formatCounts(res.Gates.MultiQubitGates))

	if res.Diagram != "" {
		fmt.Fprintf(w, "\n%s\n", res.Diagram)
	}
	if res.Explanation != "" {
		fmt.Fprintf(w, "\n%s\n", res.Explanation)
	}
	if res.ExplanationError != "" {
		fmt.Fprintf(w, "\nExplanation unavailable: %s\n", res.ExplanationError)
	}
	if res.Policy != nil {
		printPolicy(w, res.Policy)
	}
}

func printPolicy(w io.Writer, r *policy.Result) {
	fmt.Fprintln(w)
	if r.Allowed && len(r.Warnings) == 0 && len(r.Errors) == 0 {
		fmt.Fprintln(w, "Policies: all passed")
		return
	}
	for _, v := range r.Violations {
		fmt.Fprintf(w, "Policy %s [%s]: %s\n", v.Policy, v.Severity, v.Message)
	}
	for _, v := range r.Warnings {
		fmt.Fprintf(w, "Policy %s [%s]: %s\n", v.Policy, v.Severity, v.Message)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "Policy error: %s\n", e)
	}
}

func printComparison(w io.Writer, cmp analysis.Comparison) {
	fmt.Fprintf(w, "%-12s %12s %12s %8s\n", "", cmp.Names[0], cmp.Names[1], "diff")
	fmt.Fprintf(w, "%-12s %12d %12d %+8d\n", "Operations", cmp.First.Operations, cmp.Second.Operations, cmp.Differences.Operations)
	fmt.Fprintf(w, "%-12s %12d %12d %+8d\n", "Depth", cmp.First.Depth, cmp.Second.Depth, cmp.Differences.Depth)
	fmt.Fprintf(w, "%-12s %12d %12d %+8d\n", "Wires", cmp.First.Wires, cmp.Second.Wires, cmp.Differences.Wires)
}

func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%d", name, counts[name])
	}
	return "(" + strings.Join(parts, " ") + ")"
}
