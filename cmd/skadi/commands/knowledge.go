package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/skadi/skadi/pkg/knowledge"
	"github.com/skadi/skadi/pkg/stores"
	"github.com/spf13/cobra"
)

func newKnowledgeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Knowledge base and documentation cache",
		Long: `Inspect and fill the knowledge used to augment synthesis prompts.

Knowledge comes from two providers:
  - pennylane_kb: the built-in concept and pattern base
  - context7: cached API documentation and ingested documents`,
	}

	cmd.AddCommand(newKnowledgeStatsCommand())
	cmd.AddCommand(newKnowledgeIngestCommand())
	cmd.AddCommand(newKnowledgeSearchCommand())
	cmd.AddCommand(newKnowledgeClearCommand())

	return cmd
}

// statsView is the JSON form of the knowledge stats.
type statsView struct {
	Sources   []string                  `json:"sources_enabled"`
	MaxTokens int                       `json:"max_knowledge_tokens"`
	Cache     *stores.Stats             `json:"cache"`
	Retrieval *knowledge.RetrievalStats `json:"retrieval,omitempty"`
}

func newKnowledgeStatsCommand() *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge sources and cache contents",
		Example: `  # Show the cache contents
  skadi knowledge stats

  # Count the results each source returns for a query
  skadi knowledge stats --query "grover search"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				store, err := a.docStore(ctx)
				if err != nil {
					return err
				}
				stats, err := store.Stats(ctx)
				if err != nil {
					return err
				}
				view := statsView{Cache: stats}

				b, err := a.knowledgeBuilder(ctx)
				if err != nil {
					return err
				}
				if b != nil {
					view.Sources = b.Sources()
					view.MaxTokens = b.MaxTokens()
					if query != "" {
						rs, err := b.RetrievalStats(ctx, query)
						if err != nil {
							return err
						}
						view.Retrieval = &rs
					}
				}

				w := cmd.OutOrStdout()
				if jsonOutput {
					return printJSON(w, view)
				}
				if len(view.Sources) == 0 {
					fmt.Fprintln(w, "Knowledge: disabled")
				} else {
					fmt.Fprintf(w, "Knowledge sources: %s (budget %d tokens)\n", strings.Join(view.Sources, ", "), view.MaxTokens)
				}
				fmt.Fprintf(w, "Cached docs: %d of %d\n", stats.Docs, stats.MaxDocs)
				fmt.Fprintf(w, "Ingested chunks: %d from %d source(s)\n", stats.Chunks, stats.Sources)
				if view.Retrieval != nil {
					fmt.Fprintf(w, "\nResults for %q:\n", query)
					ids := make([]string, 0, len(view.Retrieval.Results))
					for id := range view.Retrieval.Results {
						ids = append(ids, id)
					}
					sort.Strings(ids)
					for _, id := range ids {
						fmt.Fprintf(w, "  %s: %d\n", id, view.Retrieval.Results[id])
					}
					for id, msg := range view.Retrieval.Errors {
						fmt.Fprintf(w, "  %s: error: %s\n", id, msg)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "count the results of each source for a query")

	return cmd
}

func newKnowledgeIngestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Split documents into searchable chunks",
		Long: `Ingest documentation files into the doc store. Markdown and Python
files are split on headings and definitions, other files on paragraphs.
Re-ingesting a file replaces its chunks.`,
		Example: `  # Ingest local notes
  skadi knowledge ingest docs/templates.md docs/noise.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				store, err := a.docStore(ctx)
				if err != nil {
					return err
				}
				docs, err := knowledge.NewDocsProvider(store, knowledge.DocsOptions{
					LibraryID: a.settings.Knowledge.LibraryID,
				}, a.tel)
				if err != nil {
					return err
				}

				var errs []error
				for _, path := range args {
					n, err := docs.IngestFile(ctx, path)
					if err != nil {
						errs = append(errs, fmt.Errorf("%s: %w", path, err))
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chunk(s)\n", path, n)
				}
				return errors.Join(errs...)
			})
		},
	}
	return cmd
}

func newKnowledgeSearchCommand() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search every knowledge source",
		Example: `  # Search for entanglement patterns
  skadi knowledge search "bell state entanglement" --top-k 3`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return run(cmd, func(ctx context.Context, a *app) error {
				b, err := a.knowledgeBuilder(ctx)
				if err != nil {
					return err
				}
				if b == nil {
					return errors.New("knowledge is disabled in the settings")
				}
				results, err := b.Search(ctx, query, topK)
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				if jsonOutput {
					return printJSON(w, results)
				}
				if len(results) == 0 {
					fmt.Fprintln(w, "No results")
					return nil
				}
				for i, r := range results {
					fmt.Fprintf(w, "%d. [%s] score %.2f\n%s\n\n", i+1, r.Source, r.Score, strings.TrimSpace(r.Content))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 5, "maximum number of results")

	return cmd
}

func newKnowledgeClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached doc",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				store, err := a.docStore(ctx)
				if err != nil {
					return err
				}
				n, err := store.ClearDocs(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached doc(s)\n", n)
				return nil
			})
		},
	}
}
