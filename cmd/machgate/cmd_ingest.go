package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"machgate/internal/github"
	"machgate/internal/store"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [repo]",
	Short: "Ingest a GitHub repository into the vector store",
	Long: `Fetches up to github.max_files prioritised source files plus the README,
chunks them and embeds them. A repository is ingested at most once.

Example:
  machgate ingest https://github.com/acme/api`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var (
	searchType string
	searchRepo string
	searchK    int
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Similarity search over ingested chunks",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show ingested repositories and oracle call statistics",
	RunE:  runStats,
}

func init() {
	searchCmd.Flags().StringVar(&searchType, "type", "", "Restrict to chunk type (code, doc, tribal)")
	searchCmd.Flags().StringVar(&searchRepo, "repo", "", "Restrict to a repository (owner/name or URL)")
	searchCmd.Flags().IntVarP(&searchK, "k", "k", 0, "Number of results (default: store.search_k)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Info("Ingesting repository", zap.String("repo", args[0]))
	res, err := a.ingester().IngestGitHubRepo(ctx, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if res.Skipped {
		fmt.Fprintf(out, "%s already ingested\n", res.Repo)
		return nil
	}
	fmt.Fprintf(out, "%s %s: %d files (%d failed), readme=%v, %d chunks\n",
		titleStyle.Render("Ingested"), res.Repo, res.Files, res.FailedFiles, res.Readme, res.Chunks)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	filter := &store.Filter{Type: store.ChunkType(searchType)}
	if searchRepo != "" {
		repo, err := github.ParseRepo(searchRepo)
		if err != nil {
			return err
		}
		filter.Repo = repo.String()
	}
	k := searchK
	if k <= 0 {
		k = cfg.Store.SearchK
	}

	chunks, err := a.vectors.SimilaritySearch(ctx, strings.Join(args, " "), k, filter)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(chunks) == 0 {
		fmt.Fprintln(out, dimStyle.Render("no matching chunks"))
		return nil
	}
	for i, c := range chunks {
		fmt.Fprintf(out, "%s %s %s\n", titleStyle.Render(fmt.Sprintf("#%d", i+1)),
			dimStyle.Render(fmt.Sprintf("[%s] %s", c.Metadata.Type, c.Metadata.Repo)), c.Metadata.FilePath)
		fmt.Fprintln(out, preview(c.Content, 6))
	}
	return nil
}

// preview returns the first n lines of s.
func preview(s string, n int) string {
	lines := strings.SplitN(strings.TrimRight(s, "\n"), "\n", n+1)
	if len(lines) > n {
		lines = append(lines[:n], dimStyle.Render("…"))
	}
	return strings.Join(lines, "\n")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	repos, err := a.vectors.Repos(ctx)
	if err != nil {
		return err
	}
	calls, err := a.journal.Stats(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderRepoStats(repos))
	fmt.Fprintln(out, renderOracleStats(calls))
	return nil
}
