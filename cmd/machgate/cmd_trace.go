package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"machgate/internal/github"
)

var (
	traceRepo   string
	traceJSON   bool
	traceIngest bool
)

var traceCmd = &cobra.Command{
	Use:   "trace [objective]",
	Short: "Run a Mach-Trace collision audit without generating a plan",
	Long: `Retrieves code and doc fragments related to the objective and asks the
reasoning oracle whether the objective contradicts the existing system.
Failures degrade to CLEAN.

Example:
  machgate trace --repo acme/api "Replace Clerk with Auth0 sessions"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTrace,
}

func init() {
	traceCmd.Flags().StringVarP(&traceRepo, "repo", "r", "", "Repository to audit against (owner/name or URL)")
	traceCmd.Flags().BoolVar(&traceIngest, "ingest", true, "Ingest --repo first if it is not in the store")
	traceCmd.Flags().BoolVar(&traceJSON, "json", false, "Print the verdict as JSON")
}

func runTrace(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx, appOptions{needOracle: true})
	if err != nil {
		return err
	}
	defer a.Close()

	repoKey := ""
	if traceRepo != "" {
		repo, err := github.ParseRepo(traceRepo)
		if err != nil {
			return err
		}
		repoKey = repo.String()
		if traceIngest {
			if _, err := a.ingester().IngestGitHubRepo(ctx, traceRepo); err != nil {
				logger.Warn("Ingestion failed, auditing existing fragments", zap.Error(err))
			}
		}
	}

	verdict := a.auditor().TraceRepo(ctx, strings.Join(args, " "), repoKey)

	out := cmd.OutOrStdout()
	if traceJSON {
		data, err := json.MarshalIndent(verdict, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	fmt.Fprintln(out, renderTrace(verdict))
	return nil
}
