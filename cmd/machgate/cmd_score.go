package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"machgate/internal/entropy"
)

var (
	scoreJSON  bool
	scoreFile  string
	scoreWatch bool
	scoreLive  bool
)

var scoreCmd = &cobra.Command{
	Use:   "score [objective]",
	Short: "Score an objective with the MACH Entropy Algorithm",
	Long: `Computes the four entropy vectors and the composite score for an objective.
No oracle or network access is needed.

Examples:
  machgate score "Reduce p95 latency to 200ms in src/api/auth.ts using Redis"
  machgate score --file brief.md --watch
  machgate score -i
  echo "Build a thing" | machgate score --json -`,
	RunE: runScore,
}

func init() {
	scoreCmd.Flags().BoolVar(&scoreJSON, "json", false, "Print the result as JSON")
	scoreCmd.Flags().StringVarP(&scoreFile, "file", "f", "", "Read the objective from a file")
	scoreCmd.Flags().BoolVar(&scoreWatch, "watch", false, "Rescore --file whenever it changes")
	scoreCmd.Flags().BoolVarP(&scoreLive, "interactive", "i", false, "Type the objective and watch the score update live")
}

func scorer() *entropy.Scorer {
	return entropy.NewScorer(cfg.Entropy)
}

func runScore(cmd *cobra.Command, args []string) error {
	s := scorer()
	out := cmd.OutOrStdout()

	if scoreLive {
		ctx, cancel := commandContext()
		defer cancel()
		_, r, ok, err := runLiveScore(ctx, s, cmd.InOrStdin(), cmd.ErrOrStderr())
		if err != nil || !ok {
			return err
		}
		fmt.Fprintln(out, formatScore(r, scoreJSON))
		return nil
	}

	if scoreWatch {
		if scoreFile == "" {
			return fmt.Errorf("--watch requires --file")
		}
		ctx, cancel := commandContext()
		defer cancel()
		logger.Info("Watching brief", zap.String("file", scoreFile))
		return watchFile(ctx, scoreFile, func(text string) {
			fmt.Fprintln(out, formatScore(s.Calculate(text), scoreJSON))
		})
	}

	text, err := readObjective(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, formatScore(s.Calculate(text), scoreJSON))
	return nil
}

// readObjective takes the objective from --file, "-" (stdin) or the args.
func readObjective(stdin io.Reader, args []string) (string, error) {
	switch {
	case scoreFile != "":
		data, err := os.ReadFile(scoreFile)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", scoreFile, err)
		}
		return string(data), nil
	case len(args) == 1 && args[0] == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	default:
		return "", fmt.Errorf("objective required (argument, --file or -)")
	}
}

func formatScore(r entropy.Result, asJSON bool) string {
	if !asJSON {
		return renderScore(r)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(data)
}
