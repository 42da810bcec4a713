package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"machgate/internal/mission"
)

var (
	missionRepo  string
	missionJSON  bool
	missionLimit int
)

var missionCmd = &cobra.Command{
	Use:   "mission",
	Short: "Submit and inspect missions",
}

var missionRunCmd = &cobra.Command{
	Use:   "run [objective]",
	Short: "Submit an objective through the full admission pipeline",
	Long: `Runs the full pipeline: optional ingestion and collision audit of --repo,
plan generation, entropy scoring and deck card emission.

Example:
  machgate mission run --repo acme/api "Add rate limiting of 100 req/min to src/api/routes.ts"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMission,
}

var missionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent missions",
	RunE:  listMissions,
}

var missionShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a mission with its plan and deck cards",
	Args:  cobra.ExactArgs(1),
	RunE:  showMission,
}

var missionRetryCmd = &cobra.Command{
	Use:   "retry [id]",
	Short: "Reprocess a mission from scratch",
	Args:  cobra.ExactArgs(1),
	RunE:  retryMission,
}

func init() {
	missionRunCmd.Flags().StringVarP(&missionRepo, "repo", "r", "", "GitHub repository the objective targets")
	missionRunCmd.Flags().BoolVar(&missionJSON, "json", false, "Print the outcome as JSON")
	missionShowCmd.Flags().BoolVar(&missionJSON, "json", false, "Print the mission as JSON")
	missionListCmd.Flags().IntVarP(&missionLimit, "limit", "n", 20, "Maximum missions to list")

	missionCmd.AddCommand(missionRunCmd)
	missionCmd.AddCommand(missionListCmd)
	missionCmd.AddCommand(missionShowCmd)
	missionCmd.AddCommand(missionRetryCmd)
}

func runMission(cmd *cobra.Command, args []string) error {
	return processMission(cmd, func(ctx context.Context, o *mission.Orchestrator) (mission.Outcome, error) {
		return o.Submit(ctx, strings.Join(args, " "), missionRepo)
	})
}

func retryMission(cmd *cobra.Command, args []string) error {
	return processMission(cmd, func(ctx context.Context, o *mission.Orchestrator) (mission.Outcome, error) {
		return o.Retry(ctx, args[0])
	})
}

// processMission wires an orchestrator, streams its progress events to
// stderr and prints the outcome.
func processMission(cmd *cobra.Command, run func(context.Context, *mission.Orchestrator) (mission.Outcome, error)) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx, appOptions{needOracle: true})
	if err != nil {
		return err
	}
	defer a.Close()

	events := make(chan mission.Event, 16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		printEvents(cmd.ErrOrStderr(), events)
	}()

	o, err := a.orchestrator(events)
	if err != nil {
		close(events)
		wg.Wait()
		return err
	}
	outcome, runErr := run(ctx, o)
	close(events)
	wg.Wait()

	if outcome.Mission.ID == "" {
		return runErr
	}
	if err := printOutcome(cmd.OutOrStdout(), outcome); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

func printEvents(w io.Writer, events <-chan mission.Event) {
	for e := range events {
		fmt.Fprintf(w, "%s %s\n", dimStyle.Render(fmt.Sprintf("[%s]", e.Type)), e.Message)
	}
}

func printOutcome(w io.Writer, out mission.Outcome) error {
	if missionJSON {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	var cards []mission.DeckCard
	if out.DeckCard != nil {
		cards = append(cards, *out.DeckCard)
	}
	_, err := fmt.Fprintln(w, renderMission(out.Mission, cards))
	return err
}

func listMissions(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	missions, err := mission.NewStoreRepository(a.missions).List(ctx, missionLimit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(missions) == 0 {
		fmt.Fprintln(out, dimStyle.Render("no missions yet"))
		return nil
	}
	for _, m := range missions {
		fmt.Fprintln(out, renderMissionRow(m))
	}
	return nil
}

func showMission(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	repo := mission.NewStoreRepository(a.missions)
	m, err := repo.Get(ctx, args[0])
	if err != nil {
		return err
	}
	cards, err := repo.DeckCards(ctx, m.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if missionJSON {
		data, err := json.MarshalIndent(struct {
			Mission   mission.Mission    `json:"mission"`
			DeckCards []mission.DeckCard `json:"deckCards"`
		}{m, cards}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	fmt.Fprintln(out, renderMission(m, cards))
	return nil
}
