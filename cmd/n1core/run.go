package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"n1core/domain/core"
)

var (
	runDate    string
	runAthlete string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daily pipeline for every active athlete",
	Long: `Run the daily pipeline (aggregate, correlate, score, evaluate rules, log
self-regulation, publish) for every athlete with samples, or one athlete with
--athlete. Athletes run in parallel; one failure never stops the others.

EXAMPLES:

  n1core run                          # today, all athletes
  n1core run --date 2026-06-01        # backfill one date
  n1core run --athlete a-17           # one athlete`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		date, err := parseDateFlag(runDate)
		if err != nil {
			return err
		}

		c, err := openContainer(ctx)
		if err != nil {
			return err
		}
		defer c.Shutdown(ctx)

		var athletes []core.AthleteID
		if runAthlete != "" {
			id, err := core.ParseAthleteID(runAthlete)
			if err != nil {
				return err
			}
			athletes = []core.AthleteID{id}
		} else if athletes, err = c.Athletes.ActiveAthletes(ctx); err != nil {
			return fmt.Errorf("failed to list athletes: %w", err)
		}

		rep, err := c.Batch.Run(ctx, athletes, date)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"run_date":  core.DateKey(rep.RunDate),
			"ok":        rep.OK,
			"failed":    rep.Failed,
			"timed_out": rep.TimedOut,
			"locked":    rep.Locked,
			"duration":  rep.Duration.String(),
		})
	},
}

func init() {
	runCmd.Flags().StringVar(&runDate, "date", "", "run date YYYY-MM-DD (default today, UTC)")
	runCmd.Flags().StringVar(&runAthlete, "athlete", "", "run a single athlete")
	rootCmd.AddCommand(runCmd)
}
