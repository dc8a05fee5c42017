package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Re-fit readiness thresholds from logged outcomes",
	Long: `Re-fit each athlete's readiness thresholds from the calibration records the
daily runs append. Athletes below the sample floor keep their current values.
New thresholds apply from the next daily run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := openContainer(ctx)
		if err != nil {
			return err
		}
		defer c.Shutdown(ctx)

		athletes, err := c.Athletes.ActiveAthletes(ctx)
		if err != nil {
			return fmt.Errorf("failed to list athletes: %w", err)
		}
		updated, failed := c.Calibration.CalibrateAll(ctx, athletes)
		fmt.Fprintf(cmd.OutOrStdout(), "calibrated %d of %d athletes\n", updated, len(athletes))
		if len(failed) > 0 {
			return fmt.Errorf("calibration failed for %d athletes: %v", len(failed), failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(calibrateCmd)
}
