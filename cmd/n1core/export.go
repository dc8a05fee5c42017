package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"n1core/adapters/excel"
	"n1core/domain/core"
	"n1core/internal/container"
)

var (
	exportAthlete string
	exportOut     string
	exportDate    string
	exportDays    int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write one athlete's findings, readiness and insights to a workbook",
	Long: `Export one athlete to an .xlsx workbook with a sheet each for findings,
daily readiness, readiness components and insights.

EXAMPLES:

  n1core export --athlete a-17 --out a-17.xlsx
  n1core export --athlete a-17 --out a-17.xlsx --date 2026-06-01 --days 30`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := core.ParseAthleteID(exportAthlete)
		if err != nil {
			return err
		}
		to, err := parseDateFlag(exportDate)
		if err != nil {
			return err
		}
		if exportDays < 1 {
			return fmt.Errorf("--days must be positive")
		}

		c, err := openContainer(ctx)
		if err != nil {
			return err
		}
		defer c.Shutdown(ctx)

		rep, err := buildReport(ctx, c, id, core.AddDays(to, -(exportDays-1)), to)
		if err != nil {
			return err
		}
		if err := excel.Export(exportOut, rep); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d findings, %d readiness days, %d insights\n",
			exportOut, len(rep.Findings), len(rep.Readiness), len(rep.Insights))
		return nil
	},
}

// buildReport collects the workbook contents for one athlete over [from, to]
func buildReport(ctx context.Context, c *container.Container, id core.AthleteID, from, to time.Time) (*excel.Report, error) {
	fs, err := c.Findings.List(ctx, id)
	if err != nil {
		return nil, err
	}
	days, err := c.Repos.Readiness.Range(ctx, id, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to read readiness: %w", err)
	}
	ins, err := c.Repos.Insights.Range(ctx, id, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to read insights: %w", err)
	}
	return &excel.Report{Findings: fs, Readiness: days, Insights: ins}, nil
}

func init() {
	exportCmd.Flags().StringVar(&exportAthlete, "athlete", "", "athlete id")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output .xlsx path")
	exportCmd.Flags().StringVar(&exportDate, "date", "", "last date to include YYYY-MM-DD (default today, UTC)")
	exportCmd.Flags().IntVar(&exportDays, "days", 90, "number of days to include")
	_ = exportCmd.MarkFlagRequired("athlete")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}
