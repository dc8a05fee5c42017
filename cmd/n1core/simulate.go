package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"n1core/adapters/excel"
	"n1core/adapters/memory"
	"n1core/domain/core"
	"n1core/internal/config"
	"n1core/internal/container"
	"n1core/internal/testkit"
)

var (
	simAthlete   string
	simFrom      string
	simDays      int
	simSeed      uint64
	simReplay    int
	simSleepR    float64
	simBadStreak int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the pipeline over a synthetic or file-backed athlete in memory",
	Long: `Load samples into an in-memory store, replay the daily pipeline over the
trailing --replay days, then print the final day's readiness and insights.
Nothing is written outside the process.

Samples come from --from (xlsx or csv with athlete_id, date, name, value and
optional activity_id columns) or, without it, from a deterministic generator.

EXAMPLES:

  n1core simulate                               # 60 synthetic days, seed 1
  n1core simulate --seed 7 --bad-streak 25      # end on a long bad stretch
  n1core simulate --from samples.csv --replay 30`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if simReplay < 1 {
			return fmt.Errorf("--replay must be positive")
		}
		cfg, err := config.LoadMemory()
		if err != nil {
			return err
		}

		store := memory.NewStore()
		last, err := loadSimulation(store)
		if err != nil {
			return err
		}
		athletes, err := store.ActiveAthletes(ctx)
		if err != nil {
			return err
		}
		if len(athletes) == 0 {
			return fmt.Errorf("no samples loaded")
		}

		clock := &stepClock{}
		c := container.NewWithMemory(cfg, store, clock, logger)
		for d := core.AddDays(last, -(simReplay - 1)); !d.After(last); d = core.AddDays(d, 1) {
			clock.set(d.Add(6 * time.Hour))
			rep, err := c.Batch.Run(ctx, athletes, d)
			if err != nil {
				return err
			}
			for _, f := range rep.Failed {
				logger.Warn("%s %s failed at %s: %s", core.DateKey(d), f.AthleteID, f.Stage, f.Err)
			}
		}

		for _, id := range athletes {
			if err := printDay(ctx, cmd.OutOrStdout(), c, id, last); err != nil {
				return err
			}
		}
		return nil
	},
}

// loadSimulation fills store and returns the last sample date
func loadSimulation(store *memory.Store) (time.Time, error) {
	if simFrom == "" {
		if simDays < 1 {
			return time.Time{}, fmt.Errorf("--days must be positive")
		}
		id, err := core.ParseAthleteID(simAthlete)
		if err != nil {
			return time.Time{}, err
		}
		a := testkit.GenerateAthlete(testkit.AthleteSpec{
			ID:               id,
			Start:            core.AddDays(core.DateOf(time.Now()), -simDays),
			Days:             simDays,
			Seed:             simSeed,
			SleepEfficiencyR: simSleepR,
			BadStreakDays:    simBadStreak,
			MissingRate:      0.05,
			DeviationRate:    0.2,
		})
		store.AddInputs(a.Inputs...)
		store.AddOutputs(a.Outputs...)
		store.AddPlanLinks(a.Links...)
		return a.End(), nil
	}

	samples, err := excel.NewDataReader(simFrom, logger).ReadSamples()
	if err != nil {
		return time.Time{}, err
	}
	var last time.Time
	for _, s := range samples.Inputs {
		if s.Date.After(last) {
			last = s.Date
		}
	}
	for _, s := range samples.Outputs {
		if s.Date.After(last) {
			last = s.Date
		}
	}
	if last.IsZero() {
		return last, fmt.Errorf("%s has no samples", simFrom)
	}
	store.AddInputs(samples.Inputs...)
	store.AddOutputs(samples.Outputs...)
	return last, nil
}

func printDay(ctx context.Context, w io.Writer, c *container.Container, id core.AthleteID, date time.Time) error {
	fmt.Fprintf(w, "athlete %s  %s\n", id, core.DateKey(date))

	d, err := c.Repos.Readiness.Get(ctx, id, date)
	switch {
	case err == nil:
		fmt.Fprintf(w, "  readiness %.1f  (missing weight %.2f, thresholds v%d)\n", d.Score, d.MissingWeightShare, d.ThresholdVersion)
		comps := append(d.Breakdown[:0:0], d.Breakdown...)
		sort.Slice(comps, func(i, j int) bool { return comps[i].Contribution > comps[j].Contribution })
		for _, cs := range comps {
			if !cs.Available {
				fmt.Fprintf(w, "    %-22s missing\n", cs.Component)
				continue
			}
			fmt.Fprintf(w, "    %-22s norm %.2f  weight %.2f  +%.1f\n", cs.Component, cs.Normalized, cs.EffectiveWeight, cs.Contribution)
		}
	case core.IsNotFoundError(err):
		fmt.Fprintln(w, "  readiness  insufficient data")
	default:
		return err
	}

	ins, err := c.Insights.ForDate(ctx, id, date)
	if err != nil {
		return err
	}
	if len(ins) == 0 {
		fmt.Fprintln(w, "  insights   none")
		return nil
	}
	fmt.Fprintln(w, "  insights")
	for _, r := range ins {
		fmt.Fprintf(w, "    [%s] %s/%s  %s  %s  (confidence %.2f)\n",
			strings.ToUpper(string(r.Mode)), r.RuleID, r.Subject, r.Action, r.MessageKey, r.Confidence)
	}
	return nil
}

// stepClock is advanced between batches so each replayed day sees its own "now"
type stepClock struct {
	mu sync.RWMutex
	at time.Time
}

func (c *stepClock) set(t time.Time) {
	c.mu.Lock()
	c.at = t
	c.mu.Unlock()
}

func (c *stepClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.at
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simAthlete, "athlete", "sim-1", "synthetic athlete id")
	f.StringVar(&simFrom, "from", "", "read samples from an xlsx or csv file instead of generating them")
	f.IntVar(&simDays, "days", 60, "synthetic days to generate")
	f.Uint64Var(&simSeed, "seed", 1, "generator seed")
	f.IntVar(&simReplay, "replay", 14, "trailing days to run the pipeline over")
	f.Float64Var(&simSleepR, "sleep-r", 0.7, "planted sleep to efficiency correlation")
	f.IntVar(&simBadStreak, "bad-streak", 0, "end the synthetic series with this many bad days")
	rootCmd.AddCommand(simulateCmd)
}
