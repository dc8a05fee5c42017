package app

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"n1core/domain/core"
	"n1core/internal"
	"n1core/internal/metrics"
)

// Batch outcomes per athlete
const (
	OutcomeOK       = "ok"
	OutcomeFailed   = "failed"
	OutcomeTimedOut = "timeout"
	OutcomeLocked   = "locked"
)

// AthleteRunner is the per-athlete unit of work a batch fans out
type AthleteRunner interface {
	RunAthlete(ctx context.Context, athleteID core.AthleteID, runDate time.Time) (*AthleteReport, error)
}

// AthleteFailure is one athlete that did not finish
type AthleteFailure struct {
	AthleteID core.AthleteID `json:"athlete_id"`
	Stage     string         `json:"stage,omitempty"`
	Err       string         `json:"error"`
}

// BatchReport lists what happened to every athlete in a batch
type BatchReport struct {
	RunDate  time.Time
	OK       []core.AthleteID
	Failed   []AthleteFailure
	TimedOut []core.AthleteID
	Locked   []core.AthleteID
	Reports  map[core.AthleteID]*AthleteReport
	Duration time.Duration
}

// BatchRunner runs athletes in parallel. One athlete's failure, timeout or panic never
// affects the others; each is retried on the next scheduled cycle.
type BatchRunner struct {
	runner      AthleteRunner
	concurrency int
	timeout     time.Duration
	logger      *internal.Logger
	metrics     *metrics.Registry
}

// NewBatchRunner creates a batch runner with bounded parallelism and a per-athlete budget
func NewBatchRunner(runner AthleteRunner, concurrency int, timeout time.Duration, logger *internal.Logger, m *metrics.Registry) *BatchRunner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &BatchRunner{
		runner:      runner,
		concurrency: concurrency,
		timeout:     timeout,
		logger:      logger.Or(),
		metrics:     m,
	}
}

// Run processes every athlete for runDate. The returned error is non-nil only when the
// batch context itself was cancelled.
func (b *BatchRunner) Run(ctx context.Context, athletes []core.AthleteID, runDate time.Time) (*BatchReport, error) {
	started := time.Now()
	date := core.DateOf(runDate)
	rep := &BatchReport{RunDate: date, Reports: make(map[core.AthleteID]*AthleteReport)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for _, id := range athletes {
		id := id
		g.Go(func() error {
			ar, err := b.runOne(gctx, id, date)
			outcome := classify(err)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case OutcomeOK:
				rep.OK = append(rep.OK, id)
				rep.Reports[id] = ar
			case OutcomeLocked:
				rep.Locked = append(rep.Locked, id)
			case OutcomeTimedOut:
				rep.TimedOut = append(rep.TimedOut, id)
			default:
				f := AthleteFailure{AthleteID: id, Err: err.Error()}
				var se *StageError
				if errors.As(err, &se) {
					f.Stage = se.Stage
				}
				rep.Failed = append(rep.Failed, f)
			}
			b.metrics.AthleteRun(outcome)
			// per-athlete errors stay in the report so siblings keep running
			return nil
		})
	}
	_ = g.Wait()

	sortIDs(rep.OK)
	sortIDs(rep.TimedOut)
	sortIDs(rep.Locked)
	sort.Slice(rep.Failed, func(i, j int) bool { return rep.Failed[i].AthleteID < rep.Failed[j].AthleteID })
	rep.Duration = time.Since(started)

	b.logger.With("run_date", core.DateKey(date)).Info("batch: %d athletes, ok=%d failed=%d timeout=%d locked=%d in %s",
		len(athletes), len(rep.OK), len(rep.Failed), len(rep.TimedOut), len(rep.Locked), rep.Duration)
	return rep, ctx.Err()
}

// runOne runs one athlete under its own deadline and turns a panic into an error
func (b *BatchRunner) runOne(ctx context.Context, id core.AthleteID, date time.Time) (rep *AthleteReport, err error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	log := b.logger.With("athlete_id", id.String(), "run_date", core.DateKey(date))
	defer func() {
		if r := recover(); r != nil {
			log.Error("athlete run panicked: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	rep, err = b.runner.RunAthlete(ctx, id, date)
	if err != nil {
		switch classify(err) {
		case OutcomeLocked:
			log.Info("skipped: another run holds the athlete lock")
		case OutcomeTimedOut:
			log.Warn("athlete run exceeded %s budget", b.timeout)
		default:
			log.Err(err, "athlete run failed")
		}
	}
	return rep, err
}

func classify(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, core.ErrLockHeld):
		return OutcomeLocked
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimedOut
	}
	return OutcomeFailed
}

func sortIDs(ids []core.AthleteID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
