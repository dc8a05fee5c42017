package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"n1core/domain/calibration"
	"n1core/domain/core"
	"n1core/domain/readiness"
	"n1core/domain/selfreg"
	"n1core/domain/signal"
	"n1core/internal"
	"n1core/internal/aggregator"
	"n1core/internal/config"
	corr "n1core/internal/correlation"
	"n1core/internal/findings"
	"n1core/internal/metrics"
	scoring "n1core/internal/readiness"
	"n1core/internal/rules"
	selfreglog "n1core/internal/selfreg"
	"n1core/ports"
)

// Pipeline stage names, as they appear in logs, metrics and StageError
const (
	StageLock       = "lock"
	StageConfig     = "config"
	StageThresholds = "thresholds"
	StageAggregate  = "aggregate"
	StageCorrelate  = "correlate"
	StageFindings   = "findings"
	StageReadiness  = "readiness"
	StageRules      = "rules"
	StageFeedback   = "feedback"
	StagePublish    = "publish"
)

// historyDays is how much stored readiness the rules see
const historyDays = 42

// StageError names the stage an athlete run failed in
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("stage %s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// Repositories groups the storage ports one athlete run reads and writes
type Repositories struct {
	Samples     ports.SampleReader
	Links       ports.PlanLinkReader
	Findings    ports.FindingRepository
	Readiness   ports.ReadinessRepository
	Thresholds  ports.ThresholdRepository
	Calibration ports.CalibrationRepository
	SelfReg     ports.SelfRegulationRepository
	Insights    ports.InsightRepository
	RuleStates  ports.RuleStateRepository
}

// PipelineOptions carries the collaborators that are not storage. Narrator and
// Publisher are optional.
type PipelineOptions struct {
	Analysis     config.Analysis
	LookbackDays int
	LockTTL      time.Duration
	Flags        ports.FlagProvider
	Locker       ports.Locker
	Polarity     ports.PolarityRegistry
	Narrator     ports.Narrator
	Publisher    ports.InsightPublisher
	Rules        []rules.Rule
	Clock        core.Clock
	Logger       *internal.Logger
	Metrics      *metrics.Registry
}

// AthleteReport summarizes one athlete run
type AthleteReport struct {
	AthleteID          core.AthleteID
	RunDate            time.Time
	ConfigHash         core.Hash
	ThresholdVersion   int64
	Findings           findings.Report
	Readiness          *readiness.DailyReadiness
	Rules              *rules.Report
	SelfRegLogged      int
	SelfRegResolved    int
	SelfRegExpired     int
	CalibrationRecords int
	Published          int
	Stages             map[string]time.Duration
}

// PipelineService runs the full daily pipeline for one athlete
type PipelineService struct {
	repos      Repositories
	opts       PipelineOptions
	aggregator *aggregator.Aggregator
	findings   *findings.Store
	scorer     *scoring.Scorer
	selfreg    *selfreglog.Logger
	rules      *rules.Engine
	logger     *internal.Logger
}

// NewPipelineService wires the engines over the given repositories
func NewPipelineService(repos Repositories, opts PipelineOptions) *PipelineService {
	if opts.Clock == nil {
		opts.Clock = core.SystemClock{}
	}
	if opts.Flags == nil {
		opts.Flags = config.StaticFlagProvider{Value: config.DefaultFlags()}
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 90
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Minute
	}
	logger := opts.Logger.Or()
	store := findings.NewStore(repos.Findings, opts.Clock, logger, opts.Metrics).WithPolicy(opts.Analysis.SurfacePolicy())
	return &PipelineService{
		repos:      repos,
		opts:       opts,
		aggregator: aggregator.New(repos.Samples, logger),
		findings:   store,
		scorer:     scoring.NewScorer(opts.Clock, logger),
		selfreg:    selfreglog.NewLogger(repos.Links, repos.SelfReg, opts.Clock, opts.Analysis.BackfillWindowDays, logger, opts.Metrics),
		rules:      rules.NewEngine(opts.Rules, repos.Insights, repos.RuleStates, store, opts.Clock, logger, opts.Metrics),
		logger:     logger,
	}
}

// RunAthlete executes lock → config → thresholds → aggregate → correlate → findings →
// readiness → rules → feedback → publish. Stages run strictly in order; the first
// failing stage ends the run with a *StageError.
func (p *PipelineService) RunAthlete(ctx context.Context, athleteID core.AthleteID, runDate time.Time) (*AthleteReport, error) {
	date := core.DateOf(runDate)
	log := p.logger.With("athlete_id", athleteID.String(), "run_date", core.DateKey(date))
	rep := &AthleteReport{AthleteID: athleteID, RunDate: date, Stages: make(map[string]time.Duration)}

	var release func(context.Context) error
	if err := p.stage(ctx, log, rep, StageLock, func(ctx context.Context) error {
		if p.opts.Locker == nil {
			return nil
		}
		var err error
		release, err = p.opts.Locker.Acquire(ctx, athleteID, p.opts.LockTTL)
		return err
	}); err != nil {
		return rep, err
	}
	if release != nil {
		defer func() {
			// the run context may already be cancelled; the lock must still go
			if err := release(context.Background()); err != nil {
				log.Warn("release athlete lock: %v", err)
			}
		}()
	}

	var run config.RunConfig
	if err := p.stage(ctx, log, rep, StageConfig, func(ctx context.Context) error {
		flags, err := p.opts.Flags.Flags(ctx)
		if err != nil {
			return err
		}
		run = config.NewRunConfig(p.opts.Analysis, flags, date, p.opts.Clock.Now())
		rep.ConfigHash = run.Fingerprint()
		log.Debug("config pinned (%s)", rep.ConfigHash.Short())
		return nil
	}); err != nil {
		return rep, err
	}

	var snap *calibration.Snapshot
	if err := p.stage(ctx, log, rep, StageThresholds, func(ctx context.Context) error {
		var err error
		snap, err = p.repos.Thresholds.Snapshot(ctx, athleteID)
		if err != nil {
			return err
		}
		rep.ThresholdVersion = snap.Version
		return nil
	}); err != nil {
		return rep, err
	}

	var table *signal.Table
	if err := p.stage(ctx, log, rep, StageAggregate, func(ctx context.Context) error {
		var err error
		table, err = p.aggregator.Aggregate(ctx, athleteID, core.AddDays(date, -(p.opts.LookbackDays-1)), date)
		return err
	}); err != nil {
		return rep, err
	}

	if err := p.stage(ctx, log, rep, StageCorrelate, func(ctx context.Context) error {
		engine := corr.NewEngine(corr.GatesFrom(run.Analysis), log)
		res, err := engine.Run(ctx, athleteID, date, aggregator.CorrelationScope(table, run.Analysis.MinHistoryDays))
		if err != nil {
			return err
		}
		applied, err := p.findings.Apply(ctx, res)
		if err != nil {
			return &StageError{Stage: StageFindings, Err: err}
		}
		rep.Findings = applied
		return nil
	}); err != nil {
		return rep, err
	}

	if err := p.stage(ctx, log, rep, StageReadiness, func(ctx context.Context) error {
		strongest, err := p.findings.StrongestByInput(ctx, athleteID)
		if err != nil {
			return err
		}
		score, err := p.scorer.Score(scoring.Inputs{
			AthleteID: athleteID,
			Date:      date,
			Table:     table,
			Snapshot:  snap,
			Findings:  strongest,
		})
		if core.IsInsufficientData(err) {
			log.Info("readiness: no component available, nothing stored")
			return nil
		}
		if err != nil {
			return err
		}
		if err := p.repos.Readiness.Upsert(ctx, score); err != nil {
			return err
		}
		rep.Readiness = score
		return nil
	}); err != nil {
		return rep, err
	}

	if err := p.stage(ctx, log, rep, StageRules, func(ctx context.Context) error {
		rc, err := p.ruleContext(ctx, athleteID, date, run, table, snap, rep.Readiness)
		if err != nil {
			return err
		}
		rep.Rules, err = p.rules.Evaluate(ctx, rc)
		return err
	}); err != nil {
		return rep, err
	}

	if err := p.stage(ctx, log, rep, StageFeedback, func(ctx context.Context) error {
		return p.feedback(ctx, log, rep, table)
	}); err != nil {
		return rep, err
	}

	if err := p.stage(ctx, log, rep, StagePublish, func(ctx context.Context) error {
		p.publish(ctx, log, rep)
		return nil
	}); err != nil {
		return rep, err
	}

	log.Info("pipeline: readiness=%s findings(created=%d confirmed=%d deactivated=%d) insights=%d",
		scoreString(rep.Readiness), rep.Findings.Created, rep.Findings.Confirmed, rep.Findings.Deactivated, len(rep.Rules.Emitted))
	return rep, nil
}

// stage runs one step with timing, logging and cancellation checks
func (p *PipelineService) stage(ctx context.Context, log *internal.Logger, rep *AthleteReport, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return &StageError{Stage: name, Err: err}
	}
	started := time.Now()
	err := fn(ctx)
	rep.Stages[name] = time.Since(started)
	p.opts.Metrics.ObserveStage(name, started, err)
	if err == nil {
		log.Debug("stage %s done in %s", name, rep.Stages[name])
		return nil
	}
	var se *StageError
	if !errors.As(err, &se) {
		se = &StageError{Stage: name, Err: err}
	}
	log.With("stage", se.Stage).Err(se.Err, "stage failed")
	return se
}

func (p *PipelineService) ruleContext(ctx context.Context, athleteID core.AthleteID, date time.Time, run config.RunConfig, table *signal.Table, snap *calibration.Snapshot, today *readiness.DailyReadiness) (*rules.Context, error) {
	history, err := p.repos.Readiness.Range(ctx, athleteID, core.AddDays(date, -(historyDays-1)), date)
	if err != nil {
		return nil, fmt.Errorf("readiness history: %w", err)
	}
	surfacing, err := p.findings.SelectForSurfacing(ctx, athleteID, date, run.Analysis.CorrelationDailyCap)
	if err != nil {
		return nil, err
	}
	hist, err := p.selfreg.PositiveHistory(ctx, athleteID, date)
	if err != nil {
		return nil, err
	}
	links, err := p.repos.Links.PlanLinks(ctx, athleteID, date, date)
	if err != nil {
		return nil, fmt.Errorf("plan links for %s: %w", core.DateKey(date), err)
	}
	var planned *selfreg.WorkoutDescriptor
	if len(links) > 0 {
		w := links[0].Planned
		planned = &w
	}
	return &rules.Context{
		AthleteID: athleteID,
		Date:      date,
		Run:       run,
		Table:     table,
		Readiness: today,
		History:   history,
		Snapshot:  snap,
		Findings:  surfacing,
		SelfReg:   hist,
		Planned:   planned,
		Polarity:  p.opts.Polarity,
	}, nil
}

// feedback logs today's deviations, resolves pending outcomes and records yesterday's
// readiness-at-decision against how the session went
func (p *PipelineService) feedback(ctx context.Context, log *internal.Logger, rep *AthleteReport, table *signal.Table) error {
	athleteID, date := rep.AthleteID, rep.RunDate
	logged, err := p.selfreg.Log(ctx, athleteID, date)
	if err != nil {
		return err
	}
	rep.SelfRegLogged = logged
	rep.SelfRegResolved, rep.SelfRegExpired, err = p.selfreg.Backfill(ctx, athleteID, table, date)
	if err != nil {
		return err
	}

	yesterday := core.AddDays(date, -1)
	score, err := p.repos.Readiness.Get(ctx, athleteID, yesterday)
	if errors.Is(err, core.ErrReadinessAbsent) {
		log.Debug("feedback: no readiness for %s, no calibration record", core.DateKey(yesterday))
		return nil
	}
	if err != nil {
		return err
	}
	links, err := p.repos.Links.PlanLinks(ctx, athleteID, yesterday, yesterday)
	if err != nil {
		return err
	}
	var completion *float64
	if s, ok := table.Get(signal.WorkoutCompletion); ok {
		if v, ok := s.At(yesterday); ok {
			completion = &v
		}
	}
	for _, l := range links {
		outcome, ok := outcomeLabel(l, completion)
		if !ok {
			log.Debug("feedback: no completion for %s on %s, no calibration record", l.ActivityID, core.DateKey(yesterday))
			continue
		}
		rec := &calibration.Record{
			AthleteID:       athleteID,
			Date:            yesterday,
			ReadinessScore:  score.Score,
			DecisionContext: l.Planned.DecisionContext(),
			Outcome:         outcome,
			CreatedAt:       p.opts.Clock.Now(),
		}
		inserted, err := p.repos.Calibration.Append(ctx, rec)
		if err != nil {
			return fmt.Errorf("append calibration record: %w", err)
		}
		if inserted {
			rep.CalibrationRecords++
		}
	}
	return nil
}

// outcomeLabel labels a completed session only from an observed completion value
func outcomeLabel(l selfreg.PlanLink, completion *float64) (calibration.OutcomeLabel, bool) {
	switch {
	case !l.Completed:
		return calibration.OutcomeSkipped, true
	case completion == nil:
		return "", false
	case *completion < 1:
		return calibration.OutcomeStruggled, true
	}
	return calibration.OutcomeCompletedWell, true
}

// publish narrates and delivers emitted insights. Neither step can fail the run:
// the structured records are already stored.
func (p *PipelineService) publish(ctx context.Context, log *internal.Logger, rep *AthleteReport) {
	if rep.Rules == nil || len(rep.Rules.Emitted) == 0 || p.opts.Publisher == nil {
		return
	}
	envelopes := make([]ports.InsightEnvelope, 0, len(rep.Rules.Emitted))
	for _, rec := range rep.Rules.Emitted {
		env := ports.InsightEnvelope{Insight: rec}
		if p.opts.Narrator != nil {
			text, err := p.opts.Narrator.Narrate(ctx, rec)
			if err != nil {
				log.Warn("narration for %s/%s unavailable: %v", rec.RuleID, rec.Subject, err)
			} else {
				env.Narration = text
			}
		}
		envelopes = append(envelopes, env)
	}
	if err := p.opts.Publisher.Publish(ctx, envelopes); err != nil {
		log.Err(err, "publish %d insights", len(envelopes))
		return
	}
	rep.Published = len(envelopes)
}

func scoreString(r *readiness.DailyReadiness) string {
	if r == nil {
		return "none"
	}
	return fmt.Sprintf("%.1f", r.Score)
}
