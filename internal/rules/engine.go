package rules

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"n1core/domain/core"
	"n1core/domain/insight"
	"n1core/internal"
	"n1core/internal/metrics"
	"n1core/ports"
)

// Surfacer starts the cooldown of a finding once an insight about it is stored
type Surfacer interface {
	MarkSurfaced(ctx context.Context, id core.FindingID, at time.Time) error
}

// Report is the outcome of one athlete's evaluation
type Report struct {
	Results []insight.Result
	Emitted []*insight.Record
}

// Count returns how many results have the given status
func (r *Report) Count(s insight.Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == s {
			n++
		}
	}
	return n
}

// Engine evaluates the ordered rule set for one athlete and date
type Engine struct {
	rules    []Rule
	insights ports.InsightRepository
	states   ports.RuleStateRepository
	surfacer Surfacer
	clock    core.Clock
	logger   *internal.Logger
	metrics  *metrics.Registry
}

// NewEngine creates a rule engine. A nil rule set means DefaultRules.
func NewEngine(rules []Rule, insights ports.InsightRepository, states ports.RuleStateRepository, surfacer Surfacer, clock core.Clock, logger *internal.Logger, m *metrics.Registry) *Engine {
	if rules == nil {
		rules = DefaultRules()
	}
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Engine{
		rules:    rules,
		insights: insights,
		states:   states,
		surfacer: surfacer,
		clock:    clock,
		logger:   logger.Or(),
		metrics:  m,
	}
}

type candidate struct {
	order  int
	record *insight.Record
	find   core.FindingID
}

type ruleRun struct {
	results    []insight.Result
	candidates []candidate
	state      *insight.RuleState
}

// Evaluate runs every enabled rule, applies the daily caps and persists the survivors.
// A failing rule is recorded and skipped; only storage errors on the shared reads
// abort the evaluation.
func (e *Engine) Evaluate(ctx context.Context, c *Context) (*Report, error) {
	date := core.DateOf(c.Date)
	log := e.logger.With("athlete_id", c.AthleteID.String(), "run_date", core.DateKey(date), "stage", "rules")

	existing, err := e.insights.ListByDate(ctx, c.AthleteID, date)
	if err != nil {
		return nil, fmt.Errorf("list insights for %s: %w", core.DateKey(date), err)
	}
	stored := make(map[string]bool, len(existing))
	flags, total := 0, 0
	for _, r := range existing {
		stored[subjectKey(r.RuleID, r.Subject)] = true
		total++
		if r.Mode == insight.ModeFlag {
			flags++
		}
	}

	rep := &Report{}
	var pending []candidate
	var states []*insight.RuleState
	for i, rule := range e.rules {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		run := e.runRule(ctx, log, c, date, i, rule)
		rep.Results = append(rep.Results, run.results...)
		pending = append(pending, run.candidates...)
		if run.state != nil {
			states = append(states, run.state)
		}
	}

	sort.SliceStable(pending, func(i, j int) bool {
		ri, rj := pending[i].record.Mode.Rank(), pending[j].record.Mode.Rank()
		if ri != rj {
			return ri > rj
		}
		return pending[i].order < pending[j].order
	})

	a := c.Run.Analysis
	for _, cand := range pending {
		rec := cand.record
		res := insight.Result{RuleID: rec.RuleID, Insight: rec}
		switch {
		case stored[subjectKey(rec.RuleID, rec.Subject)]:
			res.Status, res.Reason = insight.StatusDuplicate, "already stored for date"
		case rec.Mode == insight.ModeFlag && flags >= a.FlagDailyCap:
			res.Status, res.Reason = insight.StatusCapped, "daily flag cap"
		case total >= a.InsightDailyCap:
			res.Status, res.Reason = insight.StatusCapped, "daily insight cap"
		default:
			inserted, err := e.insights.Insert(ctx, rec)
			if err != nil {
				return rep, fmt.Errorf("insert insight %s/%s: %w", rec.RuleID, rec.Subject, err)
			}
			if !inserted {
				res.Status, res.Reason = insight.StatusDuplicate, "already stored for date"
				break
			}
			res.Status = insight.StatusEmitted
			total++
			if rec.Mode == insight.ModeFlag {
				flags++
			}
			rep.Emitted = append(rep.Emitted, rec)
			e.metrics.InsightEmitted(rec.RuleID.String(), string(rec.Mode))
			if cand.find != "" && e.surfacer != nil {
				if err := e.surfacer.MarkSurfaced(ctx, cand.find, date); err != nil {
					return rep, err
				}
			}
		}
		if res.Status != insight.StatusEmitted {
			res.Insight = nil
		}
		rep.Results = append(rep.Results, res)
	}

	for _, st := range states {
		if err := e.states.Save(ctx, st); err != nil {
			return rep, fmt.Errorf("save rule state %s: %w", st.RuleID, err)
		}
	}

	for _, res := range rep.Results {
		e.metrics.RuleResult(res.RuleID.String(), string(res.Status))
	}
	log.Debug("rules: %d emitted, %d capped, %d suppressed, %d not applicable",
		rep.Count(insight.StatusEmitted), rep.Count(insight.StatusCapped),
		rep.Count(insight.StatusSuppressed), rep.Count(insight.StatusNotApplicable))
	return rep, nil
}

// runRule evaluates one rule in isolation. Errors and panics become a failed result.
func (e *Engine) runRule(ctx context.Context, log *internal.Logger, c *Context, date time.Time, order int, rule Rule) (run ruleRun) {
	id := rule.ID()
	rlog := log.With("rule_id", id.String())
	defer func() {
		if p := recover(); p != nil {
			rlog.Error("rule panicked: %v", p)
			run = ruleRun{results: []insight.Result{{RuleID: id, Status: insight.StatusFailed, Reason: fmt.Sprint(p)}}}
		}
	}()

	if !c.Run.RuleEnabled(id) {
		return ruleRun{results: []insight.Result{{RuleID: id, Status: insight.StatusDisabled}}}
	}

	prev, err := e.states.Get(ctx, c.AthleteID, id)
	if err != nil {
		rlog.Err(err, "load rule state")
		return ruleRun{results: []insight.Result{{RuleID: id, Status: insight.StatusFailed, Reason: err.Error()}}}
	}
	start := prev.StartingMode(date)

	ev, err := rule.Evaluate(c)
	switch {
	case errors.Is(err, core.ErrNotApplicable):
		return ruleRun{results: []insight.Result{{RuleID: id, Status: insight.StatusNotApplicable, Reason: err.Error()}}}
	case errors.Is(err, core.ErrSuppressed):
		return ruleRun{results: []insight.Result{{RuleID: id, Status: insight.StatusSuppressed, Reason: err.Error()}}}
	case err != nil:
		rlog.Err(err, "evaluate rule")
		return ruleRun{results: []insight.Result{{RuleID: id, Status: insight.StatusFailed, Reason: err.Error()}}}
	}

	var ack *time.Time
	if prev != nil {
		ack = prev.AcknowledgedOn
	}
	mode := nextMode(modeInput{
		rule:        id,
		date:        date,
		start:       start,
		max:         rule.MaxMode(),
		eval:        ev,
		selfReg:     c.SelfReg.Sustained(),
		acknowledge: ack,
		run:         c.Run,
	})
	if mode != start {
		rlog.Info("mode %s -> %s", start, mode)
	}
	run.state = &insight.RuleState{
		AthleteID:      c.AthleteID,
		RuleID:         id,
		Mode:           mode,
		PrevMode:       start,
		UpdatedOn:      date,
		StreakStart:    ev.StreakStart,
		AcknowledgedOn: ack,
	}

	if len(ev.Proposals) == 0 {
		run.results = append(run.results, insight.Result{RuleID: id, Status: insight.StatusNotApplicable, Reason: "condition not met"})
		return run
	}

	now := e.clock.Now()
	for _, p := range ev.Proposals {
		rec := &insight.Record{
			ID:            core.NewInsightID(),
			AthleteID:     c.AthleteID,
			Date:          date,
			RuleID:        id,
			Subject:       p.Subject,
			Mode:          mode,
			Action:        actionFor(mode),
			Metric:        p.Metric,
			Direction:     p.Direction,
			MessageKey:    p.MessageKey,
			CitedData:     p.Cited,
			Confidence:    p.Confidence,
			SustainedDays: ev.SustainedDays,
			CreatedAt:     now,
		}

		if err := Verify(rec, c.Polarity, c.Run.Analysis); err != nil {
			status := insight.StatusSuppressed
			if core.IsTrustViolation(err) {
				status = insight.StatusFailed
				rlog.Error("guard rejected %s: %v", p.Subject, err)
			}
			run.results = append(run.results, insight.Result{RuleID: id, Status: status, Reason: err.Error()})
			continue
		}

		latest, err := e.insights.Latest(ctx, c.AthleteID, id, p.Subject, date)
		if err != nil {
			rlog.Err(err, "load previous insight for %s", p.Subject)
			run.results = append(run.results, insight.Result{RuleID: id, Status: insight.StatusFailed, Reason: err.Error()})
			continue
		}
		if latest != nil {
			prevID := latest.ID
			rec.Supersedes = &prevID
		}
		run.candidates = append(run.candidates, candidate{order: order, record: rec, find: p.FindingID})
	}
	return run
}

func subjectKey(rule core.RuleID, subject string) string {
	return rule.String() + "|" + subject
}
