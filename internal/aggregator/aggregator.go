// Package aggregator builds aligned per-day signal tables for one athlete.
package aggregator

import (
	"context"
	"fmt"
	"math"
	"time"

	"n1core/domain/core"
	"n1core/domain/signal"
	"n1core/internal"
	"n1core/ports"
)

// Aggregator turns raw samples into a dense day grid per registered signal
type Aggregator struct {
	samples ports.SampleReader
	logger  *internal.Logger
}

// New creates an aggregator over a sample source
func New(samples ports.SampleReader, logger *internal.Logger) *Aggregator {
	return &Aggregator{samples: samples, logger: logger.Or()}
}

// Aggregate returns a table covering [from, to] with one series per registered signal.
// Missing days are NaN. Several samples on one day are averaged; nothing is interpolated.
func (a *Aggregator) Aggregate(ctx context.Context, athleteID core.AthleteID, from, to time.Time) (*signal.Table, error) {
	from, to = core.DateOf(from), core.DateOf(to)
	if to.Before(from) {
		return nil, core.NewValidationError("range", fmt.Sprintf("%s is before %s", core.DateKey(to), core.DateKey(from)))
	}

	inputs, err := a.samples.InputSamples(ctx, athleteID, from, to)
	if err != nil {
		return nil, fmt.Errorf("read input samples: %w", err)
	}
	outputs, err := a.samples.OutputSamples(ctx, athleteID, from, to)
	if err != nil {
		return nil, fmt.Errorf("read output samples: %w", err)
	}

	table := &signal.Table{AthleteID: athleteID, From: from, To: to, Series: make(map[signal.Name]*signal.Series)}
	acc := newAccumulator(from, table.Days())

	for _, s := range inputs {
		if s.AthleteID != athleteID {
			continue
		}
		if kind, ok := signal.KindOf(s.Signal); !ok || kind != signal.KindInput {
			a.logger.Trace("ignoring unregistered input %s", s.Signal)
			continue
		}
		acc.add(s.Signal, s.Date, s.Value)
	}
	for _, s := range outputs {
		if s.AthleteID != athleteID {
			continue
		}
		if kind, ok := signal.KindOf(s.Metric); !ok || kind != signal.KindOutput {
			a.logger.Trace("ignoring unregistered output %s", s.Metric)
			continue
		}
		acc.add(s.Metric, s.Date, s.Value)
	}

	for _, n := range signal.RegisteredInputs {
		table.Series[n] = acc.series(n, signal.KindInput)
	}
	for _, n := range signal.RegisteredOutputs {
		table.Series[n] = acc.series(n, signal.KindOutput)
	}
	return table, nil
}

// Scope is the correlation scope after dropping signals without enough history.
// Skipped maps a dropped signal to its insufficient-history reason.
type Scope struct {
	Inputs  []*signal.Series
	Outputs []*signal.Series
	Skipped map[signal.Name]string
}

// CorrelationScope selects the correlation inputs and outputs that have at least
// minDays observed days. Dropped signals are recorded, never zero-filled.
func CorrelationScope(t *signal.Table, minDays int) Scope {
	scope := Scope{Skipped: make(map[signal.Name]string)}
	for _, n := range signal.CorrelationInputs {
		s, err := t.Require(n, minDays)
		if err != nil {
			scope.Skipped[n] = err.Error()
			continue
		}
		scope.Inputs = append(scope.Inputs, s)
	}
	for _, n := range signal.CorrelationOutputs {
		s, err := t.Require(n, minDays)
		if err != nil {
			scope.Skipped[n] = err.Error()
			continue
		}
		scope.Outputs = append(scope.Outputs, s)
	}
	return scope
}

type accumulator struct {
	start time.Time
	days  int
	sum   map[signal.Name][]float64
	count map[signal.Name][]int
}

func newAccumulator(start time.Time, days int) *accumulator {
	return &accumulator{
		start: start,
		days:  days,
		sum:   make(map[signal.Name][]float64),
		count: make(map[signal.Name][]int),
	}
}

func (a *accumulator) add(n signal.Name, date time.Time, v *float64) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return
	}
	i := core.DaysBetween(a.start, date)
	if i < 0 || i >= a.days {
		return
	}
	if _, ok := a.sum[n]; !ok {
		a.sum[n] = make([]float64, a.days)
		a.count[n] = make([]int, a.days)
	}
	a.sum[n][i] += *v
	a.count[n][i]++
}

func (a *accumulator) series(n signal.Name, kind signal.Kind) *signal.Series {
	values := make([]float64, a.days)
	sums, counts := a.sum[n], a.count[n]
	for i := range values {
		if counts == nil || counts[i] == 0 {
			values[i] = math.NaN()
			continue
		}
		values[i] = sums[i] / float64(counts[i])
	}
	return &signal.Series{Name: n, Kind: kind, Start: a.start, Values: values}
}
