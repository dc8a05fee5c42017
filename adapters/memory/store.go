// Package memory provides in-process implementations of every repository port.
// It backs tests, simulations and STORE=memory development runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"n1core/domain/calibration"
	"n1core/domain/core"
	"n1core/domain/correlation"
	"n1core/domain/insight"
	"n1core/domain/readiness"
	"n1core/domain/selfreg"
	"n1core/domain/signal"
)

// Store keeps all state in maps guarded by one mutex. Values are copied on the way in
// and out so callers never share memory with the store.
type Store struct {
	mu sync.RWMutex

	inputs    []signal.InputSample
	outputs   []signal.OutputSample
	planLinks []selfreg.PlanLink

	findings    map[string]*correlation.Finding
	readiness   map[string]*readiness.DailyReadiness
	thresholds  []calibration.Threshold
	thrSeq      int64
	calibration map[string]calibration.Record
	calOrder    []string
	selfreg     map[string]*selfreg.Record
	insights    map[core.InsightID]*insight.Record
	insightKeys map[string]core.InsightID
	ruleStates  map[string]*insight.RuleState
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		findings:    make(map[string]*correlation.Finding),
		readiness:   make(map[string]*readiness.DailyReadiness),
		calibration: make(map[string]calibration.Record),
		selfreg:     make(map[string]*selfreg.Record),
		insights:    make(map[core.InsightID]*insight.Record),
		insightKeys: make(map[string]core.InsightID),
		ruleStates:  make(map[string]*insight.RuleState),
	}
}

func key(parts ...string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "|"
		}
		out += p
	}
	return out
}

func inRange(d, from, to time.Time) bool {
	d = core.DateOf(d)
	return !d.Before(core.DateOf(from)) && !d.After(core.DateOf(to))
}

// ---- samples ----

// AddInputs appends input samples, as ingestion would
func (s *Store) AddInputs(samples ...signal.InputSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, samples...)
}

// AddOutputs appends output samples
func (s *Store) AddOutputs(samples ...signal.OutputSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs = append(s.outputs, samples...)
}

// AddPlanLinks appends planned-vs-actual links
func (s *Store) AddPlanLinks(links ...selfreg.PlanLink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.planLinks = append(s.planLinks, links...)
}

// InputSamples implements ports.SampleReader
func (s *Store) InputSamples(ctx context.Context, athleteID core.AthleteID, from, to time.Time) ([]signal.InputSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []signal.InputSample
	for _, in := range s.inputs {
		if in.AthleteID == athleteID && inRange(in.Date, from, to) {
			out = append(out, in)
		}
	}
	return out, nil
}

// OutputSamples implements ports.SampleReader
func (s *Store) OutputSamples(ctx context.Context, athleteID core.AthleteID, from, to time.Time) ([]signal.OutputSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []signal.OutputSample
	for _, o := range s.outputs {
		if o.AthleteID == athleteID && inRange(o.Date, from, to) {
			out = append(out, o)
		}
	}
	return out, nil
}

// PlanLinks implements ports.PlanLinkReader
func (s *Store) PlanLinks(ctx context.Context, athleteID core.AthleteID, from, to time.Time) ([]selfreg.PlanLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []selfreg.PlanLink
	for _, l := range s.planLinks {
		if l.AthleteID == athleteID && inRange(l.Date, from, to) {
			out = append(out, l)
		}
	}
	return out, nil
}

// ActiveAthletes implements ports.AthleteLister: every athlete with at least one sample
func (s *Store) ActiveAthletes(ctx context.Context) ([]core.AthleteID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[core.AthleteID]bool)
	for _, in := range s.inputs {
		seen[in.AthleteID] = true
	}
	for _, o := range s.outputs {
		seen[o.AthleteID] = true
	}
	out := make([]core.AthleteID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
