package testkit

import (
	"fmt"
	"math"
	"time"

	"n1core/domain/core"
	"n1core/domain/selfreg"
	"n1core/domain/signal"
)

// AthleteSpec describes a synthetic athlete. SleepEfficiencyR plants a same-day
// relationship between sleep hours and efficiency; zero leaves them independent.
// BadStreakDays makes the final days consistently poor (deep fatigue, slow recovery,
// partial completions). MissingRate drops subjective check-in fields at random.
type AthleteSpec struct {
	ID               core.AthleteID
	Start            time.Time
	Days             int
	Seed             uint64
	SleepEfficiencyR float64
	BadStreakDays    int
	MissingRate      float64
	DeviationRate    float64
}

// Athlete is the generated sample set, in the shape ingestion would supply
type Athlete struct {
	Spec    AthleteSpec
	Inputs  []signal.InputSample
	Outputs []signal.OutputSample
	Links   []selfreg.PlanLink
}

// End returns the last generated date
func (a *Athlete) End() time.Time {
	return core.AddDays(a.Spec.Start, a.Spec.Days-1)
}

// GenerateAthlete builds a deterministic athlete from spec
func GenerateAthlete(spec AthleteSpec) *Athlete {
	g := NewRand(spec.Seed)
	n := spec.Days
	sleep, effZ := g.CorrelatedPair(n, spec.SleepEfficiencyR, 7.2, 0.6)

	a := &Athlete{Spec: spec}
	ctl := 55.0
	for i := 0; i < n; i++ {
		day := core.AddDays(spec.Start, i)
		bad := i >= n-spec.BadStreakDays
		quality := i%4 == 3

		tsb := 5 + 6*g.Normal()
		halfLife := 36 + 6*g.Normal()
		completion := 1.0
		if g.Float64() < 0.1 {
			completion = 0
		}
		if bad {
			tsb = -25 + 2*g.Normal()
			halfLife = 70 + 2*g.Normal()
			completion = 0.5
		}
		ctl += 0.1 * g.Normal()
		atl := ctl - tsb

		check := func(name signal.Name, v float64, optional bool) {
			var val *float64
			if !optional || g.Float64() >= spec.MissingRate {
				val = signal.Float(v)
			}
			a.Inputs = append(a.Inputs, signal.InputSample{AthleteID: spec.ID, Signal: name, Date: day, Value: val})
		}
		check(signal.SleepHours, sleep[i], true)
		check(signal.SleepQuality, clamp(3+g.Normal(), 1, 5), true)
		check(signal.Stress, clamp(3+0.8*g.Normal(), 1, 5), true)
		check(signal.Soreness, clamp(2.5+0.8*g.Normal(), 1, 5), true)
		check(signal.Motivation, clamp(3.5+0.7*g.Normal(), 1, 5), true)
		check(signal.HRV, 60+5*g.Normal(), false)
		check(signal.RestingHR, 50+3*g.Normal(), false)
		check(signal.TSB, tsb, false)
		check(signal.CTL, ctl, false)
		check(signal.ATL, atl, false)
		check(signal.RecoveryHalfLife, halfLife, false)
		q := 0.0
		if quality {
			q = 1
		}
		check(signal.QualitySession, q, false)

		activity := core.ActivityID(fmt.Sprintf("%s-%s", spec.ID, core.DateKey(day)))
		out := func(name signal.Name, v float64) {
			a.Outputs = append(a.Outputs, signal.OutputSample{AthleteID: spec.ID, Metric: name, Date: day, ActivityID: activity, Value: signal.Float(v)})
		}
		out(signal.EfficiencyFactor, 1.5+0.05*effZ[i])
		out(signal.PaceAtFixedHR, 4.0+0.1*g.Normal())
		out(signal.WorkoutCompletion, completion)
		out(signal.CardiacDrift, 5+1.5*g.Normal())

		planned := selfreg.WorkoutDescriptor{Kind: "run", DurationMin: 60, DistanceKm: 11, Intensity: "easy"}
		if quality {
			planned.Intensity = "tempo"
		}
		actual := planned
		if g.Float64() < spec.DeviationRate {
			actual.DurationMin = 45
			actual.DistanceKm = 8
		}
		a.Links = append(a.Links, selfreg.PlanLink{
			AthleteID:  spec.ID,
			Date:       day,
			ActivityID: activity,
			Planned:    planned,
			Actual:     actual,
			Completed:  completion > 0,
		})
	}
	return a
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
