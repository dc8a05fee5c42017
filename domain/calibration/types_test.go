package calibration

import (
	"testing"
	"time"

	"n1core/domain/readiness"

	"github.com/stretchr/testify/assert"
)

func TestColdStart(t *testing.T) {
	v, ok := ColdStart(ContextFloorName("intervals"))
	assert.True(t, ok)
	assert.Equal(t, DefaultContextFloor, v)

	v, ok = ColdStart(WeightName(readiness.EfficiencyTrend))
	assert.True(t, ok)
	assert.Equal(t, 0.30, v)

	v, ok = ColdStart(WeightName(readiness.HRVTrend))
	assert.True(t, ok)
	assert.Equal(t, 0.0, v)

	_, ok = ColdStart("unknown")
	assert.False(t, ok)
}

func TestSnapshotKeepsNewestVersion(t *testing.T) {
	now := time.Now()
	snap := NewSnapshot("a1", []Threshold{
		{Version: 3, Name: ReadinessFloor, Value: 45, SampleSize: 31, LastUpdated: now},
		{Version: 1, Name: ReadinessFloor, Value: 40, SampleSize: 0, LastUpdated: now},
		{Version: 2, Name: TSBTarget, Value: 8, SampleSize: 40, LastUpdated: now},
	})

	assert.Equal(t, int64(3), snap.Version)
	assert.Equal(t, 45.0, snap.Value(ReadinessFloor))
	assert.Equal(t, 8.0, snap.Value(TSBTarget))
	assert.Equal(t, DefaultContextFloor, snap.Value(ContextFloorName("long_run")))

	var nilSnap *Snapshot
	assert.Equal(t, DefaultReadinessFloor, nilSnap.Value(ReadinessFloor))
}

func TestRecordValidate(t *testing.T) {
	r := Record{AthleteID: "a1", DecisionContext: "intervals", Outcome: OutcomeCompletedWell, ReadinessScore: 70}
	assert.NoError(t, r.Validate())

	r.Outcome = "meh"
	assert.Error(t, r.Validate())

	r.Outcome = OutcomeSkipped
	r.ReadinessScore = 101
	assert.Error(t, r.Validate())
}
