package app

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"n1core/adapters/memory"
	"n1core/domain/calibration"
	"n1core/domain/core"
	"n1core/domain/selfreg"
	"n1core/internal"
	"n1core/internal/metrics"
)

func seedCalibration(t *testing.T, repo *memory.CalibrationRepository, athleteID core.AthleteID, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		score := 20 + 2*float64(i)
		label := calibration.OutcomeStruggled
		if score >= 50 {
			label = calibration.OutcomeCompletedWell
		}
		inserted, err := repo.Append(context.Background(), &calibration.Record{
			AthleteID:       athleteID,
			Date:            core.AddDays(simStart, i),
			ReadinessScore:  score,
			DecisionContext: selfreg.ContextQuality,
			Outcome:         label,
		})
		require.NoError(t, err)
		require.True(t, inserted)
	}
}

func TestCalibrateAppendsNewVersionOnce(t *testing.T) {
	store := memory.NewStore()
	seedCalibration(t, store.CalibrationRecords(), "a-1", 30)
	m := metrics.NewRegistry()
	at := time.Date(2026, 5, 1, 3, 0, 0, 0, time.UTC)
	svc := NewCalibrationService(store.Thresholds(), store.CalibrationRecords(), 30, core.FixedClock{At: at}, internal.Discard, m)
	ctx := context.Background()

	before, err := store.Thresholds().Snapshot(ctx, "a-1")
	require.NoError(t, err)

	est, err := svc.Calibrate(ctx, "a-1")
	require.NoError(t, err)
	require.Len(t, est, 2)
	for _, e := range est {
		assert.True(t, e.Updated, e.String())
		assert.Equal(t, 50.0, e.Value)
	}

	after, err := store.Thresholds().Snapshot(ctx, "a-1")
	require.NoError(t, err)
	assert.Greater(t, after.Version, before.Version)
	assert.Equal(t, 50.0, after.Value(calibration.ContextFloorName(selfreg.ContextQuality)))
	assert.Equal(t, 50.0, after.Value(calibration.ReadinessFloor))

	// the pinned snapshot a running pipeline holds does not move
	pinned, err := store.Thresholds().SnapshotAt(ctx, "a-1", before.Version)
	require.NoError(t, err)
	assert.Equal(t, calibration.DefaultReadinessFloor, pinned.Value(calibration.ReadinessFloor))

	again, err := svc.Calibrate(ctx, "a-1")
	require.NoError(t, err)
	for _, e := range again {
		assert.False(t, e.Updated)
	}
	hist, err := store.Thresholds().History(ctx, "a-1", calibration.ReadinessFloor)
	require.NoError(t, err)
	assert.Len(t, hist, 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ThresholdUpdates.WithLabelValues("updated")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ThresholdUpdates.WithLabelValues("retained")))
}

func TestCalibrateBelowFloorKeepsPrior(t *testing.T) {
	store := memory.NewStore()
	seedCalibration(t, store.CalibrationRecords(), "a-2", 29)
	svc := NewCalibrationService(store.Thresholds(), store.CalibrationRecords(), 30, nil, internal.Discard, nil)

	est, err := svc.Calibrate(context.Background(), "a-2")
	require.NoError(t, err)
	for _, e := range est {
		assert.False(t, e.Updated)
		assert.Equal(t, 29, e.SampleSize)
	}
	hist, err := store.Thresholds().History(context.Background(), "a-2", calibration.ReadinessFloor)
	require.NoError(t, err)
	assert.Empty(t, hist)

	updated, failed := svc.CalibrateAll(context.Background(), []core.AthleteID{"a-2", "nobody"})
	assert.Zero(t, updated)
	assert.Empty(t, failed)
}
