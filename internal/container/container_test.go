package container

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"n1core/adapters/memory"
	"n1core/domain/core"
	"n1core/internal"
	"n1core/internal/config"
	"n1core/internal/testkit"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{Store: "memory", MaxOpenConns: 1},
		Redis:    config.RedisConfig{LockTTL: time.Minute},
		Server:   config.ServerConfig{Addr: ":0"},
		Batch: config.BatchConfig{
			Concurrency:       2,
			AthleteRunTimeout: time.Minute,
			LookbackDays:      90,
		},
		Analysis: config.DefaultAnalysis(),
	}
}

func TestNewMemoryStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "polarity.yaml")
	require.NoError(t, os.WriteFile(path, []byte("metrics:\n  cardiac_drift_pct: lower_is_better\n"), 0o644))

	cfg := memoryConfig()
	cfg.Paths.PolarityFile = path
	c, err := New(context.Background(), cfg, internal.Discard)
	require.NoError(t, err)
	defer c.Shutdown(context.Background())

	assert.Nil(t, c.DB)
	assert.NotNil(t, c.Memory)
	assert.Nil(t, c.Publisher)
	assert.Nil(t, c.Narrator)
	assert.Equal(t, "process", c.lockBackend())
	assert.NotNil(t, c.Pipeline)
	assert.NotNil(t, c.Batch)
	assert.NotNil(t, c.Calibration)
}

func TestNewRejectsBadPolarityFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "polarity.yaml")
	require.NoError(t, os.WriteFile(path, []byte("metrics:\n  cardiac_drift_pct: sideways\n"), 0o644))

	cfg := memoryConfig()
	cfg.Paths.PolarityFile = path
	_, err := New(context.Background(), cfg, internal.Discard)
	assert.Error(t, err)
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil, internal.Discard)
	assert.Error(t, err)
}

func TestMemoryContainerRunsAndServes(t *testing.T) {
	store := memory.NewStore()
	a := testkit.GenerateAthlete(testkit.AthleteSpec{
		ID:               "sim-1",
		Start:            time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Days:             45,
		Seed:             3,
		SleepEfficiencyR: 0.7,
	})
	store.AddInputs(a.Inputs...)
	store.AddOutputs(a.Outputs...)
	store.AddPlanLinks(a.Links...)
	end := a.End()

	c := NewWithMemory(memoryConfig(), store, core.FixedClock{At: end}, internal.Discard)
	athletes, err := c.Athletes.ActiveAthletes(context.Background())
	require.NoError(t, err)
	require.Equal(t, []core.AthleteID{"sim-1"}, athletes)

	rep, err := c.Batch.Run(context.Background(), athletes, end)
	require.NoError(t, err)
	assert.Equal(t, []core.AthleteID{"sim-1"}, rep.OK)

	srv := c.APIServer()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/athletes/sim-1/readiness/"+core.DateKey(end), nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.NoError(t, c.Shutdown(context.Background()))
}
