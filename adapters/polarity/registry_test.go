package polarity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"n1core/domain/signal"
	"n1core/internal/errors"
)

const doc = `
metrics:
  efficiency_factor: higher_is_better
  cardiac_drift_pct: lower_is_better
  pace_at_fixed_hr: ambiguous
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "polarity.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, signal.PolarityHigherBetter, r.Polarity(signal.EfficiencyFactor))
	assert.Equal(t, signal.PolarityLowerBetter, r.Polarity(signal.CardiacDrift))
	assert.False(t, r.Polarity(signal.PaceAtFixedHR).Directional())
	assert.Equal(t, signal.PolarityUnknown, r.Polarity(signal.WorkoutCompletion))
}

func TestParseRejectsUnknownValues(t *testing.T) {
	_, err := Parse([]byte("metrics:\n  cardiac_drift_pct: better\n"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestEmptyAndNil(t *testing.T) {
	r, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, signal.PolarityUnknown, r.Polarity(signal.EfficiencyFactor))

	var nilReg *Registry
	assert.Equal(t, signal.PolarityUnknown, nilReg.Polarity(signal.EfficiencyFactor))
}
