package instrument

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cverdier/AcqGo/internal/params"
)

func TestTypedRoundTrip(t *testing.T) {
	ins := NewInMemory(nil)

	require.NoError(t, ins.SetPropertyAsBool("blanked", true))
	require.NoError(t, ins.SetPropertyAsInt("binning", 4))
	require.NoError(t, ins.SetPropertyAsFloat("eht_v", 100000.0))
	require.NoError(t, ins.SetPropertyAsStr("stage", "main"))
	require.NoError(t, ins.SetPropertyAsFloatPoint("beam_center", params.FloatPoint{X: 0.5, Y: 0.25}))

	b, err := ins.GetPropertyAsBool("blanked")
	require.NoError(t, err)
	assert.True(t, b)

	i, err := ins.GetPropertyAsInt("binning")
	require.NoError(t, err)
	assert.Equal(t, 4, i)

	f, err := ins.GetPropertyAsFloat("eht_v")
	require.NoError(t, err)
	assert.Equal(t, 100000.0, f)

	s, err := ins.GetPropertyAsStr("stage")
	require.NoError(t, err)
	assert.Equal(t, "main", s)

	p, err := ins.GetPropertyAsFloatPoint("beam_center")
	require.NoError(t, err)
	assert.Equal(t, params.FloatPoint{X: 0.5, Y: 0.25}, p)
}

func TestNotFound(t *testing.T) {
	ins := NewInMemory(nil)
	_, err := ins.GetPropertyAsFloat("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTypeMismatch(t *testing.T) {
	ins := NewInMemory(map[string]any{"stage": "main", "eht_v": 100000.0})

	_, err := ins.GetPropertyAsFloat("stage")
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = ins.GetPropertyAsBool("eht_v")
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = ins.GetPropertyAsFloatPoint("stage")
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestNumericCoercion(t *testing.T) {
	ins := NewInMemory(map[string]any{"whole": 42.0, "frac": 1.5, "count": 3})

	// float with no fractional part reads as int
	i, err := ins.GetPropertyAsInt("whole")
	require.NoError(t, err)
	assert.Equal(t, 42, i)

	_, err = ins.GetPropertyAsInt("frac")
	assert.ErrorIs(t, err, ErrTypeMismatch)

	// int reads as float
	f, err := ins.GetPropertyAsFloat("count")
	require.NoError(t, err)
	assert.Equal(t, 3.0, f)
}

func TestMismatchDoesNotMutate(t *testing.T) {
	ins := NewInMemory(map[string]any{"stage": "main"})
	_, err := ins.GetPropertyAsInt("stage")
	require.ErrorIs(t, err, ErrTypeMismatch)

	s, err := ins.GetPropertyAsStr("stage")
	require.NoError(t, err)
	assert.Equal(t, "main", s)
}
