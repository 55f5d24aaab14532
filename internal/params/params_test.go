package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneIsIndependent(t *testing.T) {
	fp := FrameParameters{KeyExposureMs: 10.0, KeyBinning: 2}
	clone := fp.Clone()
	clone[KeyBinning] = 4

	assert.Equal(t, 2, fp.Int(KeyBinning, 0))
	assert.Equal(t, 4, clone.Int(KeyBinning, 0))
}

func TestCloneNil(t *testing.T) {
	var fp FrameParameters
	assert.Nil(t, fp.Clone())
}

func TestEqual(t *testing.T) {
	a := FrameParameters{KeyExposureMs: 10.0, KeyCenter: FloatPoint{X: 1, Y: 2}}
	b := FrameParameters{KeyExposureMs: 10.0, KeyCenter: FloatPoint{X: 1, Y: 2}}
	c := FrameParameters{KeyExposureMs: 20.0, KeyCenter: FloatPoint{X: 1, Y: 2}}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(FrameParameters{}))
	assert.True(t, FrameParameters{}.Equal(nil))
}

func TestTypedGetters(t *testing.T) {
	fp := FrameParameters{
		KeyExposureMs: 12.5,
		KeyBinning:    2,
		"name":        "fast",
		"blanked":     true,
		KeyCenter:     FloatPoint{X: 0.5, Y: -0.5},
	}

	assert.Equal(t, 12.5, fp.Float(KeyExposureMs, 0))
	assert.Equal(t, 2, fp.Int(KeyBinning, 0))
	assert.Equal(t, 2.0, fp.Float(KeyBinning, 0)) // int readable as float
	assert.Equal(t, "fast", fp.Str("name", ""))
	assert.True(t, fp.Bool("blanked", false))
	assert.Equal(t, FloatPoint{X: 0.5, Y: -0.5}, fp.Point(KeyCenter, FloatPoint{}))

	// defaults when absent or wrong type
	assert.Equal(t, 7.0, fp.Float("missing", 7.0))
	assert.Equal(t, 3, fp.Int("name", 3))
}

func TestIntRejectsFractionalFloat(t *testing.T) {
	fp := FrameParameters{KeyExposureMs: 1.5}
	assert.Equal(t, 9, fp.Int(KeyExposureMs, 9))
}

func TestWith(t *testing.T) {
	var fp FrameParameters
	got := fp.With(KeyBinning, 8)
	assert.Equal(t, 8, got.Int(KeyBinning, 0))
	assert.Nil(t, fp) // original untouched
}

func TestProfileSet(t *testing.T) {
	ps := NewProfileSet(
		Profile{Name: "Focus", Parameters: FrameParameters{KeyExposureMs: 1.0}},
		Profile{Name: "Record", Parameters: FrameParameters{KeyExposureMs: 50.0}},
	)
	require.Equal(t, 2, ps.Count())

	p, err := ps.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "Record", p.Name)
	assert.Equal(t, 1, p.Index)
	assert.Equal(t, 50.0, p.Parameters.Float(KeyExposureMs, 0))

	// returned parameters are a copy
	p.Parameters[KeyExposureMs] = 99.0
	p2, err := ps.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 50.0, p2.Parameters.Float(KeyExposureMs, 0))

	_, err = ps.Get(2)
	assert.Error(t, err)
	assert.Error(t, ps.SetParameters(-1, nil))

	require.NoError(t, ps.SetParameters(0, FrameParameters{KeyExposureMs: 2.0}))
	p0, err := ps.Get(0)
	require.NoError(t, err)
	assert.Equal(t, 2.0, p0.Parameters.Float(KeyExposureMs, 0))
}
