package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cverdier/AcqGo/internal/hw/instrument"
	"github.com/cverdier/AcqGo/internal/hw/source"
)

func TestResolveAliasChain(t *testing.T) {
	r := New()
	r.AddAlias("scan", "superscan")
	r.AddAlias("superscan", "sim_scan")

	id, err := r.Resolve("scan")
	require.NoError(t, err)
	assert.Equal(t, "sim_scan", id)

	// unknown ids resolve to themselves
	id, err = r.Resolve("other")
	require.NoError(t, err)
	assert.Equal(t, "other", id)
}

func TestResolveCycle(t *testing.T) {
	r := New()
	r.AddAlias("a", "b")
	r.AddAlias("b", "a")

	_, err := r.Resolve("a")
	assert.ErrorContains(t, err, "alias cycle")
}

func TestSourceLookupThroughAlias(t *testing.T) {
	r := New()
	sim := source.NewSim(source.SimConfig{FrameTime: time.Millisecond})
	r.RegisterSource("sim_scan", sim)
	r.AddAlias("scan", "sim_scan")

	got, err := r.SourceByID("scan")
	require.NoError(t, err)
	assert.Same(t, source.Source(sim), got)

	_, err = r.SourceByID("camera")
	assert.ErrorContains(t, err, "no source registered")
}

func TestInstrumentLookup(t *testing.T) {
	r := New()
	ins := instrument.NewInMemory(nil)
	r.RegisterInstrument("autostem", ins)
	r.AddAlias("stem", "autostem")

	got, err := r.InstrumentByID("stem")
	require.NoError(t, err)
	assert.Same(t, instrument.Instrument(ins), got)

	_, err = r.InstrumentByID("nothing")
	assert.Error(t, err)
}
