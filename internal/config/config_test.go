package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cverdier/AcqGo/internal/params"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validConfig = `
source:
  id: sim_scan
  type: sim
  display_name: "Simulated Scan"
  channels: [HAADF, BF]
  width_px: 128
  height_px: 128
instrument:
  id: autostem
  properties:
    eht_v: 100000.0
    blanked: false
aliases:
  scan: sim_scan
profiles:
  - name: Focus
    parameters:
      width: 128
      height: 128
      pixel_time_us: 0.2
  - name: Record
    parameters:
      width: 512
      height: 512
      pixel_time_us: 1.0
sink:
  output_dir: recordings
defaults:
  profile_index: 1
  grab_timeout_ms: 2500
  debug_level: 2
`

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "sim_scan", cfg.Source.ID)
	assert.Equal(t, []string{"HAADF", "BF"}, cfg.Source.Channels)
	assert.Equal(t, "sim_scan", cfg.Aliases["scan"])
	assert.Equal(t, 2500*time.Millisecond, cfg.GrabTimeout())
	assert.Equal(t, time.Duration(0), cfg.FrameTime())

	require.NotNil(t, cfg.Instrument)
	assert.Equal(t, "autostem", cfg.Instrument.ID)
	assert.Equal(t, false, cfg.Instrument.Properties["blanked"])

	ps := cfg.ProfileSet()
	require.Equal(t, 2, ps.Count())
	rec, err := ps.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "Record", rec.Name)
	assert.Equal(t, 512, rec.Parameters.Int(params.KeyWidth, 0))

	// default parameters follow the selected profile
	def := cfg.DefaultParameters()
	assert.Equal(t, 512, def.Int(params.KeyWidth, 0))
}

func TestLoadMissingSourceID(t *testing.T) {
	_, err := Load(writeConfig(t, "source:\n  type: sim\n"))
	assert.ErrorContains(t, err, "source.id is required")
}

func TestLoadUnknownSourceType(t *testing.T) {
	_, err := Load(writeConfig(t, "source:\n  id: x\n  type: dectris\n"))
	assert.ErrorContains(t, err, "unknown source.type")
}

func TestLoadBadProfileIndex(t *testing.T) {
	content := `
source:
  id: x
profiles:
  - name: only
    parameters: {width: 64}
defaults:
  profile_index: 3
`
	_, err := Load(writeConfig(t, content))
	assert.ErrorContains(t, err, "profile_index")
}

func TestLoadSelfAlias(t *testing.T) {
	content := `
source:
  id: x
aliases:
  scan: scan
`
	_, err := Load(writeConfig(t, content))
	assert.ErrorContains(t, err, "points to itself")
}

func TestLoadDefaultsApplied(t *testing.T) {
	cfg, err := Load(writeConfig(t, "source:\n  id: x\n"))
	require.NoError(t, err)

	assert.Equal(t, "sim", cfg.Source.Type)
	assert.Equal(t, 5*time.Second, cfg.GrabTimeout())
	assert.Equal(t, 0, cfg.Defaults.DebugLevel)
	assert.Nil(t, cfg.DefaultParameters())
}

func TestLoadBadDebugLevel(t *testing.T) {
	content := `
source:
  id: x
defaults:
  debug_level: 9
`
	_, err := Load(writeConfig(t, content))
	assert.ErrorContains(t, err, "debug_level")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
