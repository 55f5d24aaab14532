package data

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cverdier/AcqGo/internal/params"
)

func testFrame(runID uuid.UUID, channel int, name string) *Frame {
	buf := make([]uint16, 8*4)
	for i := range buf {
		buf[i] = uint16(i * (channel + 1))
	}
	return &Frame{
		SourceID:    "sim_scan",
		RunID:       runID,
		Index:       3,
		Channel:     channel,
		ChannelName: name,
		Data:        buf,
		Width:       8,
		Height:      4,
		Parameters:  params.FrameParameters{params.KeyExposureMs: 10.0, params.KeyBinning: 2},
		StartedAt:   time.Now().Add(-time.Second),
		CompletedAt: time.Now(),
		Recorded:    true,
	}
}

func TestFileSinkRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	sink, err := NewFileSink(fs, "recordings")
	require.NoError(t, err)

	runID := uuid.New()
	in := []*Frame{testFrame(runID, 0, "HAADF"), testFrame(runID, 1, "BF")}
	require.NoError(t, sink.Write(in))

	path := filepath.Join("recordings", "rec-"+runID.String()+"-3.acq.gz")
	exists, err := afero.Exists(fs, path)
	require.NoError(t, err)
	require.True(t, exists)

	out, err := ReadRecording(fs, path)
	require.NoError(t, err)
	require.Len(t, out, 2)

	for i, fr := range out {
		assert.Equal(t, in[i].SourceID, fr.SourceID)
		assert.Equal(t, in[i].RunID, fr.RunID)
		assert.Equal(t, in[i].Index, fr.Index)
		assert.Equal(t, in[i].Channel, fr.Channel)
		assert.Equal(t, in[i].ChannelName, fr.ChannelName)
		assert.Equal(t, in[i].Width, fr.Width)
		assert.Equal(t, in[i].Height, fr.Height)
		assert.Equal(t, in[i].Data, fr.Data)
		// JSON round-trip keeps parameter values readable
		assert.Equal(t, 10.0, fr.Parameters.Float(params.KeyExposureMs, 0))
		assert.Equal(t, 2, fr.Parameters.Int(params.KeyBinning, 0))
	}
}

func TestFileSinkEmptyWrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	sink, err := NewFileSink(fs, "recordings")
	require.NoError(t, err)
	assert.NoError(t, sink.Write(nil))

	entries, err := afero.ReadDir(fs, "recordings")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// writeRaw builds a single-channel recording stream by hand, so tests
// can produce headers the sink itself never writes.
func writeRaw(t *testing.T, fs afero.Fs, path string, meta frameMeta, width, height uint32, samples []uint16) {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(fileMagic)
	require.NoError(t, err)
	_, err = zw.Write([]byte{fileVersion})
	require.NoError(t, err)
	require.NoError(t, binary.Write(zw, binary.LittleEndian, uint16(1)))
	mb, err := json.Marshal(meta)
	require.NoError(t, err)
	require.NoError(t, binary.Write(zw, binary.LittleEndian, uint32(len(mb))))
	_, err = zw.Write(mb)
	require.NoError(t, err)
	require.NoError(t, binary.Write(zw, binary.LittleEndian, width))
	require.NoError(t, binary.Write(zw, binary.LittleEndian, height))
	require.NoError(t, binary.Write(zw, binary.LittleEndian, samples))
	require.NoError(t, zw.Close())
	require.NoError(t, afero.WriteFile(fs, path, buf.Bytes(), 0o644))
}

func TestReadRejectsBadTimestamp(t *testing.T) {
	fs := afero.NewMemMapFs()
	meta := frameMeta{
		RunID:       uuid.New().String(),
		StartedAt:   "yesterday",
		CompletedAt: "2026-01-02T03:04:06.000000Z",
	}
	writeRaw(t, fs, "bad.acq.gz", meta, 2, 2, make([]uint16, 4))

	_, err := ReadRecording(fs, "bad.acq.gz")
	assert.ErrorContains(t, err, "started_at")
}

func TestReadRejectsImplausibleFrameSize(t *testing.T) {
	fs := afero.NewMemMapFs()
	meta := frameMeta{
		RunID:       uuid.New().String(),
		StartedAt:   "2026-01-02T03:04:05.000000Z",
		CompletedAt: "2026-01-02T03:04:06.000000Z",
	}
	writeRaw(t, fs, "huge.acq.gz", meta, 1<<31, 1<<31, nil)

	_, err := ReadRecording(fs, "huge.acq.gz")
	assert.ErrorContains(t, err, "implausible frame size")
}

func TestReadRejectsBadMagic(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "bogus.acq.gz", []byte("not gzip at all"), 0o644))

	_, err := ReadRecording(fs, "bogus.acq.gz")
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	assert.NoError(t, Discard{}.Write([]*Frame{testFrame(uuid.New(), 0, "HAADF")}))
}
