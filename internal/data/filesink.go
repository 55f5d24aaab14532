package data

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/cverdier/AcqGo/internal/debug"
)

// File format magic and version for persisted recordings.
var fileMagic = []byte("AcqG")

const fileVersion = byte(1)

// FileSink persists recordings as gzip-compressed files, one file per
// recording, named after the recording's run id. The filesystem is an
// afero.Fs so tests run against an in-memory fs.
//
// Layout (inside the gzip stream, little endian):
//
//	magic "AcqG", version byte, channel count uint16, then per channel:
//	metadata length uint32, metadata JSON, width uint32, height uint32,
//	sample data (width*height uint16).
type FileSink struct {
	fs  afero.Fs
	dir string
}

// NewFileSink creates a sink writing under dir, creating it if needed.
func NewFileSink(fs afero.Fs, dir string) (*FileSink, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sink dir: %w", err)
	}
	return &FileSink{fs: fs, dir: dir}, nil
}

// frameMeta is the JSON metadata header stored per channel.
type frameMeta struct {
	SourceID    string         `json:"source_id"`
	RunID       string         `json:"run_id"`
	Index       uint64         `json:"index"`
	Channel     int            `json:"channel"`
	ChannelName string         `json:"channel_name"`
	Parameters  map[string]any `json:"parameters"`
	StartedAt   string         `json:"started_at"`
	CompletedAt string         `json:"completed_at"`
}

// Write persists one recording. The file name is derived from the run
// id and frame index of the first frame.
func (s *FileSink) Write(frames []*Frame) error {
	if len(frames) == 0 {
		return nil
	}
	name := fmt.Sprintf("rec-%s-%d.acq.gz", frames[0].RunID, frames[0].Index)
	path := filepath.Join(s.dir, name)

	f, err := s.fs.Create(path)
	if err != nil {
		return fmt.Errorf("create recording file: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	zw := gzip.NewWriter(bw)

	if err := s.writeFrames(zw, frames); err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close gzip stream: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush recording file: %w", err)
	}
	debug.Live("Sink: wrote recording %s (%d channels)", name, len(frames))
	return nil
}

func (s *FileSink) writeFrames(zw *gzip.Writer, frames []*Frame) error {
	if _, err := zw.Write(fileMagic); err != nil {
		return err
	}
	if _, err := zw.Write([]byte{fileVersion}); err != nil {
		return err
	}
	if err := binary.Write(zw, binary.LittleEndian, uint16(len(frames))); err != nil {
		return err
	}
	for _, fr := range frames {
		meta := frameMeta{
			SourceID:    fr.SourceID,
			RunID:       fr.RunID.String(),
			Index:       fr.Index,
			Channel:     fr.Channel,
			ChannelName: fr.ChannelName,
			Parameters:  fr.Parameters,
			StartedAt:   fr.StartedAt.UTC().Format("2006-01-02T15:04:05.000000Z"),
			CompletedAt: fr.CompletedAt.UTC().Format("2006-01-02T15:04:05.000000Z"),
		}
		mb, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("marshal frame metadata: %w", err)
		}
		if err := binary.Write(zw, binary.LittleEndian, uint32(len(mb))); err != nil {
			return err
		}
		if _, err := zw.Write(mb); err != nil {
			return err
		}
		if err := binary.Write(zw, binary.LittleEndian, uint32(fr.Width)); err != nil {
			return err
		}
		if err := binary.Write(zw, binary.LittleEndian, uint32(fr.Height)); err != nil {
			return err
		}
		if err := binary.Write(zw, binary.LittleEndian, fr.Data); err != nil {
			return err
		}
	}
	return nil
}
