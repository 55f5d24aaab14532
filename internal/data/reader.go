package data

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/cverdier/AcqGo/internal/params"
)

// maxFrameDim caps the per-side frame dimensions accepted on read.
const maxFrameDim = 1 << 15

// ReadRecording reads back a recording file written by FileSink.
func ReadRecording(fs afero.Fs, path string) ([]*Frame, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording file: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}
	defer zr.Close()
	return readFrames(zr)
}

func readFrames(r io.Reader) ([]*Frame, error) {
	magic := make([]byte, len(fileMagic)+1)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if !bytes.Equal(magic[:len(fileMagic)], fileMagic) {
		return nil, fmt.Errorf("not a recording file (bad magic %q)", magic[:len(fileMagic)])
	}
	if magic[len(fileMagic)] != fileVersion {
		return nil, fmt.Errorf("unsupported recording version %d", magic[len(fileMagic)])
	}

	var count uint16
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read channel count: %w", err)
	}

	frames := make([]*Frame, 0, count)
	for i := 0; i < int(count); i++ {
		fr, err := readFrame(r)
		if err != nil {
			return nil, fmt.Errorf("read channel %d: %w", i, err)
		}
		frames = append(frames, fr)
	}
	return frames, nil
}

func readFrame(r io.Reader) (*Frame, error) {
	var metaLen uint32
	if err := binary.Read(r, binary.LittleEndian, &metaLen); err != nil {
		return nil, err
	}
	mb := make([]byte, metaLen)
	if _, err := io.ReadFull(r, mb); err != nil {
		return nil, err
	}
	var meta frameMeta
	if err := json.Unmarshal(mb, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}

	var width, height uint32
	if err := binary.Read(r, binary.LittleEndian, &width); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &height); err != nil {
		return nil, err
	}
	// Bound the allocation: a corrupt header must not demand gigabytes
	// before the sample read fails.
	if width > maxFrameDim || height > maxFrameDim {
		return nil, fmt.Errorf("implausible frame size %dx%d", width, height)
	}
	buf := make([]uint16, width*height)
	if err := binary.Read(r, binary.LittleEndian, buf); err != nil {
		return nil, err
	}

	runID, err := uuid.Parse(meta.RunID)
	if err != nil {
		return nil, fmt.Errorf("parse run id: %w", err)
	}
	started, err := time.Parse(time.RFC3339Nano, meta.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	completed, err := time.Parse(time.RFC3339Nano, meta.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("parse completed_at: %w", err)
	}

	return &Frame{
		SourceID:    meta.SourceID,
		RunID:       runID,
		Index:       meta.Index,
		Channel:     meta.Channel,
		ChannelName: meta.ChannelName,
		Data:        buf,
		Width:       int(width),
		Height:      int(height),
		Parameters:  params.FrameParameters(meta.Parameters),
		StartedAt:   started,
		CompletedAt: completed,
		Recorded:    true,
	}, nil
}
