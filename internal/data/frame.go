package data

import (
	"time"

	"github.com/google/uuid"

	"github.com/cverdier/AcqGo/internal/params"
)

// Frame is a completed data-and-metadata bundle for one channel of one
// acquired frame. Frames are immutable once delivered: the acquisition
// loop never touches Data again, and consumers must not modify it.
type Frame struct {
	SourceID    string
	RunID       uuid.UUID // identifies one viewing run or one recording
	Index       uint64    // frame number within the run
	Channel     int
	ChannelName string

	Data   []uint16 // row-major samples
	Width  int
	Height int

	// Parameters is the snapshot the frame was acquired under, fixed at
	// the moment acquisition of this frame started.
	Parameters params.FrameParameters

	StartedAt   time.Time
	CompletedAt time.Time
	Recorded    bool // true for record-mode frames
}

// Sink receives completed recording bundles. It is the boundary to the
// external data-management collaborator (persistence, display); the
// acquisition controller hands bundles off and never owns them after.
type Sink interface {
	// Write persists one completed recording: the per-channel frames of
	// a single record-mode acquisition.
	Write(frames []*Frame) error
}

// Discard is a Sink that drops everything. Useful when no persistence
// collaborator is wired.
type Discard struct{}

func (Discard) Write([]*Frame) error { return nil }
