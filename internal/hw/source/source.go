package source

import (
	"context"
	"time"

	"github.com/cverdier/AcqGo/internal/params"
)

// ChannelData is the raw output of one channel for one frame: a
// row-major uint16 sample buffer plus its shape.
type ChannelData struct {
	Channel int
	Data    []uint16
	Width   int
	Height  int
}

// Source is the abstract interface to one frame-producing hardware
// device (camera or scan engine), regardless of how it is driven
// (vendor SDK, network protocol, simulation). The acquisition loop is
// the only caller: it owns the device exclusively and serializes all
// access, so implementations do not need to be safe for concurrent
// AcquireFrame calls.
type Source interface {
	// DisplayName is a human-readable name for logs and metadata.
	DisplayName() string

	// ChannelCount returns the number of data channels the device
	// produces (e.g. HAADF + BF detectors on a scan engine).
	ChannelCount() int

	// ChannelName returns the short name of a channel index.
	ChannelName(channel int) string

	// FrameTime estimates how long acquiring one frame takes under the
	// given parameters. Used for scheduling hints and reporting; not a
	// guarantee.
	FrameTime(fp params.FrameParameters) time.Duration

	// AcquireFrame acquires a single frame for the given channels under
	// the given parameters, blocking until the frame completes. A
	// cancelled ctx abandons the frame and returns ctx.Err(); partially
	// acquired data is discarded by the caller.
	AcquireFrame(ctx context.Context, fp params.FrameParameters, channels []int) ([]ChannelData, error)

	// Close releases the device connection.
	Close() error
}
