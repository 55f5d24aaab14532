package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cverdier/AcqGo/internal/debug"
	"github.com/cverdier/AcqGo/internal/params"
)

// SimConfig configures the simulated source.
type SimConfig struct {
	Name          string        // display name (default "Simulated Source")
	Channels      []string      // channel names (default ["default"])
	DefaultWidth  int           // frame width when parameters omit one (default 64)
	DefaultHeight int           // frame height when parameters omit one (default 64)
	FrameTime     time.Duration // fixed frame time; 0 = derive from parameters
}

// Sim is a Source implementation that synthesizes data. Used for
// development on machines without acquisition hardware and for testing
// the controller against controlled frame timing and faults.
type Sim struct {
	cfg SimConfig

	mu       sync.Mutex
	acquired uint64
	fault    error // returned by the next AcquireFrame, then cleared
}

// NewSim creates a simulated source, filling in config defaults.
func NewSim(cfg SimConfig) *Sim {
	if cfg.Name == "" {
		cfg.Name = "Simulated Source"
	}
	if len(cfg.Channels) == 0 {
		cfg.Channels = []string{"default"}
	}
	if cfg.DefaultWidth <= 0 {
		cfg.DefaultWidth = 64
	}
	if cfg.DefaultHeight <= 0 {
		cfg.DefaultHeight = 64
	}
	return &Sim{cfg: cfg}
}

func (s *Sim) DisplayName() string {
	return s.cfg.Name
}

func (s *Sim) ChannelCount() int {
	return len(s.cfg.Channels)
}

func (s *Sim) ChannelName(channel int) string {
	if channel < 0 || channel >= len(s.cfg.Channels) {
		return fmt.Sprintf("channel-%d", channel)
	}
	return s.cfg.Channels[channel]
}

// FrameTime derives the frame time from the parameters: pixel_time_us
// scaled by the frame size if present, otherwise exposure_ms. A fixed
// FrameTime in the config overrides both.
func (s *Sim) FrameTime(fp params.FrameParameters) time.Duration {
	if s.cfg.FrameTime > 0 {
		return s.cfg.FrameTime
	}
	w := fp.Int(params.KeyWidth, s.cfg.DefaultWidth)
	h := fp.Int(params.KeyHeight, s.cfg.DefaultHeight)
	if pt := fp.Float(params.KeyPixelTimeUs, 0); pt > 0 {
		return time.Duration(pt*float64(w)*float64(h)) * time.Microsecond
	}
	if exp := fp.Float(params.KeyExposureMs, 0); exp > 0 {
		return time.Duration(exp * float64(time.Millisecond))
	}
	return time.Millisecond
}

// SetFault makes the next AcquireFrame fail with err, simulating a
// device fault. Pass nil to clear a pending fault.
func (s *Sim) SetFault(err error) {
	s.mu.Lock()
	s.fault = err
	s.mu.Unlock()
}

// Acquired returns how many frames completed since creation.
func (s *Sim) Acquired() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquired
}

// AcquireFrame sleeps for the frame time, then synthesizes a ramp
// pattern per requested channel. The ramp is offset by the frame count
// so consecutive frames differ.
func (s *Sim) AcquireFrame(ctx context.Context, fp params.FrameParameters, channels []int) ([]ChannelData, error) {
	s.mu.Lock()
	fault := s.fault
	s.fault = nil
	n := s.acquired
	s.mu.Unlock()

	if fault != nil {
		return nil, fault
	}

	ft := s.FrameTime(fp)
	timer := time.NewTimer(ft)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		debug.Verbose("Sim: frame abandoned after cancellation")
		return nil, ctx.Err()
	case <-timer.C:
	}

	w := fp.Int(params.KeyWidth, s.cfg.DefaultWidth)
	h := fp.Int(params.KeyHeight, s.cfg.DefaultHeight)
	binning := fp.Int(params.KeyBinning, 1)
	if binning > 1 {
		w /= binning
		h /= binning
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	out := make([]ChannelData, 0, len(channels))
	for _, ch := range channels {
		buf := make([]uint16, w*h)
		for i := range buf {
			buf[i] = uint16((i + int(n) + ch) & 0xffff)
		}
		out = append(out, ChannelData{Channel: ch, Data: buf, Width: w, Height: h})
	}

	s.mu.Lock()
	s.acquired++
	s.mu.Unlock()
	return out, nil
}

func (s *Sim) Close() error {
	return nil
}
