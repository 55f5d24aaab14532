package acquisition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cverdier/AcqGo/internal/data"
	"github.com/cverdier/AcqGo/internal/debug"
	"github.com/cverdier/AcqGo/internal/hw/source"
	"github.com/cverdier/AcqGo/internal/params"
)

// run is the acquisition loop. It is the only goroutine that touches
// the source: external callers post requests through the shared state
// and the loop observes them between frames. The loop idles (no CPU)
// while neither viewing nor recording.
func (c *Controller) run() error {
	for {
		c.mu.Lock()
		for !c.viewing && !c.recording {
			c.mu.Unlock()
			select {
			case <-c.t.Dying():
				return nil
			case <-c.wake:
			}
			c.mu.Lock()
		}

		// A graceful stop posted while no view frame was in flight takes
		// effect before the next frame starts.
		if c.stopRequested {
			c.stopViewingLocked()
			c.mu.Unlock()
			continue
		}

		// Record frames take priority so a recording started during
		// viewing completes promptly; viewing resumes right after.
		if c.recording {
			c.mu.Unlock()
			c.runRecordFrame()
		} else {
			c.mu.Unlock()
			c.runViewFrame()
		}

		select {
		case <-c.t.Dying():
			return nil
		default:
		}
	}
}

// stopViewingLocked ends view mode and fails waiters that can no longer
// be satisfied (no further view frames will be produced).
func (c *Controller) stopViewingLocked() {
	c.viewing = false
	c.stopRequested = false
	c.setViewingGauge(false)
	losers := c.drainViewWaitersLocked()
	debug.State(c.sourceID, false, c.recording)
	for _, w := range losers {
		w.ch <- grabResult{err: ErrAborted}
	}
}

// runViewFrame acquires one frame under the current view parameters and
// delivers it to every qualifying waiter. Called without the lock held.
func (c *Controller) runViewFrame() {
	c.mu.Lock()
	fp := c.viewParams.Clone()
	gen := c.viewGen
	runID := c.viewRunID
	index := c.viewFrameIndex
	channels := c.enabledChannelsLocked()
	ctx, cancel := context.WithCancel(context.Background())
	c.inflight = inflightView
	c.inflightCancel = cancel
	c.mu.Unlock()

	started := time.Now()
	chans, err := c.src.AcquireFrame(ctx, fp, channels)
	completed := time.Now()
	cancel()

	c.mu.Lock()
	c.inflight = inflightNone
	c.inflightCancel = nil

	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Abort or parameter change: the partial frame is discarded.
			c.countDroppedLocked()
			c.mu.Unlock()
			return
		}
		c.faultLocked(err)
		return
	}

	if gen != c.viewGen {
		// Parameters changed while this frame was in flight; it must
		// not be observed by anyone.
		c.countDroppedLocked()
		c.mu.Unlock()
		return
	}

	frames := c.buildFrames(fp, chans, runID, index, started, completed, false)
	c.viewFrameIndex++
	c.stats.FramesAcquired++
	if c.met != nil {
		c.met.FramesAcquired.Inc()
	}

	var deliver []*viewWaiter
	for w := range c.viewWaiters {
		if gen >= w.minGen {
			delete(c.viewWaiters, w)
			deliver = append(deliver, w)
		}
	}
	if c.stopRequested {
		c.stopViewingLocked()
	}
	c.mu.Unlock()

	debug.Frame(c.sourceID, index, false)
	for _, w := range deliver {
		w.ch <- grabResult{frames: frames}
	}
	if len(deliver) > 0 {
		debug.Grab("view", len(frames))
	}
}

// runRecordFrame acquires the single frame of the live recording,
// resolves its waiters and hands the bundle to the sink. Called without
// the lock held.
func (c *Controller) runRecordFrame() {
	c.mu.Lock()
	fp := c.recordSnapshot.Clone()
	token := c.recordToken
	runID := c.recordRunID
	channels := c.enabledChannelsLocked()
	ctx, cancel := context.WithCancel(context.Background())
	c.inflight = inflightRecord
	c.inflightCancel = cancel
	c.mu.Unlock()

	started := time.Now()
	chans, err := c.src.AcquireFrame(ctx, fp, channels)
	completed := time.Now()
	cancel()

	c.mu.Lock()
	c.inflight = inflightNone
	c.inflightCancel = nil

	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Aborted, superseded, or closing; waiters were already
			// notified by whoever cancelled.
			c.countDroppedLocked()
			c.mu.Unlock()
			return
		}
		c.faultLocked(err)
		return
	}

	if !c.recording || token != c.recordToken {
		// The recording this frame belonged to no longer exists.
		c.countDroppedLocked()
		c.mu.Unlock()
		return
	}

	frames := c.buildFrames(fp, chans, runID, 0, started, completed, true)
	c.recording = false
	c.stats.FramesAcquired++
	c.stats.Recordings++
	if c.met != nil {
		c.met.FramesAcquired.Inc()
		c.met.Recordings.Inc()
	}
	c.setRecordingGauge(false)

	var deliver []*recordWaiter
	for w := range c.recordWaiters {
		if w.token == token {
			delete(c.recordWaiters, w)
			deliver = append(deliver, w)
		}
	}
	c.mu.Unlock()

	debug.Frame(c.sourceID, 0, true)
	debug.State(c.sourceID, c.IsViewing(), false)
	for _, w := range deliver {
		w.ch <- grabResult{frames: frames}
	}

	// Hand-off to the data-management collaborator. A sink failure does
	// not affect acquisition state; waiters already hold the data.
	if err := c.sink.Write(frames); err != nil {
		debug.Error(fmt.Errorf("sink write failed: %w", err))
	}
}

// faultLocked handles a hardware-communication failure: the loop goes
// idle and every pending waiter observes the fault. Never returns
// partial data. Unlocks c.mu.
func (c *Controller) faultLocked(cause error) {
	err := fmt.Errorf("%w: %w", ErrSourceFault, cause)
	c.viewing = false
	c.recording = false
	c.stopRequested = false
	c.setViewingGauge(false)
	c.setRecordingGauge(false)
	c.stats.SourceFaults++
	if c.met != nil {
		c.met.SourceFaults.Inc()
	}
	vw := c.drainViewWaitersLocked()
	rw := c.drainRecordWaitersLocked()
	c.mu.Unlock()

	debug.Error(err)
	for _, w := range vw {
		w.ch <- grabResult{err: err}
	}
	for _, w := range rw {
		w.ch <- grabResult{err: err}
	}
}

func (c *Controller) countDroppedLocked() {
	c.stats.FramesDropped++
	if c.met != nil {
		c.met.FramesDropped.Inc()
	}
}

// buildFrames wraps raw channel buffers into immutable bundles.
func (c *Controller) buildFrames(fp params.FrameParameters, chans []source.ChannelData, runID uuid.UUID, index uint64, started, completed time.Time, recorded bool) []*data.Frame {
	frames := make([]*data.Frame, 0, len(chans))
	for _, cd := range chans {
		frames = append(frames, &data.Frame{
			SourceID:    c.sourceID,
			RunID:       runID,
			Index:       index,
			Channel:     cd.Channel,
			ChannelName: c.src.ChannelName(cd.Channel),
			Data:        cd.Data,
			Width:       cd.Width,
			Height:      cd.Height,
			Parameters:  fp.Clone(),
			StartedAt:   started,
			CompletedAt: completed,
			Recorded:    recorded,
		})
	}
	return frames
}
