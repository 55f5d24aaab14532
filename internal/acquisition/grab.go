package acquisition

import (
	"context"
	"time"

	"github.com/cverdier/AcqGo/internal/data"
	"github.com/cverdier/AcqGo/internal/params"
)

// grabResult is what a blocking waiter receives: either a complete
// per-channel frame list or a terminal error, never both, never partial.
type grabResult struct {
	frames []*data.Frame
	err    error
}

// viewWaiter waits for the next delivered view frame whose parameter
// generation is at least minGen. Channel capacity 1 so the loop never
// blocks on delivery, even if the waiter gave up.
type viewWaiter struct {
	minGen uint64
	ch     chan grabResult
}

// recordWaiter waits for the completion of the recording identified by
// token.
type recordWaiter struct {
	token uint64
	ch    chan grabResult
}

// GrabNextToFinish waits for the frame currently in flight (or the next
// one if none is) and returns its per-channel data. If the source is
// not viewing, viewing starts implicitly with the current view
// parameters; a pending graceful stop is cancelled, the grab counting
// as an implicit restart. A timeout of 0 waits indefinitely; expiry
// returns ErrTimeout.
func (c *Controller) GrabNextToFinish(ctx context.Context, timeout time.Duration) ([]*data.Frame, error) {
	if !c.t.Alive() {
		return nil, ErrClosed
	}
	c.mu.Lock()
	c.startPlayingLocked()
	w := &viewWaiter{ch: make(chan grabResult, 1)}
	c.viewWaiters[w] = struct{}{}
	c.mu.Unlock()
	c.wakeLoop()
	return c.await(ctx, w.ch, timeout, func() { c.removeViewWaiter(w) })
}

// GrabNextToStart applies the given parameters (nil keeps the current
// ones) and waits for the first frame acquired entirely under them. If
// the parameters changed, the in-flight frame is discarded and the loop
// restarts it immediately under the new parameters; if they are
// unchanged, the in-flight frame already qualifies. Starts viewing
// implicitly if needed.
func (c *Controller) GrabNextToStart(ctx context.Context, fp params.FrameParameters, channels []int, timeout time.Duration) ([]*data.Frame, error) {
	if !c.t.Alive() {
		return nil, ErrClosed
	}
	c.mu.Lock()
	c.applyViewConfigLocked(fp, channels)
	c.startPlayingLocked()
	w := &viewWaiter{minGen: c.viewGen, ch: make(chan grabResult, 1)}
	c.viewWaiters[w] = struct{}{}
	c.mu.Unlock()
	c.wakeLoop()
	return c.await(ctx, w.ch, timeout, func() { c.removeViewWaiter(w) })
}

// Record starts a recording (snapshotting the record parameters, or the
// given ones) and waits for its single frame. On timeout the recording
// is aborted as cleanup and ErrTimeout is returned. A concurrent
// StartRecording supersedes this call, which then returns ErrSuperseded.
func (c *Controller) Record(ctx context.Context, fp params.FrameParameters, channels []int, timeout time.Duration) ([]*data.Frame, error) {
	if !c.t.Alive() {
		return nil, ErrClosed
	}
	c.mu.Lock()
	if fp != nil {
		c.recordParams = fp.Clone()
	}
	if channels != nil {
		c.setEnabledChannelsLocked(channels)
	}
	token, losers := c.startRecordingLocked()
	w := &recordWaiter{token: token, ch: make(chan grabResult, 1)}
	c.recordWaiters[w] = struct{}{}
	c.mu.Unlock()
	c.wakeLoop()
	for _, l := range losers {
		l.ch <- grabResult{err: ErrSuperseded}
	}
	return c.await(ctx, w.ch, timeout, func() {
		c.removeRecordWaiter(w)
		c.abortRecordingToken(token)
	})
}

// await blocks until a result, the timeout, or ctx cancellation.
// giveUp runs on timeout/cancellation to deregister the waiter and do
// per-call cleanup; a result racing with the timeout is discarded.
func (c *Controller) await(ctx context.Context, ch chan grabResult, timeout time.Duration, giveUp func()) ([]*data.Frame, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case res := <-ch:
		return res.frames, res.err
	case <-expired:
		giveUp()
		c.mu.Lock()
		c.stats.GrabTimeouts++
		c.mu.Unlock()
		if c.met != nil {
			c.met.GrabTimeouts.Inc()
		}
		return nil, ErrTimeout
	case <-ctx.Done():
		giveUp()
		return nil, ctx.Err()
	}
}

func (c *Controller) removeViewWaiter(w *viewWaiter) {
	c.mu.Lock()
	delete(c.viewWaiters, w)
	c.mu.Unlock()
}

func (c *Controller) removeRecordWaiter(w *recordWaiter) {
	c.mu.Lock()
	delete(c.recordWaiters, w)
	c.mu.Unlock()
}
