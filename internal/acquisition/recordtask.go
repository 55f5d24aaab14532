package acquisition

import (
	"sync"

	"github.com/cverdier/AcqGo/internal/data"
	"github.com/cverdier/AcqGo/internal/params"
)

// RecordTask is a handle to a recording started asynchronously. Grab
// blocks until the recording completes; Close releases the handle,
// aborting the recording if it is still running. Close is idempotent
// and safe whether or not Grab was ever called, so the handle works as
// a scoped resource:
//
//	task := ctrl.NewRecordTask(nil)
//	defer task.Close()
//	frames, err := task.Grab()
type RecordTask struct {
	c     *Controller
	token uint64
	w     *recordWaiter

	grabMu sync.Mutex // serializes the blocking wait

	mu     sync.Mutex
	done   bool
	frames []*data.Frame
	err    error
	fin    chan struct{} // closed once done is set
}

// NewRecordTask starts a recording immediately and returns its handle.
// A non-nil fp replaces the record parameter slot first. Any recording
// already in flight is superseded, exactly as with StartRecording.
func (c *Controller) NewRecordTask(fp params.FrameParameters) *RecordTask {
	if !c.t.Alive() {
		return &RecordTask{done: true, err: ErrClosed}
	}
	c.mu.Lock()
	if fp != nil {
		c.recordParams = fp.Clone()
	}
	token, losers := c.startRecordingLocked()
	w := &recordWaiter{token: token, ch: make(chan grabResult, 1)}
	c.recordWaiters[w] = struct{}{}
	c.mu.Unlock()
	c.wakeLoop()
	for _, l := range losers {
		l.ch <- grabResult{err: ErrSuperseded}
	}
	return &RecordTask{c: c, token: token, w: w, fin: make(chan struct{})}
}

// RecordAsync starts a recording and invokes cb from a fresh goroutine
// once it finishes, with the data or the terminal error.
func (c *Controller) RecordAsync(fp params.FrameParameters, cb func([]*data.Frame, error)) {
	task := c.NewRecordTask(fp)
	go func() {
		frames, err := task.Grab()
		task.Close()
		cb(frames, err)
	}()
}

// completeLocked records the terminal result and wakes a blocked Grab.
// Caller holds t.mu.
func (t *RecordTask) completeLocked(res grabResult) {
	t.done = true
	t.frames = res.frames
	t.err = res.err
	if t.fin != nil {
		close(t.fin)
	}
}

// poll consumes a pending result without blocking. Caller holds t.mu.
func (t *RecordTask) poll() bool {
	if t.done || t.w == nil {
		return true
	}
	select {
	case res := <-t.w.ch:
		t.completeLocked(res)
		return true
	default:
		return false
	}
}

// IsFinished reports whether the recording has reached a terminal
// state (data, abort, supersession or fault).
func (t *RecordTask) IsFinished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.poll()
}

// Grab blocks until the recording completes and returns its data. After
// the first return, subsequent calls return the same result.
func (t *RecordTask) Grab() ([]*data.Frame, error) {
	t.grabMu.Lock()
	defer t.grabMu.Unlock()

	for {
		t.mu.Lock()
		if t.poll() {
			frames, err := t.frames, t.err
			t.mu.Unlock()
			return frames, err
		}
		t.mu.Unlock()

		// The result arrives on the waiter channel, but a concurrent
		// IsFinished may consume it first; fin covers that path.
		select {
		case res := <-t.w.ch:
			t.mu.Lock()
			if !t.done {
				t.completeLocked(res)
			}
			t.mu.Unlock()
		case <-t.fin:
		}
	}
}

// Cancel aborts the recording if it is still the live one. Waiters,
// including a blocked Grab, observe ErrAborted.
func (t *RecordTask) Cancel() {
	if t.c != nil {
		t.c.abortRecordingToken(t.token)
	}
}

// Close releases the task. If the recording is still running it is
// aborted first, so Close never leaves an orphaned recording behind.
// Idempotent; safe on every exit path.
func (t *RecordTask) Close() {
	t.Cancel()
	// Taking grabMu keeps Close from consuming the result out from
	// under a concurrently blocked Grab; Cancel above guarantees that
	// Grab terminates.
	t.grabMu.Lock()
	defer t.grabMu.Unlock()
	t.mu.Lock()
	t.poll()
	t.mu.Unlock()
}
