package acquisition

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/tomb.v2"

	"github.com/cverdier/AcqGo/internal/data"
	"github.com/cverdier/AcqGo/internal/debug"
	"github.com/cverdier/AcqGo/internal/hw/instrument"
	"github.com/cverdier/AcqGo/internal/hw/source"
	"github.com/cverdier/AcqGo/internal/metrics"
	"github.com/cverdier/AcqGo/internal/params"
)

// State is the combined acquisition state of one hardware source.
// Viewing and recording are independent flags, so four states exist.
type State int

const (
	Idle State = iota
	Viewing
	Recording
	ViewingAndRecording
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Viewing:
		return "viewing"
	case Recording:
		return "recording"
	case ViewingAndRecording:
		return "viewing+recording"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type inflightKind int

const (
	inflightNone inflightKind = iota
	inflightView
	inflightRecord
)

// Stats is a snapshot of acquisition counters.
type Stats struct {
	FramesAcquired       uint64
	FramesDropped        uint64
	Recordings           uint64
	RecordingsSuperseded uint64
	GrabTimeouts         uint64
	SourceFaults         uint64
}

type channelState struct {
	name    string
	enabled bool
}

// Config assembles a Controller. Source and SourceID are required;
// everything else is optional.
type Config struct {
	SourceID   string
	Source     source.Source
	Instrument instrument.Instrument  // typed property passthrough target
	Sink       data.Sink              // receives completed recordings
	Metrics    *metrics.Metrics       // acquisition counters
	Profiles   *params.ProfileSet     // frame-parameter presets
	Defaults   params.FrameParameters // initial view and record parameters
}

// Controller owns the view/record state machine for one hardware
// source. It runs a dedicated acquisition loop goroutine which has
// exclusive access to the source; all other methods are safe to call
// from any goroutine. State mutations are asynchronous requests
// observed by the loop at frame boundaries; grabs block the caller
// until a qualifying frame, a timeout, or a cancellation.
type Controller struct {
	sourceID string
	src      source.Source
	instr    instrument.Instrument
	sink     data.Sink
	met      *metrics.Metrics

	t    tomb.Tomb
	wake chan struct{}

	mu sync.Mutex

	viewing        bool
	stopRequested  bool
	viewParams     params.FrameParameters
	viewGen        uint64 // bumped on every view-parameter application
	viewRunID      uuid.UUID
	viewFrameIndex uint64

	recording      bool
	recordParams   params.FrameParameters // mutable slot
	recordSnapshot params.FrameParameters // locked in at StartRecording
	recordToken    uint64                 // bumped per StartRecording; identifies the live recording
	recordRunID    uuid.UUID

	defaultParams params.FrameParameters
	profiles      *params.ProfileSet
	profileIndex  int

	channels []channelState

	inflight       inflightKind
	inflightCancel context.CancelFunc

	viewWaiters   map[*viewWaiter]struct{}
	recordWaiters map[*recordWaiter]struct{}

	stats Stats
}

// New creates a controller and starts its acquisition loop (idle until
// playing or recording is requested). Callers must Close it.
func New(cfg Config) (*Controller, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("acquisition: source is required")
	}
	if cfg.SourceID == "" {
		return nil, fmt.Errorf("acquisition: source id is required")
	}
	profiles := cfg.Profiles
	if profiles == nil {
		profiles = params.NewProfileSet()
	}
	channels := make([]channelState, cfg.Source.ChannelCount())
	for i := range channels {
		channels[i] = channelState{name: cfg.Source.ChannelName(i), enabled: i == 0}
	}
	c := &Controller{
		sourceID:      cfg.SourceID,
		src:           cfg.Source,
		instr:         cfg.Instrument,
		sink:          cfg.Sink,
		met:           cfg.Metrics,
		wake:          make(chan struct{}, 1),
		viewParams:    cfg.Defaults.Clone(),
		recordParams:  cfg.Defaults.Clone(),
		defaultParams: cfg.Defaults.Clone(),
		profiles:      profiles,
		channels:      channels,
		viewWaiters:   make(map[*viewWaiter]struct{}),
		recordWaiters: make(map[*recordWaiter]struct{}),
	}
	if c.sink == nil {
		c.sink = data.Discard{}
	}
	c.t.Go(c.run)
	debug.Info("Controller for %s ready (%d channels)", cfg.SourceID, len(channels))
	return c, nil
}

// Close stops the acquisition loop, abandoning any in-flight frame, and
// fails all pending waiters with ErrClosed. Idempotent.
func (c *Controller) Close() error {
	c.t.Kill(nil)
	c.mu.Lock()
	if c.inflightCancel != nil {
		c.inflightCancel()
	}
	c.mu.Unlock()
	c.wakeLoop()
	err := c.t.Wait()
	c.failAllWaiters(ErrClosed)
	return err
}

// SourceID returns the resolved id this controller was built for.
func (c *Controller) SourceID() string {
	return c.sourceID
}

// State returns the combined acquisition state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.viewing && c.recording:
		return ViewingAndRecording
	case c.viewing:
		return Viewing
	case c.recording:
		return Recording
	}
	return Idle
}

// IsViewing reports whether view mode is active.
func (c *Controller) IsViewing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewing
}

// IsRecording reports whether a recording is logically in flight.
func (c *Controller) IsRecording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

// Stats returns a snapshot of the acquisition counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// --- view mode ---

// StartPlaying enters view mode. A non-nil fp replaces the view frame
// parameters; nil keeps the current ones. A non-nil channels slice
// replaces the enabled-channel set. Idempotent when already viewing
// with identical parameters; a parameter change applies at the next
// schedulable boundary, abandoning the in-flight frame.
func (c *Controller) StartPlaying(fp params.FrameParameters, channels []int) {
	c.mu.Lock()
	c.applyViewConfigLocked(fp, channels)
	c.startPlayingLocked()
	c.mu.Unlock()
	c.wakeLoop()
}

// StopPlaying requests a graceful stop: view mode ends after the
// current frame completes, never mid-frame.
func (c *Controller) StopPlaying() {
	c.mu.Lock()
	if c.viewing {
		c.stopRequested = true
		debug.Verbose("Source %s: stop requested", c.sourceID)
	}
	c.mu.Unlock()
}

// AbortPlaying forces view mode off immediately, discarding any
// partially acquired frame and unblocking all view waiters with
// ErrAborted. The controller is no longer viewing when this returns.
func (c *Controller) AbortPlaying() {
	c.mu.Lock()
	var losers []*viewWaiter
	if c.viewing {
		c.viewing = false
		c.stopRequested = false
		if c.inflight == inflightView && c.inflightCancel != nil {
			c.inflightCancel()
		}
		losers = c.drainViewWaitersLocked()
		c.setViewingGauge(false)
		debug.State(c.sourceID, false, c.recording)
	}
	c.mu.Unlock()
	for _, w := range losers {
		w.ch <- grabResult{err: ErrAborted}
	}
}

func (c *Controller) startPlayingLocked() {
	c.stopRequested = false
	if c.viewing {
		return
	}
	c.viewing = true
	c.viewRunID = uuid.New()
	c.viewFrameIndex = 0
	c.setViewingGauge(true)
	debug.State(c.sourceID, true, c.recording)
}

// applyViewConfigLocked applies a parameter and/or channel change. Any
// effective change bumps the view generation and abandons the in-flight
// view frame so the new configuration takes effect as soon as possible.
func (c *Controller) applyViewConfigLocked(fp params.FrameParameters, channels []int) {
	changed := false
	if fp != nil && !fp.Equal(c.viewParams) {
		c.viewParams = fp.Clone()
		changed = true
	}
	if channels != nil && c.setEnabledChannelsLocked(channels) {
		changed = true
	}
	if changed {
		c.viewGen++
		debug.Verbose("Source %s: view parameters updated (gen %d)", c.sourceID, c.viewGen)
		if c.viewing && c.inflight == inflightView && c.inflightCancel != nil {
			c.inflightCancel()
		}
	}
}

// --- record mode ---

// StartRecording snapshots the record frame parameters and marks a
// recording in flight. It may run concurrently with viewing. If a
// recording is already active, the newest request wins: the prior
// recording is superseded and its waiters observe ErrSuperseded. No
// mutual exclusion is promised to callers; this is the documented race.
func (c *Controller) StartRecording(fp params.FrameParameters, channels []int) {
	c.mu.Lock()
	if fp != nil {
		c.recordParams = fp.Clone()
	}
	if channels != nil {
		c.setEnabledChannelsLocked(channels)
	}
	_, losers := c.startRecordingLocked()
	c.mu.Unlock()
	c.wakeLoop()
	for _, w := range losers {
		w.ch <- grabResult{err: ErrSuperseded}
	}
}

// AbortRecording forces the in-flight recording off immediately. No
// data item is produced for the aborted run; its waiters observe
// ErrAborted.
func (c *Controller) AbortRecording() {
	c.mu.Lock()
	var losers []*recordWaiter
	if c.recording {
		c.recording = false
		if c.inflight == inflightRecord && c.inflightCancel != nil {
			c.inflightCancel()
		}
		losers = c.drainRecordWaitersLocked()
		c.setRecordingGauge(false)
		debug.State(c.sourceID, c.viewing, false)
	}
	c.mu.Unlock()
	for _, w := range losers {
		w.ch <- grabResult{err: ErrAborted}
	}
}

// startRecordingLocked is the shared entry for StartRecording, Record
// and NewRecordTask. Returns the new recording token and any superseded
// waiters; the caller must notify them after releasing the lock.
func (c *Controller) startRecordingLocked() (uint64, []*recordWaiter) {
	var losers []*recordWaiter
	if c.recording {
		losers = c.drainRecordWaitersLocked()
		if c.inflight == inflightRecord && c.inflightCancel != nil {
			c.inflightCancel()
		}
		c.stats.RecordingsSuperseded++
		if c.met != nil {
			c.met.RecordingsSuperseded.Inc()
		}
		debug.Verbose("Source %s: recording %d superseded", c.sourceID, c.recordToken)
	}
	c.recordToken++
	c.recordSnapshot = c.recordParams.Clone()
	c.recordRunID = uuid.New()
	c.recording = true
	c.setRecordingGauge(true)
	debug.State(c.sourceID, c.viewing, true)
	return c.recordToken, losers
}

// abortRecordingToken aborts the recording identified by token, if it
// is still the live one. Used for timeout cleanup and RecordTask.Close;
// a no-op when the token was already finished or superseded.
func (c *Controller) abortRecordingToken(token uint64) {
	c.mu.Lock()
	var losers []*recordWaiter
	if c.recording && c.recordToken == token {
		c.recording = false
		if c.inflight == inflightRecord && c.inflightCancel != nil {
			c.inflightCancel()
		}
		losers = c.drainRecordWaitersLocked()
		c.setRecordingGauge(false)
	}
	c.mu.Unlock()
	for _, w := range losers {
		w.ch <- grabResult{err: ErrAborted}
	}
}

// --- frame parameters, profiles, channels ---

// GetFrameParameters returns a copy of the view frame parameters.
func (c *Controller) GetFrameParameters() params.FrameParameters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewParams.Clone()
}

// SetFrameParameters replaces the view frame parameters. While viewing,
// the change applies at the next schedulable frame: the in-flight frame
// is abandoned and restarted, so no delivered frame mixes old and new
// parameters. Never retroactive on frames already completed.
func (c *Controller) SetFrameParameters(fp params.FrameParameters) {
	c.mu.Lock()
	c.applyViewConfigLocked(fp, nil)
	c.mu.Unlock()
	c.wakeLoop()
}

// GetRecordFrameParameters returns a copy of the record parameter slot.
func (c *Controller) GetRecordFrameParameters() params.FrameParameters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recordParams.Clone()
}

// SetRecordFrameParameters replaces the record parameter slot. The slot
// is locked in at the moment a recording starts; an in-flight recording
// is not affected.
func (c *Controller) SetRecordFrameParameters(fp params.FrameParameters) {
	c.mu.Lock()
	c.recordParams = fp.Clone()
	c.mu.Unlock()
}

// GetDefaultFrameParameters returns a copy of the default parameters.
func (c *Controller) GetDefaultFrameParameters() params.FrameParameters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.defaultParams.Clone()
}

// SetDefaultFrameParameters replaces the default parameters. Existing
// view/record slots are unaffected.
func (c *Controller) SetDefaultFrameParameters(fp params.FrameParameters) {
	c.mu.Lock()
	c.defaultParams = fp.Clone()
	c.mu.Unlock()
}

// GetFrameParametersForProfileByIndex returns the stored parameters of
// the profile at index.
func (c *Controller) GetFrameParametersForProfileByIndex(index int) (params.FrameParameters, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.profiles.Get(index)
	if err != nil {
		return nil, err
	}
	return p.Parameters, nil
}

// SetFrameParametersForProfileByIndex updates the stored parameters of
// the profile at index. If that profile is currently selected, the view
// parameters follow.
func (c *Controller) SetFrameParametersForProfileByIndex(index int, fp params.FrameParameters) error {
	c.mu.Lock()
	if err := c.profiles.SetParameters(index, fp); err != nil {
		c.mu.Unlock()
		return err
	}
	if index == c.profileIndex {
		c.applyViewConfigLocked(fp, nil)
	}
	c.mu.Unlock()
	c.wakeLoop()
	return nil
}

// ProfileCount returns the number of configured profiles.
func (c *Controller) ProfileCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profiles.Count()
}

// ProfileIndex returns the selected profile index.
func (c *Controller) ProfileIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profileIndex
}

// SetProfileIndex selects a profile and applies its parameters to the
// view slot. Note for callers other than the user-facing surface: the
// selection is visible instrument configuration shared with every other
// consumer of this source, so switching it underneath them is allowed
// but discouraged.
func (c *Controller) SetProfileIndex(index int) error {
	c.mu.Lock()
	p, err := c.profiles.Get(index)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.profileIndex = index
	c.applyViewConfigLocked(p.Parameters, nil)
	c.mu.Unlock()
	c.wakeLoop()
	debug.Info("Source %s: profile %d (%s) selected", c.sourceID, index, p.Name)
	return nil
}

// ChannelCount returns the number of channels the source produces.
func (c *Controller) ChannelCount() int {
	return len(c.channels)
}

// GetChannelState returns the name and enabled flag of a channel.
func (c *Controller) GetChannelState(index int) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.channels) {
		return "", false, fmt.Errorf("channel index %d out of range [0, %d)", index, len(c.channels))
	}
	ch := c.channels[index]
	return ch.name, ch.enabled, nil
}

// SetChannelEnabled toggles a channel. Takes effect at the next frame.
func (c *Controller) SetChannelEnabled(index int, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.channels) {
		return fmt.Errorf("channel index %d out of range [0, %d)", index, len(c.channels))
	}
	c.channels[index].enabled = enabled
	return nil
}

// EnabledChannels returns the enabled channel indexes. Falls back to
// channel 0 when nothing is enabled, so acquisition always yields data.
func (c *Controller) EnabledChannels() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabledChannelsLocked()
}

func (c *Controller) enabledChannelsLocked() []int {
	var out []int
	for i, ch := range c.channels {
		if ch.enabled {
			out = append(out, i)
		}
	}
	if len(out) == 0 {
		out = []int{0}
	}
	return out
}

// setEnabledChannelsLocked replaces the enabled set with the given
// indexes (out-of-range indexes ignored). Reports whether the set
// changed.
func (c *Controller) setEnabledChannelsLocked(indexes []int) bool {
	want := make(map[int]bool, len(indexes))
	for _, i := range indexes {
		if i >= 0 && i < len(c.channels) {
			want[i] = true
		}
	}
	changed := false
	for i := range c.channels {
		if c.channels[i].enabled != want[i] {
			c.channels[i].enabled = want[i]
			changed = true
		}
	}
	return changed
}

// --- frame time ---

// FrameTime estimates the acquisition time of one frame under fp.
func (c *Controller) FrameTime(fp params.FrameParameters) time.Duration {
	return c.src.FrameTime(fp)
}

// CurrentFrameTime estimates the frame time under the view parameters.
func (c *Controller) CurrentFrameTime() time.Duration {
	return c.src.FrameTime(c.GetFrameParameters())
}

// RecordFrameTime estimates the frame time under the record parameters.
func (c *Controller) RecordFrameTime() time.Duration {
	return c.src.FrameTime(c.GetRecordFrameParameters())
}

// --- instrument property passthrough ---

func (c *Controller) instrument() (instrument.Instrument, error) {
	if c.instr == nil {
		return nil, fmt.Errorf("%w: no instrument attached to source %s", instrument.ErrNotFound, c.sourceID)
	}
	return c.instr, nil
}

func (c *Controller) GetPropertyAsBool(name string) (bool, error) {
	ins, err := c.instrument()
	if err != nil {
		return false, err
	}
	return ins.GetPropertyAsBool(name)
}

func (c *Controller) GetPropertyAsInt(name string) (int, error) {
	ins, err := c.instrument()
	if err != nil {
		return 0, err
	}
	return ins.GetPropertyAsInt(name)
}

func (c *Controller) GetPropertyAsFloat(name string) (float64, error) {
	ins, err := c.instrument()
	if err != nil {
		return 0, err
	}
	return ins.GetPropertyAsFloat(name)
}

func (c *Controller) GetPropertyAsStr(name string) (string, error) {
	ins, err := c.instrument()
	if err != nil {
		return "", err
	}
	return ins.GetPropertyAsStr(name)
}

func (c *Controller) GetPropertyAsFloatPoint(name string) (params.FloatPoint, error) {
	ins, err := c.instrument()
	if err != nil {
		return params.FloatPoint{}, err
	}
	return ins.GetPropertyAsFloatPoint(name)
}

func (c *Controller) SetPropertyAsBool(name string, value bool) error {
	ins, err := c.instrument()
	if err != nil {
		return err
	}
	return ins.SetPropertyAsBool(name, value)
}

func (c *Controller) SetPropertyAsInt(name string, value int) error {
	ins, err := c.instrument()
	if err != nil {
		return err
	}
	return ins.SetPropertyAsInt(name, value)
}

func (c *Controller) SetPropertyAsFloat(name string, value float64) error {
	ins, err := c.instrument()
	if err != nil {
		return err
	}
	return ins.SetPropertyAsFloat(name, value)
}

func (c *Controller) SetPropertyAsStr(name string, value string) error {
	ins, err := c.instrument()
	if err != nil {
		return err
	}
	return ins.SetPropertyAsStr(name, value)
}

func (c *Controller) SetPropertyAsFloatPoint(name string, value params.FloatPoint) error {
	ins, err := c.instrument()
	if err != nil {
		return err
	}
	return ins.SetPropertyAsFloatPoint(name, value)
}

// --- internals shared with the loop ---

func (c *Controller) wakeLoop() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Controller) setViewingGauge(on bool) {
	if c.met == nil {
		return
	}
	if on {
		c.met.Viewing.Set(1)
	} else {
		c.met.Viewing.Set(0)
	}
}

func (c *Controller) setRecordingGauge(on bool) {
	if c.met == nil {
		return
	}
	if on {
		c.met.Recording.Set(1)
	} else {
		c.met.Recording.Set(0)
	}
}

func (c *Controller) drainViewWaitersLocked() []*viewWaiter {
	out := make([]*viewWaiter, 0, len(c.viewWaiters))
	for w := range c.viewWaiters {
		delete(c.viewWaiters, w)
		out = append(out, w)
	}
	return out
}

func (c *Controller) drainRecordWaitersLocked() []*recordWaiter {
	out := make([]*recordWaiter, 0, len(c.recordWaiters))
	for w := range c.recordWaiters {
		delete(c.recordWaiters, w)
		out = append(out, w)
	}
	return out
}

func (c *Controller) failAllWaiters(err error) {
	c.mu.Lock()
	vw := c.drainViewWaitersLocked()
	rw := c.drainRecordWaitersLocked()
	c.mu.Unlock()
	for _, w := range vw {
		w.ch <- grabResult{err: err}
	}
	for _, w := range rw {
		w.ch <- grabResult{err: err}
	}
}
