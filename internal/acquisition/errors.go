package acquisition

import "errors"

// Sentinel errors for blocking grab and record calls. Callers
// distinguish outcomes with errors.Is.
var (
	// ErrTimeout means no qualifying frame arrived within the caller's
	// timeout window.
	ErrTimeout = errors.New("acquisition timed out")

	// ErrAborted means the acquisition was cancelled by AbortPlaying or
	// AbortRecording while the caller was waiting.
	ErrAborted = errors.New("acquisition aborted")

	// ErrSuperseded means a newer StartRecording replaced the recording
	// this caller was waiting on (last write wins, by documented
	// contract).
	ErrSuperseded = errors.New("recording superseded by a newer request")

	// ErrSourceFault wraps a hardware-communication failure. The
	// acquisition loop goes idle; callers must restart explicitly.
	ErrSourceFault = errors.New("hardware source fault")

	// ErrClosed means the controller was closed while the call was
	// pending or before it was issued.
	ErrClosed = errors.New("acquisition controller closed")
)
