package debug

import (
	"log"
	"os"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (state changes, recordings)
	LevelLive    = 2 // Live info (frames acquired, grabs served)
	LevelVerbose = 3 // Verbose (parameter application, loop decisions)
	LevelTrace   = 4 // Trace (instrument properties, very low level)
)

var (
	level  int
	logger *log.Logger
)

// Init initializes the debug system with a level (0-4).
// 0 = no output
// 1 = important info (start/stop, recordings, faults)
// 2 = live info (frame completions, grab deliveries)
// 3 = verbose (parameter changes, frame restarts, loop decisions)
// 4 = trace (instrument property traffic, very low level)
func Init(debugLevel int) {
	level = debugLevel
	if level > LevelOff {
		logger = log.New(os.Stdout, "[AcqGo] ", log.LstdFlags|log.Lmicroseconds)
	}
}

// --- Level 1 functions (Info): important info ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[INFO] "+format, args...)
	}
}

// Summary prints an important summary (level 1).
func Summary(title string) {
	if level >= LevelOff && logger != nil {
		logger.Printf("═══════════════════════════════════════")
		logger.Printf("  %s", title)
		logger.Printf("═══════════════════════════════════════")
	}
}

// State prints an acquisition state change (level 1).
func State(sourceID string, viewing, recording bool) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[INFO] Source %s: viewing=%v recording=%v", sourceID, viewing, recording)
	}
}

// --- Level 2 functions (Live): real-time info ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	if level >= LevelLive && logger != nil {
		logger.Printf("[LIVE] "+format, args...)
	}
}

// Frame prints a completed frame (level 2).
func Frame(sourceID string, index uint64, record bool) {
	if level >= LevelLive && logger != nil {
		kind := "view"
		if record {
			kind = "record"
		}
		logger.Printf("[LIVE] Source %s: %s frame %d complete", sourceID, kind, index)
	}
}

// Grab prints a served grab request (level 2).
func Grab(kind string, frames int) {
	if level >= LevelLive && logger != nil {
		logger.Printf("[LIVE] Grab %s: delivered %d channel frame(s)", kind, frames)
	}
}

// --- Level 3 functions (Verbose): everything ---

// Verbose prints a level 3 message (verbose).
func Verbose(format string, args ...interface{}) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("[VERBOSE] "+format, args...)
	}
}

// PrintStruct prints a struct in formatted form (level 3).
func PrintStruct(name string, v interface{}) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("[VERBOSE] %s: %+v", name, v)
	}
}

// Section prints a section separator (level 3).
func Section(name string) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		logger.Printf("  %s", name)
		logger.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	}
}

// Step prints a numbered step (level 3).
func Step(num int, description string) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("[VERBOSE] Step %d: %s", num, description)
	}
}

// Value prints a named value in formatted form (level 3).
func Value(name string, value interface{}) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[INFO]   %s = %v", name, value)
	}
}

// --- Level 4 functions (Trace): very low level ---

// Trace prints a level 4 message (trace).
func Trace(format string, args ...interface{}) {
	if level >= LevelTrace && logger != nil {
		logger.Printf("[TRACE] "+format, args...)
	}
}

// Prop prints an instrument property operation (level 4).
func Prop(operation, name string, value interface{}) {
	if level >= LevelTrace && logger != nil {
		logger.Printf("[PROP] %s %s=%v", operation, name, value)
	}
}

// --- General functions ---

// Error prints a debug error (level 1+).
func Error(err error) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[ERROR] %v", err)
	}
}
