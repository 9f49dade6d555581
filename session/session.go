// Package session owns the recording lifecycle. One coordinator
// goroutine consumes an ordered inbox of inputs (hotkey edges, cancel
// requests, device loss, transcription completions) and walks each
// session through its phases, so at most one session is ever live and
// races resolve by arrival order.
package session

import (
	"errors"
	"time"
)

// Phase is where the current session is in its lifecycle. Terminal
// phases are momentary: the coordinator archives the session and
// re-arms to Idle in the same step.
type Phase int

const (
	Idle Phase = iota
	Recording
	Transcribing
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Transcribing:
		return "transcribing"
	}
	return "unknown"
}

// Mode selects how the trigger key maps to the recording window.
type Mode int

const (
	// PushToTalk records while the trigger is held.
	PushToTalk Mode = iota
	// Toggle starts on the first press and stops on the next; the
	// release after the starting press locks the recording open.
	Toggle
)

func (m Mode) String() string {
	if m == Toggle {
		return "toggle"
	}
	return "push-to-talk"
}

// ParseMode maps a config string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "ptt", "push-to-talk", "hold":
		return PushToTalk, nil
	case "toggle":
		return Toggle, nil
	}
	return PushToTalk, errors.New("mode must be push-to-talk or toggle")
}

// LockState tracks whether a toggle recording survived its first
// release. Meaningful only while Recording in Toggle mode.
type LockState int

const (
	Unlocked LockState = iota
	Locked
)

// WarmupPolicy decides what happens to a press that arrives before
// the engine finished warming up.
type WarmupPolicy int

const (
	// WarmupQueue lets the recording proceed; the transcription
	// request itself waits on the engine.
	WarmupQueue WarmupPolicy = iota
	// WarmupReject refuses to start a session until the engine is
	// ready, reporting ErrEngineNotReady.
	WarmupReject
)

// ParseWarmupPolicy maps a config string to a WarmupPolicy.
func ParseWarmupPolicy(s string) (WarmupPolicy, error) {
	switch s {
	case "", "queue":
		return WarmupQueue, nil
	case "reject":
		return WarmupReject, nil
	}
	return WarmupQueue, errors.New("warmup policy must be queue or reject")
}

// ErrEngineNotReady is reported through the reject callback when the
// warm-up policy refuses a press.
var ErrEngineNotReady = errors.New("transcription engine not ready")

// Outcome is how a session ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeNoSpeech  Outcome = "no_speech"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// Record is the archived summary of one finished session.
type Record struct {
	SessionID string
	Mode      string
	Outcome   Outcome
	Text      string
	Reason    string
	AudioMs   int64
	TotalMs   int64
	StartedAt time.Time
}

// DefaultMinCapture is the shortest recording worth transcribing.
// Anything briefer completes as no-speech without touching the engine.
const DefaultMinCapture = 100 * time.Millisecond
