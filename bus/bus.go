// Package bus carries session-lifecycle notifications from the
// coordinator to any number of presentation surfaces. Delivery is
// ordered per subscriber and never blocks the publisher: a slow
// subscriber loses its own oldest pending events, counted per
// subscriber, while everyone else keeps receiving.
package bus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Kind identifies a lifecycle notification.
type Kind string

const (
	RecordingStarted       Kind = "recording_started"
	RecordingLocked        Kind = "recording_locked"
	RecordingStopped       Kind = "recording_stopped"
	TranscriptionStarted   Kind = "transcription_started"
	TranscriptionCompleted Kind = "transcription_completed"
	TranscriptionFailed    Kind = "transcription_failed"
	SessionCancelled       Kind = "session_cancelled"
	SilenceWarning         Kind = "silence_warning"
	SilenceCleared         Kind = "silence_cleared"
	EngineStatus           Kind = "engine_status"
)

// Event is one lifecycle notification. SessionID is empty for
// EngineStatus events, which describe the engine rather than a session.
type Event struct {
	Kind        Kind
	SessionID   string
	Text        string // TranscriptionCompleted only
	Reason      string // TranscriptionFailed only
	DurationMs  int64  // TranscriptionCompleted: engine round-trip time
	EngineReady bool   // EngineStatus only
	At          time.Time
}

// DefaultBuffer is the per-subscriber queue depth.
const DefaultBuffer = 64

type Subscriber struct {
	name    string
	ch      chan Event
	dropped atomic.Uint64
}

// Events returns the subscriber's ordered event channel. The channel
// is closed when the subscriber is unsubscribed or the bus closes.
func (s *Subscriber) Events() <-chan Event { return s.ch }

// Dropped reports how many events were discarded because this
// subscriber fell behind.
func (s *Subscriber) Dropped() uint64 { return s.dropped.Load() }

func (s *Subscriber) Name() string { return s.name }

type Bus struct {
	mu     sync.Mutex
	subs   []*Subscriber
	closed bool
}

func New() *Bus {
	return &Bus{}
}

// Subscribe registers a named subscriber with the default queue depth.
func (b *Bus) Subscribe(name string) *Subscriber {
	return b.SubscribeBuffered(name, DefaultBuffer)
}

// SubscribeBuffered registers a subscriber with an explicit queue depth.
func (b *Bus) SubscribeBuffered(name string, depth int) *Subscriber {
	if depth < 1 {
		depth = 1
	}
	s := &Subscriber{name: name, ch: make(chan Event, depth)}
	b.mu.Lock()
	if b.closed {
		close(s.ch)
	} else {
		b.subs = append(b.subs, s)
	}
	b.mu.Unlock()
	return s
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(s.ch)
			return
		}
	}
}

// Publish delivers ev to every subscriber without blocking. When a
// subscriber's queue is full its oldest pending event is discarded so
// the newest state still arrives in order.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, s := range b.subs {
		select {
		case s.ch <- ev:
			continue
		default:
		}
		// Queue full: evict the oldest entry and retry once. The
		// consumer may have drained concurrently, so both selects
		// need a default arm.
		select {
		case <-s.ch:
			s.dropped.Add(1)
		default:
		}
		select {
		case s.ch <- ev:
		default:
			s.dropped.Add(1)
		}
	}
}

// Close terminates delivery and closes every subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, s := range b.subs {
		close(s.ch)
	}
	b.subs = nil
}
