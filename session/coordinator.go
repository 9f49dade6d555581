package session

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bitgineer/Speakeasy-sub001/audio"
	"github.com/bitgineer/Speakeasy-sub001/bus"
	"github.com/bitgineer/Speakeasy-sub001/dispatch"
	"github.com/bitgineer/Speakeasy-sub001/log"
)

// CaptureSource is the slice of the recorder the coordinator uses.
type CaptureSource interface {
	Start(sessionID string) (*audio.Capture, error)
	Stop(c *audio.Capture) (audio.Buffer, error)
	Abort(c *audio.Capture)
	OnLost(fn func(sessionID string, err error))
}

// Transcriber is the slice of the dispatcher the coordinator uses.
type Transcriber interface {
	Ready() bool
	Submit(sessionID string, buf audio.Buffer, deliver func(dispatch.Completion))
	Cancel(sessionID string)
}

// Archiver persists finished sessions. A nil archiver skips persistence.
type Archiver interface {
	Record(rec Record) error
}

// Config carries the coordinator's tunables.
type Config struct {
	Mode       Mode
	Warmup     WarmupPolicy
	MinCapture time.Duration // zero means DefaultMinCapture

	// SpeechGate vets a finished buffer before dispatch; nil accepts
	// everything. A buffer the gate refuses completes as no-speech
	// without an engine round trip.
	SpeechGate func(buf audio.Buffer) bool

	// LevelThreshold is the RMS level above which a tick counts as
	// voiced for the silence monitor. Zero means DefaultLevelThreshold.
	LevelThreshold float64

	// Silence-monitor windows; zero means the package defaults.
	TickInterval     time.Duration
	SilenceWarn      time.Duration
	SilenceAutoClose time.Duration
}

// DefaultLevelThreshold separates room noise from speech on the
// normalized RMS scale.
const DefaultLevelThreshold = 0.01

type msgKind int

const (
	msgPress msgKind = iota
	msgRelease
	msgCancel
	msgDeviceLost
	msgCompletion
)

type message struct {
	kind       msgKind
	sessionID  string // msgDeviceLost
	err        error  // msgDeviceLost
	completion dispatch.Completion
}

type liveSession struct {
	id        string
	startedAt time.Time
	audioMs   int64
}

// Coordinator serializes every input through one inbox and one
// goroutine. All session state below the inbox is loop-owned; no
// locks are needed because nothing else touches it.
type Coordinator struct {
	cfg     Config
	rec     CaptureSource
	disp    Transcriber
	events  *bus.Bus
	archive Archiver

	onReject func(err error)

	inbox chan message
	stop  chan struct{}
	done  chan struct{}

	level    atomic.Uint64 // RMS bits, written by the capture callback
	finished atomic.Int64  // terminal sessions, readable off-loop

	// Loop-owned.
	phase   Phase
	lock    LockState
	cur     *liveSession
	capture *audio.Capture
	silence *silenceMonitor
	ticker  *time.Ticker
	tickCh  <-chan time.Time
}

func New(cfg Config, rec CaptureSource, disp Transcriber, events *bus.Bus, archive Archiver) *Coordinator {
	if cfg.MinCapture == 0 {
		cfg.MinCapture = DefaultMinCapture
	}
	if cfg.LevelThreshold == 0 {
		cfg.LevelThreshold = DefaultLevelThreshold
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.SilenceWarn == 0 {
		cfg.SilenceWarn = DefaultSilenceWarn
	}
	if cfg.SilenceAutoClose == 0 {
		cfg.SilenceAutoClose = DefaultSilenceAutoClose
	}
	c := &Coordinator{
		cfg:     cfg,
		rec:     rec,
		disp:    disp,
		events:  events,
		archive: archive,
		inbox:   make(chan message, 32),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	rec.OnLost(func(sessionID string, err error) {
		c.post(message{kind: msgDeviceLost, sessionID: sessionID, err: err})
	})
	return c
}

// OnReject registers the callback invoked when a press is refused
// before a session exists (engine not ready, device unavailable).
// Must be set before Run.
func (c *Coordinator) OnReject(fn func(err error)) {
	c.onReject = fn
}

// Run consumes the inbox until Shutdown. Call it on its own goroutine.
func (c *Coordinator) Run() {
	defer close(c.done)
	for {
		select {
		case <-c.stop:
			c.drainOnStop()
			return
		case m := <-c.inbox:
			c.handle(m)
		case <-c.tickCh:
			c.handleTick()
		}
	}
}

// Shutdown stops the loop. A live recording is aborted; an in-flight
// transcription is cancelled.
func (c *Coordinator) Shutdown() {
	close(c.stop)
	<-c.done
}

// Press reports a trigger keydown edge.
func (c *Coordinator) Press() { c.post(message{kind: msgPress}) }

// Release reports a trigger keyup edge.
func (c *Coordinator) Release() { c.post(message{kind: msgRelease}) }

// Cancel discards the current session, whatever phase it is in.
func (c *Coordinator) Cancel() { c.post(message{kind: msgCancel}) }

// Finished reports how many sessions reached a terminal outcome.
// Safe from any goroutine.
func (c *Coordinator) Finished() int { return int(c.finished.Load()) }

// Level feeds the latest capture RMS level to the silence monitor.
// Safe from any goroutine; wire it to the recorder's level tap.
func (c *Coordinator) Level(l float64) {
	c.level.Store(math.Float64bits(l))
}

func (c *Coordinator) post(m message) {
	select {
	case c.inbox <- m:
	case <-c.stop:
	}
}

func (c *Coordinator) handle(m message) {
	switch m.kind {
	case msgPress:
		c.handlePress()
	case msgRelease:
		c.handleRelease()
	case msgCancel:
		c.handleCancel()
	case msgDeviceLost:
		c.handleDeviceLost(m.sessionID, m.err)
	case msgCompletion:
		c.handleCompletion(m.completion)
	}
}

func (c *Coordinator) handlePress() {
	switch c.phase {
	case Idle:
		c.startSession()
	case Recording:
		// A press can only arrive here in toggle mode once the first
		// release locked the recording; it is the stop gesture.
		if c.cfg.Mode == Toggle && c.lock == Locked {
			c.finishCapture()
		}
	case Transcribing:
		// Previous session still in flight; single-flight wins.
		log.Debugf("press ignored, session %s still transcribing", c.cur.id)
	}
}

func (c *Coordinator) handleRelease() {
	if c.phase != Recording {
		// Stale release: the keyup after a toggle-stop press, or a
		// release whose press was rejected.
		return
	}
	switch c.cfg.Mode {
	case PushToTalk:
		c.finishCapture()
	case Toggle:
		if c.lock == Unlocked {
			c.lock = Locked
			c.events.Publish(bus.Event{Kind: bus.RecordingLocked, SessionID: c.cur.id})
			log.Debugf("session %s locked open", c.cur.id)
		}
	}
}

func (c *Coordinator) handleCancel() {
	switch c.phase {
	case Idle:
		return
	case Recording:
		c.rec.Abort(c.capture)
		c.capture = nil
	case Transcribing:
		c.disp.Cancel(c.cur.id)
	}
	c.events.Publish(bus.Event{Kind: bus.SessionCancelled, SessionID: c.cur.id})
	c.finish(OutcomeCancelled, "", "cancelled", 0)
}

func (c *Coordinator) handleDeviceLost(sessionID string, err error) {
	if c.phase != Recording || c.cur == nil || c.cur.id != sessionID {
		return
	}
	// The watchdog already released the stream and discarded the buffer.
	c.capture = nil
	log.Errorf("session %s lost its device: %v", sessionID, err)
	c.events.Publish(bus.Event{Kind: bus.TranscriptionFailed, SessionID: sessionID, Reason: err.Error()})
	c.finish(OutcomeFailed, "", err.Error(), 0)
}

func (c *Coordinator) handleCompletion(comp dispatch.Completion) {
	if c.phase != Transcribing || c.cur == nil || c.cur.id != comp.SessionID {
		// Stale: the session it belongs to was cancelled or failed.
		log.Debugf("discarding stale completion for session %s", comp.SessionID)
		return
	}
	if comp.Err != nil {
		c.events.Publish(bus.Event{Kind: bus.TranscriptionFailed, SessionID: comp.SessionID, Reason: comp.Err.Error()})
		c.finish(OutcomeFailed, "", comp.Err.Error(), c.cur.audioMs)
		return
	}
	res := comp.Result
	c.events.Publish(bus.Event{
		Kind:       bus.TranscriptionCompleted,
		SessionID:  comp.SessionID,
		Text:       res.Text,
		DurationMs: res.Elapsed.Milliseconds(),
	})
	if res.NoSpeech {
		c.finish(OutcomeNoSpeech, "", "", c.cur.audioMs)
		return
	}
	log.TranscriptText(res.Text)
	c.finish(OutcomeCompleted, res.Text, "", c.cur.audioMs)
}

func (c *Coordinator) startSession() {
	if c.cfg.Warmup == WarmupReject && !c.disp.Ready() {
		log.Warn("press refused, engine still warming up")
		c.reject(ErrEngineNotReady)
		return
	}

	id := uuid.NewString()
	capture, err := c.rec.Start(id)
	if err != nil {
		log.Errorf("capture start failed: %v", err)
		c.reject(err)
		return
	}

	c.cur = &liveSession{id: id, startedAt: time.Now()}
	c.capture = capture
	c.phase = Recording
	c.lock = Unlocked
	c.level.Store(0)
	c.silence = newSilenceMonitor(c.cfg.TickInterval, c.cfg.SilenceWarn, c.cfg.SilenceAutoClose, c.cfg.Mode == Toggle)
	c.ticker = time.NewTicker(c.cfg.TickInterval)
	c.tickCh = c.ticker.C
	c.events.Publish(bus.Event{Kind: bus.RecordingStarted, SessionID: id})
	log.Debugf("session %s recording (%s)", id, c.cfg.Mode)
}

func (c *Coordinator) stopTicker() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
		c.tickCh = nil
		c.silence = nil
	}
}

func (c *Coordinator) handleTick() {
	if c.phase != Recording || c.silence == nil {
		return
	}
	hasSpeech := math.Float64frombits(c.level.Load()) > c.cfg.LevelThreshold
	switch c.silence.tick(hasSpeech) {
	case silenceWarn:
		c.events.Publish(bus.Event{Kind: bus.SilenceWarning, SessionID: c.cur.id})
	case silenceWarnClear:
		c.events.Publish(bus.Event{Kind: bus.SilenceCleared, SessionID: c.cur.id})
	case silenceAutoClose:
		log.Warnf("session %s auto-closed after sustained silence", c.cur.id)
		c.finishCapture()
	}
}

func (c *Coordinator) finishCapture() {
	c.stopTicker()
	buf, err := c.rec.Stop(c.capture)
	c.capture = nil
	if err != nil {
		// Lost the race with the watchdog; the device-lost message is
		// already queued behind this one and will finish the session.
		return
	}

	c.events.Publish(bus.Event{Kind: bus.RecordingStopped, SessionID: c.cur.id})

	if buf.Duration() < c.cfg.MinCapture {
		log.Debugf("session %s captured %s, below threshold", c.cur.id, buf.Duration().Round(time.Millisecond))
		c.events.Publish(bus.Event{Kind: bus.TranscriptionCompleted, SessionID: c.cur.id})
		c.finish(OutcomeNoSpeech, "", "", buf.Duration().Milliseconds())
		return
	}

	if c.cfg.SpeechGate != nil && !c.cfg.SpeechGate(buf) {
		log.Debugf("session %s captured no voiced frames", c.cur.id)
		c.events.Publish(bus.Event{Kind: bus.TranscriptionCompleted, SessionID: c.cur.id})
		c.finish(OutcomeNoSpeech, "", "", buf.Duration().Milliseconds())
		return
	}

	c.cur.audioMs = buf.Duration().Milliseconds()
	c.phase = Transcribing
	c.events.Publish(bus.Event{Kind: bus.TranscriptionStarted, SessionID: c.cur.id})
	c.disp.Submit(c.cur.id, buf, func(comp dispatch.Completion) {
		c.post(message{kind: msgCompletion, completion: comp})
	})
}

// finish archives the session and re-arms to Idle.
func (c *Coordinator) finish(outcome Outcome, text, reason string, audioMs int64) {
	c.stopTicker()
	total := time.Since(c.cur.startedAt)
	rec := Record{
		SessionID: c.cur.id,
		Mode:      c.cfg.Mode.String(),
		Outcome:   outcome,
		Text:      text,
		Reason:    reason,
		AudioMs:   audioMs,
		TotalMs:   total.Milliseconds(),
		StartedAt: c.cur.startedAt,
	}
	if c.archive != nil {
		if err := c.archive.Record(rec); err != nil {
			log.Errorf("archiving session %s: %v", c.cur.id, err)
		}
	}
	log.SessionSummary(c.cur.id, rec.Mode, string(outcome), float64(audioMs)/1000, float64(total.Milliseconds()))

	c.finished.Add(1)
	c.cur = nil
	c.capture = nil
	c.phase = Idle
	c.lock = Unlocked
}

func (c *Coordinator) reject(err error) {
	if c.onReject != nil {
		c.onReject(err)
	}
}

func (c *Coordinator) drainOnStop() {
	switch c.phase {
	case Recording:
		c.rec.Abort(c.capture)
		c.events.Publish(bus.Event{Kind: bus.SessionCancelled, SessionID: c.cur.id})
		c.finish(OutcomeCancelled, "", "shutdown", 0)
	case Transcribing:
		c.disp.Cancel(c.cur.id)
		c.events.Publish(bus.Event{Kind: bus.SessionCancelled, SessionID: c.cur.id})
		c.finish(OutcomeCancelled, "", "shutdown", 0)
	}
	log.SessionEnd(c.Finished())
}
