package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

var (
	// ErrCaptureActive is returned when a second capture is started
	// while one is already open. The coordinator is designed to never
	// hit this; the recorder enforces it anyway.
	ErrCaptureActive = errors.New("capture already active")

	// ErrDeviceUnavailable means no input device could be opened.
	ErrDeviceUnavailable = errors.New("capture device unavailable")

	// ErrDeviceLost means a live capture stopped producing frames,
	// typically because the device was unplugged mid-recording.
	ErrDeviceLost = errors.New("capture device lost")
)

// DefaultStallTimeout is how long a live capture may go without
// frames before the watchdog declares the device lost.
const DefaultStallTimeout = 2 * time.Second

// Capture is the exclusive handle to one session's open stream.
// Only the recorder mutates it.
type Capture struct {
	sessionID string
	startedAt time.Time

	mu        sync.Mutex
	pcm       []byte
	stopped   bool
	lastFrame time.Time

	watchdogStop chan struct{}
}

func (c *Capture) SessionID() string { return c.sessionID }

// Recorder is the capture actor: it owns the device, enforces the
// one-stream-at-a-time rule, and buffers frames until the stream is
// stopped or aborted.
type Recorder struct {
	dev          CaptureDevice
	cfg          CaptureConfig
	stallTimeout time.Duration

	mu     sync.Mutex
	active *Capture

	onLost  func(sessionID string, err error)
	onLevel func(level float64)
}

func NewRecorder(dev CaptureDevice, cfg CaptureConfig) *Recorder {
	return &Recorder{
		dev:          dev,
		cfg:          cfg,
		stallTimeout: DefaultStallTimeout,
	}
}

// OnLost registers the callback invoked from the watchdog when a live
// capture loses its device. The handle is already released when the
// callback fires.
func (r *Recorder) OnLost(fn func(sessionID string, err error)) {
	r.onLost = fn
}

// OnLevel registers an optional per-chunk RMS level tap for display.
func (r *Recorder) OnLevel(fn func(level float64)) {
	r.onLevel = fn
}

// SetStallTimeout overrides the device-lost watchdog window.
func (r *Recorder) SetStallTimeout(d time.Duration) {
	r.stallTimeout = d
}

// Start opens the stream and begins buffering frames for sessionID.
func (r *Recorder) Start(sessionID string) (*Capture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return nil, fmt.Errorf("%w: session %s holds the stream", ErrCaptureActive, r.active.sessionID)
	}

	c := &Capture{
		sessionID:    sessionID,
		startedAt:    time.Now(),
		lastFrame:    time.Now(),
		watchdogStop: make(chan struct{}),
	}

	gain := r.cfg.gain()
	r.dev.SetCallback(func(data []byte, frameCount uint32) {
		// The backend may reuse its buffer; amplify a copy.
		chunk := make([]byte, len(data))
		copy(chunk, data)
		applyGain(chunk, gain)

		c.mu.Lock()
		if c.stopped {
			c.mu.Unlock()
			return
		}
		c.pcm = append(c.pcm, chunk...)
		c.lastFrame = time.Now()
		c.mu.Unlock()

		if r.onLevel != nil && len(chunk) > 1 {
			r.onLevel(rms(chunk))
		}
	})

	if err := r.dev.Start(); err != nil {
		r.dev.ClearCallback()
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	r.active = c
	go r.watchdog(c)
	return c, nil
}

// Stop halts the stream, flushes frames still in flight, and returns
// the complete buffer: everything captured before the stop, nothing
// after.
func (r *Recorder) Stop(c *Capture) (Buffer, error) {
	if err := r.release(c); err != nil {
		return Buffer{}, err
	}

	c.mu.Lock()
	pcm := c.pcm
	c.pcm = nil
	c.mu.Unlock()

	return Buffer{PCM: pcm, SampleRate: r.cfg.SampleRate, Channels: r.cfg.Channels}, nil
}

// Abort halts the stream and discards everything buffered.
func (r *Recorder) Abort(c *Capture) {
	if c == nil {
		return
	}
	if err := r.release(c); err != nil {
		return
	}
	c.mu.Lock()
	c.pcm = nil
	c.mu.Unlock()
}

// release stops the device and detaches the handle. The device's Stop
// blocks until its callback chain has drained, and the stopped flag
// rejects any straggler, so the buffer is final on return. A nil
// handle is refused: the watchdog may have taken the stream already
// and the caller may only hold the cleared slot.
func (r *Recorder) release(c *Capture) error {
	r.mu.Lock()
	if c == nil || r.active != c {
		r.mu.Unlock()
		return fmt.Errorf("capture handle is not active")
	}
	r.active = nil
	r.mu.Unlock()

	close(c.watchdogStop)
	r.dev.Stop()
	r.dev.ClearCallback()

	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	return nil
}

// watchdog declares the device lost when a live capture goes silent
// for longer than the stall timeout. It releases the stream itself so
// the reported session needs no further teardown.
func (r *Recorder) watchdog(c *Capture) {
	interval := r.stallTimeout / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.watchdogStop:
			return
		case <-ticker.C:
			c.mu.Lock()
			stalled := time.Since(c.lastFrame) > r.stallTimeout
			c.mu.Unlock()
			if !stalled {
				continue
			}
			if err := r.release(c); err != nil {
				return // lost the race with Stop/Abort
			}
			c.mu.Lock()
			c.pcm = nil
			c.mu.Unlock()
			if r.onLost != nil {
				r.onLost(c.sessionID, ErrDeviceLost)
			}
			return
		}
	}
}

func rms(data []byte) float64 {
	var sumSquares float64
	for i := 0; i+1 < len(data); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(data[i:]))
		normalized := float64(sample) / 32768.0
		sumSquares += normalized * normalized
	}
	return math.Sqrt(sumSquares / float64(len(data)/2))
}
