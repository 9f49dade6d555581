// Package dispatch runs transcription requests off the coordinator's
// loop. Submit never blocks; every submitted session gets exactly one
// completion back, even when cancelled mid-flight.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/bitgineer/Speakeasy-sub001/audio"
	"github.com/bitgineer/Speakeasy-sub001/bus"
	"github.com/bitgineer/Speakeasy-sub001/log"
	"github.com/bitgineer/Speakeasy-sub001/transcriber"
)

// Completion is the single terminal outcome of one submitted request.
type Completion struct {
	SessionID string
	Result    transcriber.Result
	Err       error
}

type Dispatcher struct {
	engine transcriber.Engine
	events *bus.Bus

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
	warming  chan struct{} // non-nil while a warm-up is in progress
	ready    bool
	warmErr  error
}

func New(engine transcriber.Engine, events *bus.Bus) *Dispatcher {
	return &Dispatcher{
		engine:   engine,
		events:   events,
		inflight: make(map[string]context.CancelFunc),
	}
}

// Warm initializes the engine in the background and publishes engine
// status on the bus. Until it finishes, Ready reports false and
// submitted requests queue behind it.
func (d *Dispatcher) Warm(ctx context.Context) {
	warmed := make(chan struct{})
	d.mu.Lock()
	d.warming = warmed
	d.mu.Unlock()

	d.events.Publish(bus.Event{Kind: bus.EngineStatus, EngineReady: false, At: time.Now()})
	go func() {
		start := time.Now()
		err := d.engine.Warm(ctx)

		d.mu.Lock()
		d.ready = err == nil
		d.warmErr = err
		d.warming = nil
		d.mu.Unlock()
		close(warmed)

		if err != nil {
			log.Errorf("engine warm-up failed: %v", err)
			d.events.Publish(bus.Event{Kind: bus.EngineStatus, EngineReady: false, Reason: err.Error(), At: time.Now()})
			return
		}
		log.Infof("engine %s ready in %s", d.engine.Name(), time.Since(start).Round(time.Millisecond))
		d.events.Publish(bus.Event{Kind: bus.EngineStatus, EngineReady: true, At: time.Now()})
	}()
}

// Ready reports whether the engine finished warming up. The
// coordinator consults this before starting a session when the
// warm-up policy rejects early captures.
func (d *Dispatcher) Ready() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ready
}

// Submit starts transcribing buf and returns immediately. deliver is
// called exactly once with the outcome, from the worker goroutine. A
// request submitted mid-warm-up queues until the warm-up finishes.
func (d *Dispatcher) Submit(sessionID string, buf audio.Buffer, deliver func(Completion)) {
	ctx, cancel := context.WithCancel(context.Background())

	d.mu.Lock()
	d.inflight[sessionID] = cancel
	warming := d.warming
	d.mu.Unlock()

	go func() {
		defer func() {
			d.mu.Lock()
			delete(d.inflight, sessionID)
			d.mu.Unlock()
			cancel()
		}()

		if warming != nil {
			select {
			case <-warming:
				// A failed warm-up still lets the request through; the
				// engine call reports its own error.
			case <-ctx.Done():
				deliver(Completion{SessionID: sessionID, Err: ctx.Err()})
				return
			}
		}

		res, err := d.engine.Transcribe(ctx, buf)
		deliver(Completion{SessionID: sessionID, Result: res, Err: err})
	}()
}

// Cancel aborts an in-flight request. Best effort: the request may
// already be finishing, in which case its completion is delivered
// normally and the caller discards it by session id.
func (d *Dispatcher) Cancel(sessionID string) {
	d.mu.Lock()
	cancel, ok := d.inflight[sessionID]
	d.mu.Unlock()
	if ok {
		cancel()
	}
}

// Inflight reports how many requests are still running.
func (d *Dispatcher) Inflight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inflight)
}
