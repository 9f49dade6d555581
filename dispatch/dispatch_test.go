package dispatch

import (
	"errors"
	"testing"
	"time"

	"github.com/bitgineer/Speakeasy-sub001/audio"
	"github.com/bitgineer/Speakeasy-sub001/bus"
	"github.com/bitgineer/Speakeasy-sub001/transcriber"
)

func testBuffer() audio.Buffer {
	return audio.Buffer{
		PCM:        make([]byte, 3200),
		SampleRate: audio.SampleRate,
		Channels:   audio.Channels,
	}
}

func waitCompletion(t *testing.T, ch chan Completion) Completion {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for completion")
		return Completion{}
	}
}

func TestSubmitDeliversResult(t *testing.T) {
	eng := &transcriber.Fake{TextOut: "hello"}
	d := New(eng, bus.New())

	done := make(chan Completion, 1)
	d.Submit("s1", testBuffer(), func(c Completion) { done <- c })

	c := waitCompletion(t, done)
	if c.SessionID != "s1" {
		t.Errorf("session id = %q", c.SessionID)
	}
	if c.Err != nil {
		t.Fatalf("completion error: %v", c.Err)
	}
	if c.Result.Text != "hello" {
		t.Errorf("text = %q", c.Result.Text)
	}
	if d.Inflight() != 0 {
		t.Errorf("inflight = %d after completion", d.Inflight())
	}
}

func TestSubmitDeliversEngineError(t *testing.T) {
	wantErr := errors.New("upstream down")
	eng := &transcriber.Fake{Err: wantErr}
	d := New(eng, bus.New())

	done := make(chan Completion, 1)
	d.Submit("s1", testBuffer(), func(c Completion) { done <- c })

	c := waitCompletion(t, done)
	if !errors.Is(c.Err, wantErr) {
		t.Errorf("err = %v, want %v", c.Err, wantErr)
	}
}

func TestCancelInterruptsInflight(t *testing.T) {
	eng := &transcriber.Fake{TextOut: "slow", Latency: 5 * time.Second}
	d := New(eng, bus.New())

	done := make(chan Completion, 1)
	d.Submit("s1", testBuffer(), func(c Completion) { done <- c })

	time.Sleep(20 * time.Millisecond)
	d.Cancel("s1")

	c := waitCompletion(t, done)
	if c.Err == nil {
		t.Fatal("expected context error after cancel")
	}
	if c.SessionID != "s1" {
		t.Errorf("session id = %q", c.SessionID)
	}
}

func TestCancelUnknownSessionIsNoop(t *testing.T) {
	d := New(&transcriber.Fake{}, bus.New())
	d.Cancel("never-submitted")
}

func TestSingleCompletionPerSubmit(t *testing.T) {
	eng := &transcriber.Fake{TextOut: "once", Latency: 10 * time.Millisecond}
	d := New(eng, bus.New())

	count := 0
	done := make(chan Completion, 4)
	d.Submit("s1", testBuffer(), func(c Completion) { done <- c })

	// Cancel racing a finishing request must not double-deliver.
	d.Cancel("s1")
	d.Cancel("s1")

	waitCompletion(t, done)
	count++

	select {
	case <-done:
		count++
	case <-time.After(100 * time.Millisecond):
	}
	if count != 1 {
		t.Fatalf("completions = %d, want 1", count)
	}
}

func TestSubmitQueuesBehindWarmup(t *testing.T) {
	eng := &transcriber.Fake{TextOut: "queued", WarmDelay: 80 * time.Millisecond}
	d := New(eng, bus.New())
	d.Warm(t.Context())

	start := time.Now()
	done := make(chan Completion, 1)
	d.Submit("s1", testBuffer(), func(c Completion) { done <- c })

	c := waitCompletion(t, done)
	if c.Err != nil {
		t.Fatalf("completion error: %v", c.Err)
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("completion arrived after %s, before warm-up finished", elapsed)
	}
	if !d.Ready() {
		t.Error("not ready after warm-up drained the queue")
	}
}

func TestCancelInterruptsQueuedSubmit(t *testing.T) {
	eng := &transcriber.Fake{TextOut: "never", WarmDelay: 5 * time.Second}
	d := New(eng, bus.New())
	d.Warm(t.Context())

	done := make(chan Completion, 1)
	d.Submit("s1", testBuffer(), func(c Completion) { done <- c })

	time.Sleep(20 * time.Millisecond)
	d.Cancel("s1")

	c := waitCompletion(t, done)
	if c.Err == nil {
		t.Fatal("expected context error for a cancelled queued request")
	}
	if eng.Calls() != 0 {
		t.Errorf("engine called %d times for a request cancelled in the queue", eng.Calls())
	}
}

func TestWarmPublishesEngineStatus(t *testing.T) {
	events := bus.New()
	sub := events.Subscribe("test")
	defer events.Unsubscribe(sub)

	eng := &transcriber.Fake{WarmDelay: 10 * time.Millisecond}
	d := New(eng, events)

	if d.Ready() {
		t.Fatal("ready before warm-up")
	}
	d.Warm(t.Context())

	var statuses []bool
	deadline := time.After(2 * time.Second)
	for len(statuses) < 2 {
		select {
		case ev := <-sub.Events():
			if ev.Kind == bus.EngineStatus {
				statuses = append(statuses, ev.EngineReady)
			}
		case <-deadline:
			t.Fatalf("engine status events = %v, want [false true]", statuses)
		}
	}
	if statuses[0] || !statuses[1] {
		t.Fatalf("engine status sequence = %v, want [false true]", statuses)
	}
	if !d.Ready() {
		t.Error("not ready after successful warm-up")
	}
}

func TestWarmFailureStaysNotReady(t *testing.T) {
	events := bus.New()
	sub := events.Subscribe("test")
	defer events.Unsubscribe(sub)

	eng := &transcriber.Fake{WarmErr: errors.New("no route to host")}
	d := New(eng, events)
	d.Warm(t.Context())

	deadline := time.After(2 * time.Second)
	got := 0
	for got < 2 {
		select {
		case ev := <-sub.Events():
			if ev.Kind == bus.EngineStatus {
				got++
				if ev.EngineReady {
					t.Fatal("engine reported ready despite warm failure")
				}
			}
		case <-deadline:
			t.Fatal("timeout waiting for engine status")
		}
	}
	if d.Ready() {
		t.Error("ready after failed warm-up")
	}
}
