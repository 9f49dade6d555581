package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bitgineer/Speakeasy-sub001/audio"
	"github.com/bitgineer/Speakeasy-sub001/bus"
	"github.com/bitgineer/Speakeasy-sub001/dispatch"
	"github.com/bitgineer/Speakeasy-sub001/transcriber"
)

type memArchive struct {
	mu   sync.Mutex
	recs []Record
}

func (a *memArchive) Record(rec Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recs = append(a.recs, rec)
	return nil
}

func (a *memArchive) all() []Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Record(nil), a.recs...)
}

type fixture struct {
	dev     *audio.FakeDevice
	eng     *transcriber.Fake
	disp    *dispatch.Dispatcher
	events  *bus.Bus
	sub     *bus.Subscriber
	archive *memArchive
	coord   *Coordinator

	mu       sync.Mutex
	rejected []error
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		dev:     audio.NewFakeDevice(),
		eng:     &transcriber.Fake{TextOut: "hello world"},
		events:  bus.New(),
		archive: &memArchive{},
	}
	rec := audio.NewRecorder(f.dev, audio.CaptureConfig{SampleRate: audio.SampleRate, Channels: audio.Channels})
	rec.SetStallTimeout(50 * time.Millisecond)
	f.disp = dispatch.New(f.eng, f.events)
	f.sub = f.events.Subscribe("test")
	f.coord = New(cfg, rec, f.disp, f.events, f.archive)
	f.coord.OnReject(func(err error) {
		f.mu.Lock()
		f.rejected = append(f.rejected, err)
		f.mu.Unlock()
	})
	go f.coord.Run()
	t.Cleanup(f.coord.Shutdown)
	return f
}

func (f *fixture) rejections() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.rejected...)
}

// waitEvent drains the subscription until an event of the wanted kind
// arrives, failing the test on any of the unwanted kinds first.
func waitEvent(t *testing.T, f *fixture, want bus.Kind, reject ...bus.Kind) bus.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-f.sub.Events():
			if ev.Kind == want {
				return ev
			}
			for _, r := range reject {
				if ev.Kind == r {
					t.Fatalf("got %s while waiting for %s", ev.Kind, want)
				}
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %s", want)
		}
	}
}

func expectNoEvent(t *testing.T, f *fixture, kind bus.Kind, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case ev := <-f.sub.Events():
			if ev.Kind == kind {
				t.Fatalf("unexpected %s event for session %s", kind, ev.SessionID)
			}
		case <-deadline:
			return
		}
	}
}

func TestPushToTalkRoundTrip(t *testing.T) {
	f := newFixture(t, Config{Mode: PushToTalk})

	f.coord.Press()
	started := waitEvent(t, f, bus.RecordingStarted)
	if started.SessionID == "" {
		t.Fatal("recording started without a session id")
	}

	time.Sleep(30 * time.Millisecond) // let the fake device feed frames
	f.coord.Release()

	waitEvent(t, f, bus.RecordingStopped)
	waitEvent(t, f, bus.TranscriptionStarted)
	done := waitEvent(t, f, bus.TranscriptionCompleted)
	if done.Text != "hello world" {
		t.Errorf("text = %q", done.Text)
	}
	if done.SessionID != started.SessionID {
		t.Errorf("completion for session %s, started %s", done.SessionID, started.SessionID)
	}

	recs := f.archive.all()
	if len(recs) != 1 {
		t.Fatalf("archived sessions = %d, want 1", len(recs))
	}
	if recs[0].Outcome != OutcomeCompleted || recs[0].Text != "hello world" {
		t.Errorf("archived record = %+v", recs[0])
	}
	if recs[0].AudioMs < 100 {
		t.Errorf("archived audio duration = %dms, want at least the capture window", recs[0].AudioMs)
	}
}

func TestSingleFlightIgnoresPressWhileTranscribing(t *testing.T) {
	f := newFixture(t, Config{Mode: PushToTalk})
	f.eng.Latency = 100 * time.Millisecond

	f.coord.Press()
	first := waitEvent(t, f, bus.RecordingStarted)
	time.Sleep(30 * time.Millisecond)
	f.coord.Release()
	waitEvent(t, f, bus.TranscriptionStarted)

	// Second press lands mid-transcription and must not start anything.
	f.coord.Press()
	f.coord.Release()

	done := waitEvent(t, f, bus.TranscriptionCompleted, bus.RecordingStarted)
	if done.SessionID != first.SessionID {
		t.Errorf("completion for %s, want %s", done.SessionID, first.SessionID)
	}
	expectNoEvent(t, f, bus.RecordingStarted, 50*time.Millisecond)
}

func TestToggleLocksOnFirstRelease(t *testing.T) {
	f := newFixture(t, Config{Mode: Toggle})

	f.coord.Press()
	started := waitEvent(t, f, bus.RecordingStarted)

	f.coord.Release()
	locked := waitEvent(t, f, bus.RecordingLocked, bus.RecordingStopped)
	if locked.SessionID != started.SessionID {
		t.Errorf("locked session %s, want %s", locked.SessionID, started.SessionID)
	}

	time.Sleep(30 * time.Millisecond)

	// Second press stops the locked recording; its release is stale.
	f.coord.Press()
	waitEvent(t, f, bus.RecordingStopped)
	f.coord.Release()

	done := waitEvent(t, f, bus.TranscriptionCompleted)
	if done.Text != "hello world" {
		t.Errorf("text = %q", done.Text)
	}
	expectNoEvent(t, f, bus.RecordingStarted, 50*time.Millisecond)
}

func TestCancelWhileRecordingDiscardsAudio(t *testing.T) {
	f := newFixture(t, Config{Mode: PushToTalk})

	f.coord.Press()
	started := waitEvent(t, f, bus.RecordingStarted)
	time.Sleep(20 * time.Millisecond)

	f.coord.Cancel()
	cancelled := waitEvent(t, f, bus.SessionCancelled, bus.TranscriptionStarted)
	if cancelled.SessionID != started.SessionID {
		t.Errorf("cancelled %s, want %s", cancelled.SessionID, started.SessionID)
	}
	if f.eng.Calls() != 0 {
		t.Errorf("engine calls = %d, want 0", f.eng.Calls())
	}

	recs := f.archive.all()
	if len(recs) != 1 || recs[0].Outcome != OutcomeCancelled {
		t.Fatalf("archived = %+v, want one cancelled record", recs)
	}
}

func TestCancelWhileTranscribingDiscardsLateResult(t *testing.T) {
	f := newFixture(t, Config{Mode: PushToTalk})
	f.eng.Latency = 150 * time.Millisecond

	f.coord.Press()
	time.Sleep(30 * time.Millisecond)
	f.coord.Release()
	waitEvent(t, f, bus.TranscriptionStarted)

	f.coord.Cancel()
	waitEvent(t, f, bus.SessionCancelled)

	// Whatever the engine returns after the cancel must be discarded.
	expectNoEvent(t, f, bus.TranscriptionCompleted, 250*time.Millisecond)

	recs := f.archive.all()
	if len(recs) != 1 || recs[0].Outcome != OutcomeCancelled {
		t.Fatalf("archived = %+v, want one cancelled record", recs)
	}
}

func TestRearmAfterCompletion(t *testing.T) {
	f := newFixture(t, Config{Mode: PushToTalk})

	var ids []string
	for i := 0; i < 3; i++ {
		f.coord.Press()
		started := waitEvent(t, f, bus.RecordingStarted)
		ids = append(ids, started.SessionID)
		time.Sleep(30 * time.Millisecond)
		f.coord.Release()
		waitEvent(t, f, bus.TranscriptionCompleted)
	}

	if ids[0] == ids[1] || ids[1] == ids[2] {
		t.Error("session ids were reused across sessions")
	}
	// Finished is read from the test goroutine while the loop runs;
	// the counter trails the completion event by one loop step.
	deadline := time.Now().Add(time.Second)
	for f.coord.Finished() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := f.coord.Finished(); got != 3 {
		t.Errorf("finished = %d, want 3", got)
	}
	if got := len(f.archive.all()); got != 3 {
		t.Errorf("archived sessions = %d, want 3", got)
	}
}

func TestWarmupRejectRefusesEarlyPress(t *testing.T) {
	f := newFixture(t, Config{Mode: PushToTalk, Warmup: WarmupReject})

	f.coord.Press()
	f.coord.Release()
	expectNoEvent(t, f, bus.RecordingStarted, 50*time.Millisecond)

	rejs := f.rejections()
	if len(rejs) != 1 || !errors.Is(rejs[0], ErrEngineNotReady) {
		t.Fatalf("rejections = %v, want one ErrEngineNotReady", rejs)
	}

	// Once warm, the same gesture works.
	f.disp.Warm(t.Context())
	waitReady(t, f)

	f.coord.Press()
	waitEvent(t, f, bus.RecordingStarted)
	time.Sleep(30 * time.Millisecond)
	f.coord.Release()
	waitEvent(t, f, bus.TranscriptionCompleted)
}

func waitReady(t *testing.T, f *fixture) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !f.disp.Ready() {
		if time.Now().After(deadline) {
			t.Fatal("dispatcher never became ready")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWarmupQueueRecordsBeforeReady(t *testing.T) {
	f := newFixture(t, Config{Mode: PushToTalk, Warmup: WarmupQueue})

	// Engine never warmed; the queue policy records and submits anyway.
	f.coord.Press()
	waitEvent(t, f, bus.RecordingStarted)
	time.Sleep(30 * time.Millisecond)
	f.coord.Release()
	done := waitEvent(t, f, bus.TranscriptionCompleted)
	if done.Text != "hello world" {
		t.Errorf("text = %q", done.Text)
	}
}

func TestShortCaptureSkipsEngine(t *testing.T) {
	f := newFixture(t, Config{Mode: PushToTalk, MinCapture: time.Hour})

	f.coord.Press()
	waitEvent(t, f, bus.RecordingStarted)
	f.coord.Release()

	done := waitEvent(t, f, bus.TranscriptionCompleted, bus.TranscriptionStarted)
	if done.Text != "" {
		t.Errorf("text = %q, want empty", done.Text)
	}
	if f.eng.Calls() != 0 {
		t.Errorf("engine calls = %d, want 0", f.eng.Calls())
	}

	recs := f.archive.all()
	if len(recs) != 1 || recs[0].Outcome != OutcomeNoSpeech {
		t.Fatalf("archived = %+v, want one no_speech record", recs)
	}
}

func TestDeviceLostFailsSessionAndRearms(t *testing.T) {
	f := newFixture(t, Config{Mode: PushToTalk})

	f.coord.Press()
	started := waitEvent(t, f, bus.RecordingStarted)

	f.dev.Pause() // stream goes silent, watchdog fires

	failed := waitEvent(t, f, bus.TranscriptionFailed)
	if failed.SessionID != started.SessionID {
		t.Errorf("failure for %s, want %s", failed.SessionID, started.SessionID)
	}

	recs := f.archive.all()
	if len(recs) != 1 || recs[0].Outcome != OutcomeFailed {
		t.Fatalf("archived = %+v, want one failed record", recs)
	}

	// Device comes back; the next session proceeds normally.
	f.dev.Resume()
	f.coord.Press()
	waitEvent(t, f, bus.RecordingStarted)
	time.Sleep(30 * time.Millisecond)
	f.coord.Release()
	waitEvent(t, f, bus.TranscriptionCompleted)
}

func TestDeviceUnavailableRejectsPress(t *testing.T) {
	f := newFixture(t, Config{Mode: PushToTalk})
	f.dev.FailStart(errors.New("no such device"))

	f.coord.Press()
	f.coord.Release()
	expectNoEvent(t, f, bus.RecordingStarted, 50*time.Millisecond)

	rejs := f.rejections()
	if len(rejs) != 1 || !errors.Is(rejs[0], audio.ErrDeviceUnavailable) {
		t.Fatalf("rejections = %v, want one ErrDeviceUnavailable", rejs)
	}

	f.dev.FailStart(nil)
	f.coord.Press()
	waitEvent(t, f, bus.RecordingStarted)
	time.Sleep(30 * time.Millisecond)
	f.coord.Release()
	waitEvent(t, f, bus.TranscriptionCompleted)
}

func TestEngineFailureArchivesReason(t *testing.T) {
	f := newFixture(t, Config{Mode: PushToTalk})
	f.eng.Err = errors.New("upstream 500")

	f.coord.Press()
	time.Sleep(30 * time.Millisecond)
	f.coord.Release()

	failed := waitEvent(t, f, bus.TranscriptionFailed)
	if failed.Reason == "" {
		t.Error("failure event carries no reason")
	}

	recs := f.archive.all()
	if len(recs) != 1 || recs[0].Outcome != OutcomeFailed {
		t.Fatalf("archived = %+v, want one failed record", recs)
	}
	if recs[0].Reason != "upstream 500" {
		t.Errorf("reason = %q", recs[0].Reason)
	}
}

func TestParseMode(t *testing.T) {
	cases := []struct {
		in   string
		want Mode
		ok   bool
	}{
		{"", PushToTalk, true},
		{"ptt", PushToTalk, true},
		{"push-to-talk", PushToTalk, true},
		{"hold", PushToTalk, true},
		{"toggle", Toggle, true},
		{"bogus", PushToTalk, false},
	}
	for _, tc := range cases {
		got, err := ParseMode(tc.in)
		if (err == nil) != tc.ok {
			t.Errorf("ParseMode(%q) err = %v", tc.in, err)
			continue
		}
		if tc.ok && got != tc.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
