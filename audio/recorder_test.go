package audio

import (
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestRecorder() (*Recorder, *FakeDevice) {
	dev := NewFakeDevice()
	rec := NewRecorder(dev, CaptureConfig{SampleRate: SampleRate, Channels: Channels})
	return rec, dev
}

func waitForFrames(t *testing.T, c *Capture) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		n := len(c.pcm)
		c.mu.Unlock()
		if n > 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("no frames captured within deadline")
}

func TestRecorderStartStop(t *testing.T) {
	rec, _ := newTestRecorder()

	c, err := rec.Start("s1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if c.SessionID() != "s1" {
		t.Errorf("session id = %q", c.SessionID())
	}
	waitForFrames(t, c)

	buf, err := rec.Stop(c)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if len(buf.PCM) == 0 {
		t.Fatal("expected buffered PCM")
	}
	if buf.Frames() == 0 || buf.Duration() == 0 {
		t.Errorf("frames=%d duration=%v", buf.Frames(), buf.Duration())
	}
	if buf.SampleRate != SampleRate || buf.Channels != Channels {
		t.Errorf("buffer format %d/%d", buf.SampleRate, buf.Channels)
	}
}

func TestRecorderSingleStream(t *testing.T) {
	rec, _ := newTestRecorder()

	c, err := rec.Start("s1")
	if err != nil {
		t.Fatal(err)
	}
	defer rec.Abort(c)

	if _, err := rec.Start("s2"); !errors.Is(err, ErrCaptureActive) {
		t.Fatalf("second start err = %v, want ErrCaptureActive", err)
	}
}

func TestRecorderStartDeviceUnavailable(t *testing.T) {
	rec, dev := newTestRecorder()
	dev.FailStart(errors.New("no such device"))

	if _, err := rec.Start("s1"); !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("err = %v, want ErrDeviceUnavailable", err)
	}

	// The failed start must not leave the recorder busy.
	dev.FailStart(nil)
	c, err := rec.Start("s2")
	if err != nil {
		t.Fatalf("start after failure: %v", err)
	}
	rec.Abort(c)
}

func TestRecorderAbortDiscardsAndReleases(t *testing.T) {
	rec, _ := newTestRecorder()

	c, err := rec.Start("s1")
	if err != nil {
		t.Fatal(err)
	}
	waitForFrames(t, c)
	rec.Abort(c)

	c.mu.Lock()
	remaining := len(c.pcm)
	c.mu.Unlock()
	if remaining != 0 {
		t.Errorf("abort left %d buffered bytes", remaining)
	}

	// Device released: a fresh session can start.
	c2, err := rec.Start("s2")
	if err != nil {
		t.Fatalf("start after abort: %v", err)
	}
	rec.Abort(c2)
}

func TestRecorderStopIsFinal(t *testing.T) {
	rec, dev := newTestRecorder()

	c, err := rec.Start("s1")
	if err != nil {
		t.Fatal(err)
	}
	waitForFrames(t, c)
	buf, err := rec.Stop(c)
	if err != nil {
		t.Fatal(err)
	}
	got := len(buf.PCM)

	// Frames delivered after stop must not land anywhere.
	late := make([]byte, 320)
	dev.mu.Lock()
	cb := dev.cb
	dev.mu.Unlock()
	if cb != nil {
		cb(late, 160)
	}
	c.mu.Lock()
	after := len(c.pcm)
	c.mu.Unlock()
	if after != 0 {
		t.Errorf("late frames buffered after stop: %d bytes", after)
	}
	if got == 0 {
		t.Error("stop returned empty buffer")
	}

	// Stopping the same handle twice fails.
	if _, err := rec.Stop(c); err == nil {
		t.Error("expected error on double stop")
	}
}

func TestRecorderNilHandleIsRefused(t *testing.T) {
	rec, _ := newTestRecorder()

	// The coordinator can hold a cleared handle after losing the race
	// with the watchdog; a nil handle must never panic.
	if _, err := rec.Stop(nil); err == nil {
		t.Error("Stop(nil) returned no error")
	}
	rec.Abort(nil)

	// Same while a capture is live: nil never matches the stream.
	c, err := rec.Start("s1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rec.Stop(nil); err == nil {
		t.Error("Stop(nil) returned no error during live capture")
	}
	rec.Abort(nil)

	// The live stream is untouched by the refused calls.
	if _, err := rec.Stop(c); err != nil {
		t.Fatalf("stop after nil calls: %v", err)
	}
}

func TestRecorderAppliesGain(t *testing.T) {
	dev := NewFakeDevice()
	dev.Pause() // suppress the ramp feed; this test drives the callback
	rec := NewRecorder(dev, CaptureConfig{SampleRate: SampleRate, Channels: Channels, Gain: 2})

	c, err := rec.Start("s1")
	if err != nil {
		t.Fatal(err)
	}

	data := make([]byte, 4)
	sample0, sample1 := int16(1000), int16(-20000)
	binary.LittleEndian.PutUint16(data[0:], uint16(sample0))
	binary.LittleEndian.PutUint16(data[2:], uint16(sample1)) // clips at gain 2
	dev.mu.Lock()
	cb := dev.cb
	dev.mu.Unlock()
	cb(data, 2)

	buf, err := rec.Stop(c)
	if err != nil {
		t.Fatal(err)
	}
	if len(buf.PCM) != 4 {
		t.Fatalf("captured %d bytes, want 4", len(buf.PCM))
	}
	if got := int16(binary.LittleEndian.Uint16(buf.PCM[0:])); got != 2000 {
		t.Errorf("sample 0 = %d, want 2000", got)
	}
	if got := int16(binary.LittleEndian.Uint16(buf.PCM[2:])); got != -32768 {
		t.Errorf("sample 1 = %d, want clip at -32768", got)
	}
	if int16(binary.LittleEndian.Uint16(data[0:])) != 1000 {
		t.Error("gain mutated the backend's buffer")
	}
}

func TestRecorderWatchdogDeviceLost(t *testing.T) {
	rec, dev := newTestRecorder()
	rec.SetStallTimeout(30 * time.Millisecond)

	var mu sync.Mutex
	var lostID string
	var lostErr error
	done := make(chan struct{})
	rec.OnLost(func(sessionID string, err error) {
		mu.Lock()
		lostID, lostErr = sessionID, err
		mu.Unlock()
		close(done)
	})

	c, err := rec.Start("s1")
	if err != nil {
		t.Fatal(err)
	}
	waitForFrames(t, c)
	dev.Pause()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watchdog did not fire")
	}

	mu.Lock()
	if lostID != "s1" {
		t.Errorf("lost session = %q, want s1", lostID)
	}
	if !errors.Is(lostErr, ErrDeviceLost) {
		t.Errorf("lost err = %v, want ErrDeviceLost", lostErr)
	}
	mu.Unlock()

	// The watchdog released the stream: next session can start.
	dev.Resume()
	c2, err := rec.Start("s2")
	if err != nil {
		t.Fatalf("start after device lost: %v", err)
	}
	rec.Abort(c2)
}

func TestRecorderLevelTap(t *testing.T) {
	rec, _ := newTestRecorder()

	levels := make(chan float64, 64)
	rec.OnLevel(func(level float64) {
		select {
		case levels <- level:
		default:
		}
	})

	c, err := rec.Start("s1")
	if err != nil {
		t.Fatal(err)
	}
	defer rec.Abort(c)

	select {
	case level := <-levels:
		if level <= 0 {
			t.Errorf("level = %f, want > 0 for non-silent fake input", level)
		}
	case <-time.After(time.Second):
		t.Fatal("no level callback")
	}
}
