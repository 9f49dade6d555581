package audio

import (
	"sync"
	"time"
)

const (
	fakeChunkFrames   = 160 // 10 ms at 16 kHz
	fakeFeedInterval  = time.Millisecond
	fakeBytesPerFrame = 2 // 16-bit mono
)

// FakeDevice is an in-process CaptureDevice for tests. It feeds a
// repeating non-silent PCM chunk while started, can simulate a start
// failure, and can pause feeding to trip the device-lost watchdog.
type FakeDevice struct {
	mu       sync.Mutex
	cb       DataCallback
	paused   bool
	startErr error

	stopFeed chan struct{}
	feedDone chan struct{}
}

func NewFakeDevice() *FakeDevice {
	return &FakeDevice{}
}

// FailStart makes every subsequent Start return err (nil to clear).
func (d *FakeDevice) FailStart(err error) {
	d.mu.Lock()
	d.startErr = err
	d.mu.Unlock()
}

// Pause suspends frame delivery without stopping the device,
// simulating a device that disappeared mid-recording.
func (d *FakeDevice) Pause() {
	d.mu.Lock()
	d.paused = true
	d.mu.Unlock()
}

func (d *FakeDevice) Resume() {
	d.mu.Lock()
	d.paused = false
	d.mu.Unlock()
}

func (d *FakeDevice) Start() error {
	d.mu.Lock()
	if d.startErr != nil {
		err := d.startErr
		d.mu.Unlock()
		return err
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	d.stopFeed = stop
	d.feedDone = done
	d.mu.Unlock()

	chunk := make([]byte, fakeChunkFrames*fakeBytesPerFrame)
	for i := 0; i+1 < len(chunk); i += 2 {
		chunk[i] = byte(i) // non-silent ramp
		chunk[i+1] = byte(i >> 3)
	}

	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			case <-time.After(fakeFeedInterval):
			}
			d.mu.Lock()
			cb := d.cb
			paused := d.paused
			d.mu.Unlock()
			if cb != nil && !paused {
				cb(chunk, fakeChunkFrames)
			}
		}
	}()
	return nil
}

// Stop blocks until the feed goroutine exits, mirroring the blocking
// flush of the real backends.
func (d *FakeDevice) Stop() {
	d.mu.Lock()
	stop := d.stopFeed
	done := d.feedDone
	d.stopFeed = nil
	d.feedDone = nil
	d.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}
}

func (d *FakeDevice) Close() {
	d.Stop()
}

func (d *FakeDevice) SetCallback(cb DataCallback) {
	d.mu.Lock()
	d.cb = cb
	d.mu.Unlock()
}

func (d *FakeDevice) ClearCallback() {
	d.mu.Lock()
	d.cb = nil
	d.mu.Unlock()
}

func (d *FakeDevice) DeviceName() string { return "fake" }
