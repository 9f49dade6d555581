package transcriber

import (
	"context"
	"sync"
	"time"

	"github.com/bitgineer/Speakeasy-sub001/audio"
)

// Fake is a scripted engine for tests. Zero value returns empty text
// instantly; fields configure latency, warm-up delay, and outcomes.
type Fake struct {
	mu        sync.Mutex
	lang      string
	TextOut   string
	Err       error
	WarmErr   error
	Latency   time.Duration
	WarmDelay time.Duration

	calls     int
	lastAudio audio.Buffer
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) SetLanguage(lang string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lang = lang
}

func (f *Fake) GetLanguage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lang
}

func (f *Fake) Warm(ctx context.Context) error {
	if f.WarmDelay > 0 {
		select {
		case <-time.After(f.WarmDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.WarmErr
}

func (f *Fake) Transcribe(ctx context.Context, buf audio.Buffer) (Result, error) {
	f.mu.Lock()
	f.calls++
	f.lastAudio = buf
	latency := f.Latency
	text := f.TextOut
	err := f.Err
	f.mu.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Text: text, NoSpeech: text == ""}, nil
}

func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *Fake) LastAudio() audio.Buffer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAudio
}
