// Package transcriber is the transcription-engine capability: audio
// in, text out, with a warm-up step that may take a while on first
// use.
package transcriber

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/bitgineer/Speakeasy-sub001/audio"
)

// Result is the outcome of one transcription request.
type Result struct {
	Text       string
	NoSpeech   bool // engine returned no words
	RateLimit  string
	Confidence float64
	Elapsed    time.Duration
	Metrics    *NetworkMetrics
}

// Engine accepts a finished recording and returns text. Transcribe
// blocks; the dispatcher runs it off the coordinator's loop and
// cancels it through ctx. Warm performs one-time initialization
// (TLS pre-dial for the hosted engines, model load for local ones)
// and may take tens of seconds.
type Engine interface {
	Name() string
	SetLanguage(lang string)
	GetLanguage() string
	Warm(ctx context.Context) error
	Transcribe(ctx context.Context, buf audio.Buffer) (Result, error)
}

type baseEngine struct {
	client *TracedClient
	apiURL string
	lang   string
}

func (b *baseEngine) SetLanguage(lang string) { b.lang = lang }

func (b *baseEngine) GetLanguage() string { return b.lang }

func (b *baseEngine) Warm(ctx context.Context) error {
	return b.client.Warm(ctx)
}

// New picks an engine from the environment.
func New() (Engine, error) {
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		return NewGroq(key), nil
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return NewOpenAI(key), nil
	}
	return nil, fmt.Errorf("set GROQ_API_KEY or OPENAI_API_KEY environment variable")
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}
