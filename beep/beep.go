// Package beep plays short audible cues for the recording lifecycle:
// a high tick when capture opens, a lower tick when it closes, and a
// low double-beep on failure. Playback is asynchronous and best
// effort; a machine with no output sink stays silent.
package beep

import (
	"math"
	"sync/atomic"
)

const sampleRate = 44100

var disabled atomic.Bool

// Disable silences every cue. Used in headless and test runs.
func Disable() { disabled.Store(true) }

type cue struct {
	freq   float64 // Hz
	dur    float64 // seconds per tone
	gap    float64 // seconds between tones, double-beep only
	volume float64
	decay  float64 // exponential envelope rate
	double bool
}

var (
	startCue = cue{freq: 1200, dur: 0.2, volume: 0.5, decay: 60}
	endCue   = cue{freq: 900, dur: 0.2, volume: 0.5, decay: 40}
	errorCue = cue{freq: 350, dur: 0.08, gap: 0.05, volume: 0.6, decay: 30, double: true}
)

// PlayStart plays the capture-opened cue.
func PlayStart() { play(startCue) }

// PlayEnd plays the capture-closed cue.
func PlayEnd() { play(endCue) }

// PlayError plays the failure double-beep.
func PlayError() { play(errorCue) }

func play(c cue) {
	if disabled.Load() {
		return
	}
	go playTone(synth(c))
}

// synth renders a cue to mono 16-bit samples.
func synth(c cue) []int16 {
	tone := func(freq, dur, volume, decay float64) []int16 {
		n := int(sampleRate * dur)
		out := make([]int16, n)
		for i := 0; i < n; i++ {
			t := float64(i) / sampleRate
			envelope := math.Exp(-t * decay)
			out[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
		}
		return out
	}

	samples := tone(c.freq, c.dur, c.volume, c.decay)
	if c.double {
		samples = append(samples, make([]int16, int(sampleRate*c.gap))...)
		samples = append(samples, tone(c.freq, c.dur, c.volume, c.decay)...)
	}
	return samples
}
