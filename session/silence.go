package session

import "time"

// Silence-monitor defaults. The warning fires when almost no voiced
// ticks land in the trailing warn window; a locked toggle recording
// that stays silent for the whole auto-close window is stopped so a
// forgotten hotkey does not record for hours.
const (
	DefaultTickInterval     = 100 * time.Millisecond
	DefaultSilenceWarn      = 8 * time.Second
	DefaultSilenceAutoClose = 30 * time.Second

	speechMinRatio   = 0.10
	speechClearRatio = 0.25 // hysteresis: clearing needs more voice than warning
)

type silenceEvent int

const (
	silenceNone silenceEvent = iota
	silenceWarn
	silenceWarnClear
	silenceAutoClose
)

// silenceMonitor keeps a ring of per-tick voice flags and reports
// threshold crossings. Owned by the coordinator loop.
type silenceMonitor struct {
	warnAt   int
	windowSz int
	toggle   bool

	ticks       int
	window      []bool
	speechCount int
	warned      bool
}

func newSilenceMonitor(tick, warnAfter, autoCloseAfter time.Duration, toggle bool) *silenceMonitor {
	warnAt := int(warnAfter / tick)
	windowSz := int(autoCloseAfter / tick)
	if warnAt < 1 {
		warnAt = 1
	}
	if windowSz < warnAt {
		windowSz = warnAt
	}
	return &silenceMonitor{
		warnAt:   warnAt,
		windowSz: windowSz,
		toggle:   toggle,
		window:   make([]bool, windowSz),
	}
}

// ratio reports the voiced fraction of the trailing n ticks.
func (m *silenceMonitor) ratio(n int) float64 {
	if m.ticks < n {
		n = m.ticks
	}
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.windowSz)%m.windowSz] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *silenceMonitor) tick(hasSpeech bool) silenceEvent {
	idx := m.ticks % m.windowSz
	if m.ticks >= m.windowSz && m.window[idx] {
		m.speechCount--
	}
	m.window[idx] = hasSpeech
	if hasSpeech {
		m.speechCount++
	}
	m.ticks++

	r := m.ratio(m.warnAt)

	if m.ticks >= m.warnAt && r < speechMinRatio && !m.warned {
		m.warned = true
		return silenceWarn
	}
	if m.warned && r >= speechClearRatio {
		m.warned = false
		return silenceWarnClear
	}

	// Push-to-talk releases on its own; only a locked toggle
	// recording can run away.
	if m.toggle && m.ticks >= m.windowSz &&
		float64(m.speechCount)/float64(m.windowSz) < speechMinRatio {
		return silenceAutoClose
	}

	return silenceNone
}
