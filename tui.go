package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bitgineer/Speakeasy-sub001/bus"
)

// TUI message types
type RecordingStartMsg struct{}
type RecordingLockMsg struct{}
type RecordingStopMsg struct{}
type TranscribingMsg struct{}
type TranscriptMsg struct {
	Text       string
	DurationMs int64
	NoSpeech   bool
}
type RestoredTranscriptMsg struct{ Text string }
type SessionFailedMsg struct{ Reason string }
type SessionCancelledMsg struct{}
type EngineStatusMsg struct {
	Ready  bool
	Reason string
}
type AudioLevelMsg struct{ Level float64 }
type NoVoiceMsg struct{ Warning bool }
type InfoLinesMsg struct {
	Mode   string
	Device string
	Hotkey string
}
type tickMsg time.Time

type tuiPhase int

const (
	tuiIdle tuiPhase = iota
	tuiRecording
	tuiTranscribing
)

var (
	styleRec      = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleLocked   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	styleBusy     = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	styleStandby  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleWarming  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleInfo     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleDim      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleText     = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleNoSpeech = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleErr      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleOK       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleHelp     = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	styleHelpBold = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	styleMeter    = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	styleMeterHot = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type tuiModel struct {
	phase       tuiPhase
	locked      bool
	frame       int
	startedAt   time.Time
	level       float64
	peak        float64
	engineReady bool
	engineErr   string

	lastText   string
	lastErr    string
	noSpeech   bool
	restored   bool
	durationMs int64
	count      int

	noVoice bool

	modeLine   string
	deviceLine string
	hotkeyLine string

	width, height int
}

func NewTUIProgram() *tea.Program {
	return tea.NewProgram(tuiModel{}, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "esc":
			if cancelSession != nil {
				cancelSession()
			}
		}

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case RecordingStartMsg:
		m.phase = tuiRecording
		m.locked = false
		m.startedAt = time.Now()
		m.level = 0
		m.peak = 0
		m.noVoice = false
		m.lastErr = ""

	case RecordingLockMsg:
		m.locked = true

	case RecordingStopMsg:
		m.level = 0

	case TranscribingMsg:
		m.phase = tuiTranscribing

	case TranscriptMsg:
		m.phase = tuiIdle
		m.count++
		m.lastText = msg.Text
		m.noSpeech = msg.NoSpeech
		m.restored = false
		m.durationMs = msg.DurationMs
		m.lastErr = ""

	case RestoredTranscriptMsg:
		// Shown until the first fresh transcript of this run.
		if m.count == 0 && m.lastText == "" {
			m.lastText = msg.Text
			m.restored = true
		}

	case SessionFailedMsg:
		m.phase = tuiIdle
		m.lastErr = msg.Reason

	case SessionCancelledMsg:
		m.phase = tuiIdle

	case EngineStatusMsg:
		m.engineReady = msg.Ready
		m.engineErr = msg.Reason

	case NoVoiceMsg:
		m.noVoice = msg.Warning

	case AudioLevelMsg:
		if m.phase == tuiRecording {
			m.level = m.level*0.6 + msg.Level*0.4
			if msg.Level > m.peak {
				m.peak = msg.Level
			}
		}

	case InfoLinesMsg:
		m.modeLine = msg.Mode
		m.deviceLine = msg.Device
		m.hotkeyLine = msg.Hotkey
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString("\n")

	switch m.phase {
	case tuiRecording:
		elapsed := time.Since(m.startedAt).Seconds()
		if m.locked {
			b.WriteString("  " + styleLocked.Render(fmt.Sprintf("● REC %.1fs [locked]", elapsed)) + "\n")
		} else {
			b.WriteString("  " + styleRec.Render(fmt.Sprintf("● REC %.1fs", elapsed)) + "\n")
		}
		b.WriteString("  " + renderLevelMeter(m.level, m.peak) + "\n")
		if m.noVoice {
			b.WriteString("  " + styleWarming.Render("⚠ no voice detected") + "\n")
		}
	case tuiTranscribing:
		b.WriteString("  " + styleBusy.Render("◌ TRANSCRIBING"+spinner(m.frame)) + "\n\n")
	default:
		b.WriteString("  " + styleStandby.Render("○ STANDBY") + "\n\n")
	}

	if !m.engineReady {
		if m.engineErr != "" {
			b.WriteString("  " + styleErr.Render("engine: "+m.engineErr) + "\n")
		} else {
			b.WriteString("  " + styleWarming.Render("engine warming up"+spinner(m.frame)) + "\n")
		}
	}

	b.WriteString("\n")
	if m.modeLine != "" {
		b.WriteString("  " + styleInfo.Render(m.modeLine) + "\n")
	}
	if m.deviceLine != "" {
		b.WriteString("  " + styleDim.Render(m.deviceLine) + "\n")
	}
	b.WriteString("\n")

	wrapWidth := m.width - 4
	if wrapWidth < 10 {
		wrapWidth = 10
	}

	switch {
	case m.lastErr != "":
		b.WriteString("  " + styleErr.Render("✗ "+m.lastErr) + "\n")
	case m.lastText != "":
		title := fmt.Sprintf("Last transcription (#%d, %dms)", m.count, m.durationMs)
		if m.restored {
			title = "Last transcription (previous run)"
		}
		b.WriteString("  " + styleDim.Render(title) + "\n")
		for _, line := range wrapText(m.lastText, wrapWidth) {
			b.WriteString("  " + styleText.Render(line) + "\n")
		}
		if !m.noSpeech && !m.restored {
			b.WriteString("  " + styleOK.Render("[✓ copied]") + "\n")
		}
	case m.noSpeech && m.count > 0:
		b.WriteString("  " + styleNoSpeech.Render("(no speech detected)") + "\n")
	default:
		b.WriteString("  " + styleDim.Render("No transcriptions yet") + "\n")
	}

	b.WriteString("\n")
	if m.hotkeyLine != "" {
		b.WriteString("  " + styleHelpBold.Render(m.hotkeyLine) + styleHelp.Render(" to record") + "\n")
	}
	b.WriteString("  " + styleHelp.Render("esc cancels, q quits") + "\n")

	return b.String()
}

func renderLevelMeter(level, peak float64) string {
	const width = 30
	filled := int(level * 4 * width)
	if filled > width {
		filled = width
	}
	hot := 0
	if filled > width*3/4 {
		hot = filled - width*3/4
		filled = width * 3 / 4
	}
	cells := []rune(strings.Repeat("▰", filled+hot) + strings.Repeat("▱", width-filled-hot))
	if mark := int(peak * 4 * width); mark > filled+hot && mark < width {
		cells[mark] = '▮'
	}
	return styleMeter.Render(string(cells[:filled])) +
		styleMeterHot.Render(string(cells[filled:filled+hot])) +
		styleDim.Render(string(cells[filled+hot:]))
}

var spinnerFrames = []string{" .  ", " .. ", " ...", "  ..", "   .", "    "}

func spinner(frame int) string {
	return spinnerFrames[frame%len(spinnerFrames)]
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}

// pumpEvents translates bus events into TUI messages until the
// subscription closes.
func pumpEvents(p *tea.Program, sub *bus.Subscriber) {
	for ev := range sub.Events() {
		switch ev.Kind {
		case bus.RecordingStarted:
			p.Send(RecordingStartMsg{})
		case bus.RecordingLocked:
			p.Send(RecordingLockMsg{})
		case bus.RecordingStopped:
			p.Send(RecordingStopMsg{})
		case bus.TranscriptionStarted:
			p.Send(TranscribingMsg{})
		case bus.TranscriptionCompleted:
			p.Send(TranscriptMsg{Text: ev.Text, DurationMs: ev.DurationMs, NoSpeech: ev.Text == ""})
		case bus.TranscriptionFailed:
			p.Send(SessionFailedMsg{Reason: ev.Reason})
		case bus.SessionCancelled:
			p.Send(SessionCancelledMsg{})
		case bus.SilenceWarning:
			p.Send(NoVoiceMsg{Warning: true})
		case bus.SilenceCleared:
			p.Send(NoVoiceMsg{Warning: false})
		case bus.EngineStatus:
			p.Send(EngineStatusMsg{Ready: ev.EngineReady, Reason: ev.Reason})
		}
	}
}
