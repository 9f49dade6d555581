// Speakeasy is a push-to-talk dictation tool: hold a global hotkey,
// speak, release, and the transcript lands on the clipboard.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/bitgineer/Speakeasy-sub001/audio"
	"github.com/bitgineer/Speakeasy-sub001/beep"
	"github.com/bitgineer/Speakeasy-sub001/bus"
	"github.com/bitgineer/Speakeasy-sub001/clipboard"
	"github.com/bitgineer/Speakeasy-sub001/config"
	"github.com/bitgineer/Speakeasy-sub001/dispatch"
	"github.com/bitgineer/Speakeasy-sub001/doctor"
	"github.com/bitgineer/Speakeasy-sub001/history"
	"github.com/bitgineer/Speakeasy-sub001/hotkey"
	"github.com/bitgineer/Speakeasy-sub001/log"
	"github.com/bitgineer/Speakeasy-sub001/session"
	"github.com/bitgineer/Speakeasy-sub001/shutdown"
	"github.com/bitgineer/Speakeasy-sub001/transcriber"
)

var version = "dev"

// cancelSession is installed before the TUI starts so the esc key can
// reach the coordinator.
var cancelSession func()

func initCrashLog() {
	dir, err := log.ResolveDir("", "")
	if err != nil {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(filepath.Join(dir, "crash_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	debug.SetCrashOutput(f, debug.CrashOptions{})
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	log.Errorf(format, args...)
	log.Close()
	os.Exit(1)
}

func run() {
	modeFlag := flag.String("mode", "", "push-to-talk or toggle")
	hotkeyFlag := flag.String("hotkey", "", "trigger combination, e.g. ctrl+shift+space")
	langFlag := flag.String("language", "", "transcription language hint, e.g. en, no")
	providerFlag := flag.String("provider", "", "transcription provider: groq or openai")
	warmupFlag := flag.String("warmup", "", "early-press policy: queue or reject")
	autopasteFlag := flag.Bool("autopaste", false, "paste transcripts into the focused window")
	deviceFlag := flag.String("device", "", "capture device name substring")
	pickDevice := flag.Bool("pick-device", false, "interactively choose the microphone")
	noBeeps := flag.Bool("no-beeps", false, "disable audible recording cues")
	filePath := flag.String("file", "", "transcribe a WAV file and print the text")
	logPath := flag.String("logpath", "", "log directory override")
	diagnose := flag.Bool("diagnose", false, "print hotkey backend diagnostics and exit")
	runDoctor := flag.Bool("doctor", false, "check the environment and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("speakeasy " + version)
		return
	}

	if *diagnose {
		report, err := hotkey.Diagnose()
		fmt.Print(report)
		if err != nil {
			fmt.Fprintf(os.Stderr, "diagnose: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *runDoctor {
		if !doctor.Run(os.Stdout) {
			os.Exit(1)
		}
		return
	}

	confDir, _ := os.UserConfigDir()
	if confDir != "" {
		confDir = filepath.Join(confDir, "speakeasy")
	}
	cfg, err := config.Load(confDir)
	if err != nil {
		fatalf("loading config: %v", err)
	}

	logDir, err := log.ResolveDir(*logPath, cfg.LogDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolving log dir: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logDir)
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "initializing logs: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	// Flags override the config file.
	if *modeFlag != "" {
		cfg.Mode = *modeFlag
	}
	if *hotkeyFlag != "" {
		cfg.Hotkey = *hotkeyFlag
	}
	if *langFlag != "" {
		cfg.Language = *langFlag
	}
	if *providerFlag != "" {
		cfg.Provider = *providerFlag
	}
	if *warmupFlag != "" {
		cfg.Warmup = *warmupFlag
	}
	if *autopasteFlag {
		cfg.Autopaste = true
	}
	if *deviceFlag != "" {
		cfg.Device = *deviceFlag
	}

	mode, err := session.ParseMode(cfg.Mode)
	if err != nil {
		fatalf("config: %v", err)
	}
	warmup, err := session.ParseWarmupPolicy(cfg.Warmup)
	if err != nil {
		fatalf("config: %v", err)
	}
	combo, err := hotkey.ParseCombo(cfg.Hotkey)
	if err != nil {
		fatalf("config: hotkey %q: %v", cfg.Hotkey, err)
	}

	engine, err := newEngine(cfg.Provider)
	if err != nil {
		fatalf("%v", err)
	}
	if cfg.Language != "" {
		engine.SetLanguage(cfg.Language)
	}

	if *filePath != "" {
		runFileMode(engine, *filePath)
		return
	}

	if *noBeeps || !cfg.Beeps {
		beep.Disable()
	}

	audioCtx, err := audio.NewContext()
	if err != nil {
		fatalf("initializing audio: %v", err)
	}
	defer audioCtx.Close()

	device, err := chooseDevice(audioCtx, cfg.Device, *pickDevice)
	if err != nil {
		fatalf("selecting device: %v", err)
	}

	captureCfg := audio.CaptureConfig{
		SampleRate: audio.SampleRate,
		Channels:   audio.Channels,
		Gain:       cfg.InputGain,
	}
	capDev, err := audioCtx.NewCapture(device, captureCfg)
	if err != nil {
		fatalf("opening capture device: %v", err)
	}
	defer capDev.Close()

	recorder := audio.NewRecorder(capDev, captureCfg)

	events := bus.New()
	defer events.Close()

	dispatcher := dispatch.New(engine, events)

	var archive session.Archiver
	histPath := cfg.HistoryFile(filepath.Dir(history.DefaultPath()))
	store, err := history.Open(histPath)
	if err != nil {
		log.Errorf("history disabled: %v", err)
	} else {
		archive = store
		defer store.Close()
	}

	sessionCfg := session.Config{
		Mode:       mode,
		Warmup:     warmup,
		MinCapture: time.Duration(cfg.MinCaptureMs) * time.Millisecond,
	}
	if detector, err := audio.NewSpeechDetector(); err != nil {
		log.Warnf("voice detection unavailable: %v", err)
	} else {
		sessionCfg.SpeechGate = detector.HasSpeech
	}
	coord := session.New(sessionCfg, recorder, dispatcher, events, archive)

	monitor := hotkey.NewMonitor(hotkey.NewSource, combo)
	if err := monitor.Start(); err != nil {
		if errors.Is(err, hotkey.ErrUnavailable) {
			fatalf("hotkey backend unavailable: %v\nrun with -diagnose for details", err)
		}
		fatalf("starting hotkey monitor: %v", err)
	}
	defer monitor.Stop()

	program := NewTUIProgram()
	cancelSession = coord.Cancel

	coord.OnReject(func(err error) {
		program.Send(SessionFailedMsg{Reason: err.Error()})
	})
	recorder.OnLevel(func(level float64) {
		coord.Level(level)
		program.Send(AudioLevelMsg{Level: level})
	})

	go coord.Run()

	warmCtx, warmCancel := context.WithCancel(context.Background())
	defer warmCancel()
	dispatcher.Warm(warmCtx)

	// Trigger edges drive the coordinator.
	go func() {
		for edge := range monitor.Edges() {
			switch edge.Kind {
			case hotkey.TriggerPressed:
				coord.Press()
			case hotkey.TriggerReleased:
				coord.Release()
			}
		}
	}()

	// One subscriber renders, another delivers transcripts.
	tuiSub := events.Subscribe("tui")
	go pumpEvents(program, tuiSub)

	deliverySub := events.Subscribe("delivery")
	go func() {
		for ev := range deliverySub.Events() {
			if ev.Kind != bus.TranscriptionCompleted || ev.Text == "" {
				continue
			}
			if err := clipboard.Deliver(ev.Text, cfg.Autopaste); err != nil {
				log.Errorf("delivering transcript: %v", err)
			}
		}
	}()

	cueSub := events.Subscribe("cues")
	go func() {
		for ev := range cueSub.Events() {
			switch ev.Kind {
			case bus.RecordingStarted:
				beep.PlayStart()
			case bus.RecordingStopped, bus.SessionCancelled:
				beep.PlayEnd()
			case bus.TranscriptionFailed:
				beep.PlayError()
			}
		}
	}()

	// Run the TUI on its own goroutine; Send blocks until the program
	// starts, so the seed messages below go out once it is live.
	tuiDone := make(chan error, 1)
	go func() {
		_, err := program.Run()
		tuiDone <- err
	}()

	if store != nil {
		if last, err := store.LastTranscript(); err == nil && last != "" {
			program.Send(RestoredTranscriptMsg{Text: last})
		}
	}

	program.Send(InfoLinesMsg{
		Mode:   modeLineText(mode, engine),
		Device: deviceLineText(capDev.DeviceName()),
		Hotkey: combo.String(),
	})

	sigCh := make(chan os.Signal, 1)
	shutdown.Notify(sigCh)
	go func() {
		<-sigCh
		program.Quit()
	}()

	log.SessionStart(engine.Name(), mode.String(), combo.String())

	if err := <-tuiDone; err != nil {
		log.Errorf("tui: %v", err)
	}

	coord.Shutdown()
}

func newEngine(provider string) (transcriber.Engine, error) {
	switch provider {
	case "":
		return transcriber.New()
	case "groq":
		key := os.Getenv("GROQ_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("provider groq requires GROQ_API_KEY")
		}
		return transcriber.NewGroq(key), nil
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("provider openai requires OPENAI_API_KEY")
		}
		return transcriber.NewOpenAI(key), nil
	}
	return nil, fmt.Errorf("unknown provider %q", provider)
}

// chooseDevice resolves the capture device: interactive picker when
// asked, otherwise a case-insensitive substring match against the
// configured name, otherwise the system default.
func chooseDevice(ctx audio.Context, configured string, interactive bool) (*audio.DeviceInfo, error) {
	if interactive {
		return audio.SelectDevice(ctx)
	}
	if configured == "" {
		return nil, nil
	}
	devices, err := ctx.Devices()
	if err != nil {
		return nil, err
	}
	want := strings.ToLower(configured)
	for i := range devices {
		if strings.Contains(strings.ToLower(devices[i].Name), want) {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("no capture device matches %q", configured)
}

func modeLineText(mode session.Mode, engine transcriber.Engine) string {
	label := engine.Name()
	if lang := engine.GetLanguage(); lang != "" {
		label += " (" + lang + ")"
	}
	return fmt.Sprintf("[%s | %s]", mode, label)
}

func deviceLineText(name string) string {
	if name == "" {
		name = "system default"
	}
	suffix := ""
	if audio.IsBluetooth(name) {
		suffix = " (BT!)"
	}
	return "mic: " + name + suffix
}
