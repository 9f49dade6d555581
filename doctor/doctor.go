// Package doctor runs non-interactive environment checks so a broken
// setup is diagnosed in one command instead of one failure at a time.
package doctor

import (
	"fmt"
	"io"
	"os"

	"github.com/bitgineer/Speakeasy-sub001/audio"
	"github.com/bitgineer/Speakeasy-sub001/clipboard"
	"github.com/bitgineer/Speakeasy-sub001/hotkey"
	"github.com/bitgineer/Speakeasy-sub001/log"
)

type check struct {
	name string
	run  func() error
}

var checks = []check{
	{"transcription credentials", checkCredentials},
	{"audio capture", checkAudio},
	{"hotkey backend", checkHotkey},
	{"clipboard", checkClipboard},
	{"log directory", checkLogDir},
}

// Run executes every check, printing one PASS/FAIL line each, and
// reports whether all of them passed.
func Run(w io.Writer) bool {
	fmt.Fprintln(w, "speakeasy doctor")
	fmt.Fprintln(w, "================")

	allPass := true
	for i, c := range checks {
		fmt.Fprintf(w, "[%d/%d] %s: ", i+1, len(checks), c.name)
		if err := c.run(); err != nil {
			allPass = false
			fmt.Fprintf(w, "FAIL: %v\n", err)
			continue
		}
		fmt.Fprintln(w, "PASS")
	}

	fmt.Fprintln(w)
	if allPass {
		fmt.Fprintln(w, "All checks passed.")
	} else {
		fmt.Fprintln(w, "Some checks failed. See details above.")
	}
	return allPass
}

func checkCredentials() error {
	if os.Getenv("GROQ_API_KEY") == "" && os.Getenv("OPENAI_API_KEY") == "" {
		return fmt.Errorf("set GROQ_API_KEY or OPENAI_API_KEY")
	}
	return nil
}

func checkAudio() error {
	ctx, err := audio.NewContext()
	if err != nil {
		return fmt.Errorf("audio backend: %w", err)
	}
	defer ctx.Close()

	devices, err := ctx.Devices()
	if err != nil {
		return fmt.Errorf("enumerating devices: %w", err)
	}
	if len(devices) == 0 {
		return fmt.Errorf("no capture devices found")
	}
	return nil
}

func checkHotkey() error {
	_, err := hotkey.Diagnose()
	return err
}

// checkClipboard writes a probe value and reads it back, restoring
// whatever was on the clipboard before.
func checkClipboard() error {
	prev, _ := clipboard.Read()

	const probe = "speakeasy-doctor-probe"
	if err := clipboard.Copy(probe); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	got, err := clipboard.Read()
	if err != nil {
		return fmt.Errorf("read back: %w", err)
	}
	if prev != "" {
		clipboard.Copy(prev)
	}
	if got != probe {
		return fmt.Errorf("read back %q, want %q", got, probe)
	}
	return nil
}

func checkLogDir() error {
	dir, err := log.ResolveDir("", "")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	probe, err := os.CreateTemp(dir, "doctor-*")
	if err != nil {
		return fmt.Errorf("%s not writable: %w", dir, err)
	}
	probe.Close()
	os.Remove(probe.Name())
	return nil
}
