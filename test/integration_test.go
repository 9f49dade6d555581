//go:build integration

package test_test

import (
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

var testBinary string

func TestMain(m *testing.M) {
	testBinary = os.Getenv("SPEAKEASY_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "SPEAKEASY_TEST_BIN not set; build the binary and point the variable at it")
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func writeSilenceWAV(t *testing.T, durationS float64) string {
	t.Helper()
	const headerSize = 44
	const sampleRate = 16000
	numSamples := int(sampleRate * durationS)
	dataSize := numSamples * 2

	buf := make([]byte, headerSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(headerSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], sampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], sampleRate*2)
	binary.LittleEndian.PutUint16(buf[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	path := filepath.Join(t.TempDir(), "silence.wav")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func runBinary(t *testing.T, args ...string) (string, error) {
	t.Helper()
	logDir := t.TempDir()
	cmd := exec.Command(testBinary, append([]string{"-logpath", logDir}, args...)...)
	cmd.Env = os.Environ()
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func TestVersionFlag(t *testing.T) {
	out, err := runBinary(t, "-version")
	if err != nil {
		t.Fatalf("binary exited with error: %v\noutput: %s", err, out)
	}
	if !strings.Contains(out, "speakeasy") {
		t.Errorf("version output = %q", out)
	}
}

func TestDoctorPrintsEveryCheck(t *testing.T) {
	// Exit status depends on the host environment; only the report
	// format is asserted.
	out, _ := runBinary(t, "-doctor")
	for _, want := range []string{"speakeasy doctor", "transcription credentials", "audio capture", "hotkey backend"} {
		if !strings.Contains(out, want) {
			t.Errorf("doctor output missing %q:\n%s", want, out)
		}
	}
}

func TestFileModeSilence(t *testing.T) {
	if os.Getenv("GROQ_API_KEY") == "" && os.Getenv("OPENAI_API_KEY") == "" {
		t.Skip("no transcription credentials in environment")
	}

	wav := writeSilenceWAV(t, 1.0)
	out, err := runBinary(t, "-file", wav)
	if err != nil {
		t.Fatalf("file mode failed: %v\noutput: %s", err, out)
	}
	if !strings.Contains(out, "no speech") {
		t.Errorf("expected no-speech report for silence, got: %s", out)
	}
}

func TestFileModeRejectsGarbage(t *testing.T) {
	if os.Getenv("GROQ_API_KEY") == "" && os.Getenv("OPENAI_API_KEY") == "" {
		t.Skip("no transcription credentials in environment")
	}

	path := filepath.Join(t.TempDir(), "not-a-wav.txt")
	if err := os.WriteFile(path, []byte("plain text"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := runBinary(t, "-file", path)
	if err == nil {
		t.Fatalf("expected failure for non-WAV input, output: %s", out)
	}
	if !strings.Contains(out, "not a WAV") {
		t.Errorf("error output = %s", out)
	}
}
