package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/bitgineer/Speakeasy-sub001/audio"
	"github.com/bitgineer/Speakeasy-sub001/log"
	"github.com/bitgineer/Speakeasy-sub001/transcriber"
)

// runFileMode transcribes a WAV file from disk and prints the text.
// Useful for scripting and for exercising a provider without a
// microphone.
func runFileMode(engine transcriber.Engine, path string) {
	buf, err := readWAV(path)
	if err != nil {
		fatalf("reading %s: %v", path, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := engine.Warm(ctx); err != nil {
		log.Warnf("engine warm-up failed: %v", err)
	}

	res, err := engine.Transcribe(ctx, buf)
	if err != nil {
		fatalf("transcribing: %v", err)
	}
	if res.NoSpeech {
		fmt.Fprintln(os.Stderr, "(no speech detected)")
		return
	}
	fmt.Println(res.Text)
	log.TranscriptText(res.Text)
}

// readWAV parses a canonical PCM WAV file into a capture buffer.
// Only 16-bit PCM is accepted; sample rate and channel count are
// taken from the header.
func readWAV(path string) (audio.Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return audio.Buffer{}, err
	}
	if len(data) < audio.WAVHeaderSize ||
		string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return audio.Buffer{}, fmt.Errorf("not a WAV file")
	}

	format := binary.LittleEndian.Uint16(data[20:22])
	channels := binary.LittleEndian.Uint16(data[22:24])
	sampleRate := binary.LittleEndian.Uint32(data[24:28])
	bitsPerSample := binary.LittleEndian.Uint16(data[34:36])
	if format != 1 || bitsPerSample != 16 {
		return audio.Buffer{}, fmt.Errorf("only 16-bit PCM WAV is supported")
	}

	dataSize := binary.LittleEndian.Uint32(data[40:44])
	pcm := data[audio.WAVHeaderSize:]
	if int(dataSize) < len(pcm) {
		pcm = pcm[:dataSize]
	}

	return audio.Buffer{
		PCM:        pcm,
		SampleRate: sampleRate,
		Channels:   uint32(channels),
	}, nil
}
