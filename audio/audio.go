// Package audio owns microphone capture: device enumeration, the
// platform capture backends, and the recorder actor that buffers one
// session's PCM frames.
package audio

import (
	"encoding/binary"
	"math"
	"strings"
	"time"
)

// Capture format shared by every backend and the transcription
// engines: 16 kHz mono signed 16-bit little-endian PCM.
const (
	SampleRate     = 16000
	Channels       = 1
	bytesPerSample = 2
)

// WAVHeaderSize is the size of the canonical 44-byte RIFF header used
// when wrapping a buffer for upload.
const WAVHeaderSize = 44

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses from the device name whether a microphone is a
// Bluetooth headset, which records at noticeably lower quality.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type DataCallback func(data []byte, frameCount uint32)

// DefaultGain is the software amplification applied to captured
// samples. Microphone sources routinely sit well below full scale;
// the hosted engines transcribe noticeably better on louder input.
const DefaultGain = 8

// DefaultCaptureLatency is the backend buffer target in seconds.
const DefaultCaptureLatency = 0.05

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
	Gain       int     // software amplification factor, 0 means DefaultGain
	Latency    float64 // backend buffer seconds, 0 means DefaultCaptureLatency
}

func (c CaptureConfig) gain() int32 {
	if c.Gain <= 0 {
		return DefaultGain
	}
	return int32(c.Gain)
}

func (c CaptureConfig) latency() float64 {
	if c.Latency <= 0 {
		return DefaultCaptureLatency
	}
	return c.Latency
}

// applyGain scales s16le samples in place, clipping at full scale.
func applyGain(data []byte, gain int32) {
	if gain <= 1 {
		return
	}
	for i := 0; i+1 < len(data); i += 2 {
		v := int32(int16(binary.LittleEndian.Uint16(data[i:]))) * gain
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(data[i:], uint16(int16(v)))
	}
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}

// Buffer is one session's complete recording.
type Buffer struct {
	PCM        []byte
	SampleRate uint32
	Channels   uint32
}

func (b Buffer) Frames() uint64 {
	if b.Channels == 0 {
		return 0
	}
	return uint64(len(b.PCM)) / uint64(bytesPerSample*b.Channels)
}

func (b Buffer) Duration() time.Duration {
	if b.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(b.Frames()) / float64(b.SampleRate) * float64(time.Second))
}
