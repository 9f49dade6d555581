package audio

import (
	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

const (
	vadMode     = 3 // most aggressive: fewest false positives
	vadFrameMs  = 20
	vadDebounce = 3 // consecutive speech frames to confirm voice
)

// SpeechDetector runs WebRTC voice-activity detection over a finished
// buffer. Used as a gate in front of the transcription engine so pure
// silence never costs an upload.
type SpeechDetector struct {
	vad *webrtcvad.VAD
}

func NewSpeechDetector() (*SpeechDetector, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, err
	}
	if err := v.SetMode(vadMode); err != nil {
		return nil, err
	}
	return &SpeechDetector{vad: v}, nil
}

// HasSpeech reports whether the buffer contains a sustained run of
// voiced frames. Errors from the detector count as speech so a VAD
// hiccup never swallows a real recording.
func (d *SpeechDetector) HasSpeech(buf Buffer) bool {
	if buf.SampleRate == 0 || len(buf.PCM) == 0 {
		return false
	}
	frameBytes := int(buf.SampleRate) * vadFrameMs / 1000 * bytesPerSample * int(buf.Channels)
	if frameBytes == 0 {
		return false
	}

	run := 0
	for off := 0; off+frameBytes <= len(buf.PCM); off += frameBytes {
		active, err := d.vad.Process(int(buf.SampleRate), buf.PCM[off:off+frameBytes])
		if err != nil {
			return true
		}
		if !active {
			run = 0
			continue
		}
		run++
		if run >= vadDebounce {
			return true
		}
	}
	return false
}
