package transcriber

import (
	"encoding/binary"

	"github.com/bitgineer/Speakeasy-sub001/audio"
)

// wrapWAV frames a raw PCM buffer with the canonical 44-byte RIFF
// header the hosted engines expect.
func wrapWAV(buf audio.Buffer) []byte {
	dataSize := len(buf.PCM)
	out := make([]byte, audio.WAVHeaderSize+dataSize)

	sampleRate := buf.SampleRate
	channels := uint16(buf.Channels)
	const bitsPerSample = 16
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * uint32(blockAlign)

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(audio.WAVHeaderSize-8+dataSize))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], channels)
	binary.LittleEndian.PutUint32(out[24:28], sampleRate)
	binary.LittleEndian.PutUint32(out[28:32], byteRate)
	binary.LittleEndian.PutUint16(out[32:34], blockAlign)
	binary.LittleEndian.PutUint16(out[34:36], bitsPerSample)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataSize))
	copy(out[audio.WAVHeaderSize:], buf.PCM)

	return out
}
