//go:build !linux

package beep

import (
	"bytes"
	"encoding/binary"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

var (
	otoCtx  *oto.Context
	otoOnce sync.Once
)

func initContext() {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   50 * time.Millisecond,
	})
	if err != nil {
		return
	}
	<-ready
	otoCtx = ctx
}

func playTone(samples []int16) {
	otoOnce.Do(initContext)
	if otoCtx == nil || len(samples) == 0 {
		return
	}
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, samples)

	player := otoCtx.NewPlayer(bytes.NewReader(buf.Bytes()))
	player.Play()
	for player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}
	player.Close()
}
