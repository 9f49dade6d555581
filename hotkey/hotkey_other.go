//go:build !linux

package hotkey

import (
	"fmt"

	xhotkey "golang.design/x/hotkey"
)

// Keys golang.design/x/hotkey names the same way on every platform.
var xKeys = map[string]xhotkey.Key{
	"space": xhotkey.KeySpace, "enter": xhotkey.KeyReturn,
	"tab": xhotkey.KeyTab, "esc": xhotkey.KeyEscape,
	"a": xhotkey.KeyA, "b": xhotkey.KeyB, "c": xhotkey.KeyC,
	"d": xhotkey.KeyD, "e": xhotkey.KeyE, "f": xhotkey.KeyF,
	"g": xhotkey.KeyG, "h": xhotkey.KeyH, "i": xhotkey.KeyI,
	"j": xhotkey.KeyJ, "k": xhotkey.KeyK, "l": xhotkey.KeyL,
	"m": xhotkey.KeyM, "n": xhotkey.KeyN, "o": xhotkey.KeyO,
	"p": xhotkey.KeyP, "q": xhotkey.KeyQ, "r": xhotkey.KeyR,
	"s": xhotkey.KeyS, "t": xhotkey.KeyT, "u": xhotkey.KeyU,
	"v": xhotkey.KeyV, "w": xhotkey.KeyW, "x": xhotkey.KeyX,
	"y": xhotkey.KeyY, "z": xhotkey.KeyZ,
	"0": xhotkey.Key0, "1": xhotkey.Key1, "2": xhotkey.Key2,
	"3": xhotkey.Key3, "4": xhotkey.Key4, "5": xhotkey.Key5,
	"6": xhotkey.Key6, "7": xhotkey.Key7, "8": xhotkey.Key8,
	"9": xhotkey.Key9,
	"f1": xhotkey.KeyF1, "f2": xhotkey.KeyF2, "f3": xhotkey.KeyF3,
	"f4": xhotkey.KeyF4, "f5": xhotkey.KeyF5, "f6": xhotkey.KeyF6,
	"f7": xhotkey.KeyF7, "f8": xhotkey.KeyF8, "f9": xhotkey.KeyF9,
	"f10": xhotkey.KeyF10, "f11": xhotkey.KeyF11, "f12": xhotkey.KeyF12,
}

type xSource struct {
	combo   Combo
	hk      *xhotkey.Hotkey
	keydown chan struct{}
	keyup   chan struct{}
	stop    chan struct{}
}

// NewSource registers through golang.design/x/hotkey, which maps to
// RegisterHotKey on Windows and the Carbon hotkey API on macOS.
func NewSource(combo Combo) Source {
	return &xSource{
		combo:   combo,
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}
}

func (h *xSource) Register() error {
	key, ok := xKeys[h.combo.Key]
	if !ok {
		return fmt.Errorf("key %q not supported on this platform", h.combo.Key)
	}
	// Only ctrl and shift are named identically across the per-OS
	// modifier constants of golang.design/x/hotkey.
	if h.combo.Alt || h.combo.Super {
		return fmt.Errorf("alt/super modifiers not supported on this platform")
	}
	var mods []xhotkey.Modifier
	if h.combo.Ctrl {
		mods = append(mods, xhotkey.ModCtrl)
	}
	if h.combo.Shift {
		mods = append(mods, xhotkey.ModShift)
	}

	h.hk = xhotkey.New(mods, key)
	if err := h.hk.Register(); err != nil {
		return err
	}
	h.stop = make(chan struct{})
	go func() {
		for {
			select {
			case <-h.hk.Keydown():
				select {
				case h.keydown <- struct{}{}:
				default:
				}
			case <-h.stop:
				return
			}
		}
	}()
	go func() {
		for {
			select {
			case <-h.hk.Keyup():
				select {
				case h.keyup <- struct{}{}:
				default:
				}
			case <-h.stop:
				return
			}
		}
	}()
	return nil
}

func (h *xSource) Unregister() {
	if h.stop != nil {
		close(h.stop)
		h.stop = nil
	}
	if h.hk != nil {
		h.hk.Unregister()
	}
}

func (h *xSource) Keydown() <-chan struct{} {
	return h.keydown
}

func (h *xSource) Keyup() <-chan struct{} {
	return h.keyup
}

// Diagnose reports whether the platform hook is usable.
func Diagnose() (string, error) {
	return "system hotkey API available", nil
}
