// Package clipboard delivers finished transcripts: copy to the system
// clipboard, optionally followed by a synthetic paste keystroke into
// the focused window.
package clipboard

import (
	cb "github.com/atotto/clipboard"
)

var (
	copyFn  = cb.WriteAll
	readFn  = cb.ReadAll
	pasteFn = pressPaste
)

func Copy(text string) error {
	return copyFn(text)
}

func Read() (string, error) {
	return readFn()
}

// Deliver copies text and, when autopaste is on, sends the paste
// chord to the focused application. The copy always happens; a paste
// failure leaves the text retrievable from the clipboard.
func Deliver(text string, autopaste bool) error {
	if err := copyFn(text); err != nil {
		return err
	}
	if !autopaste {
		return nil
	}
	return pasteFn()
}
