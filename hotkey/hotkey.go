// Package hotkey turns platform key hooks into the two logical edges
// the session coordinator consumes: trigger pressed and trigger
// released.
package hotkey

import "errors"

// ErrUnavailable is returned when the platform hook cannot be
// installed (missing permissions, no hook mechanism). It is fatal at
// startup: the application must not run without a working trigger.
var ErrUnavailable = errors.New("hotkey hook unavailable")

// Source is the raw hook capability: a registered key combination
// reporting down and up transitions. Implementations may deliver
// auto-repeated keydowns while the key is held; the Monitor
// deduplicates those.
type Source interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

// SourceFactory builds a Source bound to a combination. Used by the
// Monitor to swap registrations on rebind.
type SourceFactory func(Combo) Source
