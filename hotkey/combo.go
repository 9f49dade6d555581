package hotkey

import (
	"fmt"
	"strings"
)

// Combo is a trigger combination: an order-independent modifier set
// plus one key, e.g. ctrl+shift+space.
type Combo struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Super bool
	Key   string
}

// DefaultCombo is the out-of-the-box trigger.
var DefaultCombo = Combo{Ctrl: true, Shift: true, Key: "space"}

// ParseCombo parses a spec like "ctrl+shift+space". Modifier order is
// irrelevant; exactly one non-modifier key is required.
func ParseCombo(s string) (Combo, error) {
	var c Combo
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	for _, p := range parts {
		p = strings.TrimSpace(p)
		switch p {
		case "":
			return Combo{}, fmt.Errorf("empty component in hotkey %q", s)
		case "ctrl", "control":
			c.Ctrl = true
		case "shift":
			c.Shift = true
		case "alt", "option":
			c.Alt = true
		case "super", "cmd", "meta", "win":
			c.Super = true
		default:
			if c.Key != "" {
				return Combo{}, fmt.Errorf("hotkey %q has more than one key (%q, %q)", s, c.Key, p)
			}
			c.Key = p
		}
	}
	if c.Key == "" {
		return Combo{}, fmt.Errorf("hotkey %q has no key", s)
	}
	if !validKey(c.Key) {
		return Combo{}, fmt.Errorf("unknown key %q in hotkey %q", c.Key, s)
	}
	return c, nil
}

func (c Combo) String() string {
	var parts []string
	if c.Ctrl {
		parts = append(parts, "ctrl")
	}
	if c.Shift {
		parts = append(parts, "shift")
	}
	if c.Alt {
		parts = append(parts, "alt")
	}
	if c.Super {
		parts = append(parts, "super")
	}
	parts = append(parts, c.Key)
	return strings.Join(parts, "+")
}

func validKey(key string) bool {
	switch key {
	case "space", "enter", "tab", "esc":
		return true
	}
	if len(key) == 1 {
		ch := key[0]
		return (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9')
	}
	if strings.HasPrefix(key, "f") {
		var n int
		if _, err := fmt.Sscanf(key, "f%d", &n); err == nil {
			return n >= 1 && n <= 12
		}
	}
	return false
}
