package hotkey

import (
	"fmt"
	"sync"
	"time"
)

// EdgeKind is one of the two logical trigger transitions.
type EdgeKind int

const (
	TriggerPressed EdgeKind = iota
	TriggerReleased
)

func (k EdgeKind) String() string {
	if k == TriggerPressed {
		return "pressed"
	}
	return "released"
}

// Edge is a deduplicated trigger transition, stamped when the raw
// event was observed and tagged with the combination that matched.
type Edge struct {
	Kind  EdgeKind
	At    time.Time
	Combo Combo
}

// Monitor normalizes a Source's raw down/up stream into trigger
// edges: auto-repeated keydowns while held collapse into the single
// original press, and a release with no prior press is dropped.
// Rebind swaps the underlying registration without losing edges that
// already arrived.
type Monitor struct {
	factory SourceFactory

	edges  chan Edge
	rebind chan rebindRequest
	stop   chan struct{}

	mu      sync.Mutex
	combo   Combo
	started bool
}

type rebindRequest struct {
	combo Combo
	reply chan error
}

func NewMonitor(factory SourceFactory, combo Combo) *Monitor {
	return &Monitor{
		factory: factory,
		combo:   combo,
		edges:   make(chan Edge, 16),
		rebind:  make(chan rebindRequest),
		stop:    make(chan struct{}),
	}
}

// Edges returns the ordered edge stream. Closed when the monitor stops.
func (m *Monitor) Edges() <-chan Edge { return m.edges }

// Combo returns the currently bound combination.
func (m *Monitor) Combo() Combo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.combo
}

// Start installs the hook and begins emitting edges. A hook that
// cannot be installed is fatal: the error wraps ErrUnavailable.
func (m *Monitor) Start() error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("monitor already started")
	}
	combo := m.combo
	m.mu.Unlock()

	src := m.factory(combo)
	if err := src.Register(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, combo, err)
	}

	m.mu.Lock()
	m.started = true
	m.mu.Unlock()

	go m.run(src)
	return nil
}

// Stop uninstalls the hook and closes the edge stream.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return
	}
	m.started = false
	close(m.stop)
}

// Rebind atomically swaps the trigger combination. The old hook stays
// installed until the new one registers, so a failed rebind leaves the
// previous binding working. Edges already queued are unaffected.
func (m *Monitor) Rebind(combo Combo) error {
	req := rebindRequest{combo: combo, reply: make(chan error, 1)}
	select {
	case m.rebind <- req:
		return <-req.reply
	case <-m.stop:
		return fmt.Errorf("monitor stopped")
	}
}

func (m *Monitor) run(src Source) {
	defer close(m.edges)
	defer func() { src.Unregister() }()

	held := false
	for {
		select {
		case <-src.Keydown():
			if held {
				// OS auto-repeat while the key is held.
				continue
			}
			held = true
			m.emit(Edge{Kind: TriggerPressed, At: time.Now(), Combo: m.Combo()})

		case <-src.Keyup():
			if !held {
				// Release with no matching press (hook restarted
				// mid-hold): ignore.
				continue
			}
			held = false
			m.emit(Edge{Kind: TriggerReleased, At: time.Now(), Combo: m.Combo()})

		case req := <-m.rebind:
			next := m.factory(req.combo)
			if err := next.Register(); err != nil {
				req.reply <- fmt.Errorf("rebind %s: %w", req.combo, err)
				continue
			}
			src.Unregister()
			src = next
			held = false
			m.mu.Lock()
			m.combo = req.combo
			m.mu.Unlock()
			req.reply <- nil

		case <-m.stop:
			return
		}
	}
}

func (m *Monitor) emit(e Edge) {
	select {
	case m.edges <- e:
	case <-m.stop:
	}
}
