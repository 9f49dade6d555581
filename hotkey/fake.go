package hotkey

// Fake is an in-process Source for tests: key transitions are driven
// programmatically.
type Fake struct {
	keydown chan struct{}
	keyup   chan struct{}
	regErr  error
}

func NewFake() *Fake {
	return &Fake{
		keydown: make(chan struct{}, 4),
		keyup:   make(chan struct{}, 4),
	}
}

// NewFailingFake returns a Fake whose Register always fails, for
// exercising the fatal hook-unavailable path.
func NewFailingFake(err error) *Fake {
	f := NewFake()
	f.regErr = err
	return f
}

func (f *Fake) Register() error          { return f.regErr }
func (f *Fake) Unregister()              {}
func (f *Fake) Keydown() <-chan struct{} { return f.keydown }
func (f *Fake) Keyup() <-chan struct{}   { return f.keyup }

func (f *Fake) SimKeydown() { f.keydown <- struct{}{} }
func (f *Fake) SimKeyup()   { f.keyup <- struct{}{} }
