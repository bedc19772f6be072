package platformtest

import (
	"sync"
	"sync/atomic"

	"github.com/webpane/webpane/pkg/window"
)

// FakeWindowFactory creates FakeWindows with sequential handles.
type FakeWindowFactory struct {
	mu      sync.Mutex
	counter atomic.Uint64

	// FailCreate makes CreateHidden fail.
	FailCreate bool
	// ChildClass, when non-empty, gives every window one child with this
	// class name.
	ChildClass string

	Windows []*FakeWindow
}

func (f *FakeWindowFactory) CreateHidden(w, h int) (window.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailCreate {
		return nil, window.ErrUnavailable
	}
	win := &FakeWindow{
		handle: uintptr(f.counter.Add(1)) << 8,
		W:      w,
		H:      h,
	}
	if f.ChildClass != "" {
		win.Children = map[uintptr]string{win.handle + 1: f.ChildClass}
	}
	f.Windows = append(f.Windows, win)
	return win, nil
}

// FakeWindow records forwarded keyboard messages.
type FakeWindow struct {
	mu           sync.Mutex
	handle       uintptr
	W, H         int
	Children     map[uintptr]string
	Keys         []window.KeyMessage
	DisposeCalls int
}

func (w *FakeWindow) Handle() uintptr { return w.handle }

func (w *FakeWindow) FindChild(patterns []string) (uintptr, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for h, class := range w.Children {
		if window.MatchClass(class, patterns) {
			return h, true
		}
	}
	return 0, false
}

func (w *FakeWindow) SendKey(target uintptr, msg window.KeyMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Keys = append(w.Keys, msg)
	return nil
}

// SentKeys returns a copy of the forwarded key messages.
func (w *FakeWindow) SentKeys() []window.KeyMessage {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]window.KeyMessage, len(w.Keys))
	copy(out, w.Keys)
	return out
}

func (w *FakeWindow) Dispose() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.DisposeCalls++
}

// Disposes returns how many times Dispose was called.
func (w *FakeWindow) Disposes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.DisposeCalls
}
