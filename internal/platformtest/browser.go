package platformtest

import (
	"fmt"
	"sync"

	"github.com/webpane/webpane/pkg/browser"
	"github.com/webpane/webpane/pkg/compositor"
)

// FakeEnvironment implements browser.Environment with recording
// controllers. Controller creation completes asynchronously on a separate
// goroutine, matching the foreign API's shape.
type FakeEnvironment struct {
	mu sync.Mutex

	// FailCreate makes controller creation fail.
	FailCreate bool
	// NoController makes the composition controller report the controller
	// type as unavailable.
	NoController bool
	// Cursor is the initial cursor handle controllers report.
	Cursor uintptr
	// Gate, when non-nil, holds controller creation until the channel is
	// closed, so tests can interleave lifecycle calls mid-creation.
	Gate chan struct{}

	Controllers  []*FakeController
	Compositions []*FakeCompositionController
	Disposed     bool
}

func (e *FakeEnvironment) CreateCompositionController(windowHandle uintptr) <-chan browser.ControllerResult {
	ch := make(chan browser.ControllerResult, 1)
	e.mu.Lock()
	fail := e.FailCreate
	noCtrl := e.NoController
	cursor := e.Cursor
	gate := e.Gate
	e.mu.Unlock()

	go func() {
		if gate != nil {
			<-gate
		}
		if fail {
			ch <- browser.ControllerResult{Err: fmt.Errorf("platformtest: controller creation forced to fail")}
			return
		}
		ctrl := &FakeController{cursor: cursor, Window: windowHandle}
		comp := &FakeCompositionController{
			Ctrl:         ctrl,
			NoController: noCtrl,
		}
		e.mu.Lock()
		e.Controllers = append(e.Controllers, ctrl)
		e.Compositions = append(e.Compositions, comp)
		e.mu.Unlock()
		ch <- browser.ControllerResult{Controller: comp}
	}()
	return ch
}

func (e *FakeEnvironment) Dispose() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Disposed = true
	return nil
}

// FakeCompositionController records injected mouse input.
type FakeCompositionController struct {
	mu           sync.Mutex
	Ctrl         *FakeController
	NoController bool
	RootVisual   compositor.Visual
	MouseEvents  []browser.MouseEvent
	CloseCalls   int
}

func (c *FakeCompositionController) Controller() (browser.Controller, error) {
	if c.NoController {
		return nil, browser.ErrControllerUnavailable
	}
	return c.Ctrl, nil
}

func (c *FakeCompositionController) SetRootVisual(v compositor.Visual) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.RootVisual = v
	return nil
}

func (c *FakeCompositionController) SendMouseInput(ev browser.MouseEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.MouseEvents = append(c.MouseEvents, ev)
	return nil
}

// Mouse returns a copy of the recorded mouse events.
func (c *FakeCompositionController) Mouse() []browser.MouseEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]browser.MouseEvent, len(c.MouseEvents))
	copy(out, c.MouseEvents)
	return out
}

func (c *FakeCompositionController) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CloseCalls++
	return nil
}

// Closes returns how many times Close was called.
func (c *FakeCompositionController) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CloseCalls
}

// FakeController records controller calls and lets tests fire engine
// notifications.
type FakeController struct {
	mu sync.Mutex

	Window      uintptr
	BoundsW     int
	BoundsH     int
	Visible     bool
	Transparent bool
	Settings    browser.Settings
	Navigations []string
	Reloads     int
	DevTools    int
	FocusMoves  int
	CloseCalls  int

	cursor   uintptr
	navCB    func(string)
	cursorCB func(uintptr)
}

func (c *FakeController) SetBounds(w, h int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.BoundsW, c.BoundsH = w, h
	return nil
}

// Bounds returns the last bounds set.
func (c *FakeController) Bounds() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.BoundsW, c.BoundsH
}

func (c *FakeController) SetVisible(v bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Visible = v
	return nil
}

func (c *FakeController) SetTransparentBackground() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transparent = true
	return nil
}

func (c *FakeController) Navigate(url string) error {
	c.mu.Lock()
	c.Navigations = append(c.Navigations, url)
	cb := c.navCB
	c.mu.Unlock()
	// Navigation completes immediately in the fake.
	if cb != nil {
		cb(url)
	}
	return nil
}

func (c *FakeController) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Reloads++
	return nil
}

func (c *FakeController) OpenDevTools() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.DevTools++
	return nil
}

func (c *FakeController) ApplySettings(s browser.Settings) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Settings = s
	return nil
}

func (c *FakeController) MoveFocus() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.FocusMoves++
	return nil
}

// Moves returns how many times the engine focus was moved into this view.
func (c *FakeController) Moves() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.FocusMoves
}

func (c *FakeController) Cursor() uintptr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

func (c *FakeController) SetNavigationCompletedHandler(fn func(string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.navCB = fn
}

func (c *FakeController) SetCursorChangedHandler(fn func(uintptr)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursorCB = fn
}

func (c *FakeController) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CloseCalls++
	return nil
}

// Closes returns how many times Close was called.
func (c *FakeController) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CloseCalls
}

// FireCursorChanged simulates an engine cursor change.
func (c *FakeController) FireCursorChanged(cursor uintptr) {
	c.mu.Lock()
	c.cursor = cursor
	cb := c.cursorCB
	c.mu.Unlock()
	if cb != nil {
		cb(cursor)
	}
}

// FireNavigationCompleted simulates a spontaneous navigation completion.
func (c *FakeController) FireNavigationCompleted(url string) {
	c.mu.Lock()
	cb := c.navCB
	c.mu.Unlock()
	if cb != nil {
		cb(url)
	}
}
