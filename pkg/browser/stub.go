package browser

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/webpane/webpane/pkg/compositor"
)

// NewStubEnvironment returns an engine environment whose views are logical
// no-ops: navigation "completes" immediately and input is discarded. It
// keeps the host pipeline runnable on machines without the native engine.
func NewStubEnvironment(log zerolog.Logger) Environment {
	return &stubEnvironment{log: log.With().Str("component", "browser-stub").Logger()}
}

type stubEnvironment struct {
	log zerolog.Logger
}

func (e *stubEnvironment) CreateCompositionController(windowHandle uintptr) <-chan ControllerResult {
	ch := make(chan ControllerResult, 1)
	ctrl := &stubController{log: e.log}
	ch <- ControllerResult{Controller: &stubCompositionController{ctrl: ctrl}}
	e.log.Debug().Uint64("window", uint64(windowHandle)).Msg("stub composition controller created")
	return ch
}

func (e *stubEnvironment) Dispose() error { return nil }

type stubCompositionController struct {
	mu     sync.Mutex
	ctrl   *stubController
	closed bool
}

func (c *stubCompositionController) Controller() (Controller, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	return c.ctrl, nil
}

func (c *stubCompositionController) SetRootVisual(compositor.Visual) error { return nil }

func (c *stubCompositionController) SendMouseInput(MouseEvent) error { return nil }

func (c *stubCompositionController) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type stubController struct {
	mu     sync.Mutex
	log    zerolog.Logger
	url    string
	navCB  func(string)
	closed bool
}

func (c *stubController) SetBounds(int, int) error        { return nil }
func (c *stubController) SetVisible(bool) error           { return nil }
func (c *stubController) SetTransparentBackground() error { return nil }

func (c *stubController) Navigate(url string) error {
	c.mu.Lock()
	c.url = url
	cb := c.navCB
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	c.log.Debug().Str("url", url).Msg("stub navigation")
	if cb != nil {
		cb(url)
	}
	return nil
}

func (c *stubController) Reload() error {
	c.mu.Lock()
	url := c.url
	cb := c.navCB
	c.mu.Unlock()
	if cb != nil && url != "" {
		cb(url)
	}
	return nil
}

func (c *stubController) OpenDevTools() error          { return nil }
func (c *stubController) ApplySettings(Settings) error { return nil }
func (c *stubController) MoveFocus() error             { return nil }
func (c *stubController) Cursor() uintptr              { return 0 }

func (c *stubController) SetNavigationCompletedHandler(fn func(string)) {
	c.mu.Lock()
	c.navCB = fn
	c.mu.Unlock()
}

func (c *stubController) SetCursorChangedHandler(func(uintptr)) {}

func (c *stubController) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}
