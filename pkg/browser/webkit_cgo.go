//go:build webkit_cgo

package browser

import (
	"sync"

	webkit "github.com/diamondburned/gotk4-webkitgtk/pkg/webkit/v6"
	"github.com/diamondburned/gotk4/pkg/gdk/v4"
	"github.com/diamondburned/gotk4/pkg/glib/v2"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"
	"github.com/rs/zerolog"
	"github.com/webpane/webpane/pkg/compositor"
)

// IsNativeAvailable reports whether the native WebKitGTK backend is compiled in.
func IsNativeAvailable() bool { return true }

// PlatformThreadInit initializes GTK on the affinity thread. Passed as the
// executor's thread-init hook.
func PlatformThreadInit() func() error {
	return func() error {
		gtk.Init()
		return nil
	}
}

// PlatformPump iterates the default GLib main context without blocking so
// engine callbacks keep firing between executor jobs.
func PlatformPump() func() {
	ctx := glib.MainContextDefault()
	return func() {
		for ctx.Pending() {
			ctx.Iteration(false)
		}
	}
}

// NewPlatformEnvironment returns the WebKitGTK-backed engine environment.
func NewPlatformEnvironment(log zerolog.Logger) (Environment, error) {
	return &webkitEnvironment{
		log: log.With().Str("component", "webkit").Logger(),
	}, nil
}

type webkitEnvironment struct {
	log zerolog.Logger
}

// CreateCompositionController must be awaited through the executor's
// pumping async submission: view construction and the first layout happen
// via GLib callbacks bound to the affinity thread.
func (e *webkitEnvironment) CreateCompositionController(windowHandle uintptr) <-chan ControllerResult {
	ch := make(chan ControllerResult, 1)

	view := webkit.NewWebView()
	if view == nil {
		ch <- ControllerResult{Err: ErrControllerUnavailable}
		return ch
	}

	// The view needs a realized ancestor to render offscreen; the window
	// is created for the caller's hidden surface handle and never shown.
	host := gtk.NewWindow()
	host.SetChild(view)

	ctrl := &webkitController{view: view, host: host, log: e.log}
	ch <- ControllerResult{Controller: &webkitCompositionController{ctrl: ctrl}}
	e.log.Debug().Uint64("window", uint64(windowHandle)).Msg("webkit view created")
	return ch
}

func (e *webkitEnvironment) Dispose() error { return nil }

type webkitCompositionController struct {
	mu     sync.Mutex
	ctrl   *webkitController
	closed bool
}

func (c *webkitCompositionController) Controller() (Controller, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	return c.ctrl, nil
}

func (c *webkitCompositionController) SetRootVisual(v compositor.Visual) error {
	// WebKitGTK renders into its own GTK surface; the visual's size is the
	// only binding the engine needs here.
	w, h := v.Size()
	if w > 0 && h > 0 {
		c.ctrl.view.SetSizeRequest(w, h)
	}
	return nil
}

// SendMouseInput has no synthesized-event entry point in WebKitGTK; input
// arrives through GTK event controllers on the view widget. Injected
// events are dropped at debug level rather than failing the caller.
func (c *webkitCompositionController) SendMouseInput(ev MouseEvent) error {
	c.ctrl.log.Trace().Int("kind", int(ev.Kind)).Int("x", ev.X).Int("y", ev.Y).
		Msg("mouse injection unsupported by webkit backend")
	return nil
}

func (c *webkitCompositionController) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.ctrl.Close()
}

type webkitController struct {
	view *webkit.WebView
	host *gtk.Window
	log  zerolog.Logger

	mu        sync.Mutex
	navCB     func(string)
	connected bool
	closed    bool
}

func (c *webkitController) SetBounds(width, height int) error {
	c.view.SetSizeRequest(width, height)
	c.host.SetDefaultSize(width, height)
	return nil
}

func (c *webkitController) SetVisible(visible bool) error {
	c.view.SetVisible(visible)
	return nil
}

func (c *webkitController) SetTransparentBackground() error {
	rgba := gdk.NewRGBA(0, 0, 0, 0)
	c.view.SetBackgroundColor(&rgba)
	return nil
}

func (c *webkitController) Navigate(url string) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	c.view.LoadURI(url)
	return nil
}

func (c *webkitController) Reload() error {
	c.view.Reload()
	return nil
}

func (c *webkitController) OpenDevTools() error {
	inspector := c.view.Inspector()
	if inspector != nil {
		inspector.Show()
	}
	return nil
}

func (c *webkitController) ApplySettings(s Settings) error {
	settings := c.view.Settings()
	if settings == nil {
		return ErrControllerUnavailable
	}
	settings.SetEnableDeveloperExtras(s.DevTools)
	settings.SetHardwareAccelerationPolicy(webkit.HardwareAccelerationPolicyAlways)
	return nil
}

func (c *webkitController) MoveFocus() error {
	c.view.GrabFocus()
	return nil
}

// Cursor handles are a composition-engine concept; WebKitGTK exposes
// cursor changes only through GDK on a realized surface.
func (c *webkitController) Cursor() uintptr { return 0 }

func (c *webkitController) SetNavigationCompletedHandler(fn func(string)) {
	c.mu.Lock()
	c.navCB = fn
	connect := !c.connected
	c.connected = true
	c.mu.Unlock()
	if !connect {
		return
	}

	c.view.ConnectLoadChanged(func(event webkit.LoadEvent) {
		if event != webkit.LoadFinished {
			return
		}
		c.mu.Lock()
		cb := c.navCB
		c.mu.Unlock()
		if cb != nil {
			cb(c.view.URI())
		}
	})
}

func (c *webkitController) SetCursorChangedHandler(func(uintptr)) {}

func (c *webkitController) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.host.Destroy()
	return nil
}
