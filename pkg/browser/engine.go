// Package browser defines the slice of the embedded browser engine this
// module consumes: environment and controller creation, navigation,
// settings, input injection, and the navigation/cursor notifications. The
// engine itself is a foreign service; real backends adapt it behind these
// interfaces.
package browser

import (
	"errors"

	"github.com/webpane/webpane/pkg/compositor"
)

var (
	// ErrControllerUnavailable indicates the composition controller type
	// is not provided by the installed engine runtime.
	ErrControllerUnavailable = errors.New("browser: composition controller unavailable")
	// ErrClosed indicates a call against a closed controller.
	ErrClosed = errors.New("browser: controller closed")
)

// Settings are the engine flags a view applies during initialization.
type Settings struct {
	DefaultContextMenus bool
	DevTools            bool
	StatusBar           bool
	ZoomControl         bool
}

// ControllerResult completes an asynchronous controller creation.
type ControllerResult struct {
	Controller CompositionController
	Err        error
}

// Environment is the shared engine environment. One exists per manager.
type Environment interface {
	// CreateCompositionController starts asynchronous creation of a
	// composition controller bound to a native window handle. The result
	// channel receives exactly one value. The caller's continuation must
	// run on the engine's affinity thread; creation is therefore awaited
	// through the executor's pumping async submission.
	CreateCompositionController(windowHandle uintptr) <-chan ControllerResult

	Dispose() error
}

// CompositionController is the composition-mode wrapper around one engine
// view: render-target binding and low-level input injection.
type CompositionController interface {
	// Controller returns the general-purpose controller, or
	// ErrControllerUnavailable when the runtime lacks composition support.
	Controller() (Controller, error)

	// SetRootVisual binds a compositor visual as the engine's render target.
	SetRootVisual(v compositor.Visual) error

	// SendMouseInput injects one translated mouse event.
	SendMouseInput(ev MouseEvent) error

	Close() error
}

// Controller drives one engine view: bounds, navigation, settings, focus,
// and the notifications surfaced upward.
type Controller interface {
	SetBounds(width, height int) error
	SetVisible(visible bool) error
	SetTransparentBackground() error

	Navigate(url string) error
	Reload() error
	OpenDevTools() error
	ApplySettings(s Settings) error

	// MoveFocus moves the engine's internal focus into the view. It never
	// touches platform focus: keyboard messages are routed manually, and a
	// platform focus call would duplicate input.
	MoveFocus() error

	// Cursor returns the engine's current cursor handle.
	Cursor() uintptr

	SetNavigationCompletedHandler(fn func(url string))
	SetCursorChangedHandler(fn func(cursor uintptr))

	Close() error
}
