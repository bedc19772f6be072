// Package window provides minimal hidden native windows. A view never
// shows a window; it only needs a valid windowing handle to satisfy the
// browser composition controller, plus access to the engine's embedded
// input sub-window for raw keyboard delivery.
package window

import (
	"errors"
	"strings"
)

// ErrUnavailable indicates no native windowing backend is compiled in or
// reachable.
var ErrUnavailable = errors.New("window: native windowing unavailable")

// Raw keyboard message codes.
const (
	KeyMessageDown uint32 = iota + 1
	KeyMessageUp
	KeyMessageChar
)

// KeyMessage is a raw platform keyboard message forwarded verbatim to the
// engine's input sub-window. The engine's own focus/IME handling must see
// platform messages, not synthesized API calls. WParam carries the key
// code, LParam the platform modifier/repeat state.
type KeyMessage struct {
	Code   uint32
	WParam uintptr
	LParam uintptr
}

// Window is a minimal hidden native window.
type Window interface {
	// Handle returns the native windowing handle.
	Handle() uintptr

	// FindChild enumerates descendant windows and returns the handle of
	// the first whose class name matches any of the patterns.
	FindChild(classPatterns []string) (uintptr, bool)

	// SendKey forwards a raw keyboard message to a descendant window.
	SendKey(target uintptr, msg KeyMessage) error

	Dispose()
}

// Factory creates hidden windows.
type Factory interface {
	CreateHidden(width, height int) (Window, error)
}

// InputWindowClassPatterns are the window-class name fragments known to
// identify the browser engine's embedded input sub-window.
var InputWindowClassPatterns = []string{
	"Chrome_RenderWidgetHostHWND",
	"Chrome_WidgetWin",
	"WebKitWebView",
	"WebKitGTK",
}

// MatchClass reports whether a window class name matches any pattern.
// Matching is a case-insensitive substring test: engine versions append
// numeric suffixes to their class names.
func MatchClass(class string, patterns []string) bool {
	if class == "" {
		return false
	}
	lower := strings.ToLower(class)
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
