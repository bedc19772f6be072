//go:build linux

package window

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xwindow"
	"github.com/rs/zerolog"
)

// X11Factory creates hidden X11 windows over one shared connection.
type X11Factory struct {
	mu   sync.Mutex
	xu   *xgbutil.XUtil
	log  zerolog.Logger
	open bool
}

// NewPlatformFactory returns the native windowing factory for this
// platform. The X connection is established lazily on first use.
func NewPlatformFactory(log zerolog.Logger) Factory {
	return &X11Factory{log: log.With().Str("component", "x11").Logger()}
}

func (f *X11Factory) conn() (*xgbutil.XUtil, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open {
		return f.xu, nil
	}
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	f.xu = xu
	f.open = true
	return xu, nil
}

// CreateHidden creates an unmapped override-redirect window. It is never
// shown; it only exists so composition-bound APIs have a real handle.
func (f *X11Factory) CreateHidden(width, height int) (Window, error) {
	xu, err := f.conn()
	if err != nil {
		return nil, err
	}

	win, err := xwindow.Generate(xu)
	if err != nil {
		return nil, fmt.Errorf("window: generate X window id: %w", err)
	}
	if err := win.CreateChecked(xu.RootWin(), 0, 0, width, height,
		xproto.CwOverrideRedirect, 1); err != nil {
		return nil, fmt.Errorf("window: create hidden window: %w", err)
	}

	f.log.Debug().Uint32("window", uint32(win.Id)).
		Int("width", width).Int("height", height).
		Msg("hidden surface window created")
	return &x11Window{xu: xu, win: win, log: f.log}, nil
}

type x11Window struct {
	xu  *xgbutil.XUtil
	win *xwindow.Window
	log zerolog.Logger

	mu       sync.Mutex
	disposed bool
}

func (w *x11Window) Handle() uintptr {
	return uintptr(w.win.Id)
}

func (w *x11Window) FindChild(classPatterns []string) (uintptr, bool) {
	return w.findIn(w.win.Id, classPatterns)
}

func (w *x11Window) findIn(parent xproto.Window, patterns []string) (uintptr, bool) {
	tree, err := xproto.QueryTree(w.xu.Conn(), parent).Reply()
	if err != nil {
		return 0, false
	}
	for _, child := range tree.Children {
		if class, err := icccm.WmClassGet(w.xu, child); err == nil {
			if MatchClass(class.Class, patterns) || MatchClass(class.Instance, patterns) {
				return uintptr(child), true
			}
		}
		if h, ok := w.findIn(child, patterns); ok {
			return h, true
		}
	}
	return 0, false
}

// SendKey delivers a raw key event straight to the target window rather
// than through server focus, so the engine receives keyboard input without
// this subsystem ever taking X focus.
func (w *x11Window) SendKey(target uintptr, msg KeyMessage) error {
	dest := xproto.Window(target)
	press := xproto.KeyPressEvent{
		Detail:     xproto.Keycode(msg.WParam),
		Time:       xproto.TimeCurrentTime,
		Root:       w.xu.RootWin(),
		Event:      dest,
		Child:      0,
		State:      uint16(msg.LParam),
		SameScreen: true,
	}

	mask := uint32(xproto.EventMaskKeyPress)
	raw := string(press.Bytes())
	if msg.Code == KeyMessageUp {
		release := xproto.KeyReleaseEvent(press)
		mask = xproto.EventMaskKeyRelease
		raw = string(release.Bytes())
	}

	return xproto.SendEventChecked(w.xu.Conn(), false, dest, mask, raw).Check()
}

func (w *x11Window) Dispose() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.disposed {
		return
	}
	w.disposed = true
	w.win.Destroy()
}
