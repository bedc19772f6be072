// Package overlay is the public surface of the module: offscreen browser
// views whose rendered output is exposed as GPU textures, and the manager
// that owns them, routes input, and tracks focus.
package overlay

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/webpane/webpane/pkg/affinity"
	"github.com/webpane/webpane/pkg/browser"
	"github.com/webpane/webpane/pkg/capture"
	"github.com/webpane/webpane/pkg/compositor"
	"github.com/webpane/webpane/pkg/gpu"
	"github.com/webpane/webpane/pkg/window"
)

// ViewState is the view lifecycle state.
type ViewState int32

const (
	Uninitialized ViewState = iota
	Initializing
	Ready
	Disposing
	Disposed
)

func (s ViewState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Disposing:
		return "disposing"
	case Disposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// View is one offscreen browser view. It exclusively owns its hidden
// window, its root and content visuals, its browser controller, and its
// capture pipeline. All mutation of those objects happens on the
// manager's affinity thread.
type View struct {
	id  uint64
	mgr *Manager
	log zerolog.Logger

	exec    *affinity.Executor
	env     browser.Environment
	comp    compositor.Compositor
	windows window.Factory
	device  gpu.Device
	frames  capture.FrameSource

	state     atomic.Int32
	threshold atomic.Uint32
	cursor    atomic.Uintptr
	focused   atomic.Bool
	inputWin  atomic.Uintptr

	sizeMu sync.Mutex
	width  int
	height int

	urlMu sync.Mutex
	url   string

	// Affinity-thread-owned native objects. Only touched on the executor
	// thread (or inline during teardown fallback).
	win           window.Window
	rootVisual    compositor.Visual
	contentVisual compositor.Visual
	compCtrl      browser.CompositionController
	ctrl          browser.Controller
	pipeline      *capture.Pipeline

	// Notifications. Set before Initialize; invoked from internal threads.
	OnReady               func()
	OnNavigationCompleted func(url string)
	OnFrameCaptured       func(tex gpu.Texture)
	OnCursorChanged       func(cursor uintptr)
}

// ID returns the view's handle.
func (v *View) ID() uint64 { return v.id }

// State returns the current lifecycle state.
func (v *View) State() ViewState { return ViewState(v.state.Load()) }

// Size returns the stored view size. During a resize this reflects the new
// value immediately, ahead of the posted controller/visual updates.
func (v *View) Size() (width, height int) {
	v.sizeMu.Lock()
	defer v.sizeMu.Unlock()
	return v.width, v.height
}

// URL returns the last navigated URL.
func (v *View) URL() string {
	v.urlMu.Lock()
	defer v.urlMu.Unlock()
	return v.url
}

// Cursor returns the view's current cursor handle.
func (v *View) Cursor() uintptr { return v.cursor.Load() }

// Initialize runs the full asynchronous initialization chain on the
// affinity thread and blocks until the view is Ready. Idempotent once
// Ready. On failure the view returns to Uninitialized and is not retried.
// A concurrent Dispose wins: the view stays Disposed and Initialize
// reports ErrDisposed.
func (v *View) Initialize() error {
	if v.State() == Ready {
		return nil
	}
	if !v.state.CompareAndSwap(int32(Uninitialized), int32(Initializing)) {
		return fmt.Errorf("%w: view is %s", ErrInitFailed, v.State())
	}

	err := v.exec.RunAsync(v.initChain)
	if err != nil {
		// Best-effort cleanup of whatever the chain created.
		if rbErr := v.exec.RunBlocking(func() error {
			v.teardown()
			return nil
		}); rbErr != nil {
			v.teardown()
		}
		// Only revert to Uninitialized when the view was not concurrently
		// disposed; Disposing/Disposed are terminal.
		v.state.CompareAndSwap(int32(Initializing), int32(Uninitialized))
		return fmt.Errorf("%w: %w", ErrInitFailed, err)
	}

	if !v.state.CompareAndSwap(int32(Initializing), int32(Ready)) {
		// Disposed while the chain was completing; teardown already ran on
		// the executor thread, so nothing survives to clean up here.
		return fmt.Errorf("%w: view disposed during initialization", ErrDisposed)
	}
	v.log.Info().Msg("view ready")
	if v.OnReady != nil {
		v.OnReady()
	}
	return nil
}

// initChain runs on the executor thread. Controller creation is a foreign
// asynchronous operation; its continuation must run on this same thread,
// so completion is posted back while the executor keeps pumping.
func (v *View) initChain() <-chan error {
	out := make(chan error, 1)

	w, h := v.Size()

	win, err := v.windows.CreateHidden(w, h)
	if err != nil {
		out <- fmt.Errorf("create hidden window: %w", err)
		return out
	}
	v.win = win

	root, err := v.comp.CreateContainerVisual()
	if err != nil {
		out <- fmt.Errorf("create root visual: %w", err)
		return out
	}
	root.SetSize(w, h)
	v.rootVisual = root

	content, err := v.comp.CreateContainerVisual()
	if err != nil {
		out <- fmt.Errorf("create content visual: %w", err)
		return out
	}
	content.SetRelativeSize(1, 1)
	root.InsertTopChild(content)
	v.contentVisual = content

	result := v.env.CreateCompositionController(win.Handle())
	go func() {
		r := <-result
		v.exec.Post(func() {
			out <- v.completeInit(r)
		})
	}()
	return out
}

// completeInit finishes initialization on the executor thread once the
// composition controller exists.
func (v *View) completeInit(r browser.ControllerResult) error {
	if r.Err != nil {
		return fmt.Errorf("create composition controller: %w", r.Err)
	}
	if ViewState(v.state.Load()) != Initializing {
		// Disposed while the controller was being created. Teardown has
		// already run (or is queued behind this job) for everything the
		// chain stored on the view; the just-arrived controller is the one
		// object only this frame knows about.
		if err := r.Controller.Close(); err != nil {
			v.log.Warn().Err(err).Msg("closing controller orphaned by disposal")
		}
		return ErrDisposed
	}
	v.compCtrl = r.Controller

	ctrl, err := v.compCtrl.Controller()
	if err != nil {
		return fmt.Errorf("obtain controller: %w", err)
	}
	v.ctrl = ctrl

	w, h := v.Size()
	if err := ctrl.SetBounds(w, h); err != nil {
		return fmt.Errorf("set controller bounds: %w", err)
	}
	if err := ctrl.SetVisible(true); err != nil {
		return fmt.Errorf("set controller visible: %w", err)
	}
	if err := ctrl.SetTransparentBackground(); err != nil {
		return fmt.Errorf("set transparent background: %w", err)
	}
	if err := v.compCtrl.SetRootVisual(v.contentVisual); err != nil {
		return fmt.Errorf("bind render target visual: %w", err)
	}
	if err := ctrl.ApplySettings(browser.Settings{
		DefaultContextMenus: false,
		DevTools:            true,
		StatusBar:           false,
		ZoomControl:         false,
	}); err != nil {
		return fmt.Errorf("apply settings: %w", err)
	}

	ctrl.SetNavigationCompletedHandler(v.handleNavigationCompleted)
	ctrl.SetCursorChangedHandler(v.handleCursorChanged)
	v.cursor.Store(ctrl.Cursor())

	pipeline := capture.NewPipeline(v.device, v.frames, v.mgr.alphaInterval, v.log)
	pipeline.SetFrameHandler(v.handleFrameCaptured)
	if err := pipeline.Start(v.rootVisual, w, h); err != nil {
		return err
	}
	v.pipeline = pipeline

	v.locateInputWindow()
	return nil
}

// locateInputWindow enumerates child windows of the hidden window and
// matches against known engine window-class patterns. The engine creates
// its input sub-window asynchronously, so a miss here is retried lazily on
// the first keyboard message.
func (v *View) locateInputWindow() {
	if v.win == nil {
		return
	}
	if h, ok := v.win.FindChild(window.InputWindowClassPatterns); ok {
		v.inputWin.Store(h)
		v.log.Debug().Uint64("handle", uint64(h)).Msg("engine input sub-window located")
	}
}

func (v *View) handleNavigationCompleted(url string) {
	v.urlMu.Lock()
	v.url = url
	v.urlMu.Unlock()
	v.log.Debug().Str("url", url).Msg("navigation completed")
	if v.OnNavigationCompleted != nil {
		v.OnNavigationCompleted(url)
	}
}

func (v *View) handleCursorChanged(cursor uintptr) {
	v.cursor.Store(cursor)
	if v.OnCursorChanged != nil {
		v.OnCursorChanged(cursor)
	}
	v.mgr.reportCursor(v, cursor)
}

func (v *View) handleFrameCaptured(tex gpu.Texture) {
	if v.OnFrameCaptured != nil {
		v.OnFrameCaptured(tex)
	}
}

// Navigate loads url. Synchronous validation, asynchronous execution.
func (v *View) Navigate(url string) error {
	if v.State() != Ready {
		return fmt.Errorf("%w: view is %s", ErrNotInitialized, v.State())
	}
	return v.exec.RunBlocking(func() error {
		return v.ctrl.Navigate(url)
	})
}

// Reload reloads the current document.
func (v *View) Reload() error {
	if v.State() != Ready {
		return fmt.Errorf("%w: view is %s", ErrNotInitialized, v.State())
	}
	return v.exec.RunBlocking(func() error { return v.ctrl.Reload() })
}

// OpenDevTools opens the engine's developer tools window.
func (v *View) OpenDevTools() error {
	if v.State() != Ready {
		return fmt.Errorf("%w: view is %s", ErrNotInitialized, v.State())
	}
	return v.exec.RunBlocking(func() error { return v.ctrl.OpenDevTools() })
}

// Resize rejects non-positive dimensions, updates the stored size
// synchronously, and posts the controller-bounds update, root-visual-size
// update, and pipeline resize as one ordered unit.
func (v *View) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	v.sizeMu.Lock()
	v.width, v.height = width, height
	v.sizeMu.Unlock()

	v.exec.Post(func() {
		if v.State() != Ready {
			return
		}
		if err := v.ctrl.SetBounds(width, height); err != nil {
			v.log.Warn().Err(err).Msg("resize: set controller bounds")
		}
		v.rootVisual.SetSize(width, height)
		v.pipeline.Resize(width, height)
	})
}

// SetClickThroughThreshold sets the alpha threshold for click-through.
// Zero disables click-through entirely.
func (v *View) SetClickThroughThreshold(threshold byte) {
	v.threshold.Store(uint32(threshold))
}

// AlphaAt samples the cached alpha at view-local (x, y).
func (v *View) AlphaAt(x, y int) byte {
	if p := v.pipeline; p != nil {
		return p.AlphaAt(x, y)
	}
	return 255
}

// AlphaAtPoint samples the cached alpha at a view-local point.
func (v *View) AlphaAtPoint(pt image.Point) byte {
	return v.AlphaAt(pt.X, pt.Y)
}

// ShouldClickThrough reports whether a pointer event at (x, y) should pass
// through this view.
func (v *View) ShouldClickThrough(x, y int) bool {
	threshold := byte(v.threshold.Load())
	if threshold == 0 {
		return false
	}
	return v.AlphaAt(x, y) <= threshold
}

// Focused reports whether this view currently holds keyboard focus.
func (v *View) Focused() bool { return v.focused.Load() }

// setFocused is called by the manager under its focus protocol.
func (v *View) setFocused(focused bool) {
	v.focused.Store(focused)
	if !focused {
		return
	}
	// Move the engine's internal focus only. Platform focus stays
	// untouched: keyboard messages are routed manually, and a platform
	// focus call would duplicate input.
	v.exec.Post(func() {
		if v.State() != Ready {
			return
		}
		if err := v.ctrl.MoveFocus(); err != nil {
			v.log.Warn().Err(err).Msg("move engine focus")
		}
	})
}

// HandleMouseMove forwards a mouse move. Callers never block on input
// delivery; all input handlers are fire-and-forget posts.
func (v *View) HandleMouseMove(x, y int, mods browser.KeyModifiers) {
	v.postMouse(browser.MouseEvent{
		Kind:        browser.MouseMove,
		X:           x,
		Y:           y,
		VirtualKeys: browser.TranslateModifiers(mods),
	})
}

// HandleMouseButton forwards a button press or release.
func (v *View) HandleMouseButton(x, y int, button browser.MouseButton, down bool, mods browser.KeyModifiers) {
	kind := browser.MouseUp
	if down {
		kind = browser.MouseDown
	}
	v.postMouse(browser.MouseEvent{
		Kind:        kind,
		X:           x,
		Y:           y,
		Button:      button,
		VirtualKeys: browser.TranslateModifiers(mods),
	})
}

// HandleMouseWheel forwards a wheel rotation. horizontal selects the
// horizontal wheel axis.
func (v *View) HandleMouseWheel(x, y, delta int, horizontal bool, mods browser.KeyModifiers) {
	kind := browser.MouseWheel
	if horizontal {
		kind = browser.MouseHorizontalWheel
	}
	v.postMouse(browser.MouseEvent{
		Kind:        kind,
		X:           x,
		Y:           y,
		WheelDelta:  delta,
		VirtualKeys: browser.TranslateModifiers(mods),
	})
}

// HandleMouseLeave tells the engine the pointer left the view.
func (v *View) HandleMouseLeave() {
	v.postMouse(browser.MouseEvent{Kind: browser.MouseLeave})
}

func (v *View) postMouse(ev browser.MouseEvent) {
	v.exec.Post(func() {
		if v.State() != Ready {
			return
		}
		if err := v.compCtrl.SendMouseInput(ev); err != nil {
			v.log.Debug().Err(err).Msg("mouse injection failed")
		}
	})
}

// HandleKeyboardMessage forwards a raw keyboard message to the engine's
// embedded input sub-window, re-locating it lazily if not yet found. The
// engine's focus/IME handling must see raw platform messages, not a
// synthesized API call.
func (v *View) HandleKeyboardMessage(msg window.KeyMessage) {
	v.exec.Post(func() {
		if v.State() != Ready {
			return
		}
		target := v.inputWin.Load()
		if target == 0 {
			v.locateInputWindow()
			target = v.inputWin.Load()
			if target == 0 {
				return
			}
		}
		if err := v.win.SendKey(target, msg); err != nil {
			v.log.Debug().Err(err).Msg("keyboard forward failed")
		}
	})
}

// Dispose deregisters the view from its manager and tears it down on the
// affinity thread, falling back inline when the executor is already gone.
// Repeated calls perform the work at most once.
func (v *View) Dispose() {
	for {
		s := v.state.Load()
		if s == int32(Disposing) || s == int32(Disposed) {
			return
		}
		if v.state.CompareAndSwap(s, int32(Disposing)) {
			break
		}
	}

	v.mgr.remove(v)

	if err := v.exec.RunBlocking(func() error {
		v.teardown()
		return nil
	}); err != nil {
		// Executor already unavailable; tear down on the calling thread.
		v.teardown()
	}

	v.state.Store(int32(Disposed))
	v.log.Info().Msg("view disposed")
}

// DisposeAsync disposes the view without blocking the caller. The returned
// channel closes when teardown completes.
func (v *View) DisposeAsync() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		v.Dispose()
	}()
	return done
}

// teardown releases every owned native object. Runs on the executor
// thread, or inline when the executor is unavailable.
func (v *View) teardown() {
	if v.pipeline != nil {
		v.pipeline.Stop()
		v.pipeline = nil
	}
	if v.ctrl != nil {
		v.ctrl.SetNavigationCompletedHandler(nil)
		v.ctrl.SetCursorChangedHandler(nil)
		if err := v.ctrl.Close(); err != nil {
			v.log.Warn().Err(err).Msg("closing controller")
		}
		v.ctrl = nil
	}
	if v.compCtrl != nil {
		if err := v.compCtrl.Close(); err != nil {
			v.log.Warn().Err(err).Msg("closing composition controller")
		}
		v.compCtrl = nil
	}
	if v.contentVisual != nil {
		v.contentVisual.Dispose()
		v.contentVisual = nil
	}
	if v.rootVisual != nil {
		v.rootVisual.Dispose()
		v.rootVisual = nil
	}
	if v.win != nil {
		v.win.Dispose()
		v.win = nil
	}
}
