package overlay

import (
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

// Options configures a Manager's platform backends.
type Options struct {
	// Environment creates the shared browser-engine environment. Invoked
	// on the affinity thread during Initialize.
	Environment func() (browser.Environment, error)

	// Compositor creates the shared compositor. Invoked on the affinity
	// thread during Initialize.
	Compositor func() (compositor.Compositor, error)

	// Windows creates hidden surface windows.
	Windows window.Factory

	// Device is the caller-owned native GPU device, wrapped through the
	// object-model bridge. Never released by this subsystem.
	Device any

	// Frames is the platform frame-delivery backend.
	Frames capture.FrameSource

	// ThreadInit and Pump are handed to the affinity executor for
	// platform apartment setup and message-loop iteration.
	ThreadInit func() error
	Pump       func()

	// AlphaInterval overrides the capture pipelines' alpha snapshot
	// interval. Zero selects the default.
	AlphaInterval int

	Logger zerolog.Logger
}

// Manager owns the set of views, the shared engine environment, the
// shared compositor, the shared affinity executor, and the single
// focused-view pointer.
type Manager struct {
	log  zerolog.Logger
	opts Options

	exec   *affinity.Executor
	env    browser.Environment
	comp   compositor.Compositor
	device gpu.Device

	alphaInterval int
	idCounter     atomic.Uint64

	mu          sync.Mutex
	views       map[uint64]*View
	focused     *View // non-owning; cleared when the view is removed
	initialized bool
	disposed    bool

	// OnCursorChanged fires when the focused view's cursor changes, and
	// once per focus switch with the newly focused view's cursor.
	OnCursorChanged func(cursor uintptr)

	// OnFocusChanged fires after the focus protocol completes. view is
	// nil when focus was cleared.
	OnFocusChanged func(view *View)
}

// NewManager creates a manager. Initialize must be called before views
// can be created.
func NewManager(opts Options) *Manager {
	return &Manager{
		log:           opts.Logger.With().Str("component", "overlay").Logger(),
		opts:          opts,
		alphaInterval: opts.AlphaInterval,
		views:         make(map[uint64]*View),
	}
}

// Initialize starts the affinity executor and creates the shared engine
// environment and compositor on its thread.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return ErrDisposed
	}
	if m.initialized {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	device, err := gpu.WrapDevice(m.opts.Device)
	if err != nil {
		return err
	}

	exec := affinity.New(affinity.Options{
		ThreadInit: m.opts.ThreadInit,
		Pump:       m.opts.Pump,
		Logger:     m.opts.Logger,
	})
	if err := exec.Start(); err != nil {
		return err
	}

	var (
		env  browser.Environment
		comp compositor.Compositor
	)
	err = exec.RunBlocking(func() error {
		var err error
		if env, err = m.opts.Environment(); err != nil {
			return err
		}
		comp, err = m.opts.Compositor()
		return err
	})
	if err != nil {
		exec.Dispose()
		return err
	}

	m.mu.Lock()
	m.exec = exec
	m.env = env
	m.comp = comp
	m.device = device
	m.initialized = true
	m.mu.Unlock()

	m.log.Info().Msg("manager initialized")
	return nil
}

// CreateView constructs a view sharing the manager's executor,
// environment, and compositor, and registers it. The view still needs
// Initialize before use.
func (m *Manager) CreateView(width, height int) (*View, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidSize
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized || m.disposed {
		return nil, ErrNotInitialized
	}

	id := m.idCounter.Add(1)
	v := &View{
		id:      id,
		mgr:     m,
		log:     m.log.With().Uint64("view_id", id).Logger(),
		exec:    m.exec,
		env:     m.env,
		comp:    m.comp,
		windows: m.opts.Windows,
		device:  m.device,
		frames:  m.opts.Frames,
		width:   width,
		height:  height,
	}
	m.views[id] = v
	return v, nil
}

// FocusedView returns the currently focused view, or nil.
func (m *Manager) FocusedView() *View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.focused
}

// SetFocusedView moves focus to view. No-op when already focused. The
// previous view is notified of the loss first, then the new view gains
// focus, then one cursor notification fires with the new view's cursor.
func (m *Manager) SetFocusedView(view *View) {
	m.mu.Lock()
	prev := m.focused
	if prev == view {
		m.mu.Unlock()
		return
	}
	m.focused = view
	m.mu.Unlock()

	if prev != nil {
		prev.setFocused(false)
	}
	var cursor uintptr
	if view != nil {
		view.setFocused(true)
		cursor = view.Cursor()
	}
	if m.OnCursorChanged != nil {
		m.OnCursorChanged(cursor)
	}
	if m.OnFocusChanged != nil {
		m.OnFocusChanged(view)
	}
}

// ClearFocus removes focus from any view.
func (m *Manager) ClearFocus() {
	m.SetFocusedView(nil)
}

// reportCursor re-emits a view's cursor change only while that view is
// focused.
func (m *Manager) reportCursor(v *View, cursor uintptr) {
	m.mu.Lock()
	focused := m.focused == v
	m.mu.Unlock()
	if focused && m.OnCursorChanged != nil {
		m.OnCursorChanged(cursor)
	}
}

// remove deregisters a view, clearing the focus pointer when it pointed
// at the removed view.
func (m *Manager) remove(v *View) {
	m.mu.Lock()
	delete(m.views, v.id)
	if m.focused == v {
		m.focused = nil
	}
	m.mu.Unlock()
}

// SendMouseMove routes a mouse move to the focused view, if any.
func (m *Manager) SendMouseMove(x, y int, mods browser.KeyModifiers) {
	if v := m.FocusedView(); v != nil {
		v.HandleMouseMove(x, y, mods)
	}
}

// SendMouseButton routes a button event to the focused view, if any.
func (m *Manager) SendMouseButton(x, y int, button browser.MouseButton, down bool, mods browser.KeyModifiers) {
	if v := m.FocusedView(); v != nil {
		v.HandleMouseButton(x, y, button, down, mods)
	}
}

// SendMouseWheel routes a wheel event to the focused view, if any.
func (m *Manager) SendMouseWheel(x, y, delta int, horizontal bool, mods browser.KeyModifiers) {
	if v := m.FocusedView(); v != nil {
		v.HandleMouseWheel(x, y, delta, horizontal, mods)
	}
}

// SendMouseLeave routes a pointer-leave to the focused view, if any.
func (m *Manager) SendMouseLeave() {
	if v := m.FocusedView(); v != nil {
		v.HandleMouseLeave()
	}
}

// SendKeyboardMessage routes a raw keyboard message to the focused view,
// if any. Unfocused input is silently dropped.
func (m *Manager) SendKeyboardMessage(msg window.KeyMessage) {
	if v := m.FocusedView(); v != nil {
		v.HandleKeyboardMessage(msg)
	}
}

// Dispose tears the whole manager down: the registry and focus pointer
// are snapshotted and cleared first so no new work can be queued, then
// each view, the compositor, the environment, and finally the executor
// are disposed in order. When the executor never started, everything is
// disposed directly on the calling thread via the views' inline fallback.
func (m *Manager) Dispose() {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return
	}
	m.disposed = true
	views := make([]*View, 0, len(m.views))
	for _, v := range m.views {
		views = append(views, v)
	}
	m.views = make(map[uint64]*View)
	m.focused = nil
	exec := m.exec
	comp := m.comp
	env := m.env
	m.mu.Unlock()

	for _, v := range views {
		v.Dispose()
	}

	disposeShared := func() {
		if comp != nil {
			if err := comp.Dispose(); err != nil {
				m.log.Warn().Err(err).Msg("disposing compositor")
			}
		}
		if env != nil {
			if err := env.Dispose(); err != nil {
				m.log.Warn().Err(err).Msg("disposing environment")
			}
		}
	}

	if exec != nil {
		if err := exec.RunBlocking(func() error {
			disposeShared()
			return nil
		}); err != nil {
			disposeShared()
		}
		exec.Dispose()
	} else {
		disposeShared()
	}

	m.log.Info().Msg("manager disposed")
}

// DisposeAsync disposes the manager without blocking the caller. The
// returned channel closes once disposal reaches the same end state as
// Dispose.
func (m *Manager) DisposeAsync() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Dispose()
	}()
	return done
}
