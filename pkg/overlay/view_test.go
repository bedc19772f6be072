package overlay

import (
	"image"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webpane/webpane/internal/platformtest"
	"github.com/webpane/webpane/pkg/browser"
	"github.com/webpane/webpane/pkg/compositor"
	"github.com/webpane/webpane/pkg/window"
)

type managerFixture struct {
	mgr     *Manager
	env     *platformtest.FakeEnvironment
	frames  *platformtest.FakeFrameSource
	windows *platformtest.FakeWindowFactory
}

func newTestManager(t *testing.T) *managerFixture {
	t.Helper()
	f := &managerFixture{
		env:     &platformtest.FakeEnvironment{Cursor: 7},
		frames:  &platformtest.FakeFrameSource{},
		windows: &platformtest.FakeWindowFactory{ChildClass: "Chrome_RenderWidgetHostHWND"},
	}
	f.mgr = NewManager(Options{
		Environment:   func() (browser.Environment, error) { return f.env, nil },
		Compositor:    func() (compositor.Compositor, error) { return compositor.New(), nil },
		Windows:       f.windows,
		Device:        &platformtest.FakeDevice{},
		Frames:        f.frames,
		AlphaInterval: 1,
		Logger:        zerolog.Nop(),
	})
	require.NoError(t, f.mgr.Initialize())
	t.Cleanup(f.mgr.Dispose)
	return f
}

// drain submits a blocking no-op after any pending posts, so everything
// queued before it has run once it returns.
func (f *managerFixture) drain(t *testing.T) {
	t.Helper()
	require.NoError(t, f.mgr.exec.RunBlocking(func() error { return nil }))
}

func (f *managerFixture) readyView(t *testing.T, w, h int) *View {
	t.Helper()
	v, err := f.mgr.CreateView(w, h)
	require.NoError(t, err)
	require.NoError(t, v.Initialize())
	return v
}

// controller returns the engine controller created for the i-th
// initialized view.
func (f *managerFixture) controller(t *testing.T, i int) *platformtest.FakeController {
	t.Helper()
	require.Greater(t, len(f.env.Controllers), i)
	return f.env.Controllers[i]
}

func TestView_InitializeLifecycle(t *testing.T) {
	f := newTestManager(t)
	v, err := f.mgr.CreateView(800, 600)
	require.NoError(t, err)
	assert.Equal(t, Uninitialized, v.State())

	var ready bool
	v.OnReady = func() { ready = true }

	require.NoError(t, v.Initialize())
	assert.Equal(t, Ready, v.State())
	assert.True(t, ready)

	ctrl := f.controller(t, 0)
	w, h := ctrl.Bounds()
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)
	assert.True(t, ctrl.Visible)
	assert.True(t, ctrl.Transparent)
	assert.Equal(t, browser.Settings{DevTools: true}, ctrl.Settings)
	assert.EqualValues(t, 7, v.Cursor())

	// Capture runs against the root visual at the view size.
	pool := f.frames.LastPool()
	require.NotNil(t, pool)
	assert.True(t, pool.Session.Started)
	assert.Equal(t, 800, pool.W)
	assert.Equal(t, 600, pool.H)

	// The content visual fills the root.
	f.drain(t)
	cw, ch := v.contentVisual.Size()
	assert.Equal(t, 800, cw)
	assert.Equal(t, 600, ch)

	// Initialize again is a no-op once ready.
	require.NoError(t, v.Initialize())
}

func TestView_InitializeFailureRevertsState(t *testing.T) {
	f := newTestManager(t)
	f.env.FailCreate = true

	v, err := f.mgr.CreateView(800, 600)
	require.NoError(t, err)
	err = v.Initialize()
	require.ErrorIs(t, err, ErrInitFailed)
	assert.Equal(t, Uninitialized, v.State())

	// Partially created objects are released.
	require.Len(t, f.windows.Windows, 1)
	assert.Equal(t, 1, f.windows.Windows[0].Disposes())
}

func TestView_InitializeControllerUnavailable(t *testing.T) {
	f := newTestManager(t)
	f.env.NoController = true

	v, err := f.mgr.CreateView(800, 600)
	require.NoError(t, err)
	err = v.Initialize()
	require.ErrorIs(t, err, ErrInitFailed)
	assert.Equal(t, Uninitialized, v.State())
}

func TestView_DisposeDuringInitialize(t *testing.T) {
	f := newTestManager(t)
	gate := make(chan struct{})
	f.env.Gate = gate

	v, err := f.mgr.CreateView(800, 600)
	require.NoError(t, err)

	initErr := make(chan error, 1)
	go func() { initErr <- v.Initialize() }()
	require.Eventually(t, func() bool {
		return v.State() == Initializing
	}, time.Second, time.Millisecond)

	// Dispose while the chain is awaiting controller creation. The view
	// must end up terminally Disposed, not resurrect as Ready.
	done := v.DisposeAsync()
	require.Eventually(t, func() bool {
		return v.State() == Disposed
	}, time.Second, time.Millisecond)

	close(gate)
	require.ErrorIs(t, <-initErr, ErrDisposed)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispose did not complete")
	}

	assert.Equal(t, Disposed, v.State())
	f.drain(t)
	assert.Nil(t, v.pipeline, "no capture session survives disposal")
	require.Len(t, f.windows.Windows, 1)
	assert.Equal(t, 1, f.windows.Windows[0].Disposes())

	// The controller that finished creating after disposal is released.
	require.Len(t, f.env.Compositions, 1)
	assert.Equal(t, 1, f.env.Compositions[0].Closes())

	f.mgr.mu.Lock()
	assert.Empty(t, f.mgr.views)
	f.mgr.mu.Unlock()
}

func TestView_NavigateAndCompletion(t *testing.T) {
	f := newTestManager(t)
	v, err := f.mgr.CreateView(800, 600)
	require.NoError(t, err)

	assert.ErrorIs(t, v.Navigate("https://example.com"), ErrNotInitialized)

	var mu sync.Mutex
	var completed []string
	v.OnNavigationCompleted = func(url string) {
		mu.Lock()
		completed = append(completed, url)
		mu.Unlock()
	}
	require.NoError(t, v.Initialize())

	require.NoError(t, v.Navigate("https://example.com"))
	f.drain(t)

	assert.Equal(t, []string{"https://example.com"}, f.controller(t, 0).Navigations)
	assert.Equal(t, "https://example.com", v.URL())
	mu.Lock()
	assert.Equal(t, []string{"https://example.com"}, completed)
	mu.Unlock()
}

func TestView_ReloadAndDevTools(t *testing.T) {
	f := newTestManager(t)
	v, err := f.mgr.CreateView(800, 600)
	require.NoError(t, err)
	assert.ErrorIs(t, v.Reload(), ErrNotInitialized)
	assert.ErrorIs(t, v.OpenDevTools(), ErrNotInitialized)

	require.NoError(t, v.Initialize())
	require.NoError(t, v.Reload())
	require.NoError(t, v.OpenDevTools())

	ctrl := f.controller(t, 0)
	assert.Equal(t, 1, ctrl.Reloads)
	assert.Equal(t, 1, ctrl.DevTools)
}

func TestView_Resize(t *testing.T) {
	f := newTestManager(t)
	v := f.readyView(t, 800, 600)

	v.Resize(400, 300)

	// The stored size updates synchronously, ahead of the posted work.
	w, h := v.Size()
	assert.Equal(t, 400, w)
	assert.Equal(t, 300, h)

	f.drain(t)
	bw, bh := f.controller(t, 0).Bounds()
	assert.Equal(t, 400, bw)
	assert.Equal(t, 300, bh)
	rw, rh := v.rootVisual.Size()
	assert.Equal(t, 400, rw)
	assert.Equal(t, 300, rh)
	cw, ch := v.contentVisual.Size()
	assert.Equal(t, 400, cw)
	assert.Equal(t, 300, ch)
	assert.Contains(t, f.frames.LastPool().Recreates, [2]int{400, 300})
}

func TestView_ReadyPrecedesNavigationCompleted(t *testing.T) {
	f := newTestManager(t)
	v, err := f.mgr.CreateView(800, 600)
	require.NoError(t, err)

	var mu sync.Mutex
	var events []string
	v.OnReady = func() {
		mu.Lock()
		events = append(events, "ready")
		mu.Unlock()
	}
	v.OnNavigationCompleted = func(url string) {
		mu.Lock()
		events = append(events, "navigationCompleted:"+url)
		mu.Unlock()
	}

	require.NoError(t, v.Initialize())
	require.NoError(t, v.Navigate("about:blank"))
	f.drain(t)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"ready", "navigationCompleted:about:blank"}, events)
}

func TestView_ResizeRejectsNonPositive(t *testing.T) {
	f := newTestManager(t)
	v := f.readyView(t, 800, 600)

	v.Resize(0, 300)
	v.Resize(400, -1)
	f.drain(t)

	w, h := v.Size()
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)
	bw, bh := f.controller(t, 0).Bounds()
	assert.Equal(t, 800, bw)
	assert.Equal(t, 600, bh)
}

func TestView_ClickThrough(t *testing.T) {
	f := newTestManager(t)
	v := f.readyView(t, 16, 16)

	frame, _ := platformtest.NewTextureFrame(16, 16, [4]byte{0, 0, 0, 5})
	f.frames.LastPool().Deliver(frame)

	assert.EqualValues(t, 5, v.AlphaAt(3, 3))
	assert.Equal(t, v.AlphaAt(3, 3), v.AlphaAtPoint(image.Pt(3, 3)))

	// Threshold zero disables click-through regardless of alpha.
	assert.False(t, v.ShouldClickThrough(3, 3))

	v.SetClickThroughThreshold(10)
	assert.True(t, v.ShouldClickThrough(3, 3))
	v.SetClickThroughThreshold(5)
	assert.True(t, v.ShouldClickThrough(3, 3), "alpha equal to threshold passes through")
	v.SetClickThroughThreshold(4)
	assert.False(t, v.ShouldClickThrough(3, 3))

	// Out of bounds reads opaque and therefore never passes through.
	v.SetClickThroughThreshold(200)
	assert.False(t, v.ShouldClickThrough(-1, 500))
}

func TestView_AlphaBeforeInitialize(t *testing.T) {
	f := newTestManager(t)
	v, err := f.mgr.CreateView(16, 16)
	require.NoError(t, err)
	assert.EqualValues(t, 255, v.AlphaAt(0, 0))
	assert.False(t, v.ShouldClickThrough(0, 0))
}

func TestView_MouseInput(t *testing.T) {
	f := newTestManager(t)
	v := f.readyView(t, 800, 600)

	v.HandleMouseMove(10, 20, browser.ModShift)
	v.HandleMouseButton(10, 20, browser.MouseButtonLeft, true, 0)
	v.HandleMouseButton(10, 20, browser.MouseButtonLeft, false, 0)
	v.HandleMouseWheel(10, 20, 120, false, 0)
	v.HandleMouseWheel(10, 20, -120, true, 0)
	v.HandleMouseLeave()
	f.drain(t)

	comp, ok := v.compCtrl.(*platformtest.FakeCompositionController)
	require.True(t, ok)
	events := comp.Mouse()
	require.Len(t, events, 6)
	assert.Equal(t, browser.MouseMove, events[0].Kind)
	assert.Equal(t, browser.VKShift, events[0].VirtualKeys)
	assert.Equal(t, browser.MouseDown, events[1].Kind)
	assert.Equal(t, browser.MouseUp, events[2].Kind)
	assert.Equal(t, browser.MouseWheel, events[3].Kind)
	assert.Equal(t, 120, events[3].WheelDelta)
	assert.Equal(t, browser.MouseHorizontalWheel, events[4].Kind)
	assert.Equal(t, browser.MouseLeave, events[5].Kind)
}

func TestView_KeyboardForwarding(t *testing.T) {
	f := newTestManager(t)
	v := f.readyView(t, 800, 600)

	msg := window.KeyMessage{Code: window.KeyMessageDown, WParam: 0x41}
	v.HandleKeyboardMessage(msg)
	f.drain(t)

	require.Len(t, f.windows.Windows, 1)
	keys := f.windows.Windows[0].SentKeys()
	require.Len(t, keys, 1)
	assert.Equal(t, msg, keys[0])
}

func TestView_KeyboardDroppedWithoutInputWindow(t *testing.T) {
	f := newTestManager(t)
	f.windows.ChildClass = "" // engine never creates its input sub-window
	v := f.readyView(t, 800, 600)

	v.HandleKeyboardMessage(window.KeyMessage{Code: window.KeyMessageDown, WParam: 0x41})
	f.drain(t)

	assert.Empty(t, f.windows.Windows[0].SentKeys())
}

func TestView_CursorChangeNotification(t *testing.T) {
	f := newTestManager(t)
	v := f.readyView(t, 800, 600)

	var mu sync.Mutex
	var cursors []uintptr
	v.OnCursorChanged = func(c uintptr) {
		mu.Lock()
		cursors = append(cursors, c)
		mu.Unlock()
	}

	f.controller(t, 0).FireCursorChanged(42)
	assert.EqualValues(t, 42, v.Cursor())
	mu.Lock()
	assert.Equal(t, []uintptr{42}, cursors)
	mu.Unlock()
}

func TestView_DisposePerformsTeardownOnce(t *testing.T) {
	f := newTestManager(t)
	v := f.readyView(t, 800, 600)
	ctrl := f.controller(t, 0)
	comp := v.compCtrl.(*platformtest.FakeCompositionController)

	v.Dispose()
	v.Dispose()
	assert.Equal(t, Disposed, v.State())
	assert.Equal(t, 1, ctrl.Closes())
	assert.Equal(t, 1, comp.Closes())
	assert.Equal(t, 1, f.windows.Windows[0].Disposes())
	assert.True(t, f.frames.LastPool().Closed)

	f.mgr.mu.Lock()
	assert.Empty(t, f.mgr.views)
	f.mgr.mu.Unlock()
}

func TestView_DisposeAsync(t *testing.T) {
	f := newTestManager(t)
	v := f.readyView(t, 800, 600)

	select {
	case <-v.DisposeAsync():
	case <-time.After(time.Second):
		t.Fatal("async dispose did not complete")
	}
	assert.Equal(t, Disposed, v.State())
}

func TestViewState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", Uninitialized.String())
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "disposed", Disposed.String())
	assert.Equal(t, "unknown", ViewState(99).String())
}
