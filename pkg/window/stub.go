//go:build !linux

package window

import "github.com/rs/zerolog"

// NewPlatformFactory returns a factory whose windows are logical no-ops.
// No native windowing backend is compiled in on this platform.
func NewPlatformFactory(log zerolog.Logger) Factory {
	return stubFactory{log: log.With().Str("component", "window-stub").Logger()}
}

type stubFactory struct {
	log zerolog.Logger
}

func (f stubFactory) CreateHidden(width, height int) (Window, error) {
	f.log.Debug().Int("width", width).Int("height", height).
		Msg("stub hidden window created")
	return stubWindow{}, nil
}

type stubWindow struct{}

func (stubWindow) Handle() uintptr                    { return 0 }
func (stubWindow) FindChild([]string) (uintptr, bool) { return 0, false }
func (stubWindow) SendKey(uintptr, KeyMessage) error  { return nil }
func (stubWindow) Dispose()                           {}
