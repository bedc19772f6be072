package browser

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateModifiers(t *testing.T) {
	tests := []struct {
		name string
		mods KeyModifiers
		want VirtualKeys
	}{
		{name: "none", mods: 0, want: 0},
		{name: "shift", mods: ModShift, want: VKShift},
		{name: "control", mods: ModControl, want: VKControl},
		{name: "buttons", mods: ModLeftButton | ModRightButton | ModMiddleButton,
			want: VKLeftButton | VKRightButton | VKMiddleButton},
		{name: "mixed", mods: ModShift | ModLeftButton, want: VKShift | VKLeftButton},
		{name: "alt has no engine virtual key", mods: ModAlt, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TranslateModifiers(tt.mods))
		})
	}
}

func awaitController(t *testing.T, env Environment) CompositionController {
	t.Helper()
	select {
	case r := <-env.CreateCompositionController(1):
		require.NoError(t, r.Err)
		return r.Controller
	case <-time.After(time.Second):
		t.Fatal("controller creation did not complete")
		return nil
	}
}

func TestStubEnvironment(t *testing.T) {
	env := NewStubEnvironment(zerolog.Nop())
	comp := awaitController(t, env)

	ctrl, err := comp.Controller()
	require.NoError(t, err)

	var completed []string
	ctrl.SetNavigationCompletedHandler(func(url string) {
		completed = append(completed, url)
	})

	require.NoError(t, ctrl.Navigate("https://example.com"))
	assert.Equal(t, []string{"https://example.com"}, completed)

	// Reload re-completes against the last URL.
	require.NoError(t, ctrl.Reload())
	assert.Equal(t, []string{"https://example.com", "https://example.com"}, completed)

	require.NoError(t, ctrl.Close())
	assert.ErrorIs(t, ctrl.Navigate("https://example.com"), ErrClosed)

	require.NoError(t, comp.Close())
	_, err = comp.Controller()
	assert.ErrorIs(t, err, ErrClosed)

	require.NoError(t, env.Dispose())
}
