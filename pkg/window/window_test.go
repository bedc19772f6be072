package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchClass(t *testing.T) {
	tests := []struct {
		name     string
		class    string
		patterns []string
		want     bool
	}{
		{
			name:     "exact match",
			class:    "Chrome_RenderWidgetHostHWND",
			patterns: InputWindowClassPatterns,
			want:     true,
		},
		{
			name:     "case insensitive",
			class:    "chrome_renderwidgethosthwnd",
			patterns: InputWindowClassPatterns,
			want:     true,
		},
		{
			name:     "versioned suffix",
			class:    "Chrome_WidgetWin_1",
			patterns: InputWindowClassPatterns,
			want:     true,
		},
		{
			name:     "webkit class",
			class:    "WebKitWebView",
			patterns: InputWindowClassPatterns,
			want:     true,
		},
		{
			name:     "unrelated class",
			class:    "GtkDrawingArea",
			patterns: InputWindowClassPatterns,
			want:     false,
		},
		{
			name:     "empty class",
			class:    "",
			patterns: InputWindowClassPatterns,
			want:     false,
		},
		{
			name:     "empty pattern never matches",
			class:    "anything",
			patterns: []string{""},
			want:     false,
		},
		{
			name:     "no patterns",
			class:    "Chrome_WidgetWin_1",
			patterns: nil,
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchClass(tt.class, tt.patterns))
		})
	}
}
