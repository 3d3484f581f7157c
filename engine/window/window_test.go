package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// These tests exercise the parts of the window that do not need a display.

func TestBuilderOptions(t *testing.T) {
	w := &engineWindow{}
	for _, opt := range []WindowBuilderOption{
		WithTitle("viewer"),
		WithSize(800, 600),
		WithMinSize(100, 50),
		WithMaxSize(1000, 700),
	} {
		opt(w)
	}
	assert.Equal(t, "viewer", w.title)
	assert.Equal(t, 800, w.Width())
	assert.Equal(t, 600, w.Height())

	width, height := w.clampSize(5000, 10)
	assert.Equal(t, 1000, width)
	assert.Equal(t, 50, height)
}

func TestClosedWindow(t *testing.T) {
	w := &engineWindow{}
	assert.False(t, w.IsRunning())
	assert.Nil(t, w.SurfaceDescriptor())
	assert.Error(t, w.Close())
	assert.NotPanics(t, func() { w.SetTitle("closed") })

	called := false
	w.SetUpdateCallback(func() { called = true })
	w.ProcessMessages()
	assert.False(t, called)
}

func TestMouseButtonString(t *testing.T) {
	assert.Equal(t, "left", MouseButtonLeft.String())
	assert.Equal(t, "middle", MouseButtonMiddle.String())
	assert.Equal(t, "unknown", MouseButton(7).String())
}
