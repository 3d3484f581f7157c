package render_target

import "github.com/Carmen-Shannon/lumen/engine/renderer/gpu"

// RenderTargetBuilderOption is a functional option used to configure a RenderTarget during
// construction.
type RenderTargetBuilderOption func(*renderTarget)

// WithLabel sets the label the attachments are named after.
//
// Parameters:
//   - label: the debug label
//
// Returns:
//   - RenderTargetBuilderOption: a function that sets the label of the target
func WithLabel(label string) RenderTargetBuilderOption {
	return func(rt *renderTarget) {
		rt.label = label
	}
}

// WithSize sets the initial size of the target.
//
// Parameters:
//   - width: the width in pixels
//   - height: the height in pixels
//
// Returns:
//   - RenderTargetBuilderOption: a function that sets the size of the target
func WithSize(width, height int) RenderTargetBuilderOption {
	return func(rt *renderTarget) {
		rt.width, rt.height = width, height
	}
}

// WithClearColor sets the color the color attachments are cleared to.
//
// Parameters:
//   - color: the clear color
//
// Returns:
//   - RenderTargetBuilderOption: a function that sets the clear color of the target
func WithClearColor(color gpu.Color) RenderTargetBuilderOption {
	return func(rt *renderTarget) {
		rt.clearColor = color
	}
}

// WithAttachments sets the attachment descriptions, replacing the default single color
// attachment.
//
// Parameters:
//   - attachments: the attachments in order; at most one may have a depth format
//
// Returns:
//   - RenderTargetBuilderOption: a function that sets the attachments of the target
func WithAttachments(attachments ...Attachment) RenderTargetBuilderOption {
	return func(rt *renderTarget) {
		rt.attachments = append([]Attachment(nil), attachments...)
	}
}
