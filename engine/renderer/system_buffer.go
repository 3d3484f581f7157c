package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/lumen/engine/logger"
	"github.com/Carmen-Shannon/lumen/engine/renderer/gpu"
	"github.com/Carmen-Shannon/lumen/engine/renderer/shader"
)

// systemBuffer is the CPU copy of a system constant buffer the scene renderer fills.
type systemBuffer struct {
	shader shader.Shader
	layout *shader.ConstantBufferLayout
	buffer gpu.Buffer
	data   []byte
}

// set writes raw bytes at a member's offset. An undeclared member or a size mismatch is
// fatal.
func (b *systemBuffer) set(name string, value []byte) {
	if !b.trySet(name, value) {
		logger.Error("system uniform not declared", "shader", b.shader.Name(), "buffer", b.layout.Name, "uniform", name)
		panic(fmt.Sprintf("renderer: shader %s buffer %s has no uniform %s", b.shader.Name(), b.layout.Name, name))
	}
}

// setOptional writes a member when the buffer declares it.
func (b *systemBuffer) setOptional(name string, value []byte) {
	b.trySet(name, value)
}

func (b *systemBuffer) trySet(name string, value []byte) bool {
	u, ok := b.layout.FindUniform(name)
	if !ok {
		return false
	}
	if len(value) != u.Size {
		logger.Error("system uniform size mismatch", "shader", b.shader.Name(), "uniform", name, "size", len(value), "want", u.Size)
		panic(fmt.Sprintf("renderer: uniform %s is %d bytes, got %d", name, u.Size, len(value)))
	}
	copy(b.data[u.Offset:], value)
	return true
}

// upload records the current bytes into the buffer's slot.
func (b *systemBuffer) upload(rec gpu.CommandRecorder) {
	rec.SetConstantBufferData(b.layout.Stage, b.layout.Register, b.buffer, b.data)
}
