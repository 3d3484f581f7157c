package gpu

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/lumen/engine/logger"
)

var (
	// ErrCapacityExceeded is raised when an upload is larger than its destination buffer.
	ErrCapacityExceeded = errors.New("gpu: upload exceeds buffer capacity")

	// ErrRecorderSealed is raised when a command is recorded after Finish.
	ErrRecorderSealed = errors.New("gpu: command recorder is sealed")

	// ErrRecorderNotFinished is returned when an unsealed recorder is executed.
	ErrRecorderNotFinished = errors.New("gpu: command recorder was not finished")

	// ErrForeignRecorder is returned when a recorder created by another device is executed.
	ErrForeignRecorder = errors.New("gpu: command recorder belongs to a different device")

	// ErrInvalidDescriptor is returned when a resource description cannot be created.
	ErrInvalidDescriptor = errors.New("gpu: invalid resource descriptor")
)

// violation logs a contract violation and panics. Contract violations are not recoverable:
// a frame recorded past one would draw with undefined data.
func violation(err error, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logger.Error(msg, "err", err)
	panic(fmt.Errorf("%s: %w", msg, err))
}
