package victrola

import (
	"errors"
	"fmt"
)

// ErrQueueExpired is returned by PollEvents when the device answers 404,
// meaning the event queue no longer exists server-side and the caller must
// resubscribe.
var ErrQueueExpired = errors.New("event queue expired")

// DeviceRejectedError represents a non-200 response from the device.
type DeviceRejectedError struct {
	Path   string
	Status int
	Body   string
}

func (e *DeviceRejectedError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("victrola %s rejected: http %d", e.Path, e.Status)
	}
	return fmt.Sprintf("victrola %s rejected: http %d (%s)", e.Path, e.Status, e.Body)
}

// DeviceTimeoutError indicates a request timed out.
type DeviceTimeoutError struct {
	Path string
}

func (e *DeviceTimeoutError) Error() string {
	return fmt.Sprintf("victrola %s timed out", e.Path)
}

// DeviceUnreachableError indicates the device could not be reached.
type DeviceUnreachableError struct {
	Path string
	Err  error
}

func (e *DeviceUnreachableError) Error() string {
	return fmt.Sprintf("victrola %s unreachable: %v", e.Path, e.Err)
}

func (e *DeviceUnreachableError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a transport-level failure (timeout,
// connection refused, non-200). Protocol-level problems (malformed JSON,
// missing keys) are handled by skipping the affected field and never reach
// this classification.
func IsTransport(err error) bool {
	var timeout *DeviceTimeoutError
	var unreachable *DeviceUnreachableError
	var rejected *DeviceRejectedError
	return errors.As(err, &timeout) || errors.As(err, &unreachable) || errors.As(err, &rejected)
}
