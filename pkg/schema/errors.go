package schema

import "fmt"

// PreconditionError aborts an operation before anything was changed.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return "precondition failed: " + e.Reason
}

func NewPreconditionError(format string, args ...interface{}) *PreconditionError {
	return &PreconditionError{Reason: fmt.Sprintf(format, args...)}
}

// UnsupportedVolumeError is returned when the root filesystem is not copy-on-write capable.
type UnsupportedVolumeError struct {
	FSType string
}

func (e *UnsupportedVolumeError) Error() string {
	return fmt.Sprintf("root filesystem is %q, snapshots require btrfs", e.FSType)
}

// Unwrap lets errors.As match an UnsupportedVolumeError as a PreconditionError.
func (e *UnsupportedVolumeError) Unwrap() error {
	return &PreconditionError{Reason: e.Error()}
}

type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("snapshot %q not found", e.Name)
}
