package core

import (
	"errors"
	"fmt"
)

// ErrNotSupported is returned by engine or filesystem operations the
// underlying implementation cannot perform, such as disabling file deletions
// on an engine without deletion tracking, or hard-linking across filesystems.
var ErrNotSupported = errors.New("operation not supported")

// InvalidTargetError reports a checkpoint or export directory that cannot be
// used: it already exists, or its name is empty or consists only of slashes.
type InvalidTargetError struct {
	Dir    string
	Reason string
}

func (e *InvalidTargetError) Error() string {
	return fmt.Sprintf("invalid target directory %q: %s", e.Dir, e.Reason)
}

// IsInvalidTarget checks if an error is an InvalidTargetError.
func IsInvalidTarget(err error) bool {
	var invalidTarget *InvalidTargetError
	return errors.As(err, &invalidTarget)
}

// CorruptionError reports on-disk state the subsystem cannot interpret, such
// as a live file whose name does not parse.
type CorruptionError struct {
	Message string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("corruption detected: %s", e.Message)
}

// IsCorruption checks if an error is a CorruptionError.
func IsCorruption(err error) bool {
	var corruption *CorruptionError
	return errors.As(err, &corruption)
}
