package archive

import (
	"errors"
	"fmt"
)

var (
	// ErrCorrupt matches every *CorruptError.
	ErrCorrupt = errors.New("archive corrupt")

	// ErrUnsafePath is returned when an entry name is absolute, empty or
	// escapes the extraction root.
	ErrUnsafePath = errors.New("unsafe entry path")
)

// CorruptError reports a malformed or truncated record.
type CorruptError struct {
	Offset int64  // stream offset where the problem was detected
	Entry  string // entry name, empty if the name itself was unreadable
	Reason string
	Err    error // underlying read error, if any
}

func (e *CorruptError) Error() string {
	msg := fmt.Sprintf("archive corrupt at offset %d", e.Offset)
	if e.Entry != "" {
		msg += fmt.Sprintf(" (entry %q)", e.Entry)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CorruptError) Unwrap() error { return e.Err }

func (e *CorruptError) Is(target error) bool { return target == ErrCorrupt }

// IsCorrupt reports whether err is or wraps a *CorruptError.
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorrupt)
}
