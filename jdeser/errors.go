package jdeser

import (
	"fmt"

	"github.com/pkg/errors"
)

// ValidityError reports that the input stream does not conform to the
// Java Object Serialization Stream Protocol: bad magic, bad type code,
// malformed descriptors, negative sizes, handle collisions, dangling
// back-references, forbidden flag combinations, rename collisions.
type ValidityError struct {
	msg string
}

func (e *ValidityError) Error() string { return e.msg }

func validityErrorf(format string, args ...interface{}) error {
	return &ValidityError{msg: fmt.Sprintf(format, args...)}
}

// IOError reports an unexpected end of input or an underlying source
// failure while reading the stream.
type IOError struct {
	msg   string
	cause error
}

func (e *IOError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.msg, e.cause)
	}
	return e.msg
}

func (e *IOError) Unwrap() error { return e.cause }

func wrapIO(cause error, msg string) error {
	if cause == nil {
		return nil
	}
	return &IOError{msg: msg, cause: cause}
}

// embeddedException is the internal exception-read control signal of
// spec.md §4.11/§7. It is raised whenever a TC_EXCEPTION marker is
// recognized anywhere in the grammar, including inside a nested read,
// and is caught only at the top-level read loop in Parse, which
// replaces the in-progress content item with an ExceptionState. It must
// never escape the package.
type embeddedException struct {
	instance *Instance
}

func (e *embeddedException) Error() string {
	return "embedded exception object encountered mid-stream"
}

// asEmbeddedException reports whether err (or something it wraps) is an
// embeddedException signal, returning it if so.
func asEmbeddedException(err error) (*embeddedException, bool) {
	var sig *embeddedException
	if errors.As(err, &sig) {
		return sig, true
	}
	return nil, false
}
