package kmertop

import "github.com/pkg/errors"

// Every error returned by this package wraps exactly one of these kinds.
// Use errors.Is to classify a failure; the message names the check that
// failed and the input it failed on.
var (
	// ErrNotFound is returned when the input path does not resolve.
	ErrNotFound = errors.New("kmertop: input not found")

	// ErrFormat is returned when the input is not a valid 4-line record
	// file, including when it yields no k-mers at all.
	ErrFormat = errors.New("kmertop: invalid input format")

	// ErrResource is returned when a filter, partition file or scratch
	// directory can't be created, written or read.
	ErrResource = errors.New("kmertop: resource failure")

	// ErrParameter is returned for out-of-range options.
	ErrParameter = errors.New("kmertop: invalid parameter")
)

// kindError tags a cause with one of the error kinds above. Both the kind
// and the cause chain match errors.Is.
type kindError struct {
	kind  error
	cause error
}

func (e *kindError) Error() string        { return e.kind.Error() + ": " + e.cause.Error() }
func (e *kindError) Unwrap() error        { return e.cause }
func (e *kindError) Is(target error) bool { return target == e.kind }

// resourceErr reports a failed filter, file or directory operation.
func resourceErr(cause error, format string, args ...any) error {
	return errors.WithStack(&kindError{
		kind:  ErrResource,
		cause: errors.WithMessagef(cause, format, args...),
	})
}
