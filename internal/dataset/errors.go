package dataset

import "errors"

// ErrUnavailable matches every failure to read or parse the input file.
var ErrUnavailable = errors.New("Cannot find input file")

// UnavailableError carries the path and underlying cause of a failed load.
// Its message is always the generic ErrUnavailable text so that it can be
// returned to clients without leaking file system details.
type UnavailableError struct {
	Path string
	Err  error
}

func (e *UnavailableError) Error() string {
	return ErrUnavailable.Error()
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}
