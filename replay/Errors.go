package replay

import "errors"

// Error implements errors unique to a replay buffer
type Error struct {
	Op  string
	Err error
}

// Error satisfies the error interface
func (e *Error) Error() string {
	return e.Op + ": " + e.Err.Error()
}

var errEmptyBuffer error = errors.New("buffer empty")

var errInsufficientSamples = errors.New("buffer below minimum capacity")

// IsInsufficientSamples returns whether or not an error reports that
// the buffer holds fewer transitions than its minimum capacity, so
// that sampling is not yet allowed.
func IsInsufficientSamples(err error) bool {
	if replayErr, ok := err.(*Error); ok {
		err = replayErr.Err
	}
	return err == errInsufficientSamples
}

// IsEmptyBuffer returns whether or not an error reports that a replay
// buffer is empty.
func IsEmptyBuffer(err error) bool {
	if replayErr, ok := err.(*Error); ok {
		err = replayErr.Err
	}
	return err == errEmptyBuffer
}
