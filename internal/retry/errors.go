package retry

import (
	"errors"
	"fmt"
)

// TransientError marks a failure worth retrying: network faults, timeouts,
// remote 5xx responses. The controller treats anything that is not a
// FatalError as transient.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// FatalError marks a platform-level permanent rejection. Code carries the
// status code that caused the classification; the set of codes treated as
// fatal is configured on the client that tags the error, not here. A
// FatalError ends the retry loop immediately.
type FatalError struct {
	Code int
	Op   string
	Err  error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.Code)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err carries a FatalError anywhere in its chain.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}
