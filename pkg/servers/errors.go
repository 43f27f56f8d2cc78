package servers

import (
	"fmt"
)

// ServerError reports a lifecycle failure of a named server.
type ServerError struct {
	Server string
	Op     string
	Err    error
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server %s failed to %s: %v", e.Server, e.Op, e.Err)
}

func (e *ServerError) Unwrap() error {
	return e.Err
}

func ErrServerFailedToStart(name string, err error) error {
	return &ServerError{Server: name, Op: "start", Err: err}
}

func ErrServerFailedToStop(name string, err error) error {
	return &ServerError{Server: name, Op: "stop", Err: err}
}
