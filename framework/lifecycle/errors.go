package lifecycle

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrLateRegistration is the panic value (wrapped) for registering a
	// manager after initialization began.
	ErrLateRegistration = errors.New("lifecycle: manager registered after initialization began")
	// ErrStalledInitialization means a manager never reported ready in time.
	ErrStalledInitialization = errors.New("lifecycle: stalled initialization")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("lifecycle: supervisor already started")
)

// StallError names the manager the supervisor gave up waiting for.
type StallError struct {
	Manager string
	Index   int
	Waited  time.Duration
}

func (e *StallError) Error() string {
	return fmt.Sprintf("lifecycle: manager %s (#%d) not ready after %s: stalled initialization",
		e.Manager, e.Index, e.Waited)
}

func (e *StallError) Unwrap() error { return ErrStalledInitialization }
