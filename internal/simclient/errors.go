package simclient

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a client failure.
type Kind int

const (
	KindConnection Kind = iota + 1 // dial, I/O or a closed connection
	KindProtocol                   // malformed or mismatched frame
	KindRemote                     // the simulator answered with an error
	KindIndex                      // actuator or sensor index out of range
	KindCancelled                  // ctx ended before the call completed
)

var (
	ErrConnection = errors.New("simclient: connection failure")
	ErrProtocol   = errors.New("simclient: protocol error")
	ErrRemote     = errors.New("simclient: simulator error")
	ErrIndex      = errors.New("simclient: index out of range")
	ErrCancelled  = errors.New("simclient: call cancelled")
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindProtocol:
		return "protocol"
	case KindRemote:
		return "remote"
	case KindIndex:
		return "index"
	case KindCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) sentinel() error {
	switch k {
	case KindConnection:
		return ErrConnection
	case KindProtocol:
		return ErrProtocol
	case KindRemote:
		return ErrRemote
	case KindIndex:
		return ErrIndex
	case KindCancelled:
		return ErrCancelled
	}
	return nil
}

// Error is returned by every Client method that fails. errors.Is matches it
// against the sentinel of its Kind.
type Error struct {
	Kind Kind
	Op   string
	Code int // remote error code, zero unless Kind is KindRemote or KindIndex
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// KindOf reports the Kind of err, or zero if err did not come from a Client.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
