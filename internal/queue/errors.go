package queue

import (
	"errors"
	"fmt"
)

// Op names the adapter operation that failed.
type Op string

const (
	// OpConstruct is building an adapter and reaching its broker.
	OpConstruct Op = "construct"
	// OpSend is publishing a message.
	OpSend Op = "send"
	// OpReceive is polling or fetching a message.
	OpReceive Op = "receive"
	// OpCodec is converting a payload to or from bytes.
	OpCodec Op = "codec"
	// OpClose is releasing connections and subscriptions.
	OpClose Op = "close"
)

// Sentinel errors. Every *Error matches the sentinel of its Op via errors.Is.
var (
	ErrConstruction = errors.New("queue construction failed")
	ErrSend         = errors.New("queue send failed")
	ErrReceive      = errors.New("queue receive failed")
	ErrCodec        = errors.New("queue codec failed")
	ErrClose        = errors.New("queue close failed")

	// ErrClosed is returned when using an adapter after Close.
	ErrClosed = errors.New("queue is closed")

	// ErrUnknownKind is returned for a backend kind the factory cannot build.
	ErrUnknownKind = errors.New("unknown queue kind")
)

// Error describes a failed adapter operation.
type Error struct {
	Op   Op
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s failed", e.Kind, e.Op)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e.Op.
func (e *Error) Is(target error) bool {
	switch e.Op {
	case OpConstruct:
		return target == ErrConstruction
	case OpSend:
		return target == ErrSend
	case OpReceive:
		return target == ErrReceive
	case OpCodec:
		return target == ErrCodec
	case OpClose:
		return target == ErrClose
	}
	return false
}

// NewError wraps err as a failure of op on the kind backend.
// A nil err yields nil.
func NewError(kind Kind, op Op, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// ConstructionError wraps a construction failure.
func ConstructionError(kind Kind, err error) error { return NewError(kind, OpConstruct, err) }

// SendError wraps a publish failure.
func SendError(kind Kind, err error) error { return NewError(kind, OpSend, err) }

// ReceiveError wraps a poll or fetch failure.
func ReceiveError(kind Kind, err error) error { return NewError(kind, OpReceive, err) }

// CodecError wraps a payload conversion failure.
func CodecError(kind Kind, err error) error { return NewError(kind, OpCodec, err) }

// CloseError wraps a resource release failure.
func CloseError(kind Kind, err error) error { return NewError(kind, OpClose, err) }
