package errors

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalid      = errors.New("invalid")
	ErrConflict     = errors.New("conflict")
	ErrTooMany      = errors.New("too many requests")
	ErrInternal     = errors.New("internal")
	ErrNotReady     = errors.New("session not ready")
	ErrStartup      = errors.New("session startup failed")
	ErrQueueFull    = errors.New("submission queue full")
	ErrSessionGone  = errors.New("session closed")
	ErrNoTranscript = errors.New("transcript disabled")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
