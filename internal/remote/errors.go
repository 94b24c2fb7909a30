package remote

import (
	"errors"
	"fmt"
)

var (
	ErrAuthExpired        = errors.New("remote: session expired")
	ErrNetworkUnavailable = errors.New("remote: network unavailable")
	ErrMalformedResponse  = errors.New("remote: malformed response")
	ErrNotFound           = errors.New("remote: entity not found")
)

// ConflictError is returned when a mutating call used a stale revision tag.
type ConflictError struct {
	CurrentTag string
}

func (e *ConflictError) Error() string {
	if e.CurrentTag == "" {
		return "remote: revision conflict"
	}
	return fmt.Sprintf("remote: revision conflict (current tag %s)", e.CurrentTag)
}

type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindAuthExpired
	KindNetwork
	KindMalformed
	KindConflict
	KindNotFound
	KindOther
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindAuthExpired:
		return "auth_expired"
	case KindNetwork:
		return "network"
	case KindMalformed:
		return "malformed"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	default:
		return "other"
	}
}

// Classify maps an error returned by a Client onto the remote error taxonomy.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var conflict *ConflictError
	switch {
	case errors.Is(err, ErrAuthExpired):
		return KindAuthExpired
	case errors.Is(err, ErrNetworkUnavailable):
		return KindNetwork
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformed
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.As(err, &conflict):
		return KindConflict
	default:
		return KindOther
	}
}

func networkError(err error) error {
	return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}
