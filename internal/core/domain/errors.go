package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMeetingNotFound = errors.New("meeting not found")
	ErrChunkNotFound   = errors.New("chunk not found")
	ErrMinutesNotFound = errors.New("minutes not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrTemporary       = errors.New("temporary failure")
	ErrQuotaExceeded   = errors.New("provider quota exceeded")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
