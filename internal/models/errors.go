package models

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrExtraction      = errors.New("extraction error")
	ErrEmbedding       = errors.New("embedding error")
	ErrGeneration      = errors.New("generation error")
	ErrConfiguration   = errors.New("configuration error")
	ErrStorage         = errors.New("storage error")
	ErrTimeout         = errors.New("timed out")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
)

// Wrap annotates err with an error kind so callers can match it with errors.Is.
// A deadline exceeded cause additionally matches ErrTimeout.
func Wrap(kind error, err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	switch {
	case err == nil:
		return fmt.Errorf("%s: %w", msg, kind)
	case errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout):
		return fmt.Errorf("%s: %w: %w: %w", msg, kind, ErrTimeout, err)
	default:
		return fmt.Errorf("%s: %w: %w", msg, kind, err)
	}
}

// KindOf returns a short name for the kind of err, or "internal" when it carries none.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrExtraction):
		return "extraction"
	case errors.Is(err, ErrEmbedding):
		return "embedding"
	case errors.Is(err, ErrGeneration):
		return "generation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrStorage):
		return "storage"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}
