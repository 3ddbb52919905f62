package domain

import (
	"errors"
	"fmt"
)

var (
	ErrContainer          = errors.New("archive container unreadable")
	ErrFormatUnrecognized = errors.New("archive format unrecognized")
	ErrRecordParse        = errors.New("record parse failure")
	ErrShapeMismatch      = errors.New("unexpected document shape")
	ErrMemberNotFound     = errors.New("archive member not found")

	ErrInvalidInput    = errors.New("invalid input")
	ErrSessionNotFound = errors.New("session not found")
	ErrFlowFinished    = errors.New("flow finished")
	ErrTemporary       = errors.New("temporary failure")
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
