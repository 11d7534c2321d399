package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = fmt.Errorf("not found")
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrUnauthorized    = fmt.Errorf("unauthorized")
	ErrDuplicateSource = fmt.Errorf("source address already holds a session")
	ErrUnknownEvent    = fmt.Errorf("unknown event")
	ErrPayloadTooLarge = fmt.Errorf("payload too large")
	ErrWorkerPanic     = fmt.Errorf("worker panic")
	ErrEmptyWords      = fmt.Errorf("no words have been found")
)

// Is reports whether any error in err's tree matches target.
var Is = errors.Is
