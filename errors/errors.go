package errors

import "fmt"

var (
	ErrValidation        = fmt.Errorf("validation failed")
	ErrNotFound          = fmt.Errorf("not found")
	ErrForbidden         = fmt.Errorf("forbidden for this actor")
	ErrInvalidSession    = fmt.Errorf("chat session does not exist")
	ErrSessionClosed     = fmt.Errorf("chat session is closed")
	ErrInvalidTransition = fmt.Errorf("invalid session status transition")
)

var ErrWorkerPanic = fmt.Errorf("worker panic")
