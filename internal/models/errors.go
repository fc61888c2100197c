package models

import (
	"errors"
	"fmt"
)

// Domain errors. Callers match them with errors.Is.
var (
	ErrNotFound            = errors.New("resource not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrDuplicate           = errors.New("resource already exists")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrPaymentNotConfirmed = errors.New("payment not confirmed")
	ErrUsageUnavailable    = errors.New("usage unavailable")
	ErrRbacDenied          = errors.New("permission denied by role")
	ErrPlanDenied          = errors.New("permission denied by plan")
	ErrConflict            = errors.New("concurrent update conflict, retry the request")
	ErrPlanInUse           = errors.New("plan is referenced by a live subscription")
)

// TransitionError reports an event that is not legal from the current state.
// It always unwraps to ErrInvalidTransition.
type TransitionError struct {
	Event  string
	From   string
	Reason string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("cannot %s from status %q", e.Event, e.From)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
