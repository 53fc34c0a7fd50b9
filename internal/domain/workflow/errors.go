package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a state is not valid
	ErrInvalidState = errors.New("invalid state")

	// ErrGuardFailed is returned when a guard condition fails
	ErrGuardFailed = errors.New("guard condition failed")
)

// ErrorKind classifies workflow failures so callers can map them to responses
type ErrorKind string

const (
	KindAlreadyActive          ErrorKind = "intervention_already_active"
	KindInvalidState           ErrorKind = "invalid_state"
	KindStepNotFound           ErrorKind = "step_not_found"
	KindValidationFailed       ErrorKind = "validation_failed"
	KindConcurrentModification ErrorKind = "concurrent_modification"
	KindTimeout                ErrorKind = "timeout"
	KindStepOutOfOrder         ErrorKind = "step_out_of_order"
	KindNotFound               ErrorKind = "not_found"
	KindDatabase               ErrorKind = "database"
)

// InterventionError is the error type returned by every workflow operation
type InterventionError struct {
	Kind    ErrorKind
	Message string
	Details []string
	Err     error
}

func (e *InterventionError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Details) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(e.Details, "; "))
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *InterventionError) Unwrap() error {
	return e.Err
}

// Is matches any InterventionError of the same kind, so the sentinels below
// work with errors.Is regardless of message.
func (e *InterventionError) Is(target error) bool {
	t, ok := target.(*InterventionError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is checks
var (
	ErrInterventionAlreadyActive          = &InterventionError{Kind: KindAlreadyActive}
	ErrInterventionInvalidState           = &InterventionError{Kind: KindInvalidState}
	ErrInterventionStepNotFound           = &InterventionError{Kind: KindStepNotFound}
	ErrInterventionValidationFailed       = &InterventionError{Kind: KindValidationFailed}
	ErrInterventionConcurrentModification = &InterventionError{Kind: KindConcurrentModification}
	ErrInterventionTimeout                = &InterventionError{Kind: KindTimeout}
	ErrInterventionStepOutOfOrder         = &InterventionError{Kind: KindStepOutOfOrder}
	ErrInterventionNotFound               = &InterventionError{Kind: KindNotFound}
	ErrDatabase                           = &InterventionError{Kind: KindDatabase}
)

// AlreadyActive reports that the task already has a pending or in-progress intervention
func AlreadyActive(taskID, interventionID string) *InterventionError {
	return &InterventionError{
		Kind:    KindAlreadyActive,
		Message: fmt.Sprintf("task %s already has an active intervention", taskID),
		Details: []string{interventionID},
	}
}

func InvalidState(format string, args ...interface{}) *InterventionError {
	return &InterventionError{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func StepNotFound(stepID string) *InterventionError {
	return &InterventionError{Kind: KindStepNotFound, Message: fmt.Sprintf("step %s not found", stepID)}
}

// ValidationFailed carries one detail line per violated rule
func ValidationFailed(message string, details ...string) *InterventionError {
	return &InterventionError{Kind: KindValidationFailed, Message: message, Details: details}
}

func ConcurrentModification(interventionID string, expected, actual int64) *InterventionError {
	return &InterventionError{
		Kind:    KindConcurrentModification,
		Message: fmt.Sprintf("intervention %s was modified (expected version %d, found %d)", interventionID, expected, actual),
	}
}

func Timeout(interventionID string, idle string) *InterventionError {
	return &InterventionError{
		Kind:    KindTimeout,
		Message: fmt.Sprintf("intervention %s view is stale (idle %s)", interventionID, idle),
	}
}

func StepOutOfOrder(stepNumber int, blocking []int) *InterventionError {
	details := make([]string, 0, len(blocking))
	for _, n := range blocking {
		details = append(details, fmt.Sprintf("step %d is not finished", n))
	}
	return &InterventionError{
		Kind:    KindStepOutOfOrder,
		Message: fmt.Sprintf("step %d cannot be advanced before earlier steps", stepNumber),
		Details: details,
	}
}

func NotFound(what, id string) *InterventionError {
	return &InterventionError{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", what, id)}
}

// Internal wraps a storage failure. The message is safe to log but not to return to clients.
func Internal(op string, err error) *InterventionError {
	return &InterventionError{Kind: KindDatabase, Message: op, Err: err}
}

// KindOf extracts the error kind, or KindDatabase for foreign errors
func KindOf(err error) ErrorKind {
	var ie *InterventionError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return KindDatabase
}
