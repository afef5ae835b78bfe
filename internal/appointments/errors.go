package appointments

import (
	"errors"
	"fmt"
	"strings"

	"sacs-telemedicina-hub/internal/models"
)

var (
	ErrNotFound          = errors.New("appointment not found")
	ErrInvalidTransition = errors.New("invalid appointment transition")
	ErrPersistence       = errors.New("appointment persistence failure")
	ErrValidation        = errors.New("appointment validation failed")
)

// TransitionError carries the context a caller needs to decide between a retry
// and a corrective message. It matches the package sentinels with errors.Is.
type TransitionError struct {
	AppointmentID string
	Transition    Transition
	Status        models.AppointmentStatus
	Reason        string
	Fields        []string
	Err           error
}

func (e *TransitionError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Transition))
	if e.AppointmentID != "" {
		fmt.Fprintf(&b, " appointment %s", e.AppointmentID)
	}
	if e.Status != "" {
		fmt.Fprintf(&b, " (status %s)", e.Status)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

func invalid(t Transition, a models.Appointment, format string, args ...any) error {
	return &TransitionError{
		AppointmentID: a.ID,
		Transition:    t,
		Status:        a.Status,
		Reason:        fmt.Sprintf(format, args...),
		Err:           ErrInvalidTransition,
	}
}

func invalidPayload(t Transition, a models.Appointment, fields ...string) error {
	return &TransitionError{
		AppointmentID: a.ID,
		Transition:    t,
		Status:        a.Status,
		Reason:        "missing or invalid: " + strings.Join(fields, ", "),
		Fields:        fields,
		Err:           ErrValidation,
	}
}

func persistence(err error) error {
	if errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}
