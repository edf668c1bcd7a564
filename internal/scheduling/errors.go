package scheduling

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrInvalidRange rejects malformed windows before any store access.
	ErrInvalidRange = errors.New("invalid time range")

	// ErrDoubleBooking means the requested range overlaps a held slot.
	// Usually carried by a ConflictError naming the colliding appointment.
	ErrDoubleBooking = errors.New("double booking")

	// ErrInvalidTransition covers status changes the lifecycle does not
	// allow, including ones lost to a concurrent transition.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrForbidden means the actor is not authorized for the operation,
	// either by role or because they are not a party to the appointment.
	ErrForbidden = errors.New("forbidden")

	// ErrBusy means the per-doctor lock could not be acquired; the request
	// is safe to retry.
	ErrBusy = errors.New("doctor calendar is busy, please retry")
)

// ConflictError wraps ErrDoubleBooking with the appointment that holds the
// colliding reservation.
type ConflictError struct {
	ConflictingID uuid.UUID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("double booking: conflicts with appointment %s", e.ConflictingID)
}

func (e *ConflictError) Unwrap() error { return ErrDoubleBooking }
