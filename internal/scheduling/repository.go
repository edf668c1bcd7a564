package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows ListAppointments. Nil fields are ignored. Results are
// always ordered by start time ascending.
type ListFilter struct {
	PatientID   *uuid.UUID
	DoctorID    *uuid.UUID
	Statuses    []Status
	StartsAfter *time.Time
	StartsIn    *TimeRange
}

// Repository contains all storage interactions needed by the service.
//
// The calendar index is written only here, inside the same transaction as
// the appointment row it derives from: CreateAppointment reserves the slot,
// UpdateAppointmentStatus releases it on a terminal transition (and flips
// the entry to confirmed on confirm), RescheduleAppointment swaps old for
// new. Status changes are compare-and-set on the expected current status so
// concurrent transitions cannot silently overwrite each other.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	CreateAppointment(ctx context.Context, appt *Appointment) error
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)
	RescheduleAppointment(ctx context.Context, id uuid.UUID, from Status, newRange TimeRange) (*Appointment, error)

	ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, error)

	// DoctorTreatedPatient reports whether the doctor has at least one
	// appointment (any status) with the patient; gates history access.
	DoctorTreatedPatient(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)

	// FindLapsedPending returns pending appointments whose window ended
	// before the given instant; consumed by the sweep worker.
	FindLapsedPending(ctx context.Context, before time.Time) ([]Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}

// CalendarStore is the read side of the derived busy index, consumed by the
// conflict resolver under the per-doctor lock.
type CalendarStore interface {
	// QueryBusy returns the entries intersecting window for one doctor,
	// ordered by start time.
	QueryBusy(ctx context.Context, doctorID uuid.UUID, window TimeRange) ([]CalendarEntry, error)
}
