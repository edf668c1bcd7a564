package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether no further transition may leave this status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// Actor is the already-resolved identity of the caller. Resolution itself
// (token → id + role) happens upstream; the service trusts it.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the range is well-formed (non-empty, not inverted).
func (r TimeRange) Valid() bool {
	return r.End.After(r.Start)
}

// Overlaps uses the half-open test, so back-to-back ranges do not overlap.
func (r TimeRange) Overlaps(o TimeRange) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	StartTime time.Time
	EndTime   time.Time
	Status    Status
	Reason    string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Range returns the appointment's scheduled window.
func (a *Appointment) Range() TimeRange {
	return TimeRange{Start: a.StartTime, End: a.EndTime}
}

// CalendarEntry is one row of the derived per-doctor busy index. The entry
// status mirrors the appointment status while it is in {pending, confirmed};
// terminal appointments have no entry.
type CalendarEntry struct {
	AppointmentID uuid.UUID
	DoctorID      uuid.UUID
	StartTime     time.Time
	EndTime       time.Time
	Status        Status
}

func (e CalendarEntry) Range() TimeRange {
	return TimeRange{Start: e.StartTime, End: e.EndTime}
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
