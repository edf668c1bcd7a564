package record

import (
	"time"

	"github.com/google/uuid"
)

// MedicalRecord is the consultation write-up anchored to one completed
// appointment. The scheduling core guarantees the anchor is valid; the
// content itself is opaque to it.
type MedicalRecord struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	PatientID     uuid.UUID
	DoctorID      uuid.UUID
	Symptoms      string
	Diagnosis     string
	Prescription  string
	Notes         string
	BloodPressure *string
	Temperature   *float64
	Weight        *float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
