package record

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/openclinic/ehr-scheduling/internal/scheduling"
)

var (
	ErrRecordNotFound = errors.New("medical record not found")

	// ErrRecordExists: at most one record per appointment.
	ErrRecordExists = errors.New("appointment already has a medical record")

	// ErrNotCompleted rejects records against appointments that have not
	// reached the completed status.
	ErrNotCompleted = errors.New("appointment is not completed")
)

// Repository stores medical records.
type Repository interface {
	CreateRecord(ctx context.Context, rec *MedicalRecord) error
	GetRecordByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error)

	// ListByPatient returns the patient's records oldest first; doctorID,
	// when non-nil, restricts to that doctor's consultations.
	ListByPatient(ctx context.Context, patientID uuid.UUID, doctorID *uuid.UUID) ([]MedicalRecord, error)
}

// AppointmentSource is the slice of the scheduling store the record service
// needs to validate anchors and gate access.
type AppointmentSource interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
	DoctorTreatedPatient(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
}
