package record

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/openclinic/ehr-scheduling/internal/scheduling"
)

// CreateInput carries the consultation content for a new record. Patient
// and doctor references come from the anchoring appointment, never from the
// caller.
type CreateInput struct {
	AppointmentID uuid.UUID
	Symptoms      string
	Diagnosis     string
	Prescription  string
	Notes         string
	BloodPressure *string
	Temperature   *float64
	Weight        *float64
}

type Service struct {
	repo  Repository
	appts AppointmentSource
	clock scheduling.Clock
	log   *logrus.Logger
}

func NewService(repo Repository, appts AppointmentSource, clock scheduling.Clock, log *logrus.Logger) *Service {
	return &Service{
		repo:  repo,
		appts: appts,
		clock: clock,
		log:   log,
	}
}

// Create writes the consultation record for a completed appointment. Only
// the appointment's assigned doctor may write it, and only once.
func (s *Service) Create(ctx context.Context, actor scheduling.Actor, in CreateInput) (*MedicalRecord, error) {
	if actor.Role != scheduling.RoleDoctor {
		return nil, scheduling.ErrForbidden
	}

	appt, err := s.appts.GetAppointmentByID(ctx, in.AppointmentID)
	if err != nil {
		return nil, err
	}
	if actor.ID != appt.DoctorID {
		return nil, scheduling.ErrForbidden
	}
	if appt.Status != scheduling.StatusCompleted {
		return nil, ErrNotCompleted
	}

	now := s.clock.Now()
	rec := &MedicalRecord{
		ID:            uuid.New(),
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		DoctorID:      appt.DoctorID,
		Symptoms:      in.Symptoms,
		Diagnosis:     in.Diagnosis,
		Prescription:  in.Prescription,
		Notes:         in.Notes,
		BloodPressure: in.BloodPressure,
		Temperature:   in.Temperature,
		Weight:        in.Weight,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.CreateRecord(ctx, rec); err != nil {
		if errors.Is(err, ErrRecordExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create medical record: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"record_id":      rec.ID,
		"appointment_id": appt.ID,
	}).Info("medical record created")

	return rec, nil
}

// PatientHistory lists a patient's records chronologically, applying the
// same access rule as the scheduling history view: patient self, assigned
// doctor (scoped to own consultations), or admin.
func (s *Service) PatientHistory(ctx context.Context, patientID uuid.UUID, actor scheduling.Actor) ([]MedicalRecord, error) {
	var doctorScope *uuid.UUID

	switch actor.Role {
	case scheduling.RoleAdmin:
	case scheduling.RolePatient:
		if actor.ID != patientID {
			return nil, scheduling.ErrForbidden
		}
	case scheduling.RoleDoctor:
		treated, err := s.appts.DoctorTreatedPatient(ctx, actor.ID, patientID)
		if err != nil {
			return nil, fmt.Errorf("check doctor-patient relation: %w", err)
		}
		if !treated {
			return nil, scheduling.ErrForbidden
		}
		doctorID := actor.ID
		doctorScope = &doctorID
	default:
		return nil, scheduling.ErrForbidden
	}

	return s.repo.ListByPatient(ctx, patientID, doctorScope)
}
