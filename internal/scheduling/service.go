package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/openclinic/ehr-scheduling/internal/config"
	redisclient "github.com/openclinic/ehr-scheduling/internal/redis"
)

const (
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentConfirmed   = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentSwept       = "APPOINTMENT_SWEPT"
)

// Service orchestrates the appointment lifecycle. It is the only writer of
// appointment state; the calendar index is maintained by the repository
// inside the same transaction as each appointment write.
type Service struct {
	repo   Repository
	cal    CalendarStore
	locker redisclient.Locker
	clock  Clock
	cfg    config.Config
	log    *logrus.Logger
}

func NewService(repo Repository, cal CalendarStore, locker redisclient.Locker, clock Clock, cfg config.Config, log *logrus.Logger) *Service {
	return &Service{
		repo:   repo,
		cal:    cal,
		locker: locker,
		clock:  clock,
		cfg:    cfg,
		log:    log,
	}
}

// Book reserves [rng.Start, rng.End) with doctorID for patientID and creates
// the appointment as pending, as one atomic step under the doctor's lock.
// Concurrent overlapping requests cannot both succeed: the loser gets a
// ConflictError naming the appointment that won.
func (s *Service) Book(ctx context.Context, actor Actor, patientID, doctorID uuid.UUID, rng TimeRange, reason string) (*Appointment, error) {
	if !rng.Valid() {
		return nil, ErrInvalidRange
	}

	switch actor.Role {
	case RolePatient:
		if actor.ID != patientID {
			return nil, ErrForbidden
		}
	case RoleAdmin:
		// admin may book on behalf of any patient
	default:
		return nil, ErrForbidden
	}

	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	var created *Appointment

	err := s.locker.WithDoctorLock(ctx, doctorID, func(lockCtx context.Context) error {
		busy, err := s.cal.QueryBusy(lockCtx, doctorID, rng)
		if err != nil {
			return fmt.Errorf("query busy entries: %w", err)
		}

		decision, err := ResolveConflict(busy, rng, uuid.Nil, s.cfg.AllowPendingOverlap)
		if err != nil {
			return err
		}
		if !decision.Available {
			return &ConflictError{ConflictingID: decision.ConflictingID}
		}

		now := s.clock.Now()
		appt := &Appointment{
			ID:        uuid.New(),
			PatientID: patientID,
			DoctorID:  doctorID,
			StartTime: rng.Start,
			EndTime:   rng.End,
			Status:    StatusPending,
			Reason:    reason,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.CreateAppointment(lockCtx, appt); err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		created = appt

		s.logEvent(lockCtx, appt.ID, EventAppointmentBooked, map[string]any{
			"patient_id": patientID.String(),
			"doctor_id":  doctorID.String(),
			"start":      rng.Start,
			"end":        rng.End,
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrBusy
		}
		return nil, err
	}

	return created, nil
}

// Confirm moves a pending appointment to confirmed; only the assigned
// doctor may do it. When pending holds are allowed to overlap, confirmation
// is the point where the slot is actually claimed, so the conflict check
// reruns here under the doctor's lock.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID, actor Actor) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := CheckTransition(appt, StatusConfirmed, actor, s.clock.Now()); err != nil {
		return nil, err
	}

	if !s.cfg.AllowPendingOverlap {
		return s.transition(ctx, appt, StatusConfirmed, EventAppointmentConfirmed, nil)
	}

	var updated *Appointment
	err = s.locker.WithDoctorLock(ctx, appt.DoctorID, func(lockCtx context.Context) error {
		busy, err := s.cal.QueryBusy(lockCtx, appt.DoctorID, appt.Range())
		if err != nil {
			return fmt.Errorf("query busy entries: %w", err)
		}
		// other provisional holds on the slot lose the race but do not
		// block the first confirmation
		decision, err := ResolveConflict(busy, appt.Range(), appt.ID, true)
		if err != nil {
			return err
		}
		if !decision.Available {
			return &ConflictError{ConflictingID: decision.ConflictingID}
		}
		updated, err = s.transition(lockCtx, appt, StatusConfirmed, EventAppointmentConfirmed, nil)
		return err
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrBusy
		}
		return nil, err
	}
	return updated, nil
}

// Cancel moves a pending or confirmed appointment to cancelled and frees
// its calendar slot. Patient, assigned doctor, and admin may cancel.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor Actor) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := CheckTransition(appt, StatusCancelled, actor, s.clock.Now()); err != nil {
		return nil, err
	}

	return s.transition(ctx, appt, StatusCancelled, EventAppointmentCancelled, map[string]any{
		"by_role": string(actor.Role),
	})
}

// Complete closes out a confirmed appointment once its start time has been
// reached; only the assigned doctor may do it. A completed appointment is
// the anchor for a medical record.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, actor Actor) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := CheckTransition(appt, StatusCompleted, actor, s.clock.Now()); err != nil {
		return nil, err
	}

	return s.transition(ctx, appt, StatusCompleted, EventAppointmentCompleted, nil)
}

// Reschedule swaps the appointment onto newRange and drops it back to
// pending, as one atomic check-then-swap under the doctor's lock. The
// appointment's own reservation is excluded from the conflict check; on
// conflict nothing changes.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, newRange TimeRange, actor Actor) (*Appointment, error) {
	if !newRange.Valid() {
		return nil, ErrInvalidRange
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := CheckTransition(appt, StatusPending, actor, s.clock.Now()); err != nil {
		return nil, err
	}

	var updated *Appointment

	err = s.locker.WithDoctorLock(ctx, appt.DoctorID, func(lockCtx context.Context) error {
		busy, err := s.cal.QueryBusy(lockCtx, appt.DoctorID, newRange)
		if err != nil {
			return fmt.Errorf("query busy entries: %w", err)
		}

		decision, err := ResolveConflict(busy, newRange, appt.ID, s.cfg.AllowPendingOverlap)
		if err != nil {
			return err
		}
		if !decision.Available {
			return &ConflictError{ConflictingID: decision.ConflictingID}
		}

		updated, err = s.repo.RescheduleAppointment(lockCtx, appt.ID, appt.Status, newRange)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				// lost a concurrent transition race
				return ErrInvalidTransition
			}
			return fmt.Errorf("reschedule appointment: %w", err)
		}

		s.logEvent(lockCtx, appt.ID, EventAppointmentRescheduled, map[string]any{
			"old_start": appt.StartTime,
			"old_end":   appt.EndTime,
			"new_start": newRange.Start,
			"new_end":   newRange.End,
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrBusy
		}
		return nil, err
	}

	return updated, nil
}

// Upcoming lists non-terminal appointments starting after now, ascending,
// scoped to what the actor may see.
func (s *Service) Upcoming(ctx context.Context, actor Actor) ([]Appointment, error) {
	now := s.clock.Now()
	f := ListFilter{
		Statuses:    []Status{StatusPending, StatusConfirmed},
		StartsAfter: &now,
	}
	if err := scopeToActor(&f, actor); err != nil {
		return nil, err
	}
	return s.repo.ListAppointments(ctx, f)
}

// Today lists non-terminal appointments on the current calendar day in the
// clinic's time zone, ascending, scoped to what the actor may see.
func (s *Service) Today(ctx context.Context, actor Actor) ([]Appointment, error) {
	now := s.clock.Now().In(s.cfg.ClinicTZ)
	dayStart := startOfDay(now)
	day := TimeRange{Start: dayStart, End: dayStart.AddDate(0, 0, 1)}

	f := ListFilter{
		Statuses: []Status{StatusPending, StatusConfirmed},
		StartsIn: &day,
	}
	if err := scopeToActor(&f, actor); err != nil {
		return nil, err
	}
	return s.repo.ListAppointments(ctx, f)
}

// PatientHistory lists the patient's terminal appointments oldest first.
// The patient themself and admins see everything; a doctor sees only the
// consultations they were assigned to, and only if at least one exists.
func (s *Service) PatientHistory(ctx context.Context, patientID uuid.UUID, actor Actor) ([]Appointment, error) {
	f := ListFilter{
		PatientID: &patientID,
		Statuses:  []Status{StatusCompleted, StatusCancelled},
	}

	switch actor.Role {
	case RoleAdmin:
	case RolePatient:
		if actor.ID != patientID {
			return nil, ErrForbidden
		}
	case RoleDoctor:
		treated, err := s.repo.DoctorTreatedPatient(ctx, actor.ID, patientID)
		if err != nil {
			return nil, fmt.Errorf("check doctor-patient relation: %w", err)
		}
		if !treated {
			return nil, ErrForbidden
		}
		doctorID := actor.ID
		f.DoctorID = &doctorID
	default:
		return nil, ErrForbidden
	}

	return s.repo.ListAppointments(ctx, f)
}

// GetAppointment fetches one appointment, applying the same visibility rule
// as the list views.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID, actor Actor) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch actor.Role {
	case RoleAdmin:
	case RolePatient:
		if actor.ID != appt.PatientID {
			return nil, ErrForbidden
		}
	case RoleDoctor:
		if actor.ID != appt.DoctorID {
			return nil, ErrForbidden
		}
	default:
		return nil, ErrForbidden
	}

	return appt, nil
}

// SweepLapsedPending cancels pending appointments whose window ended without
// a doctor confirmation, freeing their slots. Called by the sweep worker.
func (s *Service) SweepLapsedPending(ctx context.Context) (int, error) {
	lapsed, err := s.repo.FindLapsedPending(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("find lapsed pending appointments: %w", err)
	}

	swept := 0
	for _, appt := range lapsed {
		_, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusPending, StatusCancelled)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				continue // transitioned concurrently, nothing to do
			}
			s.log.WithFields(logrus.Fields{
				"appointment_id": appt.ID,
				"error":          err,
			}).Error("failed to sweep lapsed appointment")
			continue
		}
		s.logEvent(ctx, appt.ID, EventAppointmentSwept, map[string]any{
			"lapsed_end": appt.EndTime,
		})
		swept++
	}

	return swept, nil
}

// transition performs the compare-and-set status write and logs the event.
// The transition check has already passed; a CAS miss means a concurrent
// transition won, which surfaces as ErrInvalidTransition.
func (s *Service) transition(ctx context.Context, appt *Appointment, to Status, eventType string, payload map[string]any) (*Appointment, error) {
	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.logEvent(ctx, updated.ID, eventType, payload)
	return updated, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.WithField("event_type", eventType).WithError(err).Error("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.clock.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.WithFields(logrus.Fields{
			"event_type":     eventType,
			"appointment_id": appointmentID,
		}).WithError(err).Error("failed to insert event log")
	}
}

func scopeToActor(f *ListFilter, actor Actor) error {
	switch actor.Role {
	case RoleAdmin:
	case RolePatient:
		id := actor.ID
		f.PatientID = &id
	case RoleDoctor:
		id := actor.ID
		f.DoctorID = &id
	default:
		return ErrForbidden
	}
	return nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
