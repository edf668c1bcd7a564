package scheduling

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func testAppointment(status Status) *Appointment {
	start := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	return &Appointment{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		DoctorID:  uuid.New(),
		StartTime: start,
		EndTime:   start.Add(30 * time.Minute),
		Status:    status,
	}
}

func TestCheckTransitionTable(t *testing.T) {
	afterStart := time.Date(2025, 3, 4, 10, 15, 0, 0, time.UTC)

	cases := []struct {
		name    string
		from    Status
		to      Status
		role    Role
		wantErr error
	}{
		{"doctor confirms pending", StatusPending, StatusConfirmed, RoleDoctor, nil},
		{"patient cannot confirm", StatusPending, StatusConfirmed, RolePatient, ErrForbidden},
		{"admin cannot confirm", StatusPending, StatusConfirmed, RoleAdmin, ErrForbidden},
		{"doctor completes confirmed", StatusConfirmed, StatusCompleted, RoleDoctor, nil},
		{"patient cannot complete", StatusConfirmed, StatusCompleted, RolePatient, ErrForbidden},
		{"complete from pending", StatusPending, StatusCompleted, RoleDoctor, ErrInvalidTransition},
		{"patient cancels pending", StatusPending, StatusCancelled, RolePatient, nil},
		{"doctor cancels confirmed", StatusConfirmed, StatusCancelled, RoleDoctor, nil},
		{"admin cancels pending", StatusPending, StatusCancelled, RoleAdmin, nil},
		{"patient reschedules pending", StatusPending, StatusPending, RolePatient, nil},
		{"doctor reschedules confirmed", StatusConfirmed, StatusPending, RoleDoctor, nil},
		{"admin cannot reschedule", StatusPending, StatusPending, RoleAdmin, ErrForbidden},
		{"cancel completed", StatusCompleted, StatusCancelled, RoleDoctor, ErrInvalidTransition},
		{"confirm cancelled", StatusCancelled, StatusConfirmed, RoleDoctor, ErrInvalidTransition},
		{"complete completed", StatusCompleted, StatusCompleted, RoleDoctor, ErrInvalidTransition},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			appt := testAppointment(tc.from)

			actor := Actor{Role: tc.role}
			switch tc.role {
			case RoleDoctor:
				actor.ID = appt.DoctorID
			case RolePatient:
				actor.ID = appt.PatientID
			default:
				actor.ID = uuid.New()
			}

			err := CheckTransition(appt, tc.to, actor, afterStart)
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func TestCheckTransitionBindsActorToAppointment(t *testing.T) {
	afterStart := time.Date(2025, 3, 4, 10, 15, 0, 0, time.UTC)

	appt := testAppointment(StatusPending)

	otherDoctor := Actor{ID: uuid.New(), Role: RoleDoctor}
	assert.ErrorIs(t, CheckTransition(appt, StatusConfirmed, otherDoctor, afterStart), ErrForbidden)

	otherPatient := Actor{ID: uuid.New(), Role: RolePatient}
	assert.ErrorIs(t, CheckTransition(appt, StatusCancelled, otherPatient, afterStart), ErrForbidden)

	// admin is not bound to either side
	assert.NoError(t, CheckTransition(appt, StatusCancelled, Actor{ID: uuid.New(), Role: RoleAdmin}, afterStart))
}

func TestCheckTransitionCompletionTiming(t *testing.T) {
	appt := testAppointment(StatusConfirmed)
	doctor := Actor{ID: appt.DoctorID, Role: RoleDoctor}

	beforeStart := appt.StartTime.Add(-time.Minute)
	assert.ErrorIs(t, CheckTransition(appt, StatusCompleted, doctor, beforeStart), ErrInvalidTransition)

	// in progress counts as elapsing
	assert.NoError(t, CheckTransition(appt, StatusCompleted, doctor, appt.StartTime))
	assert.NoError(t, CheckTransition(appt, StatusCompleted, doctor, appt.EndTime.Add(time.Hour)))
}
