package scheduling

import "time"

type transitionKey struct {
	From Status
	To   Status
}

// transitions is the authorization table: which roles may drive each status
// change. Entries to StatusPending model a reschedule (the appointment drops
// back to pending for re-confirmation). Absent keys are illegal outright.
var transitions = map[transitionKey][]Role{
	{StatusPending, StatusConfirmed}:   {RoleDoctor},
	{StatusConfirmed, StatusCompleted}: {RoleDoctor},
	{StatusPending, StatusCancelled}:   {RolePatient, RoleDoctor, RoleAdmin},
	{StatusConfirmed, StatusCancelled}: {RolePatient, RoleDoctor, RoleAdmin},
	{StatusPending, StatusPending}:     {RolePatient, RoleDoctor},
	{StatusConfirmed, StatusPending}:   {RolePatient, RoleDoctor},
}

// CheckTransition validates that actor may move appt to the target status at
// time now. It only inspects; the caller performs the write (with a
// compare-and-set on the current status, so a lost race surfaces as
// ErrInvalidTransition rather than a silent overwrite).
func CheckTransition(appt *Appointment, to Status, actor Actor, now time.Time) error {
	if appt.Status.IsTerminal() {
		return ErrInvalidTransition
	}

	roles, ok := transitions[transitionKey{From: appt.Status, To: to}]
	if !ok {
		return ErrInvalidTransition
	}

	if !roleAllowed(roles, actor.Role) {
		return ErrForbidden
	}

	// Bind the actor to the appointment: a doctor may only act on their own
	// schedule, a patient on their own booking. Admin passes where listed.
	switch actor.Role {
	case RoleDoctor:
		if actor.ID != appt.DoctorID {
			return ErrForbidden
		}
	case RolePatient:
		if actor.ID != appt.PatientID {
			return ErrForbidden
		}
	}

	// A visit can be closed out once it has started, not before.
	if to == StatusCompleted && now.Before(appt.StartTime) {
		return ErrInvalidTransition
	}

	return nil
}

func roleAllowed(roles []Role, r Role) bool {
	for _, allowed := range roles {
		if allowed == r {
			return true
		}
	}
	return false
}
