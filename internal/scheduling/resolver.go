package scheduling

import "github.com/google/uuid"

// Decision is the outcome of a conflict check against a doctor's calendar.
type Decision struct {
	Available     bool
	ConflictingID uuid.UUID
}

// ResolveConflict decides whether proposed can be reserved given the busy
// entries already held for the doctor. It is pure: callers fetch entries
// under the per-doctor lock and pass them in.
//
// exclude, when non-nil, names an appointment whose own entry is ignored
// (a reschedule must not collide with itself).
//
// With allowPendingOverlap set, only confirmed entries block; pending holds
// may stack and are re-resolved at confirm time.
func ResolveConflict(entries []CalendarEntry, proposed TimeRange, exclude uuid.UUID, allowPendingOverlap bool) (Decision, error) {
	if !proposed.Valid() {
		return Decision{}, ErrInvalidRange
	}

	for _, e := range entries {
		if e.AppointmentID == exclude {
			continue
		}
		if allowPendingOverlap && e.Status == StatusPending {
			continue
		}
		if e.Range().Overlaps(proposed) {
			return Decision{Available: false, ConflictingID: e.AppointmentID}, nil
		}
	}

	return Decision{Available: true}, nil
}
