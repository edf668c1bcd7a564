package scheduling

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func entry(start, end time.Time, status Status) CalendarEntry {
	return CalendarEntry{
		AppointmentID: uuid.New(),
		DoctorID:      uuid.New(),
		StartTime:     start,
		EndTime:       end,
		Status:        status,
	}
}

func TestResolveConflictRejectsInvalidRanges(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name string
		rng  TimeRange
	}{
		{"zero duration", TimeRange{Start: now, End: now}},
		{"inverted", TimeRange{Start: now, End: now.Add(-time.Hour)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ResolveConflict(nil, tc.rng, uuid.Nil, false)
			assert.ErrorIs(t, err, ErrInvalidRange)
		})
	}
}

func TestResolveConflictOverlapCases(t *testing.T) {
	base := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	held := entry(base, base.Add(30*time.Minute), StatusConfirmed) // 10:00-10:30

	cases := []struct {
		name      string
		start     time.Duration
		end       time.Duration
		available bool
	}{
		{"identical", 0, 30 * time.Minute, false},
		{"starts inside", 15 * time.Minute, 45 * time.Minute, false},
		{"ends inside", -15 * time.Minute, 15 * time.Minute, false},
		{"engulfing", -15 * time.Minute, 45 * time.Minute, false},
		{"contained", 10 * time.Minute, 20 * time.Minute, false},
		{"back-to-back after", 30 * time.Minute, 60 * time.Minute, true},
		{"back-to-back before", -30 * time.Minute, 0, true},
		{"disjoint", 2 * time.Hour, 3 * time.Hour, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			proposed := TimeRange{Start: base.Add(tc.start), End: base.Add(tc.end)}
			d, err := ResolveConflict([]CalendarEntry{held}, proposed, uuid.Nil, false)
			assert.NoError(t, err)
			assert.Equal(t, tc.available, d.Available)
			if !tc.available {
				assert.Equal(t, held.AppointmentID, d.ConflictingID)
			}
		})
	}
}

func TestResolveConflictExcludesOwnReservation(t *testing.T) {
	base := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	own := entry(base, base.Add(30*time.Minute), StatusConfirmed)

	// moving inside its own window is fine
	proposed := TimeRange{Start: base.Add(10 * time.Minute), End: base.Add(40 * time.Minute)}
	d, err := ResolveConflict([]CalendarEntry{own}, proposed, own.AppointmentID, false)
	assert.NoError(t, err)
	assert.True(t, d.Available)
}

func TestResolveConflictPendingOverlapPolicy(t *testing.T) {
	base := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	pending := entry(base, base.Add(30*time.Minute), StatusPending)
	confirmed := entry(base.Add(time.Hour), base.Add(90*time.Minute), StatusConfirmed)
	entries := []CalendarEntry{pending, confirmed}

	overlapPending := TimeRange{Start: base, End: base.Add(30 * time.Minute)}
	overlapConfirmed := TimeRange{Start: confirmed.StartTime, End: confirmed.EndTime}

	// strict: anything held blocks
	d, err := ResolveConflict(entries, overlapPending, uuid.Nil, false)
	assert.NoError(t, err)
	assert.False(t, d.Available)

	// loose: pending holds may stack, confirmed still blocks
	d, err = ResolveConflict(entries, overlapPending, uuid.Nil, true)
	assert.NoError(t, err)
	assert.True(t, d.Available)

	d, err = ResolveConflict(entries, overlapConfirmed, uuid.Nil, true)
	assert.NoError(t, err)
	assert.False(t, d.Available)
	assert.Equal(t, confirmed.AppointmentID, d.ConflictingID)
}
