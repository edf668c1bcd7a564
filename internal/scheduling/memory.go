package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/openclinic/ehr-scheduling/internal/redis"
)

// MemoryStore implements Repository and CalendarStore in process memory.
// It backs the test suite and single-node runs that have no Postgres.
type MemoryStore struct {
	mu           sync.RWMutex
	patients     map[uuid.UUID]Patient
	doctors      map[uuid.UUID]Doctor
	appointments map[uuid.UUID]Appointment
	calendar     map[uuid.UUID]CalendarEntry // keyed by appointment id
	events       []EventLog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		patients:     make(map[uuid.UUID]Patient),
		doctors:      make(map[uuid.UUID]Doctor),
		appointments: make(map[uuid.UUID]Appointment),
		calendar:     make(map[uuid.UUID]CalendarEntry),
	}
}

func (m *MemoryStore) AddPatient(p Patient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients[p.ID] = p
}

func (m *MemoryStore) AddDoctor(d Doctor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doctors[d.ID] = d
}

func (m *MemoryStore) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (m *MemoryStore) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (m *MemoryStore) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (m *MemoryStore) CreateAppointment(_ context.Context, appt *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.appointments[appt.ID] = *appt
	m.calendar[appt.ID] = CalendarEntry{
		AppointmentID: appt.ID,
		DoctorID:      appt.DoctorID,
		StartTime:     appt.StartTime,
		EndTime:       appt.EndTime,
		Status:        appt.Status,
	}
	return nil
}

func (m *MemoryStore) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}

	a.Status = to
	a.UpdatedAt = time.Now()
	m.appointments[id] = a

	switch {
	case to.IsTerminal():
		delete(m.calendar, id)
	case to == StatusConfirmed:
		e := m.calendar[id]
		e.Status = StatusConfirmed
		m.calendar[id] = e
	}

	return &a, nil
}

func (m *MemoryStore) RescheduleAppointment(_ context.Context, id uuid.UUID, from Status, newRange TimeRange) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}

	a.StartTime = newRange.Start
	a.EndTime = newRange.End
	a.Status = StatusPending
	a.UpdatedAt = time.Now()
	m.appointments[id] = a

	m.calendar[id] = CalendarEntry{
		AppointmentID: id,
		DoctorID:      a.DoctorID,
		StartTime:     newRange.Start,
		EndTime:       newRange.End,
		Status:        StatusPending,
	}

	return &a, nil
}

func (m *MemoryStore) ListAppointments(_ context.Context, f ListFilter) ([]Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Appointment
	for _, a := range m.appointments {
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			continue
		}
		if len(f.Statuses) > 0 && !statusIn(f.Statuses, a.Status) {
			continue
		}
		if f.StartsAfter != nil && !a.StartTime.After(*f.StartsAfter) {
			continue
		}
		if f.StartsIn != nil {
			if a.StartTime.Before(f.StartsIn.Start) || !a.StartTime.Before(f.StartsIn.End) {
				continue
			}
		}
		result = append(result, a)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})

	return result, nil
}

func (m *MemoryStore) DoctorTreatedPatient(_ context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.appointments {
		if a.DoctorID == doctorID && a.PatientID == patientID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) FindLapsedPending(_ context.Context, before time.Time) ([]Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []Appointment
	for _, a := range m.appointments {
		if a.Status == StatusPending && a.EndTime.Before(before) {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *MemoryStore) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ID = int64(len(m.events) + 1)
	m.events = append(m.events, ev)
	return nil
}

func (m *MemoryStore) QueryBusy(_ context.Context, doctorID uuid.UUID, window TimeRange) ([]CalendarEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []CalendarEntry
	for _, e := range m.calendar {
		if e.DoctorID != doctorID {
			continue
		}
		if !e.Range().Overlaps(window) {
			continue
		}
		result = append(result, e)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})

	return result, nil
}

// Events returns a snapshot of the event log.
func (m *MemoryStore) Events() []EventLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]EventLog, len(m.events))
	copy(out, m.events)
	return out
}

func statusIn(statuses []Status, s Status) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

// MemoryLocker is a per-doctor try-lock for single-process use. Contention
// reports redisclient.ErrLockNotAcquired, same as the Redis locker.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *MemoryLocker) WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.locks[doctorID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[doctorID] = m
	}
	l.mu.Unlock()

	if !m.TryLock() {
		return redisclient.ErrLockNotAcquired
	}
	defer m.Unlock()

	return fn(ctx)
}
