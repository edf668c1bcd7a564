package record

import (
	"context"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclinic/ehr-scheduling/internal/scheduling"
)

// memoryRepo is an in-memory Repository with the same uniqueness rule as
// the database: one record per appointment.
type memoryRepo struct {
	mu      sync.RWMutex
	records map[uuid.UUID]MedicalRecord
	byAppt  map[uuid.UUID]uuid.UUID
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		records: make(map[uuid.UUID]MedicalRecord),
		byAppt:  make(map[uuid.UUID]uuid.UUID),
	}
}

func (r *memoryRepo) CreateRecord(_ context.Context, rec *MedicalRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byAppt[rec.AppointmentID]; taken {
		return ErrRecordExists
	}
	r.records[rec.ID] = *rec
	r.byAppt[rec.AppointmentID] = rec.ID
	return nil
}

func (r *memoryRepo) GetRecordByID(_ context.Context, id uuid.UUID) (*MedicalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &rec, nil
}

func (r *memoryRepo) ListByPatient(_ context.Context, patientID uuid.UUID, doctorID *uuid.UUID) ([]MedicalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []MedicalRecord
	for _, rec := range r.records {
		if rec.PatientID != patientID {
			continue
		}
		if doctorID != nil && rec.DoctorID != *doctorID {
			continue
		}
		result = append(result, rec)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type recordEnv struct {
	repo    *memoryRepo
	store   *scheduling.MemoryStore
	svc     *Service
	doctor  scheduling.Doctor
	other   scheduling.Doctor
	patient scheduling.Patient
}

func newRecordEnv(t *testing.T) *recordEnv {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	store := scheduling.NewMemoryStore()
	doctor := scheduling.Doctor{ID: uuid.New(), Name: "Dr. Osei"}
	other := scheduling.Doctor{ID: uuid.New(), Name: "Dr. Lindqvist"}
	patient := scheduling.Patient{ID: uuid.New(), Name: "Alice Ngata"}
	store.AddDoctor(doctor)
	store.AddDoctor(other)
	store.AddPatient(patient)

	clock := fixedClock{now: time.Date(2025, time.March, 4, 12, 0, 0, 0, time.UTC)}
	repo := newMemoryRepo()

	return &recordEnv{
		repo:    repo,
		store:   store,
		svc:     NewService(repo, store, clock, log),
		doctor:  doctor,
		other:   other,
		patient: patient,
	}
}

func (e *recordEnv) addAppointment(t *testing.T, status scheduling.Status) scheduling.Appointment {
	t.Helper()
	appt := &scheduling.Appointment{
		ID:        uuid.New(),
		PatientID: e.patient.ID,
		DoctorID:  e.doctor.ID,
		StartTime: time.Date(2025, time.March, 4, 9, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2025, time.March, 4, 9, 30, 0, 0, time.UTC),
		Status:    scheduling.StatusPending,
	}
	require.NoError(t, e.store.CreateAppointment(context.Background(), appt))
	if status != scheduling.StatusPending {
		from := scheduling.StatusPending
		if status == scheduling.StatusCompleted {
			_, err := e.store.UpdateAppointmentStatus(context.Background(), appt.ID, from, scheduling.StatusConfirmed)
			require.NoError(t, err)
			from = scheduling.StatusConfirmed
		}
		_, err := e.store.UpdateAppointmentStatus(context.Background(), appt.ID, from, status)
		require.NoError(t, err)
		appt.Status = status
	}
	return *appt
}

func (e *recordEnv) asDoctor(d scheduling.Doctor) scheduling.Actor {
	return scheduling.Actor{ID: d.ID, Role: scheduling.RoleDoctor}
}

func TestCreateRecord(t *testing.T) {
	env := newRecordEnv(t)
	ctx := context.Background()
	appt := env.addAppointment(t, scheduling.StatusCompleted)

	bp := "120/80"
	temp := 36.8
	rec, err := env.svc.Create(ctx, env.asDoctor(env.doctor), CreateInput{
		AppointmentID: appt.ID,
		Symptoms:      "chest pain on exertion",
		Diagnosis:     "stable angina",
		Prescription:  "nitroglycerin PRN",
		BloodPressure: &bp,
		Temperature:   &temp,
	})
	require.NoError(t, err)

	assert.Equal(t, appt.ID, rec.AppointmentID)
	assert.Equal(t, env.patient.ID, rec.PatientID, "patient comes from the appointment")
	assert.Equal(t, env.doctor.ID, rec.DoctorID)
	assert.Equal(t, "stable angina", rec.Diagnosis)
	require.NotNil(t, rec.BloodPressure)
	assert.Equal(t, "120/80", *rec.BloodPressure)
}

func TestCreateRecordGating(t *testing.T) {
	env := newRecordEnv(t)
	ctx := context.Background()

	t.Run("appointment not completed", func(t *testing.T) {
		for _, status := range []scheduling.Status{
			scheduling.StatusPending,
			scheduling.StatusConfirmed,
			scheduling.StatusCancelled,
		} {
			appt := env.addAppointment(t, status)
			_, err := env.svc.Create(ctx, env.asDoctor(env.doctor), CreateInput{AppointmentID: appt.ID})
			assert.ErrorIs(t, err, ErrNotCompleted, "status %s", status)
		}
	})

	t.Run("only the assigned doctor", func(t *testing.T) {
		appt := env.addAppointment(t, scheduling.StatusCompleted)
		_, err := env.svc.Create(ctx, env.asDoctor(env.other), CreateInput{AppointmentID: appt.ID})
		assert.ErrorIs(t, err, scheduling.ErrForbidden)
	})

	t.Run("patients and admins cannot write", func(t *testing.T) {
		appt := env.addAppointment(t, scheduling.StatusCompleted)
		_, err := env.svc.Create(ctx, scheduling.Actor{ID: env.patient.ID, Role: scheduling.RolePatient},
			CreateInput{AppointmentID: appt.ID})
		assert.ErrorIs(t, err, scheduling.ErrForbidden)

		_, err = env.svc.Create(ctx, scheduling.Actor{ID: uuid.New(), Role: scheduling.RoleAdmin},
			CreateInput{AppointmentID: appt.ID})
		assert.ErrorIs(t, err, scheduling.ErrForbidden)
	})

	t.Run("unknown appointment", func(t *testing.T) {
		_, err := env.svc.Create(ctx, env.asDoctor(env.doctor), CreateInput{AppointmentID: uuid.New()})
		assert.ErrorIs(t, err, scheduling.ErrAppointmentNotFound)
	})

	t.Run("one record per appointment", func(t *testing.T) {
		appt := env.addAppointment(t, scheduling.StatusCompleted)
		_, err := env.svc.Create(ctx, env.asDoctor(env.doctor), CreateInput{AppointmentID: appt.ID})
		require.NoError(t, err)
		_, err = env.svc.Create(ctx, env.asDoctor(env.doctor), CreateInput{AppointmentID: appt.ID})
		assert.ErrorIs(t, err, ErrRecordExists)
	})
}

func TestRecordHistoryAccess(t *testing.T) {
	env := newRecordEnv(t)
	ctx := context.Background()

	appt := env.addAppointment(t, scheduling.StatusCompleted)
	_, err := env.svc.Create(ctx, env.asDoctor(env.doctor), CreateInput{
		AppointmentID: appt.ID,
		Diagnosis:     "seasonal allergies",
	})
	require.NoError(t, err)

	t.Run("patient reads own", func(t *testing.T) {
		recs, err := env.svc.PatientHistory(ctx, env.patient.ID,
			scheduling.Actor{ID: env.patient.ID, Role: scheduling.RolePatient})
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "seasonal allergies", recs[0].Diagnosis)
	})

	t.Run("other patient forbidden", func(t *testing.T) {
		_, err := env.svc.PatientHistory(ctx, env.patient.ID,
			scheduling.Actor{ID: uuid.New(), Role: scheduling.RolePatient})
		assert.ErrorIs(t, err, scheduling.ErrForbidden)
	})

	t.Run("treating doctor reads own consultations", func(t *testing.T) {
		recs, err := env.svc.PatientHistory(ctx, env.patient.ID, env.asDoctor(env.doctor))
		require.NoError(t, err)
		assert.Len(t, recs, 1)
	})

	t.Run("unrelated doctor forbidden", func(t *testing.T) {
		_, err := env.svc.PatientHistory(ctx, env.patient.ID, env.asDoctor(env.other))
		assert.ErrorIs(t, err, scheduling.ErrForbidden)
	})

	t.Run("admin reads all", func(t *testing.T) {
		recs, err := env.svc.PatientHistory(ctx, env.patient.ID,
			scheduling.Actor{ID: uuid.New(), Role: scheduling.RoleAdmin})
		require.NoError(t, err)
		assert.Len(t, recs, 1)
	})
}
