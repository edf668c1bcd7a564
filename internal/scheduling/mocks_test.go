package scheduling

import (
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/openclinic/ehr-scheduling/internal/config"
)

// fakeClock is a settable Clock for deterministic tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type testEnv struct {
	store  *MemoryStore
	clock  *fakeClock
	svc    *Service
	cfg    config.Config
	doctor Doctor
	second Doctor
	alice  Patient
	bob    Patient
}

// baseTime is a fixed Tuesday morning; individual tests offset from it.
var baseTime = time.Date(2025, time.March, 4, 8, 0, 0, 0, time.UTC)

func newTestEnv(cfg config.Config) *testEnv {
	if cfg.ClinicTZ == nil {
		cfg.ClinicTZ = time.UTC
	}

	store := NewMemoryStore()
	clock := newFakeClock(baseTime)
	svc := NewService(store, store, NewMemoryLocker(), clock, cfg, quietLogger())

	env := &testEnv{
		store:  store,
		clock:  clock,
		svc:    svc,
		cfg:    cfg,
		doctor: Doctor{ID: uuid.New(), Name: "Dr. Osei"},
		second: Doctor{ID: uuid.New(), Name: "Dr. Lindqvist"},
		alice:  Patient{ID: uuid.New(), Name: "Alice Ngata"},
		bob:    Patient{ID: uuid.New(), Name: "Bob Ferreira"},
	}

	store.AddDoctor(env.doctor)
	store.AddDoctor(env.second)
	store.AddPatient(env.alice)
	store.AddPatient(env.bob)

	return env
}

func (e *testEnv) asPatient(p Patient) Actor { return Actor{ID: p.ID, Role: RolePatient} }
func (e *testEnv) asDoctor(d Doctor) Actor   { return Actor{ID: d.ID, Role: RoleDoctor} }

func admin() Actor { return Actor{ID: uuid.New(), Role: RoleAdmin} }

// at builds a range offset from baseTime by whole minutes.
func at(startMin, endMin int) TimeRange {
	return TimeRange{
		Start: baseTime.Add(time.Duration(startMin) * time.Minute),
		End:   baseTime.Add(time.Duration(endMin) * time.Minute),
	}
}
