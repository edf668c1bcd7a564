package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/openclinic/ehr-scheduling/internal/record"
	"github.com/openclinic/ehr-scheduling/internal/scheduling"
)

type RouterConfig struct {
	Scheduling *scheduling.Service
	Records    *record.Service
	PgPool     *pgxpool.Pool
	Redis      *redis.Client
	Env        string
	Version    string
	Log        *logrus.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Everything else requires a resolved caller.
	r.Group(func(r chi.Router) {
		r.Use(ActorMiddleware)

		r.Post("/appointments", bookAppointmentHandler(cfg.Scheduling))
		r.Get("/appointments/upcoming", listHandler(func(req *http.Request, actor scheduling.Actor) ([]scheduling.Appointment, error) {
			return cfg.Scheduling.Upcoming(req.Context(), actor)
		}))
		r.Get("/appointments/today", listHandler(func(req *http.Request, actor scheduling.Actor) ([]scheduling.Appointment, error) {
			return cfg.Scheduling.Today(req.Context(), actor)
		}))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Scheduling))
		r.Post("/appointments/{id}/confirm", transitionHandler(func(req *http.Request, id uuid.UUID, actor scheduling.Actor) (*scheduling.Appointment, error) {
			return cfg.Scheduling.Confirm(req.Context(), id, actor)
		}))
		r.Post("/appointments/{id}/cancel", transitionHandler(func(req *http.Request, id uuid.UUID, actor scheduling.Actor) (*scheduling.Appointment, error) {
			return cfg.Scheduling.Cancel(req.Context(), id, actor)
		}))
		r.Post("/appointments/{id}/complete", transitionHandler(func(req *http.Request, id uuid.UUID, actor scheduling.Actor) (*scheduling.Appointment, error) {
			return cfg.Scheduling.Complete(req.Context(), id, actor)
		}))
		r.Post("/appointments/{id}/reschedule", rescheduleAppointmentHandler(cfg.Scheduling))

		r.Get("/patients/{id}/history", patientHistoryHandler(cfg.Scheduling))

		r.Post("/medical-records", createRecordHandler(cfg.Records))
		r.Get("/medical-records", recordHistoryHandler(cfg.Records))
	})

	return r
}
