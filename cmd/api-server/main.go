package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/openclinic/ehr-scheduling/internal/api"
	"github.com/openclinic/ehr-scheduling/internal/config"
	"github.com/openclinic/ehr-scheduling/internal/db"
	"github.com/openclinic/ehr-scheduling/internal/record"
	redisclient "github.com/openclinic/ehr-scheduling/internal/redis"
	"github.com/openclinic/ehr-scheduling/internal/scheduling"
)

const version = "0.3.0"

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.Info("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.WithFields(logrus.Fields{
		"env":       cfg.Env,
		"http_port": cfg.HTTPPort,
		"clinic_tz": cfg.ClinicTZ.String(),
	}).Info("configuration loaded")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{})
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Errorf("error closing redis: %v", err)
		}
	}()
	log.Info("connected to Redis")

	store := scheduling.NewPgStore(pgPool)
	locker := redisclient.NewRedisDoctorLocker(rdb, cfg.LockTTL)
	clock := scheduling.NewSystemClock()

	schedSvc := scheduling.NewService(store, store, locker, clock, cfg, log)
	recordSvc := record.NewService(record.NewPgRepository(pgPool), store, clock, log)

	router := api.NewRouter(api.RouterConfig{
		Scheduling: schedSvc,
		Records:    recordSvc,
		PgPool:     pgPool,
		Redis:      rdb,
		Env:        cfg.Env,
		Version:    version,
		Log:        log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("graceful shutdown failed: %v", err)
	}
}
