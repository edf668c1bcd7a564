package main

import (
	"context"
	"time"

	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/openclinic/ehr-scheduling/internal/config"
	"github.com/openclinic/ehr-scheduling/internal/db"
	redisclient "github.com/openclinic/ehr-scheduling/internal/redis"
	"github.com/openclinic/ehr-scheduling/internal/scheduling"
)

// The sweep worker cancels pending appointments whose scheduled window has
// fully lapsed without a doctor confirmation, so dead holds stop pinning
// calendar slots.
func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.Info("sweep-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.WithFields(logrus.Fields{
		"env":      cfg.Env,
		"interval": cfg.SweepInterval.String(),
	}).Info("running sweep worker")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2})
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
	svc := scheduling.NewService(store, store, locker, scheduling.NewSystemClock(), cfg, log)

	// Run once at startup
	runOnce(rootCtx, svc, log)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info("shutdown signal received, stopping sweep worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, log)
		}
	}
}

func runOnce(ctx context.Context, svc *scheduling.Service, log *logrus.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	swept, err := svc.SweepLapsedPending(runCtx)
	if err != nil {
		log.Errorf("sweep run error: %v", err)
		return
	}
	log.WithFields(logrus.Fields{
		"swept":    swept,
		"duration": time.Since(start).String(),
	}).Info("sweep run complete")
}
