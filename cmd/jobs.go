package main

import (
	"atelier/internal/jobs"
	"atelier/pkg/lock"
	"atelier/pkg/logger"

	"github.com/go-redis/redis/v8"
)

func (app *Application) initJobs() error {
	if app.orchestrator == nil {
		logger.WarnCtx(app.ctx, "Service layer not fully initialized yet, skipping background task registration")
		return nil
	}

	manager := jobs.NewManager(app.ctx, app.metrics)

	// Without Redis the lock runs in single-instance mode
	var redisClient *redis.Client
	if app.redisClient != nil {
		redisClient = app.redisClient.GetClient()
	}

	expiryLock := lock.NewRedisLock(redisClient, "jobs:expiry-sweep")
	manager.Register(jobs.NewExpirySweepJob(
		app.config.Jobs.ExpirySweepInterval,
		app.config.Jobs.ExpiryBatchSize,
		app.orchestrator,
		expiryLock,
	))

	app.jobsManager = manager
	logger.InfoCtx(app.ctx, "Registered assignment expiry sweep (interval: %v, batch: %d)",
		app.config.Jobs.ExpirySweepInterval, app.config.Jobs.ExpiryBatchSize)
	return nil
}
