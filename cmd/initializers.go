package main

import (
	"fmt"
	"net/http"
	"time"

	"atelier/app/handler"
	"atelier/app/router"
	"atelier/internal/service"
	"atelier/pkg/config"
	"atelier/pkg/logger"
	"atelier/pkg/metrics"
	"atelier/pkg/notification"
	asynqqueue "atelier/pkg/queue/asynq"
	"atelier/pkg/store/memory"
	mysqlstore "atelier/pkg/store/mysql"
	redisstore "atelier/pkg/store/redis"

	"github.com/gin-gonic/gin"
)

// initConfig initializes configuration
func (app *Application) initConfig() error {
	if err := config.Init(); err != nil {
		return err
	}
	app.config = config.GlobalConfig
	return nil
}

// initLogger initializes logging
func (app *Application) initLogger() error {
	if err := logger.Init(); err != nil {
		return err
	}
	app.registerCleanup(func() {
		logger.Sync()
		logger.InfoCtx(app.ctx, "Logging system has been closed")
	})
	return nil
}

func (app *Application) initMetrics() error {
	app.metrics = metrics.New()
	return nil
}

// initStore opens the configured persistence backend
func (app *Application) initStore() error {
	switch app.config.Store.Driver {
	case "memory":
		logger.WarnCtx(app.ctx, "Using in-memory store, state is lost on restart")
		store := memory.New()
		app.repos = store.Repositories()
		return nil
	case "mysql":
		return app.initMySQL()
	default:
		return fmt.Errorf("unknown store driver %q", app.config.Store.Driver)
	}
}

// initMySQL initializes MySQL
func (app *Application) initMySQL() error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		app.config.MySQL.User,
		app.config.MySQL.Password,
		app.config.MySQL.Host,
		app.config.MySQL.Port,
		app.config.MySQL.Database,
	)

	repo, err := mysqlstore.NewRepository(dsn)
	if err != nil {
		return err
	}
	if err := repo.GetDatastore().Migrate(app.ctx); err != nil {
		repo.Close()
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	app.repos = repo.Repositories()
	app.registerCleanup(func() {
		repo.Close()
		logger.InfoCtx(app.ctx, "MySQL connection has been closed")
	})

	return nil
}

// initRedis initializes Redis; without an address the engine runs single-instance
func (app *Application) initRedis() error {
	if !app.config.Redis.Enabled() {
		logger.WarnCtx(app.ctx, "Redis not configured, effects are delivered inline and jobs run unlocked")
		return nil
	}

	client, err := redisstore.NewRedisClient(app.ctx, app.config.Redis)
	if err != nil {
		return err
	}

	app.redisClient = client
	app.registerCleanup(func() {
		client.Close()
		logger.InfoCtx(app.ctx, "Redis connection has been closed")
	})

	return nil
}

// initEffects wires the effect sinks behind a dispatcher and picks the publisher
func (app *Application) initEffects() error {
	app.hub = notification.NewHub(originChecker(app.config.Server.CORSOrigins))
	app.registerCleanup(app.hub.Close)

	app.dispatcher = service.NewDispatcher(app.metrics,
		notification.NewFeishuNotifier(app.config.Notification.FeishuWebhookURL),
		notification.NewCollaboratorWebhook(app.config.Notification.CollaboratorWebhookURL),
		app.hub,
		service.NewStatsSink(app.metrics),
	)

	if app.redisClient == nil {
		publisher := service.NewInlinePublisher(app.dispatcher)
		app.publisher = publisher
		app.registerCleanup(func() {
			publisher.Close()
			logger.InfoCtx(app.ctx, "Inline effect publisher has been drained")
		})
		return nil
	}

	app.queue = asynqqueue.NewManager(app.config.Redis, app.config.Queue)
	app.queue.HandleEffects(app.dispatcher.Deliver)
	app.publisher = app.queue
	app.registerCleanup(func() {
		app.queue.Stop()
		app.queue.Close()
		logger.InfoCtx(app.ctx, "Effect queue has been closed")
	})
	return nil
}

// initServices initializes service layer
func (app *Application) initServices() error {
	app.orchestrator = service.NewOrchestrator(
		app.repos,
		app.publisher,
		app.metrics,
		service.MatchingOptionsFromConfig(app.config.Matching),
	)
	app.workerService = service.NewWorkerService(app.repos.Workers)
	return nil
}

// initHandlers initializes handler layer
func (app *Application) initHandlers() error {
	app.handlers.projects = handler.NewProjectHandler(app.orchestrator)
	app.handlers.agreements = handler.NewAgreementHandler(app.orchestrator)
	app.handlers.payments = handler.NewPaymentHandler(app.orchestrator)
	app.handlers.workers = handler.NewWorkerHandler(app.workerService)
	app.handlers.admin = handler.NewAdminHandler(app.orchestrator, app.config.Jobs)
	app.handlers.events = handler.NewEventsHandler(app.handlers.projects, app.hub)
	return nil
}

// initHTTPServer initializes HTTP server
func (app *Application) initHTTPServer() error {
	r := router.NewRouter(router.Handlers{
		Projects:   app.handlers.projects,
		Agreements: app.handlers.agreements,
		Payments:   app.handlers.payments,
		Workers:    app.handlers.workers,
		Admin:      app.handlers.admin,
		Events:     app.handlers.events,
	}, app.metrics, app.config.Server)

	// Set Gin mode
	gin.SetMode(app.config.Server.Mode)

	// Create Gin engine
	app.ginEngine = gin.New()

	// Setup routes
	r.Setup(app.ginEngine)

	// Create HTTP server
	app.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           r.Handler(app.ginEngine),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return nil
}

// originChecker accepts websocket upgrades from the configured CORS origins
func originChecker(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 {
		return func(r *http.Request) bool { return true }
	}
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}
