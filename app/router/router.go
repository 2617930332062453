package router

import (
	"net/http"

	"atelier/app/handler"
	"atelier/app/middleware"
	"atelier/pkg/config"
	"atelier/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
)

// Router Router
type Router struct {
	projectHandler   *handler.ProjectHandler
	agreementHandler *handler.AgreementHandler
	paymentHandler   *handler.PaymentHandler
	workerHandler    *handler.WorkerHandler
	adminHandler     *handler.AdminHandler
	eventsHandler    *handler.EventsHandler
	metrics          *metrics.Metrics
	server           config.ServerConfig
}

// Handlers groups the resource handlers served by the router
type Handlers struct {
	Projects   *handler.ProjectHandler
	Agreements *handler.AgreementHandler
	Payments   *handler.PaymentHandler
	Workers    *handler.WorkerHandler
	Admin      *handler.AdminHandler
	Events     *handler.EventsHandler
}

// NewRouter creates a new Router
func NewRouter(h Handlers, m *metrics.Metrics, server config.ServerConfig) *Router {
	return &Router{
		projectHandler:   h.Projects,
		agreementHandler: h.Agreements,
		paymentHandler:   h.Payments,
		workerHandler:    h.Workers,
		adminHandler:     h.Admin,
		eventsHandler:    h.Events,
		metrics:          m,
		server:           server,
	}
}

// Setup sets up routes
func (r *Router) Setup(engine *gin.Engine) {
	engine.Use(middleware.Recovery())
	engine.Use(middleware.Logger())
	engine.Use(middleware.Metrics(r.metrics))

	api := engine.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(r.server))
	{
		projects := api.Group("/projects")
		{
			projects.POST("", r.projectHandler.CreateProject)
			projects.GET("", r.projectHandler.ListProjects)
			projects.GET("/:id", r.projectHandler.GetProject)
			projects.GET("/:id/events", r.projectHandler.GetEvents)
			projects.GET("/:id/agreements", r.projectHandler.ListAgreements)
			projects.GET("/:id/payments", r.projectHandler.ListPayments)

			// Matching and assignment
			projects.POST("/:id/match", r.projectHandler.MatchWorker)
			projects.POST("/:id/accept", r.projectHandler.AcceptAssignment)
			projects.POST("/:id/decline", r.projectHandler.DeclineAssignment)
			projects.POST("/:id/reassign", r.projectHandler.RequestReassignment)

			// Agreement, delivery and payment
			projects.POST("/:id/proposals", r.projectHandler.SubmitProposal)
			projects.POST("/:id/samples", r.projectHandler.SubmitSamples)
			projects.POST("/:id/samples/approve", r.projectHandler.ApproveSamples)
			projects.POST("/:id/samples/revision", r.projectHandler.RequestSampleRevision)
			projects.POST("/:id/delivery/approve", r.projectHandler.ApproveFinalDelivery)
			projects.POST("/:id/payments", r.paymentHandler.ConfirmPayment)

			if r.eventsHandler != nil {
				projects.GET("/:id/ws", r.eventsHandler.ProjectStream)
			}
		}

		agreements := api.Group("/agreements")
		{
			agreements.GET("/:id", r.agreementHandler.GetAgreement)
			agreements.POST("/:id/accept", r.agreementHandler.AcceptProposal)
			agreements.POST("/:id/revision", r.agreementHandler.RequestRevision)
		}

		api.POST("/payments/confirm", r.paymentHandler.ConfirmPayment)

		workers := api.Group("/workers")
		{
			workers.POST("", r.workerHandler.RegisterWorker)
			workers.GET("", r.workerHandler.ListWorkers)
			workers.GET("/:id", r.workerHandler.GetWorker)
			workers.PATCH("/:id", r.workerHandler.UpdateWorker)
		}

		admin := api.Group("/admin")
		{
			admin.POST("/projects/:id/assign", r.adminHandler.ForceAssign)
			admin.POST("/projects/:id/cancel", r.adminHandler.CancelProject)
			admin.POST("/projects/:id/requeue", r.adminHandler.RequeueProject)
			admin.POST("/expiry-sweep", r.adminHandler.SweepExpired)
			if r.eventsHandler != nil {
				admin.GET("/ws", r.eventsHandler.AllStream)
			}
		}
	}

	if r.metrics != nil {
		engine.GET("/metrics", gin.WrapH(r.metrics.Handler()))
	}

	// Health check
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// Handler wraps engine with the CORS policy from server.cors_origins
func (r *Router) Handler(engine *gin.Engine) http.Handler {
	opts := cors.Options{
		AllowedOrigins: r.server.CORSOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			middleware.HeaderRequestID,
			middleware.HeaderActorID,
			middleware.HeaderActorRole,
		},
		ExposedHeaders: []string{middleware.HeaderRequestID},
		MaxAge:         300,
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	} else {
		opts.AllowCredentials = true
	}
	return cors.Handler(opts)(engine)
}
