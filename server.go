package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/vocari/reports_backend/config"
	"github.com/vocari/reports_backend/flow"
	"github.com/vocari/reports_backend/middlewares"
	"github.com/vocari/reports_backend/models"
	"github.com/vocari/reports_backend/payments"
	"github.com/vocari/reports_backend/reportgen"
	"github.com/vocari/reports_backend/workflow"
	_ "go.uber.org/automaxprocs"
	"gorm.io/gorm"
)

const defaultPort = "8080"

// app holds the wired services. Any of the optional dependencies may be nil;
// handlers answer with a configuration error in that case.
type app struct {
	logger     *logrus.Logger
	db         *gorm.DB
	payments   *payments.Service
	reconciler *payments.Reconciler
	generator  *reportgen.Generator
	jobs       workflow.JobStore
	limiter    middlewares.RateLimiter
	rateLimit  config.RateLimitSettings
	dispatch   config.DispatchSettings
}

func newApp(logger *logrus.Logger, db *gorm.DB) *app {
	a := &app{
		logger:    logger,
		db:        db,
		rateLimit: config.LoadRateLimitSettings(),
		dispatch:  config.LoadDispatchSettings(),
	}

	flowSettings := config.LoadFlowSettings()
	var gateway payments.Gateway
	if client, err := flow.NewClient(flowSettings); err == nil {
		gateway = client
	} else {
		logger.WithFields(logrus.Fields{"field": "newApp"}).Warn("flow gateway disabled: " + err.Error())
	}

	var llm reportgen.Completer
	if client, err := reportgen.NewOpenAIClient(config.LoadLLMSettings()); err == nil {
		llm = client
	} else {
		logger.WithFields(logrus.Fields{"field": "newApp"}).Warn("text generation disabled: " + err.Error())
	}

	var (
		paymentStore payments.ReportStore
		reportStore  reportgen.ReportStore
		pending      payments.PendingReports
	)
	if db != nil {
		store := models.NewStore(db)
		paymentStore, reportStore, pending, a.jobs = store, store, store, store
	}

	if rdb := config.GetRedisDB(); rdb != nil && config.CheckoutRateLimitEnabled() {
		a.limiter = middlewares.NewRedisRateLimiter(rdb, "ratelimit:")
	}

	a.payments = payments.NewService(paymentStore, gateway, flowSettings,
		payments.NewRedisTokenLocker(config.GetRedisLock(), 30*time.Second), logger)
	a.reconciler = &payments.Reconciler{Service: a.payments, Pending: pending}
	a.generator = reportgen.NewGenerator(reportStore, llm, logger)
	return a
}

func (a *app) router() *gin.Engine {
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(middlewares.ErrorLogger(a.logger))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type"}

	api := r.Group("/api", cors.New(corsConfig))
	api.OPTIONS("/checkout", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	api.OPTIONS("/reports/generate", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	api.POST("/checkout",
		middlewares.RateLimitMiddleware(a.limiter, a.rateLimit.MaxRequests, a.rateLimit.Window, a.logger),
		payments.CheckoutHandler(a.payments))
	api.POST("/reports/generate",
		middlewares.RequireInternalToken(a.dispatch.InternalToken),
		reportgen.GenerateHandler(a.generator))

	// Server-to-server: no CORS.
	r.POST("/api/flow/webhook", payments.WebhookHandler(a.payments))
	r.POST("/pubsub/report-generation", reportgen.PushHandler(a.generator, a.db))

	// Ops tooling: only mounted when an internal token is configured.
	if a.dispatch.InternalToken != "" {
		r.POST("/internal/ops/generation-jobs/replay",
			middlewares.RequireInternalToken(a.dispatch.InternalToken),
			workflow.JobReplayHandler(a.jobs))
	}

	r.NoRoute(customNotFoundHandler)
	return r
}

// startReconcileCron runs the pending-payment sweep on RECONCILE_CRON.
func (a *app) startReconcileCron(settings config.ReconcileSettings) *cron.Cron {
	if settings.Schedule == "" || a.reconciler.Pending == nil {
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(settings.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := a.reconciler.Run(ctx, settings.OlderThan, settings.BatchSize); err != nil {
			config.LogError(a.logger, "server.go", "startReconcileCron", "Reconciler.Run", nil, err)
		}
	})
	if err != nil {
		a.logger.WithFields(logrus.Fields{"field": "cron"}).Error("invalid RECONCILE_CRON " + settings.Schedule + ": " + err.Error())
		return nil
	}
	c.Start()
	return c
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "route not found"})
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	var db *gorm.DB
	if config.DatabaseConfigured() {
		config.ConnectDatabaseWithRetry()
		db = config.GetDB()
		// AutoMigrate can block tables; SKIP_MIGRATIONS=true runs it as a separate job instead.
		if config.MigrationsEnabled() {
			if err := models.MigrateTable(db); err != nil {
				log.Fatalf("migrations failed: %v", err)
			}
		} else {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "database"}).Error("DB_HOST/DB_USER/DB_NAME not set; checkout and webhook will fail")
	}
	config.ConnectRedisWithRetry(sigCtx)

	a := newApp(logger, db)
	if a.dispatch.UsePubSub() {
		if err := config.EnsureTopic(sigCtx, a.dispatch.Topic); err != nil {
			logger.WithFields(logrus.Fields{"field": "pubsub"}).Warn("could not ensure topic " + a.dispatch.Topic + ": " + err.Error())
		}
	}

	// Publishes generation jobs AFTER the webhook transaction commits.
	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	if db != nil {
		publisher := workflow.NewJobPublisher(a.dispatch, config.LoadLLMSettings().Timeout*4)
		go workflow.NewOutboxDispatcher(db, publisher, logger).Run(dispatcherCtx)
	}
	reconcileCron := a.startReconcileCron(config.LoadReconcileSettings())

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: a.router(),
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()
	log.Printf("server listening on :%s", port)

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers before draining HTTP.
	cancelDispatcher()
	if reconcileCron != nil {
		<-reconcileCron.Stop().Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	config.CloseRedis()
	config.ClosePubSub()
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
