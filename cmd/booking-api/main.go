package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cordova-edu/classbook-api/internal/directory"
	"github.com/cordova-edu/classbook-api/internal/handler"
	"github.com/cordova-edu/classbook-api/internal/middleware"
	"github.com/cordova-edu/classbook-api/internal/repository"
	"github.com/cordova-edu/classbook-api/internal/service"
	"github.com/cordova-edu/classbook-api/pkg/cache"
	"github.com/cordova-edu/classbook-api/pkg/config"
	"github.com/cordova-edu/classbook-api/pkg/database"
	"github.com/cordova-edu/classbook-api/pkg/logger"
	"github.com/cordova-edu/classbook-api/pkg/mailer"
	corsmiddleware "github.com/cordova-edu/classbook-api/pkg/middleware/cors"
	reqidmiddleware "github.com/cordova-edu/classbook-api/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	loc, err := time.LoadLocation(cfg.Booking.Timezone)
	if err != nil {
		logr.Sugar().Fatalw("invalid timezone", "timezone", cfg.Booking.Timezone, "error", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	// Redis is optional: the display cache degrades to direct reads.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, display cache disabled", "error", err)
		redisClient = nil
	}

	metrics := service.NewMetricsService()

	bookingRepo := repository.NewBookingRepository(db)
	unavailabilityRepo := repository.NewUnavailabilityRepository(db)
	emailEventRepo := repository.NewEmailEventRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	dir := directory.Default().WithEmails(cfg.Notify.TeacherEmails)

	caps := service.NewCaps(cfg.Booking.SlotParallelCap, cfg.Booking.DefaultDailyCap, cfg.Booking.DailyCapOverrides)
	admission := service.NewAdmissionService(bookingRepo, unavailabilityRepo, dir, service.AdmissionConfig{
		Location:       loc,
		CutoffHour:     cfg.Booking.CutoffHour,
		CutoffMinute:   cfg.Booking.CutoffMinute,
		MaxAdvanceDays: cfg.Booking.MaxAdvanceDays,
		Caps:           caps,
	}, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled && redisClient != nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var notifier *service.NotificationService
	if cfg.Notify.Enabled {
		sender, err := mailer.New(cfg.Notify, logr)
		if err != nil {
			logr.Sugar().Fatalw("failed to build mail sender", "error", err)
		}
		notifier = service.NewNotificationService(sender, emailEventRepo, dir, metrics, cfg.Notify, logr)
		notifier.Start(ctx)
		defer notifier.Stop()
	}

	var dispatcher service.NotificationDispatcher
	if notifier != nil {
		dispatcher = notifier
	}
	bookingSvc := service.NewBookingService(bookingRepo, admission, dir, dispatcher, cacheSvc, metrics, caps, logr)
	unavailabilitySvc := service.NewUnavailabilityService(unavailabilityRepo, dir, logr)

	bookingHandler := handler.NewBookingHandler(bookingSvc)
	availabilityHandler := handler.NewAvailabilityHandler(bookingSvc, dir)
	unavailabilityHandler := handler.NewUnavailabilityHandler(unavailabilitySvc)
	metricsHandler := handler.NewMetricsHandler(metrics, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/bookings", bookingHandler.Attempt)
		api.GET("/bookings", bookingHandler.List)
		api.GET("/bookings/mine", bookingHandler.Mine)
		api.GET("/bookings/:id", bookingHandler.Get)
		api.DELETE("/bookings/:id", bookingHandler.Delete)

		api.GET("/availability", availabilityHandler.Preview)
		api.GET("/subjects", availabilityHandler.Subjects)
		api.GET("/slots", availabilityHandler.Slots)

		api.POST("/unavailability", unavailabilityHandler.Create)
		api.GET("/unavailability", unavailabilityHandler.List)
		api.DELETE("/unavailability/:id", unavailabilityHandler.Delete)

		if notifier != nil {
			notificationHandler := handler.NewNotificationHandler(notifier)
			api.GET("/notifications/events", notificationHandler.Events)
			api.POST("/notifications/events/:id/resend", notificationHandler.Resend)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
}
