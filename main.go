package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"appointa/config"
	"appointa/cron"
	"appointa/database"
	clientRepoPkg "appointa/database/repository/client"
	consultationRepoPkg "appointa/database/repository/consultation"
	reservationRepoPkg "appointa/database/repository/reservation"
	settingsRepoPkg "appointa/database/repository/settings"
	"appointa/handlers"
	"appointa/models"
	"appointa/routes"
	"appointa/services/availability"
	"appointa/services/booking"
	"appointa/services/calendar"
	"appointa/services/extraction"
	ai "appointa/services/intelligence"
	"appointa/services/reservation"
	"appointa/services/tasks"
	"appointa/utils"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitCache()

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())

	// repositories.
	settingsRepo := settingsRepoPkg.NewMongoSettingsRepo()
	consultationRepo := consultationRepoPkg.NewMongoConsultationRepo()
	reservationRepo := reservationRepoPkg.NewMongoReservationRepo()
	clientRepo := clientRepoPkg.NewMongoClientRepo()
	for _, ensure := range []func() error{
		settingsRepo.EnsureIndexes,
		consultationRepo.EnsureIndexes,
		reservationRepo.EnsureIndexes,
		clientRepo.EnsureIndexes,
	} {
		if err := ensure(); err != nil {
			logger.Sugar().Fatalf("main: failed to create indexes: %v", err)
		}
	}

	// External collaborators. Both are optional; the engine degrades to
	// store-backed data when they are absent.
	var calendarSvc calendar.Service
	if config.AppConfig.GoogleCredentialsFile != "" {
		svc, err := calendar.NewGoogleCalendarService(context.Background())
		if err != nil {
			logger.Sugar().Warnf("main: calendar client unavailable, continuing without: %v", err)
		} else {
			calendarSvc = svc
		}
	}

	var extractor ai.Extractor
	if config.AppConfig.GeminiAPIKey != "" {
		ext, err := ai.NewGeminiExtractor(context.Background())
		if err != nil {
			logger.Sugar().Fatalf("main: failed to initialize extractor: %v", err)
		}
		extractor = ext
	} else {
		logger.Sugar().Warn("main: no Gemini API key configured, conversation turns will carry no extraction")
		extractor = noopExtractor{}
	}

	// services.
	availabilitySvc := availability.NewDefaultService(settingsRepo, consultationRepo, reservationRepo, calendarSvc)
	reservationSvc := reservation.NewDefaultService(
		reservationRepo, consultationRepo, clientRepo,
		calendarSvc, tasks.NewAsynqEnqueuer(),
		time.Duration(config.AppConfig.HoldTTLMinutes)*time.Minute,
	)
	lifecycleSvc := booking.NewDefaultLifecycleService(consultationRepo, calendarSvc)

	accumulator := extraction.NewAccumulator(extraction.NewRedisDraftStore(utils.GetCacheClient()))
	pipeline := extraction.NewPipeline(extractor, accumulator)

	// Background work: reminder delivery and the hold expiry sweep.
	cron.InitReminderWorker(cron.LogNotifier{})
	sweeper := cron.StartExpirySweep(reservationSvc)
	defer sweeper.Stop()

	handlerBundle := &handlers.HandlerBundle{
		Availability: availabilitySvc,
		Reservations: reservationSvc,
		Lifecycle:    lifecycleSvc,
		Pipeline:     pipeline,
		Accumulator:  accumulator,
		SettingsRepo: settingsRepo,
	}
	routes.RegisterRoutes(router, handlerBundle)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}

// noopExtractor keeps the turn pipeline alive without a model key: every
// turn yields no new data.
type noopExtractor struct{}

func (noopExtractor) Extract(ctx context.Context, turns []models.ConversationMessage, draft *models.BookingDraft) (*models.ExtractionResult, error) {
	return &models.ExtractionResult{}, nil
}
