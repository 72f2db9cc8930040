package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"questrent/config"
	"questrent/database"
	bookingRepo "questrent/database/repository/booking"
	"questrent/handlers"
	"questrent/middleware"
	"questrent/routes"
	"questrent/services/booking"
	"questrent/services/intake"
	"questrent/services/notification"
	"questrent/utils"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gin-gonic/gin"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitSessionCache()

	// A tariff gap is a configuration error; refuse to start with one.
	tariffs := booking.DefaultTariffs
	capacity := config.AppConfig.FleetCapacity
	supportedDays := supportedDurations(tariffs)
	if err := tariffs.Validate(capacity, supportedDays); err != nil {
		logger.Sugar().Fatalf("main: tariff table does not cover the fleet: %v", err)
	}

	bot, err := tgbotapi.NewBotAPI(config.AppConfig.TelegramToken)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize telegram bot: %v", err)
	}

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware())

	// repositories.
	repo := bookingRepo.NewMongoBookingRepo()
	if mongoRepo, ok := repo.(*bookingRepo.MongoBookingRepo); ok {
		if err := mongoRepo.EnsureIndexes(); err != nil {
			logger.Sugar().Fatalf("main: failed to ensure booking indexes: %v", err)
		}
	}

	// services.
	store := &booking.ReservationStore{
		Repo:     repo,
		Tariffs:  tariffs,
		Capacity: capacity,
	}
	engine := &booking.AvailabilityEngine{
		Repo:        repo,
		Tariffs:     tariffs,
		Capacity:    capacity,
		HorizonDays: config.AppConfig.BookingHorizonDays,
	}
	lifecycle := &booking.LifecycleService{Repo: repo}
	notifier := notification.NewTelegramNotifier(bot, config.AppConfig.AdminChatID)

	sessionStore := &intake.RedisSessionStore{
		Client: utils.GetSessionCacheClient(),
		TTL:    time.Duration(config.AppConfig.SessionTTLMinutes) * time.Minute,
	}
	machine := &intake.Machine{
		Sessions:          sessionStore,
		Engine:            engine,
		Store:             store,
		Notifier:          notifier,
		OfferedDatesLimit: config.AppConfig.OfferedDatesLimit,
	}

	bookingHandler := handlers.NewBookingHandler(store, lifecycle, logger)
	webhookHandler := handlers.NewWebhookHandler(bot, machine, lifecycle, tariffs, capacity, config.AppConfig.AdminChatID, logger)

	routes.RegisterRoutes(router, bookingHandler, webhookHandler)

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

// supportedDurations collects every duration that appears anywhere in the
// tariff table, so startup validation covers the full matrix.
func supportedDurations(t booking.Tariffs) []int {
	seen := map[int]bool{}
	for _, byDays := range t {
		for d := range byDays {
			seen[d] = true
		}
	}
	var out []int
	for d := range seen {
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}
