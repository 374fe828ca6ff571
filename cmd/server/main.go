package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v82"

	"parkgrid/internal/api"
	"parkgrid/internal/auth"
	"parkgrid/internal/pricing"
	"parkgrid/internal/repository"
	"parkgrid/internal/service"
)

func main() {
	godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal("DATABASE_URL not set")
	}
	database, err := sql.Open("postgres", dbURL)
	if err != nil {
		logger.Fatalf("Failed to open DB: %v", err)
	}
	if err := database.Ping(); err != nil {
		logger.Fatalf("Failed to connect to DB: %v", err)
	}

	stripe.Key = os.Getenv("STRIPE_SECRET_KEY")

	var publisher service.Publisher
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatalf("Failed to connect to Redis: %v", err)
		}
		publisher = service.NewRedisPublisher(redisClient)
		logger.Info("Redis event publisher connected")
	} else {
		logger.Warn("REDIS_ADDR not set, capacity events will not be published")
	}

	facilityRepo := repository.NewFacilityRepository(database)
	bookingRepo := repository.NewBookingRepository(database)
	adminAuthRepo := repository.NewAdminAuthRepository(database)

	facilitySvc := service.NewFacilityService(facilityRepo, publisher, logger)
	facilities, err := facilityRepo.ListFacilities()
	if err != nil {
		logger.Fatalf("Failed to load facilities: %v", err)
	}
	facilitySvc.LoadFacilities(facilities)
	logger.WithField("count", len(facilities)).Info("facilities loaded")

	engine := pricing.NewEngine(envInt64("TAX_RATE_BASIS_POINTS", pricing.DefaultTaxRateBasisPoints))
	refunds := pricing.DefaultRefundPolicy()

	gateway := service.NewStripeService(
		os.Getenv("STRIPE_SUCCESS_URL"),
		os.Getenv("STRIPE_CANCEL_URL"),
	)
	notifier := service.NewNotifyService(logger)

	bookingSvc := service.NewBookingService(
		facilitySvc, bookingRepo, engine, refunds, gateway, publisher, notifier, logger,
	)
	bookingSvc.SetMaxExtensionHours(int(envInt64("MAX_EXTENSION_HOURS", service.DefaultMaxExtensionHours)))

	pendingTTL := time.Duration(envInt64("PENDING_TTL_MINUTES", 30)) * time.Minute
	jobSvc := service.NewJobService(bookingRepo, bookingSvc, pendingTTL, logger)
	adminAuthSvc := service.NewAdminAuthService(adminAuthRepo)

	c := cron.New()
	c.AddFunc("@every 5m", func() {
		if err := jobSvc.CompleteFinishedBookings(); err != nil {
			logger.WithError(err).Error("finished-bookings sweep failed")
		}
	})
	c.AddFunc("@every 10m", func() {
		if err := jobSvc.ExpireStalePendingBookings(); err != nil {
			logger.WithError(err).Error("stale-pending sweep failed")
		}
	})
	c.Start()
	defer c.Stop()

	bookingHandler := api.NewBookingHandler(bookingSvc, facilitySvc)
	adminHandler := api.NewAdminHandler(bookingSvc, facilitySvc)
	adminAuthHandler := api.NewAdminAuthHandler(adminAuthSvc)
	stripeHandler := api.NewStripeWebhookHandler(os.Getenv("STRIPE_WEBHOOK_SECRET"), bookingSvc, logger)

	r := mux.NewRouter()

	// Public endpoints
	r.HandleFunc("/api/facilities", bookingHandler.ListFacilities).Methods("GET")
	r.HandleFunc("/api/facilities/{id}/slots", bookingHandler.ListSlots).Methods("GET")
	r.HandleFunc("/api/availability", bookingHandler.CheckAvailability).Methods("POST")
	r.HandleFunc("/api/quotes", bookingHandler.Quote).Methods("POST")
	r.HandleFunc("/api/bookings", bookingHandler.CreateBooking).Methods("POST")
	r.HandleFunc("/api/bookings/{code}", bookingHandler.GetBooking).Methods("GET")
	r.HandleFunc("/api/bookings/{code}/extend", bookingHandler.ExtendBooking).Methods("POST")
	r.HandleFunc("/api/bookings/{code}", bookingHandler.CancelBooking).Methods("DELETE")
	r.HandleFunc("/api/payments/webhook", stripeHandler.HandleWebhook).Methods("POST")
	r.HandleFunc("/admin/login", adminAuthHandler.Login).Methods("POST")

	// Admin endpoints (protected)
	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(auth.AdminAuthMiddleware)
	admin.HandleFunc("/bookings", adminHandler.ListBookings).Methods("GET")
	admin.HandleFunc("/bookings/{code}/status", adminHandler.TransitionBooking).Methods("PUT")
	admin.HandleFunc("/facilities/{id}/capacity", adminHandler.UpdateCapacity).Methods("PUT")
	admin.HandleFunc("/facilities/{id}/layout", adminHandler.GenerateLayout).Methods("POST")
	admin.HandleFunc("/facilities/{id}/slots/{code}", adminHandler.SetSlotStatus).Methods("PUT")

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{os.Getenv("CORS_ORIGIN")}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	logger.Infof("Server running on port %s", port)
	logger.Fatal(http.ListenAndServe(":"+port, cors(r)))
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
