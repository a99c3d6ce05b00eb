package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"datematch-backend/internal/config"
	"datematch-backend/internal/gateway"
	"datematch-backend/internal/handlers"
	"datematch-backend/internal/middleware"
	"datematch-backend/internal/repository"
	"datematch-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	// Connect to database
	db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	interestRepo := repository.NewInterestRepository(db)
	matchRepo := repository.NewMatchRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	chatRepo := repository.NewChatRepository(db)
	photoRepo := repository.NewPhotoRepository(db)
	notifRepo := repository.NewNotificationRepository(db)

	// External collaborators
	mpesa := gateway.NewClient(cfg.Payment)
	var pusher services.PushSender
	if cfg.APNS.Enabled {
		apns, err := services.NewAPNSPusher(cfg.APNS.CertFile, cfg.APNS.CertPass, cfg.APNS.Topic, cfg.APNS.Sandbox)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create APNs pusher")
		}
		pusher = apns
	}

	// Initialize services
	userService := services.NewUserService(userRepo, cfg.JWT.Secret)
	ledger := services.NewLedgerService(subRepo, cfg.Subscription.GracePeriod())
	gate := services.NewCapabilityGate(ledger)
	matchService := services.NewMatchService(interestRepo, matchRepo)
	chatService := services.NewChatService(chatRepo, matchRepo, notifRepo)
	paymentService := services.NewPaymentService(
		paymentRepo,
		mpesa,
		cfg.Payment.Price,
		cfg.Payment.RequestTTL(),
		cfg.Subscription.Duration(),
	)
	photoService, err := services.NewPhotoService(
		photoRepo,
		cfg.AWS.Region,
		cfg.AWS.S3Bucket,
		cfg.AWS.AccessKey,
		cfg.AWS.SecretKey,
		cfg.AWS.Endpoint,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create photo service")
	}
	wsHub := services.NewWSHub()
	sweeper := services.NewSweeper(subRepo, paymentRepo, cfg.Subscription.GracePeriod(), cfg.Subscription.SweepInterval())
	dispatcher := services.NewDispatcher(notifRepo, userRepo, pusher, wsHub, 5*time.Second)

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	likeHandler := handlers.NewLikeHandler(matchService, userService, gate)
	chatHandler := handlers.NewChatHandler(chatService, matchService, userService, gate)
	paymentHandler := handlers.NewPaymentHandler(paymentService, ledger)
	photoHandler := handlers.NewPhotoHandler(photoService, userService, gate)
	wsHandler := handlers.NewWebSocketHandler(wsHub, userService)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/users", userHandler.Register)
		r.Post("/login", userHandler.Login)
		r.Post("/payments/callback", paymentHandler.Callback)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(userService))
			r.Get("/me", userHandler.Me)
			r.Put("/me/push-token", userHandler.UpdatePushToken)

			r.Post("/likes", likeHandler.LikeProfile)
			r.Get("/likes/received", likeHandler.ListAdmirers)
			r.Get("/matches", likeHandler.ListMatches)
			r.Delete("/matches/{match_id}", likeHandler.Unmatch)

			r.Post("/chats", chatHandler.InitiateChat)
			r.Post("/chats/{chat_id}/messages", chatHandler.SendMessage)
			r.Get("/chats/{chat_id}/messages", chatHandler.ListMessages)

			r.Post("/subscriptions", paymentHandler.Purchase)
			r.Get("/subscriptions/me", paymentHandler.Status)

			r.Post("/photos/upload", photoHandler.UploadPhoto)
			r.Get("/users/{user_id}/photos", photoHandler.GetPhotos)
			r.Post("/photos/{photo_id}/like", photoHandler.LikePhoto)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	// Background loops
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	go sweeper.Run(bgCtx)
	go dispatcher.Run(bgCtx)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	bgCancel()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
