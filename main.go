package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/LovationAdmin/finance-assistant/config"
	"github.com/LovationAdmin/finance-assistant/handlers"
	"github.com/LovationAdmin/finance-assistant/logger"
	"github.com/LovationAdmin/finance-assistant/middleware"
	"github.com/LovationAdmin/finance-assistant/routes"
	"github.com/LovationAdmin/finance-assistant/services"
	"github.com/LovationAdmin/finance-assistant/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	log := logger.New()

	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	logger.SetLevel(cfg.LogLevel)

	db, err := config.InitDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connected")

	if err := config.RunMigrations(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	llm, err := services.NewLLM(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Msg("Language model disabled")
		llm = services.DisabledLLM{Reason: err}
	}

	store := services.NewStore(db)
	forecaster := services.NewForecaster(cfg.ForecastURL, &http.Client{Timeout: 60 * time.Second})
	finder := services.NewSubscriptionFinder(llm, services.NewWebSearcher(cfg.SerpAPIKey))
	mailer := services.NewEmailService(cfg.SendGridAPIKey, cfg.SenderEmail)
	chat := services.NewChatService(store, forecaster, finder, llm)
	alerts := services.NewAlertService(mailer, cfg.UserEmail, cfg.CurrentBalance)
	orchestrator := services.NewOrchestrator(store, forecaster, finder, alerts, chat)

	wsHandler := handlers.NewWSHandler(cfg.JWTSecret, log)
	defer wsHandler.Close()

	h := routes.Handlers{
		Auth: &handlers.AuthHandler{Users: store, JWTSecret: cfg.JWTSecret},
		User: &handlers.UserHandler{Users: store},
		Banking: &handlers.BankingHandler{
			Aggregator:    services.NewPlaidService(cfg),
			Store:         store,
			Events:        wsHandler,
			EncryptionKey: cfg.EncryptionKey,
		},
		Analysis: &handlers.AnalysisHandler{
			Runner:        orchestrator,
			Store:         store,
			Forecaster:    forecaster,
			Subscriptions: finder,
			Events:        wsHandler,
		},
		Chat:       &handlers.ChatHandler{Assistant: chat},
		Email:      &handlers.EmailHandler{Mailer: mailer, Store: store},
		Categories: &handlers.CategoriesHandler{Store: store},
		WS:         wsHandler,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	allowedOrigins := []string{cfg.FrontendURL}
	if cfg.FrontendURL != "http://localhost:3000" {
		allowedOrigins = append(allowedOrigins, "http://localhost:3000")
	}
	log.Info().Strs("origins", allowedOrigins).Msg("CORS configured")

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.RequestLogger(log))

	limiter := middleware.NewRateLimiter(cfg.RateLimit, time.Minute)
	limiter.StartCleanup(ctx.Done())
	router.Use(limiter.Handler())

	routes.Register(router.Group("/api"), h, middleware.AuthMiddleware(cfg.JWTSecret))

	router.GET("/health", func(c *gin.Context) {
		status := "healthy"
		if err := db.PingContext(c.Request.Context()); err != nil {
			status = "degraded"
		}
		c.JSON(http.StatusOK, gin.H{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("mode", utils.GetEnvMode()).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
