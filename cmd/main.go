package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/spikeline/tournament-server/config"
	"github.com/spikeline/tournament-server/db"
	"github.com/spikeline/tournament-server/handlers"
	"github.com/spikeline/tournament-server/realtime"
	"github.com/spikeline/tournament-server/repositories"
	"github.com/spikeline/tournament-server/routes"
	"github.com/spikeline/tournament-server/schedule"
	"github.com/spikeline/tournament-server/services"
	"github.com/spikeline/tournament-server/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	var uploader storage.FileUploader
	if cfg.R2Configured() {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		uploader = storage.NewDisabledUploader()
		logger.Warn("object storage not configured, team logo uploads disabled")
	}

	hub := realtime.NewHub()
	go hub.Run()
	logger.Info("realtime hub started")

	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	settingsRepo := repositories.NewPostgresSettingsRepository(dbConn)
	txRunner := services.NewSQLTxRunner(dbConn)

	authService := services.NewAuthService(cfg.AdminPasscodeHash)
	teamService := services.NewTeamService(txRunner, teamRepo, matchRepo, settingsRepo, uploader, hub, logger)
	standingsService := services.NewStandingsService(teamRepo, matchRepo)
	scheduleService := services.NewScheduleService(txRunner, teamRepo, matchRepo, settingsRepo, schedule.NewPoolScheduler(nil), hub, logger)
	bracketService := services.NewBracketService(txRunner, teamRepo, matchRepo, settingsRepo, standingsService, hub, logger)
	matchService := services.NewMatchService(matchRepo, teamRepo, bracketService, hub, logger)
	tournamentService := services.NewTournamentService(txRunner, teamRepo, matchRepo, settingsRepo, hub, logger)
	logger.Info("services initialized")

	router := chi.NewRouter()
	routes.SetupRoutes(router, routes.Handlers{
		Auth:       handlers.NewAuthHandler(authService, cfg.JWTSecretKey),
		Team:       handlers.NewTeamHandler(teamService),
		Match:      handlers.NewMatchHandler(matchService),
		Standings:  handlers.NewStandingsHandler(standingsService),
		Schedule:   handlers.NewScheduleHandler(scheduleService),
		Bracket:    handlers.NewBracketHandler(bracketService),
		Tournament: handlers.NewTournamentHandler(tournamentService),
		WebSocket:  handlers.NewWebSocketHandler(hub, logger),
	}, cfg.JWTSecretKey)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
