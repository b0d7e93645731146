package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/signquest-backend/internal/config"
	"github.com/stemsi/signquest-backend/internal/database"
	"github.com/stemsi/signquest-backend/internal/handler"
	"github.com/stemsi/signquest-backend/internal/logger"
	"github.com/stemsi/signquest-backend/internal/observability"
	"github.com/stemsi/signquest-backend/internal/realtime"
	"github.com/stemsi/signquest-backend/internal/repository"
	"github.com/stemsi/signquest-backend/internal/router"
	"github.com/stemsi/signquest-backend/internal/service"
	"github.com/stemsi/signquest-backend/internal/validator"
	"github.com/stemsi/signquest-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("timezone", cfg.Location.String()).
		Msg("Starting SignQuest Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Tracing ───────────────────────────────────────────────────────
	shutdownTracing := observability.Setup(ctx, cfg, log)

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Stores ─────────────────────────────────────────────
	profileRepo := repository.NewProfileRepository(pool)
	teacherRepo := repository.NewTeacherRepository(pool)
	historyRepo := repository.NewSessionHistoryRepository(pool)

	roomStore := realtime.NewRoomStore(rdb, log)
	messageLog := realtime.NewMessageLog(rdb, cfg.MessageLogKeep, cfg.RoomTTL, log)
	historyQueue := worker.NewSessionHistoryQueue(rdb)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	progressService := service.NewProgressService(profileRepo, historyQueue, cfg.Location, log)
	profileService := service.NewProfileService(profileRepo, historyRepo, authService, rdb, cfg.LeaderboardTTL, log)
	teacherService := service.NewTeacherService(teacherRepo, profileRepo, authService, log)
	relayService := service.NewRelayService(messageLog)
	roomService := service.NewRoomService(roomStore, relayService, cfg.RoomTTL, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:    handler.NewAuthHandler(authService, profileService, progressService, teacherService, log),
		Student: handler.NewStudentHandler(profileService, progressService, cfg.SignThreshold, log),
		Room:    handler.NewRoomHandler(roomService, relayService, log),
		Teacher: handler.NewTeacherHandler(teacherService, log),
		WS:      handler.NewWSHandler(roomService, relayService, cfg.SignThreshold, log, cfg.AllowedOrigins),
		System: handler.NewSystemHandler(
			handler.PingFunc(pool.Ping),
			handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
			historyQueue.Len,
			roomStore.Count,
			log,
		),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	historyWorker := worker.NewSessionHistoryWorker(historyRepo, rdb, log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		historyWorker.Start(workerCtx)
	}()

	janitor := worker.NewRoomJanitor(roomService, cfg.RoomSweepInterval, log)
	if err := janitor.Start(workerCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule room janitor")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the janitor and let the history worker flush its batch.
	janitor.Stop()
	workerCancel()
	workers.Wait()

	// 3. Flush pending spans.
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Tracer shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
