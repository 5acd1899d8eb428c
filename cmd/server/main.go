package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"quiz-ai/internal/api"
	"quiz-ai/internal/config"
	"quiz-ai/internal/db"
	"quiz-ai/internal/logger"
	"quiz-ai/internal/services"
	"quiz-ai/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logg, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logg.Sync() }()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	conn, err := db.Open(cfg.Database)
	if err != nil {
		logg.Fatal("open database", zap.String("path", cfg.Database), zap.Error(err))
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := newSessionStore(ctx, cfg, conn, logg)
	if err != nil {
		logg.Fatal("init session store", zap.String("store", cfg.SessionStore), zap.Error(err))
	}
	defer closeStore()

	pdfService := services.NewPDFService(logg)
	profileStore := services.NewProfileStore(cfg.ProfilePath)
	agentService, err := services.NewAgentService(services.AgentConfig{
		APIKey:   cfg.AgentAPIKey,
		BaseURL:  cfg.AgentBaseURL,
		Model:    cfg.AgentModel,
		Timeout:  cfg.AgentTimeout,
		MaxTurns: cfg.AgentMaxTurns,
	}, logg)
	if err != nil {
		logg.Fatal("init agent", zap.Error(err))
	}
	documentService := services.NewDocumentService(conn, pdfService, cfg.MaxUploadMB<<20)
	quizService := services.NewQuizService(agentService, pdfService, profileStore, cfg.TempDir, cfg.AgentTimeout, logg)

	server := api.NewServer(documentService, quizService, store, logg, api.Options{
		SessionSecret:  sessionSecret(cfg, logg),
		SessionTTL:     cfg.SessionTTL,
		SecureCookie:   cfg.Production(),
		MaxUploadBytes: cfg.MaxUploadMB << 20,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.AgentTimeout + 30*time.Second,
	}

	go func() {
		logg.Info("listening", zap.String("addr", srv.Addr), zap.String("model", cfg.AgentModel), zap.String("session_store", cfg.SessionStore))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logg.Info("shutting down")

	// Give a pending generation the chance to finish before connections are dropped.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AgentTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("graceful shutdown", zap.Error(err))
	}
}

func newSessionStore(ctx context.Context, cfg *config.Config, conn *sql.DB, logg *zap.Logger) (session.Store, func(), error) {
	if cfg.SessionStore == "redis" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
		}
		return session.NewRedisStore(client, cfg.SessionTTL), func() { _ = client.Close() }, nil
	}

	store := session.NewSQLiteStore(conn, cfg.SessionTTL)
	if n, err := store.PurgeExpired(ctx); err != nil {
		logg.Warn("purge expired sessions", zap.Error(err))
	} else if n > 0 {
		logg.Info("purged expired sessions", zap.Int64("count", n))
	}
	return store, func() {}, nil
}

// sessionSecret returns the configured cookie key, or a random one that only lives as long
// as the process.
func sessionSecret(cfg *config.Config, logg *zap.Logger) []byte {
	if cfg.SessionSecret != "" {
		return []byte(cfg.SessionSecret)
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		logg.Fatal("generate session secret", zap.Error(err))
	}
	logg.Warn("SESSION_SECRET not set, sessions will not survive a restart")
	return key
}
