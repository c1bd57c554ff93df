package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gtdflow/gtdflow/internal/app/identity"
	"github.com/gtdflow/gtdflow/internal/app/invite"
	"github.com/gtdflow/gtdflow/internal/app/review"
	"github.com/gtdflow/gtdflow/internal/app/tasks"
	"github.com/gtdflow/gtdflow/internal/platform/dbpool"
	"github.com/gtdflow/gtdflow/internal/platform/env"
	"github.com/gtdflow/gtdflow/internal/platform/metrics"
	"github.com/gtdflow/gtdflow/internal/platform/natsutil"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
)

func main() {
	_ = godotenv.Load()

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiAddr := env.String("API_ADDR", env.DefaultAPIAddr)
	uiOrigin := env.String("UI_ORIGIN", "http://localhost:5173")
	pgURL := env.String("DATABASE_URL", env.DefaultDatabaseURL)
	jwtSecret := env.String("JWT_SECRET", "dev-insecure-change-me")
	mailFrom := env.String("MAIL_FROM", env.DefaultMailFrom)
	shutdownTimeout := env.Duration("SHUTDOWN_TIMEOUT", 10*time.Second)

	pool, err := dbpool.New(runCtx, pgURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	identityRepo := identity.NewPostgresRepository(pool)
	taskRepo := tasks.NewPostgresRepository(pool)
	if err := waitForSchemas(runCtx, 30*time.Second, identityRepo.EnsureSchema, taskRepo.EnsureSchema); err != nil {
		log.Fatal(err)
	}

	identitySvc := identity.NewService(identityRepo, identity.NewTokenManager(jwtSecret))

	client, err := natsutil.ConnectJetStreamWithRetry(env.String("NATS_URL", env.DefaultNATSURL), 20*time.Second)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()
	publisher := natsutil.JetStreamPublisher{JS: client.JS}

	mailer, err := invite.NewSMTPMailer(invite.SMTPConfig{
		Host:     env.String("SMTP_HOST", "localhost"),
		Port:     env.Int("SMTP_PORT", 587),
		Username: env.String("SMTP_USERNAME", ""),
		Password: env.String("SMTP_PASSWORD", ""),
	})
	if err != nil {
		log.Fatal(err)
	}

	taskSvc := tasks.NewService(taskRepo, publisher.Publish)
	inviteSvc := invite.NewService(taskRepo, mailer, publisher.Publish, mailFrom)
	reviewSvc := review.NewService(review.NewPostgresRepository(pool))

	handler := tasks.NewHandler(taskSvc, identitySvc, uiOrigin)
	handler.Mount(invite.NewHandler(inviteSvc).Routes)
	handler.Mount(review.NewHandler(reviewSvc).Routes)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := checkReadiness(r.Context(), pool, client.Conn); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.DefaultHandler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:              apiAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	fmt.Printf("API listening on %s\n", apiAddr)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		log.Fatal(err)
	case <-runCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("api graceful shutdown failed: %v", err)
	}
}

func waitForSchemas(ctx context.Context, timeout time.Duration, ensure ...func(context.Context) error) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		lastErr = nil
		for _, fn := range ensure {
			attemptCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			lastErr = fn(attemptCtx)
			cancel()
			if lastErr != nil {
				break
			}
		}
		if lastErr == nil {
			return nil
		}
		log.Printf("waiting for schema readiness: %v", lastErr)
		time.Sleep(500 * time.Millisecond)
	}
	return lastErr
}

func checkReadiness(ctx context.Context, pool *pgxpool.Pool, conn *nats.Conn) error {
	if conn == nil || !conn.IsConnected() {
		return errors.New("nats connection is not ready")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("postgres not ready: %w", err)
	}
	return nil
}
