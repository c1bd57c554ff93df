package main

import (
	"context"
	"log"
	"time"

	"github.com/gtdflow/gtdflow/internal/app/activitysink"
	"github.com/gtdflow/gtdflow/internal/platform/dbpool"
	"github.com/gtdflow/gtdflow/internal/platform/env"
	"github.com/gtdflow/gtdflow/internal/platform/natsutil"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
)

func main() {
	_ = godotenv.Load()
	ctx := context.Background()

	natsURL := env.String("NATS_URL", env.DefaultNATSURL)
	pgURL := env.String("DATABASE_URL", env.DefaultDatabaseURL)

	pool, err := dbpool.New(ctx, pgURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	repository := activitysink.NewPostgresRepository(pool)
	if err := waitForPostgres(ctx, pool, repository, 30*time.Second); err != nil {
		log.Fatal(err)
	}
	service := activitysink.NewService(repository)

	client, err := natsutil.ConnectJetStreamWithRetry(natsURL, 20*time.Second)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	sub, err := client.JS.QueueSubscribe("app.activity.>", "activity-sink", func(msg *nats.Msg) {
		insertCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()

		switch service.Handle(insertCtx, msg.Subject, msg.Data) {
		case activitysink.Ack:
			_ = msg.Ack()
		case activitysink.Nak:
			_ = msg.Nak()
		case activitysink.Term:
			_ = msg.Term()
		}
	}, nats.ManualAck())
	if err != nil {
		log.Fatal(err)
	}

	log.Println("Activity Sink listening on subject:", sub.Subject)

	// Keep alive
	select {}
}

func waitForPostgres(
	ctx context.Context,
	pool *pgxpool.Pool,
	repository *activitysink.PostgresRepository,
	timeout time.Duration,
) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		attemptCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		lastErr = pool.Ping(attemptCtx)
		if lastErr == nil {
			lastErr = repository.EnsureSchema(attemptCtx)
		}
		cancel()

		if lastErr == nil {
			return nil
		}
		log.Printf("waiting for postgres readiness: %v", lastErr)
		time.Sleep(500 * time.Millisecond)
	}
	return lastErr
}
