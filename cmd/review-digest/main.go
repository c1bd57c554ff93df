package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gtdflow/gtdflow/internal/app/digest"
	"github.com/gtdflow/gtdflow/internal/app/identity"
	"github.com/gtdflow/gtdflow/internal/app/invite"
	"github.com/gtdflow/gtdflow/internal/app/review"
	"github.com/gtdflow/gtdflow/internal/platform/dbpool"
	"github.com/gtdflow/gtdflow/internal/platform/env"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

func main() {
	_ = godotenv.Load()

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pgURL := env.String("DATABASE_URL", env.DefaultDatabaseURL)
	mailFrom := env.String("MAIL_FROM", env.DefaultMailFrom)
	schedule := env.String("DIGEST_CRON", env.DefaultDigestCron)

	pool, err := dbpool.New(runCtx, pgURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	mailer, err := invite.NewSMTPMailer(invite.SMTPConfig{
		Host:     env.String("SMTP_HOST", "localhost"),
		Port:     env.Int("SMTP_PORT", 587),
		Username: env.String("SMTP_USERNAME", ""),
		Password: env.String("SMTP_PASSWORD", ""),
	})
	if err != nil {
		log.Fatal(err)
	}

	service := digest.NewService(
		identity.NewPostgresRepository(pool),
		review.NewService(review.NewPostgresRepository(pool)),
		mailer,
		mailFrom,
	)

	scheduler := cron.New()
	_, err = scheduler.AddFunc(schedule, func() {
		sweepCtx, cancel := context.WithTimeout(runCtx, 10*time.Minute)
		defer cancel()
		if err := service.Run(sweepCtx); err != nil {
			log.Printf("digest sweep failed: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("invalid DIGEST_CRON %q: %v", schedule, err)
	}

	scheduler.Start()
	log.Printf("Review digest scheduled: %q", schedule)

	<-runCtx.Done()
	<-scheduler.Stop().Done()
}
