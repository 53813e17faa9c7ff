// Command mailer consumes queued password reset codes and delivers them
// through the SMTP relay.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redmonkez12/my-finance/internal/config"
	"github.com/redmonkez12/my-finance/internal/email"
	"github.com/redmonkez12/my-finance/internal/logging"
)

const (
	prefetch       = 10
	retryBaseDelay = time.Second
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Mailer error: %v", err)
	}
}

func run() error {
	cfg, err := config.LoadMailer()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Env == "dev")
	logger.Info("starting mailer", "queue", cfg.Mail.AMQPQueue, "smtp_server", cfg.Mail.Server)

	client, err := email.NewRabbitMQClient(cfg.Mail.AMQPURL)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.DeclareQueue(cfg.Mail.AMQPQueue); err != nil {
		return err
	}

	deliveries, err := client.Consume(cfg.Mail.AMQPQueue, prefetch)
	if err != nil {
		return err
	}

	var sender email.Notifier = email.NewService(cfg.Mail, cfg.ResetCodeTTL)
	if cfg.Mail.RetryAttempts > 0 {
		sender = email.NewRetryNotifier(sender, cfg.Mail.RetryAttempts, retryBaseDelay)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = email.NewWorker(sender, logger).Run(ctx, deliveries)
	if errors.Is(err, context.Canceled) {
		logger.Info("mailer stopped")
		return nil
	}
	if err == nil {
		return errors.New("broker closed the delivery channel")
	}
	return err
}
