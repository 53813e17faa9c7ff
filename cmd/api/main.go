package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	_ "github.com/redmonkez12/my-finance/docs" // Swagger docs (generated)
	"github.com/redmonkez12/my-finance/internal/auth"
	"github.com/redmonkez12/my-finance/internal/config"
	"github.com/redmonkez12/my-finance/internal/database"
	"github.com/redmonkez12/my-finance/internal/email"
	httpServer "github.com/redmonkez12/my-finance/internal/http"
	"github.com/redmonkez12/my-finance/internal/logging"
	"github.com/redmonkez12/my-finance/internal/ratelimit"
	"github.com/redmonkez12/my-finance/internal/transaction"
	"github.com/redmonkez12/my-finance/internal/user"
)

// @title           My Finance API
// @version         1.0
// @description     Personal finance API: accounts, password reset by emailed code, and income/expense tracking.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.

const retryBaseDelay = 500 * time.Millisecond

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"db_driver", cfg.Database.Driver,
		"token_format", cfg.Auth.TokenFormat,
		"mail_transport", cfg.Mail.Transport,
	)

	ctx := context.Background()

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, cfg.Database.Driver); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		logger.Info("database migrations applied")
	}

	rateLimiter, closeLimiter, err := initRateLimiter(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize rate limiter: %w", err)
	}
	defer closeLimiter()

	tokenService, err := initTokenService(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}

	notifier, closeNotifier, err := initNotifier(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize mail transport: %w", err)
	}
	defer closeNotifier()

	hasher := auth.NewArgon2Hasher(auth.Argon2Params{
		Memory:      cfg.Auth.Argon2MemoryKB,
		Iterations:  cfg.Auth.Argon2Iterations,
		Parallelism: cfg.Auth.Argon2Parallelism,
	})

	authService := auth.NewService(
		user.NewRepository(db),
		hasher,
		tokenService,
		notifier,
		logger,
		cfg.Auth.AccessTokenDuration,
		cfg.Auth.ResetCodeTTL,
	)
	transactionService := transaction.NewService(transaction.NewRepository(db))

	router := httpServer.NewRouter(
		cfg,
		auth.NewHandler(authService, rateLimiter, logger),
		auth.NewMiddleware(tokenService),
		transaction.NewHandler(transactionService),
		logger,
	)

	server := httpServer.NewServer(
		":"+cfg.Server.Port,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("received signal", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// initRateLimiter connects to Redis when it is configured. Without Redis
// every request is allowed.
func initRateLimiter(ctx context.Context, cfg *config.Config, logger *logging.Logger) (auth.RateLimiter, func(), error) {
	if !cfg.Redis.Enabled() {
		logger.Warn("REDIS_HOST not set, rate limiting disabled")
		return ratelimit.Disabled{}, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	limiter := ratelimit.NewLimiter(client, cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.ResetEmailCooldown)
	return limiter, func() { client.Close() }, nil
}

func initTokenService(cfg config.AuthConfig) (auth.TokenService, error) {
	if cfg.TokenFormat == config.TokenFormatJWT {
		jwtService, err := auth.NewJWTService(cfg.SecretKey)
		if err != nil {
			return nil, err
		}
		return jwtService, nil
	}

	pasetoService, err := auth.NewPasetoService(cfg.SecretKey)
	if err != nil {
		return nil, err
	}
	return pasetoService, nil
}

// initNotifier picks the reset code transport. SMTP and AMQP sends are
// retried when MAIL_RETRY_ATTEMPTS is positive.
func initNotifier(cfg *config.Config, logger *logging.Logger) (auth.Notifier, func(), error) {
	var (
		notifier email.Notifier
		closeFn  = func() {}
	)

	switch cfg.Mail.Transport {
	case config.MailTransportLog:
		logger.Warn("MAIL_TRANSPORT=log, reset codes are written to the log")
		return email.NewLogNotifier(logger), closeFn, nil

	case config.MailTransportAMQP:
		client, err := email.NewRabbitMQClient(cfg.Mail.AMQPURL)
		if err != nil {
			return nil, nil, err
		}
		if err := client.DeclareQueue(cfg.Mail.AMQPQueue); err != nil {
			client.Close()
			return nil, nil, err
		}
		notifier = email.NewQueueNotifier(client, cfg.Mail.AMQPQueue)
		closeFn = func() {
			if err := client.Close(); err != nil {
				logger.Error("failed to close rabbitmq client", "error", err.Error())
			}
		}

	default:
		notifier = email.NewService(cfg.Mail, cfg.Auth.ResetCodeTTL)
	}

	if cfg.Mail.RetryAttempts > 0 {
		notifier = email.NewRetryNotifier(notifier, cfg.Mail.RetryAttempts, retryBaseDelay)
	}

	return notifier, closeFn, nil
}
