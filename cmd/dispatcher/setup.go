package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aelexs/notification-dispatch/internal/config"
	"github.com/aelexs/notification-dispatch/internal/domain"
	"github.com/aelexs/notification-dispatch/internal/dynamo"
	"github.com/aelexs/notification-dispatch/internal/notify/adapter"
	"github.com/aelexs/notification-dispatch/internal/notify/app"
	"github.com/aelexs/notification-dispatch/internal/notify/port"
	"github.com/aelexs/notification-dispatch/internal/redis"
	"github.com/aelexs/notification-dispatch/internal/server"
)

// setup is the dispatcher service composition root. It creates
// infrastructure clients, per-channel reliability pipelines, the OTP queue
// consumer, and mounts the HTTP API.
func setup(ctx context.Context, deps server.SetupDeps) (server.CleanupFunc, error) {
	cfg := deps.Config
	logger := deps.Logger
	clock := domain.RealClock{}

	// 1. Infrastructure clients.
	dynamoClient, err := dynamo.NewClient(ctx, dynamo.Config{
		Endpoint: cfg.DynamoDB.Endpoint,
		Region:   cfg.DynamoDB.Region,
		Timeout:  cfg.DynamoDB.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("dispatcher setup: create dynamo client: %w", err)
	}

	redisClient := redis.NewClient(redis.Config{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		ReadTimeout:  cfg.Redis.Timeout,
		WriteTimeout: cfg.Redis.Timeout,
	})

	// 2. Audit store and transports (environment-dependent).
	audit := adapter.NewAuditStore(dynamoClient.DB, cfg.Audit.Table, cfg.Audit.RetentionDays)
	smsTransport, emailTransport := createTransports(cfg, logger)

	// 3. Per-channel reliability pipelines. Each channel owns its breaker,
	// limiter, and retry policy.
	smsDispatcher := app.NewChannelDispatcher(app.ChannelDispatcherConfig{
		Channel:       domain.ChannelSMS,
		Transport:     smsTransport,
		Audit:         audit,
		Breaker:       app.NewCircuitBreaker(cfg.SMS.BreakerThreshold, cfg.SMS.BreakerTimeout, clock),
		Limiter:       app.NewRateLimiter(cfg.SMS.RateLimit),
		Retry:         app.NewRetryPolicy(cfg.SMS.RetryAttempts, domain.RetryBackoffFloor, domain.RetryBackoffCap),
		Clock:         clock,
		Logger:        logger,
		DefaultSender: cfg.Gateway.FromNumber,
	})
	emailDispatcher := app.NewChannelDispatcher(app.ChannelDispatcherConfig{
		Channel:       domain.ChannelEmail,
		Transport:     emailTransport,
		Audit:         audit,
		Breaker:       app.NewCircuitBreaker(cfg.Email.BreakerThreshold, cfg.Email.BreakerTimeout, clock),
		Limiter:       app.NewRateLimiter(cfg.Email.RateLimit),
		Retry:         app.NewRetryPolicy(cfg.Email.RetryAttempts, domain.RetryBackoffFloor, domain.RetryBackoffCap),
		Clock:         clock,
		Logger:        logger,
		DefaultSender: cfg.SMTP.From,
	})

	// 4. OTP queue consumer over Redis Streams.
	queue := adapter.NewStreamQueue(redisClient.RDB, adapter.StreamQueueConfig{
		Group:    cfg.Queue.Group,
		Consumer: cfg.Queue.Consumer,
	}, logger)

	consumer := app.NewOTPConsumer(app.OTPConsumerConfig{
		Queue:      queue,
		EmailQueue: cfg.Queue.EmailStream,
		SMSQueue:   cfg.Queue.SMSStream,
		SMS:        smsDispatcher,
		Email:      emailDispatcher,
		Logger:     logger,
	})
	if err := consumer.Start(ctx); err != nil {
		// The HTTP surface still works without the consumer; health reports
		// it degraded rather than refusing to start.
		logger.ErrorContext(ctx, "otp consumer failed to start, continuing without it",
			slog.Any("error", err),
		)
	}

	// 5. HTTP API.
	handler := port.NewHandler(port.HandlerConfig{
		SMS:      smsDispatcher,
		Email:    emailDispatcher,
		Audit:    audit,
		Consumer: consumer,
		Clock:    clock,
		Logger:   logger,
	})
	handler.Register(deps.HTTPMux)

	logger.InfoContext(ctx, "dispatcher initialized",
		slog.String("audit_table", cfg.Audit.Table),
		slog.String("queue_group", cfg.Queue.Group),
		slog.Bool("local_transports", cfg.IsLocal()),
	)

	cleanup := func(context.Context) error {
		var errs []error
		if err := consumer.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop consumer: %w", err))
		}
		if err := redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
		return errors.Join(errs...)
	}
	return cleanup, nil
}

// createTransports returns the channel transports for the environment.
// Local development logs deliveries instead of calling real providers.
func createTransports(cfg *config.Config, logger *slog.Logger) (app.ChannelTransport, app.ChannelTransport) {
	if cfg.IsLocal() {
		logger.Info("using log-only transports for local development")
		return adapter.NewLogSMSTransport(logger), adapter.NewLogEmailTransport(logger)
	}

	sms := adapter.NewGatewaySMSTransport(
		&http.Client{Timeout: cfg.Gateway.Timeout},
		adapter.GatewaySMSConfig{
			URL:    cfg.Gateway.URL,
			APIKey: cfg.Gateway.APIKey,
			From:   cfg.Gateway.FromNumber,
		},
	)
	email := adapter.NewSMTPEmailTransport(adapter.SMTPEmailConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	return sms, email
}
