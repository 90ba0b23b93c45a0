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

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"basegraph.app/textrelay/common/id"
	"basegraph.app/textrelay/common/llm"
	"basegraph.app/textrelay/common/logger"
	"basegraph.app/textrelay/common/otel"
	"basegraph.app/textrelay/core/config"
	"basegraph.app/textrelay/internal/dedupe"
	"basegraph.app/textrelay/internal/http/handler"
	"basegraph.app/textrelay/internal/http/handler/webhook"
	"basegraph.app/textrelay/internal/http/middleware"
	httprouter "basegraph.app/textrelay/internal/http/router"
	"basegraph.app/textrelay/internal/provider/twilio"
	"basegraph.app/textrelay/internal/reply"
	"basegraph.app/textrelay/internal/workerpool"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel, cfg.Env)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "text relay starting",
		"env", cfg.Env,
		"reply_mode", cfg.Reply.Mode,
		"reply_timeout", cfg.Reply.Timeout.String(),
		"worker_pool", cfg.Reply.WorkerPool)

	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	if !cfg.Auth.Enabled() {
		slog.WarnContext(ctx, "WEBHOOK_USER/WEBHOOK_PASS not set, gated routes will reject every request")
	}
	if !cfg.Twilio.SignatureEnabled() {
		slog.WarnContext(ctx, "TWILIO_AUTH_TOKEN not set, every webhook will fail signature validation")
	}

	guard, closeGuard, err := setupGuard(ctx, cfg.Dedupe)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer closeGuard()

	pool := workerpool.New(workerpool.Config{Size: cfg.Reply.WorkerPool})

	var replier webhook.Replier
	if cfg.Reply.Mode == config.ReplyModeLLM {
		orchestrator, err := setupOrchestrator(ctx, cfg, pool)
		if err != nil {
			slog.ErrorContext(ctx, "failed to initialize reply orchestrator", "error", err)
			os.Exit(1)
		}
		replier = orchestrator
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, httprouter.Handlers{
		Status: handler.NewStatusHandler(),
		Webhook: webhook.NewTwilioWebhookHandler(
			twilio.NewSignatureVerifier(cfg.Twilio.AuthToken),
			replier,
			guard,
			webhook.TwilioWebhookConfig{
				PublicBaseURL: cfg.PublicBaseURL,
				Echo:          cfg.Reply.Mode == config.ReplyModeEcho,
			},
		),
	})

	// WriteTimeout must outlast the reply deadline or the placeholder never
	// reaches the provider.
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Reply.Timeout + 20*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.InfoContext(ctx, "shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownAfter)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
		}

		// Deferred replies still in flight get the rest of the budget.
		if err := pool.Shutdown(shutdownCtx); err != nil {
			slog.WarnContext(shutdownCtx, "worker pool did not drain, pending deferred replies are lost", "error", err)
		}

		if telemetry != nil {
			if err := telemetry.Shutdown(shutdownCtx); err != nil {
				slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.ErrorContext(ctx, "server exited with error", "error", err)
		os.Exit(1)
	}

	slog.InfoContext(ctx, "shutdown complete")
}

func setupOrchestrator(ctx context.Context, cfg config.Config, pool *workerpool.Pool) (*reply.Orchestrator, error) {
	completer, err := llm.New(llm.Config{
		APIKey:         cfg.OpenAI.APIKey,
		BaseURL:        cfg.OpenAI.BaseURL,
		Model:          cfg.OpenAI.Model,
		SystemPrompt:   cfg.OpenAI.SystemPrompt,
		MaxTokens:      cfg.OpenAI.MaxTokens,
		RequestTimeout: cfg.OpenAI.RequestTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("creating completion client: %w", err)
	}
	slog.InfoContext(ctx, "completion client ready", "model", completer.Model())

	// A nil interface, not a typed nil, tells the orchestrator delivery is off.
	var messenger reply.Messenger
	if cfg.Twilio.DeliveryEnabled() {
		m, err := twilio.NewMessenger(twilio.MessengerConfig{
			AccountSID: cfg.Twilio.AccountSID,
			AuthToken:  cfg.Twilio.AuthToken,
		}, slog.Default())
		if err != nil {
			return nil, fmt.Errorf("creating delivery client: %w", err)
		}
		messenger = m
		slog.InfoContext(ctx, "delivery client ready", "from", cfg.Twilio.FromNumber)
	} else {
		slog.WarnContext(ctx, "twilio delivery credentials incomplete, deferred replies will be dropped")
	}

	return reply.New(completer, messenger, pool, reply.Config{
		Timeout:    cfg.Reply.Timeout,
		FromNumber: cfg.Twilio.FromNumber,
	})
}

func setupGuard(ctx context.Context, cfg config.DedupeConfig) (dedupe.Guard, func(), error) {
	if !cfg.Enabled() {
		slog.InfoContext(ctx, "duplicate guard disabled (no REDIS_URL)")
		return dedupe.NewNoopGuard(), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("pinging redis: %w", err)
	}
	slog.InfoContext(ctx, "redis connected", "dedupe_ttl", cfg.TTL.String())

	return dedupe.NewRedisGuard(client, cfg.TTL, slog.Default()), func() { _ = client.Close() }, nil
}

func setupRouter(cfg config.Config, handlers httprouter.Handlers) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, handlers, httprouter.RouterConfig{
		Credentials: middleware.BasicCredentials{
			Username: cfg.Auth.Username,
			Password: cfg.Auth.Password,
		},
	})

	return router
}

const banner = `
▀█▀ █▀▀ ▀▄▀ ▀█▀   █▀█ █▀▀ █   ▄▀█ █▄█
 █  ██▄ █ █  █    █▀▄ ██▄ █▄▄ █▀█  █
`
