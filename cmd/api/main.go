// Package main is the entrypoint for the Rollcall API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/rollcall/rollcall/internal/auth"
	"github.com/rollcall/rollcall/internal/cache"
	"github.com/rollcall/rollcall/internal/config"
	"github.com/rollcall/rollcall/internal/handler"
	"github.com/rollcall/rollcall/internal/mailer"
	"github.com/rollcall/rollcall/internal/metrics"
	"github.com/rollcall/rollcall/internal/middleware"
	"github.com/rollcall/rollcall/internal/repository"
	"github.com/rollcall/rollcall/internal/server"
	"github.com/rollcall/rollcall/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	repo, err := repository.New(ctx, cfg.DatabaseURL, repository.Options{
		MaxConns:       cfg.DBMaxConns,
		MinConns:       cfg.DBMinConns,
		IsolationLevel: cfg.DBIsolationLevel,
	})
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	if cfg.DBAutoMigrate {
		if err := repo.Migrate(ctx); err != nil {
			logger.Error("failed to apply migrations", slog.String("error", sanitizeError(err, cfg.DatabaseURL)))
			os.Exit(1)
		}
		logger.Info("database migrations applied")
	}

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTAlgorithm)
	if err != nil {
		logger.Error("failed to initialize token manager", "error", err)
		os.Exit(1)
	}

	metricsRecorder := metrics.NewInMemory()
	publisher := mailer.NewPublisher(cacheClient.Client(), logger, metricsRecorder)

	userService := service.NewUserService(repo, publisher, logger, metricsRecorder)
	groupService := service.NewGroupService(repo, logger, metricsRecorder)

	r := handler.NewRouter(handler.RouterConfig{
		Health: handler.NewHealthHandler(logger,
			handler.HealthCheck{Name: "postgres", Checker: repo},
			handler.HealthCheck{Name: "redis", Checker: cacheClient},
		),
		Metrics: handler.NewMetricsHandler(metricsRecorder),
		Auth: handler.NewAuthHandler(userService, tokens, handler.CookieConfig{
			Name:     cfg.CookieName,
			Secure:   cfg.CookieSecure,
			HTTPOnly: cfg.CookieHTTPOnly,
			SameSite: cfg.CookieSameSiteMode(),
			Lifespan: cfg.CookieLifespan(),
		}, logger),
		Users:  handler.NewUserHandler(userService, logger),
		Groups: handler.NewGroupHandler(groupService, logger),
		Global: globalMiddleware(cfg, logger),
		RequireUser: middleware.Auth(middleware.AuthConfig{
			Logger:     logger,
			Tokens:     tokens,
			Users:      userService,
			CookieName: cfg.CookieName,
		}),
		AuthRateLimit: middleware.RateLimitIP(middleware.RateLimitConfig{
			Logger:  logger,
			Limiter: cacheClient,
			Enabled: cfg.RateLimitAuthEnabled,
			Scope:   "auth",
			RPS:     cfg.RateLimitAuthRPS,
			Burst:   cfg.RateLimitAuthBurst,
		}),
	})

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	if cfg.MailerEnabled {
		sender, err := newSender(cfg, logger)
		if err != nil {
			logger.Error("failed to initialize mail sender", "error", err)
			os.Exit(1)
		}
		worker := mailer.NewWorker(
			cacheClient.Client(),
			tokens,
			sender,
			mailer.WorkerConfig{
				BaseURL:     cfg.BaseURL,
				From:        cfg.MailerFrom,
				TokenTTL:    cfg.VerifyEmailTokenTTL,
				SendTimeout: cfg.MailerSendTimeout,
			},
			logger,
			mailer.NewConsumerID(),
			metricsRecorder,
		)
		go func() {
			if err := worker.Run(ctx); err != nil {
				logger.Error("mailer worker stopped", "error", err)
			}
		}()
		srv.OnShutdown("mailer-worker", worker.Shutdown)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// globalMiddleware is the chain applied to every route, outermost first.
func globalMiddleware(cfg *config.Config, logger *slog.Logger) []handler.Middleware {
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	return []handler.Middleware{
		chimiddleware.RealIP,
		middleware.RequestID,
		middleware.Logger(logger),
		middleware.Recoverer(logger),
		middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}),
		middleware.CORS(corsCfg),
		middleware.MaxBodySize(cfg.MaxRequestBodySize),
		chimiddleware.Timeout(cfg.RequestTimeout),
	}
}

// newSender picks SMTP delivery when a relay is configured and logs otherwise.
// Message bodies carry live tokens, so they are only logged in development.
func newSender(cfg *config.Config, logger *slog.Logger) (mailer.Sender, error) {
	if cfg.SMTPHost != "" {
		return mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			Timeout:  cfg.SMTPTimeout,
		})
	}
	return mailer.NewLogSender(logger, cfg.IsDevelopment()), nil
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
