package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"golang.org/x/time/rate"

	"github.com/pthm/hxnav"
	"github.com/pthm/hxnav/internal/config"
	"github.com/pthm/hxnav/internal/demo"
)

// devSecret signs cookies when running in dev mode without configured
// secrets, so sessions work out of the box.
const devSecret = "hxnav-dev-secret"

// newRouter builds the server's HTTP handler: operational endpoints plus the
// demo application behind the hxnav dispatcher.
func newRouter(cfg *config.Config, logger *slog.Logger) (http.Handler, error) {
	secrets := cfg.CookieSecrets
	if len(secrets) == 0 && cfg.Dev {
		logger.Warn("no cookie secrets configured, using the dev secret")
		secrets = []string{devSecret}
	}
	keyring := hxnav.NewKeyring(secrets...)

	var renderer hxnav.Renderer = demo.New(keyring)
	if cfg.Cache.Enabled {
		renderer = hxnav.NewCachedRenderer(renderer, hxnav.CacheOptions{
			TTL:  cfg.Cache.TTL,
			Vary: cfg.Cache.Vary,
		})
	}

	opts := []hxnav.Option{
		hxnav.WithDev(cfg.Dev),
		hxnav.WithLogger(logger),
		hxnav.WithCompatibilityKey(cfg.CompatibilityKey),
	}
	if cfg.Shell != "" {
		shell, err := os.ReadFile(cfg.Shell)
		if err != nil {
			return nil, fmt.Errorf("reading shell: %w", err)
		}
		opts = append(opts, hxnav.WithShell(string(shell)))
	}

	handler := hxnav.NewHandler(hxnav.New(renderer, opts...), &hxnav.Normalizer{
		Keyring:      keyring,
		MaxBodyBytes: cfg.MaxBodyBytes,
		Logger:       logger,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Group(func(r chi.Router) {
		if cfg.RateLimit.RPS > 0 {
			burst := cfg.RateLimit.Burst
			if burst == 0 {
				burst = 1
			}
			r.Use(limit(rate.NewLimiter(rate.Limit(cfg.RateLimit.RPS), burst)))
		}
		r.Handle("/*", handler)
	})

	return r, nil
}

// limit rejects requests with 429 once the limiter's budget is spent.
func limit(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				w.Header().Set("Retry-After", "1")
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// setupTracing installs a stdout span exporter as the global tracer provider
// and returns its shutdown function.
func setupTracing(ctx context.Context) (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String("hxnav"),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}
