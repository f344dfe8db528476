package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pthm/hxnav/internal/config"
	"github.com/pthm/hxnav/lib/cookie"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "serve":
		if err := runServe(args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "sign":
		if err := runSign(args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "unsign":
		if err := runUnsign(args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("hxnav version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`hxnav - page rendering dispatcher with in-place navigation payloads

Usage:
  hxnav <command> [arguments]

Commands:
  serve [-config file]          Serve the demo application
  sign -secret S value          Sign a cookie value
  unsign -secret S signed       Verify a signed cookie value and print it
  version                       Print version
  help                          Show this help

Configuration is read from the YAML file given with -config and from
HXNAV_* environment variables (HXNAV_ADDR, HXNAV_DEV, HXNAV_COOKIE_SECRETS,
HXNAV_CACHE_ENABLED, ...). unsign accepts -secret more than once to check
rotated secrets.

Examples:
  hxnav serve -config hxnav.yaml
  HXNAV_DEV=true hxnav serve
  hxnav sign -secret s3cret user=42`)
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger := cfg.Logger(os.Stderr)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Trace {
		shutdown, err := setupTracing(ctx)
		if err != nil {
			return err
		}
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			if err := shutdown(sctx); err != nil {
				logger.Error("tracer shutdown", "error", err)
			}
		}()
	}

	router, err := newRouter(cfg, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Addr, "dev", cfg.Dev, "cache", cfg.Cache.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// secretList is a flag that may be given more than once.
type secretList []string

func (s *secretList) String() string { return strings.Join(*s, ",") }

func (s *secretList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func runSign(args []string) error {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	var secrets secretList
	fs.Var(&secrets, "secret", "signing secret (the first one is used)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("sign: expected exactly one value")
	}
	signed, err := cookie.NewKeyring(secrets...).Sign(fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Println(signed)
	return nil
}

func runUnsign(args []string) error {
	fs := flag.NewFlagSet("unsign", flag.ContinueOnError)
	var secrets secretList
	fs.Var(&secrets, "secret", "verification secret (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("unsign: expected exactly one signed value")
	}
	value, err := cookie.NewKeyring(secrets...).Unsign(fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Println(value)
	return nil
}
