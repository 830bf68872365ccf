package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/publicqi/pda-directory/pkg/cloudflare"
	"github.com/publicqi/pda-directory/pkg/ratelimit"
	"github.com/publicqi/pda-directory/pkg/registry"
	"github.com/publicqi/pda-directory/pkg/router"
	"github.com/publicqi/pda-directory/pkg/server"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("failed to run: %v", err)
	}
}

func run() error {
	_ = godotenv.Load()

	showVersionFlag := flag.Bool("version", false, "show version and exit")
	verboseFlag := flag.Bool("verbose", false, "verbose mode - show debug logs")
	metricsAddrFlag := flag.String("metrics-addr", ":2112", "Address to listen on for prometheus metrics")
	listenAddrFlag := flag.String("listen-addr", ":8080", "Address to listen on for API requests")
	cacheTTLFlag := flag.Duration("pointer-cache-ttl", 30*time.Second, "How long to cache the active database pointer")
	pointerKeyFlag := flag.String("pointer-key", router.DefaultPointerKey, "KV key holding the active database pointer")

	flag.Parse()

	if *showVersionFlag {
		fmt.Printf("version: %s, commit: %s, date: %s\n", version, commit, date)
		os.Exit(0)
	}

	verbose := *verboseFlag
	log := newLogger(verbose)

	// Set up prometheus metrics server if enabled.
	if *metricsAddrFlag != "" {
		server.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", *metricsAddrFlag)
			if err != nil {
				log.Error("Failed to start prometheus metrics server listener", "error", err)
				os.Exit(1)
			}
			log.Info("Prometheus metrics server listening", "address", listener.Addr().String())
			http.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, nil); err != nil {
				log.Error("Failed to start prometheus metrics server", "error", err)
				os.Exit(1)
			}
		}()
	}

	blueDSN := os.Getenv("BLUE_DATABASE_URL")
	if blueDSN == "" {
		return fmt.Errorf("BLUE_DATABASE_URL is required")
	}
	greenDSN := os.Getenv("GREEN_DATABASE_URL")
	if greenDSN == "" {
		return fmt.Errorf("GREEN_DATABASE_URL is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	blue, err := registry.NewPostgres(ctx, log, router.DatabaseBlue, blueDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to blue database: %w", err)
	}
	defer blue.Close()
	green, err := registry.NewPostgres(ctx, log, router.DatabaseGreen, greenDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to green database: %w", err)
	}
	defer green.Close()

	for _, store := range []*registry.Postgres{blue, green} {
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate %s database: %w", store.Name(), err)
		}
	}

	kv, err := cloudflare.NewKV(
		os.Getenv("CLOUDFLARE_API_TOKEN"),
		os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
		os.Getenv("CLOUDFLARE_KV_NAMESPACE_ID"),
	)
	if err != nil {
		return fmt.Errorf("failed to create cloudflare kv client: %w", err)
	}

	dbRouter, err := router.New(router.Config{
		Logger:   log,
		Pointer:  router.NewKVPointer(kv, *pointerKeyFlag),
		Blue:     blue,
		Green:    green,
		CacheTTL: *cacheTTLFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create database router: %w", err)
	}

	var limiter ratelimit.Limiter = ratelimit.AllowAll{}
	if url := os.Getenv("RATE_LIMITER_URL"); url != "" {
		limiter = ratelimit.NewClient(url, nil)
	} else {
		log.Warn("RATE_LIMITER_URL not set, rate limiting disabled")
	}

	srv, err := server.New(log, server.Config{
		Resolver: dbRouter,
		Limiter:  limiter,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	listener, err := net.Listen("tcp", *listenAddrFlag)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	defer listener.Close()

	log.Info("listening on", "address", listener.Addr().String())
	errCh := srv.Start(ctx, cancel, listener)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		log.Info("context done, stopping")
	}
	return nil
}

func newLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				t := a.Value.Time().UTC()
				a.Value = slog.StringValue(formatRFC3339Millis(t))
			}
			if s, ok := a.Value.Any().(string); ok && s == "" {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func formatRFC3339Millis(t time.Time) string {
	t = t.UTC()
	base := t.Format("2006-01-02T15:04:05")
	ms := t.Nanosecond() / 1_000_000
	return fmt.Sprintf("%s.%03dZ", base, ms)
}
