package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/hfi/authproxy/internal/audit"
	"github.com/hfi/authproxy/internal/config"
	"github.com/hfi/authproxy/internal/mapping"
	"github.com/hfi/authproxy/internal/metrics"
	"github.com/hfi/authproxy/internal/mgmt"
	"github.com/hfi/authproxy/internal/resolver"
	"github.com/hfi/authproxy/internal/server"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("authproxy %s\n", Version)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		fmt.Printf("Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	configPath := pflag.StringP("config", "c", "", "config file path (default: $CONFIG_PATH or ./config.yaml)")
	verbose := pflag.BoolP("verbose", "v", false, "verbose output")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg.Logging.Level, *verbose)

	store, err := newStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open mapping store")
	}
	defer store.Close()
	metrics.MappingsTotal.Set(float64(store.Len()))

	auditLog, err := audit.NewLogger(&audit.Config{
		Enabled: cfg.Logging.Audit.Enabled,
		Output:  cfg.Logging.Audit.Output,
		Format:  cfg.Logging.Audit.Format,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open audit log")
	}

	res := resolver.New(store, resolver.NewCache(), resolver.NewHTTPFetcher(cfg.Fetch.Timeout))
	srv := server.New(cfg.Server, cfg.Admin.Users, store, res, auditLog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() { errCh <- srv.Start() }()

	var mgmtSrv *mgmt.Server
	if cfg.Mgmt.Enabled {
		mgmtSrv = mgmt.New(cfg.Mgmt.Listen, Version)
		if pinger, ok := store.(interface{ Ping() error }); ok {
			mgmtSrv.RegisterHealthCheck("storage", func() (bool, string) {
				if err := pinger.Ping(); err != nil {
					return false, err.Error()
				}
				return true, ""
			})
		}
		go func() { errCh <- mgmtSrv.Start() }()
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		log.Error().Err(err).Msg("server exited")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("public server shutdown failed")
	}
	if mgmtSrv != nil {
		if err := mgmtSrv.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("management server shutdown failed")
		}
	}
}

func setupLogging(level string, verbose bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if verbose {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func newStore(cfg *config.Config) (mapping.Store, error) {
	switch cfg.Storage.Type {
	case "file":
		return mapping.NewFileStore(cfg.Storage.Path)
	case "memory":
		return mapping.NewMemoryStore(), nil
	case "redis":
		return mapping.NewRedisStore(cfg.Storage.Redis.Address, cfg.Storage.Redis.Password, cfg.Storage.Redis.DB)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}
