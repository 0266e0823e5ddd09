package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flowershow/contentsync/internal/common/logtrace"
	"github.com/flowershow/contentsync/internal/common/ratelimit"
	"github.com/flowershow/contentsync/internal/syncsrv/apis"
	"github.com/flowershow/contentsync/internal/syncsrv/config"
	"github.com/flowershow/contentsync/internal/syncsrv/db"
	"github.com/flowershow/contentsync/internal/syncsrv/db/dbmanager"
	"github.com/flowershow/contentsync/internal/syncsrv/objectstore"
	"github.com/flowershow/contentsync/internal/syncsrv/orchestrator"
	"github.com/flowershow/contentsync/internal/syncsrv/runlock"
	"github.com/flowershow/contentsync/internal/syncsrv/searchindex"
	"github.com/flowershow/contentsync/internal/syncsrv/server"
	"github.com/flowershow/contentsync/internal/syncsrv/source"
	"github.com/flowershow/contentsync/internal/syncsrv/trigger"
)

type cmdoptions struct {
	configFile *string
}

func main() {
	opt := parseFlags()

	if err := config.LoadConfig(*opt.configFile); err != nil {
		logtrace.InitLogger("info", false)
		log.Error().Str("config_file", *opt.configFile).Err(err).Msg("unable to load config file")
		os.Exit(1)
	}
	cfg := config.Config()
	logtrace.InitLogger(cfg.LogLevel, cfg.LogPretty)
	slog := log.With().Str("state", "init").Logger()
	slog.Info().Str("config_file", *opt.configFile).Msg("config loaded")

	ctx := slog.WithContext(context.Background())
	if err := run(ctx, cfg); err != nil {
		slog.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.ConfigParam) error {
	store, pool, err := db.NewStore(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("unable to open store: %w", err)
	}
	defer store.Close(ctx)

	var (
		backend objectstore.Backend
		index   searchindex.Index
		locker  runlock.Locker
	)
	if pool != nil {
		defer pool.Close()
		backend, index, locker = postgresComponents(pool, cfg)
	} else {
		backend = objectstore.NewMemoryBackend()
		index = searchindex.NewMemoryIndex()
		locker = runlock.NewMemoryLocker()
	}

	github := source.NewGitHub(source.GitHubOptions{
		APIURL:        cfg.GitHub.APIURL,
		Token:         cfg.GitHub.Token,
		Timeout:       config.Duration(cfg.GitHub.Timeout, 30*time.Second),
		RetryAttempts: cfg.GitHub.RetryAttempts,
		MaxFiles:      cfg.Sync.MaxFiles,
		MaxFileSize:   cfg.Sync.MaxFileSize,
	})
	sources := &source.Mux{
		GitHub:   github,
		Uploaded: source.NewUploaded(backend, store),
	}

	orch := orchestrator.New(store, sources, backend, index, locker, orchestrator.Options{
		FileConcurrency: cfg.Sync.FileConcurrency,
		StaleAfter:      config.Duration(cfg.Sync.StaleAfter, 30*time.Minute),
	})
	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go orch.RunJanitor(janitorCtx, config.Duration(cfg.Sync.JanitorInterval, 5*time.Minute))

	var limiter ratelimit.Limiter = ratelimit.Unlimited{}
	if cfg.RateLimit.Enabled && cfg.RateLimit.Requests > 0 {
		kl := ratelimit.NewKeyedLimiter(ratelimit.Config{
			Requests: cfg.RateLimit.Requests,
			Window:   config.Duration(cfg.RateLimit.Window, time.Hour),
		})
		defer kl.Stop()
		limiter = kl
	}

	dispatcher := trigger.New(orch, store, backend, limiter, trigger.Options{
		MaxFiles:     cfg.Sync.MaxFiles,
		MaxFileSize:  cfg.Sync.MaxFileSize,
		MaxTotalSize: cfg.Sync.MaxTotalSize,
	})
	presignTTL := config.Duration(cfg.Storage.PresignTTL, time.Hour)
	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = "http://localhost:" + cfg.ServerPort
	}
	objects := objectstore.New(backend, objectstore.NewPresigner(cfg.Storage.PresignSecret, publicURL))
	handlers := apis.New(dispatcher, orch, store, objects, index, apis.Options{
		WebhookSecret: cfg.GitHub.WebhookSecret,
		PresignTTL:    presignTTL,
		MaxBodySize:   maxBodySize(cfg.Sync.MaxTotalSize),
	})

	s, err := server.CreateNewServer(handlers)
	if err != nil {
		return fmt.Errorf("unable to create server: %w", err)
	}
	s.MountHandlers()
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Ctx(ctx).Info().Str("addr", srv.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case sig := <-sigCh:
		log.Ctx(ctx).Info().Str("signal", sig.String()).Msg("shutting down")
	}

	dispatcher.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("http shutdown")
	}
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("background syncs still running at exit")
	}
	return nil
}

func postgresComponents(pool dbmanager.Pool, cfg *config.ConfigParam) (objectstore.Backend, searchindex.Index, runlock.Locker) {
	return objectstore.NewPostgresBackend(pool, cfg.Storage.Compress),
		searchindex.NewPostgresIndex(pool),
		runlock.NewPostgresLocker(pool.DB())
}

// maxBodySize allows for the base64 expansion of a full publish. Zero keeps
// the handler default.
func maxBodySize(maxTotal int64) int64 {
	if maxTotal <= 0 {
		return 0
	}
	return maxTotal + maxTotal/3 + 1<<20
}

func parseFlags() cmdoptions {
	var opt cmdoptions
	opt.configFile = flag.String("config", "", "Path to the TOML config file. Built-in defaults apply when empty")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options]\n\n", os.Args[0])
		fmt.Println("Options:")
		flag.PrintDefaults()
	}
	flag.Parse()
	return opt
}
