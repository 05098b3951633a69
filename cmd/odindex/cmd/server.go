package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/vvbbnn00/onedrive-index/api"
	"github.com/vvbbnn00/onedrive-index/auth"
	"github.com/vvbbnn00/onedrive-index/config"
	"github.com/vvbbnn00/onedrive-index/drive"
	"github.com/vvbbnn00/onedrive-index/kv"
	boltstore "github.com/vvbbnn00/onedrive-index/kv/bolt"
	"github.com/vvbbnn00/onedrive-index/kv/memory"
	"github.com/vvbbnn00/onedrive-index/sitemap"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the file index server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		logger := newLogger(cfg.Logging)

		store, err := openStore(cfg.KV)
		if err != nil {
			return fmt.Errorf("opening kv store: %w", err)
		}
		defer store.Close()

		cache := kv.WithPrefix(store, cfg.KV.Prefix+"_cache:")
		sessionStore := kv.WithPrefix(store, cfg.KV.Prefix+"_session:")
		tokenStore := kv.WithPrefix(store, cfg.KV.Prefix)

		drv := drive.NewClient(cfg.Drive.APIEndpoint, drive.NewKVTokenSource(tokenStore),
			drive.WithBaseDirectory(cfg.Site.BaseDirectory),
			drive.WithHTTPClient(&http.Client{Timeout: cfg.Drive.Timeout}),
			drive.WithLogger(logger),
		)

		classifier := auth.NewClassifier(cfg.Site.ProtectedRoutes)
		resolver := auth.NewResolver(cache, drv, logger)
		sessions := auth.NewSessions(sessionStore, logger)
		codec, err := auth.NewCodec(cfg.Auth.SecretKey)
		if err != nil {
			return fmt.Errorf("initialising token codec: %w", err)
		}
		idCipher, err := auth.NewIDCipher(cfg.Auth.SecretKey)
		if err != nil {
			return fmt.Errorf("initialising id cipher: %w", err)
		}
		generator := sitemap.NewGenerator(drv, classifier, cache, logger)

		a := api.New(drv, classifier, resolver, sessions, codec, idCipher,
			api.WithLogger(logger),
			api.WithCacheControl(cfg.Site.CacheControlHeader),
			api.WithMaxItems(cfg.Site.MaxItems),
			api.WithSitemap(generator),
		)
		defer a.Close()

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)
		r.Use(api.SecurityHeaders)
		r.Mount("/", a.Router())

		server := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		useTLS := cfg.Server.TLSCert != "" && cfg.Server.TLSKey != ""
		if useTLS {
			cert, err := tls.LoadX509KeyPair(cfg.Server.TLSCert, cfg.Server.TLSKey)
			if err != nil {
				return fmt.Errorf("loading TLS key pair: %w", err)
			}
			server.TLSConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			var err error
			if useTLS {
				err = server.ListenAndServeTLS("", "")
			} else {
				err = server.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		logger.Info("server started", "addr", cfg.Server.Addr, "tls", useTLS,
			"kv_backend", cfg.KV.Backend, "protected_routes", len(cfg.Site.ProtectedRoutes))

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("shutting down", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func openStore(cfg config.KVConfig) (kv.Store, error) {
	switch cfg.Backend {
	case "bolt":
		return boltstore.NewStoreFromFile(cfg.Path, nil)
	default:
		return memory.NewStore(), nil
	}
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
