package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	httpadapter "github.com/PabloGalante/coopleo-agent/internal/adapters/http"
	"github.com/PabloGalante/coopleo-agent/internal/adapters/llm"
	firestorestore "github.com/PabloGalante/coopleo-agent/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/coopleo-agent/internal/adapters/storage/memory"
	"github.com/PabloGalante/coopleo-agent/internal/adapters/storage/sqlstore"
	"github.com/PabloGalante/coopleo-agent/internal/app/agentflow"
	"github.com/PabloGalante/coopleo-agent/internal/app/conversation"
	"github.com/PabloGalante/coopleo-agent/internal/config"
	"github.com/PabloGalante/coopleo-agent/internal/domain"
	"github.com/PabloGalante/coopleo-agent/internal/observability"
)

var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.NewViper()
	var configFile string

	serveRun := func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context(), v, configFile)
	}

	// serve is the default command
	root := &cobra.Command{
		Use:          "coopleo-api",
		Short:        "Coopleo conversational API",
		SilenceUsage: true,
		RunE:         serveRun,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a config file (yaml, json or toml)")
	root.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")
	root.PersistentFlags().String("port", "8080", "HTTP listen port")
	_ = v.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("port", root.PersistentFlags().Lookup("port"))

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE:  serveRun,
	}

	root.AddCommand(serve)
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})

	return root
}

func runServe(ctx context.Context, v *viper.Viper, configFile string) error {
	// Missing credentials fail here, before anything listens.
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return err
	}

	observability.Init(cfg.LogLevel)
	log := observability.Logger()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// LLM
	policy := llm.RetryPolicy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
		Multiplier:      cfg.Retry.Multiplier,
		AttemptTimeout:  cfg.LLM.Timeout,
	}
	factory := llm.NewFactory(llm.ProviderConfig{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		GCPProject:  cfg.LLM.GCPProject,
		GCPLocation: cfg.LLM.GCPLocation,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})

	llmClient, err := llm.Connect(ctx, factory, policy)
	if err != nil {
		// keep serving; chat requests answer ServiceUnavailable
		log.Error("model client unavailable", "provider", cfg.LLM.Provider, "error", err)
	} else {
		log.Info("model client ready", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
	}

	// Storage
	recorder, closeStore, err := openRecorder(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStore()

	sessions := memstore.NewSessionStore(memstore.SessionConfig{
		TTL:         cfg.Session.TTL,
		MaxSessions: cfg.Session.MaxSessions,
	}, time.Now)

	// Conversation Service
	composer := llm.NewComposer(llm.ComposerConfig{
		Locale:           domain.Locale(cfg.Conversation.Locale),
		ClosingThreshold: cfg.Conversation.ClosingThreshold,
		HistoryWindow:    cfg.Conversation.HistoryWindow,
	})
	suggestions := agentflow.DefaultSuggesterConfig()
	suggestions.Enabled = cfg.Suggestions.Enabled
	suggestions.MinWords = cfg.Suggestions.MinWords
	suggestions.MaxWords = cfg.Suggestions.MaxWords

	svc := conversation.NewService(llmClient, sessions, recorder, composer, conversation.Config{
		NameCapture:     cfg.Conversation.NameCapture,
		SingleParagraph: cfg.Conversation.SingleParagraph,
		RequireQuestion: cfg.Conversation.RequireQuestion,
		PersistTimeout:  cfg.Conversation.PersistTimeout,
		Suggestions:     suggestions,
	})

	// HTTP server
	handler := httpadapter.NewServer(svc, httpadapter.Config{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		RateLimit:      cfg.HTTP.RateLimit,
		RateBurst:      cfg.HTTP.RateBurst,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Coopleo API listening", "port", cfg.Port, "locale", cfg.Conversation.Locale, "storage", cfg.Storage.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return sessions.Janitor(gctx, cfg.Session.SweepInterval)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown failed", "error", err)
		}
		if err := svc.Close(shutdownCtx); err != nil {
			log.Error("pending exchanges were not persisted", "error", err)
		}
		return nil
	})

	return g.Wait()
}

// openRecorder builds the exchange recorder for the configured backend.
func openRecorder(ctx context.Context, cfg config.StorageConfig) (domain.ExchangeRecorder, func(), error) {
	log := observability.Logger().With("backend", cfg.Backend)

	switch cfg.Backend {
	case "firestore":
		log.Info("using Firestore storage", "project", cfg.GCPProject)
		store, err := firestorestore.NewStore(ctx, cfg.GCPProject)
		if err != nil {
			return nil, nil, fmt.Errorf("initializing Firestore store: %w", err)
		}
		return store, func() { _ = store.Close() }, nil

	case "postgres", "sqlite":
		dialect, err := sqlstore.DialectFor(cfg.Backend)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using SQL storage")
		store, err := sqlstore.Open(ctx, dialect, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("initializing %s store: %w", cfg.Backend, err)
		}
		return store, func() { _ = store.Close() }, nil

	default:
		log.Info("using in-memory storage")
		return memstore.NewExchangeStore(), func() {}, nil
	}
}
