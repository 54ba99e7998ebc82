package cmd

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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	inhttp "github.com/aegis-authz/aegis/internal/adapter/inbound/http"
	auditfile "github.com/aegis-authz/aegis/internal/adapter/outbound/audit"
	"github.com/aegis-authz/aegis/internal/adapter/outbound/memory"
	"github.com/aegis-authz/aegis/internal/adapter/outbound/rulefile"
	"github.com/aegis-authz/aegis/internal/adapter/outbound/sqlite"
	"github.com/aegis-authz/aegis/internal/config"
	"github.com/aegis-authz/aegis/internal/domain/auth"
	"github.com/aegis-authz/aegis/internal/domain/policy"
	"github.com/aegis-authz/aegis/internal/service"
	"github.com/aegis-authz/aegis/pkg/rules"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the policy HTTP API",
	Long: `Start the HTTP API serving rule evaluation and rule management.

Rules are loaded from the configured source (a YAML rule file or an
SQLite database). Endpoints:

  POST   /v1/evaluate      evaluate a rule
  GET    /v1/rules         list rules
  GET    /v1/rules/{name}  fetch a rule
  PUT    /v1/rules/{name}  create or update a rule
  DELETE /v1/rules/{name}  delete a rule
  GET    /healthz          health check
  GET    /metrics          Prometheus metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		return runServer(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// openStore builds the rule store named by the config. A file source is
// loaded into an in-memory store; API edits then live for the process
// lifetime only, while an sqlite source persists them.
func openStore(cfg *config.Config) (policy.RuleStore, func() error, error) {
	switch cfg.Rules.Source {
	case "sqlite":
		s, err := sqlite.Open(cfg.Rules.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		store := memory.NewRuleStore()
		defs, err := rulefile.Load(cfg.Rules.Path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				// Serving with no rules is valid; they can be added over
				// the API.
				return store, func() error { return nil }, nil
			}
			return nil, nil, err
		}
		for i := range defs {
			if err := store.SaveRule(context.Background(), &defs[i]); err != nil {
				return nil, nil, err
			}
		}
		return store, func() error { return nil }, nil
	}
}

// initTracing installs the stdout trace exporter. Returns the shutdown
// function.
func initTracing(ctx context.Context) (func(context.Context) error, error) {
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

func runServer(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg.Server.LogLevel)
	if used := config.FileUsed(); used != "" {
		logger.Info("config loaded", "file", used)
	}

	if cfg.Telemetry.TracingEnabled {
		shutdown, err := initTracing(ctx)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var engineOpts []rules.Option
	if cfg.Engine.EntrypointGroup != "" {
		engineOpts = append(engineOpts, rules.WithGroup(cfg.Engine.EntrypointGroup))
	}
	if cfg.Engine.InstructionBudget > 0 {
		engineOpts = append(engineOpts, rules.WithInstructionBudget(cfg.Engine.InstructionBudget))
	}

	svc, err := service.NewEvaluationService(ctx, store, logger,
		service.WithCacheSize(cfg.Engine.CacheSize),
		service.WithEngineOptions(engineOpts...))
	if err != nil {
		return err
	}

	keys := make(map[string]string, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		keys[k.Name] = k.KeyHash
	}
	keyring := auth.NewKeyring(keys)
	if keyring.Empty() {
		logger.Warn("no API keys configured; the API is unauthenticated")
	}

	var handlerOpts []inhttp.HandlerOption
	if cfg.Audit.Path != "" {
		auditStore, err := auditfile.NewFileStore(cfg.Audit.Path, logger)
		if err != nil {
			return err
		}
		defer auditStore.Close()
		handlerOpts = append(handlerOpts, inhttp.WithAuditStore(auditStore))
	}

	reg := prometheus.NewRegistry()
	handler := inhttp.NewHandler(svc, keyring, logger, reg, handlerOpts...)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("policy server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
