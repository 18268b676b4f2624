// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kordes/flowstudio/internal/agent"
	"github.com/kordes/flowstudio/internal/authoring"
	"github.com/kordes/flowstudio/internal/config"
	"github.com/kordes/flowstudio/internal/domain"
	"github.com/kordes/flowstudio/internal/logging"
	"github.com/kordes/flowstudio/internal/persistence/postgres"
	"github.com/kordes/flowstudio/internal/registry"
	"github.com/kordes/flowstudio/internal/repository"
	"github.com/kordes/flowstudio/internal/seed"
	"github.com/kordes/flowstudio/internal/simulator"
	httptransport "github.com/kordes/flowstudio/internal/transport/http"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// executionStore is the full execution-log surface: the transport reads it,
// the authoring session and the seeder write to it.
type executionStore interface {
	httptransport.ExecutionViewer
	Record(ctx context.Context, rec domain.ExecutionRecord) error
}

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	logger := logging.NewLogger(cfg.Env)

	var (
		workflows  httptransport.WorkflowStore
		executions executionStore
	)

	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connect failed: %v", err)
		}
		defer pool.Close()

		if cfg.AutoMigrate {
			if err := postgres.EnsureSchema(ctx, pool, logging.Named(logger, "postgres")); err != nil {
				log.Fatalf("schema bootstrap failed: %v", err)
			}
		}

		workflows = postgres.NewWorkflowStore(pool, logging.Named(logger, "workflows"))
		executions = postgres.NewExecutionStore(pool, logging.Named(logger, "executions"))
		logger.Info("using postgres storage")
	} else {
		workflows = repository.NewWorkflowRepository(logging.Named(logger, "workflows"))
		executions = repository.NewExecutionLogStore(logging.Named(logger, "executions"))
		logger.Info("using in-memory storage")
	}

	if cfg.SeedDemo {
		if err := seed.Load(ctx, workflows, executions, logging.Named(logger, "seed")); err != nil {
			logger.Error("demo seed failed", "error", err)
		}
	}

	catalog := registry.New()

	var interpreter authoring.Interpreter
	if cfg.AgentURL != "" {
		interpreter = agent.NewClient(agent.Deps{
			BaseURL: cfg.AgentURL,
			AgentID: cfg.AgentID,
			Logger:  logging.Named(logger, "agent"),
		})
	} else {
		logger.Info("no intent interpreter configured, authoring falls back to manual flow")
	}

	sim := simulator.New(simulator.Deps{
		Registry:  catalog,
		Logger:    logging.Named(logger, "simulator"),
		StepDelay: cfg.StepDelay,
	})

	sessions := authoring.NewManager(authoring.Deps{
		Catalog:     catalog,
		Interpreter: interpreter,
		Simulator:   sim,
		Workflows:   workflows,
		Executions:  executions,
		Logger:      logging.Named(logger, "authoring"),
	})

	handler := httptransport.NewRouter(httptransport.Deps{
		Workflows:  workflows,
		Executions: executions,
		Catalog:    catalog,
		Sessions:   sessions,
		Logger:     logging.Named(logger, "http"),
		Version:    Version,
		Commit:     Commit,
		BuildDate:  BuildDate,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api listening",
			"addr", cfg.HTTPAddr,
			"version", Version,
			"commit", Commit,
			"build_date", BuildDate,
		)

		if err := srv.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	sessions.Close()

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
}
