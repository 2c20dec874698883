package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/creative-orchestrator/internal/agents"
	"github.com/example/creative-orchestrator/internal/api"
	"github.com/example/creative-orchestrator/internal/config"
	"github.com/example/creative-orchestrator/internal/models"
	"github.com/example/creative-orchestrator/internal/orchestrator"
	"github.com/example/creative-orchestrator/internal/providers/llm"
	"github.com/example/creative-orchestrator/internal/taskstore"
	"github.com/example/creative-orchestrator/internal/tools"
)

func main() {
	godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := llm.NewFromEnv(ctx)

	// The local task store backs the async proxy path. A failed open is
	// tolerated: proxy tasks degrade to "database unavailable" at query time.
	var store *taskstore.Store
	dbPath := os.Getenv("TASK_DB_PATH")
	if dbPath == "" {
		dbPath = "tasks.db"
	}
	if store, err = taskstore.Open(dbPath); err != nil {
		logger.Warn("task store unavailable", "path", dbPath, "error", err)
		store = nil
	} else {
		defer store.Close()
	}

	jobs := tools.NewJobsClient(os.Getenv("JOBS_API_URL"), os.Getenv("JOBS_API_KEY"))
	jobs.CallbackURL = os.Getenv("JOBS_CALLBACK_URL")
	proxy := tools.NewProxyClient(
		os.Getenv("PROXY_GENERATE_URL"),
		os.Getenv("PROXY_TRANSFER_URL"),
		os.Getenv("PROXY_API_KEY"),
	)

	submitter := tools.NewSubmitter(cfg.Workers.BackgroundLimit, logger)

	var records tools.RecordStore
	if store != nil {
		records = store
	}
	resolver := tools.NewResolver(jobs, records, logger,
		tools.WithPoll(cfg.Poll.MaxRetries, cfg.PollDelay(), cfg.Poll.GraceAttempts, cfg.GraceDelay()),
	)

	registry := tools.NewRegistry()
	registry.Register(&tools.TextToImage{Jobs: jobs})
	registry.Register(&tools.ImageEdit{Jobs: jobs})
	registry.Register(&tools.ImageEditProxy{Proxy: proxy, Store: store, Submit: submitter, Logger: logger})
	registry.Register(&tools.RemoveWatermark{Jobs: jobs})
	registry.Register(&tools.TextToVideo{Jobs: jobs})
	registry.Register(&tools.FirstFrameToVideo{Jobs: jobs})
	registry.Register(&tools.GetTaskStatus{Resolver: resolver})
	registry.Register(&tools.UpdateGlobalConfig{})

	catalog := tools.NewCatalog(cfg.Catalog)
	loader := &orchestrator.Loader{Resolver: resolver, Logger: logger}

	newExecutor := func(role string) *agents.Executor {
		return &agents.Executor{
			Role:               role,
			Client:             client,
			Registry:           registry,
			Catalog:            catalog,
			Prepare:            loader,
			Logger:             logger,
			TerminateOnMissing: cfg.Policy.MissingCapabilityTerminates,
		}
	}

	hub := orchestrator.NewHub()
	driver := orchestrator.NewDriver(hub, logger, cfg.Poll.MaxTurnIterationsCap, cfg.Policy.PreserveOnPlainText,
		&agents.Coordinator{Client: client},
		&agents.Planner{Client: client, Catalog: catalog, Prepare: loader, Logger: logger},
		&agents.Supervisor{Client: client, Logger: logger},
		newExecutor(models.RoleImageExecutor),
		newExecutor(models.RoleVideoExecutor),
		newExecutor(models.RoleGeneralExecutor),
		&agents.Reporter{Client: client},
	)

	mux := http.NewServeMux()
	api.NewServer(driver, hub, logger).RegisterRoutes(mux)

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: cors(mux)}
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", "error", err)
	}
	// Let in-flight proxy generations write their results before closing.
	submitter.Wait()
}

// simple CORS middleware for local dev
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
