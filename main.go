package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"GoEvolveAI/app/canvas"
	"GoEvolveAI/app/clients"
	"GoEvolveAI/app/configs"
	"GoEvolveAI/app/iteration"
	"GoEvolveAI/app/logging"
	"GoEvolveAI/app/queue"
	"GoEvolveAI/app/recognizer"
	"GoEvolveAI/app/server"
)

func main() {
	if err := run(); err != nil {
		logging.Log("❌ Fatal error", slog.LevelError, "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := configs.Load("")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		otelShutdown, err := logging.SetupOTelSDK(ctx)
		if err != nil {
			return err
		}
		logging.UseOTel()
		defer func() {
			// Flush spans, metrics and logs before exiting
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelShutdown(shutdownCtx); err != nil {
				slog.Error("OTel shutdown error", "error", err)
			}
		}()
	}

	store, err := cfg.OpenStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	generator, err := cfg.BuildGenerator()
	if err != nil {
		return err
	}

	tasks := queue.New(queue.WithTaskTimeout(cfg.Recognizer.TaskTimeout))
	digits := recognizer.NewService(tasks, recognizer.NewSoftmaxModel(cfg.Recognizer.LearningRate))
	pixels := canvas.New(cfg.Canvas)

	clientRegistry := clients.NewRegistry()
	defer func() { _ = clientRegistry.Close() }()
	coordinator := iteration.NewCoordinator(store, generator, cfg.Iteration, iteration.WithNotifier(clientRegistry))
	if err := cfg.InitializeClients(clientRegistry, coordinator); err != nil {
		return err
	}

	api := server.NewAPIServer(digits, pixels, coordinator, store)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.Run(gctx, cfg.Server.Port, cfg.Server.ShutdownTimeout)
	})
	g.Go(func() error {
		return coordinator.Run(gctx)
	})
	err = g.Wait()

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if qerr := tasks.Close(drainCtx); qerr != nil {
		err = errors.Join(err, qerr)
	}
	logging.Log("👋 Bye", slog.LevelInfo)
	return err
}
