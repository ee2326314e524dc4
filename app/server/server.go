// Package server exposes the recognizer, the canvas and the evolving program over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"

	"GoEvolveAI/app/canvas"
	"GoEvolveAI/app/iteration"
	"GoEvolveAI/app/logging"
	"GoEvolveAI/app/recognizer"
	"GoEvolveAI/app/storage"
)

type Recognizer interface {
	Train(digit int, imageData string) (uuid.UUID, error)
	TrainBatch(samples []recognizer.TrainingSample) ([]uuid.UUID, error)
	Guess(ctx context.Context, imageData string) (recognizer.Prediction, error)
	Status() recognizer.Status
}

type Program interface {
	SubmitInput(ctx context.Context, profileID, text string) (storage.Input, error)
	Tick(ctx context.Context) (iteration.Outcome, error)
	Reset(ctx context.Context) error
	Pin(ctx context.Context, id int64) error
	Snapshot() iteration.Snapshot
	History(ctx context.Context) (string, error)
}

// APIServer holds dependencies for the HTTP handlers
type APIServer struct {
	recognizer Recognizer
	canvas     *canvas.Canvas
	program    Program
	store      storage.Interface
	validate   *validator.Validate
	artifacts  singleflight.Group
	mux        *http.ServeMux
}

func NewAPIServer(rec Recognizer, cv *canvas.Canvas, program Program, store storage.Interface) *APIServer {
	s := &APIServer{
		recognizer: rec,
		canvas:     cv,
		program:    program,
		store:      store,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		mux:        http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *APIServer) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleRoot)

	s.mux.HandleFunc("POST /train", s.handleTrain)
	s.mux.HandleFunc("POST /train-batch", s.handleTrainBatch)
	s.mux.HandleFunc("POST /guess", s.handleGuess)
	s.mux.HandleFunc("GET /training-status", s.handleTrainingStatus)

	s.mux.HandleFunc("GET /api/canvas", s.handleCanvas)
	s.mux.HandleFunc("POST /api/pixel", s.handlePixel)

	s.mux.HandleFunc("POST /api/initial", s.handleCreateIdea)
	s.mux.HandleFunc("GET /api/initial", s.handleLatestIdea)
	s.mux.HandleFunc("POST /api/inputs", s.handleCreateInput)
	s.mux.HandleFunc("GET /api/iterations", s.handleIterations)
	s.mux.HandleFunc("GET /api/play-iframe", s.handlePlay)
	s.mux.HandleFunc("GET /api/program/state", s.handleProgramState)
	s.mux.HandleFunc("PUT /api/program/state", s.handlePin)
	s.mux.HandleFunc("POST /api/program/tick", s.handleTick)
	s.mux.HandleFunc("POST /api/program/reset", s.handleReset)
}

// Handler returns the mux wrapped with OpenTelemetry instrumentation.
func (s *APIServer) Handler() http.Handler {
	return otelhttp.NewHandler(s.mux, "evolve-api-server")
}

// Run serves on port until ctx is cancelled, then shuts down gracefully.
func (s *APIServer) Run(ctx context.Context, port int, shutdownTimeout time.Duration) error {
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logging.Log("⚡️ API server starting", slog.LevelInfo, "port", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server startup failed: %w", err)
	case <-ctx.Done():
		logging.Log("Shutdown signal received, closing server...", slog.LevelInfo)

		if shutdownTimeout <= 0 {
			shutdownTimeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logging.Log("Server exited cleanly", slog.LevelInfo)
	}
	return nil
}
