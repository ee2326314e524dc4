package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"GoEvolveAI/app/iteration"
	"GoEvolveAI/app/recognizer"
	"GoEvolveAI/app/storage"
)

const anonymousProfile = "anonymous"

type trainRequest struct {
	Digit     *int   `json:"digit" validate:"required,min=0,max=9"`
	ImageData string `json:"imageData" validate:"required"`
}

type trainResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	TaskID  uuid.UUID `json:"taskId"`
}

type trainBatchRequest struct {
	Samples []trainRequest `json:"samples" validate:"required,min=1,max=100,dive"`
}

type trainBatchResponse struct {
	Success bool        `json:"success"`
	Queued  int         `json:"queued"`
	TaskIDs []uuid.UUID `json:"taskIds"`
}

type guessRequest struct {
	ImageData string `json:"imageData" validate:"required"`
}

type pixelRequest struct {
	X     *int   `json:"x" validate:"required,min=0"`
	Y     *int   `json:"y" validate:"required,min=0"`
	Color string `json:"color" validate:"required"`
}

type ideaRequest struct {
	Idea      string `json:"idea" validate:"required"`
	ProfileID string `json:"profileId"`
}

type inputRequest struct {
	ProfileID string `json:"profileId" validate:"required"`
	InputText string `json:"inputText" validate:"required"`
}

type pinRequest struct {
	CurrentIteration *int64 `json:"currentIteration" validate:"required,min=1"`
}

type iterationSummary struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Title     string    `json:"title"`
	Scripts   int       `json:"scripts"`
}

type programStateResponse struct {
	State       storage.ProgramState `json:"state"`
	Coordinator iteration.Snapshot   `json:"coordinator"`
}

func (s *APIServer) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "GoEvolveAI API"})
}

func (s *APIServer) handleTrain(w http.ResponseWriter, r *http.Request) {
	var req trainRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := s.recognizer.Train(*req.Digit, req.ImageData)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, trainResponse{Success: true, Message: "Training task queued", TaskID: id})
}

func (s *APIServer) handleTrainBatch(w http.ResponseWriter, r *http.Request) {
	var req trainBatchRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	samples := make([]recognizer.TrainingSample, len(req.Samples))
	for i, sample := range req.Samples {
		samples[i] = recognizer.TrainingSample{Digit: *sample.Digit, ImageData: sample.ImageData}
	}
	ids, err := s.recognizer.TrainBatch(samples)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, trainBatchResponse{Success: true, Queued: len(ids), TaskIDs: ids})
}

func (s *APIServer) handleGuess(w http.ResponseWriter, r *http.Request) {
	var req guessRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	prediction, err := s.recognizer.Guess(r.Context(), req.ImageData)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prediction)
}

func (s *APIServer) handleTrainingStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.recognizer.Status())
}

func (s *APIServer) handleCanvas(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.canvas.Snapshot())
}

func (s *APIServer) handlePixel(w http.ResponseWriter, r *http.Request) {
	var req pixelRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	pixel, err := s.canvas.Place(*req.X, *req.Y, req.Color)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "pixel": pixel})
}

func (s *APIServer) handleCreateIdea(w http.ResponseWriter, r *http.Request) {
	var req ideaRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	profileID := strings.TrimSpace(req.ProfileID)
	if profileID == "" {
		profileID = anonymousProfile
	}
	input, err := s.program.SubmitInput(r.Context(), profileID, req.Idea)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"data": input})
}

func (s *APIServer) handleLatestIdea(w http.ResponseWriter, r *http.Request) {
	input, err := s.store.LatestInput(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": input})
}

func (s *APIServer) handleCreateInput(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	input, err := s.program.SubmitInput(r.Context(), req.ProfileID, req.InputText)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, input)
}

func (s *APIServer) handleIterations(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "tree" {
		tree, err := s.program.History(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(tree))
		return
	}

	state, err := s.store.GetState(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	artifacts, err := s.store.ListArtifacts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]iterationSummary, 0, len(artifacts))
	for _, a := range artifacts {
		d := iteration.Describe(a.Code)
		out = append(out, iterationSummary{ID: a.ID, CreatedAt: a.CreatedAt, Title: d.Title, Scripts: d.Scripts})
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": state, "iterations": out})
}

// handlePlay serves a program version as a page. Without iterationId it
// serves the current iteration, falling back to the newest one.
func (s *APIServer) handlePlay(w http.ResponseWriter, r *http.Request) {
	key := "current"
	var id int64
	if raw := r.URL.Query().Get("iterationId"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			writeError(w, r, fmt.Errorf("%w: iterationId must be a positive integer", errBadRequest))
			return
		}
		id = parsed
		key = raw
	}

	// Shared across callers, so it must not die with one request.
	ctx := context.WithoutCancel(r.Context())
	v, err, _ := s.artifacts.Do(key, func() (any, error) {
		return s.loadArtifact(ctx, id)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(v.(storage.Artifact).Code))
}

func (s *APIServer) loadArtifact(ctx context.Context, id int64) (storage.Artifact, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if id == 0 {
		state, err := s.store.GetState(ctx)
		if err != nil {
			return storage.Artifact{}, err
		}
		if state.CurrentIteration == nil {
			return s.store.LatestArtifact(ctx)
		}
		id = *state.CurrentIteration
	}
	a, err := s.store.GetArtifact(ctx, id)
	if err != nil {
		return storage.Artifact{}, err
	}
	if a.Code == "" {
		return storage.Artifact{}, storage.ErrNotFound
	}
	return a, nil
}

func (s *APIServer) handleProgramState(w http.ResponseWriter, r *http.Request) {
	state, err := s.store.GetState(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, programStateResponse{State: state, Coordinator: s.program.Snapshot()})
}

func (s *APIServer) handlePin(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.program.Pin(r.Context(), *req.CurrentIteration); err != nil {
		writeError(w, r, err)
		return
	}
	s.handleProgramState(w, r)
}

func (s *APIServer) handleTick(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.program.Tick(context.WithoutCancel(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"outcome": outcome, "coordinator": s.program.Snapshot()})
}

func (s *APIServer) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.program.Reset(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	s.handleProgramState(w, r)
}
