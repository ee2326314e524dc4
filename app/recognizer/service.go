package recognizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"GoEvolveAI/app/logging"
	"GoEvolveAI/app/queue"
)

const MaxBatch = 100

var (
	ErrNotTrained   = errors.New("model not trained yet")
	ErrInvalidDigit = errors.New("digit must be between 0 and 9")
	ErrInvalidBatch = errors.New("invalid training batch")
)

type TrainingSample struct {
	Digit     int    `json:"digit"`
	ImageData string `json:"imageData"`
}

type Prediction struct {
	Digit         int       `json:"prediction"`
	Confidence    float64   `json:"confidence"`
	Probabilities []float64 `json:"probabilities,omitempty"`
}

type Status struct {
	Queue       queue.Stats     `json:"queue"`
	Ready       bool            `json:"ready"`
	Trained     uint64          `json:"trained"`
	PerDigit    [Classes]uint64 `json:"perDigit"`
	Failed      uint64          `json:"failed"`
	LastTrained *time.Time      `json:"lastTrained,omitempty"`
}

// Service owns the model. Training and prediction both go through the queue,
// so the model only ever sees one call at a time.
type Service struct {
	queue *queue.Queue
	model Model

	mu          sync.Mutex
	perDigit    [Classes]uint64
	trained     uint64
	failed      uint64
	lastTrained time.Time
}

func NewService(q *queue.Queue, m Model) *Service {
	return &Service{queue: q, model: m}
}

func validateDigit(digit int) error {
	if digit < 0 || digit >= Classes {
		return fmt.Errorf("%w: got %d", ErrInvalidDigit, digit)
	}
	return nil
}

// Train validates and decodes the sample, then queues one training step
// without waiting for it.
func (s *Service) Train(digit int, imageData string) (uuid.UUID, error) {
	if err := validateDigit(digit); err != nil {
		return uuid.Nil, err
	}
	sample, err := Decode(imageData)
	if err != nil {
		return uuid.Nil, err
	}
	return s.enqueueTraining(digit, sample), nil
}

// TrainBatch queues every sample or none of them.
func (s *Service) TrainBatch(samples []TrainingSample) ([]uuid.UUID, error) {
	if len(samples) == 0 || len(samples) > MaxBatch {
		return nil, fmt.Errorf("%w: expected 1 to %d samples, got %d", ErrInvalidBatch, MaxBatch, len(samples))
	}
	decoded := make([]Sample, len(samples))
	for i, ts := range samples {
		if err := validateDigit(ts.Digit); err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		sample, err := Decode(ts.ImageData)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		decoded[i] = sample
	}

	ids := make([]uuid.UUID, len(samples))
	for i, ts := range samples {
		ids[i] = s.enqueueTraining(ts.Digit, decoded[i])
	}
	return ids, nil
}

func (s *Service) enqueueTraining(digit int, sample Sample) uuid.UUID {
	h := s.queue.Enqueue(fmt.Sprintf("train:%d", digit), func(ctx context.Context) (any, error) {
		if err := s.model.Train(ctx, sample, digit); err != nil {
			s.mu.Lock()
			s.failed++
			s.mu.Unlock()
			return nil, fmt.Errorf("training digit %d: %w", digit, err)
		}
		s.mu.Lock()
		s.perDigit[digit]++
		s.trained++
		s.lastTrained = time.Now()
		s.mu.Unlock()
		logging.Log("🧠 Training completed", slog.LevelDebug, "digit", digit)
		return nil, nil
	})
	h.Detach()
	return h.ID()
}

// Guess waits for the prediction behind any training already queued.
func (s *Service) Guess(ctx context.Context, imageData string) (Prediction, error) {
	sample, err := Decode(imageData)
	if err != nil {
		return Prediction{}, err
	}
	f := queue.Submit(s.queue, "guess", func(ctx context.Context) ([]float64, error) {
		if !s.ready() {
			return nil, ErrNotTrained
		}
		return s.model.Predict(ctx, sample)
	})
	probs, err := f.Wait(ctx)
	if err != nil {
		return Prediction{}, err
	}
	digit, conf := ArgMax(probs)
	logging.Log("🔮 Prediction", slog.LevelInfo, "digit", digit, "confidence", conf)
	return Prediction{Digit: digit, Confidence: conf, Probabilities: probs}, nil
}

func (s *Service) ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trained > 0
}

func (s *Service) Status() Status {
	st := Status{Queue: s.queue.Stats()}
	s.mu.Lock()
	defer s.mu.Unlock()
	st.Ready = s.trained > 0
	st.Trained = s.trained
	st.PerDigit = s.perDigit
	st.Failed = s.failed
	if !s.lastTrained.IsZero() {
		t := s.lastTrained
		st.LastTrained = &t
	}
	return st
}
