// Package iteration evolves a single generated web program: on a timer it folds
// pending player inputs into prompts and publishes the next version.
package iteration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"GoEvolveAI/app/logging"
	"GoEvolveAI/app/models"
	"GoEvolveAI/app/storage"
)

const MaxInputRunes = 500

var (
	ErrCycleInProgress = errors.New("iteration cycle already in progress")
	ErrNotStarted      = errors.New("coordinator not started")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyCode       = errors.New("generator returned no code")
)

type Outcome string

const (
	OutcomeNone      Outcome = ""
	Published        Outcome = "published"
	SkippedNoInputs  Outcome = "skipped_no_inputs"
	SkippedNoCurrent Outcome = "skipped_no_current"
	SkippedBusy      Outcome = "skipped_busy"
	Failed           Outcome = "failed"
)

type Config struct {
	InitialDelay    time.Duration `yaml:"initial_delay"`
	Period          time.Duration `yaml:"period"`
	InputCharBudget int           `yaml:"input_char_budget"`
	MaxFeatures     int           `yaml:"max_features"`
	CallTimeout     time.Duration `yaml:"call_timeout"`
}

func DefaultConfig() Config {
	return Config{
		InitialDelay:    120 * time.Second,
		Period:          120 * time.Second,
		InputCharBudget: 70,
		MaxFeatures:     5,
		CallTimeout:     90 * time.Second,
	}
}

// Notifier is told about every published iteration.
type Notifier interface {
	IterationPublished(ctx context.Context, artifact storage.Artifact)
}

type Option func(*Coordinator)

func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

type Snapshot struct {
	Phase       storage.Phase `json:"phase"`
	Cycles      uint64        `json:"cycles"`
	LastOutcome Outcome       `json:"lastOutcome"`
	LastError   string        `json:"lastError,omitempty"`
	LastRunAt   *time.Time    `json:"lastRunAt,omitempty"`
	Seeded      bool          `json:"seeded"`
	Running     bool          `json:"running"`
}

// Coordinator owns the program's phase. Run one per store: the state row is
// written without optimistic locking.
type Coordinator struct {
	store     storage.Interface
	generator models.Generator
	cfg       Config
	notifier  Notifier

	inCycle atomic.Bool

	mu          sync.Mutex
	phase       storage.Phase
	seeded      bool
	cycles      uint64
	lastOutcome Outcome
	lastErr     error
	lastRunAt   time.Time
}

func NewCoordinator(store storage.Interface, generator models.Generator, cfg Config, opts ...Option) *Coordinator {
	def := DefaultConfig()
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.Period <= 0 {
		cfg.Period = def.Period
	}
	if cfg.InputCharBudget <= 0 {
		cfg.InputCharBudget = def.InputCharBudget
	}
	if cfg.MaxFeatures <= 0 {
		cfg.MaxFeatures = def.MaxFeatures
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	c := &Coordinator{store: store, generator: generator, cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start forces the program into INITIAL. Calling it again is harmless.
func (c *Coordinator) Start(ctx context.Context) error {
	err := c.call(ctx, func(ctx context.Context) error {
		return c.store.SetPhase(ctx, storage.PhaseInitial)
	})
	if err != nil {
		return fmt.Errorf("entering INITIAL: %w", err)
	}
	c.mu.Lock()
	c.phase = storage.PhaseInitial
	c.mu.Unlock()
	logging.Log("🌱 Program is waiting for its first ideas", slog.LevelInfo)
	return nil
}

// Run starts the coordinator and ticks until ctx is cancelled. The first tick
// fires InitialDelay after a successful Start, every later one Period after the
// previous finished. A failed Start is retried every Period.
func (c *Coordinator) Run(ctx context.Context) error {
	started := c.tryStart(ctx)
	delay := c.cfg.InitialDelay
	if !started {
		delay = c.cfg.Period
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Log("🛑 Iteration loop stopped", slog.LevelInfo)
			return nil
		case <-timer.C:
			if !started {
				started = c.tryStart(ctx)
				if started {
					timer.Reset(c.cfg.InitialDelay)
				} else {
					timer.Reset(c.cfg.Period)
				}
				continue
			}
			_, _ = c.Tick(ctx)
			timer.Reset(c.cfg.Period)
		}
	}
}

func (c *Coordinator) tryStart(ctx context.Context) bool {
	if err := c.Start(ctx); err != nil {
		if ctx.Err() == nil {
			logging.Log("⚠️ Could not start iteration loop, retrying", slog.LevelWarn, "retry_in", c.cfg.Period, "error", err)
		}
		return false
	}
	return true
}

// Tick runs one cycle now. It never overlaps another cycle.
func (c *Coordinator) Tick(ctx context.Context) (Outcome, error) {
	if !c.inCycle.CompareAndSwap(false, true) {
		logging.Inc(ctx, "iteration_cycles_skipped", "reason", string(SkippedBusy))
		return SkippedBusy, ErrCycleInProgress
	}
	defer c.inCycle.Store(false)

	var (
		outcome Outcome
		err     error
	)
	switch phase := c.Phase(); phase {
	case storage.PhaseInitial:
		outcome, err = c.seed(ctx)
	case storage.PhaseIteration:
		outcome, err = c.regenerate(ctx)
	default:
		return OutcomeNone, ErrNotStarted
	}
	if err != nil {
		outcome = Failed
	}
	c.record(ctx, outcome, err)
	return outcome, err
}

func (c *Coordinator) record(ctx context.Context, outcome Outcome, err error) {
	c.mu.Lock()
	c.cycles++
	c.lastOutcome = outcome
	c.lastErr = err
	c.lastRunAt = time.Now()
	c.mu.Unlock()

	logging.Inc(ctx, "iteration_cycles_total", "outcome", string(outcome))
	switch outcome {
	case Failed:
		logging.Inc(ctx, "iteration_cycles_failed")
		logging.Log("❌ Iteration cycle failed", slog.LevelError, "error", err)
	case SkippedNoInputs, SkippedNoCurrent:
		logging.Inc(ctx, "iteration_cycles_skipped", "reason", string(outcome))
		logging.Log("⏭️ Iteration cycle skipped", slog.LevelInfo, "reason", string(outcome))
	}
}

// SubmitInput stores a player's request. While the program is iterating the
// input is tagged with the current iteration so the next cycle picks it up.
func (c *Coordinator) SubmitInput(ctx context.Context, profileID, text string) (storage.Input, error) {
	profileID = strings.TrimSpace(profileID)
	text = strings.TrimSpace(text)
	switch {
	case profileID == "":
		return storage.Input{}, fmt.Errorf("%w: profile id is required", ErrInvalidInput)
	case text == "":
		return storage.Input{}, fmt.Errorf("%w: input text is required", ErrInvalidInput)
	case utf8.RuneCountInString(text) > MaxInputRunes:
		return storage.Input{}, fmt.Errorf("%w: input text is longer than %d characters", ErrInvalidInput, MaxInputRunes)
	}

	input := storage.Input{ProfileID: profileID, InputText: text}
	if c.Phase() == storage.PhaseIteration {
		state, err := callValue(ctx, c.cfg.CallTimeout, c.store.GetState)
		if err != nil {
			return storage.Input{}, fmt.Errorf("reading program state: %w", err)
		}
		input.IterationID = state.CurrentIteration
	}
	saved, err := callValue(ctx, c.cfg.CallTimeout, func(ctx context.Context) (storage.Input, error) {
		return c.store.SaveInput(ctx, input)
	})
	if err != nil {
		return storage.Input{}, fmt.Errorf("saving input: %w", err)
	}
	return saved, nil
}

// Reset sends the program back to INITIAL. The next seed cycle consumes the
// inputs it folds in.
func (c *Coordinator) Reset(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.seeded = true
	c.mu.Unlock()
	return nil
}

// Pin points the program at an existing artifact.
func (c *Coordinator) Pin(ctx context.Context, id int64) error {
	err := c.call(ctx, func(ctx context.Context) error {
		return c.store.SetCurrentIteration(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("pinning iteration %d: %w", id, err)
	}
	logging.Log("📌 Current iteration pinned", slog.LevelInfo, "iteration", id)
	return nil
}

func (c *Coordinator) Phase() storage.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		Phase:       c.phase,
		Cycles:      c.cycles,
		LastOutcome: c.lastOutcome,
		Seeded:      c.seeded,
		Running:     c.inCycle.Load(),
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	if !c.lastRunAt.IsZero() {
		t := c.lastRunAt
		s.LastRunAt = &t
	}
	return s
}

func (c *Coordinator) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()
	return fn(ctx)
}

func callValue[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

// History renders the published iterations as a tree.
func (c *Coordinator) History(ctx context.Context) (string, error) {
	state, err := callValue(ctx, c.cfg.CallTimeout, c.store.GetState)
	if err != nil {
		return "", fmt.Errorf("reading program state: %w", err)
	}
	artifacts, err := callValue(ctx, c.cfg.CallTimeout, c.store.ListArtifacts)
	if err != nil {
		return "", fmt.Errorf("listing iterations: %w", err)
	}
	return RenderHistory(state, artifacts), nil
}
