package iteration

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"GoEvolveAI/app/logging"
	"GoEvolveAI/app/models"
	"GoEvolveAI/app/storage"
)

// seed folds the untagged inputs into the first program. The placeholder row
// reserves the artifact id before the publish transaction fills it.
func (c *Coordinator) seed(ctx context.Context) (Outcome, error) {
	pending, err := callValue(ctx, c.cfg.CallTimeout, func(ctx context.Context) ([]storage.Input, error) {
		return c.store.ListInputs(ctx, nil)
	})
	if err != nil {
		return Failed, fmt.Errorf("listing untagged inputs: %w", err)
	}
	inputs := Dedupe(pending)
	if len(inputs) == 0 {
		return SkippedNoInputs, nil
	}
	logging.Log("🧩 Seeding program", slog.LevelInfo, "inputs", len(pending), "profiles", len(inputs))

	requirements, err := c.generate(ctx, seedPrompt(inputs, c.cfg.InputCharBudget))
	if err != nil {
		return Failed, fmt.Errorf("synthesizing requirements: %w", err)
	}

	raw, err := c.generate(ctx, programPrompt(requirements))
	if err != nil {
		return Failed, fmt.Errorf("generating program: %w", err)
	}
	code := ExtractCode(raw)
	if strings.TrimSpace(code) == "" {
		return Failed, fmt.Errorf("generating program: %w", ErrEmptyCode)
	}

	// Reserved only once there is code to fill it with, so failing cycles
	// leave no empty rows behind.
	placeholder, err := callValue(ctx, c.cfg.CallTimeout, c.store.InsertPlaceholder)
	if err != nil {
		return Failed, fmt.Errorf("reserving artifact: %w", err)
	}

	c.mu.Lock()
	stamp := c.seeded
	c.mu.Unlock()

	pub := storage.Publication{ArtifactID: placeholder.ID, Code: code}
	if stamp {
		pub.StampInputs = inputIDs(pending)
	}
	return c.publish(ctx, pub)
}

// regenerate applies the inputs gathered by the current iteration and
// publishes the result as a new artifact.
func (c *Coordinator) regenerate(ctx context.Context) (Outcome, error) {
	state, err := callValue(ctx, c.cfg.CallTimeout, c.store.GetState)
	if err != nil {
		return Failed, fmt.Errorf("reading program state: %w", err)
	}
	if state.CurrentIteration == nil {
		return SkippedNoCurrent, nil
	}
	currentID := *state.CurrentIteration

	pending, err := callValue(ctx, c.cfg.CallTimeout, func(ctx context.Context) ([]storage.Input, error) {
		return c.store.ListInputs(ctx, &currentID)
	})
	if err != nil {
		return Failed, fmt.Errorf("listing inputs of iteration %d: %w", currentID, err)
	}
	inputs := Dedupe(pending)
	if len(inputs) == 0 {
		return SkippedNoInputs, nil
	}

	current, err := callValue(ctx, c.cfg.CallTimeout, func(ctx context.Context) (storage.Artifact, error) {
		return c.store.GetArtifact(ctx, currentID)
	})
	if err != nil {
		return Failed, fmt.Errorf("loading iteration %d: %w", currentID, err)
	}
	logging.Log("🔁 Regenerating program", slog.LevelInfo, "from", currentID, "inputs", len(inputs))

	features, err := c.generate(ctx, featuresPrompt(inputs, c.cfg.InputCharBudget, c.cfg.MaxFeatures))
	if err != nil {
		return Failed, fmt.Errorf("prioritizing features: %w", err)
	}
	features = BoundFeatures(features, c.cfg.MaxFeatures)

	raw, err := c.generate(ctx, updatePrompt(current.Code, features))
	if err != nil {
		return Failed, fmt.Errorf("updating iteration %d: %w", currentID, err)
	}
	code := ExtractCode(raw)
	if strings.TrimSpace(code) == "" {
		return Failed, fmt.Errorf("updating iteration %d: %w", currentID, ErrEmptyCode)
	}
	// Inputs that arrived during this cycle are still tagged with currentID;
	// publishing hands them to the new iteration.
	return c.publish(ctx, storage.Publication{
		Code:       code,
		Supersedes: &currentID,
		Folded:     inputIDs(pending),
	})
}

func (c *Coordinator) publish(ctx context.Context, pub storage.Publication) (Outcome, error) {
	artifact, err := callValue(ctx, c.cfg.CallTimeout, func(ctx context.Context) (storage.Artifact, error) {
		return c.store.Publish(ctx, pub)
	})
	if err != nil {
		return Failed, fmt.Errorf("publishing: %w", err)
	}

	c.mu.Lock()
	c.phase = storage.PhaseIteration
	c.seeded = true
	c.mu.Unlock()

	logging.Inc(ctx, "iteration_published")
	logging.Log("🚀 Iteration published", slog.LevelInfo, "iteration", artifact.ID, "title", Describe(artifact.Code).Title)
	if c.notifier != nil {
		c.notifier.IterationPublished(ctx, artifact)
	}
	return Published, nil
}

func (c *Coordinator) generate(ctx context.Context, messages []models.Message) (string, error) {
	return callValue(ctx, c.cfg.CallTimeout, func(ctx context.Context) (string, error) {
		return c.generator.Generate(ctx, messages)
	})
}

func inputIDs(inputs []storage.Input) []int64 {
	ids := make([]int64, 0, len(inputs))
	for _, in := range inputs {
		ids = append(ids, in.ID)
	}
	return ids
}
