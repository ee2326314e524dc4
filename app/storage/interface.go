package storage

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// StateRowID is the fixed key of the singleton program_state row.
const StateRowID = 1

type Phase string

const (
	PhaseUninitialized Phase = ""
	PhaseInitial       Phase = "INITIAL"
	PhaseIteration     Phase = "ITERATION"
)

type Interface interface {
	SaveInput(ctx context.Context, input Input) (Input, error)
	// ListInputs returns inputs tagged with iterationID (nil means untagged), oldest first.
	ListInputs(ctx context.Context, iterationID *int64) ([]Input, error)
	LatestInput(ctx context.Context) (Input, error)

	InsertPlaceholder(ctx context.Context) (Artifact, error)
	GetArtifact(ctx context.Context, id int64) (Artifact, error)
	LatestArtifact(ctx context.Context) (Artifact, error)
	ListArtifacts(ctx context.Context) ([]Artifact, error)

	GetState(ctx context.Context) (ProgramState, error)
	SetPhase(ctx context.Context, phase Phase) error
	SetCurrentIteration(ctx context.Context, id int64) error
	// Publish stores code, stamps inputs and moves the current pointer in one transaction.
	Publish(ctx context.Context, p Publication) (Artifact, error)

	Close() error
}

type Config struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type Input struct {
	ID          int64     `json:"id" db:"id"`
	InputText   string    `json:"inputText" db:"input_text"`
	ProfileID   string    `json:"profileId" db:"profile_id"`
	IterationID *int64    `json:"iterationId" db:"iteration_id"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

type Artifact struct {
	ID        int64     `json:"id" db:"id"`
	Code      string    `json:"code" db:"code"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type ProgramState struct {
	ID               int64     `json:"id" db:"id"`
	State            Phase     `json:"state" db:"state"`
	CurrentIteration *int64    `json:"currentIteration" db:"current_iteration"`
	UpdatedAt        time.Time `json:"updatedAt" db:"updated_at"`
}

type Publication struct {
	// ArtifactID fills an existing placeholder row; zero inserts a new row.
	ArtifactID  int64
	Code        string
	StampInputs []int64
	// Supersedes is the iteration the new artifact replaces. Its inputs that
	// are not in Folded move to the new artifact.
	Supersedes *int64
	Folded     []int64
}
