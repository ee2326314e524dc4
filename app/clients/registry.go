package clients

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"GoEvolveAI/app/iteration"
	"GoEvolveAI/app/logging"
	"GoEvolveAI/app/storage"
)

var _ iteration.Notifier = &Registry{}

// Config describes one chat connector in the config file.
type Config struct {
	Type    string            `yaml:"type" json:"type"`
	Enabled bool              `yaml:"enabled" json:"enabled"`
	Config  map[string]string `yaml:"config,omitempty" json:"config,omitempty"`
}

type Factory func(settings map[string]string) (Interface, error)

var factories = map[string]Factory{
	"discord": func(settings map[string]string) (Interface, error) {
		dc, err := NewDiscordClientFromConfig(settings)
		if err != nil {
			return nil, err
		}
		return dc, nil
	},
}

// Registry holds the subscribed chat clients and relays iteration
// announcements to them.
type Registry struct {
	mu      sync.RWMutex
	clients []Interface
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register subscribes the client to the program. A client that fails to
// subscribe is not kept.
func (r *Registry) Register(client Interface, program Program) error {
	if err := client.Subscribe(program); err != nil {
		return fmt.Errorf("subscribing client: %w", err)
	}
	r.mu.Lock()
	r.clients = append(r.clients, client)
	r.mu.Unlock()
	return nil
}

func (r *Registry) Clients() []Interface {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Interface(nil), r.clients...)
}

func (r *Registry) IterationPublished(ctx context.Context, artifact storage.Artifact) {
	for _, client := range r.Clients() {
		announce(ctx, client, artifact)
	}
}

// announce keeps one misbehaving client from breaking the publish path.
func announce(ctx context.Context, client Interface, artifact storage.Artifact) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Log("⚠️ Client panicked while announcing", slog.LevelWarn,
				"client", fmt.Sprintf("%T", client), "iteration", artifact.ID, "panic", rec)
		}
	}()
	client.IterationPublished(ctx, artifact)
}

// Close closes every client that supports it and forgets all of them.
func (r *Registry) Close() error {
	r.mu.Lock()
	registered := r.clients
	r.clients = nil
	r.mu.Unlock()

	var errs []error
	for _, client := range registered {
		closer, ok := client.(interface{ Close() error })
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			logging.Log("⚠️ Error closing client", slog.LevelWarn, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func CreateClient(cfg Config) (Interface, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("client %s is disabled", cfg.Type)
	}
	factory, ok := factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown client type: %s", cfg.Type)
	}
	return factory(cfg.Config)
}
