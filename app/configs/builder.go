package configs

import (
	"fmt"
	"log/slog"

	"GoEvolveAI/app/clients"
	"GoEvolveAI/app/logging"
	"GoEvolveAI/app/models"
	"GoEvolveAI/app/storage"
)

func (c *Config) OpenStorage() (storage.Interface, error) {
	store, err := storage.Open(c.Storage)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", c.Storage.Driver, err)
	}
	return store, nil
}

func (c *Config) BuildGenerator() (models.Generator, error) {
	gen, err := models.NewGenerator(c.LLM)
	if err != nil {
		return nil, fmt.Errorf("build %s generator: %w", c.LLM.Provider, err)
	}
	return gen, nil
}

func (c *Config) InitializeClients(clientRegistry *clients.Registry, program clients.Program) error {
	if len(c.Clients) == 0 {
		logging.Log("ℹ️ No clients configured", slog.LevelInfo)
		return nil
	}

	for _, clientCfg := range c.Clients {
		if !clientCfg.Enabled {
			logging.Log("⏭️ Client is disabled, skipping", slog.LevelInfo, "type", clientCfg.Type)
			continue
		}

		logging.Log("🔌 Initializing client...", slog.LevelInfo, "type", clientCfg.Type)
		client, err := clients.CreateClient(clientCfg)
		if err != nil {
			return fmt.Errorf("failed to create %s client: %w", clientCfg.Type, err)
		}

		if err := clientRegistry.Register(client, program); err != nil {
			return fmt.Errorf("failed to register %s client: %w", clientCfg.Type, err)
		}

		logging.Log("✅ Client initialized", slog.LevelInfo, "type", clientCfg.Type)
	}

	return nil
}
