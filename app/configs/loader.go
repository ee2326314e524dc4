package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"GoEvolveAI/app/canvas"
	"GoEvolveAI/app/clients"
	"GoEvolveAI/app/iteration"
	"GoEvolveAI/app/logging"
	"GoEvolveAI/app/models"
	"GoEvolveAI/app/storage"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Storage    storage.Config   `yaml:"storage"`
	LLM        models.Config    `yaml:"llm"`
	Iteration  iteration.Config `yaml:"iteration"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Canvas     canvas.Config    `yaml:"canvas"`
	Clients    []clients.Config `yaml:"clients,omitempty"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`
}

type RecognizerConfig struct {
	LearningRate float64       `yaml:"learning_rate"`
	TaskTimeout  time.Duration `yaml:"task_timeout"`
}

func Default() Config {
	return Config{
		Server:     ServerConfig{Port: 3001, ShutdownTimeout: 10 * time.Second},
		Storage:    storage.Config{Driver: "sqlite"},
		LLM:        models.Config{Provider: models.ProviderAnthropic, MaxRetries: 3, Timeout: 2 * time.Minute},
		Iteration:  iteration.DefaultConfig(),
		Recognizer: RecognizerConfig{LearningRate: 0.05, TaskTimeout: 30 * time.Second},
		Canvas: canvas.Config{
			Width:      canvas.DefaultWidth,
			Height:     canvas.DefaultHeight,
			Background: canvas.DefaultBackground,
		},
	}
}

// Load reads .env (if present), then the YAML file at path (or CONFIG_PATH),
// then environment overrides. ${VAR} references in the YAML are expanded.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read configs file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parse YAML: %w", err)
	}
	logging.Log("📄 Config file loaded", slog.LevelInfo, "path", path)
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	setString(&cfg.Storage.Driver, "DB_DRIVER")
	setString(&cfg.Storage.DSN, "DB_DSN")
	if cfg.Storage.DSN == "" && cfg.Storage.Driver == "sqlite" {
		setString(&cfg.Storage.DSN, "DB_PATH")
	}

	setString(&cfg.LLM.Provider, "LLM_PROVIDER")
	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setString(&cfg.LLM.APIKey, "LLM_API_KEY")
	if cfg.LLM.APIKey == "" && cfg.LLM.Provider == models.ProviderAnthropic {
		setString(&cfg.LLM.APIKey, "ANTHROPIC_API_KEY")
	}

	if err := setDuration(&cfg.Iteration.InitialDelay, "ITERATION_INITIAL_DELAY"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Iteration.Period, "ITERATION_PERIOD"); err != nil {
		return err
	}

	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("OTEL_ENABLED: %w", err)
		}
		cfg.Telemetry.Enabled = enabled
	}

	if token := os.Getenv("DISCORD_TOKEN"); token != "" && !hasClient(cfg.Clients, "discord") {
		cfg.Clients = append(cfg.Clients, clients.Config{
			Type:    "discord",
			Enabled: true,
			Config: map[string]string{
				"token":      token,
				"channel_id": os.Getenv("DISCORD_CHANNEL_ID"),
			},
		})
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setDuration accepts Go durations ("2m") or plain seconds ("120").
func setDuration(dst *time.Duration, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func hasClient(cs []clients.Config, kind string) bool {
	for _, c := range cs {
		if c.Type == kind {
			return true
		}
	}
	return false
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}

	switch c.Storage.Driver {
	case "", "sqlite":
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("postgres storage needs a dsn")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.LLM.Provider {
	case "", models.ProviderAnthropic:
		if c.LLM.APIKey == "" {
			return fmt.Errorf("anthropic provider needs an api key")
		}
	case models.ProviderOpenAI:
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}

	if c.Iteration.InitialDelay < 0 || c.Iteration.Period < 0 {
		return fmt.Errorf("iteration delays cannot be negative")
	}
	if c.Iteration.InputCharBudget < 0 || c.Iteration.MaxFeatures < 0 {
		return fmt.Errorf("iteration budgets cannot be negative")
	}

	for _, cl := range c.Clients {
		if cl.Type == "" {
			return fmt.Errorf("client type cannot be empty")
		}
	}
	return nil
}
