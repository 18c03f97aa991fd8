package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type StoreConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

// EngineConfig describes how to locate and launch the external
// transcription engine process.
type EngineConfig struct {
	PackagedRoot string   `yaml:"packaged_root"`
	DevRoot      string   `yaml:"dev_root"`
	Entry        string   `yaml:"entry"`
	ExtraArgs    []string `yaml:"extra_args"`
	CommandMS    int      `yaml:"command_timeout_ms"`
}

type AIConfig struct {
	Provider          string `yaml:"provider"` // openai, anthropic, openrouter, ollama
	Model             string `yaml:"model"`
	OpenAIKey         string `yaml:"openai_api_key"`
	AnthropicKey      string `yaml:"anthropic_api_key"`
	OpenRouterKey     string `yaml:"openrouter_api_key"`
	OpenAIEndpoint    string `yaml:"openai_endpoint"`
	AnthropicEndpoint string `yaml:"anthropic_endpoint"`
	OpenRouterAPI     string `yaml:"openrouter_endpoint"`
	OllamaEndpoint    string `yaml:"ollama_endpoint"`
	TimeoutMS         int    `yaml:"timeout_ms"`
}

type ModelsConfig struct {
	Command   string `yaml:"command"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Store       StoreConfig     `yaml:"store"`
	Engine      EngineConfig    `yaml:"engine"`
	AI          AIConfig        `yaml:"ai"`
	Models      ModelsConfig    `yaml:"models"`
}

func Default() Config {
	return Config{
		RuntimeName: "minute-core",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "127.0.0.1",
			Port: 8995,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Store: StoreConfig{
			Path:          "./data/minute.db",
			RetentionDays: 90,
			MaxSessions:   10000,
		},
		Engine: EngineConfig{
			PackagedRoot: "./resources/engine",
			DevRoot:      "./engine",
			Entry:        "engine.py",
			CommandMS:    10000,
		},
		AI: AIConfig{
			Provider:          "ollama",
			OpenAIEndpoint:    "https://api.openai.com/v1",
			AnthropicEndpoint: "https://api.anthropic.com",
			OpenRouterAPI:     "https://openrouter.ai/api/v1",
			OllamaEndpoint:    "http://localhost:11434",
			TimeoutMS:         60000,
		},
		Models: ModelsConfig{
			TimeoutMS: 600000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "MINUTE_RUNTIME_NAME")
	overrideString(&cfg.Environment, "MINUTE_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "MINUTE_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "MINUTE_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "MINUTE_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "MINUTE_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "MINUTE_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Embedded, "MINUTE_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "MINUTE_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "MINUTE_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "MINUTE_BUS_SERVERS")
	overrideInt(&cfg.Bus.ConnectTimeout, "MINUTE_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Store.Path, "MINUTE_STORE_PATH")
	overrideInt(&cfg.Store.RetentionDays, "MINUTE_STORE_RETENTION_DAYS")
	overrideInt(&cfg.Store.MaxSessions, "MINUTE_STORE_MAX_SESSIONS")
	overrideBool(&cfg.Store.VacuumOnStart, "MINUTE_STORE_VACUUM_ON_START")
	overrideString(&cfg.Engine.PackagedRoot, "MINUTE_ENGINE_PACKAGED_ROOT")
	overrideString(&cfg.Engine.DevRoot, "MINUTE_ENGINE_DEV_ROOT")
	overrideString(&cfg.Engine.Entry, "MINUTE_ENGINE_ENTRY")
	overrideInt(&cfg.Engine.CommandMS, "MINUTE_ENGINE_COMMAND_TIMEOUT_MS")
	overrideString(&cfg.AI.Provider, "MINUTE_AI_PROVIDER")
	overrideString(&cfg.AI.Model, "MINUTE_AI_MODEL")
	overrideString(&cfg.AI.OpenAIKey, "MINUTE_AI_OPENAI_API_KEY")
	overrideString(&cfg.AI.AnthropicKey, "MINUTE_AI_ANTHROPIC_API_KEY")
	overrideString(&cfg.AI.OpenRouterKey, "MINUTE_AI_OPENROUTER_API_KEY")
	overrideString(&cfg.AI.OpenAIEndpoint, "MINUTE_AI_OPENAI_ENDPOINT")
	overrideString(&cfg.AI.AnthropicEndpoint, "MINUTE_AI_ANTHROPIC_ENDPOINT")
	overrideString(&cfg.AI.OpenRouterAPI, "MINUTE_AI_OPENROUTER_ENDPOINT")
	overrideString(&cfg.AI.OllamaEndpoint, "MINUTE_AI_OLLAMA_ENDPOINT")
	overrideInt(&cfg.AI.TimeoutMS, "MINUTE_AI_TIMEOUT_MS")
	overrideString(&cfg.Models.Command, "MINUTE_MODELS_COMMAND")
	overrideInt(&cfg.Models.TimeoutMS, "MINUTE_MODELS_TIMEOUT_MS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Store.Path == "" {
		return errors.New("store.path must not be empty")
	}
	if cfg.Store.RetentionDays < 0 {
		return errors.New("store.retention_days must be >= 0")
	}
	if cfg.Engine.Entry == "" {
		return errors.New("engine.entry must not be empty")
	}
	if cfg.Engine.PackagedRoot == "" && cfg.Engine.DevRoot == "" {
		return errors.New("engine.packaged_root or engine.dev_root must be set")
	}
	if cfg.Engine.CommandMS <= 0 {
		return errors.New("engine.command_timeout_ms must be positive")
	}
	switch cfg.AI.Provider {
	case "openai", "anthropic", "openrouter", "ollama":
	default:
		return errors.New("ai.provider must be one of openai|anthropic|openrouter|ollama")
	}
	if cfg.AI.TimeoutMS <= 0 {
		return errors.New("ai.timeout_ms must be positive")
	}
	if cfg.Models.TimeoutMS <= 0 {
		return errors.New("models.timeout_ms must be positive")
	}
	return nil
}
