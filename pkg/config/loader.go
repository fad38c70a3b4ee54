package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the single YAML file read from the config directory.
const ConfigFileName = "revera.yaml"

// reveraYAMLConfig mirrors the revera.yaml file structure. All sections
// are optional; missing sections fall back to built-in defaults.
type reveraYAMLConfig struct {
	App       *AppConfig       `yaml:"app"`
	Server    *ServerConfig    `yaml:"server"`
	Gemini    *GeminiConfig    `yaml:"gemini"`
	Qdrant    *QdrantConfig    `yaml:"qdrant"`
	Storage   *StorageConfig   `yaml:"storage"`
	Tavily    *TavilyConfig    `yaml:"tavily"`
	Research  *ResearchConfig  `yaml:"research"`
	Retention *RetentionConfig `yaml:"retention"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load revera.yaml from configDir
//  2. Expand environment variables ({{.VAR}} syntax)
//  3. Parse YAML into structs
//  4. Merge user values over built-in defaults
//  5. Validate all configuration
//  6. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized successfully",
		"reasoning_model", cfg.Gemini.ReasoningModel,
		"collection", cfg.Qdrant.Collection,
		"web_search_enabled", cfg.Tavily.APIKey != "")

	return cfg, nil
}

// load is the internal loader (not exported)
func load(_ context.Context, configDir string) (*Config, error) {
	user, err := loadReveraYAML(configDir)
	if err != nil {
		return nil, NewLoadError(ConfigFileName, err)
	}

	cfg := DefaultConfig()
	cfg.configDir = configDir

	// Merge user sections over defaults. Non-zero user values win;
	// unset fields keep the built-in values.
	sections := []struct {
		name string
		dst  any
		src  any
	}{
		{"app", cfg.App, user.App},
		{"server", cfg.Server, user.Server},
		{"gemini", cfg.Gemini, user.Gemini},
		{"qdrant", cfg.Qdrant, user.Qdrant},
		{"storage", cfg.Storage, user.Storage},
		{"tavily", cfg.Tavily, user.Tavily},
		{"research", cfg.Research, user.Research},
		{"retention", cfg.Retention, user.Retention},
	}
	for _, s := range sections {
		if err := mergeSection(s.dst, s.src); err != nil {
			return nil, fmt.Errorf("failed to merge %s config: %w", s.name, err)
		}
	}

	applyEnvSecrets(cfg)

	return cfg, nil
}

// applyEnvSecrets fills credentials from well-known environment variables
// when the YAML left them empty. Keeps secrets out of config files in the
// common case.
func applyEnvSecrets(cfg *Config) {
	setIfEmpty := func(dst *string, envKey string) {
		if *dst == "" {
			*dst = os.Getenv(envKey)
		}
	}
	setIfEmpty(&cfg.Gemini.APIKey, "GEMINI_API_KEY")
	setIfEmpty(&cfg.Tavily.APIKey, "TAVILY_API_KEY")
	setIfEmpty(&cfg.Qdrant.APIKey, "QDRANT_API_KEY")
	setIfEmpty(&cfg.Storage.AccessKey, "MINIO_ACCESS_KEY")
	setIfEmpty(&cfg.Storage.SecretKey, "MINIO_SECRET_KEY")
}

func mergeSection(dst, src any) error {
	switch s := src.(type) {
	case nil:
		return nil
	case *AppConfig:
		if s == nil {
			return nil
		}
		return mergo.Merge(dst.(*AppConfig), *s, mergo.WithOverride)
	case *ServerConfig:
		if s == nil {
			return nil
		}
		return mergo.Merge(dst.(*ServerConfig), *s, mergo.WithOverride)
	case *GeminiConfig:
		if s == nil {
			return nil
		}
		return mergo.Merge(dst.(*GeminiConfig), *s, mergo.WithOverride)
	case *QdrantConfig:
		if s == nil {
			return nil
		}
		// UseTLS is a plain bool: set explicitly since mergo treats
		// false as unset.
		dst.(*QdrantConfig).UseTLS = s.UseTLS
		return mergo.Merge(dst.(*QdrantConfig), *s, mergo.WithOverride)
	case *StorageConfig:
		if s == nil {
			return nil
		}
		dst.(*StorageConfig).UseSSL = s.UseSSL
		return mergo.Merge(dst.(*StorageConfig), *s, mergo.WithOverride)
	case *TavilyConfig:
		if s == nil {
			return nil
		}
		return mergo.Merge(dst.(*TavilyConfig), *s, mergo.WithOverride)
	case *ResearchConfig:
		if s == nil {
			return nil
		}
		return mergo.Merge(dst.(*ResearchConfig), *s, mergo.WithOverride)
	case *RetentionConfig:
		if s == nil {
			return nil
		}
		return mergo.Merge(dst.(*RetentionConfig), *s, mergo.WithOverride)
	default:
		return fmt.Errorf("unsupported config section type %T", src)
	}
}

// validate performs comprehensive validation on loaded configuration
func validate(cfg *Config) error {
	return NewValidator(cfg).ValidateAll()
}

func loadReveraYAML(configDir string) (*reveraYAMLConfig, error) {
	path := filepath.Join(configDir, ConfigFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Config file is optional; env-expanded defaults apply.
			slog.Warn("Configuration file not found, using defaults", "path", path)
			return &reveraYAMLConfig{}, nil
		}
		return nil, err
	}

	// Expand environment variables using {{.VAR}} template syntax.
	// ExpandEnv passes through original data on parse/execution errors,
	// letting the YAML parser produce the clearer error message.
	data = ExpandEnv(data)

	var config reveraYAMLConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return &config, nil
}
