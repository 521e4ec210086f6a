package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/jnywong/jupyterhub-cost-monitoring/internal/shared/types"
)

// ConfigRepositoryImpl loads service configuration from files and the
// environment.
type ConfigRepositoryImpl struct{}

// NewConfigRepository creates a configuration loader.
func NewConfigRepository() *ConfigRepositoryImpl {
	return &ConfigRepositoryImpl{}
}

// LoadConfigFile parses a configuration file, choosing the decoder by
// extension. TOML, YAML and JSON are supported.
func (r *ConfigRepositoryImpl) LoadConfigFile(filePath string) (*types.Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg types.Config
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing TOML config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", filepath.Ext(filePath))
	}
	return &cfg, nil
}

// Load resolves the effective configuration: built-in defaults, overridden by
// the config file when one is given, overridden in turn by environment
// variables.
func (r *ConfigRepositoryImpl) Load(filePath string) (*types.Config, error) {
	cfg := defaults()

	if filePath != "" {
		fileCfg, err := r.LoadConfigFile(filePath)
		if err != nil {
			return nil, err
		}
		merge(cfg, fileCfg)
	}

	if v := os.Getenv("CLUSTER_NAME"); v != "" {
		cfg.ClusterName = v
	}
	if v := os.Getenv("PROMETHEUS_HOST"); v != "" {
		cfg.PrometheusURL = v
	}

	return cfg, nil
}

func defaults() *types.Config {
	return &types.Config{
		PrometheusURL:   "http://localhost:9090",
		Host:            "0.0.0.0",
		Port:            8080,
		CacheTTLSeconds: 3600,
		LogLevel:        "info",
		LogFormat:       "json",
	}
}

func merge(dst, src *types.Config) {
	if src.ClusterName != "" {
		dst.ClusterName = src.ClusterName
	}
	if src.PrometheusURL != "" {
		dst.PrometheusURL = src.PrometheusURL
	}
	if src.Host != "" {
		dst.Host = src.Host
	}
	if src.Port != 0 {
		dst.Port = src.Port
	}
	if src.CacheTTLSeconds != 0 {
		dst.CacheTTLSeconds = src.CacheTTLSeconds
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.LogFormat != "" {
		dst.LogFormat = src.LogFormat
	}
}
