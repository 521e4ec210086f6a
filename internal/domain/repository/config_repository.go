package repository

import "github.com/jnywong/jupyterhub-cost-monitoring/internal/shared/types"

// ConfigRepository defines loading of the service configuration.
type ConfigRepository interface {
	// LoadConfigFile parses a TOML, YAML or JSON configuration file.
	LoadConfigFile(filePath string) (*types.Config, error)

	// Load resolves the effective configuration: defaults, then the optional
	// config file, then environment variable overrides.
	Load(filePath string) (*types.Config, error)
}
