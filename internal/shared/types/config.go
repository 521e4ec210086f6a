package types

// Config represents the service configuration that can be loaded from a file.
type Config struct {
	// ClusterName is the Kubernetes cluster whose tagged costs are
	// attributable to this deployment. Required for any billing query.
	ClusterName string `json:"cluster_name" yaml:"cluster_name" toml:"cluster_name"`

	// PrometheusURL is the base URL of the metrics backend.
	PrometheusURL string `json:"prometheus_url" yaml:"prometheus_url" toml:"prometheus_url"`

	Host string `json:"host" yaml:"host" toml:"host"`
	Port int    `json:"port" yaml:"port" toml:"port"`

	// CacheTTLSeconds bounds how long allocation query results are memoized.
	CacheTTLSeconds int `json:"cache_ttl_seconds" yaml:"cache_ttl_seconds" toml:"cache_ttl_seconds"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`
}
