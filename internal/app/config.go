package app

import "fmt"

// Config holds all resolved configuration values for an application run.
type Config struct {
	// PipelinePath is the path to the pipeline definition file or directory.
	PipelinePath string
	// ModulesPath is the path where module manifests are discovered.
	ModulesPath string
	// HealthcheckPort is the port for the liveness endpoint. 0 disables it.
	HealthcheckPort int
	// LogFormat is the log output format ("json" or "text").
	LogFormat string
	// LogLevel is the minimum log level ("debug", "info", "warn", "error").
	LogLevel string
	// WorkerCount is the number of concurrent stage workers.
	WorkerCount int
}

// NewConfig validates a Config and applies defaults where values are unset.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.PipelinePath == "" {
		return nil, fmt.Errorf("pipeline path is required")
	}
	if cfg.ModulesPath == "" {
		cfg.ModulesPath = "modules"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	return &cfg, nil
}
