package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	RESTAddr string `json:"rest_addr" yaml:"rest_addr" toml:"rest_addr"`
	GRPCAddr string `json:"grpc_addr" yaml:"grpc_addr" toml:"grpc_addr"`

	ModelsDir    string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	DefaultModel string `json:"default_model" yaml:"default_model" toml:"default_model"`

	// Per-model request buffer.
	BufferCapacity int    `json:"buffer_capacity" yaml:"buffer_capacity" toml:"buffer_capacity"`
	OverflowPolicy string `json:"overflow_policy" yaml:"overflow_policy" toml:"overflow_policy"` // block | reject
	PushTimeoutMS  int    `json:"push_timeout_ms" yaml:"push_timeout_ms" toml:"push_timeout_ms"`

	// Batching thresholds.
	MaxBatchSize   int `json:"max_batch_size" yaml:"max_batch_size" toml:"max_batch_size"`
	MaxBatchWaitMS int `json:"max_batch_wait_ms" yaml:"max_batch_wait_ms" toml:"max_batch_wait_ms"`

	// Chunked-stream reconstruction.
	StreamIdleTimeoutMS int  `json:"stream_idle_timeout_ms" yaml:"stream_idle_timeout_ms" toml:"stream_idle_timeout_ms"`
	StrictChunkOrder    bool `json:"strict_chunk_order" yaml:"strict_chunk_order" toml:"strict_chunk_order"`

	// Unload drain budget.
	DrainTimeoutMS int `json:"drain_timeout_ms" yaml:"drain_timeout_ms" toml:"drain_timeout_ms"`
}

// PushTimeout converts the millisecond knob, zero meaning unset.
func (c Config) PushTimeout() time.Duration {
	return time.Duration(c.PushTimeoutMS) * time.Millisecond
}

// MaxBatchWait converts the millisecond knob, zero meaning unset.
func (c Config) MaxBatchWait() time.Duration {
	return time.Duration(c.MaxBatchWaitMS) * time.Millisecond
}

// StreamIdleTimeout converts the millisecond knob, zero meaning disabled.
func (c Config) StreamIdleTimeout() time.Duration {
	return time.Duration(c.StreamIdleTimeoutMS) * time.Millisecond
}

// DrainTimeout converts the millisecond knob, zero meaning unset.
func (c Config) DrainTimeout() time.Duration {
	return time.Duration(c.DrainTimeoutMS) * time.Millisecond
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
