package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TuningConfig represents the root configuration for analysis tuning
// parameters. The schema matches the /api/v1/params endpoint so the same
// JSON can be used for both startup configuration and runtime updates.
// All fields are pointers: a field omitted from the JSON keeps its default,
// so partial configs are safe.
type TuningConfig struct {
	// Track store params
	MatchThreshold      *float64 `json:"match_threshold,omitempty"`
	MaxAssociationGap   *string  `json:"max_association_gap,omitempty"` // duration string like "300s"
	PruneHorizon        *string  `json:"prune_horizon,omitempty"`       // duration string like "24h"
	PruneInterval       *string  `json:"prune_interval,omitempty"`
	VelocityRefreshRate *string  `json:"velocity_refresh_interval,omitempty"`

	// Correlation params
	SemanticTimeout   *string `json:"semantic_timeout,omitempty"`
	SemanticCacheSize *int    `json:"semantic_cache_size,omitempty"`
	SemanticCacheTTL  *string `json:"semantic_cache_ttl,omitempty"`

	// Fusion params
	FusionThreshold   *float64 `json:"fusion_threshold,omitempty"`
	EmitSampleOnEmpty *bool    `json:"emit_sample_on_empty,omitempty"`
	ExternalTimeout   *string  `json:"external_timeout,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// The Get* methods provide the fallback defaults.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file is
// validated to ensure it has a .json extension and is under the max file
// size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.MatchThreshold != nil {
		if *c.MatchThreshold < 0 || *c.MatchThreshold > 1 {
			return fmt.Errorf("match_threshold must be between 0 and 1, got %f", *c.MatchThreshold)
		}
	}
	if c.FusionThreshold != nil {
		if *c.FusionThreshold < 0 || *c.FusionThreshold > 1 {
			return fmt.Errorf("fusion_threshold must be between 0 and 1, got %f", *c.FusionThreshold)
		}
	}
	if c.SemanticCacheSize != nil && *c.SemanticCacheSize < 1 {
		return fmt.Errorf("semantic_cache_size must be positive, got %d", *c.SemanticCacheSize)
	}

	durations := map[string]*string{
		"max_association_gap":       c.MaxAssociationGap,
		"prune_horizon":             c.PruneHorizon,
		"prune_interval":            c.PruneInterval,
		"velocity_refresh_interval": c.VelocityRefreshRate,
		"semantic_timeout":          c.SemanticTimeout,
		"semantic_cache_ttl":        c.SemanticCacheTTL,
		"external_timeout":          c.ExternalTimeout,
	}
	for name, v := range durations {
		if v != nil && *v != "" {
			if _, err := time.ParseDuration(*v); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
			}
		}
	}

	return nil
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

// GetMatchThreshold returns the match_threshold value or the default.
func (c *TuningConfig) GetMatchThreshold() float64 {
	if c.MatchThreshold == nil {
		return 0.7
	}
	return *c.MatchThreshold
}

// GetMaxAssociationGap parses and returns the max_association_gap value.
func (c *TuningConfig) GetMaxAssociationGap() time.Duration {
	return durationOr(c.MaxAssociationGap, 300*time.Second)
}

// GetPruneHorizon parses and returns the prune_horizon value.
func (c *TuningConfig) GetPruneHorizon() time.Duration {
	return durationOr(c.PruneHorizon, 24*time.Hour)
}

// GetPruneInterval parses and returns the prune_interval value.
func (c *TuningConfig) GetPruneInterval() time.Duration {
	return durationOr(c.PruneInterval, 60*time.Second)
}

// GetVelocityRefreshInterval parses and returns the velocity refresh rate.
func (c *TuningConfig) GetVelocityRefreshInterval() time.Duration {
	return durationOr(c.VelocityRefreshRate, 15*time.Second)
}

// GetSemanticTimeout parses and returns the semantic_timeout value.
func (c *TuningConfig) GetSemanticTimeout() time.Duration {
	return durationOr(c.SemanticTimeout, 3*time.Second)
}

// GetSemanticCacheSize returns the semantic_cache_size value or the default.
func (c *TuningConfig) GetSemanticCacheSize() int {
	if c.SemanticCacheSize == nil {
		return 1024
	}
	return *c.SemanticCacheSize
}

// GetSemanticCacheTTL parses and returns the semantic_cache_ttl value.
func (c *TuningConfig) GetSemanticCacheTTL() time.Duration {
	return durationOr(c.SemanticCacheTTL, 10*time.Minute)
}

// GetFusionThreshold returns the fusion_threshold value or the default.
func (c *TuningConfig) GetFusionThreshold() float64 {
	if c.FusionThreshold == nil {
		return 0.65
	}
	return *c.FusionThreshold
}

// GetEmitSampleOnEmpty returns the emit_sample_on_empty value or the default.
func (c *TuningConfig) GetEmitSampleOnEmpty() bool {
	if c.EmitSampleOnEmpty == nil {
		return true
	}
	return *c.EmitSampleOnEmpty
}

// GetExternalTimeout parses and returns the external_timeout value.
func (c *TuningConfig) GetExternalTimeout() time.Duration {
	return durationOr(c.ExternalTimeout, 5*time.Second)
}
