package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrBool(v bool) *bool          { return &v }

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "match_threshold": 0.75,
  "prune_horizon": "12h",
  "prune_interval": "30s",
  "fusion_threshold": 0.6,
  "emit_sample_on_empty": false,
  "semantic_timeout": "2s"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.MatchThreshold == nil || *cfg.MatchThreshold != 0.75 {
		t.Errorf("Expected MatchThreshold 0.75, got %v", cfg.MatchThreshold)
	}
	if cfg.GetPruneHorizon() != 12*time.Hour {
		t.Errorf("GetPruneHorizon() = %v, want 12h", cfg.GetPruneHorizon())
	}
	if cfg.GetPruneInterval() != 30*time.Second {
		t.Errorf("GetPruneInterval() = %v, want 30s", cfg.GetPruneInterval())
	}
	if cfg.GetFusionThreshold() != 0.6 {
		t.Errorf("GetFusionThreshold() = %f, want 0.6", cfg.GetFusionThreshold())
	}
	if cfg.GetEmitSampleOnEmpty() != false {
		t.Errorf("GetEmitSampleOnEmpty() = %v, want false", cfg.GetEmitSampleOnEmpty())
	}
	if cfg.GetSemanticTimeout() != 2*time.Second {
		t.Errorf("GetSemanticTimeout() = %v, want 2s", cfg.GetSemanticTimeout())
	}
}

func TestLoadTuningConfigPartial(t *testing.T) {
	// Partial config: only override the fusion threshold; everything else
	// should keep defaults.
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.json")

	partialJSON := `{
  "fusion_threshold": 0.8
}`
	if err := os.WriteFile(configPath, []byte(partialJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load partial config: %v", err)
	}

	if cfg.GetFusionThreshold() != 0.8 {
		t.Errorf("Expected overridden FusionThreshold 0.8, got %f", cfg.GetFusionThreshold())
	}
	if cfg.GetMatchThreshold() != 0.7 {
		t.Errorf("Expected default MatchThreshold 0.7, got %f", cfg.GetMatchThreshold())
	}
	if cfg.GetPruneHorizon() != 24*time.Hour {
		t.Errorf("Expected default PruneHorizon 24h, got %v", cfg.GetPruneHorizon())
	}
	if cfg.GetEmitSampleOnEmpty() != true {
		t.Errorf("Expected default EmitSampleOnEmpty true, got %v", cfg.GetEmitSampleOnEmpty())
	}
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadTuningConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	invalidJSON := `{
  "match_threshold": "invalid"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestLoadTuningConfigRejectsNonJSON(t *testing.T) {
	_, err := LoadTuningConfig("/some/path/config.yaml")
	if err == nil {
		t.Error("Expected error for non-.json extension, got nil")
	}
}

func TestLoadTuningConfigRejectsLargeFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "large.json")

	largeData := make([]byte, 2*1024*1024) // 2MB
	if err := os.WriteFile(configPath, largeData, 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
	}{
		{
			name:    "empty config is valid",
			cfg:     &TuningConfig{},
			wantErr: false,
		},
		{
			name: "valid thresholds",
			cfg: &TuningConfig{
				MatchThreshold:  ptrFloat64(0.7),
				FusionThreshold: ptrFloat64(0.65),
			},
			wantErr: false,
		},
		{
			name: "match threshold too low",
			cfg: &TuningConfig{
				MatchThreshold: ptrFloat64(-0.1),
			},
			wantErr: true,
		},
		{
			name: "fusion threshold too high",
			cfg: &TuningConfig{
				FusionThreshold: ptrFloat64(1.5),
			},
			wantErr: true,
		},
		{
			name: "invalid prune horizon",
			cfg: &TuningConfig{
				PruneHorizon: ptrString("invalid"),
			},
			wantErr: true,
		},
		{
			name: "invalid semantic timeout",
			cfg: &TuningConfig{
				SemanticTimeout: ptrString("soon"),
			},
			wantErr: true,
		},
		{
			name: "zero cache size",
			cfg: &TuningConfig{
				SemanticCacheSize: ptrInt(0),
			},
			wantErr: true,
		},
		{
			name: "sample flag alone is valid",
			cfg: &TuningConfig{
				EmitSampleOnEmpty: ptrBool(false),
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetterDefaults(t *testing.T) {
	cfg := &TuningConfig{}

	if cfg.GetMatchThreshold() != 0.7 {
		t.Errorf("GetMatchThreshold() = %f, want 0.7", cfg.GetMatchThreshold())
	}
	if cfg.GetMaxAssociationGap() != 300*time.Second {
		t.Errorf("GetMaxAssociationGap() = %v, want 300s", cfg.GetMaxAssociationGap())
	}
	if cfg.GetPruneHorizon() != 24*time.Hour {
		t.Errorf("GetPruneHorizon() = %v, want 24h", cfg.GetPruneHorizon())
	}
	if cfg.GetPruneInterval() != 60*time.Second {
		t.Errorf("GetPruneInterval() = %v, want 60s", cfg.GetPruneInterval())
	}
	if cfg.GetVelocityRefreshInterval() != 15*time.Second {
		t.Errorf("GetVelocityRefreshInterval() = %v, want 15s", cfg.GetVelocityRefreshInterval())
	}
	if cfg.GetSemanticTimeout() != 3*time.Second {
		t.Errorf("GetSemanticTimeout() = %v, want 3s", cfg.GetSemanticTimeout())
	}
	if cfg.GetSemanticCacheSize() != 1024 {
		t.Errorf("GetSemanticCacheSize() = %d, want 1024", cfg.GetSemanticCacheSize())
	}
	if cfg.GetSemanticCacheTTL() != 10*time.Minute {
		t.Errorf("GetSemanticCacheTTL() = %v, want 10m", cfg.GetSemanticCacheTTL())
	}
	if cfg.GetFusionThreshold() != 0.65 {
		t.Errorf("GetFusionThreshold() = %f, want 0.65", cfg.GetFusionThreshold())
	}
	if cfg.GetEmitSampleOnEmpty() != true {
		t.Errorf("GetEmitSampleOnEmpty() = %v, want true", cfg.GetEmitSampleOnEmpty())
	}
	if cfg.GetExternalTimeout() != 5*time.Second {
		t.Errorf("GetExternalTimeout() = %v, want 5s", cfg.GetExternalTimeout())
	}
}
