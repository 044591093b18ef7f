package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Pipeline.Focus.MaxRecords != 1000 || cfg.Pipeline.Focus.TopN != 15 {
		t.Errorf("focus limits = %+v", cfg.Pipeline.Focus)
	}
	if cfg.Pipeline.Broad.MaxRecords != 500 || cfg.Pipeline.Broad.TopN != 20 {
		t.Errorf("broad limits = %+v", cfg.Pipeline.Broad)
	}
	if cfg.Pipeline.InspectorTopN != 3 || cfg.Pipeline.MaxImages != 8 {
		t.Errorf("inspector defaults = %d/%d", cfg.Pipeline.InspectorTopN, cfg.Pipeline.MaxImages)
	}
	if cfg.Marketplaces.Sauto.CategoryID != 838 {
		t.Errorf("sauto category = %d", cfg.Marketplaces.Sauto.CategoryID)
	}
}

func TestLoadConfigYAMLAndEnvExpansion(t *testing.T) {
	t.Setenv("TEST_SAUTO_URL", "http://sauto.local")
	path := writeConfig(t, `
server:
  port: 9090
  pipeline_timeout: 90s
marketplaces:
  sauto:
    base_url: ${TEST_SAUTO_URL}
pipeline:
  focus:
    max_records: 300
    top_n: 10
  min_score: 40
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Server.PipelineTimeout != 90*time.Second {
		t.Errorf("pipeline timeout = %s", cfg.Server.PipelineTimeout)
	}
	if cfg.Marketplaces.Sauto.BaseURL != "http://sauto.local" {
		t.Errorf("sauto base url = %q", cfg.Marketplaces.Sauto.BaseURL)
	}
	if cfg.Pipeline.Focus.MaxRecords != 300 || cfg.Pipeline.Focus.TopN != 10 {
		t.Errorf("focus = %+v", cfg.Pipeline.Focus)
	}
	if cfg.Pipeline.Broad.MaxRecords != 500 {
		t.Errorf("broad defaults must survive a partial yaml: %+v", cfg.Pipeline.Broad)
	}
	if cfg.Pipeline.MinScore != 40 {
		t.Errorf("min score = %d", cfg.Pipeline.MinScore)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7000")
	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("SCRAPER_DETAIL_CONCURRENCY", "1")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.Port != 7000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("api key = %q", cfg.LLM.APIKey)
	}
	if !cfg.Redis.Enabled || cfg.Redis.URL != "redis://cache:6379/1" {
		t.Errorf("redis = %v %q", cfg.Redis.Enabled, cfg.Redis.URL)
	}
	if cfg.Scraper.DetailConcurrency != 1 {
		t.Errorf("detail concurrency = %d", cfg.Scraper.DetailConcurrency)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.LLM.Provider = "other" }},
		{"zero page size", func(c *Config) { c.Pipeline.PageSize = 0 }},
		{"zero broad top n", func(c *Config) { c.Pipeline.Broad.TopN = 0 }},
		{"min score above 100", func(c *Config) { c.Pipeline.MinScore = 101 }},
		{"unknown engine", func(c *Config) { c.Scraper.Engine = "curl" }},
		{"credits without database", func(c *Config) { c.Credits.Enabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}
