package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/wikisync/internal/tagrules"
	pkgconfig "github.com/starford/wikisync/pkg/config"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	s := cfg.Settings()
	if s.RequiredType != "sync-docs" || s.FilterToken != "software-" || !s.FlattenPaths {
		t.Errorf("unexpected settings %+v", s)
	}
	if s.MappingFile != "file_mapping.json" || s.StaticDir != "static" {
		t.Errorf("unexpected paths in settings %+v", s)
	}
	if want := []string{"script", "downloaded", "korean"}; strings.Join(s.ExcludedStaticPatterns, ",") != strings.Join(want, ",") {
		t.Errorf("excluded static patterns = %v, want %v", s.ExcludedStaticPatterns, want)
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("OBSIDIAN_VAULT_PATH", "/data/vault")
	p := filepath.Join(t.TempDir(), "config.yaml")
	body := `
app:
  log_level: debug
vault:
  path: ${OBSIDIAN_VAULT_PATH}
target:
  path: /data/wiki
publish:
  required_type: wiki
  target_tags: [public, docs]
watch:
  debounce: 500ms
  interval: 0s
tag_rules:
  - match: recipe
    tags: [food]
    type: recipe
`
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(p, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Vault.Path != "/data/vault" {
		t.Errorf("vault path = %q", cfg.Vault.Path)
	}
	if cfg.App.LogLevel.String() != "DEBUG" {
		t.Errorf("log level = %v", cfg.App.LogLevel)
	}
	if cfg.Watch.Debounce != 500*time.Millisecond || cfg.Watch.Interval != 0 {
		t.Errorf("watch = %+v", cfg.Watch)
	}
	if got := cfg.Settings().TargetTags; len(got) != 2 || got[0] != "public" {
		t.Errorf("target tags = %v", got)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Target.MappingFile != "file_mapping.json" || cfg.Vault.StaticDir != "static" {
		t.Errorf("defaults lost: %+v %+v", cfg.Target, cfg.Vault)
	}
	props := tagrules.Apply(cfg.TagRules, "Best Recipe ever")
	if props.Type != "recipe" || len(props.Tags) != 1 {
		t.Errorf("tag rules not loaded: %+v", props)
	}
}

func TestConfig_Invalid(t *testing.T) {
	cases := map[string]func(*Config){
		"no vault":           func(c *Config) { c.Vault.Path = "" },
		"no target":          func(c *Config) { c.Target.Path = "" },
		"no required type":   func(c *Config) { c.Publish.RequiredType = "" },
		"no target tags":     func(c *Config) { c.Publish.TargetTags = nil },
		"blank target tag":   func(c *Config) { c.Publish.TargetTags = []string{""} },
		"escaping mapping":   func(c *Config) { c.Target.MappingFile = "../mapping.json" },
		"absolute static":    func(c *Config) { c.Vault.StaticDir = "/etc" },
		"bad port":           func(c *Config) { c.App.HTTP.Port = 70000 },
		"tiny debounce":      func(c *Config) { c.Watch.Debounce = time.Millisecond },
		"negative interval":  func(c *Config) { c.Watch.Interval = -time.Second },
		"empty rule matcher": func(c *Config) { c.TagRules = []tagrules.Rule{{Tags: []string{"x"}}} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestConfig_LedgerDisabled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Ledger.Path = ""
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Ledger.Enabled() {
		t.Error("empty ledger path should disable the ledger")
	}
}

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token"}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "token is empty") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}
