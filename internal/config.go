package internal

import (
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/wikisync/internal/mapping"
	"github.com/starford/wikisync/internal/publish"
	"github.com/starford/wikisync/internal/rewrite"
	"github.com/starford/wikisync/internal/tagrules"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Vault    VaultConfig       `yaml:"vault"`
	Target   TargetConfig      `yaml:"target"`
	Publish  PublishConfig     `yaml:"publish"`
	Ledger   LedgerConfig      `yaml:"ledger"`
	Watch    WatchConfig       `yaml:"watch"`
	Auth     AuthConfig        `yaml:"auth"`
	TagRules []tagrules.Rule   `yaml:"tag_rules"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.Target.Validate(); err != nil {
		return err
	}
	if err := c.Publish.Validate(); err != nil {
		return err
	}
	if err := c.Watch.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	for i, r := range c.TagRules {
		if strings.TrimSpace(r.Match) == "" {
			return fmt.Errorf("tag_rules[%d]: match is empty", i)
		}
	}
	return nil
}

// Settings converts the publish-related sections into Syncer settings.
func (c *Config) Settings() publish.Settings {
	return publish.Settings{
		RequiredType:           c.Publish.RequiredType,
		TargetTags:             c.Publish.TargetTags,
		FilterToken:            c.Publish.FilenameFilterToken,
		ExcludedStaticPatterns: c.Publish.ExcludedStaticPatterns,
		StripSections:          c.Publish.StripSections,
		StaticDir:              c.Vault.StaticDir,
		MappingFile:            c.Target.MappingFile,
		FlattenPaths:           c.Publish.FlattenPaths,
	}
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration. Only serve mode listens.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig locates the Obsidian vault.
type VaultConfig struct {
	Path string `yaml:"path"`
	// StaticDir is the vault-relative directory mirrored into the target.
	StaticDir string `yaml:"static_dir"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.StaticDir, validation.By(relativePath)),
	)
}

// TargetConfig locates the wiki checkout.
type TargetConfig struct {
	Path        string `yaml:"path"`
	MappingFile string `yaml:"mapping_file"`
}

// Validate validates the target configuration.
func (c *TargetConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.MappingFile, validation.Required, validation.By(relativePath)),
	)
}

// PublishConfig controls which notes are published and how they are rewritten.
type PublishConfig struct {
	RequiredType           string   `yaml:"required_type"`
	TargetTags             []string `yaml:"target_tags"`
	FilenameFilterToken    string   `yaml:"filename_filter_token"`
	ExcludedStaticPatterns []string `yaml:"excluded_static_patterns"`
	StripSections          []string `yaml:"strip_sections"`
	FlattenPaths           bool     `yaml:"flatten_paths"`
}

// Validate validates the publish configuration.
func (c *PublishConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.RequiredType, validation.Required),
		validation.Field(&c.TargetTags, validation.Required, validation.Each(validation.Required)),
	)
}

// LedgerConfig holds the SQLite run ledger location. An empty path disables it.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// Enabled reports whether runs are recorded.
func (c *LedgerConfig) Enabled() bool {
	return c.Path != ""
}

// WatchConfig controls serve mode triggers.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	// Interval schedules periodic runs; zero disables them.
	Interval time.Duration `yaml:"interval"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(10*time.Millisecond)),
		validation.Field(&c.Interval, validation.Min(time.Duration(0))),
	)
}

// AuthConfig holds authentication configuration for the HTTP API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// relativePath rejects absolute paths and paths climbing out of their root.
func relativePath(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	clean := path.Clean(strings.ReplaceAll(s, "\\", "/"))
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("must be a relative path inside its root")
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path:      "./vault",
			StaticDir: "static",
		},
		Target: TargetConfig{
			Path:        "./wiki",
			MappingFile: mapping.DefaultFileName,
		},
		Publish: PublishConfig{
			RequiredType:           "sync-docs",
			TargetTags:             []string{"reporty"},
			FilenameFilterToken:    "software-",
			ExcludedStaticPatterns: []string{"script", "downloaded", "korean"},
			StripSections:          append([]string(nil), rewrite.DefaultStripSections...),
			FlattenPaths:           true,
		},
		Ledger: LedgerConfig{
			Path: "./wikisync.db",
		},
		Watch: WatchConfig{
			Debounce: 2 * time.Second,
			Interval: 15 * time.Minute,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		TagRules: append([]tagrules.Rule(nil), tagrules.DefaultRules...),
	}
}
