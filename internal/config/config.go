// internal/config/config.go
//
// This package handles runtime settings and the .overview directory structure.
// Every project that runs the overview gets a .overview/ folder in its root.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/kingrea/overview/internal/control"
)

const (
	// OverviewDir is the name of the directory we create in each project
	OverviewDir = ".overview"

	// EnvPrefix prefixes every environment override (OVERVIEW_STAGE, ...).
	EnvPrefix = "OVERVIEW"

	configFileName = "config.yaml"
	logFileName    = "overview.log"
)

const defaultConfigYAML = `# overview configuration
# Every key can be overridden with an OVERVIEW_<KEY> environment variable
# (dots become underscores, e.g. OVERVIEW_BRIDGE_PORT) or a command line flag.

# Installation context the proposal is resolved for.
stage: initial
mode: installation
kind: initial
language: en_US

# Paths are relative to this directory.
control_file: control.yaml
modules_dir: modules
export_dir: exports
# Modules commit their settings below target_dir when the screen proceeds.
target_dir: target

bridge:
  host: 127.0.0.1
  port: 7340
`

// BridgeConfig configures the HTTP display driver.
type BridgeConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Settings models .overview/config.yaml after environment overrides.
type Settings struct {
	Stage       string       `mapstructure:"stage"`
	Mode        string       `mapstructure:"mode"`
	Kind        string       `mapstructure:"kind"`
	Language    string       `mapstructure:"language"`
	ControlFile string       `mapstructure:"control_file"`
	ModulesDir  string       `mapstructure:"modules_dir"`
	ExportDir   string       `mapstructure:"export_dir"`
	TargetDir   string       `mapstructure:"target_dir"`
	Bridge      BridgeConfig `mapstructure:"bridge"`
}

// Config holds the runtime configuration for the overview.
type Config struct {
	// ProjectDir is the directory the overview was started from
	ProjectDir string

	// OverviewProjectDir is ProjectDir/.overview
	OverviewProjectDir string

	Settings Settings
}

// InitDir creates the .overview directory structure in the given project
// directory. Existing files are left untouched.
//
// Structure created:
// .overview/
// ├── logs/          <- overview.log journal
// ├── modules/       <- YAML and Go script modules
// ├── exports/       <- exported configurations
// ├── config.yaml
// └── control.yaml   <- proposal screens and module lists
func InitDir(projectDir string) error {
	root := filepath.Join(projectDir, OverviewDir)

	dirs := []string{
		filepath.Join(root, "logs"),
		filepath.Join(root, "modules"),
		filepath.Join(root, "exports"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}

	if err := ensureFile(filepath.Join(root, configFileName), defaultConfigYAML); err != nil {
		return err
	}
	if err := ensureFile(filepath.Join(root, control.DefaultFileName), control.DefaultYAML); err != nil {
		return err
	}
	return nil
}

// NewViper returns a viper instance carrying the defaults and the
// OVERVIEW_* environment binding. Callers may bind command line flags to it
// before passing it to Load.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("stage", "initial")
	v.SetDefault("mode", "installation")
	v.SetDefault("kind", "initial")
	v.SetDefault("language", "en_US")
	v.SetDefault("control_file", control.DefaultFileName)
	v.SetDefault("modules_dir", "modules")
	v.SetDefault("export_dir", "exports")
	v.SetDefault("target_dir", "target")
	v.SetDefault("bridge.host", "127.0.0.1")
	v.SetDefault("bridge.port", 7340)

	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads .overview/config.yaml (if present) through v and resolves
// relative paths against the .overview directory. A nil v uses NewViper.
func Load(projectDir string, v *viper.Viper) (*Config, error) {
	if v == nil {
		v = NewViper()
	}
	cfg := &Config{
		ProjectDir:         projectDir,
		OverviewProjectDir: filepath.Join(projectDir, OverviewDir),
	}

	path := cfg.ConfigPath()
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	settings.normalize(cfg.OverviewProjectDir)
	if err := settings.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.Settings = settings
	return cfg, nil
}

// ConfigPath returns the on-disk location for the config file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.OverviewProjectDir, configFileName)
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.OverviewProjectDir, "logs")
}

// LogPath returns the journal file path.
func (c *Config) LogPath() string {
	return filepath.Join(c.LogsDir(), logFileName)
}

// ControlPath returns the control file path.
func (c *Config) ControlPath() string {
	return c.Settings.ControlFile
}

// ModulesDir returns the directory scanned for plugin modules.
func (c *Config) ModulesDir() string {
	return c.Settings.ModulesDir
}

// ExportDir returns the directory export files are written to.
func (c *Config) ExportDir() string {
	return c.Settings.ExportDir
}

// TargetDir returns the directory modules commit their settings to.
func (c *Config) TargetDir() string {
	return c.Settings.TargetDir
}

// Key returns the proposal key the settings select.
func (c *Config) Key() control.Key {
	return control.Key{Stage: c.Settings.Stage, Mode: c.Settings.Mode, Kind: c.Settings.Kind}
}

// BridgeAddr returns host:port for the HTTP driver.
func (c *Config) BridgeAddr() string {
	return fmt.Sprintf("%s:%d", c.Settings.Bridge.Host, c.Settings.Bridge.Port)
}

// LoadControl reads the control file, falling back to the built-in document
// when the project has none.
func (c *Config) LoadControl() (control.Document, error) {
	path := c.ControlPath()
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return control.Default(), nil
	}
	return control.LoadFile(path)
}

func (s *Settings) normalize(base string) {
	s.Stage = strings.TrimSpace(s.Stage)
	s.Mode = strings.TrimSpace(s.Mode)
	s.Kind = strings.TrimSpace(s.Kind)
	s.Language = strings.TrimSpace(s.Language)
	s.ControlFile = resolvePath(base, s.ControlFile)
	s.ModulesDir = resolvePath(base, s.ModulesDir)
	s.ExportDir = resolvePath(base, s.ExportDir)
	s.TargetDir = resolvePath(base, s.TargetDir)
	s.Bridge.Host = strings.TrimSpace(s.Bridge.Host)
}

func (s Settings) validate() error {
	if s.Stage == "" {
		return fmt.Errorf("stage is required")
	}
	if s.Mode == "" {
		return fmt.Errorf("mode is required")
	}
	if s.Kind == "" {
		return fmt.Errorf("kind is required")
	}
	if s.Bridge.Port < 0 || s.Bridge.Port > 65535 {
		return fmt.Errorf("bridge.port must be between 0 and 65535")
	}
	return nil
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureFile(path, contents string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(contents), 0o644)
}
