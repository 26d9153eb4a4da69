package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// maxUpwardSearchLevels limits how far up the directory tree to search
// for a config file.
const maxUpwardSearchLevels = 10

var configFileUsed string

// GetConfigFileUsed returns the path of the config file loaded by the
// last Load call, or empty when none was found.
func GetConfigFileUsed() string { return configFileUsed }

// configExistsIn checks if an extdev config file exists in dir.
func configExistsIn(dir string) string {
	for _, name := range []string{"extdev.yaml", "extdev.yml"} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findProjectRoot searches upward from the working directory for an
// extdev config file; falls back to the working directory itself.
func findProjectRoot() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	dir := cwd
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if configExistsIn(dir) != "" {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return cwd
}

// Load loads configuration from the config file, environment
// variables, and CLI flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	projectRoot := findProjectRoot()
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			projectRoot = filepath.Dir(abs)
		}
	}

	// 1. Defaults.
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"project_dir":    projectRoot,
		"extensions_dir": DefaultExtensionsDir,
		"api_base_url":   DefaultAPIBaseURL,
		"log_format":     DefaultLogFormat,
		"verbose":        false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file.
	if cfgFile == "" {
		cfgFile = configExistsIn(projectRoot)
	}
	configFileUsed = cfgFile
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment variables: EXTDEV_API_TOKEN -> api_token.
	if err := k.Load(env.Provider("EXTDEV_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "EXTDEV_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags, only those explicitly set.
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Resolve the extensions dir against the project root.
	if !filepath.IsAbs(cfg.ExtensionsDir) {
		cfg.ExtensionsDir = filepath.Join(cfg.ProjectDir, cfg.ExtensionsDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks structural validity. Directory existence is checked
// by the commands that need it, so help and init work anywhere.
func (c *Config) Validate() error {
	if c.ExtensionsDir == "" {
		return fmt.Errorf("extensions_dir is required")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// ValidateDirectories checks that the extensions directory exists.
func (c *Config) ValidateDirectories() error {
	if _, err := os.Stat(c.ExtensionsDir); os.IsNotExist(err) {
		return fmt.Errorf("extensions directory does not exist: %s\nHint: run `extdev init` to scaffold your first extension", c.ExtensionsDir)
	}
	return nil
}
