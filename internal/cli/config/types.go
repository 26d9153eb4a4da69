// Package config provides configuration management for the extdev CLI.
//
// Configuration is layered: built-in defaults, then the project's
// extdev.yaml, then EXTDEV_-prefixed environment variables, then CLI
// flags, highest last.
package config

// Config holds all CLI configuration options.
type Config struct {
	// ProjectDir is the project root; inferred when not set.
	ProjectDir string `koanf:"project_dir"`
	// ExtensionsDir holds one subdirectory per extension unit.
	ExtensionsDir string `koanf:"extensions_dir"`
	// APIBaseURL is the extension API root drafts are pushed to.
	APIBaseURL string `koanf:"api_base_url"`
	// APIToken is the bearer token for the extension API. Usually
	// supplied via EXTDEV_API_TOKEN rather than the config file.
	APIToken string `koanf:"api_token"`
	// StatusPort, when non-zero, serves the dev status API there.
	StatusPort int `koanf:"status_port"`
	// Verbose enables debug logging.
	Verbose bool `koanf:"verbose"`
	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`
}

// Default configuration values.
const (
	DefaultExtensionsDir = "extensions"
	DefaultAPIBaseURL    = "https://extensions.leapstack.dev/api/v1"
	DefaultLogFormat     = "text"
)
