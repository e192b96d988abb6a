package config

import (
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// EnvConfigPath is the environment variable carrying an absolute path to the
// configuration file.
const EnvConfigPath = "FILEWATCHREST_CONFIG"

// Loader provides methods for loading configuration from various sources.
type Loader interface {
	// Load loads configuration with the following precedence:
	// 1. Configuration file (if resolved)
	// 2. Default values
	//
	// Returns the merged, validated configuration or an error.
	Load() (*Config, error)

	// LoadFromFile loads configuration from a specific file.
	LoadFromFile(path string) (*Config, error)
}

// loader implements the Loader interface.
type loader struct {
	configPath string
}

// NewLoader creates a new configuration loader for the given path. An empty
// path causes Load to use ResolvePath's fallback chain.
func NewLoader(configPath string) Loader {
	return &loader{configPath: configPath}
}

// ResolvePath applies the configuration path resolution order:
// 1. flagPath (--config/-c)
// 2. the first element of positional that exists as a file
// 3. the FILEWATCHREST_CONFIG environment variable
// 4. the platform-specific default path
func ResolvePath(flagPath string, positional []string) string {
	if flagPath != "" {
		return flagPath
	}
	for _, p := range positional {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	if envPath := os.Getenv(EnvConfigPath); envPath != "" {
		return envPath
	}
	return defaultConfigPath()
}

// Load implements Loader.Load.
func (l *loader) Load() (*Config, error) {
	cfg := Default()

	configPath := l.configPath
	if configPath == "" {
		configPath = ResolvePath("", nil)
	}

	if configPath != "" {
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileCfg, err := l.LoadFromFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
			}
			cfg = l.mergeConfigs(cfg, fileCfg)
		} else if l.configPath != "" {
			// An explicitly requested path that doesn't exist is fatal.
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile implements Loader.LoadFromFile.
func (l *loader) LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := jsonAPI.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	return &cfg, nil
}

// mergeConfigs merges file configuration into default configuration.
//
// File values override defaults, but only if they are non-zero — this lets
// an operator's config.json specify only the fields they care about.
func (l *loader) mergeConfigs(base, override *Config) *Config {
	result := *base

	if len(override.Folders) > 0 {
		result.Folders = override.Folders
	}
	if override.APIEndpoint != "" {
		result.APIEndpoint = override.APIEndpoint
	}
	if override.BearerToken != "" {
		result.BearerToken = override.BearerToken
	}
	// Bools always take the override's value: there is no way to
	// distinguish "false" from "unset" in a merge-by-zero-value scheme, so
	// boolean fields are expected to always be present in the file.
	result.PostFileContents = override.PostFileContents
	result.MoveProcessedFiles = override.MoveProcessedFiles
	result.IncludeSubdirectories = override.IncludeSubdirectories
	result.EnableCircuitBreaker = override.EnableCircuitBreaker

	if override.ProcessedFolder != "" {
		result.ProcessedFolder = override.ProcessedFolder
	}
	if len(override.AllowedExtensions) > 0 {
		result.AllowedExtensions = override.AllowedExtensions
	}
	if override.DebounceMs > 0 {
		result.DebounceMs = override.DebounceMs
	}
	if override.Retries > 0 {
		result.Retries = override.Retries
	}
	if override.RetryDelayMs > 0 {
		result.RetryDelayMs = override.RetryDelayMs
	}
	if override.ChannelCapacity > 0 {
		result.ChannelCapacity = override.ChannelCapacity
	}
	if override.MaxParallelSends > 0 {
		result.MaxParallelSends = override.MaxParallelSends
	}
	if override.WatcherMaxRestartAttempts > 0 {
		result.WatcherMaxRestartAttempts = override.WatcherMaxRestartAttempts
	}
	if override.WatcherRestartDelayMs > 0 {
		result.WatcherRestartDelayMs = override.WatcherRestartDelayMs
	}
	if override.WaitForFileReadyMs > 0 {
		result.WaitForFileReadyMs = override.WaitForFileReadyMs
	}
	if override.MaxContentBytes > 0 {
		result.MaxContentBytes = override.MaxContentBytes
	}
	if override.StreamingThresholdBytes > 0 {
		result.StreamingThresholdBytes = override.StreamingThresholdBytes
	}
	if override.CircuitBreakerFailureThreshold > 0 {
		result.CircuitBreakerFailureThreshold = override.CircuitBreakerFailureThreshold
	}
	if override.CircuitBreakerOpenDurationMs > 0 {
		result.CircuitBreakerOpenDurationMs = override.CircuitBreakerOpenDurationMs
	}
	if override.DiagnosticsURLPrefix != "" {
		result.DiagnosticsURLPrefix = override.DiagnosticsURLPrefix
	}
	if override.OtelEndpoint != "" {
		result.OtelEndpoint = override.OtelEndpoint
	}
	if override.Logging.Level != "" {
		result.Logging.Level = override.Logging.Level
	}
	if override.Logging.Output != "" {
		result.Logging.Output = override.Logging.Output
	}
	if override.Logging.Format != "" {
		result.Logging.Format = override.Logging.Format
	}

	return &result
}

// Load is a convenience function equivalent to NewLoader(path).Load().
// An empty path resolves via ResolvePath's fallback chain.
func Load(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// LoadFromFile is a convenience function equivalent to
// NewLoader(path).LoadFromFile(path), merged over Default() with the same
// rules as Load, followed by Validate.
func LoadFromFile(path string) (*Config, error) {
	cfg, err := NewLoader(path).LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	merged := (&loader{}).mergeConfigs(Default(), cfg)
	if err := merged.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return merged, nil
}

// Save writes the configuration to a JSON file.
//
// Creates parent directories if they don't exist. File is created with 0600
// permissions (read/write for owner only) because it may carry a bearer
// token.
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := jsonAPI.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
