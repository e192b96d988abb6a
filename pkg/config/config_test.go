package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NotNil(t, cfg)

	assert.Equal(t, "processed", cfg.ProcessedFolder)
	assert.Equal(t, 500, cfg.DebounceMs)
	assert.Equal(t, 4, cfg.MaxParallelSends)
	assert.Equal(t, "info", cfg.Logging.Level)

	// Default has no folders/endpoint set: an operator must supply these,
	// so Validate() on a bare Default() is expected to fail.
	assert.ErrorIs(t, cfg.Validate(), ErrNoFolders)
}

func validConfig() *Config {
	cfg := Default()
	cfg.Folders = []string{"/tmp/watched"}
	cfg.APIEndpoint = "https://example.com/ingest"
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{name: "valid default config", mutate: func(c *Config) {}, wantErr: nil},
		{name: "no folders", mutate: func(c *Config) { c.Folders = nil }, wantErr: ErrNoFolders},
		{name: "relative api endpoint", mutate: func(c *Config) { c.APIEndpoint = "not-a-url" }, wantErr: ErrInvalidAPIEndpoint},
		{name: "ftp api endpoint", mutate: func(c *Config) { c.APIEndpoint = "ftp://example.com" }, wantErr: ErrInvalidAPIEndpoint},
		{name: "empty diagnostics prefix", mutate: func(c *Config) { c.DiagnosticsURLPrefix = "" }, wantErr: ErrInvalidDiagnosticsURL},
		{name: "empty processed folder", mutate: func(c *Config) { c.ProcessedFolder = "" }, wantErr: ErrEmptyProcessedFolder},
		{name: "negative debounce", mutate: func(c *Config) { c.DebounceMs = -1 }, wantErr: ErrInvalidDebounceMs},
		{name: "negative retries", mutate: func(c *Config) { c.Retries = -1 }, wantErr: ErrInvalidRetries},
		{name: "zero channel capacity", mutate: func(c *Config) { c.ChannelCapacity = 0 }, wantErr: ErrInvalidChannelCapacity},
		{name: "zero max parallel sends", mutate: func(c *Config) { c.MaxParallelSends = 0 }, wantErr: ErrInvalidMaxParallelSends},
		{
			name: "circuit breaker enabled with zero threshold",
			mutate: func(c *Config) {
				c.EnableCircuitBreaker = true
				c.CircuitBreakerFailureThreshold = 0
			},
			wantErr: ErrInvalidCircuitBreakerFailureThreshold,
		},
		{
			name: "circuit breaker disabled tolerates zero threshold",
			mutate: func(c *Config) {
				c.EnableCircuitBreaker = false
				c.CircuitBreakerFailureThreshold = 0
			},
			wantErr: nil,
		},
		{name: "invalid log level", mutate: func(c *Config) { c.Logging.Level = "verbose" }, wantErr: ErrInvalidLogLevel},
		{name: "invalid log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: ErrInvalidLogFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		content string
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "valid config file",
			content: `{
  "folders": ["/path/to/watch1", "/path/to/watch2"],
  "api_endpoint": "https://example.com/ingest",
  "debounce_ms": 250,
  "max_parallel_sends": 8,
  "logging": {"level": "debug", "output": "stdout", "format": "json"}
}`,
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Len(t, cfg.Folders, 2)
				assert.Equal(t, 250, cfg.DebounceMs)
				assert.Equal(t, 8, cfg.MaxParallelSends)
				assert.Equal(t, "debug", cfg.Logging.Level)
			},
		},
		{
			name:    "invalid json",
			content: `{"folders": [`,
			wantErr: true,
		},
		{
			name:    "non-existent file",
			content: "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var filePath string
			if tt.name != "non-existent file" {
				filePath = filepath.Join(tmpDir, tt.name+".json")
				require.NoError(t, os.WriteFile(filePath, []byte(tt.content), 0600))
			} else {
				filePath = filepath.Join(tmpDir, "nonexistent.json")
			}

			cfg, err := LoadFromFile(filePath)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, cfg)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestResolvePath(t *testing.T) {
	tmpDir := t.TempDir()
	existing := filepath.Join(tmpDir, "positional.json")
	require.NoError(t, os.WriteFile(existing, []byte("{}"), 0600))

	t.Run("flag wins", func(t *testing.T) {
		assert.Equal(t, "/flag/path.json", ResolvePath("/flag/path.json", []string{existing}))
	})

	t.Run("positional arg when it exists as a file", func(t *testing.T) {
		assert.Equal(t, existing, ResolvePath("", []string{existing}))
	})

	t.Run("env var when no flag or positional", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "/env/config.json")
		assert.Equal(t, "/env/config.json", ResolvePath("", []string{filepath.Join(tmpDir, "missing.json")}))
	})

	t.Run("platform default as last resort", func(t *testing.T) {
		assert.Equal(t, defaultConfigPath(), ResolvePath("", nil))
	})
}

func TestLoadMergesOverFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "folders": ["/watched"],
  "api_endpoint": "https://example.com/ingest",
  "max_parallel_sends": 16
}`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"/watched"}, cfg.Folders)
	assert.Equal(t, 16, cfg.MaxParallelSends)
	// Fields absent from the file keep the default.
	assert.Equal(t, 500, cfg.DebounceMs)
}

func TestLoadRejectsExplicitMissingPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestSaveAndReload(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "config.json")

	cfg := validConfig()
	cfg.Logging.Level = "debug"

	require.NoError(t, Save(cfg, configPath))
	_, err := os.Stat(configPath)
	require.NoError(t, err)

	loaded, err := LoadFromFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, "debug", loaded.Logging.Level)
	assert.Equal(t, cfg.APIEndpoint, loaded.APIEndpoint)
}

func TestWatchPublishesOnValidChange(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")
	require.NoError(t, Save(validConfig(), path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := Watch(ctx, path)
	require.NoError(t, err)

	updated := validConfig()
	updated.MaxParallelSends = 32
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, Save(updated, path))

	select {
	case cfg := <-updates:
		assert.Equal(t, 32, cfg.MaxParallelSends)
	case <-time.After(3 * time.Second):
		t.Fatal("Watch did not publish an update in time")
	}
}

func BenchmarkValidate(b *testing.B) {
	cfg := validConfig()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := cfg.Validate(); err != nil {
			b.Fatal(err)
		}
	}
}
