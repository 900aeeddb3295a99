// Package config provides centralized configuration management for chatgate.
// It layers embedded defaults, an optional YAML file, environment variables
// and runtime overrides with viper, then decodes the result with mapstructure.
package config

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// AppName names the XDG directories and the default database file.
const AppName = "chatgate"

// EnvPrefix is prepended to every environment variable derived from a config key.
const EnvPrefix = "CHATGATE"

//go:embed defaults.yaml
var defaultsYAML []byte

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex

	explicitFile string
	usedFile     string
)

// EnvBinding maps extra environment variable names onto a config key.
// Names are consulted in order after the automatic CHATGATE_<KEY> variable.
type EnvBinding struct {
	Key   string
	Names []string
}

// SetConfigFile pins the config file used by subsequent Load calls.
// An empty path restores XDG discovery.
func SetConfigFile(path string) {
	configMu.Lock()
	defer configMu.Unlock()
	explicitFile = strings.TrimSpace(path)
}

// ConfigFileUsed returns the config file merged by the last Load, if any.
func ConfigFileUsed() string {
	configMu.RLock()
	defer configMu.RUnlock()
	return usedFile
}

// Load builds the configuration from all layers.
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(ctx context.Context, runtimeOverrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v, file, err := newViper()
	if err != nil {
		return nil, err
	}

	for _, overrides := range runtimeOverrides {
		for key, value := range flattenKeys("", overrides) {
			v.Set(key, value)
		}
	}

	cfg, err := decode(v.AllSettings())
	if err != nil {
		return nil, err
	}

	if cfg.Quota.DriverName() == DriverLibsql &&
		strings.TrimSpace(cfg.Quota.URL) == "" && strings.TrimSpace(cfg.Quota.Path) == "" {
		cfg.Quota.Path = DefaultStorePath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	configMu.Lock()
	appConfig = cfg
	usedFile = file
	configMu.Unlock()

	return cfg, nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func newViper() (*viper.Viper, string, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaultsYAML)); err != nil {
		return nil, "", fmt.Errorf("failed to read embedded defaults: %w", err)
	}

	file, err := resolveConfigFile()
	if err != nil {
		return nil, "", err
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.MergeInConfig(); err != nil {
			return nil, "", fmt.Errorf("failed to merge config file %s: %w", file, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, binding := range envBindings() {
		args := append([]string{binding.Key}, binding.Names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, "", fmt.Errorf("failed to bind env for %s: %w", binding.Key, err)
		}
	}

	return v, file, nil
}

// resolveConfigFile returns the explicit file, or the XDG default when it exists.
func resolveConfigFile() (string, error) {
	configMu.RLock()
	file := explicitFile
	configMu.RUnlock()

	if file != "" {
		if _, err := os.Stat(file); err != nil {
			return "", fmt.Errorf("config file %s: %w", file, err)
		}
		return file, nil
	}

	candidate := DefaultConfigPath()
	if candidate == "" {
		return "", nil
	}
	if _, err := os.Stat(candidate); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("config file %s: %w", candidate, err)
	}
	return candidate, nil
}

func decode(settings map[string]any) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// envBindings returns the short and legacy environment names.
// The names from the hosted deployment (Upstash, Google AI) keep working unchanged.
func envBindings() []EnvBinding {
	prefix := EnvPrefix + "_"

	return []EnvBinding{
		// Server config
		{Key: "server.host", Names: []string{prefix + "HOST"}},
		{Key: "server.port", Names: []string{prefix + "PORT"}},

		// Logging config
		{Key: "logging.level", Names: []string{prefix + "LOG_LEVEL"}},
		{Key: "logging.profile", Names: []string{prefix + "LOG_PROFILE"}},

		// Quota store
		{Key: "quota.driver", Names: []string{prefix + "QUOTA_DRIVER"}},
		{Key: "quota.url", Names: []string{prefix + "QUOTA_URL", "UPSTASH_REDIS_REST_URL"}},
		{Key: "quota.token", Names: []string{prefix + "QUOTA_TOKEN", "UPSTASH_REDIS_REST_TOKEN"}},
		{Key: "quota.path", Names: []string{prefix + "DB_PATH"}},

		// Generation credential
		{Key: "ailink.api_key", Names: []string{
			prefix + "AILINK_API_KEY",
			"GOOGLE_GENERATIVE_AI_API_KEY",
			"GOOGLE_API_KEY",
		}},
	}
}

// flattenKeys turns nested override maps into dotted viper keys.
func flattenKeys(prefix string, in map[string]any) map[string]any {
	out := make(map[string]any)
	for key, value := range in {
		full := strings.ToLower(key)
		if prefix != "" {
			full = prefix + "." + full
		}
		if nested, ok := value.(map[string]any); ok {
			for k, v := range flattenKeys(full, nested) {
				out[k] = v
			}
			continue
		}
		out[full] = value
	}
	return out
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(AppName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	return gfconfig.GetAppDataDir(AppName)
}

// DefaultStorePath returns the XDG-compliant path to the libsql quota database.
func DefaultStorePath() string {
	dataDir := DefaultDataDir()
	if strings.TrimSpace(dataDir) == "" {
		return "./" + AppName + ".db"
	}
	return filepath.Join(dataDir, AppName+".db")
}
