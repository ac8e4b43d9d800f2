package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/LabPy/lantz-core/errors"
)

var globalConfig *Config
var viperInstance *viper.Viper

// Load reads the configuration, merging the config files and the
// environment. The result is cached; Reset drops the cache.
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v := initViper()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "unmarshalling config")
	}

	globalConfig = &config
	return globalConfig, nil
}

// GetViper returns the viper instance for advanced access.
func GetViper() *viper.Viper {
	return initViper()
}

// LoadWithViper loads configuration from a provided viper instance.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "unmarshalling config")
	}
	return &config, nil
}

// LoadFromFile loads configuration from a single file, ignoring the
// merged search paths and the environment.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "reading config file %s", configPath)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrapf(err, "unmarshalling config from %s", configPath)
	}
	return &config, nil
}

// Reset clears the cached configuration. Used by tests and by the
// watcher on reload.
func Reset() {
	globalConfig = nil
	viperInstance = nil
}

func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()

	v.SetEnvPrefix("LANTZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	// Merge config files in precedence order: system < user < project.
	mergeConfigFiles(v)

	viperInstance = v
	return v
}

// UserConfigDir returns ~/.lantz, creating it if needed.
func UserConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	dir := filepath.Join(home, ".lantz")
	os.MkdirAll(dir, 0o750)
	return dir
}

// findProjectConfig walks up from the working directory looking for a
// lantz.toml.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		path := filepath.Join(dir, "lantz.toml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// mergeConfigFiles merges the config files lowest precedence first, so
// a project file overrides the user file which overrides the system one.
func mergeConfigFiles(v *viper.Viper) {
	configPaths := []string{
		"/etc/lantz/config.toml",
	}
	if dir := UserConfigDir(); dir != "" {
		configPaths = append(configPaths,
			filepath.Join(dir, "lantz.toml"),
			filepath.Join(dir, "aliases.toml"))
	}
	if project := findProjectConfig(); project != "" {
		configPaths = append(configPaths, project)
	}

	for _, configPath := range configPaths {
		if _, err := os.Stat(configPath); err != nil {
			continue
		}
		layer := viper.New()
		layer.SetConfigFile(configPath)
		layer.SetConfigType("toml")
		if err := layer.ReadInConfig(); err != nil {
			continue
		}
		for key, value := range layer.AllSettings() {
			v.Set(key, value)
		}
	}
}

// Get returns a configuration value using dot notation.
func Get(key string) any {
	return initViper().Get(key)
}

// GetString returns a configuration value as string.
func GetString(key string) string {
	return initViper().GetString(key)
}

// GetInt returns a configuration value as int.
func GetInt(key string) int {
	return initViper().GetInt(key)
}

// GetBool returns a configuration value as bool.
func GetBool(key string) bool {
	return initViper().GetBool(key)
}
