package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/pipetop/internal/errors"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the config file looked for in the current directory.
	ConfigFileName = "pipetop.yaml"
	// GlobalConfigDir is the directory for the per-user config.
	GlobalConfigDir = ".config/pipetop"
	// GlobalConfigFile is the per-user config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes environment overrides, e.g. PIPETOP_API_ADDRESS.
	EnvPrefix = "PIPETOP"
)

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. pipetop.yaml in the current directory
// 3. ~/.config/pipetop/config.yaml
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}
	local := filepath.Join(cwd, ConfigFileName)
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}

	if home, err := os.UserHomeDir(); err == nil && home != "" {
		global := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
		if _, err := os.Stat(global); err == nil {
			return global, nil
		}
	}

	return "", nil
}

// Load reads the config at path over the defaults, then applies PIPETOP_*
// environment overrides. An empty path means defaults plus environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if os.IsNotExist(err) {
				return nil, errors.WrapWithCode(err, errors.ErrConfig,
					"Config file not found",
					"Specify one with --config, or run without a config file to use defaults")
			}
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to read config file",
				"Check the file exists and is valid YAML")
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		where := "the environment"
		if path != "" {
			where = path
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the values in "+where)
	}
	return cfg, nil
}

// LoadOrDefault finds and loads the config, falling back to defaults plus
// environment when there is no file.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// setDefaults registers every key so environment overrides are picked up
// by Unmarshal even when the file does not mention them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.address", DefaultAddress)
	v.SetDefault("api.url", "")
	v.SetDefault("api.transport", DefaultTransport)
	v.SetDefault("api.timeout", DefaultTimeout.String())
	v.SetDefault("api.lost_after", DefaultLostAfter)
	v.SetDefault("dashboard.refresh_interval", DefaultRefreshInterval.String())
	v.SetDefault("dashboard.tick_interval", DefaultTickInterval.String())
	v.SetDefault("dashboard.renderer", DefaultRenderer)
	v.SetDefault("dashboard.sort", DefaultSort)
	v.SetDefault("dashboard.no_color", false)
	v.SetDefault("dashboard.trend_size", DefaultTrendSize)
	v.SetDefault("log.file", "")
	v.SetDefault("log.debug", false)
}
