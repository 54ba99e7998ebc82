package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, aegis.yaml/.yml is searched for in
// the working directory, $HOME/.aegis and /etc/aegis. The search requires
// an explicit YAML extension so the binary itself is never matched.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file found; ReadInConfig will report
		// ConfigFileNotFoundError, which Load treats as "env vars only".
		viper.SetConfigName("aegis")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: AEGIS_SERVER_ADDR overrides
	// server.addr.
	viper.SetEnvPrefix("AEGIS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".aegis"),
		"/etc/aegis",
	}
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "aegis"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds nested config keys so environment variables can
// override them. Array fields (auth.api_keys) stay file-only.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("server.addr")
	_ = viper.BindEnv("server.read_timeout")
	_ = viper.BindEnv("server.write_timeout")
	_ = viper.BindEnv("server.log_level")

	_ = viper.BindEnv("rules.source")
	_ = viper.BindEnv("rules.path")

	_ = viper.BindEnv("engine.entrypoint_group")
	_ = viper.BindEnv("engine.instruction_budget")
	_ = viper.BindEnv("engine.cache_size")

	_ = viper.BindEnv("audit.path")

	_ = viper.BindEnv("telemetry.tracing_enabled")
}

// Load reads the configuration, applies environment overrides and
// defaults, and validates the result. A missing config file is not an
// error; the configuration then comes from environment variables and
// defaults alone.
func Load() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// FileUsed returns the path of the loaded configuration file, or "" when
// running from environment variables only.
func FileUsed() string {
	return viper.ConfigFileUsed()
}
