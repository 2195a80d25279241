package config

import (
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"collabcanvas/ink"
)

// Load reads configuration from a yaml file and environment variables.
// The file is searched for in paths, or the working directory when none
// are given. A missing file is not an error. An empty environment variable
// overrides its default, so COLLABCANVAS_REDIS_ADDR= selects the in-process
// bus.
func Load(logger *slog.Logger, fileName string, paths ...string) (*Config, error) {
	v := viper.New()

	inkDefaults := ink.DefaultOptions()
	v.SetDefault("server.address", ":8081")
	v.SetDefault("server.jwtSecret", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("database.url", "postgres://localhost:5432/collabcanvas")
	v.SetDefault("discovery.service", "_collabcanvas._tcp")
	v.SetDefault("discovery.domain", "local.")
	v.SetDefault("discovery.timeout", "5s")
	v.SetDefault("agent.address", ":8080")
	v.SetDefault("agent.serverURL", "")
	v.SetDefault("agent.document", "default")
	v.SetDefault("agent.cachePath", "collabcanvas-agent.db")
	v.SetDefault("agent.uiDir", "../ui")
	v.SetDefault("ink.smoothingWindow", inkDefaults.SmoothingWindow)
	v.SetDefault("ink.tolerance", inkDefaults.Tolerance)
	v.SetDefault("ink.minimumPoints", inkDefaults.MinimumPoints)
	v.SetDefault("ink.chaikinIterations", inkDefaults.ChaikinIterations)
	v.SetDefault("log.level", "info")

	v.SetConfigName(fileName)
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("COLLABCANVAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		logger.Warn("Config file not found, relying on defaults and env vars", slog.String("name", fileName))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Ink.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
