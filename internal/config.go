package internal

import (
	"fmt"

	"github.com/spf13/viper"
)

type QuellConfig struct {
	AppName string `mapstructure:"app_name"`

	Query struct {
		// MaxOptimizerPasses caps optimizer fixed-point iterations.
		MaxOptimizerPasses int `mapstructure:"max_optimizer_passes"`
		// PlanCacheSize is the number of compiled plans kept per engine.
		// Zero disables the cache.
		PlanCacheSize int `mapstructure:"plan_cache_size"`
	} `mapstructure:"query"`

	Log struct {
		Level string `mapstructure:"level"`
		Debug bool   `mapstructure:"debug"`
	} `mapstructure:"log"`
}

func LoadConfig(path string) (*QuellConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("app_name", "quell")
	v.SetDefault("query.max_optimizer_passes", 10)
	v.SetDefault("query.plan_cache_size", 128)
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg QuellConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig is used when no config file is given.
func DefaultConfig() *QuellConfig {
	cfg := &QuellConfig{AppName: "quell"}
	cfg.Query.MaxOptimizerPasses = 10
	cfg.Query.PlanCacheSize = 128
	cfg.Log.Level = "info"
	return cfg
}
