package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// envOverrides lists the settings that may come from the environment.
// Empty values leave the file configuration alone.
type envOverrides struct {
	APIKey       string `env:"FORGE_API_KEY"`
	Model        string `env:"FORGE_LLM_MODEL"`
	BaseURL      string `env:"FORGE_LLM_BASE_URL"`
	StoreBackend string `env:"FORGE_STORE_BACKEND"`
	RedisAddr    string `env:"FORGE_REDIS_ADDR"`
}

// ApplyEnv overlays environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	cfg.LLM.APIKey = firstNonEmpty(o.APIKey, cfg.LLM.APIKey)
	cfg.LLM.Model = firstNonEmpty(o.Model, cfg.LLM.Model)
	cfg.LLM.BaseURL = firstNonEmpty(o.BaseURL, cfg.LLM.BaseURL)
	cfg.Store.Backend = firstNonEmpty(o.StoreBackend, cfg.Store.Backend)
	cfg.Store.RedisAddr = firstNonEmpty(o.RedisAddr, cfg.Store.RedisAddr)
	return nil
}
