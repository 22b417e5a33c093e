package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a yaml configuration file over the defaults and applies
// environment overrides for credentials. A missing path yields the defaults
// plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file failed, err: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file failed, err: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv fills credentials from the environment. Values already present in
// the file win; the environment only supplies what is missing so secrets can
// stay out of checked-in config.
func (c *Config) applyEnv() {
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.VectorDB.Host == "" {
		c.VectorDB.Host = os.Getenv("MILVUS_HOST")
	}
	if c.VectorDB.Username == "" {
		c.VectorDB.Username = os.Getenv("MILVUS_USERNAME")
	}
	if c.VectorDB.Password == "" {
		c.VectorDB.Password = os.Getenv("MILVUS_PASSWORD")
	}
	if c.History.Endpoint == "" {
		c.History.Endpoint = os.Getenv("HISTORY_ENDPOINT")
	}
	if c.History.APIKey == "" {
		c.History.APIKey = os.Getenv("HISTORY_API_KEY")
	}
}
