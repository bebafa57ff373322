package config

import (
	"github.com/andrew-solarstorm/go-packages/common"
)

type TokensConfig struct {
	// DBPath is the path to the BoltDB file for token-metadata persistence.
	DBPath string

	// PersistenceEnabled controls whether fetched metadata is saved to disk.
	PersistenceEnabled bool

	// PersistInterval is how often metadata is batch-saved (in seconds).
	PersistInterval int

	// MetadataTTLSeconds is the cache TTL for fetched token metadata.
	MetadataTTLSeconds int
}

func (c *TokensConfig) Key() string {
	return TOKENS_CONFIG_KEY
}

func (c *TokensConfig) Load() error {
	c.DBPath = common.GetEnvOrDefault("TOKENS_DB_PATH", "./data/swap-engine.db")
	c.PersistenceEnabled = common.GetEnvOrDefault("TOKENS_PERSISTENCE_ENABLED", "true") == "true"
	c.PersistInterval = common.GetEnvOrDefaultInt("TOKENS_PERSIST_INTERVAL", 30)
	c.MetadataTTLSeconds = common.GetEnvOrDefaultInt("TOKENS_METADATA_TTL", 3600)
	return nil
}

func (c *TokensConfig) Validate() error {
	return nil
}
