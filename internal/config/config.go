// Package config loads the engine's startup configuration: a .env file
// via joho/godotenv layered under process environment variables, plus
// the JSON config document described in §6.5 (broker_configs,
// datasource_configs, bot definitions, risk caps).
package config

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/xfactor-labs/tradeforge/internal/domain"
	"github.com/xfactor-labs/tradeforge/internal/enginerr"
	"github.com/xfactor-labs/tradeforge/internal/risk"
)

// Document is the top-level shape of the JSON config file the engine
// loads at startup.
type Document struct {
	MaxBots                   int                       `json:"max_bots"`
	StorePath                 string                    `json:"store_path"`
	APIAddr                   string                    `json:"api_addr"`
	BrokerConfigs             map[string]map[string]any `json:"broker_configs"`
	DataSourceConfigs         map[string]map[string]any `json:"datasource_configs"`
	DefaultBroker             string                    `json:"default_broker"`
	DefaultDataSource         string                    `json:"default_data_source"`
	MaxOrdersPerDay           int                       `json:"max_orders_per_day"`
	EvaluationIntervalMinutes int                       `json:"evaluation_interval_minutes"`
	Risk                      risk.Config               `json:"risk"`
	Bots                      []BotDefinition           `json:"bots"`
}

// BotDefinition is the on-disk shape a bot is created from at startup.
type BotDefinition struct {
	ID     string          `json:"id"`
	Scope  domain.AccountScope `json:"scope"`
	Config domain.BotConfig    `json:"config"`
	Mode   domain.OptimizerMode `json:"optimizer_mode"`
}

// Load reads envPath (if present, missing is not an error — matches
// godotenv.Load's convention of being a no-op when the file is absent in
// production) into the process environment, then reads and parses
// configPath as a Document.
func Load(envPath, configPath string) (Document, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return Document{}, enginerr.Client("loading env file %s: %v", envPath, err)
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return Document{}, enginerr.Client("reading config file %s: %v", configPath, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, enginerr.Client("parsing config file %s: %v", configPath, err)
	}

	applyDefaults(&doc)
	return doc, nil
}

func applyDefaults(doc *Document) {
	if doc.MaxBots <= 0 {
		doc.MaxBots = 25
	}
	if doc.StorePath == "" {
		doc.StorePath = envOr("TRADEFORGE_STORE_PATH", "tradeforge.db")
	}
	if doc.APIAddr == "" {
		doc.APIAddr = envOr("TRADEFORGE_API_ADDR", ":8080")
	}
	if doc.Risk == (risk.Config{}) {
		doc.Risk = risk.DefaultConfig()
	}
	if doc.MaxOrdersPerDay <= 0 {
		doc.MaxOrdersPerDay = 100
	}
	if doc.EvaluationIntervalMinutes <= 0 {
		doc.EvaluationIntervalMinutes = 15
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// EnvInt reads an integer environment variable, falling back when unset
// or unparseable.
func EnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
