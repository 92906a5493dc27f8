package config

import (
	"fmt"

	"github.com/caarlos0/env/v6"
)

// Config holds the application configuration, parsed from the environment.
type Config struct {
	// Slack
	SlackBotToken string `env:"SLACK_BOT_TOKEN"`
	SlackAppToken string `env:"SLACK_APP_TOKEN"`

	// Weaviate
	WeaviateScheme string `env:"WEAVIATE_SCHEME" envDefault:"http"`
	WeaviateHost   string `env:"WEAVIATE_HOST" envDefault:"localhost:8080"`
	WeaviateAPIKey string `env:"WEAVIATE_API_KEY"`

	// Embeddings
	OllamaURL      string `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	EmbeddingModel string `env:"EMBEDDING_MODEL" envDefault:"nomic-embed-text"`
	RetrievalLimit int    `env:"RETRIEVAL_LIMIT" envDefault:"10"`

	// Assistant
	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	AssistantID  string `env:"OPENAI_ASSISTANT_ID"`

	// Storage
	DatabasePath string `env:"DATABASE_PATH" envDefault:"data/nur.db"`

	// Pipeline
	QueueSize      int `env:"QUEUE_SIZE" envDefault:"256"`
	Workers        int `env:"WORKERS" envDefault:"4"`
	SeenCacheLimit int `env:"SEEN_CACHE_LIMIT" envDefault:"4096"`

	// Inspection API; empty disables the server.
	APIAddr string `env:"API_ADDR" envDefault:":8090"`

	// Wiki (used by the ingest command)
	WikiBaseURL  string `env:"WIKI_BASE_URL"`
	WikiUsername string `env:"WIKI_USERNAME"`
	WikiAPIToken string `env:"WIKI_API_TOKEN"`
}

// Load parses configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.WeaviateHost == "" {
		return fmt.Errorf("WEAVIATE_HOST is required")
	}
	if c.WeaviateScheme != "http" && c.WeaviateScheme != "https" {
		return fmt.Errorf("WEAVIATE_SCHEME must be http or https")
	}
	if c.Workers < 1 {
		return fmt.Errorf("WORKERS must be at least 1")
	}

	return nil
}

// ValidateBot checks the fields the bot binary needs.
func (c *Config) ValidateBot() error {
	if c.SlackBotToken == "" {
		return fmt.Errorf("SLACK_BOT_TOKEN is required")
	}
	if c.SlackAppToken == "" {
		return fmt.Errorf("SLACK_APP_TOKEN is required")
	}
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.AssistantID == "" {
		return fmt.Errorf("OPENAI_ASSISTANT_ID is required")
	}

	return nil
}

// ValidateWiki checks the fields the ingest binary needs.
func (c *Config) ValidateWiki() error {
	if c.WikiBaseURL == "" {
		return fmt.Errorf("WIKI_BASE_URL is required")
	}

	return nil
}
