package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	AI       AIConfig       `yaml:"ai"`
	Game     GameConfig     `yaml:"game"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	StaticDir    string        `yaml:"static_dir"`
}

type DatabaseConfig struct {
	MySQL  MySQLConfig  `yaml:"mysql"`
	Redis  RedisConfig  `yaml:"redis"`
	Qdrant QdrantConfig `yaml:"qdrant"`
}

type MySQLConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"api_key"`
	UseTLS     bool   `yaml:"use_tls"`
	Collection string `yaml:"collection"`
	VectorSize int    `yaml:"vector_size"`
}

type AIConfig struct {
	OpenAI OpenAIConfig `yaml:"openai"`
}

type OpenAIConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	ChatModel      string        `yaml:"chat_model"`
	ImageModel     string        `yaml:"image_model"`
	EmbeddingModel string        `yaml:"embedding_model"`
	MaxTokens      int           `yaml:"max_tokens"`
	Temperature    float64       `yaml:"temperature"`
	Timeout        time.Duration `yaml:"timeout"`
}

// PortraitConfig describes one character's reference portrait
type PortraitConfig struct {
	Path        string `yaml:"path"`
	Description string `yaml:"description"`
}

type GameConfig struct {
	MaxTurns                   int                       `yaml:"max_turns"`
	IntroPrompt                string                    `yaml:"intro_prompt"`
	ThemeChoices               []string                  `yaml:"theme_choices"`
	InitialImagePrompt         string                    `yaml:"initial_image_prompt"`
	UsePlaceholderInitialImage bool                      `yaml:"use_placeholder_initial_image"`
	Hero                       string                    `yaml:"hero"`
	Portraits                  map[string]PortraitConfig `yaml:"portraits"`
	ImageMaxAttempts           int                       `yaml:"image_max_attempts"`
	ImageRetryDelay            time.Duration             `yaml:"image_retry_delay"`
	BeatSearchLimit            int                       `yaml:"beat_search_limit"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply environment variable overrides
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.AI.OpenAI.APIKey = apiKey
	}
	if apiKey := os.Getenv("QDRANT_API_KEY"); apiKey != "" {
		cfg.Database.Qdrant.APIKey = apiKey
	}

	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.AI.OpenAI.ChatModel == "" {
		c.AI.OpenAI.ChatModel = "gpt-4o"
	}
	if c.AI.OpenAI.ImageModel == "" {
		c.AI.OpenAI.ImageModel = "gpt-image-1"
	}
	if c.AI.OpenAI.EmbeddingModel == "" {
		c.AI.OpenAI.EmbeddingModel = "text-embedding-3-small"
	}
	if c.AI.OpenAI.Timeout == 0 {
		c.AI.OpenAI.Timeout = 120 * time.Second
	}
	if c.Game.MaxTurns == 0 {
		c.Game.MaxTurns = 12
	}
	if c.Game.ImageMaxAttempts == 0 {
		c.Game.ImageMaxAttempts = 3
	}
	if c.Game.ImageRetryDelay == 0 {
		c.Game.ImageRetryDelay = 2 * time.Second
	}
	if c.Game.BeatSearchLimit == 0 {
		c.Game.BeatSearchLimit = 5
	}
	if c.Database.Qdrant.Collection == "" {
		c.Database.Qdrant.Collection = "story_beats"
	}
	if c.Database.Qdrant.VectorSize == 0 {
		c.Database.Qdrant.VectorSize = 1536
	}
}
