package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the illustration service
type Config struct {
	General      GeneralConfig      `mapstructure:"general"`
	Server       ServerConfig       `mapstructure:"server"`
	LLM          LLMConfig          `mapstructure:"llm"`
	Illustration IllustrationConfig `mapstructure:"illustration"`
	Search       SearchConfig       `mapstructure:"search"`
	Storage      StorageConfig      `mapstructure:"storage"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LLMConfig contains the completion backend configuration.
// The endpoint is OpenAI-compatible; BaseURL may point at any server
// exposing /chat/completions and /models.
type LLMConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	CompletionModel string        `mapstructure:"completion_model"`
	VisionModel     string        `mapstructure:"vision_model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.CompletionModel) == "" {
		return fmt.Errorf("llm.completion_model is required")
	}
	if strings.TrimSpace(l.VisionModel) == "" {
		return fmt.Errorf("llm.vision_model is required")
	}
	return nil
}

// IllustrationConfig contains the pipeline behaviour knobs.
type IllustrationConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	MaxQueries          int           `mapstructure:"max_queries"`
	MinMessageLength    int           `mapstructure:"min_message_length"`
	CandidatesPerSource int           `mapstructure:"candidates_per_source"`
	SearchPreference    string        `mapstructure:"search_preference"` // smart|both|encyclopedic|web
	AutoMode            bool          `mapstructure:"auto_mode"`
	RestoreSettleDelay  time.Duration `mapstructure:"restore_settle_delay"`
}

func (i IllustrationConfig) Validate() error {
	switch i.SearchPreference {
	case "", "smart", "both", "encyclopedic", "web":
	default:
		return fmt.Errorf("illustration.search_preference must be one of smart|both|encyclopedic|web, got %q", i.SearchPreference)
	}
	if i.MaxQueries < 0 {
		return fmt.Errorf("illustration.max_queries must be >= 0")
	}
	return nil
}

// Normalize applies defaults for unset illustration values.
func (i IllustrationConfig) Normalize() IllustrationConfig {
	if i.MaxQueries == 0 {
		i.MaxQueries = 3
	}
	if i.MinMessageLength == 0 {
		i.MinMessageLength = 80
	}
	if i.CandidatesPerSource == 0 {
		i.CandidatesPerSource = 6
	}
	if i.SearchPreference == "" {
		i.SearchPreference = "smart"
	}
	if i.RestoreSettleDelay == 0 {
		i.RestoreSettleDelay = 500 * time.Millisecond
	}
	return i
}

// SearchConfig contains the image search backend settings.
type SearchConfig struct {
	Wikipedia WikipediaConfig `mapstructure:"wikipedia"`
	Serper    SerperConfig    `mapstructure:"serper"`
	Timeout   time.Duration   `mapstructure:"timeout"`
	Retries   int             `mapstructure:"retries"`
}

// WikipediaConfig configures the encyclopedic strategy.
type WikipediaConfig struct {
	Language          string `mapstructure:"language"`
	FallbackLanguage  string `mapstructure:"fallback_language"`
	MinArticleResults int    `mapstructure:"min_article_results"`
	MinImageWidth     int    `mapstructure:"min_image_width"`
}

// Normalize applies defaults for unset wikipedia values.
func (w WikipediaConfig) Normalize() WikipediaConfig {
	if w.Language == "" {
		w.Language = "en"
	}
	if w.FallbackLanguage == "" {
		w.FallbackLanguage = "zh"
	}
	if w.MinArticleResults == 0 {
		w.MinArticleResults = 3
	}
	if w.MinImageWidth == 0 {
		w.MinImageWidth = 200
	}
	return w
}

// SerperConfig configures the web image strategy. An empty APIKey
// disables the strategy (it returns no candidates, not an error).
type SerperConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Backend  string         `mapstructure:"backend"` // postgres|redis|memory
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

func (s StorageConfig) Validate() error {
	switch s.Backend {
	case "", "memory":
		return nil
	case "postgres":
		return s.Postgres.Validate()
	case "redis":
		return s.Redis.Validate()
	default:
		return fmt.Errorf("storage.backend must be one of postgres|redis|memory, got %q", s.Backend)
	}
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN assembles a connection string from the configured fields.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	host := p.Host
	port := p.Port
	ssl := p.SSLMode
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "5432"
	}
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, host, port, p.DBName, ssl)
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// LoadConfig loads config from file
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")

	v.SetDefault("general.default_timeout", 15*time.Second)
	v.SetDefault("server.address", ":10030")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 800)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("illustration.enabled", true)
	v.SetDefault("illustration.auto_mode", true)
	v.SetDefault("search.timeout", 15*time.Second)
	v.SetDefault("search.retries", 1)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)
		v.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("ILLUSTRO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// config file is optional: env vars and defaults can carry a full setup
		var nf viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &nf) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Illustration = cfg.Illustration.Normalize()
	cfg.Search.Wikipedia = cfg.Search.Wikipedia.Normalize()

	if err := cfg.LLM.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Illustration.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
