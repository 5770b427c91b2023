package config

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

//go:embed gmail.yaml
var gmailYAML []byte

type Config struct {
	Web       WebConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Embedding EmbeddingConfig
	Face      FaceConfig
	Google    GoogleConfig
	Log       LogConfig
	Gmail     GmailConfig
}

type WebConfig struct {
	Host           string        `env:"WEB_HOST" envDefault:"0.0.0.0"`
	Port           int           `env:"WEB_PORT" envDefault:"8080"`
	SessionSecret  string        `env:"WEB_SESSION_SECRET"`
	SessionTTL     time.Duration `env:"WEB_SESSION_TTL" envDefault:"24h"`
	BaseURL        string        `env:"WEB_BASE_URL" envDefault:"http://localhost:8080"`
	AllowedOrigins []string      `env:"WEB_ALLOWED_ORIGINS" envSeparator:","`
	SecureCookies  bool          `env:"WEB_SECURE_COOKIES" envDefault:"false"`
}

type DatabaseConfig struct {
	URL           string `env:"DATABASE_URL"` // postgres:// or mongodb:// (selects the backend)
	MaxOpenConns  int    `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns  int    `env:"DATABASE_MAX_IDLE_CONNS" envDefault:"5"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"email_app"`
}

type RedisConfig struct {
	URL string `env:"REDIS_URL"` // optional session persistence
}

type EmbeddingConfig struct {
	URL string `env:"EMBEDDING_URL" envDefault:"http://localhost:8000"`
	Dim int    `env:"EMBEDDING_DIM" envDefault:"128"`
}

type FaceConfig struct {
	MatchThreshold float64 `env:"FACE_MATCH_THRESHOLD" envDefault:"0.45"`
	MaxImageSize   int     `env:"FACE_MAX_IMAGE_SIZE" envDefault:"1280"` // frames are downscaled before extraction
}

type GoogleConfig struct {
	ClientID     string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	RedirectURL  string `env:"GOOGLE_REDIRECT_URL"` // defaults to WEB_BASE_URL + /gmail_callback
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
}

// GmailConfig holds the embedded Gmail defaults from gmail.yaml.
type GmailConfig struct {
	Scopes     []string    `yaml:"scopes"`
	Labels     GmailLabels `yaml:"labels"`
	PageSize   int         `yaml:"page_size"`
	DateLayout string      `yaml:"date_layout"`
}

type GmailLabels struct {
	Inbox string `yaml:"inbox"`
	Sent  string `yaml:"sent"`
}

// Backend returns the storage backend named by the DATABASE_URL scheme:
// "postgres", "mongo" or "" when no database is configured.
func (c *DatabaseConfig) Backend() (string, error) {
	if c.URL == "" {
		return "", nil
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", fmt.Errorf("parsing DATABASE_URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		return "postgres", nil
	case "mongodb", "mongodb+srv":
		return "mongo", nil
	default:
		return "", fmt.Errorf("unsupported DATABASE_URL scheme %q", u.Scheme)
	}
}

// CallbackURL returns the OAuth redirect URL registered with Google.
func (c *Config) CallbackURL() string {
	if c.Google.RedirectURL != "" {
		return c.Google.RedirectURL
	}
	return strings.TrimSuffix(c.Web.BaseURL, "/") + "/gmail_callback"
}

// GoogleConfigured reports whether OAuth client credentials are present.
func (c *Config) GoogleConfigured() bool {
	return c.Google.ClientID != "" && c.Google.ClientSecret != ""
}

func loadGmail() GmailConfig {
	var g GmailConfig
	if err := yaml.Unmarshal(gmailYAML, &g); err != nil {
		// Embedded file, only a broken build can get here.
		panic("failed to unmarshal embedded gmail.yaml: " + err.Error())
	}
	return g
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads the configuration from the given variables instead of the environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Gmail = loadGmail()

	if cfg.Face.MatchThreshold <= 0 {
		return nil, errors.New("FACE_MATCH_THRESHOLD must be positive")
	}
	if _, err := cfg.Database.Backend(); err != nil {
		return nil, err
	}
	return cfg, nil
}
