package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kiranshivaraju/pixgen/pkg/models"
)

// Config holds all configuration for pixgen. The CLI only needs PixAI and
// Output; the server also uses Server, Database and Redis.
type Config struct {
	PixAI      PixAIConfig
	Poll       PollConfig
	Output     OutputConfig
	Generation models.GenerationConfig
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Minio      MinioConfig
}

type PixAIConfig struct {
	APIKey      string
	Endpoint    string
	ServiceName string
	HTTPTimeout time.Duration
}

type PollConfig struct {
	Interval    time.Duration
	Timeout     time.Duration // 0 means unbounded
	MaxAttempts int           // 0 means unbounded
}

type OutputConfig struct {
	Dir string
}

type ServerConfig struct {
	Port      int
	Env       string
	RateLimit int // requests per minute per API key
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// MinioConfig enables the artifact mirror when Endpoint is set.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Enabled reports whether a mirror endpoint is configured.
func (m MinioConfig) Enabled() bool { return m.Endpoint != "" }

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := load()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadServer is Load plus the settings only the HTTP server needs.
func LoadServer() (*Config, error) {
	cfg := load()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := cfg.validateServer(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabase reads only the database settings, for tools that need nothing else.
func LoadDatabase() (DatabaseConfig, error) {
	db := load().Database
	if db.URL == "" {
		return db, fmt.Errorf("DATABASE_URL is required")
	}
	return db, nil
}

func load() *Config {
	return &Config{
		PixAI: PixAIConfig{
			APIKey:      strings.TrimSpace(os.Getenv("PIXAI_API_KEY")),
			Endpoint:    envString("PIXAI_ENDPOINT", "https://api.pixai.art/graphql"),
			ServiceName: envString("PIXAI_SERVICE_NAME", "PixAI"),
			HTTPTimeout: envDuration("PIXAI_HTTP_TIMEOUT", 60*time.Second),
		},
		Poll: PollConfig{
			Interval:    envDuration("PIXAI_POLL_INTERVAL", 5*time.Second),
			Timeout:     envDuration("PIXAI_POLL_TIMEOUT", 0),
			MaxAttempts: envInt("PIXAI_POLL_MAX_ATTEMPTS", 0),
		},
		Output: OutputConfig{
			Dir: envString("PIXAI_OUTPUT_DIR", "."),
		},
		Generation: generationDefaults(),
		Server: ServerConfig{
			Port:      envInt("PIXGEN_PORT", 8080),
			Env:       envString("PIXGEN_ENV", "development"),
			RateLimit: envInt("PIXGEN_RATE_LIMIT", 30),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Minio: MinioConfig{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    envString("MINIO_BUCKET", "pixgen"),
			UseSSL:    envBool("MINIO_USE_SSL", false),
		},
	}
}

// generationDefaults collects the PIXAI_* generation options that are set.
// Unset variables stay out of the config so the service default applies.
func generationDefaults() models.GenerationConfig {
	var opts []models.GenerationOption
	if v := os.Getenv("PIXAI_NEGATIVE_PROMPT"); v != "" {
		opts = append(opts, models.WithNegativePrompt(v))
	}
	if v, ok := lookupInt("PIXAI_SAMPLING_STEPS"); ok {
		opts = append(opts, models.WithSamplingSteps(v))
	}
	if v, ok := lookupFloat("PIXAI_CFG_SCALE"); ok {
		opts = append(opts, models.WithCfgScale(v))
	}
	if v, ok := lookupFloat("PIXAI_UPSCALE"); ok {
		opts = append(opts, models.WithUpscale(v))
	}
	if v, ok := lookupInt("PIXAI_WIDTH"); ok {
		opts = append(opts, models.WithWidth(v))
	}
	if v, ok := lookupInt("PIXAI_HEIGHT"); ok {
		opts = append(opts, models.WithHeight(v))
	}
	if v := os.Getenv("PIXAI_SAMPLER"); v != "" {
		opts = append(opts, models.WithSampler(v))
	}
	if v := os.Getenv("PIXAI_MODEL_ID"); v != "" {
		opts = append(opts, models.WithModelID(v))
	}
	if v, ok := lookupBool("PIXAI_ENABLE_TILE"); ok {
		opts = append(opts, models.WithEnableTile(v))
	}
	return models.NewGenerationConfig(opts...)
}

func (c *Config) validate() error {
	if c.PixAI.APIKey == "" {
		return fmt.Errorf("PIXAI_API_KEY is required")
	}
	if !strings.HasPrefix(c.PixAI.Endpoint, "http://") && !strings.HasPrefix(c.PixAI.Endpoint, "https://") {
		return fmt.Errorf("PIXAI_ENDPOINT must start with http:// or https://, got %q", c.PixAI.Endpoint)
	}
	if c.PixAI.HTTPTimeout <= 0 {
		return fmt.Errorf("PIXAI_HTTP_TIMEOUT must be positive, got %s", c.PixAI.HTTPTimeout)
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("PIXAI_POLL_INTERVAL must be positive, got %s", c.Poll.Interval)
	}
	if c.Poll.Timeout < 0 {
		return fmt.Errorf("PIXAI_POLL_TIMEOUT must not be negative, got %s", c.Poll.Timeout)
	}
	if c.Poll.MaxAttempts < 0 {
		return fmt.Errorf("PIXAI_POLL_MAX_ATTEMPTS must not be negative, got %d", c.Poll.MaxAttempts)
	}
	if c.Minio.Enabled() && (c.Minio.AccessKey == "" || c.Minio.SecretKey == "") {
		return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when MINIO_ENDPOINT is set")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if c.Server.RateLimit <= 0 {
		return fmt.Errorf("PIXGEN_RATE_LIMIT must be positive, got %d", c.Server.RateLimit)
	}
	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if i, ok := lookupInt(key); ok {
		return i
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if b, ok := lookupBool(key); ok {
		return b
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func lookupInt(key string) (int, bool) {
	i, err := strconv.Atoi(os.Getenv(key))
	return i, err == nil
}

func lookupFloat(key string) (float64, bool) {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	return f, err == nil
}

func lookupBool(key string) (bool, bool) {
	b, err := strconv.ParseBool(os.Getenv(key))
	return b, err == nil
}
