package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config struct to hold the configuration settings
type Config struct {
	Postgres      PostgresConfig      `yaml:"postgres"`
	NATS          NATSConfig          `yaml:"nats"`
	HTTP          HTTPConfig          `yaml:"http"`
	JWT           JWTConfig           `yaml:"jwt"`
	Game          GameConfig          `yaml:"game"`
	Oracle        OracleConfig        `yaml:"oracle"`
	Transcoder    TranscoderConfig    `yaml:"transcoder"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// PostgresConfig holds Postgres configuration.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// NATSConfig holds NATS configuration. An empty URL runs the event bus in
// process; the JetStream stores still require a server.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// HTTPConfig holds the API listener settings.
type HTTPConfig struct {
	Address        string   `yaml:"address"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	PublicBaseURL  string   `yaml:"public_base_url"`
}

// JWTConfig holds the audio grant signing settings.
type JWTConfig struct {
	Secret        string        `yaml:"secret"`
	AudioGrantTTL time.Duration `yaml:"audio_grant_ttl"`
}

// GameConfig holds lifecycle limits and storage names.
type GameConfig struct {
	TokenTTL       time.Duration `yaml:"token_ttl"`
	RoomCacheTTL   time.Duration `yaml:"room_cache_ttl"`
	RoundCacheTTL  time.Duration `yaml:"round_cache_ttl"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	AudioBucket    string        `yaml:"audio_bucket"`
	SongBucket     string        `yaml:"song_bucket"`
}

// OracleConfig points at an OpenAI-compatible chat completions endpoint used
// to grade guesses. An empty URL disables it.
type OracleConfig struct {
	URL     string        `yaml:"url"`
	Model   string        `yaml:"model"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// TranscoderConfig holds the ffmpeg location.
type TranscoderConfig struct {
	FFmpegPath string `yaml:"ffmpeg_path"`
}

// ObservabilityConfig holds configuration for observability components
type ObservabilityConfig struct {
	Environment    string `yaml:"environment"`
	MetricsAddress string `yaml:"metrics_address"`
}

// LoadConfig loads the configuration from a YAML file.
func LoadConfig(filename string) (*Config, error) {
	// Try reading configuration from the file first
	data, err := os.ReadFile(filename)
	if err != nil {
		// If the file is not found, try loading from environment variables
		return loadConfigFromEnv()
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// loadConfigFromEnv loads the configuration from environment variables.
func loadConfigFromEnv() (*Config, error) {
	var cfg Config

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	if cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("PUBLIC_BASE_URL"); v != "" {
		cfg.HTTP.PublicBaseURL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWT.Secret = v
	}
	if v := os.Getenv("SCORE_ORACLE_URL"); v != "" {
		cfg.Oracle.URL = v
	}
	if v := os.Getenv("SCORE_ORACLE_MODEL"); v != "" {
		cfg.Oracle.Model = v
	}
	if v := os.Getenv("SCORE_ORACLE_API_KEY"); v != "" {
		cfg.Oracle.APIKey = v
	}
	if v := os.Getenv("FFMPEG_PATH"); v != "" {
		cfg.Transcoder.FFmpegPath = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Observability.Environment = v
	}
	if v := os.Getenv("METRICS_ADDRESS"); v != "" {
		cfg.Observability.MetricsAddress = v
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_UPLOAD_BYTES value: %v", err)
		}
		cfg.Game.MaxUploadBytes = n
	}

	durations := []struct {
		env    string
		target *time.Duration
	}{
		{"AUDIO_GRANT_TTL", &cfg.JWT.AudioGrantTTL},
		{"TOKEN_TTL", &cfg.Game.TokenTTL},
		{"ROOM_CACHE_TTL", &cfg.Game.RoomCacheTTL},
		{"ROUND_CACHE_TTL", &cfg.Game.RoundCacheTTL},
		{"SCORE_ORACLE_TIMEOUT", &cfg.Oracle.Timeout},
	}
	for _, d := range durations {
		v := os.Getenv(d.env)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s value: %v", d.env, err)
		}
		*d.target = parsed
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.PublicBaseURL == "" {
		c.HTTP.PublicBaseURL = "http://localhost:5173"
	}
	if c.JWT.AudioGrantTTL == 0 {
		c.JWT.AudioGrantTTL = 2 * time.Hour
	}
	if c.Game.TokenTTL == 0 {
		c.Game.TokenTTL = 24 * time.Hour
	}
	if c.Game.RoomCacheTTL == 0 {
		c.Game.RoomCacheTTL = 24 * time.Hour
	}
	if c.Game.RoundCacheTTL == 0 {
		c.Game.RoundCacheTTL = time.Hour
	}
	if c.Game.MaxUploadBytes == 0 {
		c.Game.MaxUploadBytes = 10 << 20
	}
	if c.Game.AudioBucket == "" {
		c.Game.AudioBucket = "audio-recordings"
	}
	if c.Game.SongBucket == "" {
		c.Game.SongBucket = "song-audio"
	}
	if c.Oracle.Timeout == 0 {
		c.Oracle.Timeout = 20 * time.Second
	}
	if c.Observability.Environment == "" {
		c.Observability.Environment = "development"
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
