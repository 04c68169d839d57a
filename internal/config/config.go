package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	apperrors "github.com/pablopda/linux-speech-tools/internal/errors"
	"github.com/pablopda/linux-speech-tools/internal/segment"
)

// EnvPrefix prefixes every environment override, e.g. SPEECH_SERVER_PORT.
const EnvPrefix = "SPEECH"

// Config holds all application settings.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Chunking ChunkingConfig `mapstructure:"chunking"`
	TTS      TTSConfig      `mapstructure:"tts"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig configures the HTTP listener. Timeouts are in seconds.
type ServerConfig struct {
	Port         int    `mapstructure:"port" validate:"gt=0,lte=65535"`
	ReadTimeout  int    `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout int    `mapstructure:"write_timeout" validate:"gte=0"`
	BasePath     string `mapstructure:"base_path"`
}

// ChunkingConfig mirrors segment.Config. Language is a code or name
// understood by segment.ParseLanguage; empty means detect per request.
type ChunkingConfig struct {
	TargetSize      int     `mapstructure:"target_size"`
	MinSize         int     `mapstructure:"min_size"`
	MaxSize         int     `mapstructure:"max_size"`
	Language        string  `mapstructure:"language"`
	ConjunctionBias float64 `mapstructure:"conjunction_bias"`
}

// TTSConfig configures the upstream synthesis engine and how long texts are
// fanned out to it.
type TTSConfig struct {
	Endpoint         string  `mapstructure:"endpoint" validate:"required,url"`
	ApiKey           string  `mapstructure:"api_key"`
	Model            string  `mapstructure:"model" validate:"required"`
	DefaultVoice     string  `mapstructure:"default_voice" validate:"required"`
	MaxTextLength    int     `mapstructure:"max_text_length" validate:"gt=0"`
	RequestTimeout   int     `mapstructure:"request_timeout" validate:"gt=0"`
	WorkerCount      int     `mapstructure:"worker_count" validate:"gt=0"`
	RateLimit        float64 `mapstructure:"rate_limit" validate:"gte=0"`
	RateBurst        int     `mapstructure:"rate_burst" validate:"gte=0"`
	SegmentThreshold int     `mapstructure:"segment_threshold" validate:"gt=0"`
	RetryAttempts    uint64  `mapstructure:"retry_attempts"`
	SilenceMillis    int     `mapstructure:"silence_ms" validate:"gte=0"`
}

// CacheConfig configures the synthesis result cache.
type CacheConfig struct {
	Enabled                bool  `mapstructure:"enabled"`
	ExpirationMinutes      int   `mapstructure:"expiration_minutes" validate:"gte=0"`
	CleanupIntervalMinutes int   `mapstructure:"cleanup_interval_minutes" validate:"gte=0"`
	MaxTotalSize           int64 `mapstructure:"max_total_size" validate:"gte=0"`
}

// JobsConfig configures the async job store.
type JobsConfig struct {
	TTLMinutes             int `mapstructure:"ttl_minutes" validate:"gt=0"`
	CleanupIntervalMinutes int `mapstructure:"cleanup_interval_minutes" validate:"gt=0"`
}

// LogConfig configures logrus.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=json text"`
}

var (
	config Config
	once   sync.Once
)

// Load reads the configuration once per process. Later calls return the
// first result.
func Load(configPath string) (*Config, error) {
	var err error
	once.Do(func() {
		var cfg *Config
		cfg, err = Read(configPath)
		if err == nil {
			config = *cfg
		}
	})
	if err != nil {
		return nil, err
	}
	return &config, nil
}

// Get returns the configuration loaded by Load.
func Get() *Config {
	return &config
}

// Read builds a Config from defaults, the optional YAML file at configPath
// and SPEECH_* environment variables, in increasing priority.
func Read(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 60)
	v.SetDefault("server.write_timeout", 120)
	v.SetDefault("server.base_path", "")

	v.SetDefault("chunking.target_size", segment.DefaultTargetSize)
	v.SetDefault("chunking.min_size", segment.DefaultMinSize)
	v.SetDefault("chunking.max_size", segment.DefaultMaxSize)
	v.SetDefault("chunking.language", "")
	v.SetDefault("chunking.conjunction_bias", segment.DefaultConjunctionBias)

	v.SetDefault("tts.endpoint", "http://localhost:8880")
	v.SetDefault("tts.api_key", "")
	v.SetDefault("tts.model", "tts-1")
	v.SetDefault("tts.default_voice", "alloy")
	v.SetDefault("tts.max_text_length", 20000)
	v.SetDefault("tts.request_timeout", 30)
	v.SetDefault("tts.worker_count", 4)
	v.SetDefault("tts.rate_limit", 0)
	v.SetDefault("tts.rate_burst", 1)
	v.SetDefault("tts.segment_threshold", 500)
	v.SetDefault("tts.retry_attempts", 3)
	v.SetDefault("tts.silence_ms", 0)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.expiration_minutes", 1440)
	v.SetDefault("cache.cleanup_interval_minutes", 60)
	v.SetDefault("cache.max_total_size", 256<<20)

	v.SetDefault("jobs.ttl_minutes", 60)
	v.SetDefault("jobs.cleanup_interval_minutes", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and that the chunking section builds a
// valid segment.Config.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidConfiguration, err)
	}
	seg, err := c.Chunking.Segment()
	if err != nil {
		return err
	}
	_, err = segment.New(seg)
	return err
}

// Segment converts the chunking section into a segment.Config.
func (c ChunkingConfig) Segment() (segment.Config, error) {
	lang, err := segment.ParseLanguage(c.Language)
	if err != nil {
		return segment.Config{}, errors.Join(apperrors.ErrInvalidConfiguration, err)
	}
	return segment.Config{
		TargetSize:      c.TargetSize,
		MinSize:         c.MinSize,
		MaxSize:         c.MaxSize,
		Language:        lang,
		ConjunctionBias: c.ConjunctionBias,
	}, nil
}

// RequestTimeoutDuration returns tts.request_timeout as a duration.
func (c TTSConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}
