package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jwalitptl/medicure-api/pkg/logger"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	AI        AIConfig        `mapstructure:"ai"`
	Storage   StorageConfig   `mapstructure:"storage"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Log       logger.Config   `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
	PublicBaseURL   string        `mapstructure:"public_base_url"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres or memory
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN renders the lib/pq keyword connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// URL renders the postgres:// form used by migrations.
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	LockTTL      time.Duration `mapstructure:"lock_ttl"`
}

// Enabled is false when no URL is configured; in-process fallbacks are used then.
func (c RedisConfig) Enabled() bool {
	return c.URL != ""
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Issuer     string        `mapstructure:"issuer"`
	Expiry     time.Duration `mapstructure:"expiry"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

type AIConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	ChatModel       string        `mapstructure:"chat_model"`
	VisionModel     string        `mapstructure:"vision_model"`
	SpeechModel     string        `mapstructure:"speech_model"`
	SpeechVoice     string        `mapstructure:"speech_voice"`
	TranscribeModel string        `mapstructure:"transcribe_model"`
	Temperature     float32       `mapstructure:"temperature"`
	Timeout         time.Duration `mapstructure:"timeout"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

type StorageConfig struct {
	Driver   string      `mapstructure:"driver"` // local or minio
	LocalDir string      `mapstructure:"local_dir"`
	TempDir  string      `mapstructure:"temp_dir"`
	Minio    MinioConfig `mapstructure:"minio"`
}

type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type WorkerConfig struct {
	// InProcess runs the notification consumer inside the API process. It is
	// implied when Redis is not configured.
	InProcess            bool          `mapstructure:"in_process"`
	HealthPort           int           `mapstructure:"health_port"`
	RetryAttempts        int           `mapstructure:"retry_attempts"`
	RetryDelay           time.Duration `mapstructure:"retry_delay"`
	HandleTimeout        time.Duration `mapstructure:"handle_timeout"`
	MediaRetention       time.Duration `mapstructure:"media_retention"`
	MediaCleanupInterval time.Duration `mapstructure:"media_cleanup_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.max_upload_bytes", 25<<20)
	v.SetDefault("server.public_base_url", "/api/files")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "medicure")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.lock_ttl", 3*time.Minute)

	v.SetDefault("jwt.issuer", "medicure-api")
	v.SetDefault("jwt.expiry", 7*24*time.Hour)
	v.SetDefault("jwt.bcrypt_cost", 12)

	v.SetDefault("ai.chat_model", "gpt-4o")
	v.SetDefault("ai.vision_model", "gpt-4o")
	v.SetDefault("ai.speech_model", "tts-1")
	v.SetDefault("ai.speech_voice", "nova")
	v.SetDefault("ai.transcribe_model", "whisper-1")
	v.SetDefault("ai.temperature", 0.2)
	v.SetDefault("ai.timeout", 60*time.Second)
	v.SetDefault("ai.breaker_failures", 5)
	v.SetDefault("ai.breaker_timeout", 30*time.Second)

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local_dir", "uploads")
	v.SetDefault("storage.minio.bucket", "medicure-media")

	v.SetDefault("smtp.port", 587)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("worker.in_process", false)
	v.SetDefault("worker.health_port", 8081)
	v.SetDefault("worker.retry_attempts", 3)
	v.SetDefault("worker.retry_delay", 5*time.Second)
	v.SetDefault("worker.handle_timeout", 2*time.Minute)
	v.SetDefault("worker.media_retention", 24*time.Hour)
	v.SetDefault("worker.media_cleanup_interval", time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// LoadConfig reads config.yaml (optional) and MEDICURE_* environment overrides.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app/config")

	v.SetEnvPrefix("MEDICURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	bindSecrets(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// bindSecrets makes keys without defaults visible to AutomaticEnv during Unmarshal.
func bindSecrets(v *viper.Viper) {
	for _, key := range []string{
		"database.password",
		"redis.url",
		"jwt.secret",
		"ai.api_key",
		"ai.base_url",
		"storage.temp_dir",
		"storage.minio.endpoint",
		"storage.minio.access_key",
		"storage.minio.secret_key",
		"storage.minio.use_ssl",
		"smtp.host",
		"smtp.username",
		"smtp.password",
		"smtp.from",
	} {
		_ = v.BindEnv(key)
	}
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Worker.RetryAttempts <= 0 {
		return fmt.Errorf("worker.retry_attempts must be greater than 0")
	}
	if c.Worker.RetryDelay <= 0 {
		return fmt.Errorf("worker.retry_delay must be greater than 0")
	}
	switch c.Storage.Driver {
	case "local":
	case "minio":
		if c.Storage.Minio.Endpoint == "" {
			return fmt.Errorf("storage.minio.endpoint is required for the minio driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}
