package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig
	DB     DBConfig
	Redis  RedisConfig
	Auth   AuthConfig
	Admin  AdminConfig
	Chat   ChatConfig
	Forum  ForumConfig
	Store  StoreConfig
	Log    LogConfig
}

type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Enabled bool
	Addr    string
	Channel string
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	Issuer    string
}

// AdminConfig describes the account created on first boot. An empty password
// disables the bootstrap.
type AdminConfig struct {
	Username string
	Email    string
	Password string
}

type ChatConfig struct {
	HistoryLimit     int     `mapstructure:"history_limit"`
	SendBuffer       int     `mapstructure:"send_buffer"`
	MaxMessageSize   int64   `mapstructure:"max_message_size"`
	MaxContentLength int     `mapstructure:"max_content_length"`
	RatePerSecond    float64 `mapstructure:"rate_per_second"`
	RateBurst        int     `mapstructure:"rate_burst"`
}

type ForumConfig struct {
	MaxCommentDepth int `mapstructure:"max_comment_depth"`
}

type StoreConfig struct {
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

type LogConfig struct {
	Level  string
	Format string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	// Keys without a sensible default are still registered so that
	// AutomaticEnv values reach Unmarshal.
	v.SetDefault("db.dsn", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("admin.password", "")

	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 25)
	v.SetDefault("db.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.channel", "campus-hub:rooms")

	v.SetDefault("auth.token_ttl", 7*24*time.Hour)
	v.SetDefault("auth.issuer", "campus-hub")

	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.email", "admin@college.edu")

	v.SetDefault("chat.history_limit", 50)
	v.SetDefault("chat.send_buffer", 256)
	v.SetDefault("chat.max_message_size", 4096)
	v.SetDefault("chat.max_content_length", 2000)
	v.SetDefault("chat.rate_per_second", 5.0)
	v.SetDefault("chat.rate_burst", 10)

	v.SetDefault("forum.max_comment_depth", 5)

	v.SetDefault("store.retry_backoff", 100*time.Millisecond)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Flags returns the command line flags understood by Load.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("campus-hub", pflag.ContinueOnError)
	fs.String("addr", ":8080", "http service address")
	fs.String("config", "", "path to a config file")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	return fs
}

// Load reads configuration from an optional .env file, an optional config
// file, CAMPUS_* environment variables and the given flags, in increasing
// order of precedence.
func Load(fs *pflag.FlagSet) (*Config, error) {
	// A missing .env is normal outside of local development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CAMPUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := ""
	if fs != nil {
		if f := fs.Lookup("config"); f != nil {
			configPath = f.Value.String()
		}
		if err := v.BindPFlag("server.addr", fs.Lookup("addr")); err != nil {
			return nil, err
		}
		if err := v.BindPFlag("log.level", fs.Lookup("log-level")); err != nil {
			return nil, err
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate reports every missing or out of range setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.DB.DSN == "" {
		errs = append(errs, errors.New("db.dsn is not set"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is not set"))
	}
	if c.Forum.MaxCommentDepth < 0 {
		errs = append(errs, errors.New("forum.max_comment_depth must not be negative"))
	}
	if c.Chat.SendBuffer <= 0 {
		errs = append(errs, errors.New("chat.send_buffer must be positive"))
	}
	if c.Chat.HistoryLimit <= 0 {
		errs = append(errs, errors.New("chat.history_limit must be positive"))
	}
	return errors.Join(errs...)
}
