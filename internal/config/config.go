// Package config loads service settings from, in rising precedence: built-in
// defaults, an optional zaloga.yaml, a .env file, ZALOGA_* environment
// variables and command-line flags.
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

// Store backends.
const (
	BackendSQL    = "sql"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config is the full service configuration.
type Config struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Seed            bool          `mapstructure:"seed"`

	Log struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"log"`

	Store struct {
		Backend string `mapstructure:"backend"`
	} `mapstructure:"store"`

	DB struct {
		Driver string `mapstructure:"driver"`
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"db"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
		Prefix   string `mapstructure:"prefix"`
	} `mapstructure:"redis"`

	AMQP struct {
		URL      string `mapstructure:"url"`
		Exchange string `mapstructure:"exchange"`
	} `mapstructure:"amqp"`

	Admin struct {
		User string `mapstructure:"user"`
	} `mapstructure:"admin"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("seed", false)
	v.SetDefault("log.path", "")
	v.SetDefault("store.backend", BackendSQL)
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "zaloga.sqlite3")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "zaloga")
	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "zaloga.events")
	v.SetDefault("admin.user", "Admin")
}

// flag name -> config key
var flagKeys = map[string]string{
	"addr":      "addr",
	"log":       "log.path",
	"store":     "store.backend",
	"db-driver": "db.driver",
	"db":        "db.dsn",
	"redis":     "redis.addr",
	"amqp":      "amqp.url",
	"user":      "admin.user",
	"seed":      "seed",
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("zaloga", pflag.ContinueOnError)
	fs.StringP("config", "c", "", "config file (default: ./zaloga.yaml if present)")
	fs.StringP("addr", "a", ":8080", "listen address")
	fs.StringP("log", "l", "", "log file path (default: stdout/stderr only)")
	fs.String("store", BackendSQL, "store backend: sql, redis or memory")
	fs.String("db-driver", "sqlite", "SQL driver: sqlite or mysql")
	fs.StringP("db", "d", "zaloga.sqlite3", "SQLite path or MySQL DSN")
	fs.String("redis", "localhost:6379", "Redis address")
	fs.String("amqp", "", "AMQP URL for event publishing (default: log events)")
	fs.StringP("user", "u", "Admin", "admin username on first run")
	fs.Bool("seed", false, "seed sample data into an empty store")
	return fs
}

// Usage returns the flag help text.
func Usage() string {
	return "Usage: zaloga [flags]\n\nFlags:\n" + newFlagSet().FlagUsages()
}

// Load parses args and the environment. It returns pflag.ErrHelp when help
// was requested.
func Load(args []string) (*Config, error) {
	// A missing .env is normal.
	_ = godotenv.Load()

	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ZALOGA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, fmt.Errorf("binding flag %s: %w", name, err)
		}
	}

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else {
		v.SetConfigName("zaloga")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the settings fit together.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	switch c.Store.Backend {
	case BackendSQL:
		if c.DB.Driver != "sqlite" && c.DB.Driver != "mysql" {
			return fmt.Errorf("unknown db driver %q", c.DB.Driver)
		}
		if c.DB.DSN == "" {
			return errors.New("db dsn must not be empty")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis addr must not be empty")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.AMQP.URL != "" && c.AMQP.Exchange == "" {
		return errors.New("amqp exchange must not be empty")
	}
	if c.Admin.User == "" {
		return errors.New("admin user must not be empty")
	}
	return nil
}
