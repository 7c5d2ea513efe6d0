package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// supported database drivers
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

var dbNameRe = regexp.MustCompile(`^[A-Za-z0-9_$]+$`)

// Config holds the application configuration
type Config struct {
	Database Database `yaml:"database" json:"database" jsonschema:"description=Database configuration"`
	Feed     Feed     `yaml:"feed" json:"feed" jsonschema:"description=Feed source configuration"`
	Log      Log      `yaml:"log" json:"log" jsonschema:"description=Log output configuration"`
}

// Database holds connection parameters of the article storage
type Database struct {
	Driver         string        `yaml:"driver" json:"driver" jsonschema:"default=mysql,enum=mysql,enum=sqlite,description=Database driver"`
	Host           string        `yaml:"host" json:"host" jsonschema:"default=localhost,description=Database server host"`
	Port           int           `yaml:"port" json:"port" jsonschema:"default=3306,minimum=1,maximum=65535,description=Database server port"`
	User           string        `yaml:"user" json:"user" jsonschema:"default=root,description=Database user"`
	Password       string        `yaml:"password" json:"password" jsonschema:"description=Database password (can use environment variable)"`
	Name           string        `yaml:"name" json:"name" jsonschema:"default=read_news,description=Target database name"`
	Path           string        `yaml:"path" json:"path" jsonschema:"default=jsn.db,description=SQLite database file (sqlite driver only)"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout" jsonschema:"default=10s,description=Database dial timeout"`
}

// Feed holds the feed source settings
type Feed struct {
	URL       string        `yaml:"url" json:"url" jsonschema:"default=https://www.boannews.com/media/news_rss.xml,description=RSS feed URL"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=10s,description=HTTP request timeout"`
	Encoding  string        `yaml:"encoding" json:"encoding" jsonschema:"default=euc-kr,description=Legacy encoding of the feed body"`
	UserAgent string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=Mozilla/5.0 (compatible; JSN/1.0),description=User agent for feed requests"`
	Retries   int           `yaml:"retries" json:"retries" jsonschema:"default=1,minimum=1,description=Fetch attempts per run (1 means no retry)"`
}

// Log holds log output settings
type Log struct {
	File       string `yaml:"file" json:"file" jsonschema:"default=logs/jsn.log,description=Log file path"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups" jsonschema:"default=14,description=Number of rotated daily log files to keep"`
}

// Default returns configuration with all defaults applied
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	// set defaults for database
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverMySQL
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 3306
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "root"
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = "read_news"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "jsn.db"
	}
	if cfg.Database.ConnectTimeout == 0 {
		cfg.Database.ConnectTimeout = 10 * time.Second
	}

	// set defaults for feed
	if cfg.Feed.URL == "" {
		cfg.Feed.URL = "https://www.boannews.com/media/news_rss.xml"
	}
	if cfg.Feed.Timeout == 0 {
		cfg.Feed.Timeout = 10 * time.Second
	}
	if cfg.Feed.Encoding == "" {
		cfg.Feed.Encoding = "euc-kr"
	}
	if cfg.Feed.UserAgent == "" {
		cfg.Feed.UserAgent = "Mozilla/5.0 (compatible; JSN/1.0)"
	}
	if cfg.Feed.Retries == 0 {
		cfg.Feed.Retries = 1
	}

	// set defaults for log
	if cfg.Log.File == "" {
		cfg.Log.File = "logs/jsn.log"
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 14
	}
}

// Validate checks configuration for correctness
func Validate(cfg *Config) error {
	// validate database config
	switch cfg.Database.Driver {
	case DriverMySQL:
		if cfg.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if cfg.Database.Port < 1 || cfg.Database.Port > 65535 {
			return fmt.Errorf("database.port must be between 1 and 65535")
		}
		if cfg.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
		if !dbNameRe.MatchString(cfg.Database.Name) {
			return fmt.Errorf("database.name %q is not a valid identifier", cfg.Database.Name)
		}
	case DriverSQLite:
		if cfg.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite driver")
		}
	default:
		return fmt.Errorf("unsupported database.driver %q", cfg.Database.Driver)
	}

	// validate feed config
	u, err := url.Parse(cfg.Feed.URL)
	if err != nil {
		return fmt.Errorf("invalid feed.url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("feed.url must be an absolute http(s) URL, got %q", cfg.Feed.URL)
	}
	if cfg.Feed.Timeout < time.Second {
		return fmt.Errorf("feed.timeout must be at least 1 second")
	}
	if cfg.Feed.Retries < 1 {
		return fmt.Errorf("feed.retries must be at least 1")
	}
	if enc, _ := charset.Lookup(strings.TrimSpace(cfg.Feed.Encoding)); enc == nil {
		return fmt.Errorf("unknown feed.encoding %q", cfg.Feed.Encoding)
	}

	// validate log config
	if cfg.Log.MaxBackups < 0 {
		return fmt.Errorf("log.max_backups must be non-negative")
	}

	return nil
}
