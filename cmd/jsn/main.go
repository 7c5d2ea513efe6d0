package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/umputun/jsn/pkg/collector"
	"github.com/umputun/jsn/pkg/config"
	"github.com/umputun/jsn/pkg/feed"
	"github.com/umputun/jsn/pkg/logging"
	"github.com/umputun/jsn/pkg/repository"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"c" long:"config" env:"JSN_CONFIG" description:"path to config file"`

	DB struct {
		Driver   string `long:"driver" env:"DRIVER" choice:"mysql" choice:"sqlite" description:"database driver"`
		Host     string `long:"host" env:"HOST" description:"database host"`
		Port     int    `long:"port" env:"PORT" description:"database port"`
		User     string `long:"user" env:"USER" description:"database user"`
		Password string `long:"password" env:"PASSWORD" description:"database password"`
		Name     string `long:"name" env:"NAME" description:"database name"`
		Path     string `long:"path" env:"PATH" description:"sqlite database file"`
	} `group:"database" namespace:"db" env-namespace:"JSN_DB"`

	Feed struct {
		URL string `long:"url" env:"URL" description:"feed url"`
	} `group:"feed" namespace:"feed" env-namespace:"JSN_FEED"`

	Log struct {
		File string `long:"file" env:"FILE" description:"log file path"`
	} `group:"log" namespace:"log" env-namespace:"JSN_LOG"`

	Args struct {
		LogFile string `positional-arg-name:"log-file" description:"log file path, overrides --log.file"`
	} `positional-args:"yes"`

	DryRun bool `long:"dry-run" description:"fetch and check the feed without storing articles"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		lgr.Printf("[ERROR] %v", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Options{
		Debug:      opts.Debug,
		NoColor:    opts.NoColor,
		File:       cfg.Log.File,
		MaxBackups: cfg.Log.MaxBackups,
		Secrets:    []string{cfg.Database.Password},
	})
	if err != nil {
		lgr.Printf("[ERROR] failed to setup logging: %v", err)
		os.Exit(1)
	}

	logger.Logf("[INFO] starting jsn version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		logger.Logf("[INFO] termination signal received")
		cancel()
	}()

	_, err = run(ctx, cfg, opts.DryRun, logger)
	cancel()

	if err != nil {
		logger.Logf("[ERROR] %v", err)
		_ = logger.Close()
		os.Exit(1)
	}
	_ = logger.Close()
}

// run provisions the storage and makes a single collection pass.
// Only infrastructure failures are returned, collection problems are logged by the collector.
func run(ctx context.Context, cfg *config.Config, dryRun bool, log lgr.L) (collector.Stats, error) {
	prov := repository.NewProvisioner(repository.Config{
		Driver:         cfg.Database.Driver,
		Host:           cfg.Database.Host,
		Port:           cfg.Database.Port,
		User:           cfg.Database.User,
		Password:       cfg.Database.Password,
		Name:           cfg.Database.Name,
		Path:           cfg.Database.Path,
		ConnectTimeout: cfg.Database.ConnectTimeout,
	}, log)

	db, err := prov.Provision(ctx)
	if err != nil {
		return collector.Stats{}, fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Logf("[WARN] failed to close database: %v", err)
		}
		log.Logf("[INFO] database connection closed. program finished.")
	}()

	c := collector.New(collector.Params{
		Store: repository.NewArticleRepository(db),
		Source: feed.NewHTTPFetcher(feed.FetcherParams{
			Timeout:   cfg.Feed.Timeout,
			UserAgent: cfg.Feed.UserAgent,
			Attempts:  cfg.Feed.Retries,
		}),
		Parser: feed.NewParser(cfg.Feed.Encoding),
		URL:    cfg.Feed.URL,
		DryRun: dryRun,
		Logger: log,
	})
	return c.Collect(ctx), nil
}

// loadConfig reads the config file if set, applies CLI overrides and validates the result
func loadConfig(opts Opts) (*config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		var err error
		if cfg, err = config.Load(opts.Config); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	overrides := []struct {
		val string
		dst *string
	}{
		{opts.DB.Driver, &cfg.Database.Driver},
		{opts.DB.Host, &cfg.Database.Host},
		{opts.DB.User, &cfg.Database.User},
		{opts.DB.Password, &cfg.Database.Password},
		{opts.DB.Name, &cfg.Database.Name},
		{opts.DB.Path, &cfg.Database.Path},
		{opts.Feed.URL, &cfg.Feed.URL},
		{opts.Log.File, &cfg.Log.File},
		{opts.Args.LogFile, &cfg.Log.File},
	}
	for _, o := range overrides {
		if o.val != "" {
			*o.dst = o.val
		}
	}
	if opts.DB.Port != 0 {
		cfg.Database.Port = opts.DB.Port
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
