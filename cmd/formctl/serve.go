package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formspec/pkg/choices"
	"github.com/goliatone/go-formspec/pkg/formspec"
	"github.com/goliatone/go-formspec/pkg/server"
	"github.com/goliatone/go-formspec/pkg/store"
)

// serveConfig is the server configuration file. Flags set on the command
// line override it.
type serveConfig struct {
	Addr       string         `yaml:"addr"`
	DB         string         `yaml:"db"`
	SpecDir    string         `yaml:"spec_dir"`
	Watch      bool           `yaml:"watch"`
	LogLevel   string         `yaml:"log_level"`
	ChoicesURL string         `yaml:"choices_url"`
	Extras     map[string]any `yaml:"extras"`
}

func defaultServeConfig() serveConfig {
	return serveConfig{
		Addr:    ":8080",
		DB:      "formctl.db",
		SpecDir: "specs",
	}
}

func loadServeConfig(path string) (serveConfig, error) {
	cfg := defaultServeConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (a *app) serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve form sessions over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "YAML configuration file", Sources: env("CONFIG")},
			&cli.StringFlag{Name: "addr", Usage: "listen address", Sources: env("ADDR")},
			&cli.StringFlag{Name: "db", Usage: "session database file", Sources: env("DB")},
			&cli.StringFlag{Name: "spec-dir", Usage: "directory of spec documents", Sources: env("SPEC_DIR")},
			&cli.BoolFlag{Name: "watch", Usage: "reload specs when files change", Sources: env("WATCH")},
			&cli.StringFlag{Name: "choices-url", Usage: "endpoint resolving dynamic choices", Sources: env("CHOICES_URL")},
		},
		Action: a.serve,
	}
}

// resolveServeConfig overlays the flags that were set onto the file
// configuration.
func resolveServeConfig(cmd *cli.Command) (serveConfig, error) {
	cfg, err := loadServeConfig(cmd.String("config"))
	if err != nil {
		return cfg, err
	}
	if cmd.IsSet("addr") {
		cfg.Addr = cmd.String("addr")
	}
	if cmd.IsSet("db") {
		cfg.DB = cmd.String("db")
	}
	if cmd.IsSet("spec-dir") {
		cfg.SpecDir = cmd.String("spec-dir")
	}
	if cmd.IsSet("watch") {
		cfg.Watch = cmd.Bool("watch")
	}
	if cmd.IsSet("choices-url") {
		cfg.ChoicesURL = cmd.String("choices-url")
	}
	if cmd.IsSet("log-level") || cfg.LogLevel == "" {
		cfg.LogLevel = cmd.String("log-level")
	}
	return cfg, nil
}

func (a *app) serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := resolveServeConfig(cmd)
	if err != nil {
		return err
	}

	logger := a.logger
	if !cmd.IsSet("log-format") {
		// daemons log JSON unless asked otherwise
		level, err := parseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = slog.New(slog.NewJSONHandler(a.stderr, &slog.HandlerOptions{Level: level}))
	}

	reloader, err := formspec.NewReloader(cfg.SpecDir, formspec.WithReloadLogger(logger))
	if err != nil {
		return err
	}
	if cfg.Watch {
		go func() {
			if err := reloader.Watch(ctx); err != nil {
				logger.Error("spec watch stopped", "error", err)
			}
		}()
	}

	sessions, err := store.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer sessions.Close()

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithLogLevel(cfg.LogLevel),
		server.WithExtras(cfg.Extras),
	}
	if cfg.ChoicesURL != "" {
		opts = append(opts, server.WithFetcher(choices.NewHTTP(cfg.ChoicesURL)))
	}
	srv := server.New(reloader, sessions, opts...)

	logger.Info("serving specs", "specs", reloader.Store().Names(), "addr", cfg.Addr, "db", cfg.DB)
	return srv.Start(ctx, cfg.Addr)
}
