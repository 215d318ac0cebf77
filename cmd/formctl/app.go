package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formspec/pkg/choices"
	"github.com/goliatone/go-formspec/pkg/prompt"
)

const envPrefix = "FORMCTL_"

func env(name string) cli.ValueSourceChain {
	return cli.EnvVars(envPrefix + name)
}

// app carries what commands share: output streams, the prompt driver and
// the logger configured by the global flags.
type app struct {
	stdout io.Writer
	stderr io.Writer
	driver prompt.PromptDriver
	logger *slog.Logger
}

func newApp(stdout, stderr io.Writer, driver prompt.PromptDriver) *app {
	return &app{
		stdout: stdout,
		stderr: stderr,
		driver: driver,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (a *app) command() *cli.Command {
	return &cli.Command{
		Name:      "formctl",
		Usage:     "fill, validate and serve form specifications",
		Writer:    a.stdout,
		ErrWriter: a.stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Value:   "warn",
				Sources: env("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "text or json",
				Value:   "text",
				Sources: env("LOG_FORMAT"),
			},
		},
		Before: a.configureLogging,
		// exit codes are handled by main
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		Commands: []*cli.Command{
			a.fillCommand(),
			a.validateCommand(),
			a.lintCommand(),
			a.serveCommand(),
			a.importCommand(),
		},
	}
}

func (a *app) configureLogging(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	level, err := parseLevel(cmd.String("log-level"))
	if err != nil {
		return ctx, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cmd.String("log-format")) {
	case "json":
		a.logger = slog.New(slog.NewJSONHandler(a.stderr, opts))
	case "text", "":
		a.logger = slog.New(slog.NewTextHandler(a.stderr, opts))
	default:
		return ctx, fmt.Errorf("unknown log format %q", cmd.String("log-format"))
	}
	return ctx, nil
}

func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return level, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}

// Flags shared by the commands that open a spec.
func specFlags(requireModule bool) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "spec-dir",
			Usage:   "directory of spec documents",
			Value:   "specs",
			Sources: env("SPEC_DIR"),
		},
		&cli.StringFlag{
			Name:     "spec",
			Usage:    "spec name",
			Required: true,
			Sources:  env("SPEC"),
		},
		&cli.StringFlag{
			Name:     "module",
			Usage:    "module to fill",
			Required: requireModule,
			Sources:  env("MODULE"),
		},
		&cli.StringFlag{
			Name:  "section",
			Usage: "limit to one section of the module",
		},
	}
}

func choicesFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "choices-url",
			Usage:   "endpoint resolving dynamic choices",
			Sources: env("CHOICES_URL"),
		},
		&cli.StringFlag{
			Name:  "choices-results",
			Usage: "dot-path of the result array in choices responses",
			Value: "listing",
		},
	}
}

func fetcherFromFlags(cmd *cli.Command) choices.Fetcher {
	endpoint := cmd.String("choices-url")
	if endpoint == "" {
		return nil
	}
	return choices.NewHTTP(endpoint, choices.WithResultsPath(cmd.String("choices-results")))
}

// readValues decodes a YAML or JSON values file into a nested object.
func readValues(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read values: %w", err)
	}
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse values %s: %w", path, err)
	}
	return out, nil
}
