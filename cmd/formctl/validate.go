package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/goliatone/go-formspec/pkg/form"
	"github.com/goliatone/go-formspec/pkg/formspec"
)

func (a *app) validateCommand() *cli.Command {
	flags := append(specFlags(true), choicesFlags()...)
	flags = append(flags, &cli.StringFlag{
		Name:     "values",
		Usage:    "YAML or JSON file of values to check",
		Required: true,
	})
	return &cli.Command{
		Name:   "validate",
		Usage:  "check a values file against a module",
		Flags:  flags,
		Action: a.validate,
	}
}

func (a *app) validate(ctx context.Context, cmd *cli.Command) error {
	initial, err := readValues(cmd.String("values"))
	if err != nil {
		return err
	}
	reg, err := openSpec(cmd.String("spec-dir"), cmd.String("spec"))
	if err != nil {
		return err
	}
	f, err := a.openForm(ctx, reg, cmd.String("module"), cmd.String("section"), cmd, form.WithInitialValues(initial))
	if err != nil {
		return err
	}
	defer f.Close()
	f.Wait()

	if !f.Validate() {
		errs := f.Errors()
		a.printErrors(errs)
		return cli.Exit(fmt.Sprintf("%d validation error(s)", len(errs)), 1)
	}
	fmt.Fprintln(a.stdout, "valid")
	return nil
}

func (a *app) lintCommand() *cli.Command {
	return &cli.Command{
		Name:  "lint",
		Usage: "check spec documents for mistakes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "spec-dir",
				Usage:   "directory of spec documents",
				Value:   "specs",
				Sources: env("SPEC_DIR"),
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "text or json",
				Value:   "text",
			},
		},
		Action: a.lint,
	}
}

type lintReport struct {
	File   string          `json:"file"`
	Result formspec.Result `json:"result"`
	Error  string          `json:"error,omitempty"`
}

func (a *app) lint(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.String("spec-dir")
	var reports []lintReport
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isSpecFile(path) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		reports = append(reports, lintFile(path))
		return nil
	})
	if err != nil {
		return fmt.Errorf("lint %s: %w", dir, err)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].File < reports[j].File })

	failed := 0
	for _, report := range reports {
		if report.Error != "" || !report.Result.Valid {
			failed++
		}
	}

	switch strings.ToLower(cmd.String("output")) {
	case "json":
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	default:
		for _, report := range reports {
			if report.Error != "" {
				fmt.Fprintf(a.stdout, "%s: %s\n", report.File, report.Error)
				continue
			}
			for _, issue := range report.Result.Issues {
				fmt.Fprintf(a.stdout, "%s: %s -> %s\n", report.File, issue.Path, issue.Message)
			}
		}
		fmt.Fprintf(a.stdout, "%d file(s) checked, %d with problems\n", len(reports), failed)
	}

	if failed > 0 {
		return cli.Exit("lint failed", 1)
	}
	return nil
}

func lintFile(path string) lintReport {
	report := lintReport{File: filepath.ToSlash(path)}
	data, err := os.ReadFile(path)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	spec, err := formspec.Parse(data, path)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	report.Result = formspec.Lint(spec)
	return report
}

func isSpecFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}
