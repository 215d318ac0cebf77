package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/goliatone/go-formspec/pkg/form"
	"github.com/goliatone/go-formspec/pkg/formspec"
	"github.com/goliatone/go-formspec/pkg/prompt"
	"github.com/goliatone/go-formspec/pkg/values"
)

func (a *app) fillCommand() *cli.Command {
	flags := append(specFlags(true), choicesFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:  "values",
			Usage: "YAML or JSON file of initial values",
		},
		&cli.StringSliceFlag{
			Name:  "set",
			Usage: "set a param exposed on the command line, as name=value",
		},
		&cli.BoolFlag{
			Name:  "no-prompt",
			Usage: "do not ask; fill from --values and --set only",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "json, yaml, form or pretty",
			Value:   "json",
		},
		&cli.StringFlag{
			Name:  "out",
			Usage: "write values to a file instead of stdout",
		},
	)

	return &cli.Command{
		Name:   "fill",
		Usage:  "fill a module interactively and print the values",
		Flags:  flags,
		Action: a.fill,
	}
}

func (a *app) fill(ctx context.Context, cmd *cli.Command) error {
	format, err := values.ParseFormat(cmd.String("output"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	initial, err := readValues(cmd.String("values"))
	if err != nil {
		return err
	}

	reg, err := openSpec(cmd.String("spec-dir"), cmd.String("spec"))
	if err != nil {
		return err
	}
	module, section := cmd.String("module"), cmd.String("section")
	f, err := a.openForm(ctx, reg, module, section, cmd, form.WithInitialValues(initial))
	if err != nil {
		return err
	}
	defer f.Close()

	for _, assignment := range cmd.StringSlice("set") {
		if err := setArg(reg, f, assignment); err != nil {
			return cli.Exit(err.Error(), 2)
		}
	}

	if !cmd.Bool("no-prompt") {
		steps, err := buildSteps(reg, module, section)
		if err != nil {
			return err
		}
		session, err := prompt.NewSession(f,
			prompt.WithDriver(a.driver),
			prompt.WithLogger(a.logger),
		)
		if err != nil {
			return err
		}
		if err := session.Run(ctx, steps); err != nil {
			return err
		}
	} else {
		f.Wait()
	}

	if !f.Validate() {
		a.printErrors(f.Errors())
		return cli.Exit("validation failed", 1)
	}
	exported, err := f.Export()
	if err != nil {
		return err
	}
	data, err := values.Encode(format, exported)
	if err != nil {
		return err
	}
	if !strings.HasSuffix(string(data), "\n") {
		data = append(data, '\n')
	}

	if path := cmd.String("out"); path != "" {
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		a.logger.Info("values written", "file", path)
		return nil
	}
	_, err = a.stdout.Write(data)
	return err
}

// setArg applies a name=value assignment. The name is the param's command
// line name and must be enabled for the command line.
func setArg(reg *formspec.Registry, f *form.Form, assignment string) error {
	name, value, ok := strings.Cut(assignment, "=")
	if !ok {
		return fmt.Errorf("--set %q: expected name=value", assignment)
	}
	field, err := reg.ArgToParam(name)
	if err != nil {
		return err
	}
	if _, err := f.SetValue(field.Name, value); err != nil {
		return err
	}
	return nil
}

func openSpec(dir, name string) (*formspec.Registry, error) {
	specs, err := formspec.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	return specs.Spec(name)
}

func (a *app) openForm(ctx context.Context, reg *formspec.Registry, module, section string, cmd *cli.Command, extra ...form.Option) (*form.Form, error) {
	fields, err := reg.Params(module, section, "")
	if err != nil {
		return nil, err
	}
	opts := []form.Option{
		form.WithContext(ctx),
		form.WithModule(module),
		form.WithLogger(a.logger),
		form.WithFetcher(fetcherFromFlags(cmd)),
		form.WithChoicesError(func(param string, err error) {
			a.logger.Warn("choices unavailable", "param", param, "error", err)
		}),
	}
	return form.New(fields, append(opts, extra...)...)
}

// buildSteps turns the sections of a module into prompt steps.
func buildSteps(reg *formspec.Registry, module, only string) ([]prompt.Step, error) {
	m, err := reg.Module(module)
	if err != nil {
		return nil, err
	}
	var steps []prompt.Step
	for _, section := range m.Sections {
		if only != "" && section.Name != only {
			continue
		}
		fields, err := reg.Params(module, section.Name, "")
		if err != nil {
			return nil, err
		}
		step := prompt.Step{
			Name:        section.Name,
			Title:       section.Title,
			Description: section.Description,
		}
		for _, field := range fields {
			step.Fields = append(step.Fields, field.Name)
		}
		if section.Review != nil {
			step.Review = section.ReviewPrompt()
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func (a *app) printErrors(errs []form.ValidationError) {
	for _, e := range errs {
		fmt.Fprintf(a.stderr, "%s: %s\n", e.Field, e.Message)
	}
}
