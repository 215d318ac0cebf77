package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formspec/pkg/formspec"
	"github.com/goliatone/go-formspec/pkg/model"
	"github.com/goliatone/go-formspec/pkg/openapi"
)

func (a *app) importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import-openapi",
		Usage: "generate a spec from the request body of an OpenAPI operation",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source", Usage: "OpenAPI document path or URL", Required: true},
			&cli.StringFlag{Name: "operation", Usage: "operation ID; lists operations when empty"},
			&cli.StringFlag{Name: "name", Usage: "spec name", Value: "imported"},
			&cli.StringFlag{Name: "module", Usage: "module name", Value: "main"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "yaml or json", Value: "yaml"},
		},
		Action: a.importOpenAPI,
	}
}

func (a *app) importOpenAPI(ctx context.Context, cmd *cli.Command) error {
	raw, err := openapi.Load(ctx, cmd.String("source"), openapi.WithHTTPTimeout(30*time.Second))
	if err != nil {
		return err
	}

	operationID := cmd.String("operation")
	if operationID == "" {
		ops, err := openapi.Operations(ctx, raw)
		if err != nil {
			return err
		}
		for _, op := range ops {
			marker := " "
			if op.HasBody {
				marker = "*"
			}
			a.printf("%s %-7s %-30s %s\n", marker, op.Method, op.Path, op.ID)
		}
		return nil
	}

	fields, err := openapi.Import(ctx, raw, operationID)
	if err != nil {
		return err
	}
	spec := specFromFields(cmd.String("name"), cmd.String("module"), operationID, fields)

	var data []byte
	if cmd.String("output") == "json" {
		data, err = json.MarshalIndent(spec, "", "  ")
		if err == nil {
			data = append(data, '\n')
		}
	} else {
		data, err = yaml.Marshal(spec)
	}
	if err != nil {
		return err
	}
	_, err = a.stdout.Write(data)
	return err
}

// specFromFields registers fields as top-level params and lists them by
// name in one section named after the operation.
func specFromFields(name, module, operationID string, fields []model.Field) formspec.Spec {
	refs := make([]model.Field, len(fields))
	for i, field := range fields {
		refs[i] = model.Field{Name: field.Name}
	}
	return formspec.Spec{
		Name:   name,
		Params: fields,
		Modules: []formspec.Module{{
			Name: module,
			Sections: []formspec.Section{{
				Name:   operationID,
				Params: refs,
			}},
		}},
	}
}

func (a *app) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.stdout, format, args...)
}
