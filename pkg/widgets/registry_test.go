package widgets

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formspec/pkg/model"
)

func TestResolve_ExplicitParamTypeWins(t *testing.T) {
	reg := NewRegistry()
	field := model.Field{
		Name:      "enabled",
		DataType:  model.DataTypeBool,
		ParamType: model.ParamTypeSelect,
		Choices:   []model.Choice{{Title: "Yes", Value: true}},
	}

	if got := reg.Resolve(field); got != model.ParamTypeSelect {
		t.Fatalf("expected explicit param type to win, got %q", got)
	}
}

func TestResolve_Builtins(t *testing.T) {
	reg := NewRegistry()

	cases := []struct {
		name   string
		field  model.Field
		expect model.ParamType
	}{
		{"bool confirm", model.Field{Name: "enabled", DataType: model.DataTypeBool}, model.ParamTypeConfirm},
		{"static choices select", model.Field{Name: "mode", Choices: []model.Choice{{Value: "a"}}}, model.ParamTypeSelect},
		{"dynamic choices select", model.Field{Name: "vpc_id", DynamicChoices: true, ParamType: model.ParamTypeAuto}, model.ParamTypeSelect},
		{"multiple choices checkbox", model.Field{Name: "modules", Multiple: true, DynamicChoices: true}, model.ParamTypeCheckbox},
		{"attributes editor", model.Field{Name: "tags", DataType: model.DataTypeAttributes}, model.ParamTypeAttributeEditor},
		{"password by name", model.Field{Name: "admin.password"}, model.ParamTypePassword},
		{"plain text", model.Field{Name: "cluster_name"}, model.ParamTypeText},
		{"int text", model.Field{Name: "port", DataType: model.DataTypeInt}, model.ParamTypeText},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := reg.Resolve(tc.field); got != tc.expect {
				t.Fatalf("expected %q, got %q", tc.expect, got)
			}
		})
	}
}

func TestRegister_PriorityAndOrder(t *testing.T) {
	reg := &Registry{}
	reg.Register(model.ParamTypePath, 10, func(field model.Field) bool { return true })
	reg.Register(model.ParamTypeDatePicker, 10, func(field model.Field) bool { return true })
	reg.Register(model.ParamTypeCode, 20, func(field model.Field) bool { return field.Multiline })

	if got := reg.Resolve(model.Field{Name: "a"}); got != model.ParamTypePath {
		t.Fatalf("expected registration order to break ties, got %q", got)
	}
	if got := reg.Resolve(model.Field{Name: "a", Multiline: true}); got != model.ParamTypeCode {
		t.Fatalf("expected higher priority to win, got %q", got)
	}

	reg.Register(model.ParamTypeAuto, 100, func(field model.Field) bool { return true })
	if got := reg.Resolve(model.Field{Name: "a"}); got != model.ParamTypePath {
		t.Fatalf("expected auto registration to be ignored, got %q", got)
	}
}

func TestDecorate(t *testing.T) {
	fields := []model.Field{
		{Name: "enabled", DataType: model.DataTypeBool, ParamType: model.ParamTypeAuto},
		{Name: "notes", ParamType: model.ParamTypeParagraph},
	}
	var decorator model.Decorator = NewRegistry()
	if err := decorator.Decorate(fields); err != nil {
		t.Fatalf("Decorate returned error: %v", err)
	}

	got := []model.ParamType{fields[0].ParamType, fields[1].ParamType}
	want := []model.ParamType{model.ParamTypeConfirm, model.ParamTypeParagraph}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("decorated param types mismatch (-want +got):\n%s", diff)
	}
}
