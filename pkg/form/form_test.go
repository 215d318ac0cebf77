package form

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formspec/pkg/model"
	"github.com/goliatone/go-formspec/pkg/visibility"
)

func float(v float64) *float64 { return &v }

func prefixFields() []model.Field {
	return []model.Field{
		{
			Name:     "mode",
			Default:  "basic",
			Choices:  []model.Choice{{Value: "basic"}, {Value: "custom"}},
			Validate: &model.Validate{Required: true},
		},
		{
			Name:     "custom_prefix",
			When:     &visibility.Condition{Param: "mode", Eq: "custom"},
			Validate: &model.Validate{Required: true},
		},
	}
}

func mustForm(t *testing.T, fields []model.Field, opts ...Option) *Form {
	t.Helper()
	f, err := New(fields, opts...)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(f.Close)
	return f
}

func TestFieldsWithoutConditionAreVisible(t *testing.T) {
	t.Parallel()

	f := mustForm(t, []model.Field{{Name: "cluster_name"}, {Name: "notes", ParamType: model.ParamTypeParagraph}})
	for _, state := range f.Fields() {
		if !state.Visible {
			t.Fatalf("expected %s to be visible", state.Field.Name)
		}
	}
	if f.Visible("unknown") {
		t.Fatalf("expected unknown field to be hidden")
	}
}

func TestDefaultsAndParamTypes(t *testing.T) {
	t.Parallel()

	f := mustForm(t, []model.Field{
		{Name: "mode", Default: "basic", Choices: []model.Choice{{Value: "basic"}}},
		{Name: "port", DataType: model.DataTypeInt, Default: 8080.0},
		{Name: "enabled", DataType: model.DataTypeBool, Default: "true"},
		{Name: "size", Choices: []model.Choice{{Value: "s", Disabled: true}, {Value: "m"}, {Value: "l"}}, Default: model.DefaultFirstChoice},
		{Name: "zones", Multiple: true, Choices: []model.Choice{{Value: "a"}, {Value: "b"}}, Default: model.DefaultAllChoices},
	})

	want := map[string]any{
		"mode":    "basic",
		"port":    int64(8080),
		"enabled": true,
		"size":    "m",
		"zones":   []any{"a", "b"},
	}
	if diff := cmp.Diff(want, map[string]any(f.Values())); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}

	state, _ := f.Field("mode")
	if state.Field.ParamType != model.ParamTypeSelect {
		t.Fatalf("expected auto param type to resolve to select, got %q", state.Field.ParamType)
	}
	state, _ = f.Field("zones")
	if state.Field.ParamType != model.ParamTypeCheckbox {
		t.Fatalf("expected checkbox, got %q", state.Field.ParamType)
	}
}

func TestHiddenValueRetainedAndRestored(t *testing.T) {
	t.Parallel()

	f := mustForm(t, prefixFields())
	if f.Visible("custom_prefix") {
		t.Fatalf("expected custom_prefix hidden in basic mode")
	}

	change, err := f.SetValue("mode", "custom")
	if err != nil {
		t.Fatalf("SetValue returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"custom_prefix"}, change.Shown); diff != "" {
		t.Fatalf("shown mismatch (-want +got):\n%s", diff)
	}
	if _, err := f.SetValue("custom_prefix", "x"); err != nil {
		t.Fatalf("SetValue returned error: %v", err)
	}

	change, _ = f.SetValue("mode", "basic")
	if diff := cmp.Diff([]string{"custom_prefix"}, change.Hidden); diff != "" {
		t.Fatalf("hidden mismatch (-want +got):\n%s", diff)
	}
	if v, ok := f.Value("custom_prefix"); !ok || v != "x" {
		t.Fatalf("expected hidden value to be retained, got %v (%v)", v, ok)
	}

	exported, err := f.Export()
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	if _, ok := exported["custom_prefix"]; ok {
		t.Fatalf("expected hidden field to be excluded from export: %v", exported)
	}

	if _, err := f.SetValue("mode", "custom"); err != nil {
		t.Fatalf("SetValue returned error: %v", err)
	}
	if !f.Visible("custom_prefix") {
		t.Fatalf("expected custom_prefix visible again")
	}
	if v, _ := f.Value("custom_prefix"); v != "x" {
		t.Fatalf("expected restored value x, got %v", v)
	}
}

func TestHiddenRequiredFieldHasNoError(t *testing.T) {
	t.Parallel()

	f := mustForm(t, prefixFields())
	if !f.Validate() {
		t.Fatalf("expected valid form, got %v", f.Errors())
	}

	_, _ = f.SetValue("mode", "custom")
	if f.Validate() {
		t.Fatalf("expected visible required field to fail")
	}
	want := []ValidationError{{Field: "custom_prefix", Code: CodeRequired, Message: "Custom Prefix is required"}}
	if diff := cmp.Diff(want, f.Errors()); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	t.Parallel()

	f := mustForm(t, []model.Field{
		{Name: "name", Validate: &model.Validate{Required: true}},
		{Name: "size", DataType: model.DataTypeInt, Validate: &model.Validate{Min: float(10)}},
	})
	_, _ = f.SetValue("size", 2)

	first := f.Validate()
	firstErrs := f.Errors()
	second := f.Validate()
	if first != second {
		t.Fatalf("expected identical outcomes, got %v then %v", first, second)
	}
	if diff := cmp.Diff(firstErrs, f.Errors()); diff != "" {
		t.Fatalf("errors changed between runs (-first +second):\n%s", diff)
	}
	if len(firstErrs) != 2 {
		t.Fatalf("expected two errors, got %v", firstErrs)
	}
}

func TestRegexValidation(t *testing.T) {
	t.Parallel()

	f := mustForm(t, []model.Field{{
		Name:     "file_system_name",
		Title:    "File System Name",
		Validate: &model.Validate{Required: true, Regex: `^[a-z0-9_]{3,18}$`},
	}})

	errs, err := f.ValidateField("file_system_name", "AB")
	if err != nil {
		t.Fatalf("ValidateField returned error: %v", err)
	}
	want := []ValidationError{{
		Field:   "file_system_name",
		Code:    CodeRegex,
		Message: "File System Name must match regex: ^[a-z0-9_]{3,18}$",
	}}
	if diff := cmp.Diff(want, errs); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}

	if errs, _ := f.ValidateField("file_system_name", "efs_01"); len(errs) != 0 {
		t.Fatalf("expected efs_01 to pass, got %v", errs)
	}
}

func TestRegexCustomMessage(t *testing.T) {
	t.Parallel()

	f := mustForm(t, []model.Field{{
		Name:     "name",
		Validate: &model.Validate{Regex: `^[a-z]+$`, Message: "Only lowercase letters"},
	}})
	errs, _ := f.ValidateField("name", "ABC")
	if len(errs) != 1 || errs[0].Message != "Only lowercase letters" {
		t.Fatalf("expected custom message, got %v", errs)
	}
}

func TestRegexIsAnchoredAtStart(t *testing.T) {
	t.Parallel()

	f := mustForm(t, []model.Field{{
		Name:     "bucket",
		Validate: &model.Validate{Regex: `[a-z]+`},
	}})
	if errs, _ := f.ValidateField("bucket", "1abc"); len(errs) != 1 || errs[0].Code != CodeRegex {
		t.Fatalf("expected regex error for 1abc, got %v", errs)
	}
	if errs, _ := f.ValidateField("bucket", "abc1"); len(errs) != 0 {
		t.Fatalf("expected abc1 to pass, got %v", errs)
	}
}

func TestMinMaxValidation(t *testing.T) {
	t.Parallel()

	f := mustForm(t, []model.Field{{
		Name:     "storage_gb",
		Title:    "Storage GB",
		DataType: model.DataTypeInt,
		Validate: &model.Validate{Required: true, Min: float(1024), Max: float(196608)},
	}})

	for _, empty := range []any{nil, ""} {
		errs, _ := f.ValidateField("storage_gb", empty)
		want := []ValidationError{{Field: "storage_gb", Code: CodeRequired, Message: "Storage GB is required"}}
		if diff := cmp.Diff(want, errs); diff != "" {
			t.Fatalf("empty %#v: errors mismatch (-want +got):\n%s", empty, diff)
		}
	}

	errs, _ := f.ValidateField("storage_gb", 500)
	if len(errs) != 1 || errs[0].Code != CodeMin {
		t.Fatalf("expected min error for 500, got %v", errs)
	}
	if errs, _ := f.ValidateField("storage_gb", "2048"); len(errs) != 0 {
		t.Fatalf("expected 2048 to pass, got %v", errs)
	}
	errs, _ = f.ValidateField("storage_gb", 200000)
	if len(errs) != 1 || errs[0].Code != CodeMax {
		t.Fatalf("expected max error, got %v", errs)
	}
}

func TestTypeMismatchIsReportedOnValidate(t *testing.T) {
	t.Parallel()

	f := mustForm(t, []model.Field{{Name: "port", DataType: model.DataTypeInt}})
	if _, err := f.SetValue("port", "eighty"); err != nil {
		t.Fatalf("SetValue returned error: %v", err)
	}
	if v, _ := f.Value("port"); v != "eighty" {
		t.Fatalf("expected raw value to be kept, got %v", v)
	}
	if f.Validate() {
		t.Fatalf("expected type error")
	}
	if errs := f.FieldErrors("port"); len(errs) != 1 || errs[0].Code != CodeType {
		t.Fatalf("expected type error, got %v", errs)
	}

	_, _ = f.SetValue("port", "80")
	if errs := f.FieldErrors("port"); len(errs) != 0 {
		t.Fatalf("expected errors cleared on edit, got %v", errs)
	}
	if v, _ := f.Value("port"); v != int64(80) {
		t.Fatalf("expected coerced value, got %#v", v)
	}
}

func TestSetValueErrorsAndAutoPrefix(t *testing.T) {
	t.Parallel()

	f := mustForm(t, []model.Field{
		{Name: "cluster_name", Validate: &model.Validate{AutoPrefix: "idea-"}},
		{Name: "intro", ParamType: model.ParamTypeHeading2},
	})

	if _, err := f.SetValue("missing", "x"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
	if _, err := f.SetValue("intro", "x"); !errors.Is(err, ErrDisplayOnly) {
		t.Fatalf("expected ErrDisplayOnly, got %v", err)
	}

	_, _ = f.SetValue("cluster_name", "dev")
	if v, _ := f.Value("cluster_name"); v != "idea-dev" {
		t.Fatalf("expected prefixed value, got %v", v)
	}
	_, _ = f.SetValue("cluster_name", "idea-prod")
	if v, _ := f.Value("cluster_name"); v != "idea-prod" {
		t.Fatalf("expected prefix not duplicated, got %v", v)
	}

	_, _ = f.SetValue("cluster_name", nil)
	if _, ok := f.Value("cluster_name"); ok {
		t.Fatalf("expected nil to clear the value")
	}
}

func TestExportRoundTripKeepsPassThroughKeys(t *testing.T) {
	t.Parallel()

	initial := map[string]any{
		"cluster_name": "idea",
		"network": map[string]any{
			"vpc_id":  "vpc-1",
			"subnets": []any{"a", "b"},
		},
		"tags":     map[string]any{"team": "hpc"},
		"metadata": map[string]any{"owner": "ops"},
	}
	fields := []model.Field{
		{Name: "cluster_name"},
		{Name: "network.vpc_id"},
		{Name: "network.subnets", Multiple: true},
		{Name: "tags", DataType: model.DataTypeAttributes},
	}

	f := mustForm(t, fields, WithInitialValues(initial))
	exported, err := f.Export()
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	if diff := cmp.Diff(initial, exported); diff != "" {
		t.Fatalf("export mismatch (-want +got):\n%s", diff)
	}

	again := mustForm(t, fields)
	again.Load(exported)
	if diff := cmp.Diff(f.Values(), again.Values()); diff != "" {
		t.Fatalf("values after Load mismatch (-want +got):\n%s", diff)
	}
}

func TestExportOptions(t *testing.T) {
	t.Parallel()

	no := false
	fields := append(prefixFields(), model.Field{Name: "secret", Export: &no, Default: "s"})
	f := mustForm(t, fields, WithInitialValues(map[string]any{"custom_prefix": "x"}), WithExportHidden(true))

	exported, err := f.Export()
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	want := map[string]any{"mode": "basic", "custom_prefix": "x"}
	if diff := cmp.Diff(want, exported); diff != "" {
		t.Fatalf("export mismatch (-want +got):\n%s", diff)
	}
}

func TestStateChangeHook(t *testing.T) {
	t.Parallel()

	var changes []Change
	f := mustForm(t, prefixFields(), WithStateChange(func(c Change) {
		changes = append(changes, c)
	}))

	_, _ = f.SetValue("mode", "custom")
	_, _ = f.SetValue("mode", "custom")
	if len(changes) != 2 {
		t.Fatalf("expected hook on every mutation, got %d", len(changes))
	}
	if changes[0].Field.Name != "mode" || changes[0].Value != "custom" || changes[0].Previous != "basic" {
		t.Fatalf("unexpected change %+v", changes[0])
	}
}

func TestSubmit(t *testing.T) {
	t.Parallel()

	f := mustForm(t, prefixFields())
	_, _ = f.SetValue("mode", "custom")

	called := false
	err := f.Submit(context.Background(), func(ctx context.Context, payload map[string]any) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrValidation) || called {
		t.Fatalf("expected validation failure before submit, got %v (called=%v)", err, called)
	}

	_, _ = f.SetValue("custom_prefix", "x")
	var got map[string]any
	if err := f.Submit(context.Background(), func(ctx context.Context, payload map[string]any) error {
		got = payload
		return nil
	}); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"mode": "custom", "custom_prefix": "x"}, got); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmitMapsServerErrors(t *testing.T) {
	t.Parallel()

	f := mustForm(t, []model.Field{{Name: "network.vpc_id"}, {Name: "name"}})
	rejected := &SubmitError{
		Message: "cluster rejected",
		Fields: map[string][]string{
			"/body/network/vpc_id": {"vpc not found", " vpc not found "},
			"name[0]":              {"taken"},
			"__all__":              {"quota exceeded"},
			"unknown.path":         {"mystery"},
		},
	}
	err := f.Submit(context.Background(), func(ctx context.Context, payload map[string]any) error {
		return rejected
	})
	if !errors.Is(err, rejected) {
		t.Fatalf("expected submit error to be returned, got %v", err)
	}

	if diff := cmp.Diff([]ValidationError{{Field: "network.vpc_id", Code: CodeServer, Message: "vpc not found"}}, f.FieldErrors("network.vpc_id")); diff != "" {
		t.Fatalf("vpc errors mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]ValidationError{{Field: "name", Code: CodeServer, Message: "taken"}}, f.FieldErrors("name")); diff != "" {
		t.Fatalf("name errors mismatch (-want +got):\n%s", diff)
	}
	formErrs := f.FormErrors()
	if len(formErrs) != 3 || formErrs[0] != "cluster rejected" {
		t.Fatalf("unexpected form errors %v", formErrs)
	}

	plain := errors.New("connection refused")
	_ = f.Submit(context.Background(), func(ctx context.Context, payload map[string]any) error { return plain })
	if diff := cmp.Diff([]string{"connection refused"}, f.FormErrors()); diff != "" {
		t.Fatalf("form errors mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmitErrorMessageIsSorted(t *testing.T) {
	t.Parallel()

	err := &SubmitError{Fields: map[string][]string{
		"zone":   {"unknown"},
		"name":   {"taken", "too long"},
		"memory": {"too small"},
	}}
	want := "form: submit rejected: memory: too small; name: taken, too long; zone: unknown"
	for i := 0; i < 10; i++ {
		if got := err.Error(); got != want {
			t.Fatalf("message mismatch:\nwant %q\n got %q", want, got)
		}
	}
	if got := (&SubmitError{}).Error(); got != "form: submit rejected" {
		t.Fatalf("unexpected empty message %q", got)
	}
}

func TestNilWidgetsKeepDefaultRegistry(t *testing.T) {
	t.Parallel()

	f := mustForm(t, []model.Field{{Name: "mode", Choices: []model.Choice{{Value: "basic"}}}}, WithWidgets(nil))
	state, ok := f.Field("mode")
	if !ok {
		t.Fatalf("mode not registered")
	}
	if state.Field.ParamType != model.ParamTypeSelect {
		t.Fatalf("expected select, got %q", state.Field.ParamType)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	t.Parallel()

	f := mustForm(t, []model.Field{{Name: "a"}})
	if err := f.Register(model.Field{Name: "a"}); !errors.Is(err, model.ErrDuplicateField) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if err := f.Register(model.Field{Name: "b", VisibleIf: "a == 1"}); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if f.Visible("b") {
		t.Fatalf("expected b hidden while a is unset")
	}
}
