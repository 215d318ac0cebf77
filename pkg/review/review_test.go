package review

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/flosch/pongo2/v6"
	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formspec/pkg/form"
	"github.com/goliatone/go-formspec/pkg/model"
)

func testStates(t *testing.T) []form.FieldState {
	t.Helper()
	f, err := form.New([]model.Field{
		{Name: "intro", ParamType: model.ParamTypeHeading2, Title: "Storage"},
		{Name: "cluster_name", Default: "idea"},
		{Name: "admin_password", ParamType: model.ParamTypePassword, Default: "hunter2"},
		{Name: "zones", Multiple: true, Default: []any{"a", "b"}},
		{Name: "tags", DataType: model.DataTypeAttributes, Default: map[string]any{"team": "hpc", "env": "dev"}},
		{Name: "enabled", DataType: model.DataTypeBool, Default: true},
		{Name: "notes"},
		{Name: "secret_prefix", VisibleIf: "enabled == false"},
	})
	if err != nil {
		t.Fatalf("form.New returned error: %v", err)
	}
	t.Cleanup(f.Close)
	return f.Fields()
}

func TestBuild(t *testing.T) {
	summary := Build("Cluster Settings", "Are the Cluster Settings OK?", testStates(t))
	want := []Item{
		{Name: "cluster_name", Title: "Cluster Name", Value: "idea"},
		{Name: "admin_password", Title: "Admin Password", Value: Mask, Masked: true},
		{Name: "zones", Title: "Zones", Value: "a, b"},
		{Name: "tags", Title: "Tags", Value: "env=dev, team=hpc"},
		{Name: "enabled", Title: "Enabled", Value: "yes"},
		{Name: "notes", Title: "Notes", Value: "-"},
	}
	if diff := cmp.Diff(want, summary.Items); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderDefaultTemplate(t *testing.T) {
	renderer, err := New()
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	out, err := renderer.Render(Summary{
		Title: "Cluster <Settings>",
		Items: []Item{
			{Name: "cluster_name", Title: "Cluster Name", Value: "idea & co"},
			{Name: "zones", Title: "Zones", Value: "a, b"},
		},
	})
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	want := "Cluster <Settings>\n" +
		"  Cluster Name  idea & co\n" +
		"  Zones         a, b\n"
	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}

	empty, err := renderer.Render(Summary{Title: "Nothing"})
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if !strings.Contains(empty, "(nothing to review)") {
		t.Fatalf("expected empty marker, got %q", empty)
	}
}

func TestRenderCustomTemplates(t *testing.T) {
	inline, err := New(WithTemplateString("{% for item in items %}{{ item.name }};{% endfor %}"))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	out, _ := inline.Render(Summary{Items: []Item{{Name: "a"}, {Name: "b"}}})
	if out != "a;b;" {
		t.Fatalf("unexpected inline output %q", out)
	}

	fromFS, err := New(
		WithTemplatesFS(fstest.MapFS{"short.tpl": {Data: []byte("{{ prompt }} ({{ items|length }})")}}),
		WithTemplateName("short.tpl"),
	)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	out, _ = fromFS.Render(Summary{Prompt: "OK?", Items: []Item{{Name: "a"}}})
	if out != "OK? (1)" {
		t.Fatalf("unexpected fs output %q", out)
	}

	if _, err := New(WithTemplateString("{% for %}")); err == nil {
		t.Fatalf("expected template parse error")
	}
	if _, err := New(WithTemplateName("missing")); err == nil {
		t.Fatalf("expected missing template error")
	}
}

func TestRenderTemplateFuncs(t *testing.T) {
	shout := func(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
		return pongo2.AsValue(strings.ToUpper(in.String())), nil
	}
	renderer, err := New(
		WithTemplatesFS(fstest.MapFS{"loud.tpl": {Data: []byte("{{ title|review_shout }}")}}),
		WithTemplateName("loud"),
		WithTemplateFuncs(map[string]any{"review_shout": shout}),
	)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	out, err := renderer.Render(Summary{Title: "Network"})
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if out != "NETWORK" {
		t.Fatalf("unexpected output %q", out)
	}
}
