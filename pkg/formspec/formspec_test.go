package formspec

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formspec/pkg/model"
)

const clusterSpec = `
SocaInputParamSpec:
  name: cluster
  version: "1.0"
  tags:
    - name: storage
      title: Storage <b>Settings</b>
  params:
    - name: cluster_name
      title: Cluster Name
      description: Name of the <script>alert(1)</script>cluster
      markdown: "**bold** <iframe src=x></iframe>"
      validate:
        required: true
        regex: "^[a-z0-9-]{3,18}$"
      cli:
        enabled: true
        long_name: --cluster-name
    - name: storage_type
      choices: [efs, fsx]
      default: efs
    - name: mode
      choices: [basic, custom]
      default: basic
    - name: custom_prefix
      when:
        param: mode
        eq: custom
  modules:
    - name: config
      title: Configuration
      sections:
        - name: cluster
          title: Cluster Settings
          params:
            - name: cluster_name
            - name: mode
              title: Prefix Mode
            - name: custom_prefix
        - name: storage
          review:
            prompt: Storage ready?
          params:
            - name: storage_type
          groups:
            - name: apps
              params:
                - name: apps_storage_type
                  template: storage_type
                  title: Apps Storage
            - name: data
              params:
                - name: data_size
                  data_type: int
                  default: 100
`

const toolsSpec = `{"name": "tools", "params": [{"name": "editor", "default": "vim"}]}`

func loadTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := LoadFS(fstest.MapFS{
		"cluster.yml":       {Data: []byte(clusterSpec)},
		"nested/tools.json": {Data: []byte(toolsSpec)},
		"README.md":         {Data: []byte("not a spec")},
	})
	if err != nil {
		t.Fatalf("LoadFS returned error: %v", err)
	}
	return store
}

func names(fields []model.Field) []string {
	out := make([]string, len(fields))
	for i, field := range fields {
		out[i] = field.Name
	}
	return out
}

func TestLoadFS(t *testing.T) {
	store := loadTestStore(t)
	if diff := cmp.Diff([]string{"cluster", "tools"}, store.Names()); diff != "" {
		t.Fatalf("spec names mismatch (-want +got):\n%s", diff)
	}

	registry, err := store.Spec("cluster")
	if err != nil {
		t.Fatalf("Spec returned error: %v", err)
	}
	if registry.Version() != "1.0" {
		t.Fatalf("version mismatch: %q", registry.Version())
	}
	if registry.Spec().Source != "cluster.yml" {
		t.Fatalf("source mismatch: %q", registry.Spec().Source)
	}

	if _, err := store.Spec("missing"); !errors.Is(err, ErrSpecNotFound) {
		t.Fatalf("expected ErrSpecNotFound, got %v", err)
	}
}

func TestLoadFSRejectsDuplicateSpecs(t *testing.T) {
	_, err := LoadFS(fstest.MapFS{
		"a.json": {Data: []byte(toolsSpec)},
		"b.json": {Data: []byte(toolsSpec)},
	})
	if err == nil {
		t.Fatalf("expected duplicate spec error")
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse([]byte("  "), "empty.yml"); err == nil {
		t.Fatalf("expected error for empty file")
	}
	if _, err := Parse([]byte("params: []"), "anon.yml"); err == nil {
		t.Fatalf("expected error for missing name")
	}
	if _, err := Parse([]byte("name: [unterminated"), "bad.yml"); err == nil {
		t.Fatalf("expected parse error")
	}

	spec, err := Parse([]byte("spec:\n  name: wrapped\n"), "wrapped.yml")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if spec.Name != "wrapped" {
		t.Fatalf("expected wrapped spec, got %q", spec.Name)
	}
}

func TestParamsMergesSectionOverrides(t *testing.T) {
	registry, err := loadTestStore(t).Spec("cluster")
	if err != nil {
		t.Fatalf("Spec returned error: %v", err)
	}

	fields, err := registry.Params("config", "cluster", "")
	if err != nil {
		t.Fatalf("Params returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"cluster_name", "mode", "custom_prefix"}, names(fields)); diff != "" {
		t.Fatalf("params mismatch (-want +got):\n%s", diff)
	}
	if fields[1].Title != "Prefix Mode" {
		t.Fatalf("expected section title to win, got %q", fields[1].Title)
	}
	if len(fields[1].Choices) != 2 || fields[1].Default != "basic" {
		t.Fatalf("expected registered attributes to be merged: %+v", fields[1])
	}
	if fields[2].When == nil || fields[2].When.Param != "mode" {
		t.Fatalf("expected when condition to be merged: %+v", fields[2])
	}

	all, err := registry.Params("config", "", "")
	if err != nil {
		t.Fatalf("Params returned error: %v", err)
	}
	want := []string{"cluster_name", "mode", "custom_prefix", "storage_type", "apps_storage_type", "data_size"}
	if diff := cmp.Diff(want, names(all)); diff != "" {
		t.Fatalf("module params mismatch (-want +got):\n%s", diff)
	}

	group, err := registry.Params("config", "storage", "data")
	if err != nil {
		t.Fatalf("Params returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"data_size"}, names(group)); diff != "" {
		t.Fatalf("group params mismatch (-want +got):\n%s", diff)
	}

	if _, err := registry.Params("config", "missing", ""); !errors.Is(err, ErrSectionNotFound) {
		t.Fatalf("expected ErrSectionNotFound, got %v", err)
	}
	if _, err := registry.Params("missing", "", ""); !errors.Is(err, ErrModuleNotFound) {
		t.Fatalf("expected ErrModuleNotFound, got %v", err)
	}

	registered, _ := registry.Params("", "", "")
	if diff := cmp.Diff([]string{"cluster_name", "storage_type", "mode", "custom_prefix", "apps_storage_type"}, names(registered)); diff != "" {
		t.Fatalf("registered params mismatch (-want +got):\n%s", diff)
	}
}

func TestTemplateParams(t *testing.T) {
	registry, _ := loadTestStore(t).Spec("cluster")
	param, err := registry.Param("apps_storage_type")
	if err != nil {
		t.Fatalf("Param returned error: %v", err)
	}
	if param.Template != "" || param.Title != "Apps Storage" {
		t.Fatalf("unexpected template copy %+v", param)
	}
	if diff := cmp.Diff([]model.Choice{{Title: "efs", Value: "efs"}, {Title: "fsx", Value: "fsx"}}, param.Choices); diff != "" {
		t.Fatalf("choices mismatch (-want +got):\n%s", diff)
	}
}

func TestArgToParamAndSections(t *testing.T) {
	registry, _ := loadTestStore(t).Spec("cluster")

	param, err := registry.ArgToParam("--cluster-name")
	if err != nil {
		t.Fatalf("ArgToParam returned error: %v", err)
	}
	if param.Name != "cluster_name" {
		t.Fatalf("expected cluster_name, got %q", param.Name)
	}
	if _, err := registry.ArgToParam("mode"); !errors.Is(err, ErrArgNotFound) {
		t.Fatalf("expected ErrArgNotFound, got %v", err)
	}

	cluster, err := registry.Section("config", "cluster")
	if err != nil {
		t.Fatalf("Section returned error: %v", err)
	}
	if got := cluster.ReviewPrompt(); got != "Are the Cluster Settings OK?" {
		t.Fatalf("unexpected review prompt %q", got)
	}
	storage, _ := registry.Section("config", "storage")
	if got := storage.ReviewPrompt(); got != "Storage ready?" {
		t.Fatalf("unexpected review prompt %q", got)
	}
}

func TestTextIsSanitised(t *testing.T) {
	registry, _ := loadTestStore(t).Spec("cluster")
	param, _ := registry.Param("cluster_name")
	if param.Description != "Name of the cluster" {
		t.Fatalf("description not sanitised: %q", param.Description)
	}
	if param.Markdown != "**bold**" {
		t.Fatalf("markdown not sanitised: %q", param.Markdown)
	}
	tag, ok := registry.Tag("storage")
	if !ok || tag.Title != "Storage Settings" {
		t.Fatalf("tag title not sanitised: %+v", tag)
	}

	if got := SanitizeText("a &amp; b < c"); got != "a & b < c" {
		t.Fatalf("unexpected plain text %q", got)
	}
}

func TestParamIsCopied(t *testing.T) {
	registry, _ := loadTestStore(t).Spec("cluster")
	param, _ := registry.Param("cluster_name")
	param.Validate.Required = false
	param.CLI.LongName = "changed"

	again, _ := registry.Param("cluster_name")
	if !again.Validate.Required || again.CLI.LongName != "--cluster-name" {
		t.Fatalf("registry was mutated through a returned param: %+v", again)
	}
}

func TestLint(t *testing.T) {
	spec, err := Parse([]byte(clusterSpec), "cluster.yml")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if result := Lint(spec); !result.Valid {
		t.Fatalf("expected valid spec, got %+v", result.Issues)
	}

	broken := &Spec{
		Name: "broken",
		Params: []model.Field{
			{Name: "a", Validate: &model.Validate{Regex: "("}},
			{Name: "a"},
			{Name: "b", DataType: "blob"},
			{Name: "c", When: &model.Condition{Param: "ghost", NotEmpty: true}},
			{Name: "d", DynamicChoices: true, DependsOn: []string{"phantom"}},
			{Name: "e", VisibleIf: "extras.role == 'admin'"},
			{Name: "f", Default: "$first"},
		},
		Modules: []Module{{
			Name: "m",
			Sections: []Section{{
				Name:   "s",
				Params: []model.Field{{Name: "copy", Template: "nope"}, {Name: "inline", ParamType: "bogus"}},
			}},
		}},
	}
	result := Lint(broken)
	if result.Valid {
		t.Fatalf("expected invalid spec")
	}
	var got []string
	for _, issue := range result.Issues {
		got = append(got, issue.Path+":"+issue.Field)
	}
	want := []string{
		"params[0]:a",
		"params[1]:a",
		"params[2]:b",
		"params[3]:c",
		"params[4]:d",
		"params[6]:f",
		"modules[0].sections[0].params[0]:copy",
		"modules[0].sections[0].params[1]:inline",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}
}

func TestReloader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tools.json")
	if err := os.WriteFile(path, []byte(toolsSpec), 0o600); err != nil {
		t.Fatalf("write spec: %v", err)
	}

	reloaded := make(chan *Store, 4)
	reloader, err := NewReloader(dir, WithDebounce(20*time.Millisecond), WithOnReload(func(s *Store) {
		reloaded <- s
	}))
	if err != nil {
		t.Fatalf("NewReloader returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"tools"}, reloader.Store().Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reloader.Watch(ctx) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Watch returned error: %v", err)
		}
	}()

	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "extra.yaml"), []byte("name: extra\n"), 0o600); err != nil {
		t.Fatalf("write spec: %v", err)
	}

	select {
	case store := <-reloaded:
		if diff := cmp.Diff([]string{"extra", "tools"}, store.Names()); diff != "" {
			t.Fatalf("names after reload mismatch (-want +got):\n%s", diff)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for reload")
	}

	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	if err := reloader.Reload(); err == nil {
		t.Fatalf("expected reload error for broken spec")
	}
	if reloader.Store().Empty() {
		t.Fatalf("expected previous store to be kept")
	}
}

type recordingWatcher struct {
	added []string
	err   error
}

func (w *recordingWatcher) Add(name string) error {
	w.added = append(w.added, name)
	return w.err
}

func TestWatchCreatedOnlyAddsDirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "team")
	if err := os.Mkdir(sub, 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	file := filepath.Join(dir, "extra.yaml")
	if err := os.WriteFile(file, []byte("name: extra\n"), 0o600); err != nil {
		t.Fatalf("write spec: %v", err)
	}

	var logs bytes.Buffer
	r := &Reloader{dir: dir, logger: slog.New(slog.NewTextHandler(&logs, nil))}

	w := &recordingWatcher{}
	r.watchCreated(w, file)
	r.watchCreated(w, filepath.Join(dir, "gone"))
	r.watchCreated(w, sub)
	if diff := cmp.Diff([]string{sub}, w.added); diff != "" {
		t.Fatalf("watched paths mismatch (-want +got):\n%s", diff)
	}
	if logs.Len() != 0 {
		t.Fatalf("unexpected logs %q", logs.String())
	}

	failing := &recordingWatcher{err: errors.New("too many watches")}
	r.watchCreated(failing, sub)
	if !strings.Contains(logs.String(), "too many watches") {
		t.Fatalf("expected failure to be logged, got %q", logs.String())
	}
}
