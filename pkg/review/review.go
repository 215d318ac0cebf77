// Package review renders the summary shown before a section is confirmed:
// the section title followed by each visible field and its value, with
// secrets masked.
package review

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	gotemplate "github.com/goliatone/go-template"

	"github.com/goliatone/go-formspec/pkg/form"
	"github.com/goliatone/go-formspec/pkg/model"
)

//go:embed templates/*.tpl
var templatesFS embed.FS

// DefaultTemplate is the name of the embedded summary template.
const DefaultTemplate = "section.tpl"

// Mask replaces the value of secret fields.
const Mask = "********"

// Item is one line of a summary.
type Item struct {
	Name   string `json:"name"`
	Title  string `json:"title"`
	Value  string `json:"value"`
	Masked bool   `json:"masked,omitempty"`
}

// Summary is the data passed to the template.
type Summary struct {
	Title  string `json:"title"`
	Prompt string `json:"prompt,omitempty"`
	Items  []Item `json:"items"`
}

// Build collects the visible, valued fields of states. Display-only fields
// are skipped and password values masked.
func Build(title, prompt string, states []form.FieldState) Summary {
	summary := Summary{Title: title, Prompt: prompt}
	for _, state := range states {
		field := state.Field
		if !state.Visible || field.IsDisplayOnly() {
			continue
		}
		item := Item{Name: field.Name, Title: field.Title}
		switch {
		case !state.Defined:
			item.Value = "-"
		case field.ParamType == model.ParamTypePassword || field.ParamType == model.ParamTypeNewPassword:
			item.Value = Mask
			item.Masked = true
		default:
			item.Value = Format(state.Value)
		}
		summary.Items = append(summary.Items, item)
	}
	return summary
}

// Format renders a value for display: lists are comma separated and
// attribute maps become sorted key=value pairs.
func Format(value any) string {
	switch v := value.(type) {
	case nil:
		return "-"
	case string:
		return v
	case bool:
		if v {
			return "yes"
		}
		return "no"
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = Format(item)
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, key := range keys {
			parts[i] = key + "=" + Format(v[key])
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprint(value)
}

// Option configures a Renderer.
type Option func(*config)

type config struct {
	templates fs.FS
	name      string
	source    string
	funcs     map[string]any
}

// WithTemplatesFS loads templates from fsys instead of the embedded set.
func WithTemplatesFS(fsys fs.FS) Option {
	return func(c *config) {
		if fsys != nil {
			c.templates = fsys
		}
	}
}

// WithTemplateName selects the template file used by Render. The .tpl
// extension may be omitted.
func WithTemplateName(name string) Option {
	return func(c *config) {
		if strings.TrimSpace(name) != "" {
			c.name = name
		}
	}
}

// WithTemplateString renders from an inline template, ignoring any file.
func WithTemplateString(source string) Option {
	return func(c *config) {
		c.source = source
	}
}

// WithTemplateFuncs registers filters (pongo2 filter functions) and global
// helpers available to the template.
func WithTemplateFuncs(funcs map[string]any) Option {
	return func(c *config) {
		if len(funcs) == 0 {
			return
		}
		if c.funcs == nil {
			c.funcs = make(map[string]any, len(funcs))
		}
		for name, fn := range funcs {
			c.funcs[strings.TrimSpace(name)] = fn
		}
	}
}

// Renderer renders summaries with a go-template (pongo2) engine.
type Renderer struct {
	engine *gotemplate.Engine
	name   string
	source string
}

var templatesSub = sync.OnceValues(func() (fs.FS, error) {
	return fs.Sub(templatesFS, "templates")
})

// New loads the configured template. Templates that fail to parse are
// reported here rather than on the first Render.
func New(opts ...Option) (*Renderer, error) {
	cfg := config{name: DefaultTemplate}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.templates == nil {
		sub, err := templatesSub()
		if err != nil {
			return nil, fmt.Errorf("review: embedded templates: %w", err)
		}
		cfg.templates = sub
	}

	engineOpts := []gotemplate.Option{
		gotemplate.WithFS(cfg.templates),
		gotemplate.WithExtension(".tpl"),
	}
	if len(cfg.funcs) > 0 {
		engineOpts = append(engineOpts, gotemplate.WithTemplateFunc(cfg.funcs))
	}
	engine, err := gotemplate.NewRenderer(engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("review: template engine: %w", err)
	}

	r := &Renderer{engine: engine, name: cfg.name, source: cfg.source}
	if _, err := r.Render(Summary{}); err != nil {
		return nil, fmt.Errorf("review: load template: %w", err)
	}
	return r, nil
}

// Render executes the template for summary.
func (r *Renderer) Render(summary Summary) (string, error) {
	if r == nil || r.engine == nil {
		return "", errors.New("review: renderer is nil")
	}

	width := 0
	items := make([]map[string]any, len(summary.Items))
	for i, item := range summary.Items {
		if n := utf8.RuneCountInString(item.Title); n > width {
			width = n
		}
		items[i] = map[string]any{
			"name":   item.Name,
			"title":  item.Title,
			"value":  item.Value,
			"masked": item.Masked,
		}
	}
	data := map[string]any{
		"title":  summary.Title,
		"prompt": summary.Prompt,
		"items":  items,
		"width":  width,
	}

	var (
		out string
		err error
	)
	if r.source != "" {
		out, err = r.engine.RenderString(r.source, data)
	} else {
		out, err = r.engine.RenderTemplate(r.name, data)
	}
	if err != nil {
		return "", fmt.Errorf("review: execute template: %w", err)
	}
	return out, nil
}
