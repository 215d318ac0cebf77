package formspec

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/goliatone/go-formspec/pkg/model"
	"github.com/goliatone/go-formspec/pkg/values"
)

var (
	ErrSpecNotFound    = errors.New("formspec: spec not found")
	ErrModuleNotFound  = errors.New("formspec: module not found")
	ErrSectionNotFound = errors.New("formspec: section not found")
	ErrParamNotFound   = errors.New("formspec: param not defined")
	ErrArgNotFound     = errors.New("formspec: cli argument not defined")
)

// Registry indexes the params of one spec. Params declared at the top level
// are registered in order; section and group params naming a template are
// registered as copies of the template under their own name.
type Registry struct {
	spec   *Spec
	order  []string
	params map[string]model.Field
	args   map[string]string
	tags   map[string]Tag
}

// NewRegistry sanitises spec and indexes its params. A top-level param
// declared twice is an error.
func NewRegistry(spec *Spec) (*Registry, error) {
	if spec == nil {
		return nil, fmt.Errorf("formspec: nil spec")
	}
	r := &Registry{
		spec:   sanitizeSpec(spec),
		params: make(map[string]model.Field),
		args:   make(map[string]string),
		tags:   make(map[string]Tag),
	}

	for _, tag := range r.spec.Tags {
		r.tags[tag.Name] = tag
	}
	for _, param := range r.spec.Params {
		name := strings.TrimSpace(param.Name)
		if name == "" {
			return nil, fmt.Errorf("formspec: spec %q: %w", spec.Name, model.ErrNameMissing)
		}
		if _, dup := r.params[name]; dup {
			return nil, fmt.Errorf("formspec: spec %q: %w: %q", spec.Name, model.ErrDuplicateField, name)
		}
		param.Name = name
		r.register(param)
	}

	for _, module := range r.spec.Modules {
		for _, section := range module.Sections {
			for _, param := range section.Params {
				r.registerTemplate(param)
			}
			for _, group := range section.Groups {
				for _, param := range group.Params {
					r.registerTemplate(param)
				}
			}
		}
	}
	return r, nil
}

func (r *Registry) register(param model.Field) {
	if _, exists := r.params[param.Name]; !exists {
		r.order = append(r.order, param.Name)
	}
	r.params[param.Name] = param
	if arg := param.CLIArgName(); arg != "" {
		r.args[arg] = param.Name
	}
}

// registerTemplate registers a copy of the template param under the
// referencing param's name and title. Unknown templates are left to Lint.
func (r *Registry) registerTemplate(ref model.Field) {
	if ref.Template == "" {
		return
	}
	template, ok := r.params[ref.Template]
	if !ok {
		return
	}
	param := cloneField(template)
	param.Template = ""
	param.Name = ref.Name
	param.Title = ref.Title
	r.register(param)
}

// Spec returns the sanitised document.
func (r *Registry) Spec() *Spec { return r.spec }

// Name returns the spec name.
func (r *Registry) Name() string { return r.spec.Name }

// Version returns the spec version.
func (r *Registry) Version() string { return r.spec.Version }

// Tag returns a tag by name.
func (r *Registry) Tag(name string) (Tag, bool) {
	tag, ok := r.tags[name]
	return tag, ok
}

// Param returns a copy of a registered param.
func (r *Registry) Param(name string) (model.Field, error) {
	param, ok := r.params[name]
	if !ok {
		return model.Field{}, fmt.Errorf("%w: %q", ErrParamNotFound, name)
	}
	return cloneField(param), nil
}

// ArgToParam resolves a CLI long name (with or without leading dashes) to
// its param.
func (r *Registry) ArgToParam(arg string) (model.Field, error) {
	name, ok := r.args[strings.TrimLeft(arg, "-")]
	if !ok {
		return model.Field{}, fmt.Errorf("%w: %q", ErrArgNotFound, arg)
	}
	return r.Param(name)
}

// Module returns a module by name.
func (r *Registry) Module(name string) (Module, error) {
	for _, module := range r.spec.Modules {
		if module.Name == name {
			return module, nil
		}
	}
	return Module{}, fmt.Errorf("%w: %q in spec %q", ErrModuleNotFound, name, r.spec.Name)
}

// Section returns a section of a module by name.
func (r *Registry) Section(module, section string) (Section, error) {
	m, err := r.Module(module)
	if err != nil {
		return Section{}, err
	}
	for _, s := range m.Sections {
		if s.Name == section {
			return s, nil
		}
	}
	return Section{}, fmt.Errorf("%w: %q in module %q", ErrSectionNotFound, section, module)
}

// Params returns the ordered descriptors for a scope. With an empty module
// every registered param is returned. Otherwise each section of the module
// (or only the named one) contributes its own params followed by its groups'
// params; a non-empty group narrows the result to that group.
//
// A section param is merged with the registered param of the same name:
// attributes set on the section param win.
func (r *Registry) Params(module, section, group string) ([]model.Field, error) {
	if module == "" {
		out := make([]model.Field, 0, len(r.order))
		for _, name := range r.order {
			out = append(out, cloneField(r.params[name]))
		}
		return out, nil
	}

	m, err := r.Module(module)
	if err != nil {
		return nil, err
	}

	var (
		out   []model.Field
		found bool
	)
	for _, s := range m.Sections {
		if section != "" && s.Name != section {
			continue
		}
		found = true
		if group == "" {
			for _, ref := range s.Params {
				merged, err := r.resolve(ref)
				if err != nil {
					return nil, err
				}
				out = append(out, merged)
			}
		}
		for _, g := range s.Groups {
			if group != "" && g.Name != group {
				continue
			}
			for _, ref := range g.Params {
				merged, err := r.resolve(ref)
				if err != nil {
					return nil, err
				}
				out = append(out, merged)
			}
		}
	}
	if section != "" && !found {
		return nil, fmt.Errorf("%w: %q in module %q", ErrSectionNotFound, section, module)
	}
	return out, nil
}

// resolve merges a section reference with its registered param. A reference
// to an unregistered name is used as an inline definition when it carries
// more than a name.
func (r *Registry) resolve(ref model.Field) (model.Field, error) {
	base, ok := r.params[ref.Name]
	if !ok {
		if isNameOnly(ref) {
			return model.Field{}, fmt.Errorf("%w: %q", ErrParamNotFound, ref.Name)
		}
		return cloneField(ref), nil
	}
	ref.Template = ""
	return mergeField(ref, base), nil
}

// mergeField fills every zero attribute of over from base.
func mergeField(over, base model.Field) model.Field {
	out := cloneField(over)
	dst := reflect.ValueOf(&out).Elem()
	src := reflect.ValueOf(cloneField(base))
	for i := 0; i < dst.NumField(); i++ {
		if dst.Field(i).CanSet() && dst.Field(i).IsZero() {
			dst.Field(i).Set(src.Field(i))
		}
	}
	return out
}

func isNameOnly(field model.Field) bool {
	field.Name, field.Template = "", ""
	return reflect.ValueOf(field).IsZero()
}

// cloneField deep copies the reference-typed attributes of a field so
// callers cannot mutate the registry.
func cloneField(field model.Field) model.Field {
	out := field
	if field.Prompt != nil {
		v := *field.Prompt
		out.Prompt = &v
	}
	if field.Export != nil {
		v := *field.Export
		out.Export = &v
	}
	if field.Validate != nil {
		v := *field.Validate
		out.Validate = &v
	}
	if field.When != nil {
		v := *field.When
		out.When = &v
	}
	if field.CLI != nil {
		v := *field.CLI
		out.CLI = &v
	}
	out.Default = values.DeepCopy(field.Default)
	if field.Choices != nil {
		out.Choices = append([]model.Choice(nil), field.Choices...)
	}
	if field.DependsOn != nil {
		out.DependsOn = append([]string(nil), field.DependsOn...)
	}
	if field.Custom != nil {
		custom, _ := values.DeepCopy(field.Custom).(map[string]any)
		out.Custom = custom
	}
	return out
}
