package formspec

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-formspec/pkg/model"
	"github.com/goliatone/go-formspec/pkg/visibility"
)

// Issue is one problem found by Lint.
type Issue struct {
	Path    string `json:"path,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Result captures lint outcomes for one spec.
type Result struct {
	Spec   string  `json:"spec,omitempty"`
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues,omitempty"`
}

type linter struct {
	normalizer model.Normalizer
	known      map[string]struct{}
	result     Result
}

// Lint reports every problem in spec instead of stopping at the first:
// duplicate names, descriptors the normalizer rejects, conditions and
// depends_on entries naming unknown params, and missing templates.
func Lint(spec *Spec) Result {
	l := &linter{
		normalizer: model.NewNormalizer(),
		known:      make(map[string]struct{}),
		result:     Result{Valid: true},
	}
	if spec == nil {
		l.add("", "", "spec is nil")
		return l.result
	}
	l.result.Spec = spec.Name
	if strings.TrimSpace(spec.Name) == "" {
		l.add("name", "", "spec name is required")
	}

	l.collect(spec)

	seen := make(map[string]struct{}, len(spec.Params))
	for i, param := range spec.Params {
		path := fmt.Sprintf("params[%d]", i)
		if _, dup := seen[param.Name]; dup && param.Name != "" {
			l.add(path, param.Name, "duplicate param name")
		}
		seen[param.Name] = struct{}{}
		l.param(path, param, true)
	}

	modules := make(map[string]struct{}, len(spec.Modules))
	for i, module := range spec.Modules {
		path := fmt.Sprintf("modules[%d]", i)
		if module.Name == "" {
			l.add(path, "", "module name is required")
		} else if _, dup := modules[module.Name]; dup {
			l.add(path, "", fmt.Sprintf("duplicate module %q", module.Name))
		}
		modules[module.Name] = struct{}{}

		sections := make(map[string]struct{}, len(module.Sections))
		for j, section := range module.Sections {
			sectionPath := fmt.Sprintf("%s.sections[%d]", path, j)
			if section.Name == "" {
				l.add(sectionPath, "", "section name is required")
			} else if _, dup := sections[section.Name]; dup {
				l.add(sectionPath, "", fmt.Sprintf("duplicate section %q", section.Name))
			}
			sections[section.Name] = struct{}{}

			for k, ref := range section.Params {
				l.reference(fmt.Sprintf("%s.params[%d]", sectionPath, k), ref)
			}
			for g, group := range section.Groups {
				groupPath := fmt.Sprintf("%s.groups[%d]", sectionPath, g)
				if group.Name == "" {
					l.add(groupPath, "", "group name is required")
				}
				for k, ref := range group.Params {
					l.reference(fmt.Sprintf("%s.params[%d]", groupPath, k), ref)
				}
			}
		}
	}
	return l.result
}

// collect records every name a condition may reference.
func (l *linter) collect(spec *Spec) {
	mark := func(fields []model.Field) {
		for _, field := range fields {
			if field.Name != "" {
				l.known[field.Name] = struct{}{}
			}
		}
	}
	mark(spec.Params)
	for _, module := range spec.Modules {
		for _, section := range module.Sections {
			mark(section.Params)
			for _, group := range section.Groups {
				mark(group.Params)
			}
		}
	}
}

// reference checks a section or group param.
func (l *linter) reference(path string, ref model.Field) {
	if ref.Name == "" {
		l.add(path, "", model.ErrNameMissing.Error())
		return
	}
	if ref.Template != "" {
		if _, ok := l.known[ref.Template]; !ok {
			l.add(path, ref.Name, fmt.Sprintf("template %q is not defined", ref.Template))
		}
		return
	}
	if isNameOnly(ref) {
		return
	}
	l.param(path, ref, false)
}

func (l *linter) param(path string, field model.Field, topLevel bool) {
	if field.Name == "" {
		l.add(path, "", model.ErrNameMissing.Error())
		return
	}
	if field.Template != "" && topLevel {
		l.add(path, field.Name, "template is only allowed on section and group params")
	}

	normalized, err := l.normalizer.NormalizeField(field)
	if err != nil {
		l.add(path, field.Name, err.Error())
		return
	}

	for _, name := range visibility.Params(normalized.Predicate) {
		if strings.HasPrefix(name, visibility.ExtrasPrefix) {
			continue
		}
		if _, ok := l.known[name]; !ok {
			l.add(path, field.Name, fmt.Sprintf("condition references unknown param %q", name))
		}
	}
	for _, dep := range field.DependsOn {
		if _, ok := l.known[dep]; !ok {
			l.add(path, field.Name, fmt.Sprintf("depends_on references unknown param %q", dep))
		}
	}
	if token, ok := field.Default.(string); ok && (token == model.DefaultFirstChoice || token == model.DefaultAllChoices) && !normalized.HasChoices() {
		l.add(path, field.Name, fmt.Sprintf("default %s requires choices", token))
	}
}

func (l *linter) add(path, field, message string) {
	l.result.Valid = false
	l.result.Issues = append(l.result.Issues, Issue{Path: path, Field: field, Message: message})
}
