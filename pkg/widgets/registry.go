package widgets

import (
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-formspec/pkg/model"
)

// Matcher decides whether a widget should handle the supplied field.
type Matcher func(field model.Field) bool

type rule struct {
	widget   model.ParamType
	priority int
	match    Matcher
	order    int
}

// Registry resolves the widget for fields whose param_type is auto. Higher
// priority wins; ties fall back to registration order. An explicit
// param_type always wins and fields nothing matches fall back to text.
type Registry struct {
	mu    sync.RWMutex
	rules []rule
}

// NewRegistry constructs a registry with the built-in matchers registered.
func NewRegistry() *Registry {
	reg := &Registry{}
	reg.registerBuiltins()
	return reg
}

// Register adds a matcher for widget with the provided priority.
func (r *Registry) Register(widget model.ParamType, priority int, matcher Matcher) {
	if r == nil || matcher == nil {
		return
	}
	widget = model.ParamType(strings.TrimSpace(string(widget)))
	if widget == "" || widget == model.ParamTypeAuto {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules = append(r.rules, rule{
		widget:   widget,
		priority: priority,
		match:    matcher,
		order:    len(r.rules),
	})
}

// Resolve returns the effective widget for a field.
func (r *Registry) Resolve(field model.Field) model.ParamType {
	if explicit := field.ParamType; explicit != "" && explicit != model.ParamTypeAuto {
		return explicit
	}
	if r == nil {
		return model.ParamTypeText
	}
	r.mu.RLock()
	rules := append([]rule(nil), r.rules...)
	r.mu.RUnlock()
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].priority == rules[j].priority {
			return rules[i].order < rules[j].order
		}
		return rules[i].priority > rules[j].priority
	})
	for _, entry := range rules {
		if entry.match(field) {
			return entry.widget
		}
	}
	return model.ParamTypeText
}

// Decorate implements model.Decorator, replacing auto param types with the
// resolved widget.
func (r *Registry) Decorate(fields []model.Field) error {
	for i := range fields {
		fields[i].ParamType = r.Resolve(fields[i])
	}
	return nil
}

func (r *Registry) registerBuiltins() {
	r.Register(model.ParamTypeConfirm, 90, func(field model.Field) bool {
		return field.EffectiveDataType() == model.DataTypeBool && !field.Multiple
	})

	r.Register(model.ParamTypeCheckbox, 80, func(field model.Field) bool {
		return field.Multiple && field.HasChoices()
	})

	r.Register(model.ParamTypeSelect, 70, func(field model.Field) bool {
		return field.HasChoices()
	})

	r.Register(model.ParamTypeAttributeEditor, 60, func(field model.Field) bool {
		return field.EffectiveDataType() == model.DataTypeAttributes
	})

	r.Register(model.ParamTypePassword, 50, func(field model.Field) bool {
		name := strings.ToLower(field.Name)
		if idx := strings.LastIndex(name, "."); idx >= 0 {
			name = name[idx+1:]
		}
		return field.EffectiveDataType() == model.DataTypeString &&
			(strings.Contains(name, "password") || strings.HasSuffix(name, "secret"))
	})
}
