package openapi

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formspec/pkg/model"
	"github.com/goliatone/go-formspec/pkg/visibility"
)

const (
	extensionNamespace = "x-formspec"

	extWhen           = extensionNamespace + "-when"
	extVisibleIf      = extensionNamespace + "-visible-if"
	extParamType      = extensionNamespace + "-param-type"
	extDynamicChoices = extensionNamespace + "-dynamic-choices"
	extDependsOn      = extensionNamespace + "-depends-on"
)

// fieldsFromSchema walks an object schema. Properties are visited in name
// order; read-only properties are skipped.
func fieldsFromSchema(schema *openapi3.Schema) ([]model.Field, error) {
	var fields []model.Field
	if err := walk(mergeAllOf(schema), "", &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func walk(schema *openapi3.Schema, prefix string, out *[]model.Field) error {
	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	for _, name := range names {
		ref := schema.Properties[name]
		if ref == nil || ref.Value == nil || ref.Value.ReadOnly {
			continue
		}
		prop := mergeAllOf(ref.Value)
		path := prefix + name

		if schemaType(prop) == openapi3.TypeObject && len(prop.Properties) > 0 && paramType(prop) != model.ParamTypeAttributeEditor {
			if err := walk(prop, path+".", out); err != nil {
				return err
			}
			continue
		}

		field, err := fieldFromProperty(path, prop, required[name])
		if err != nil {
			return err
		}
		*out = append(*out, field)
	}
	return nil
}

func fieldFromProperty(path string, prop *openapi3.Schema, required bool) (model.Field, error) {
	field := model.Field{
		Name:        path,
		Title:       prop.Title,
		Description: prop.Description,
		Default:     prop.Default,
		ParamType:   paramType(prop),
	}

	element := prop
	switch schemaType(prop) {
	case openapi3.TypeArray:
		field.Multiple = true
		if prop.Items != nil && prop.Items.Value != nil {
			element = prop.Items.Value
		}
	case openapi3.TypeObject:
		field.DataType = model.DataTypeAttributes
	}
	if field.DataType == "" {
		field.DataType = dataType(element)
	}

	for _, value := range element.Enum {
		field.Choices = append(field.Choices, model.ScalarChoice(value))
	}
	if field.ParamType == "" {
		switch {
		case len(field.Choices) > 0:
			field.ParamType = model.ParamTypeSelect
		case element.Format == "password":
			field.ParamType = model.ParamTypePassword
		case element.Format == "date" || element.Format == "date-time":
			field.ParamType = model.ParamTypeDatePicker
		}
	}

	field.Validate = validation(element, required)
	if err := applyExtensions(&field, prop.Extensions); err != nil {
		return model.Field{}, fmt.Errorf("openapi: property %q: %w", path, err)
	}
	return field, nil
}

func validation(s *openapi3.Schema, required bool) *model.Validate {
	v := &model.Validate{Required: required, Regex: s.Pattern}
	if s.Min != nil {
		lo := *s.Min
		v.Min = &lo
	}
	if s.Max != nil {
		hi := *s.Max
		v.Max = &hi
	}
	if s.MinLength > 0 {
		n := int(s.MinLength)
		v.MinLength = &n
	}
	if s.MaxLength != nil {
		n := int(*s.MaxLength)
		v.MaxLength = &n
	}
	if *v == (model.Validate{}) {
		return nil
	}
	return v
}

func applyExtensions(field *model.Field, ext map[string]any) error {
	if raw, ok := ext[extWhen]; ok {
		data, err := json.Marshal(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", extWhen, err)
		}
		var cond visibility.Condition
		if err := json.Unmarshal(data, &cond); err != nil {
			return fmt.Errorf("%s: %w", extWhen, err)
		}
		field.When = &cond
	}
	if expr, ok := ext[extVisibleIf].(string); ok {
		field.VisibleIf = expr
	}
	if dynamic, ok := ext[extDynamicChoices].(bool); ok {
		field.DynamicChoices = dynamic
	}
	switch deps := ext[extDependsOn].(type) {
	case string:
		field.DependsOn = []string{deps}
	case []any:
		for _, dep := range deps {
			if name, ok := dep.(string); ok {
				field.DependsOn = append(field.DependsOn, name)
			}
		}
	}
	return nil
}

func paramType(s *openapi3.Schema) model.ParamType {
	if raw, ok := s.Extensions[extParamType].(string); ok {
		return model.ParamType(strings.TrimSpace(raw))
	}
	return ""
}

func schemaType(s *openapi3.Schema) string {
	if s.Type == nil {
		if len(s.Properties) > 0 {
			return openapi3.TypeObject
		}
		return ""
	}
	values := s.Type.Slice()
	for _, t := range values {
		if t != "null" {
			return t
		}
	}
	return ""
}

func dataType(s *openapi3.Schema) model.DataType {
	switch schemaType(s) {
	case openapi3.TypeInteger:
		return model.DataTypeInt
	case openapi3.TypeNumber:
		return model.DataTypeFloat
	case openapi3.TypeBoolean:
		return model.DataTypeBool
	case openapi3.TypeObject:
		return model.DataTypeAttributes
	}
	return model.DataTypeString
}

// mergeAllOf folds allOf members into a copy of s: properties, required
// names and extensions of members are added where s lacks them.
func mergeAllOf(s *openapi3.Schema) *openapi3.Schema {
	if len(s.AllOf) == 0 {
		return s
	}
	merged := *s
	merged.Properties = make(openapi3.Schemas, len(s.Properties))
	for name, prop := range s.Properties {
		merged.Properties[name] = prop
	}
	merged.Extensions = make(map[string]any, len(s.Extensions))
	for key, value := range s.Extensions {
		merged.Extensions[key] = value
	}
	merged.Required = append([]string(nil), s.Required...)

	for _, ref := range s.AllOf {
		if ref == nil || ref.Value == nil {
			continue
		}
		member := mergeAllOf(ref.Value)
		if merged.Type == nil {
			merged.Type = member.Type
		}
		for name, prop := range member.Properties {
			if _, ok := merged.Properties[name]; !ok {
				merged.Properties[name] = prop
			}
		}
		merged.Required = append(merged.Required, member.Required...)
		for key, value := range member.Extensions {
			if _, ok := merged.Extensions[key]; !ok {
				merged.Extensions[key] = value
			}
		}
	}
	return &merged
}
