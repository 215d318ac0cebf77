package model

import (
	"regexp"
	"strings"

	"github.com/goliatone/go-formspec/pkg/visibility"
)

// DataType is the storage type of a field value.
type DataType string

const (
	DataTypeString     DataType = "str"
	DataTypeInt        DataType = "int"
	DataTypeFloat      DataType = "float"
	DataTypeBool       DataType = "bool"
	DataTypeAttributes DataType = "attributes"
)

// ParamType is the widget hint for a field.
type ParamType string

const (
	ParamTypeAuto            ParamType = "auto"
	ParamTypeText            ParamType = "text"
	ParamTypePassword        ParamType = "password"
	ParamTypeNewPassword     ParamType = "new-password"
	ParamTypePath            ParamType = "path"
	ParamTypeConfirm         ParamType = "confirm"
	ParamTypeSelect          ParamType = "select"
	ParamTypeRawSelect       ParamType = "raw_select"
	ParamTypeCheckbox        ParamType = "checkbox"
	ParamTypeAutocomplete    ParamType = "autocomplete"
	ParamTypeSelectOrText    ParamType = "select_or_text"
	ParamTypeChoices         ParamType = "choices"
	ParamTypeAttributeEditor ParamType = "attribute_editor"
	ParamTypeRadioGroup      ParamType = "radio-group"
	ParamTypeTiles           ParamType = "tiles"
	ParamTypeDatePicker      ParamType = "datepicker"
	ParamTypeFileUpload      ParamType = "file-upload"
	ParamTypeImageUpload     ParamType = "image_upload"
	ParamTypeExpandable      ParamType = "expandable"
	ParamTypeHeading1        ParamType = "heading1"
	ParamTypeHeading2        ParamType = "heading2"
	ParamTypeHeading3        ParamType = "heading3"
	ParamTypeHeading4        ParamType = "heading4"
	ParamTypeHeading5        ParamType = "heading5"
	ParamTypeHeading6        ParamType = "heading6"
	ParamTypeParagraph       ParamType = "paragraph"
	ParamTypeCode            ParamType = "code"
)

// DataTypes lists the recognised data types.
var DataTypes = []DataType{
	DataTypeString, DataTypeInt, DataTypeFloat, DataTypeBool, DataTypeAttributes,
}

// ParamTypes lists the recognised widget hints.
var ParamTypes = []ParamType{
	ParamTypeAuto, ParamTypeText, ParamTypePassword, ParamTypeNewPassword, ParamTypePath,
	ParamTypeConfirm, ParamTypeSelect, ParamTypeRawSelect, ParamTypeCheckbox,
	ParamTypeAutocomplete, ParamTypeSelectOrText, ParamTypeChoices, ParamTypeAttributeEditor,
	ParamTypeRadioGroup, ParamTypeTiles, ParamTypeDatePicker, ParamTypeFileUpload,
	ParamTypeImageUpload, ParamTypeExpandable, ParamTypeHeading1, ParamTypeHeading2,
	ParamTypeHeading3, ParamTypeHeading4, ParamTypeHeading5, ParamTypeHeading6,
	ParamTypeParagraph, ParamTypeCode,
}

// Valid reports whether d is a recognised data type.
func (d DataType) Valid() bool {
	for _, known := range DataTypes {
		if d == known {
			return true
		}
	}
	return false
}

// Valid reports whether p is a recognised widget hint.
func (p ParamType) Valid() bool {
	for _, known := range ParamTypes {
		if p == known {
			return true
		}
	}
	return false
}

// DisplayOnly reports whether the widget renders text and collects no value.
func (p ParamType) DisplayOnly() bool {
	switch p {
	case ParamTypeHeading1, ParamTypeHeading2, ParamTypeHeading3, ParamTypeHeading4,
		ParamTypeHeading5, ParamTypeHeading6, ParamTypeParagraph, ParamTypeCode:
		return true
	}
	return false
}

// HasChoices reports whether the widget picks from a choice list.
func (p ParamType) HasChoices() bool {
	switch p {
	case ParamTypeSelect, ParamTypeRawSelect, ParamTypeCheckbox, ParamTypeAutocomplete,
		ParamTypeSelectOrText, ParamTypeChoices, ParamTypeRadioGroup, ParamTypeTiles:
		return true
	}
	return false
}

// Default value tokens resolved against the field's choices.
const (
	DefaultFirstChoice = "$first"
	DefaultAllChoices  = "$all"
)

// Choice is one selectable option.
type Choice struct {
	Title       string `json:"title,omitempty" yaml:"title,omitempty"`
	Value       any    `json:"value,omitempty" yaml:"value,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Disabled    bool   `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Checked     bool   `json:"checked,omitempty" yaml:"checked,omitempty"`
}

// Validate holds the constraints checked on submit. Pattern is the compiled
// form of Regex and is filled during normalisation.
type Validate struct {
	Required   bool           `json:"required,omitempty" yaml:"required,omitempty"`
	Regex      string         `json:"regex,omitempty" yaml:"regex,omitempty"`
	Message    string         `json:"message,omitempty" yaml:"message,omitempty"`
	Min        *float64       `json:"min,omitempty" yaml:"min,omitempty"`
	Max        *float64       `json:"max,omitempty" yaml:"max,omitempty"`
	MinLength  *int           `json:"min_length,omitempty" yaml:"min_length,omitempty"`
	MaxLength  *int           `json:"max_length,omitempty" yaml:"max_length,omitempty"`
	AutoPrefix string         `json:"auto_prefix,omitempty" yaml:"auto_prefix,omitempty"`
	Pattern    *regexp.Regexp `json:"-" yaml:"-"`
}

// CLIOptions exposes a field as a command line flag.
type CLIOptions struct {
	Enabled  bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	LongName string `json:"long_name,omitempty" yaml:"long_name,omitempty"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty"`
	HelpText string `json:"help_text,omitempty" yaml:"help_text,omitempty"`
}

// Field describes one parameter of a form. Predicate is the compiled union
// of When and VisibleIf and is filled during normalisation.
type Field struct {
	Name              string                `json:"name" yaml:"name"`
	Template          string                `json:"template,omitempty" yaml:"template,omitempty"`
	Title             string                `json:"title,omitempty" yaml:"title,omitempty"`
	Prompt            *bool                 `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Description       string                `json:"description,omitempty" yaml:"description,omitempty"`
	Description2      string                `json:"description2,omitempty" yaml:"description2,omitempty"`
	HelpText          string                `json:"help_text,omitempty" yaml:"help_text,omitempty"`
	Markdown          string                `json:"markdown,omitempty" yaml:"markdown,omitempty"`
	Tag               string                `json:"tag,omitempty" yaml:"tag,omitempty"`
	DataType          DataType              `json:"data_type,omitempty" yaml:"data_type,omitempty"`
	ParamType         ParamType             `json:"param_type,omitempty" yaml:"param_type,omitempty"`
	Multiple          bool                  `json:"multiple,omitempty" yaml:"multiple,omitempty"`
	Multiline         bool                  `json:"multiline,omitempty" yaml:"multiline,omitempty"`
	Readonly          bool                  `json:"readonly,omitempty" yaml:"readonly,omitempty"`
	Export            *bool                 `json:"export,omitempty" yaml:"export,omitempty"`
	Default           any                   `json:"default,omitempty" yaml:"default,omitempty"`
	Validate          *Validate             `json:"validate,omitempty" yaml:"validate,omitempty"`
	When              *visibility.Condition `json:"when,omitempty" yaml:"when,omitempty"`
	VisibleIf         string                `json:"visible_if,omitempty" yaml:"visible_if,omitempty"`
	Choices           []Choice              `json:"choices,omitempty" yaml:"choices,omitempty"`
	DynamicChoices    bool                  `json:"dynamic_choices,omitempty" yaml:"dynamic_choices,omitempty"`
	ChoicesEmptyLabel string                `json:"choices_empty_label,omitempty" yaml:"choices_empty_label,omitempty"`
	Refreshable       bool                  `json:"refreshable,omitempty" yaml:"refreshable,omitempty"`
	DependsOn         []string              `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	CLI               *CLIOptions           `json:"cli,omitempty" yaml:"cli,omitempty"`
	Custom            map[string]any        `json:"custom,omitempty" yaml:"custom,omitempty"`
	Predicate         visibility.Predicate  `json:"-" yaml:"-"`
}

// EffectiveDataType returns the data type, defaulting to str.
func (f Field) EffectiveDataType() DataType {
	if f.DataType == "" {
		return DataTypeString
	}
	return f.DataType
}

// IsRequired reports whether the field carries a required constraint.
func (f Field) IsRequired() bool {
	return f.Validate != nil && f.Validate.Required
}

// IsPrompt reports whether interactive sessions ask for the field.
func (f Field) IsPrompt() bool {
	return f.Prompt == nil || *f.Prompt
}

// IsExport reports whether the field is included in exported values.
func (f Field) IsExport() bool {
	return f.Export == nil || *f.Export
}

// IsDisplayOnly reports whether the field renders text without a value.
func (f Field) IsDisplayOnly() bool {
	return f.ParamType.DisplayOnly()
}

// HasChoices reports whether the field selects from static or fetched
// choices.
func (f Field) HasChoices() bool {
	return f.DynamicChoices || len(f.Choices) > 0
}

// Dependencies returns the parameters whose changes affect the field: the
// ones its visibility predicate reads plus any declared in DependsOn.
func (f Field) Dependencies() []string {
	deps := visibility.Params(f.Predicate)
	for _, dep := range f.DependsOn {
		dep = strings.TrimSpace(dep)
		if dep == "" || dep == f.Name || contains(deps, dep) {
			continue
		}
		deps = append(deps, dep)
	}
	return deps
}

// CLIArgName returns the long flag name when the field is exposed on the
// command line.
func (f Field) CLIArgName() string {
	if f.CLI == nil || !f.CLI.Enabled {
		return ""
	}
	if f.CLI.LongName != "" {
		return strings.TrimLeft(f.CLI.LongName, "-")
	}
	return strings.ReplaceAll(f.Name, "_", "-")
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
