package model

import (
	internalmodel "github.com/goliatone/go-formspec/internal/model"
	"github.com/goliatone/go-formspec/pkg/visibility"
)

// DataType re-exports the internal DataType enumeration.
type DataType = internalmodel.DataType

const (
	DataTypeString     = internalmodel.DataTypeString
	DataTypeInt        = internalmodel.DataTypeInt
	DataTypeFloat      = internalmodel.DataTypeFloat
	DataTypeBool       = internalmodel.DataTypeBool
	DataTypeAttributes = internalmodel.DataTypeAttributes
)

// ParamType re-exports the internal ParamType enumeration.
type ParamType = internalmodel.ParamType

const (
	ParamTypeAuto            = internalmodel.ParamTypeAuto
	ParamTypeText            = internalmodel.ParamTypeText
	ParamTypePassword        = internalmodel.ParamTypePassword
	ParamTypeNewPassword     = internalmodel.ParamTypeNewPassword
	ParamTypePath            = internalmodel.ParamTypePath
	ParamTypeConfirm         = internalmodel.ParamTypeConfirm
	ParamTypeSelect          = internalmodel.ParamTypeSelect
	ParamTypeRawSelect       = internalmodel.ParamTypeRawSelect
	ParamTypeCheckbox        = internalmodel.ParamTypeCheckbox
	ParamTypeAutocomplete    = internalmodel.ParamTypeAutocomplete
	ParamTypeSelectOrText    = internalmodel.ParamTypeSelectOrText
	ParamTypeChoices         = internalmodel.ParamTypeChoices
	ParamTypeAttributeEditor = internalmodel.ParamTypeAttributeEditor
	ParamTypeRadioGroup      = internalmodel.ParamTypeRadioGroup
	ParamTypeTiles           = internalmodel.ParamTypeTiles
	ParamTypeDatePicker      = internalmodel.ParamTypeDatePicker
	ParamTypeFileUpload      = internalmodel.ParamTypeFileUpload
	ParamTypeImageUpload     = internalmodel.ParamTypeImageUpload
	ParamTypeExpandable      = internalmodel.ParamTypeExpandable
	ParamTypeHeading1        = internalmodel.ParamTypeHeading1
	ParamTypeHeading2        = internalmodel.ParamTypeHeading2
	ParamTypeHeading3        = internalmodel.ParamTypeHeading3
	ParamTypeHeading4        = internalmodel.ParamTypeHeading4
	ParamTypeHeading5        = internalmodel.ParamTypeHeading5
	ParamTypeHeading6        = internalmodel.ParamTypeHeading6
	ParamTypeParagraph       = internalmodel.ParamTypeParagraph
	ParamTypeCode            = internalmodel.ParamTypeCode
)

const (
	DefaultFirstChoice = internalmodel.DefaultFirstChoice
	DefaultAllChoices  = internalmodel.DefaultAllChoices
)

var (
	DataTypes  = internalmodel.DataTypes
	ParamTypes = internalmodel.ParamTypes
)

type Choice = internalmodel.Choice
type Validate = internalmodel.Validate
type CLIOptions = internalmodel.CLIOptions
type Field = internalmodel.Field

// Condition is the declarative visibility condition of a field.
type Condition = visibility.Condition

var (
	ErrNameMissing    = internalmodel.ErrNameMissing
	ErrDuplicateField = internalmodel.ErrDuplicateField
	ErrDataType       = internalmodel.ErrDataType
	ErrParamType      = internalmodel.ErrParamType
	ErrBounds         = internalmodel.ErrBounds
)

// ScalarChoice builds a choice whose title is the formatted value.
func ScalarChoice(value any) Choice {
	return internalmodel.ScalarChoice(value)
}

// NormalizeChoice fills a missing title or value from the other.
func NormalizeChoice(c Choice) Choice {
	return internalmodel.NormalizeChoice(c)
}
