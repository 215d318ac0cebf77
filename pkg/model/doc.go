// Package model defines the field descriptors every other package consumes.
// A Field carries its storage type (DataType), a widget hint (ParamType),
// validation constraints, an optional visibility condition (When or the
// compact VisibleIf rule), static or dynamic choices, and presentation text.
// Normalisation lives in internal/model and compiles conditions and regexes
// once so evaluation never re-parses them.
package model
