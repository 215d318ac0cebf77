// Package openapi imports form params from an OpenAPI 3 document. The JSON
// request body of one operation becomes an ordered list of params: nested
// objects flatten to dot-paths, enums become choices and schema constraints
// become validation rules.
//
// Schemas may carry x-formspec-* extensions for what OpenAPI cannot express:
// x-formspec-when, x-formspec-visible-if, x-formspec-param-type,
// x-formspec-dynamic-choices and x-formspec-depends-on.
package openapi
