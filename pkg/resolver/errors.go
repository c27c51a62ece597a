package resolver

import (
	"fmt"
	"strings"
)

// IOError reports an unreadable schema file. Resolution fails fast on
// the first one.
type IOError struct {
	Path string
	Err  error
}

// Error implements the error interface
func (e *IOError) Error() string {
	return fmt.Sprintf("cannot read schema file %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *IOError) Unwrap() error {
	return e.Err
}

// CircularImportError reports an import cycle. Cycle holds the full
// trace in loading order, first file repeated at the end.
type CircularImportError struct {
	Cycle []string
}

// Error implements the error interface
func (e *CircularImportError) Error() string {
	return "circular import: " + strings.Join(e.Cycle, " -> ")
}

// CircularAliasError reports a self- or mutually-referential alias
// chain. Chain holds the names in resolution order, first alias
// repeated at the end.
type CircularAliasError struct {
	Chain []string
}

// Error implements the error interface
func (e *CircularAliasError) Error() string {
	return "circular type alias: " + strings.Join(e.Chain, " -> ")
}

// UndefinedImportError reports an import naming a symbol its target
// file does not declare. Accumulated during validation.
type UndefinedImportError struct {
	File   string
	Target string
	Symbol string
}

// Error implements the error interface
func (e *UndefinedImportError) Error() string {
	return fmt.Sprintf("%s imports %q from %s, which does not declare it", e.File, e.Symbol, e.Target)
}

// UndefinedTypeError reports a reference to a type that is not present
// in the resolution namespace. Accumulated during validation.
type UndefinedTypeError struct {
	TypeName string // the declaration containing the reference
	RefName  string // the undefined name being referenced
	File     string
	Line     int
	Column   int
}

// Error implements the error interface
func (e *UndefinedTypeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s references undefined type %q", e.File, e.Line, e.Column, e.TypeName, e.RefName)
	}
	return fmt.Sprintf("%s references undefined type %q", e.TypeName, e.RefName)
}

// DuplicateTypeNameError reports the same name declared twice in one
// resolution scope. Accumulated during validation.
type DuplicateTypeNameError struct {
	Name       string
	FirstFile  string
	SecondFile string
}

// Error implements the error interface
func (e *DuplicateTypeNameError) Error() string {
	return fmt.Sprintf("duplicate type name %q declared in %s and %s", e.Name, e.FirstFile, e.SecondFile)
}

// DuplicateVariantNameError reports two variants with the same name in
// one enum. Variant identity is name-based, so duplicates would make
// evolution analysis ambiguous. Accumulated during validation.
type DuplicateVariantNameError struct {
	Enum    string
	Variant string
	File    string
}

// Error implements the error interface
func (e *DuplicateVariantNameError) Error() string {
	return fmt.Sprintf("enum %s declares variant %q more than once in %s", e.Enum, e.Variant, e.File)
}

// DuplicateFieldNameError reports two fields with the same name in one
// struct. Field identity is name-based, so duplicates would make
// evolution analysis ambiguous. Accumulated during validation.
type DuplicateFieldNameError struct {
	Type  string
	Field string
	File  string
}

// Error implements the error interface
func (e *DuplicateFieldNameError) Error() string {
	return fmt.Sprintf("%s declares field %q more than once in %s", e.Type, e.Field, e.File)
}

// ValidationErrors aggregates every validation problem found in one
// build pass so authors see all of them at once. Ordering is
// deterministic for identical inputs.
type ValidationErrors struct {
	Errors []error
}

// Error implements the error interface
func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "schema validation failed with %d errors:", len(e.Errors))
	for _, err := range e.Errors {
		sb.WriteString("\n  - ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Unwrap exposes the aggregated errors to errors.Is and errors.As.
func (e *ValidationErrors) Unwrap() []error {
	return e.Errors
}

// add appends an error to the aggregate.
func (e *ValidationErrors) add(err error) {
	e.Errors = append(e.Errors, err)
}

// orNil returns nil when no errors were accumulated.
func (e *ValidationErrors) orNil() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}
