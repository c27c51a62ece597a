package schema

import (
	"encoding/json"
	"fmt"
)

// Position represents a location in schema source
type Position struct {
	Line   int
	Column int
	Offset int
}

// File is one parsed schema source file. It is immutable once produced by
// the parser; resolution layers read it but never mutate it.
type File struct {
	// Path is the canonical (absolute, cleaned) path of the file.
	Path string
	// Source is the raw file content, retained for diagnostics.
	Source string
	// Imports in declaration order.
	Imports []*Import
	// Types holds struct and enum declarations in declaration order.
	Types []*TypeDecl
	// Aliases holds type alias declarations in declaration order.
	Aliases []*AliasDecl
	// Version is the semantic version attached to this file's versioned
	// declaration, empty when no declaration carries one.
	Version string
}

// DeclaredNames returns the set of symbols this file declares
// (types and aliases), usable for import validation.
func (f *File) DeclaredNames() map[string]bool {
	names := make(map[string]bool, len(f.Types)+len(f.Aliases))
	for _, t := range f.Types {
		names[t.Name] = true
	}
	for _, a := range f.Aliases {
		names[a.Name] = true
	}
	return names
}

// Import represents one import statement
type Import struct {
	// From is the path of the importing file.
	From string
	// Target is the relative path as written, extension optional.
	Target string
	// Symbols are the imported names in declaration order.
	Symbols []string
	Pos     Position
}

// TypeKind discriminates struct and enum declarations
type TypeKind int

const (
	KindStruct TypeKind = iota
	KindEnum
)

// String returns the kind name
func (k TypeKind) String() string {
	return []string{"struct", "enum"}[k]
}

// MarshalJSON renders the kind as its name
func (k TypeKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON parses a kind name back to its discriminant
func (k *TypeKind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "struct":
		*k = KindStruct
	case "enum":
		*k = KindEnum
	default:
		return fmt.Errorf("unknown type kind %q", name)
	}
	return nil
}

// TypeDecl is a struct or enum declaration
type TypeDecl struct {
	Name string   `json:"name"`
	Kind TypeKind `json:"kind"`
	// Fields is populated for structs, in declaration order.
	Fields []*Field `json:"fields,omitempty"`
	// Variants is populated for enums, in declaration order. Variant
	// position determines the on-wire discriminant.
	Variants []*EnumVariant `json:"variants,omitempty"`
	Attrs    AttributeSet   `json:"attributes,omitempty"`
	Pos      Position       `json:"-"`
	// SourceFile is the canonical path of the declaring file.
	SourceFile string `json:"-"`
}

// FieldNames returns the field names in declaration order.
func (d *TypeDecl) FieldNames() []string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Name
	}
	return names
}

// Field is a single struct field
type Field struct {
	Name string   `json:"name"`
	Type *TypeRef `json:"type"`
	// Optional is true when the declared type is Option<T>.
	Optional bool         `json:"optional,omitempty"`
	Attrs    AttributeSet `json:"attributes,omitempty"`
	Pos      Position     `json:"-"`
}

// VariantKind discriminates the three enum variant shapes
type VariantKind int

const (
	VariantUnit VariantKind = iota
	VariantTuple
	VariantStruct
)

// String returns the variant kind name
func (k VariantKind) String() string {
	return []string{"unit", "tuple", "struct"}[k]
}

// MarshalJSON renders the kind as its name
func (k VariantKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON parses a variant kind name back to its discriminant
func (k *VariantKind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "unit":
		*k = VariantUnit
	case "tuple":
		*k = VariantTuple
	case "struct":
		*k = VariantStruct
	default:
		return fmt.Errorf("unknown variant kind %q", name)
	}
	return nil
}

// EnumVariant is one variant of an enum declaration
type EnumVariant struct {
	Name string      `json:"name"`
	Kind VariantKind `json:"kind"`
	// Fields holds tuple elements (with synthetic names "0", "1", ...) or
	// struct-variant fields, in declaration order.
	Fields []*Field `json:"fields,omitempty"`
	Pos    Position `json:"-"`
}

// AliasDecl is a type alias declaration. Target may itself reference
// another alias; chains are flattened during resolution.
type AliasDecl struct {
	Name   string
	Target *TypeRef
	Pos    Position
	// SourceFile is the canonical path of the declaring file.
	SourceFile string
}
