package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// RefKind discriminates the TypeRef variants
type RefKind int

const (
	// RefPrimitive is a builtin scalar: u8..u128, i8..i128, f32, f64, bool, String.
	RefPrimitive RefKind = iota
	// RefKey is the fixed-size domain key type.
	RefKey
	// RefOption wraps an inner type that may be absent on the wire.
	RefOption
	// RefSequence is a variable-length sequence (Vec<T>).
	RefSequence
	// RefArray is a fixed-length array ([T; N]).
	RefArray
	// RefUser names a struct or enum declared somewhere in the
	// resolution scope.
	RefUser
	// RefAlias names a type alias. The parser cannot tell aliases from
	// user-defined types, so RefAlias only appears after classification
	// against the alias map; none survive into the resolved IR.
	RefAlias
)

// String returns the kind name
func (k RefKind) String() string {
	return []string{"primitive", "key", "option", "sequence", "array", "user", "alias"}[k]
}

// TypeRef is a reference to a type. It is a tagged union: Kind selects
// which of the payload fields are meaningful.
type TypeRef struct {
	Kind RefKind
	// Name is the primitive name, user-defined type name, or alias name.
	Name string
	// Elem is the inner type for Option, Sequence and Array.
	Elem *TypeRef
	// Len is the element count for Array.
	Len int
}

// primitives is the builtin scalar set of the schema language.
var primitives = map[string]bool{
	"u8": true, "u16": true, "u32": true, "u64": true, "u128": true,
	"i8": true, "i16": true, "i32": true, "i64": true, "i128": true,
	"f32": true, "f64": true, "bool": true, "String": true,
}

// IsPrimitiveName reports whether name is a builtin scalar type.
func IsPrimitiveName(name string) bool {
	return primitives[name]
}

// IsNumeric reports whether the reference is a numeric primitive.
func (r *TypeRef) IsNumeric() bool {
	if r.Kind != RefPrimitive {
		return false
	}
	switch r.Name {
	case "bool", "String":
		return false
	default:
		return true
	}
}

// String renders the reference in canonical source syntax.
func (r *TypeRef) String() string {
	if r == nil {
		return "<nil>"
	}
	switch r.Kind {
	case RefPrimitive, RefUser, RefAlias:
		return r.Name
	case RefKey:
		return "Key"
	case RefOption:
		return "Option<" + r.Elem.String() + ">"
	case RefSequence:
		return "Vec<" + r.Elem.String() + ">"
	case RefArray:
		return fmt.Sprintf("[%s; %d]", r.Elem.String(), r.Len)
	default:
		return "<invalid>"
	}
}

// Equal reports structural equality of two references.
func (r *TypeRef) Equal(other *TypeRef) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.Kind != other.Kind {
		return false
	}
	switch r.Kind {
	case RefPrimitive, RefUser, RefAlias:
		return r.Name == other.Name
	case RefKey:
		return true
	case RefOption, RefSequence:
		return r.Elem.Equal(other.Elem)
	case RefArray:
		return r.Len == other.Len && r.Elem.Equal(other.Elem)
	default:
		return false
	}
}

// Clone returns a deep copy of the reference.
func (r *TypeRef) Clone() *TypeRef {
	if r == nil {
		return nil
	}
	c := &TypeRef{Kind: r.Kind, Name: r.Name, Len: r.Len}
	if r.Elem != nil {
		c.Elem = r.Elem.Clone()
	}
	return c
}

// NamedRefs appends the names of every RefUser and RefAlias reachable
// from r, in traversal order.
func (r *TypeRef) NamedRefs(out []string) []string {
	if r == nil {
		return out
	}
	switch r.Kind {
	case RefUser, RefAlias:
		out = append(out, r.Name)
	case RefOption, RefSequence, RefArray:
		out = r.Elem.NamedRefs(out)
	}
	return out
}

// MarshalText renders the reference for JSON/YAML embedding.
func (r *TypeRef) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText parses the canonical syntax emitted by MarshalText.
func (r *TypeRef) UnmarshalText(text []byte) error {
	parsed, err := ParseTypeRefString(string(text))
	if err != nil {
		return err
	}
	*r = *parsed
	return nil
}

// ParseTypeRefString parses a reference in canonical source syntax:
// Option<T>, Vec<T>, [T; N], Key, a primitive, or a user-defined name.
// Bare names that are neither primitives nor Key come back as RefUser;
// RefAlias never appears since aliases do not survive into canonical
// output.
func ParseTypeRefString(s string) (*TypeRef, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return nil, fmt.Errorf("empty type reference")

	case strings.HasPrefix(s, "Option<") && strings.HasSuffix(s, ">"):
		elem, err := ParseTypeRefString(s[len("Option<") : len(s)-1])
		if err != nil {
			return nil, err
		}
		return &TypeRef{Kind: RefOption, Elem: elem}, nil

	case strings.HasPrefix(s, "Vec<") && strings.HasSuffix(s, ">"):
		elem, err := ParseTypeRefString(s[len("Vec<") : len(s)-1])
		if err != nil {
			return nil, err
		}
		return &TypeRef{Kind: RefSequence, Elem: elem}, nil

	case strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"):
		// The length follows the last semicolon; the element may itself
		// be an array.
		body := s[1 : len(s)-1]
		sep := strings.LastIndex(body, ";")
		if sep < 0 {
			return nil, fmt.Errorf("invalid array reference %q", s)
		}
		length, err := strconv.Atoi(strings.TrimSpace(body[sep+1:]))
		if err != nil {
			return nil, fmt.Errorf("invalid array length in %q", s)
		}
		elem, err := ParseTypeRefString(body[:sep])
		if err != nil {
			return nil, err
		}
		return &TypeRef{Kind: RefArray, Elem: elem, Len: length}, nil

	case strings.ContainsAny(s, "<>[]; "):
		return nil, fmt.Errorf("invalid type reference %q", s)

	default:
		return ParseTypeRefName(s), nil
	}
}

// ParseTypeRefName builds a leaf reference from a bare identifier:
// primitive, Key, or user-defined by elimination.
func ParseTypeRefName(name string) *TypeRef {
	switch {
	case name == "Key":
		return &TypeRef{Kind: RefKey}
	case IsPrimitiveName(name):
		return &TypeRef{Kind: RefPrimitive, Name: name}
	default:
		return &TypeRef{Kind: RefUser, Name: name}
	}
}

// tupleFieldName renders the synthetic positional name of a tuple
// variant element.
func tupleFieldName(i int) string {
	return fmt.Sprintf("%d", i)
}
