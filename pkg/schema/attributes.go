package schema

import (
	"encoding/json"
	"strconv"
)

// AttrKind discriminates recognized attribute markers. Unrecognized
// attributes are preserved as AttrUnknown rather than rejected, keeping
// the grammar forward-compatible.
type AttrKind int

const (
	AttrUnknown AttrKind = iota
	// AttrAccount marks an on-chain account type.
	AttrAccount
	// AttrVersion attaches a semantic version string to a declaration.
	AttrVersion
	// AttrMaxSize constrains the encoded size of a declaration.
	AttrMaxSize
	// AttrDeprecated marks a declaration or field as deprecated.
	AttrDeprecated
	// AttrKeyField marks the field holding the account's address key.
	AttrKeyField
)

// String returns the attribute kind name
func (k AttrKind) String() string {
	return []string{"unknown", "account", "version", "max_size", "deprecated", "key"}[k]
}

// Attribute is one #[...] marker. Name and Args always hold the raw
// source form so unknown attributes survive round trips.
type Attribute struct {
	Kind AttrKind `json:"-"`
	Name string   `json:"name"`
	Args []string `json:"args,omitempty"`
	Pos  Position `json:"-"`
}

// UnmarshalJSON decodes the raw form and reclassifies the kind, which
// is derived from the name rather than serialized.
func (a *Attribute) UnmarshalJSON(data []byte) error {
	type wire Attribute
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*a = Attribute(w)
	a.Kind = classifyAttr(a.Name)
	return nil
}

// classifyAttr maps a raw attribute name to its kind.
func classifyAttr(name string) AttrKind {
	switch name {
	case "account":
		return AttrAccount
	case "version":
		return AttrVersion
	case "max_size":
		return AttrMaxSize
	case "deprecated":
		return AttrDeprecated
	case "key":
		return AttrKeyField
	default:
		return AttrUnknown
	}
}

// AttributeSet is an ordered attribute list
type AttributeSet []*Attribute

// Has reports whether the set contains an attribute of the given kind.
func (s AttributeSet) Has(kind AttrKind) bool {
	for _, a := range s {
		if a.Kind == kind {
			return true
		}
	}
	return false
}

// Version returns the version attribute's argument, if present.
func (s AttributeSet) Version() (string, bool) {
	for _, a := range s {
		if a.Kind == AttrVersion && len(a.Args) > 0 {
			return a.Args[0], true
		}
	}
	return "", false
}

// MaxSize returns the max_size attribute's argument, if present and numeric.
func (s AttributeSet) MaxSize() (int, bool) {
	for _, a := range s {
		if a.Kind == AttrMaxSize && len(a.Args) > 0 {
			if n, err := strconv.Atoi(a.Args[0]); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// Unknown returns the unrecognized attributes in declaration order.
func (s AttributeSet) Unknown() []*Attribute {
	var out []*Attribute
	for _, a := range s {
		if a.Kind == AttrUnknown {
			out = append(out, a)
		}
	}
	return out
}
