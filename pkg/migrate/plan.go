package migrate

import (
	"encoding/json"
	"fmt"
)

// DefaultPolicy names the mechanical fill strategy for one added field.
type DefaultPolicy int

const (
	// DefaultZero fills numeric and boolean fields with their zero value.
	DefaultZero DefaultPolicy = iota
	// DefaultEmpty fills sequence-shaped fields with an empty value.
	DefaultEmpty
	// DefaultAbsent leaves optional fields unset.
	DefaultAbsent
)

// String returns the policy name
func (p DefaultPolicy) String() string {
	return []string{"zero", "empty", "absent"}[p]
}

// MarshalJSON renders the policy as its name
func (p DefaultPolicy) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON parses a policy name back into its value.
func (p *DefaultPolicy) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "zero":
		*p = DefaultZero
	case "empty":
		*p = DefaultEmpty
	case "absent":
		*p = DefaultAbsent
	default:
		return fmt.Errorf("unknown default policy %q", s)
	}
	return nil
}

// LegacyField is one field of the legacy layout, in legacy declaration
// order. A migration shim reads old records with exactly this shape.
type LegacyField struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Optional bool   `json:"optional,omitempty"`
}

// FieldDefault pairs an added field with its fill policy.
type FieldDefault struct {
	Field  string        `json:"field"`
	Type   string        `json:"type"`
	Policy DefaultPolicy `json:"policy"`
}

// TypePlan is the migration entry for one type. Either Defaults is
// populated and the entry is mechanical, or RequiresForce is set and
// Reasons explains what cannot be defaulted safely; never both.
type TypePlan struct {
	TypeName      string         `json:"type_name"`
	LegacyFields  []LegacyField  `json:"legacy_fields,omitempty"`
	Defaults      []FieldDefault `json:"defaults,omitempty"`
	RequiresForce bool           `json:"requires_force,omitempty"`
	Reasons       []string       `json:"reasons,omitempty"`
}

// Plan is the full migration plan between two schema versions. Emitters
// consume it verbatim: every default-value and safety decision is made
// during derivation so independent target-language outputs cannot
// diverge.
type Plan struct {
	FromVersion *string     `json:"from_version"`
	ToVersion   *string     `json:"to_version"`
	Entries     []*TypePlan `json:"entries"`
}

// RequiresForce reports whether any entry is gated behind the force
// override.
func (p *Plan) RequiresForce() bool {
	for _, e := range p.Entries {
		if e.RequiresForce {
			return true
		}
	}
	return false
}

// Entry returns the plan entry for one type.
func (p *Plan) Entry(name string) (*TypePlan, bool) {
	for _, e := range p.Entries {
		if e.TypeName == name {
			return e, true
		}
	}
	return nil, false
}

// Empty reports whether the plan contains no entries.
func (p *Plan) Empty() bool {
	return len(p.Entries) == 0
}
