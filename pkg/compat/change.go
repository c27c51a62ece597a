package compat

import "encoding/json"

// ChangeKind identifies the structural change behind an issue
type ChangeKind int

const (
	ChangeFieldAdded ChangeKind = iota
	ChangeFieldRemoved
	ChangeFieldTypeChanged
	ChangeFieldsReordered
	ChangeVariantAdded
	ChangeVariantRemoved
	ChangeVariantPositionChanged
	ChangeVariantTypeChanged
	ChangeTypeRemoved
	ChangeTypeKindChanged
)

// String returns the change kind name
func (k ChangeKind) String() string {
	return []string{
		"field_added", "field_removed", "field_type_changed", "fields_reordered",
		"variant_added", "variant_removed", "variant_position_changed", "variant_type_changed",
		"type_removed", "type_kind_changed",
	}[k]
}

// MarshalJSON renders the kind as its name
func (k ChangeKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Change is the structural payload of one issue. Kind selects which of
// the remaining fields are meaningful.
type Change struct {
	Kind ChangeKind `json:"kind"`
	// Field is the field or variant name, when the change targets one.
	Field string `json:"field,omitempty"`
	// OldType and NewType hold canonical type renderings for type and
	// payload changes.
	OldType string `json:"old_type,omitempty"`
	NewType string `json:"new_type,omitempty"`
	// Optional is set for field additions declared Option<T>.
	Optional bool `json:"optional,omitempty"`
	// OldPosition and NewPosition carry discriminant indexes for
	// variant moves and the insertion index for variant additions.
	// Position zero is meaningful, so these never use omitempty.
	OldPosition int `json:"old_position"`
	NewPosition int `json:"new_position"`
	// OldFields and Fields hold the field order before and after a
	// reordering. The old order is what a migration reads legacy data
	// with, so it travels in the report rather than being recomputed.
	OldFields []string `json:"old_fields,omitempty"`
	Fields    []string `json:"fields,omitempty"`
}
