package compat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/getlumos/lumos-sub002/pkg/resolver"
	"github.com/getlumos/lumos-sub002/pkg/schema"
)

// OperationalError reports structurally mismatched diff inputs: no type
// name exists in both schemas, so there is nothing to compare. This is
// the degenerate case and fails fast instead of producing an empty
// report.
type OperationalError struct {
	Reason string
}

// Error implements the error interface
func (e *OperationalError) Error() string {
	return "cannot diff schemas: " + e.Reason
}

// Differ compares two resolved schemas field by field and variant by
// variant. Fields and variants are matched BY NAME: declaration order
// never affects identity, so a pure reordering is reported at info
// severity rather than breaking.
type Differ struct {
	from   *resolver.Schema
	to     *resolver.Schema
	issues []Issue
}

// NewDiffer creates a Differ over a FROM and TO schema.
func NewDiffer(from, to *resolver.Schema) *Differ {
	return &Differ{
		from:   from,
		to:     to,
		issues: make([]Issue, 0),
	}
}

// Diff runs the comparison and assembles the report. The only error is
// the degenerate no-common-types case; breaking findings are report
// data, never errors.
func Diff(from, to *resolver.Schema) (*Report, error) {
	return NewDiffer(from, to).Run()
}

// Run executes the comparison
func (d *Differ) Run() (*Report, error) {
	d.issues = make([]Issue, 0)

	common := 0
	for _, name := range d.from.TypeNames() {
		if _, ok := d.to.Type(name); ok {
			common++
		}
	}
	if common == 0 {
		return nil, &OperationalError{Reason: "no type name exists in both schemas"}
	}

	// Union of type names, sorted, so issue ordering is deterministic.
	names := make(map[string]bool, d.from.Len()+d.to.Len())
	for _, n := range d.from.TypeNames() {
		names[n] = true
	}
	for _, n := range d.to.TypeNames() {
		names[n] = true
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		fromDecl, inFrom := d.from.Type(name)
		toDecl, inTo := d.to.Type(name)

		switch {
		case inFrom && !inTo:
			d.addIssue(Issue{
				Level:      SeverityBreaking,
				TypeName:   name,
				Message:    fmt.Sprintf("type %s was removed", name),
				Reason:     "dependent schemas and existing encoded records may still reference it",
				Suggestion: "deprecate the type instead of removing it",
				Change:     &Change{Kind: ChangeTypeRemoved},
			})
		case !inFrom && inTo:
			// Newly added types cannot affect existing data.
		case fromDecl.Kind != toDecl.Kind:
			d.addIssue(Issue{
				Level:    SeverityBreaking,
				TypeName: name,
				Message:  fmt.Sprintf("%s changed from %s to %s", name, fromDecl.Kind, toDecl.Kind),
				Reason:   "the binary layout of a struct and an enum are unrelated",
				Change: &Change{
					Kind:    ChangeTypeKindChanged,
					OldType: fromDecl.Kind.String(),
					NewType: toDecl.Kind.String(),
				},
			})
		case fromDecl.Kind == schema.KindStruct:
			d.compareStruct(name, fromDecl, toDecl)
		default:
			d.compareEnum(name, fromDecl, toDecl)
		}
	}

	required := (&Report{Issues: d.issues}).RequiredBump()
	fromVersion, toVersion, valid := validateBump(d.from.Version, d.to.Version, required)

	breaking, _, _ := (&Report{Issues: d.issues}).Counts()
	return &Report{
		FromVersion:      fromVersion,
		ToVersion:        toVersion,
		IsCompatible:     breaking == 0,
		VersionBumpValid: valid,
		Issues:           d.issues,
	}, nil
}

// compareStruct diffs two struct declarations sharing a name. Issue
// order within the type is fixed: removals and type changes in FROM
// declaration order, additions in TO declaration order, then the
// reorder check.
func (d *Differ) compareStruct(name string, from, to *schema.TypeDecl) {
	toFields := make(map[string]*schema.Field, len(to.Fields))
	for _, f := range to.Fields {
		toFields[f.Name] = f
	}
	fromFields := make(map[string]*schema.Field, len(from.Fields))
	for _, f := range from.Fields {
		fromFields[f.Name] = f
	}

	for _, f := range from.Fields {
		toField, ok := toFields[f.Name]
		if !ok {
			d.addIssue(Issue{
				Level:      SeverityBreaking,
				TypeName:   name,
				Message:    fmt.Sprintf("field %q was removed from %s", f.Name, name),
				Reason:     "existing encoded records still carry the field, and removal shifts the layout of every later field",
				Suggestion: "mark the field deprecated instead of removing it",
				Change:     &Change{Kind: ChangeFieldRemoved, Field: f.Name, OldType: f.Type.String()},
			})
			continue
		}
		if !f.Type.Equal(toField.Type) {
			d.addIssue(Issue{
				Level:      SeverityBreaking,
				TypeName:   name,
				Message:    fmt.Sprintf("field %q changed type from %s to %s", f.Name, f.Type, toField.Type),
				Reason:     "the byte layout of the field changes, so existing records decode incorrectly",
				Suggestion: "add a new field and derive a migration instead of changing the type in place",
				Change: &Change{
					Kind:    ChangeFieldTypeChanged,
					Field:   f.Name,
					OldType: f.Type.String(),
					NewType: toField.Type.String(),
				},
			})
		}
	}

	for _, f := range to.Fields {
		if _, ok := fromFields[f.Name]; ok {
			continue
		}
		if f.Optional {
			d.addIssue(Issue{
				Level:    SeverityInfo,
				TypeName: name,
				Message:  fmt.Sprintf("optional field %q added to %s", f.Name, name),
				Reason:   "records without the field decode as absent",
				Change: &Change{
					Kind:     ChangeFieldAdded,
					Field:    f.Name,
					NewType:  f.Type.String(),
					Optional: true,
				},
			})
		} else {
			d.addIssue(Issue{
				Level:      SeverityBreaking,
				TypeName:   name,
				Message:    fmt.Sprintf("required field %q added to %s", f.Name, name),
				Reason:     "existing encoded records do not contain the field, so decoding with the new layout fails",
				Suggestion: "make the field optional, or migrate existing records with a default",
				Change: &Change{
					Kind:    ChangeFieldAdded,
					Field:   f.Name,
					NewType: f.Type.String(),
				},
			})
		}
	}

	d.checkFieldOrder(name, from, to, fromFields, toFields)
}

// checkFieldOrder reports an info issue when the fields common to both
// versions appear in a different relative order.
func (d *Differ) checkFieldOrder(name string, from, to *schema.TypeDecl, fromFields, toFields map[string]*schema.Field) {
	fromOrder := make([]string, 0, len(from.Fields))
	for _, f := range from.Fields {
		if _, ok := toFields[f.Name]; ok {
			fromOrder = append(fromOrder, f.Name)
		}
	}
	toOrder := make([]string, 0, len(to.Fields))
	for _, f := range to.Fields {
		if _, ok := fromFields[f.Name]; ok {
			toOrder = append(toOrder, f.Name)
		}
	}

	if len(fromOrder) != len(toOrder) {
		return
	}
	for i := range fromOrder {
		if fromOrder[i] != toOrder[i] {
			d.addIssue(Issue{
				Level:    SeverityInfo,
				TypeName: name,
				Message:  fmt.Sprintf("fields of %s were reordered", name),
				Reason:   "fields are matched by name, so order alone does not change identity",
				Change:   &Change{Kind: ChangeFieldsReordered, OldFields: fromOrder, Fields: toOrder},
			})
			return
		}
	}
}

// compareEnum diffs two enum declarations sharing a name. Variant
// position is load-bearing: it is the on-wire discriminant.
func (d *Differ) compareEnum(name string, from, to *schema.TypeDecl) {
	toVariants := make(map[string]int, len(to.Variants))
	for i, v := range to.Variants {
		toVariants[v.Name] = i
	}
	fromVariants := make(map[string]int, len(from.Variants))
	for i, v := range from.Variants {
		fromVariants[v.Name] = i
	}

	// Highest TO position held by a surviving variant; additions beyond
	// it are appends.
	lastCommon := -1
	for _, v := range from.Variants {
		if pos, ok := toVariants[v.Name]; ok && pos > lastCommon {
			lastCommon = pos
		}
	}

	for fromPos, v := range from.Variants {
		toPos, ok := toVariants[v.Name]
		if !ok {
			d.addIssue(Issue{
				Level:      SeverityBreaking,
				TypeName:   name,
				Message:    fmt.Sprintf("variant %q was removed from %s", v.Name, name),
				Reason:     "existing encoded discriminants may reference it",
				Suggestion: "mark the variant deprecated instead of removing it",
				Change:     &Change{Kind: ChangeVariantRemoved, Field: v.Name, OldPosition: fromPos},
			})
			continue
		}
		if toPos != fromPos {
			d.addIssue(Issue{
				Level:      SeverityBreaking,
				TypeName:   name,
				Message:    fmt.Sprintf("variant %q moved from position %d to %d", v.Name, fromPos, toPos),
				Reason:     "the discriminant is the variant's position, so existing records now decode as a different variant",
				Suggestion: "append new variants after all existing ones",
				Change: &Change{
					Kind:        ChangeVariantPositionChanged,
					Field:       v.Name,
					OldPosition: fromPos,
					NewPosition: toPos,
				},
			})
		}
		if payload := variantSignature(from.Variants[fromPos]); payload != variantSignature(to.Variants[toPos]) {
			d.addIssue(Issue{
				Level:    SeverityBreaking,
				TypeName: name,
				Message:  fmt.Sprintf("variant %q changed from %s to %s", v.Name, payload, variantSignature(to.Variants[toPos])),
				Reason:   "the byte layout of the variant's payload changes",
				Change: &Change{
					Kind:    ChangeVariantTypeChanged,
					Field:   v.Name,
					OldType: payload,
					NewType: variantSignature(to.Variants[toPos]),
				},
			})
		}
	}

	for toPos, v := range to.Variants {
		if _, ok := fromVariants[v.Name]; ok {
			continue
		}
		if toPos > lastCommon {
			d.addIssue(Issue{
				Level:    SeverityInfo,
				TypeName: name,
				Message:  fmt.Sprintf("variant %q appended to %s at position %d", v.Name, name, toPos),
				Reason:   "existing discriminants are unchanged",
				Change:   &Change{Kind: ChangeVariantAdded, Field: v.Name, NewPosition: toPos},
			})
		} else {
			d.addIssue(Issue{
				Level:      SeverityInfo,
				TypeName:   name,
				Message:    fmt.Sprintf("variant %q inserted into %s at position %d", v.Name, name, toPos),
				Reason:     "the insertion itself adds no discriminant, but it shifts every later variant",
				Suggestion: "append new variants after all existing ones",
				Change:     &Change{Kind: ChangeVariantAdded, Field: v.Name, NewPosition: toPos},
			})
		}
	}
}

// addIssue records one finding
func (d *Differ) addIssue(issue Issue) {
	d.issues = append(d.issues, issue)
}

// variantSignature renders a variant's shape for payload comparison:
// the name alone for unit variants, Name(T1, T2) for tuples, and
// Name { f: T } for struct variants.
func variantSignature(v *schema.EnumVariant) string {
	switch v.Kind {
	case schema.VariantTuple:
		parts := make([]string, len(v.Fields))
		for i, f := range v.Fields {
			parts[i] = f.Type.String()
		}
		return fmt.Sprintf("%s(%s)", v.Name, strings.Join(parts, ", "))
	case schema.VariantStruct:
		parts := make([]string, len(v.Fields))
		for i, f := range v.Fields {
			parts[i] = fmt.Sprintf("%s: %s", f.Name, f.Type)
		}
		return fmt.Sprintf("%s { %s }", v.Name, strings.Join(parts, ", "))
	default:
		return v.Name
	}
}
