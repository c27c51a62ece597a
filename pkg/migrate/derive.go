// Package migrate derives mechanical migration plans from compatibility
// reports. A plan covers additive, safely-defaultable changes only:
// anything involving a removal, a type change, or a field with no safe
// default is marked requires_force and produces no automatic defaults.
// That boundary is deliberate — the deriver never invents values.
package migrate

import (
	"fmt"

	"github.com/getlumos/lumos-sub002/pkg/compat"
	"github.com/getlumos/lumos-sub002/pkg/resolver"
	"github.com/getlumos/lumos-sub002/pkg/schema"
)

// Derive computes the migration plan for one compatibility report
// against the schema being migrated to. Types with no actionable
// changes (untouched, appended enum variants, pure reorders) get no
// entry at all.
func Derive(report *compat.Report, to *resolver.Schema) *Plan {
	plan := &Plan{
		FromVersion: report.FromVersion,
		ToVersion:   report.ToVersion,
	}

	// Issues arrive sorted by type name; grouping in first-seen order
	// keeps the plan deterministic.
	seen := make(map[string]bool)
	for _, issue := range report.Issues {
		if seen[issue.TypeName] {
			continue
		}
		seen[issue.TypeName] = true
		if entry := deriveType(issue.TypeName, report.IssuesFor(issue.TypeName), to); entry != nil {
			plan.Entries = append(plan.Entries, entry)
		}
	}
	return plan
}

// deriveType builds one plan entry, or nil when the type needs no
// migration action.
func deriveType(name string, issues []compat.Issue, to *resolver.Schema) *TypePlan {
	var reasons []string
	added := make(map[string]bool)
	var legacyOrder []string

	for _, issue := range issues {
		change := issue.Change
		if change == nil {
			continue
		}
		switch change.Kind {
		case compat.ChangeFieldAdded:
			added[change.Field] = true
		case compat.ChangeFieldRemoved:
			reasons = append(reasons, fmt.Sprintf("field %q was removed; dropping data is not mechanical", change.Field))
		case compat.ChangeFieldTypeChanged:
			reasons = append(reasons, fmt.Sprintf("field %q changed type from %s to %s; no value conversion is assumed", change.Field, change.OldType, change.NewType))
		case compat.ChangeFieldsReordered:
			legacyOrder = change.OldFields
		case compat.ChangeVariantRemoved:
			reasons = append(reasons, fmt.Sprintf("variant %q was removed; records carrying its discriminant cannot be mapped", change.Field))
		case compat.ChangeVariantPositionChanged:
			reasons = append(reasons, fmt.Sprintf("variant %q changed discriminant from %d to %d", change.Field, change.OldPosition, change.NewPosition))
		case compat.ChangeVariantTypeChanged:
			reasons = append(reasons, fmt.Sprintf("variant %q changed payload from %s to %s", change.Field, change.OldType, change.NewType))
		case compat.ChangeTypeRemoved:
			reasons = append(reasons, "type was removed")
		case compat.ChangeTypeKindChanged:
			reasons = append(reasons, fmt.Sprintf("type changed from %s to %s", change.OldType, change.NewType))
		case compat.ChangeVariantAdded:
			// Appended variants decode unchanged; insertions already
			// carry position issues for every shifted neighbor.
		}
	}

	decl, _ := to.Type(name)

	var defaults []FieldDefault
	if decl != nil && decl.Kind == schema.KindStruct {
		for _, f := range decl.Fields {
			if !added[f.Name] {
				continue
			}
			policy, ok := policyFor(f.Type)
			if !ok {
				reasons = append(reasons, fmt.Sprintf("required field %q of type %s has no safe default", f.Name, f.Type))
				continue
			}
			defaults = append(defaults, FieldDefault{Field: f.Name, Type: f.Type.String(), Policy: policy})
		}
	}

	if len(reasons) > 0 {
		return &TypePlan{TypeName: name, RequiresForce: true, Reasons: reasons}
	}
	if len(defaults) == 0 {
		return nil
	}

	return &TypePlan{
		TypeName:     name,
		LegacyFields: legacyFields(decl, added, legacyOrder),
		Defaults:     defaults,
	}
}

// policyFor maps an added field's type to a fill policy. Key material,
// fixed arrays and user-defined types have no safe mechanical default:
// an all-zero key or an arbitrary first variant would be invented data.
func policyFor(ref *schema.TypeRef) (DefaultPolicy, bool) {
	switch ref.Kind {
	case schema.RefOption:
		return DefaultAbsent, true
	case schema.RefSequence:
		return DefaultEmpty, true
	case schema.RefPrimitive:
		if ref.Name == "String" {
			return DefaultEmpty, true
		}
		return DefaultZero, true
	default:
		return 0, false
	}
}

// legacyFields lists the legacy-shape fields: every current field that
// is not an addition, in legacy declaration order. Without a reorder
// finding the surviving fields kept their relative order, so the
// current order filtered down is the legacy order; with one, the
// recorded old order wins.
func legacyFields(decl *schema.TypeDecl, added map[string]bool, legacyOrder []string) []LegacyField {
	byName := make(map[string]*schema.Field, len(decl.Fields))
	for _, f := range decl.Fields {
		byName[f.Name] = f
	}

	names := legacyOrder
	if names == nil {
		for _, f := range decl.Fields {
			if !added[f.Name] {
				names = append(names, f.Name)
			}
		}
	}

	out := make([]LegacyField, 0, len(names))
	for _, n := range names {
		f := byName[n]
		out = append(out, LegacyField{Name: n, Type: f.Type.String(), Optional: f.Optional})
	}
	return out
}
