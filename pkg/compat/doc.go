// Package compat detects breaking changes between two resolved schema versions.
//
// # Overview
//
// This package compares two resolved schemas declaration by declaration
// and classifies every difference by its effect on already-encoded data.
// The encoding it reasons about writes struct fields back to back in
// declaration order with no per-field tags, and writes an enum value as
// its variant's position followed by the variant payload. Those two
// facts drive the whole classification table.
//
// # Matching Model
//
// Struct fields are matched BY NAME across the two versions. A field
// keeps its identity when it moves, so reordering fields is reported at
// info severity rather than breaking. This is a deliberate property of
// the checker: tooling that re-sorts declarations must not show up as a
// wire break. The serialized layout still follows declaration order, so
// the reorder is surfaced — just not as an error.
//
// Enum variants are also matched by name, but their POSITION is the
// on-wire discriminant. A variant that moves is a breaking change even
// though its name survives, because existing records now decode as a
// different variant.
//
// # Severity Levels
//
// info: the change is observable but cannot break decoding.
// Examples: adding an optional field, appending an enum variant,
// reordering struct fields.
//
// warning: the change is suspicious and worth review, but not a break
// by itself. Warnings only fail a run when the caller asks for strict
// handling.
//
// breaking: existing encoded records decode incorrectly or not at all.
// Examples: removing a field, changing a field's type, adding a
// required field, removing or moving an enum variant.
//
// A report is compatible exactly when it contains no breaking issue.
//
// # Version Gate
//
// When both schemas carry a #[version] attribute, the report also
// checks that the declared bump matches the findings: any breaking
// issue demands a major bump, any issue at all demands at least a
// minor bump. The gate is advisory — a wrong bump never turns into an
// extra breaking issue, it only sets version_bump_valid to false. When
// either side has no version, or the version does not parse, the gate
// is skipped and the report's version fields are null.
//
// # Usage Example
//
// Basic compatibility check between two resolved schemas:
//
//	import "github.com/getlumos/lumos-sub002/pkg/compat"
//
//	report, err := compat.Diff(oldSchema, newSchema)
//	if err != nil {
//		log.Fatal(err) // no type name exists in both schemas
//	}
//
//	if !report.IsCompatible {
//		fmt.Println("Breaking changes detected:")
//		for _, issue := range report.Issues {
//			if issue.Level == compat.SeverityBreaking {
//				fmt.Printf("  [%s] %s\n", issue.TypeName, issue.Message)
//			}
//		}
//		os.Exit(1)
//	}
//
// Multiple reports aggregate into a single document for machine
// consumers:
//
//	doc := compat.NewDocument(report)
//	json.NewEncoder(os.Stdout).Encode(doc)
//
// # Safe Changes
//
// Changes reported at info severity:
//
//	// Adding an optional field: old records decode it as absent.
//	struct Player {
//	    wallet: Key,
//	    score: u64,
//	    email: Option<String>,  // added
//	}
//
//	// Appending an enum variant: existing discriminants are unchanged.
//	enum Status {
//	    Active,
//	    Banned,
//	    Suspended,  // appended
//	}
//
// # Breaking Changes
//
// Changes reported at breaking severity:
//
//	// Removing a field: every later field shifts.
//	// Changing a field's type: the byte layout changes in place.
//	// Adding a required field: old records have no bytes for it.
//	// Removing an enum variant: encoded discriminants dangle.
//	// Inserting a variant before the end: every later variant shifts.
//
// An inserted variant produces one info issue for the insertion itself
// plus one breaking issue per variant it displaced, so the breaking
// count equals the number of shifted discriminants.
//
// # Degenerate Input
//
// Diffing two schemas that share no type name at all is almost always
// a caller error (wrong file, wrong entry point), so Diff fails fast
// with an OperationalError instead of reporting every type as removed.
package compat
