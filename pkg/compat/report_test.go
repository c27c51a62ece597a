package compat

import (
	"encoding/json"
	"testing"
)

func TestRequiredBump(t *testing.T) {
	tests := []struct {
		name   string
		issues []Issue
		want   Bump
	}{
		{"empty", nil, BumpNone},
		{"info only", []Issue{{Level: SeverityInfo}}, BumpMinor},
		{"warning only", []Issue{{Level: SeverityWarning}}, BumpMinor},
		{"breaking", []Issue{{Level: SeverityInfo}, {Level: SeverityBreaking}}, BumpMajor},
	}

	for _, tt := range tests {
		r := &Report{Issues: tt.issues}
		if got := r.RequiredBump(); got != tt.want {
			t.Errorf("%s: RequiredBump() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestIssuesFor(t *testing.T) {
	r := &Report{Issues: []Issue{
		{TypeName: "Player", Message: "a"},
		{TypeName: "Session", Message: "b"},
		{TypeName: "Player", Message: "c"},
	}}

	got := r.IssuesFor("Player")
	if len(got) != 2 || got[0].Message != "a" || got[1].Message != "c" {
		t.Errorf("IssuesFor(Player) = %+v", got)
	}
	if len(r.IssuesFor("Guild")) != 0 {
		t.Error("expected no issues for unknown type")
	}
}

func TestNewDocumentAggregates(t *testing.T) {
	v1, v2 := "1.0.0", "2.0.0"
	clean := &Report{
		FromVersion:      &v1,
		ToVersion:        &v2,
		IsCompatible:     true,
		VersionBumpValid: true,
		Issues:           []Issue{{Level: SeverityInfo}},
	}
	broken := &Report{
		IsCompatible:     false,
		VersionBumpValid: false,
		Issues:           []Issue{{Level: SeverityBreaking}, {Level: SeverityWarning}},
	}

	doc := NewDocument(clean, broken)
	if doc.Compatible {
		t.Error("one incompatible report must make the document incompatible")
	}
	if doc.VersionBumpValid {
		t.Error("one failed gate must fail the document gate")
	}
	if doc.BreakingChanges != 1 || doc.Warnings != 1 || doc.Info != 1 {
		t.Errorf("counts = %d/%d/%d, want 1/1/1", doc.BreakingChanges, doc.Warnings, doc.Info)
	}
	if doc.FromVersion != &v1 || doc.ToVersion != &v2 {
		t.Error("document versions must come from the first report")
	}
}

// The JSON document is a wire contract consumed by other tooling, so
// the rendered key set and value spellings are pinned here.
func TestDocumentJSONShape(t *testing.T) {
	v1, v2 := "1.0.0", "1.1.0"
	report := &Report{
		FromVersion:      &v1,
		ToVersion:        &v2,
		IsCompatible:     true,
		VersionBumpValid: true,
		Issues: []Issue{{
			Level:    SeverityInfo,
			TypeName: "Player",
			Message:  "optional field \"email\" added to Player",
			Reason:   "records without the field decode as absent",
			Change:   &Change{Kind: ChangeFieldAdded, Field: "email", NewType: "Option<String>", Optional: true},
		}},
	}

	data, err := json.Marshal(NewDocument(report))
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}

	for _, key := range []string{"from_version", "to_version", "compatible", "version_bump_valid", "breaking_changes", "warnings", "info", "reports"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("document missing key %q", key)
		}
	}
	if decoded["from_version"] != "1.0.0" {
		t.Errorf("from_version = %v", decoded["from_version"])
	}

	reports := decoded["reports"].([]interface{})
	inner := reports[0].(map[string]interface{})
	if _, ok := inner["is_compatible"]; !ok {
		t.Error("report missing is_compatible")
	}
	issues := inner["issues"].([]interface{})
	issue := issues[0].(map[string]interface{})
	if issue["level"] != "info" {
		t.Errorf("level rendered as %v, want the severity name", issue["level"])
	}
	change := issue["change"].(map[string]interface{})
	if change["kind"] != "field_added" {
		t.Errorf("change kind rendered as %v, want snake case name", change["kind"])
	}
}

func TestNilVersionRendersNull(t *testing.T) {
	report := &Report{IsCompatible: true, VersionBumpValid: true, Issues: []Issue{}}
	data, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if v, ok := decoded["from_version"]; !ok || v != nil {
		t.Errorf("absent version must render as null, got %v (present=%v)", v, ok)
	}
}
