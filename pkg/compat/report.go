package compat

import "encoding/json"

// Severity indicates how an issue affects binary compatibility
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityBreaking
)

// String returns the severity name
func (s Severity) String() string {
	return []string{"info", "warning", "breaking"}[s]
}

// MarshalJSON renders the severity as its name
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Issue is one compatibility finding. Findings are data, never errors:
// a report full of breaking issues is still a successful diff.
type Issue struct {
	Level      Severity `json:"level"`
	TypeName   string   `json:"type_name"`
	Message    string   `json:"message"`
	Reason     string   `json:"reason,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
	Change     *Change  `json:"change,omitempty"`
}

// Report is the result of diffing two schemas. Issue ordering is
// deterministic: type names sorted, then declaration order within each
// type, so identical inputs render byte-identical reports.
type Report struct {
	// FromVersion and ToVersion are nil when the corresponding schema
	// declared no version or an unparseable one; the bump check is then
	// skipped and VersionBumpValid holds true.
	FromVersion      *string `json:"from_version"`
	ToVersion        *string `json:"to_version"`
	IsCompatible     bool    `json:"is_compatible"`
	VersionBumpValid bool    `json:"version_bump_valid"`
	Issues           []Issue `json:"issues"`
}

// Counts returns the number of breaking, warning and info issues.
func (r *Report) Counts() (breaking, warnings, infos int) {
	for _, issue := range r.Issues {
		switch issue.Level {
		case SeverityBreaking:
			breaking++
		case SeverityWarning:
			warnings++
		case SeverityInfo:
			infos++
		}
	}
	return
}

// IssuesFor returns the issues touching one type, in report order.
func (r *Report) IssuesFor(typeName string) []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.TypeName == typeName {
			out = append(out, issue)
		}
	}
	return out
}

// RequiredBump computes the minimum version bump the issue set demands:
// any breaking issue requires a major bump, any other non-empty issue
// set at least a minor one, and an empty set none.
func (r *Report) RequiredBump() Bump {
	breaking, warnings, infos := r.Counts()
	switch {
	case breaking > 0:
		return BumpMajor
	case warnings+infos > 0:
		return BumpMinor
	default:
		return BumpNone
	}
}

// Document is the aggregate check result rendered to external
// consumers: summary counters over one or more reports.
type Document struct {
	FromVersion      *string   `json:"from_version"`
	ToVersion        *string   `json:"to_version"`
	Compatible       bool      `json:"compatible"`
	VersionBumpValid bool      `json:"version_bump_valid"`
	BreakingChanges  int       `json:"breaking_changes"`
	Warnings         int       `json:"warnings"`
	Info             int       `json:"info"`
	Reports          []*Report `json:"reports"`
}

// NewDocument aggregates reports into the external document shape.
func NewDocument(reports ...*Report) *Document {
	doc := &Document{
		Compatible:       true,
		VersionBumpValid: true,
		Reports:          reports,
	}
	for i, r := range reports {
		if i == 0 {
			doc.FromVersion = r.FromVersion
			doc.ToVersion = r.ToVersion
		}
		breaking, warnings, infos := r.Counts()
		doc.BreakingChanges += breaking
		doc.Warnings += warnings
		doc.Info += infos
		if !r.IsCompatible {
			doc.Compatible = false
		}
		if !r.VersionBumpValid {
			doc.VersionBumpValid = false
		}
	}
	return doc
}
