package compat

import (
	"errors"
	"testing"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		raw        string
		major      int
		minor      int
		patch      int
		prerelease string
	}{
		{"1.2.3", 1, 2, 3, ""},
		{"v1.2.3", 1, 2, 3, ""},
		{"0.0.1", 0, 0, 1, ""},
		{"2.0.0-rc.1", 2, 0, 0, "-rc.1"},
		{"1.0.0+build.5", 1, 0, 0, ""},
		{"10.20.30", 10, 20, 30, ""},
	}

	for _, tt := range tests {
		v, err := ParseVersion(tt.raw)
		if err != nil {
			t.Errorf("ParseVersion(%q) error = %v", tt.raw, err)
			continue
		}
		if v.Major != tt.major || v.Minor != tt.minor || v.Patch != tt.patch {
			t.Errorf("ParseVersion(%q) = %d.%d.%d, want %d.%d.%d",
				tt.raw, v.Major, v.Minor, v.Patch, tt.major, tt.minor, tt.patch)
		}
		if v.Prerelease != tt.prerelease {
			t.Errorf("ParseVersion(%q) prerelease = %q, want %q", tt.raw, v.Prerelease, tt.prerelease)
		}
		if v.Raw != tt.raw {
			t.Errorf("ParseVersion(%q) raw = %q", tt.raw, v.Raw)
		}
	}
}

func TestParseVersionInvalid(t *testing.T) {
	for _, raw := range []string{"", "1", "1.2", "1.2.3.4", "abc", "1.x.0", "-1.0.0"} {
		_, err := ParseVersion(raw)
		if err == nil {
			t.Errorf("ParseVersion(%q) expected error", raw)
			continue
		}
		var formatErr *VersionFormatError
		if !errors.As(err, &formatErr) {
			t.Errorf("ParseVersion(%q) error type = %T", raw, err)
		}
	}
}

func TestBumpBetween(t *testing.T) {
	tests := []struct {
		from string
		to   string
		want Bump
	}{
		{"1.0.0", "2.0.0", BumpMajor},
		{"1.0.0", "1.1.0", BumpMinor},
		{"1.0.0", "1.0.1", BumpPatch},
		{"1.0.0", "1.0.0", BumpNone},
		{"2.0.0", "1.9.9", BumpNone},
		{"1.2.0", "1.1.5", BumpNone},
		{"1.1.1", "2.0.0", BumpMajor},
		{"0.9.0", "0.10.0", BumpMinor},
	}

	for _, tt := range tests {
		from, err := ParseVersion(tt.from)
		if err != nil {
			t.Fatalf("ParseVersion(%q) error = %v", tt.from, err)
		}
		to, err := ParseVersion(tt.to)
		if err != nil {
			t.Fatalf("ParseVersion(%q) error = %v", tt.to, err)
		}
		if got := BumpBetween(from, to); got != tt.want {
			t.Errorf("BumpBetween(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestValidateBump(t *testing.T) {
	tests := []struct {
		name     string
		from     string
		to       string
		required Bump
		wantOK   bool
	}{
		{"major satisfies major", "1.0.0", "2.0.0", BumpMajor, true},
		{"minor fails major", "1.0.0", "1.1.0", BumpMajor, false},
		{"minor satisfies minor", "1.0.0", "1.1.0", BumpMinor, true},
		{"major satisfies minor", "1.0.0", "2.0.0", BumpMinor, true},
		{"patch fails minor", "1.0.0", "1.0.1", BumpMinor, false},
		{"unchanged satisfies none", "1.0.0", "1.0.0", BumpNone, true},
		{"downgrade fails minor", "2.0.0", "1.0.0", BumpMinor, false},
		{"absent from skips", "", "2.0.0", BumpMajor, true},
		{"absent to skips", "1.0.0", "", BumpMajor, true},
		{"malformed from skips", "garbage", "2.0.0", BumpMajor, true},
	}

	for _, tt := range tests {
		_, _, ok := validateBump(tt.from, tt.to, tt.required)
		if ok != tt.wantOK {
			t.Errorf("%s: validateBump(%q, %q, %v) = %v, want %v",
				tt.name, tt.from, tt.to, tt.required, ok, tt.wantOK)
		}
	}
}

func TestValidateBumpPointers(t *testing.T) {
	from, to, _ := validateBump("1.0.0", "garbage", BumpNone)
	if from == nil || *from != "1.0.0" {
		t.Errorf("from pointer = %v, want 1.0.0", from)
	}
	if to != nil {
		t.Errorf("to pointer = %q, want nil for malformed input", *to)
	}
}

func TestBumpString(t *testing.T) {
	if BumpMajor.String() != "major" || BumpNone.String() != "none" {
		t.Error("unexpected bump names")
	}
}
