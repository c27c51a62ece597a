package schema

import (
	"encoding/json"
	"testing"
)

func TestParseTypeRefString(t *testing.T) {
	cases := []struct {
		in   string
		want *TypeRef
	}{
		{"u64", &TypeRef{Kind: RefPrimitive, Name: "u64"}},
		{"String", &TypeRef{Kind: RefPrimitive, Name: "String"}},
		{"Key", &TypeRef{Kind: RefKey}},
		{"Player", &TypeRef{Kind: RefUser, Name: "Player"}},
		{"Option<u64>", &TypeRef{Kind: RefOption, Elem: &TypeRef{Kind: RefPrimitive, Name: "u64"}}},
		{"Vec<Player>", &TypeRef{Kind: RefSequence, Elem: &TypeRef{Kind: RefUser, Name: "Player"}}},
		{"[u8; 32]", &TypeRef{Kind: RefArray, Elem: &TypeRef{Kind: RefPrimitive, Name: "u8"}, Len: 32}},
		{"Option<Vec<u64>>", &TypeRef{Kind: RefOption, Elem: &TypeRef{Kind: RefSequence, Elem: &TypeRef{Kind: RefPrimitive, Name: "u64"}}}},
		{"[[u8; 4]; 2]", &TypeRef{Kind: RefArray, Len: 2, Elem: &TypeRef{Kind: RefArray, Len: 4, Elem: &TypeRef{Kind: RefPrimitive, Name: "u8"}}}},
		{"Vec<Option<Key>>", &TypeRef{Kind: RefSequence, Elem: &TypeRef{Kind: RefOption, Elem: &TypeRef{Kind: RefKey}}}},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseTypeRefString(tc.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
			// Canonical output re-parses to itself.
			if got.String() != tc.in {
				t.Errorf("expected canonical form %q, got %q", tc.in, got.String())
			}
		})
	}
}

func TestParseTypeRefStringRejectsMalformed(t *testing.T) {
	for _, in := range []string{
		"",
		"Option<u8",
		"Vec<>",
		"[u8]",
		"[u8; x]",
		"Option<u8>x",
	} {
		if _, err := ParseTypeRefString(in); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
}

func TestTypeRefJSONRoundTrip(t *testing.T) {
	field := &Field{
		Name:     "inventory",
		Type:     &TypeRef{Kind: RefOption, Elem: &TypeRef{Kind: RefSequence, Elem: &TypeRef{Kind: RefUser, Name: "Item"}}},
		Optional: true,
	}

	data, err := json.Marshal(field)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	var decoded Field
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if !decoded.Type.Equal(field.Type) {
		t.Errorf("expected %s, got %s", field.Type, decoded.Type)
	}
	if !decoded.Optional {
		t.Error("expected optional flag to survive")
	}

	// References embed as canonical source syntax, not nested objects.
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if raw["type"] != "Option<Vec<Item>>" {
		t.Errorf("expected canonical text form, got %v", raw["type"])
	}
}
