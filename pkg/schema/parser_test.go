package schema

import (
	"errors"
	"testing"
)

func TestParseStruct(t *testing.T) {
	source := `
#[account]
#[version("1.0.0")]
struct PlayerAccount {
    #[key]
    wallet: Key,
    username: String,
    level: u16,
    score: u64,
}
`
	file, err := ParseFile("player.lum", source)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	if len(file.Types) != 1 {
		t.Fatalf("expected 1 type, got %d", len(file.Types))
	}

	decl := file.Types[0]
	if decl.Name != "PlayerAccount" {
		t.Errorf("expected name PlayerAccount, got %s", decl.Name)
	}
	if decl.Kind != KindStruct {
		t.Errorf("expected struct kind, got %s", decl.Kind)
	}
	if !decl.Attrs.Has(AttrAccount) {
		t.Error("expected account attribute")
	}
	if v, ok := decl.Attrs.Version(); !ok || v != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %q", v)
	}
	if file.Version != "1.0.0" {
		t.Errorf("expected file version 1.0.0, got %q", file.Version)
	}

	if len(decl.Fields) != 4 {
		t.Fatalf("expected 4 fields, got %d", len(decl.Fields))
	}

	wallet := decl.Fields[0]
	if wallet.Name != "wallet" {
		t.Errorf("expected field wallet, got %s", wallet.Name)
	}
	if wallet.Type.Kind != RefKey {
		t.Errorf("expected Key type, got %s", wallet.Type)
	}
	if !wallet.Attrs.Has(AttrKeyField) {
		t.Error("expected key attribute on wallet")
	}

	if decl.Fields[2].Type.String() != "u16" {
		t.Errorf("expected u16, got %s", decl.Fields[2].Type)
	}
}

func TestParseOptionalField(t *testing.T) {
	source := `
struct Profile {
    email: Option<String>,
    tags: Vec<String>,
    fingerprint: [u8; 32],
}
`
	file, err := ParseFile("profile.lum", source)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	fields := file.Types[0].Fields

	email := fields[0]
	if !email.Optional {
		t.Error("expected email to be optional")
	}
	if email.Type.Kind != RefOption || email.Type.Elem.Name != "String" {
		t.Errorf("unexpected email type: %s", email.Type)
	}

	tags := fields[1]
	if tags.Optional {
		t.Error("expected tags to be required")
	}
	if tags.Type.Kind != RefSequence {
		t.Errorf("expected sequence, got %s", tags.Type)
	}

	fp := fields[2]
	if fp.Type.Kind != RefArray || fp.Type.Len != 32 || fp.Type.Elem.Name != "u8" {
		t.Errorf("unexpected fingerprint type: %s", fp.Type)
	}
}

func TestParseEnum(t *testing.T) {
	source := `
enum GameEvent {
    Started,
    Scored(u64),
    Traded(Key, u64),
    Ended { reason: String, final_score: u64 },
}
`
	file, err := ParseFile("events.lum", source)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	decl := file.Types[0]
	if decl.Kind != KindEnum {
		t.Fatalf("expected enum kind, got %s", decl.Kind)
	}
	if len(decl.Variants) != 4 {
		t.Fatalf("expected 4 variants, got %d", len(decl.Variants))
	}

	if decl.Variants[0].Kind != VariantUnit {
		t.Errorf("expected unit variant, got %s", decl.Variants[0].Kind)
	}

	scored := decl.Variants[1]
	if scored.Kind != VariantTuple {
		t.Errorf("expected tuple variant, got %s", scored.Kind)
	}
	if len(scored.Fields) != 1 || scored.Fields[0].Name != "0" {
		t.Errorf("unexpected tuple fields: %+v", scored.Fields)
	}

	traded := decl.Variants[2]
	if len(traded.Fields) != 2 {
		t.Errorf("expected 2 tuple elements, got %d", len(traded.Fields))
	}

	ended := decl.Variants[3]
	if ended.Kind != VariantStruct {
		t.Errorf("expected struct variant, got %s", ended.Kind)
	}
	if len(ended.Fields) != 2 || ended.Fields[0].Name != "reason" {
		t.Errorf("unexpected struct variant fields: %+v", ended.Fields)
	}
}

func TestParseImports(t *testing.T) {
	source := `
import { Wallet, UserProfile } from "common/types";
import {
    GameEvent,
} from "events";

struct Session {
    profile: UserProfile,
}
`
	file, err := ParseFile("session.lum", source)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	if len(file.Imports) != 2 {
		t.Fatalf("expected 2 imports, got %d", len(file.Imports))
	}

	first := file.Imports[0]
	if first.Target != "common/types" {
		t.Errorf("expected target common/types, got %s", first.Target)
	}
	if len(first.Symbols) != 2 || first.Symbols[0] != "Wallet" || first.Symbols[1] != "UserProfile" {
		t.Errorf("unexpected symbols: %v", first.Symbols)
	}
	if first.From != "session.lum" {
		t.Errorf("expected importing file session.lum, got %s", first.From)
	}

	// Multi-line import with trailing comma
	second := file.Imports[1]
	if len(second.Symbols) != 1 || second.Symbols[0] != "GameEvent" {
		t.Errorf("unexpected symbols: %v", second.Symbols)
	}
}

func TestParseAliases(t *testing.T) {
	source := `
type Timestamp = u64;
type WalletRef = Key;
type Scores = Vec<u64>;
type Nickname = Username;
`
	file, err := ParseFile("aliases.lum", source)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	if len(file.Aliases) != 4 {
		t.Fatalf("expected 4 aliases, got %d", len(file.Aliases))
	}

	cases := []struct {
		name   string
		target string
	}{
		{"Timestamp", "u64"},
		{"WalletRef", "Key"},
		{"Scores", "Vec<u64>"},
		{"Nickname", "Username"},
	}
	for i, c := range cases {
		alias := file.Aliases[i]
		if alias.Name != c.name {
			t.Errorf("alias %d: expected name %s, got %s", i, c.name, alias.Name)
		}
		if alias.Target.String() != c.target {
			t.Errorf("alias %s: expected target %s, got %s", c.name, c.target, alias.Target)
		}
	}

	// A bare identifier target stays symbolic until resolution.
	if file.Aliases[3].Target.Kind != RefUser {
		t.Errorf("expected symbolic target, got %s", file.Aliases[3].Target.Kind)
	}
}

func TestParseUnknownAttributePreserved(t *testing.T) {
	source := `
#[indexed]
#[shard(4, "hash")]
struct Ledger {
    entries: Vec<u64>,
}
`
	file, err := ParseFile("ledger.lum", source)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	attrs := file.Types[0].Attrs
	unknown := attrs.Unknown()
	if len(unknown) != 2 {
		t.Fatalf("expected 2 unknown attributes, got %d", len(unknown))
	}
	if unknown[0].Name != "indexed" {
		t.Errorf("expected indexed, got %s", unknown[0].Name)
	}
	if unknown[1].Name != "shard" {
		t.Errorf("expected shard, got %s", unknown[1].Name)
	}
	if len(unknown[1].Args) != 2 || unknown[1].Args[0] != "4" || unknown[1].Args[1] != "hash" {
		t.Errorf("unexpected args: %v", unknown[1].Args)
	}
}

func TestParseErrors(t *testing.T) {
	testCases := []struct {
		name   string
		source string
		line   int
	}{
		{"missing colon", "struct S { wallet Key }", 1},
		{"missing semicolon", "type A = u64", 1},
		{"bad top level", "service Foo {}", 1},
		{"unterminated struct", "struct S {\n    a: u8,", 2},
		{"zero length array", "struct S { a: [u8; 0] }", 1},
		{"attribute on import", `#[account] import { A } from "a";`, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseFile("bad.lum", tc.source)
			if err == nil {
				t.Fatal("expected parse error")
			}

			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected *ParseError, got %T", err)
			}
			if parseErr.File != "bad.lum" {
				t.Errorf("expected file bad.lum, got %s", parseErr.File)
			}
			if parseErr.Line != tc.line {
				t.Errorf("expected error on line %d, got %d (%s)", tc.line, parseErr.Line, parseErr.Msg)
			}
		})
	}
}

func TestParseComments(t *testing.T) {
	source := `
// Account state for one player.
struct Player {
    /* stored as lamports */ balance: u64,
}
`
	file, err := ParseFile("player.lum", source)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if len(file.Types) != 1 || len(file.Types[0].Fields) != 1 {
		t.Fatalf("comments should not affect declarations: %+v", file.Types)
	}
}

func TestTypeRefEquality(t *testing.T) {
	a, err := ParseFile("a.lum", "struct S { x: Vec<Option<u64>>, y: [Key; 4] }")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	b, err := ParseFile("b.lum", "struct S { x: Vec<Option<u64>>, y: [Key; 8] }")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	ax, bx := a.Types[0].Fields[0].Type, b.Types[0].Fields[0].Type
	if !ax.Equal(bx) {
		t.Errorf("expected %s == %s", ax, bx)
	}

	ay, by := a.Types[0].Fields[1].Type, b.Types[0].Fields[1].Type
	if ay.Equal(by) {
		t.Errorf("expected %s != %s (different lengths)", ay, by)
	}

	clone := ax.Clone()
	if !ax.Equal(clone) {
		t.Error("clone should be structurally equal")
	}
	clone.Elem.Elem.Name = "u32"
	if ax.Equal(clone) {
		t.Error("mutating a clone must not affect the original")
	}
}
