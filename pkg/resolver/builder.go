package resolver

import (
	"encoding/json"
	"sort"

	"github.com/getlumos/lumos-sub002/pkg/schema"
)

// Schema is the resolved IR: one alias-free namespace merged from every
// file in a resolution scope. It is immutable and the only input the
// compatibility engine accepts.
type Schema struct {
	// Types maps type name to its fully resolved declaration. Every
	// AliasRef has been replaced with its concrete expansion.
	Types map[string]*schema.TypeDecl `json:"types"`
	// Version is the declared semantic version, empty when absent.
	Version string `json:"version,omitempty"`

	names []string
}

// TypeNames returns every type name in sorted order for deterministic
// iteration.
func (s *Schema) TypeNames() []string {
	return s.names
}

// Type returns the named declaration.
func (s *Schema) Type(name string) (*schema.TypeDecl, bool) {
	d, ok := s.Types[name]
	return d, ok
}

// Len returns the number of types in the namespace.
func (s *Schema) Len() int {
	return len(s.Types)
}

// UnmarshalJSON restores a schema from its serialized form and rebuilds
// the sorted name index, which the wire shape does not carry.
func (s *Schema) UnmarshalJSON(data []byte) error {
	type wire Schema
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.Types = w.Types
	s.Version = w.Version
	s.names = make([]string, 0, len(s.Types))
	for name := range s.Types {
		s.names = append(s.names, name)
	}
	sort.Strings(s.names)
	return nil
}

// Build merges every declaration from the resolved file set plus the
// flattened alias map into one namespace. It runs three passes:
// collect names, substitute alias references, validate referential
// integrity. Validation problems accumulate into a single
// ValidationErrors so every undefined-type and duplicate-name problem
// surfaces at once; structural errors have already failed fast during
// resolution. files is expected in the order Resolve returned it,
// entry file last.
func Build(files []*schema.File, aliases map[string]*schema.TypeRef) (*Schema, error) {
	verrs := &ValidationErrors{}

	// Pass 1: collect every declared name into one namespace. Aliases
	// share the namespace for duplicate detection even though they do
	// not become IR types.
	owners := make(map[string]string)
	collected := make(map[string]*schema.TypeDecl)
	for _, f := range files {
		for _, d := range f.Types {
			if first, ok := owners[d.Name]; ok {
				verrs.add(&DuplicateTypeNameError{Name: d.Name, FirstFile: first, SecondFile: f.Path})
				continue
			}
			owners[d.Name] = f.Path
			collected[d.Name] = d
		}
		for _, a := range f.Aliases {
			if first, ok := owners[a.Name]; ok {
				verrs.add(&DuplicateTypeNameError{Name: a.Name, FirstFile: first, SecondFile: f.Path})
				continue
			}
			owners[a.Name] = f.Path
		}
	}

	names := make([]string, 0, len(collected))
	for name := range collected {
		names = append(names, name)
	}
	sort.Strings(names)

	// Pass 2: substitute alias references with their expansions,
	// copying declarations so source files stay untouched.
	resolved := make(map[string]*schema.TypeDecl, len(collected))
	for _, name := range names {
		resolved[name] = substituteDecl(collected[name], aliases)
	}

	// Pass 3: validate referential integrity. Iteration over sorted
	// names keeps error ordering deterministic.
	for _, name := range names {
		validateDecl(resolved[name], resolved, verrs)
	}
	validateImports(files, verrs)

	if err := verrs.orNil(); err != nil {
		return nil, err
	}

	out := &Schema{
		Types: resolved,
		names: names,
	}
	// The entry file's version wins; dependency versions apply only
	// when the entry declares none.
	for i := len(files) - 1; i >= 0; i-- {
		if files[i].Version != "" {
			out.Version = files[i].Version
			break
		}
	}
	return out, nil
}

// substituteDecl deep-copies a declaration with every alias reference
// expanded. The optional flag is recomputed afterwards since an alias
// may expand to an Option.
func substituteDecl(decl *schema.TypeDecl, aliases map[string]*schema.TypeRef) *schema.TypeDecl {
	out := &schema.TypeDecl{
		Name:       decl.Name,
		Kind:       decl.Kind,
		Attrs:      decl.Attrs,
		Pos:        decl.Pos,
		SourceFile: decl.SourceFile,
	}
	for _, f := range decl.Fields {
		out.Fields = append(out.Fields, substituteField(f, aliases))
	}
	for _, v := range decl.Variants {
		nv := &schema.EnumVariant{Name: v.Name, Kind: v.Kind, Pos: v.Pos}
		for _, f := range v.Fields {
			nv.Fields = append(nv.Fields, substituteField(f, aliases))
		}
		out.Variants = append(out.Variants, nv)
	}
	return out
}

func substituteField(f *schema.Field, aliases map[string]*schema.TypeRef) *schema.Field {
	ref := substituteRef(f.Type, aliases)
	return &schema.Field{
		Name:     f.Name,
		Type:     ref,
		Optional: ref.Kind == schema.RefOption,
		Attrs:    f.Attrs,
		Pos:      f.Pos,
	}
}

// substituteRef rewrites one reference with alias links replaced by
// their flattened expansion.
func substituteRef(ref *schema.TypeRef, aliases map[string]*schema.TypeRef) *schema.TypeRef {
	switch ref.Kind {
	case schema.RefUser, schema.RefAlias:
		if target, ok := aliases[ref.Name]; ok {
			return target.Clone()
		}
		return ref.Clone()
	case schema.RefOption, schema.RefSequence, schema.RefArray:
		return &schema.TypeRef{Kind: ref.Kind, Elem: substituteRef(ref.Elem, aliases), Len: ref.Len}
	default:
		return ref.Clone()
	}
}

// validateDecl checks one declaration: unique field and variant names,
// and every user-defined reference present in the namespace. Forward
// references across files are legal since the namespace is fully
// collected before validation runs.
func validateDecl(decl *schema.TypeDecl, namespace map[string]*schema.TypeDecl, verrs *ValidationErrors) {
	seenFields := make(map[string]bool)
	for _, f := range decl.Fields {
		if seenFields[f.Name] {
			verrs.add(&DuplicateFieldNameError{Type: decl.Name, Field: f.Name, File: decl.SourceFile})
		}
		seenFields[f.Name] = true
		validateRef(decl, f, namespace, verrs)
	}

	seenVariants := make(map[string]bool)
	for _, v := range decl.Variants {
		if seenVariants[v.Name] {
			verrs.add(&DuplicateVariantNameError{Enum: decl.Name, Variant: v.Name, File: decl.SourceFile})
		}
		seenVariants[v.Name] = true
		for _, f := range v.Fields {
			validateRef(decl, f, namespace, verrs)
		}
	}
}

// validateRef accumulates an UndefinedTypeError for every named
// reference in the field's type that the namespace does not contain.
func validateRef(decl *schema.TypeDecl, f *schema.Field, namespace map[string]*schema.TypeDecl, verrs *ValidationErrors) {
	for _, name := range f.Type.NamedRefs(nil) {
		if _, ok := namespace[name]; !ok {
			verrs.add(&UndefinedTypeError{
				TypeName: decl.Name,
				RefName:  name,
				File:     decl.SourceFile,
				Line:     f.Pos.Line,
				Column:   f.Pos.Column,
			})
		}
	}
}

// validateImports confirms each file's imports are a subset of the
// symbols its target file actually declares.
func validateImports(files []*schema.File, verrs *ValidationErrors) {
	byPath := make(map[string]*schema.File, len(files))
	for _, f := range files {
		byPath[f.Path] = f
	}

	for _, f := range files {
		for _, imp := range f.Imports {
			targetPath := ImportPath(f.Path, imp.Target)
			target, ok := byPath[targetPath]
			if !ok {
				// Outside the resolution scope; the resolver would have
				// failed with an IOError before reaching this pass.
				for _, sym := range imp.Symbols {
					verrs.add(&UndefinedImportError{File: f.Path, Target: targetPath, Symbol: sym})
				}
				continue
			}
			declared := target.DeclaredNames()
			for _, sym := range imp.Symbols {
				if !declared[sym] {
					verrs.add(&UndefinedImportError{File: f.Path, Target: targetPath, Symbol: sym})
				}
			}
		}
	}
}
