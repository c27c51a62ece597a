package resolver

import (
	"github.com/getlumos/lumos-sub002/pkg/schema"
)

// ResolveAliases flattens every alias chain to a concrete type
// reference. Only alias indirection is expanded; user-defined struct
// and enum names stay symbolic. A self- or mutually-referential chain
// fails with a CircularAliasError carrying the full chain. Results are
// memoized so each alias resolves once regardless of fan-in.
func ResolveAliases(decls []*schema.AliasDecl) (map[string]*schema.TypeRef, error) {
	ar := &aliasResolution{
		decls:    make(map[string]*schema.AliasDecl, len(decls)),
		resolved: make(map[string]*schema.TypeRef, len(decls)),
		visiting: make(map[string]bool),
	}
	for _, d := range decls {
		// Duplicate alias names are a namespace violation reported by
		// the build pass; the first declaration wins here.
		if _, ok := ar.decls[d.Name]; !ok {
			ar.decls[d.Name] = d
		}
	}

	for _, d := range decls {
		if _, err := ar.resolve(d.Name); err != nil {
			return nil, err
		}
	}
	return ar.resolved, nil
}

// aliasResolution carries the per-call visiting set and memo table.
type aliasResolution struct {
	decls    map[string]*schema.AliasDecl
	resolved map[string]*schema.TypeRef
	visiting map[string]bool
	chain    []string
}

// resolve returns the flattened target of one alias.
func (ar *aliasResolution) resolve(name string) (*schema.TypeRef, error) {
	if ref, ok := ar.resolved[name]; ok {
		return ref, nil
	}
	if ar.visiting[name] {
		return nil, &CircularAliasError{Chain: ar.chainTrace(name)}
	}

	ar.visiting[name] = true
	ar.chain = append(ar.chain, name)

	ref, err := ar.expand(ar.decls[name].Target)

	ar.visiting[name] = false
	ar.chain = ar.chain[:len(ar.chain)-1]

	if err != nil {
		return nil, err
	}
	ar.resolved[name] = ref
	return ref, nil
}

// expand rewrites a type reference with all alias links followed.
func (ar *aliasResolution) expand(ref *schema.TypeRef) (*schema.TypeRef, error) {
	switch ref.Kind {
	case schema.RefUser, schema.RefAlias:
		if _, ok := ar.decls[ref.Name]; ok {
			target, err := ar.resolve(ref.Name)
			if err != nil {
				return nil, err
			}
			return target.Clone(), nil
		}
		// Not an alias: a struct or enum name, left symbolic.
		return ref.Clone(), nil
	case schema.RefOption, schema.RefSequence, schema.RefArray:
		elem, err := ar.expand(ref.Elem)
		if err != nil {
			return nil, err
		}
		return &schema.TypeRef{Kind: ref.Kind, Elem: elem, Len: ref.Len}, nil
	default:
		return ref.Clone(), nil
	}
}

// chainTrace returns the visiting chain starting at the re-entered
// alias, with that alias repeated at the end.
func (ar *aliasResolution) chainTrace(name string) []string {
	start := 0
	for i, n := range ar.chain {
		if n == name {
			start = i
			break
		}
	}
	trace := make([]string, 0, len(ar.chain)-start+1)
	trace = append(trace, ar.chain[start:]...)
	trace = append(trace, name)
	return trace
}
