package predicate

import (
	"slices"

	"github.com/roach88/pipeopt/internal/ir"
)

// FieldSet is the set of document fields available at a point in a
// pipeline. It is modelled as "every field except those introduced later",
// because documents are schemaless and the full field list is unknown.
type FieldSet struct {
	introduced []string
}

// AllFields returns the set containing every field.
func AllFields() FieldSet {
	return FieldSet{}
}

// Without returns a copy of s minus the given fields.
// Removing "a" also removes every path beneath it, such as "a.b".
func (s FieldSet) Without(fields ...string) FieldSet {
	return FieldSet{introduced: append(slices.Clone(s.introduced), fields...)}
}

// Contains reports whether field is available.
// A path is unavailable when it lies beneath an introduced field, or when an
// introduced field lies beneath it (its value would differ).
func (s FieldSet) Contains(field string) bool {
	for _, f := range s.introduced {
		if ir.HasPrefixPath(field, f) || ir.HasPrefixPath(f, field) {
			return false
		}
	}
	return true
}

// Split partitions p into the part evaluable with only avail and the residual.
// A nil result means "always true". Conjoin(splittable, residual) is
// equivalent to p.
//
// Split is purely structural. Simplify p first: an unsimplified single-child
// Or is treated as a disjunction.
func Split(p Predicate, avail FieldSet) (splittable, residual Predicate) {
	switch n := p.(type) {
	case nil:
		return nil, nil
	case Comparison:
		if n.Op.Known() && avail.Contains(n.Field) {
			return n, nil
		}
		return nil, n
	case Opaque:
		return nil, n
	case And:
		var split, rest []Predicate
		for _, c := range n.Children {
			s, r := Split(c, avail)
			if s != nil {
				split = append(split, s)
			}
			if r != nil {
				rest = append(rest, r)
			}
		}
		return Conjoin(split...), Conjoin(rest...)
	case Or:
		for _, c := range n.Children {
			if !fullySplittable(c, avail) {
				return nil, n
			}
		}
		return n, nil
	case Not:
		if fullySplittable(n.Child, avail) {
			return n, nil
		}
		return nil, n
	default:
		return nil, p
	}
}

func fullySplittable(p Predicate, avail FieldSet) bool {
	_, r := Split(p, avail)
	return r == nil
}

// Conjoin returns the conjunction of parts. Nil parts are dropped and nested
// Ands are spliced in. Zero parts yield nil and a single part is returned as is.
func Conjoin(parts ...Predicate) Predicate {
	var out []Predicate
	for _, p := range parts {
		switch n := p.(type) {
		case nil:
		case And:
			out = append(out, n.Children...)
		default:
			out = append(out, n)
		}
	}

	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return And{Children: out}
	}
}
