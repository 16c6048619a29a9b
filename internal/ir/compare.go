package ir

import (
	"cmp"
	"strings"
)

// Type ranks used by Compare. A missing field (nil) sorts with null.
const (
	rankNull = iota
	rankNumber
	rankString
	rankObject
	rankArray
	rankBool
)

func typeRank(v IRValue) int {
	switch v.(type) {
	case nil, IRNull:
		return rankNull
	case IRInt:
		return rankNumber
	case IRString:
		return rankString
	case IRObject:
		return rankObject
	case IRArray:
		return rankArray
	case IRBool:
		return rankBool
	default:
		return rankNull
	}
}

// SameTypeClass reports whether a and b fall in the same Compare rank.
// Range comparisons ($lt, $gt, ...) only match within a type class.
func SameTypeClass(a, b IRValue) bool {
	return typeRank(a) == typeRank(b)
}

// Compare defines a total order over IR values:
//
//	missing = null < numbers < strings < objects < arrays < booleans
//
// Within a class, numbers compare numerically, strings by byte order, arrays
// element-wise then by length, objects key by key in canonical key order,
// and false < true. Compare returns -1, 0 or +1.
func Compare(a, b IRValue) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}

	switch av := a.(type) {
	case IRInt:
		return cmp.Compare(av, b.(IRInt))
	case IRString:
		return strings.Compare(string(av), string(b.(IRString)))
	case IRBool:
		bv := b.(IRBool)
		switch {
		case av == bv:
			return 0
		case !bool(av):
			return -1
		default:
			return 1
		}
	case IRArray:
		return compareArrays(av, b.(IRArray))
	case IRObject:
		return compareObjects(av, b.(IRObject))
	default:
		return 0
	}
}

func compareArrays(a, b IRArray) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(a), len(b))
}

func compareObjects(a, b IRObject) int {
	ak, bk := a.SortedKeys(), b.SortedKeys()
	for i := 0; i < len(ak) && i < len(bk); i++ {
		if c := compareKeysRFC8785(ak[i], bk[i]); c != 0 {
			return c
		}
		if c := Compare(a[ak[i]], b[bk[i]]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(ak), len(bk))
}

// Equal reports whether a and b are the same value.
// Missing (nil) and IRNull are distinct for Equal even though they tie in Compare.
func Equal(a, b IRValue) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return Compare(a, b) == 0
}
