package ir

import "strings"

// Lookup resolves a dotted field path such as "a.b.c" against doc.
// It returns (nil, false) when any segment is missing or a non-object is
// traversed. Arrays are not traversed.
func Lookup(doc IRObject, path string) (IRValue, bool) {
	var cur IRValue = doc
	for _, seg := range strings.Split(path, ".") {
		obj, ok := cur.(IRObject)
		if !ok {
			return nil, false
		}
		cur, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// HasPrefixPath reports whether path equals prefix or lies beneath it
// ("a.b" is beneath "a", "ab" is not).
func HasPrefixPath(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix) && path[len(prefix)] == '.'
}

// Project returns a copy of doc that keeps only the given top-level or
// dotted paths. Missing paths are skipped.
func Project(doc IRObject, paths []string) IRObject {
	out := IRObject{}
	for _, p := range paths {
		v, ok := Lookup(doc, p)
		if !ok {
			continue
		}
		setPath(out, p, v)
	}
	return out
}

// Without returns a copy of doc with the given paths removed.
func Without(doc IRObject, paths []string) IRObject {
	out := deepCopyObject(doc)
	for _, p := range paths {
		segs := strings.Split(p, ".")
		parent := out
		for _, seg := range segs[:len(segs)-1] {
			next, ok := parent[seg].(IRObject)
			if !ok {
				parent = nil
				break
			}
			parent = next
		}
		if parent != nil {
			delete(parent, segs[len(segs)-1])
		}
	}
	return out
}

func setPath(obj IRObject, path string, v IRValue) {
	segs := strings.Split(path, ".")
	for _, seg := range segs[:len(segs)-1] {
		next, ok := obj[seg].(IRObject)
		if !ok {
			next = IRObject{}
			obj[seg] = next
		}
		obj = next
	}
	obj[segs[len(segs)-1]] = v
}

func deepCopyObject(obj IRObject) IRObject {
	out := make(IRObject, len(obj))
	for k, v := range obj {
		if sub, ok := v.(IRObject); ok {
			out[k] = deepCopyObject(sub)
			continue
		}
		out[k] = v
	}
	return out
}
