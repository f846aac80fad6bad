// Package path implements the flow's path grammar: dotted/indexed traversal
// of an arbitrary data value, with special-cased awareness of the HTTP
// response shape ({status, headers, body}) that request-step output and
// extraction paths need.
//
// Grounded on the teacher repo's dot-path traversal idiom
// (runtime/engine/dsl/value_store.go's Set/Get, which navigate nested
// map[string]any by splitting on "."), generalized here to read an arbitrary
// any-typed tree (slices and maps alike) instead of only the execution
// value store, and extended with the response-shape special cases the value
// store has no use for.
package path

import (
	"strconv"
	"strings"
)

// segment is one parsed path element: either a field name or a numeric index.
type segment struct {
	name    string
	index   int
	isIndex bool
}

// Evaluate resolves path against data following the special-case order from
// spec §4.1. It returns (value, true) on success, or (nil, false) for any
// missing property, type mismatch, or out-of-bounds index. Evaluate never
// panics on a well-formed path string; only a malformed path (unbalanced
// brackets, non-numeric index) returns (nil, false) as well, since the spec
// draws no distinction between "malformed path" and "no such value" at the
// API boundary — both are simply "not found".
func Evaluate(data any, p string) (any, bool) {
	p = strings.TrimSpace(p)
	p = strings.TrimPrefix(p, "{{")
	p = strings.TrimSuffix(p, "}}")
	p = strings.TrimSpace(p)

	m, isMap := data.(map[string]any)

	// Exactly ".status" -> data.status if present, else undefined.
	if p == ".status" {
		if isMap {
			if v, ok := m["status"]; ok {
				return v, true
			}
		}
		return nil, false
	}

	segs, ok := parseSegments(p)
	if !ok || len(segs) == 0 {
		return nil, false
	}

	// First segment "headers" when data.headers exists -> descend into
	// headers; subsequent segment matched case-insensitively.
	if isMap && segs[0].name == "headers" && !segs[0].isIndex {
		if hv, ok := m["headers"]; ok {
			if len(segs) == 1 {
				return hv, true
			}
			return evaluateHeaders(hv, segs[1:])
		}
	}

	// First segment "body" when data.body exists -> descend into body.
	if isMap && segs[0].name == "body" && !segs[0].isIndex {
		if bv, ok := m["body"]; ok {
			if len(segs) == 1 {
				return bv, true
			}
			return walk(bv, segs[1:])
		}
	}

	// First segment "status" with single-segment path -> data.status.
	if isMap && len(segs) == 1 && segs[0].name == "status" && !segs[0].isIndex {
		if v, ok := m["status"]; ok {
			return v, true
		}
		return nil, false
	}

	// Otherwise, if data.body exists and its first property equals the
	// first segment, traversal starts inside body; else traversal starts
	// at data.
	if isMap {
		if bv, ok := m["body"]; ok {
			if bm, ok := bv.(map[string]any); ok {
				if !segs[0].isIndex {
					if _, exists := bm[segs[0].name]; exists {
						return walk(bv, segs)
					}
				}
			}
		}
	}

	return walk(data, segs)
}

// evaluateHeaders resolves a header lookup case-insensitively on the first
// remaining segment, then continues normal traversal on whatever it finds.
func evaluateHeaders(headers any, rest []segment) (any, bool) {
	hm, ok := headers.(map[string]any)
	if !ok {
		if hs, ok := headers.(map[string]string); ok {
			hm = make(map[string]any, len(hs))
			for k, v := range hs {
				hm[k] = v
			}
		} else {
			return nil, false
		}
	}
	if rest[0].isIndex {
		return nil, false
	}
	target := strings.ToLower(rest[0].name)
	var found any
	hit := false
	for k, v := range hm {
		if strings.ToLower(k) == target {
			found, hit = v, true
			break
		}
	}
	if !hit {
		return nil, false
	}
	if len(rest) == 1 {
		return found, true
	}
	return walk(found, rest[1:])
}

// walk traverses data through segs with no special-casing: field access on
// maps, index access on slices/arrays. Any mismatch returns (nil, false).
func walk(data any, segs []segment) (any, bool) {
	cur := data
	for _, s := range segs {
		if s.isIndex {
			slice, ok := cur.([]any)
			if !ok {
				return nil, false
			}
			if s.index < 0 || s.index >= len(slice) {
				return nil, false
			}
			cur = slice[s.index]
			continue
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, exists := m[s.name]
		if !exists {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// parseSegments splits a dotted/bracketed path into segments.
// Grammar: identifiers, dots, bracketed non-negative decimal indices
// ("items[0].name").
func parseSegments(p string) ([]segment, bool) {
	if p == "" {
		return nil, false
	}
	var segs []segment
	i := 0
	for i < len(p) {
		switch {
		case p[i] == '.':
			i++
		case p[i] == '[':
			end := strings.IndexByte(p[i:], ']')
			if end < 0 {
				return nil, false
			}
			numStr := p[i+1 : i+end]
			n, err := strconv.Atoi(numStr)
			if err != nil || n < 0 {
				return nil, false
			}
			segs = append(segs, segment{index: n, isIndex: true})
			i += end + 1
		default:
			start := i
			for i < len(p) && p[i] != '.' && p[i] != '[' {
				i++
			}
			name := p[start:i]
			if name == "" {
				return nil, false
			}
			segs = append(segs, segment{name: name})
		}
	}
	return segs, true
}
