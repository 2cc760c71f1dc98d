package query

import "fmt"

// Matches evaluates an OrderedQuery against an in-memory document the same
// way Translate's SQL would, so server-side and in-memory filtering agree.
// doc is addressed by dotted path, matching the same field names used in
// the query.
func Matches(doc map[string]any, q *OrderedQuery) bool {
	if q == nil {
		return true
	}
	for _, field := range q.Keys {
		cond := q.Values[field]
		val := lookupPath(doc, field)
		if !matchCond(val, cond) {
			return false
		}
	}
	return true
}

// LookupPath resolves a dotted path against a document, walking nested
// maps. It returns nil if any segment is missing or not a map.
func LookupPath(doc map[string]any, path string) any {
	return lookupPath(doc, path)
}

func lookupPath(doc map[string]any, path string) any {
	cur := any(doc)
	for _, part := range splitPath(path) {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	parts = append(parts, path[start:])
	return parts
}

func matchCond(val any, cond Cond) bool {
	op := cond.Op
	if op == "" {
		op = Eq
	}
	switch op {
	case Eq:
		return equal(val, cond.Value)
	case Neq:
		return !equal(val, cond.Value)
	case Gt:
		c, ok := compare(val, cond.Value)
		return ok && c > 0
	case Lt:
		c, ok := compare(val, cond.Value)
		return ok && c < 0
	case Gte:
		c, ok := compare(val, cond.Value)
		return ok && c >= 0
	case Lte:
		c, ok := compare(val, cond.Value)
		return ok && c <= 0
	case In:
		values, _ := cond.Value.([]any)
		for _, v := range values {
			if equal(val, v) {
				return true
			}
		}
		return false
	case NotIn:
		values, _ := cond.Value.([]any)
		for _, v := range values {
			if equal(val, v) {
				return false
			}
		}
		return true
	case Like:
		pattern, _ := cond.Value.(string)
		s, _ := val.(string)
		return likeMatch(s, pattern)
	default:
		return false
	}
}

func equal(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func compare(a, b any) (int, bool) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		as, aIsStr := a.(string)
		bs, bIsStr := b.(string)
		if aIsStr && bIsStr {
			switch {
			case as < bs:
				return -1, true
			case as > bs:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	default:
		return 0, true
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

// likeMatch implements SQL LIKE's "%"/"_" wildcards against s, ignoring the
// case of ASCII letters as SQLite's default LIKE does.
func likeMatch(s, pattern string) bool {
	return likeMatchRec(s, pattern)
}

func likeMatchRec(s, pattern string) bool {
	if pattern == "" {
		return s == ""
	}
	switch pattern[0] {
	case '%':
		if likeMatchRec(s, pattern[1:]) {
			return true
		}
		for i := 0; i < len(s); i++ {
			if likeMatchRec(s[i+1:], pattern[1:]) {
				return true
			}
		}
		return false
	case '_':
		if len(s) == 0 {
			return false
		}
		return likeMatchRec(s[1:], pattern[1:])
	default:
		if len(s) == 0 {
			return false
		}
		a, b := s[0], pattern[0]
		if 'A' <= a && a <= 'Z' {
			a += 'a' - 'A'
		}
		if 'A' <= b && b <= 'Z' {
			b += 'a' - 'A'
		}
		if a != b {
			return false
		}
		return likeMatchRec(s[1:], pattern[1:])
	}
}
