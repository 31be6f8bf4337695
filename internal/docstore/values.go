package docstore

import (
	"reflect"
	"sort"
	"strings"
	"time"
)

// ResolveTimestamps returns a deep copy of fields with every ServerTimestamp
// replaced by now.
func ResolveTimestamps(fields Fields, now time.Time) Fields {
	out := make(Fields, len(fields))
	for k, v := range fields {
		out[k] = resolveValue(v, now)
	}
	return out
}

func resolveValue(v any, now time.Time) any {
	switch t := v.(type) {
	case serverTimestamp:
		return now.UTC()
	case Fields:
		return map[string]any(ResolveTimestamps(t, now))
	case map[string]any:
		return map[string]any(ResolveTimestamps(t, now))
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = resolveValue(t[i], now)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case time.Time:
		return t.UTC()
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC()
	default:
		return v
	}
}

// Clone returns a deep copy of fields.
func Clone(fields Fields) Fields {
	if fields == nil {
		return nil
	}
	out := make(Fields, len(fields))
	for k, v := range fields {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Fields:
		return map[string]any(Clone(t))
	case map[string]any:
		return map[string]any(Clone(t))
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// Matches reports whether fields satisfy every filter.
func Matches(fields Fields, filters []Filter) bool {
	for _, f := range filters {
		v, ok := fields[f.Field]
		if !ok {
			return false
		}

		switch f.Op {
		case OpEqual:
			if Compare(v, f.Value) != 0 {
				return false
			}
		case OpArrayContains:
			if !containsValue(v, f.Value) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func containsValue(list any, value any) bool {
	switch l := list.(type) {
	case []string:
		for _, item := range l {
			if Compare(item, value) == 0 {
				return true
			}
		}
	case []any:
		for _, item := range l {
			if Compare(item, value) == 0 {
				return true
			}
		}
	}
	return false
}

// Compare orders two field values. Missing values sort first; values of
// unrelated types fall back to deep equality.
func Compare(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}

	if at, ok := asTime(a); ok {
		if bt, ok := asTime(b); ok {
			return at.Compare(bt)
		}
	}

	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}

	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs)
		}
	}

	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ab == bb:
				return 0
			case !ab:
				return -1
			default:
				return 1
			}
		}
	}

	if reflect.DeepEqual(a, b) {
		return 0
	}
	return 1
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	}
	return time.Time{}, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// SortDocuments orders docs by q.OrderBy (document id breaks ties) and
// applies q.Limit.
func SortDocuments(docs []Document, q Query) []Document {
	if q.OrderBy != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			c := Compare(docs[i].Fields[q.OrderBy], docs[j].Fields[q.OrderBy])
			if c == 0 {
				c = strings.Compare(docs[i].ID, docs[j].ID)
			}
			if q.Direction == Desc {
				return c > 0
			}
			return c < 0
		})
	}

	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs
}
