package store

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// Record is a single stored entity. Values are JSON-compatible: strings,
// int64 numbers, bools or nil. A nil value means "absent".
type Record map[string]any

// ID returns the record id.
func (r Record) ID() string {
	return r.String(FieldID)
}

// String returns the string value of key, or "".
func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Int64 returns the integer value of key and whether it was present.
func (r Record) Int64(key string) (int64, bool) {
	return toInt64(r[key])
}

// Time parses a timestamp stored with TimeLayout or RFC 3339.
func (r Record) Time(key string) time.Time {
	s := r.String(key)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}

// Clone returns a shallow copy with numbers normalized.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = Normalize(v)
	}
	return out
}

// Merge returns a copy of r with patch applied on top.
func (r Record) Merge(patch Record) Record {
	out := r.Clone()
	for k, v := range patch {
		out[k] = Normalize(v)
	}
	return out
}

// Matches reports whether every filter field equals the record's value.
func (r Record) Matches(f Filter) bool {
	for k, want := range f {
		if !Equal(r[k], want) {
			return false
		}
	}
	return true
}

// Normalize converts numeric values to int64 where they are integral so
// records compare the same after a JSON round trip.
func Normalize(v any) any {
	switch n := v.(type) {
	case int, int32, int64, json.Number:
		if i, ok := toInt64(n); ok {
			return i
		}
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int64(n)
		}
	}
	return v
}

// Equal compares two record values after normalization.
func Equal(a, b any) bool {
	a, b = Normalize(a), Normalize(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// Compare orders two values: nil first, then numbers, then strings.
func Compare(a, b any) int {
	a, b = Normalize(a), Normalize(b)
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	ai, aNum := a.(int64)
	bi, bNum := b.(int64)
	if aNum && bNum {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}

// SortRecords stable-sorts recs by the given orders.
func SortRecords(recs []Record, orders []Order) {
	if len(orders) == 0 {
		return
	}
	sort.SliceStable(recs, func(i, j int) bool {
		for _, o := range orders {
			c := Compare(recs[i][o.Field], recs[j][o.Field])
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}
