package mrworker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Keys of different kinds are ordered nil < bool < number < text < anything else.
const (
	rankNil = iota
	rankBool
	rankNumber
	rankText
	rankOther
)

// CompareKeys gives the ascending order used whenever records are sorted by
// key. Numbers compare numerically regardless of their Go type (json.Number
// included), strings and byte slices compare bytewise, and values of any other
// type fall back to their fmt representation so the order is still total.
func CompareKeys(a, b interface{}) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case rankNil:
		return 0
	case rankBool:
		x, y := a.(bool), b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case rankNumber:
		return compareNumbers(a, b)
	case rankText:
		return bytes.Compare(textOf(a), textOf(b))
	}
	return strings.Compare(fmt.Sprintf("%T:%v", a, a), fmt.Sprintf("%T:%v", b, b))
}

func rank(v interface{}) int {
	switch n := v.(type) {
	case nil:
		return rankNil
	case bool:
		return rankBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return rankNumber
	case json.Number:
		if _, err := n.Float64(); err == nil {
			return rankNumber
		}
		return rankText
	case string, []byte:
		return rankText
	}
	return rankOther
}

func textOf(v interface{}) []byte {
	switch t := v.(type) {
	case string:
		return []byte(t)
	case []byte:
		return t
	case json.Number:
		return []byte(t)
	}
	return nil
}

// compareNumbers keeps integer precision when both sides are integers.
func compareNumbers(a, b interface{}) int {
	ia, aInt := asInt(a)
	ib, bInt := asInt(b)
	ua, aBig := bigUint(a)
	ub, bBig := bigUint(b)
	switch {
	case aBig && bBig:
		switch {
		case ua < ub:
			return -1
		case ua > ub:
			return 1
		}
		return 0
	case aBig && bInt:
		return 1
	case bBig && aInt:
		return -1
	}
	if aInt && bInt {
		switch {
		case ia < ib:
			return -1
		case ia > ib:
			return 1
		}
		return 0
	}
	fa, fb := asFloat(a), asFloat(b)
	switch {
	case fa < fb:
		return -1
	case fa > fb:
		return 1
	}
	return 0
}

func asInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), uint64(n) <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

// bigUint reports unsigned values that do not fit an int64.
func bigUint(v interface{}) (uint64, bool) {
	switch n := v.(type) {
	case uint:
		return uint64(n), uint64(n) > math.MaxInt64
	case uint64:
		return n, n > math.MaxInt64
	}
	return 0, false
}

func asFloat(v interface{}) float64 {
	if i, ok := asInt(v); ok {
		return float64(i)
	}
	switch n := v.(type) {
	case uint:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	case json.Number:
		f, _ := n.Float64()
		return f
	}
	return 0
}
