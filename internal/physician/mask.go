package physician

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var intPattern = regexp.MustCompile(`-?\d+`)

// ParseMask normalizes an availability value from any directory source into
// a 24-hour mask. It accepts integer or boolean sequences, JSON-style strings
// such as "[1,0,1]", and free text with embedded integers. Only the value 1
// marks an hour available. Short input is zero-padded, long input truncated,
// and input with no integers yields an all-unavailable mask.
func ParseMask(v any) Mask {
	return maskFromInts(extractInts(v))
}

func maskFromInts(vals []int) Mask {
	var m Mask
	for i := 0; i < len(vals) && i < HoursPerDay; i++ {
		m[i] = vals[i] == 1
	}
	return m
}

func extractInts(v any) []int {
	switch x := v.(type) {
	case nil:
		return nil
	case Mask:
		out := make([]int, HoursPerDay)
		for i, b := range x {
			if b {
				out[i] = 1
			}
		}
		return out
	case []int:
		return x
	case []bool:
		out := make([]int, len(x))
		for i, b := range x {
			if b {
				out[i] = 1
			}
		}
		return out
	case []any:
		out := make([]int, 0, len(x))
		for _, e := range x {
			if n, ok := scalarInt(e); ok {
				out = append(out, n)
			}
		}
		return out
	case []byte:
		return intsFromString(string(x))
	case string:
		return intsFromString(x)
	default:
		return intsFromString(fmt.Sprint(x))
	}
}

// intsFromString tries a JSON array first and falls back to scanning for integers.
func intsFromString(s string) []int {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		var arr []any
		if err := json.Unmarshal([]byte(s), &arr); err == nil {
			return extractInts(arr)
		}
	}

	matches := intPattern.FindAllString(s, -1)
	out := make([]int, 0, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(m)
		if err != nil {
			// out of int range, cannot be 1
			n = 0
		}
		out = append(out, n)
	}
	return out
}

func scalarInt(v any) (int, bool) {
	switch n := v.(type) {
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case float32:
		return floatInt(float64(n))
	case float64:
		return floatInt(n)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

func floatInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}
