package salary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind tells which shape a Value has.
type Kind int

const (
	KindAbsent Kind = iota
	KindSingle
	KindRange
)

func (k Kind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindRange:
		return "range"
	default:
		return "absent"
	}
}

// Value is a normalized salary: nothing, one bound, or a (low, high) pair.
// The zero value is Absent.
type Value struct {
	kind Kind
	low  float64
	high float64
}

func Absent() Value {
	return Value{}
}

func Single(v float64) Value {
	return Value{kind: KindSingle, low: v, high: v}
}

// Range builds a two-sided value. low <= high is not enforced.
func Range(low, high float64) Value {
	return Value{kind: KindRange, low: low, high: high}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsAbsent() bool {
	return v.kind == KindAbsent
}

// Bounds returns the low and high ends. A single value reports the same
// number twice; ok is false for Absent.
func (v Value) Bounds() (low, high float64, ok bool) {
	if v.kind == KindAbsent {
		return 0, 0, false
	}
	return v.low, v.high, true
}

func (v Value) Min() (float64, bool) {
	if v.kind == KindAbsent {
		return 0, false
	}
	return v.low, true
}

func (v Value) Max() (float64, bool) {
	if v.kind == KindAbsent {
		return 0, false
	}
	return v.high, true
}

func (v Value) Equal(other Value) bool {
	return v == other
}

func (v Value) String() string {
	switch v.kind {
	case KindSingle:
		return formatNumber(v.low)
	case KindRange:
		return formatNumber(v.low) + "-" + formatNumber(v.high)
	default:
		return ""
	}
}

// MarshalJSON writes null, a number, or a two element array.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindSingle:
		return json.Marshal(v.low)
	case KindRange:
		return json.Marshal([2]float64{v.low, v.high})
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Absent()
		return nil
	}

	if data[0] == '[' {
		var pair []float64
		if err := json.Unmarshal(data, &pair); err != nil {
			return fmt.Errorf("salary: %w", err)
		}
		switch len(pair) {
		case 0:
			*v = Absent()
		case 1:
			*v = Single(pair[0])
		case 2:
			*v = Range(pair[0], pair[1])
		default:
			return fmt.Errorf("salary: expected at most 2 bounds, got %d", len(pair))
		}
		return nil
	}

	var single float64
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("salary: %w", err)
	}
	*v = Single(single)
	return nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
