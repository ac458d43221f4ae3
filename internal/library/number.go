package library

import (
	"math"
)

// Number は rating や quantity のように数値を想定するフィールドです。
// 数値以外（文字列など）が送られても拒否せず、そのまま保持して返します。
// 整数として表せる数値は int64、それ以外の数値は float64 に揃えます。
type Number struct {
	v any
}

// Int は整数の Number を返します。
func Int(n int64) Number {
	return Number{v: n}
}

// Float は数値の Number を返します。
func Float(f float64) Number {
	return NumberOf(f)
}

// NumberOf は任意の値を Number にします。数値型は正規化し、それ以外はそのまま持ちます。
func NumberOf(v any) Number {
	switch n := v.(type) {
	case nil:
		return Number{}
	case Number:
		return n
	case int:
		return Number{v: int64(n)}
	case int8:
		return Number{v: int64(n)}
	case int16:
		return Number{v: int64(n)}
	case int32:
		return Number{v: int64(n)}
	case int64:
		return Number{v: n}
	case uint8:
		return Number{v: int64(n)}
	case uint16:
		return Number{v: int64(n)}
	case uint32:
		return Number{v: int64(n)}
	case float32:
		return fromFloat(float64(n))
	case float64:
		return fromFloat(n)
	default:
		return Number{v: v}
	}
}

func fromFloat(f float64) Number {
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return Number{v: int64(f)}
	}
	return Number{v: f}
}

// IsNull は値が無い（null）かを返します。
func (n Number) IsNull() bool {
	return n.v == nil
}

// Value は保持している生の値を返します。
func (n Number) Value() any {
	return n.v
}

// Int64 は整数として読める場合にその値を返します。
func (n Number) Int64() (int64, bool) {
	i, ok := n.v.(int64)
	return i, ok
}

// Float64 は数値として読める場合にその値を返します。
func (n Number) Float64() (float64, bool) {
	switch v := n.v.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// MarshalJSON は保持している値をそのまま書き出します。
func (n Number) MarshalJSON() ([]byte, error) {
	if n.v == nil {
		return []byte("null"), nil
	}
	return codec.Marshal(n.v)
}

// UnmarshalJSON はどの JSON 値も受け付けます。
func (n *Number) UnmarshalJSON(data []byte) error {
	var v any
	if err := codec.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = NumberOf(v)
	return nil
}
