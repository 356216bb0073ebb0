package schema

import "strconv"

// Values 为按规范字段名索引的字段值：string、bool、float64 或 nil。
type Values map[string]any

func (v Values) String(name string) string {
	switch t := v[name].(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func (v Values) Bool(name string) bool {
	b, _ := v[name].(bool)
	return b
}

// Number 返回数值字段；缺失时 ok 为 false。
func (v Values) Number(name string) (float64, bool) {
	n, ok := v[name].(float64)
	return n, ok
}

// Clone 返回浅拷贝。
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, x := range v {
		out[k] = x
	}
	return out
}
