package dsl

import "strconv"

// Value is the sealed interface for template values: a template string, a
// literal scalar, or an ordered list / ordered map of values (recursive).
// The unexported isValue() method prevents external implementations.
type Value interface {
	isValue()
}

// String is a template-engine string (it may contain {{ ... }} expressions).
type String string

// Int is a literal integer scalar.
type Int int64

// Float is a literal floating-point scalar.
type Float float64

// Bool is a literal boolean scalar.
type Bool bool

// List is an ordered list of values.
type List []Value

// Dict is an ordered map of values.
type Dict struct {
	*Map[Value]
}

func (String) isValue() {}
func (Int) isValue()    {}
func (Float) isValue()  {}
func (Bool) isValue()   {}
func (List) isValue()   {}
func (Dict) isValue()   {}

// NewDict returns an empty Dict.
func NewDict() Dict {
	return Dict{NewMap[Value]()}
}

// Text returns the textual form of a value as substituted into command text.
// Lists render space-joined, maps as space-joined key=value pairs, matching
// how word lists are written in shell.
func Text(v Value) string {
	switch val := v.(type) {
	case nil:
		return ""
	case String:
		return string(val)
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Float:
		return strconv.FormatFloat(float64(val), 'g', -1, 64)
	case Bool:
		return strconv.FormatBool(bool(val))
	case List:
		out := ""
		for i, item := range val {
			if i > 0 {
				out += " "
			}
			out += Text(item)
		}
		return out
	case Dict:
		out := ""
		for i, k := range val.Keys() {
			if i > 0 {
				out += " "
			}
			item, _ := val.Get(k)
			out += k + "=" + Text(item)
		}
		return out
	}
	return ""
}
