package dsl

// Map is an insertion-ordered string-keyed map.
//
// Declaration order is significant throughout the compiler: it decides which
// canonical name becomes the deduplication representative and which cycle is
// reported first, so every map parsed from the DSL preserves it.
//
// Set on an existing key replaces the value in place but keeps the key's
// original position — overlaying a parent module's entry must not move it.
type Map[V any] struct {
	keys []string
	vals map[string]V
}

// NewMap returns an empty ordered map.
func NewMap[V any]() *Map[V] {
	return &Map[V]{vals: make(map[string]V)}
}

// Set stores v under k, appending k at the end when it is new.
func (m *Map[V]) Set(k string, v V) {
	if _, exists := m.vals[k]; !exists {
		m.keys = append(m.keys, k)
	}
	m.vals[k] = v
}

// Get returns the value for k. All read methods are nil-safe.
func (m *Map[V]) Get(k string) (V, bool) {
	if m == nil {
		var zero V
		return zero, false
	}
	v, ok := m.vals[k]
	return v, ok
}

// Has reports whether k is present.
func (m *Map[V]) Has(k string) bool {
	if m == nil {
		return false
	}
	_, ok := m.vals[k]
	return ok
}

// Len returns the number of entries.
func (m *Map[V]) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order. The returned slice is shared;
// callers must not modify it.
func (m *Map[V]) Keys() []string {
	if m == nil {
		return nil
	}
	return m.keys
}

// Clone returns a shallow copy: the key order and value map are copied,
// the values themselves are shared. This is the copy-on-write base used
// when a module overlays an inherited parent template.
func (m *Map[V]) Clone() *Map[V] {
	out := NewMap[V]()
	if m == nil {
		return out
	}
	out.keys = append(out.keys, m.keys...)
	for k, v := range m.vals {
		out.vals[k] = v
	}
	return out
}
