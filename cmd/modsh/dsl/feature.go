package dsl

import "strings"

// SplitFeatureKey splits a feature-tagged key "name[feature]" into its base
// name and feature. ok is false for a plain key (or a malformed suffix,
// which is treated as part of the name).
func SplitFeatureKey(key string) (base, feature string, ok bool) {
	if !strings.HasSuffix(key, "]") {
		return key, "", false
	}
	open := strings.LastIndex(key, "[")
	if open <= 0 {
		return key, "", false
	}
	feature = key[open+1 : len(key)-1]
	if feature == "" {
		return key, "", false
	}
	return key[:open], feature, true
}

// SelectFeatures resolves feature-tagged keys against the enabled feature
// set, producing a map of plain keys:
//
//   - a plain key keeps its value unless an enabled "key[feature]" sibling
//     exists anywhere in the map, in which case the variant's value wins;
//   - a feature-tagged key whose feature is not enabled is dropped;
//   - an entry's position is that of the first occurrence of either form.
//
// When several variants of the same key are enabled, the last declared wins.
func SelectFeatures[V any](m *Map[V], enabled map[string]bool) *Map[V] {
	out := NewMap[V]()
	if m == nil {
		return out
	}
	fromVariant := make(map[string]bool)
	for _, key := range m.Keys() {
		v, _ := m.Get(key)
		base, feature, tagged := SplitFeatureKey(key)
		switch {
		case !tagged:
			if !fromVariant[base] {
				out.Set(base, v)
			}
		case enabled[feature]:
			out.Set(base, v)
			fromVariant[base] = true
		}
	}
	return out
}
