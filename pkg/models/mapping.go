package models

// IgnoreSource is the sentinel source value meaning "deliberately not mapped".
// Any number of targets may carry it; it never counts as a binding.
const IgnoreSource = "--- Ignore ---"

// FieldMapping maps target field -> source column. A missing key is unset.
type FieldMapping map[string]string

// MappingPair is one explicit target -> source binding.
type MappingPair struct {
	Target string `json:"target"`
	Source string `json:"source"`
}

// Bound returns the source bound to target, ignoring the sentinel.
func (m FieldMapping) Bound(target string) (string, bool) {
	source, ok := m[target]
	if !ok || source == "" || source == IgnoreSource {
		return "", false
	}
	return source, true
}

// Pairs returns the mapping as explicit pairs ordered by the given targets.
// Targets without an entry are skipped.
func (m FieldMapping) Pairs(order []string) []MappingPair {
	pairs := make([]MappingPair, 0, len(m))
	for _, target := range order {
		if source, ok := m[target]; ok && source != "" {
			pairs = append(pairs, MappingPair{Target: target, Source: source})
		}
	}
	return pairs
}

// MappingFromPairs builds a FieldMapping from explicit pairs.
func MappingFromPairs(pairs []MappingPair) FieldMapping {
	m := make(FieldMapping, len(pairs))
	for _, p := range pairs {
		m[p.Target] = p.Source
	}
	return m
}
