package services

import (
	"fmt"
	"sort"

	"github.com/ekaya-inc/cleanlist/pkg/apperrors"
	"github.com/ekaya-inc/cleanlist/pkg/models"
)

// MappingState binds target fields to source columns of one loaded table.
// A source column serves at most one target at a time; the ignore sentinel
// may be bound to any number of targets.
type MappingState struct {
	schema   *models.TargetSchema
	columns  []string
	bindings models.FieldMapping
}

// NewMappingState creates an empty mapping for the given schema and table columns.
func NewMappingState(schema *models.TargetSchema, columns []string) *MappingState {
	return &MappingState{
		schema:   schema,
		columns:  append([]string(nil), columns...),
		bindings: make(models.FieldMapping),
	}
}

// Assign binds target to source. If source was bound to a different target,
// that binding is cleared. Unknown targets and sources are rejected with
// ErrInvalidMapping and leave the state unchanged.
func (m *MappingState) Assign(target, source string) error {
	if err := m.checkPair(target, source); err != nil {
		return err
	}

	if source != models.IgnoreSource {
		for other, bound := range m.bindings {
			if other != target && bound == source {
				delete(m.bindings, other)
			}
		}
	}
	m.bindings[target] = source
	return nil
}

// Clear unsets target. Clearing an unset or unknown target is a no-op.
func (m *MappingState) Clear(target string) {
	delete(m.bindings, target)
}

// ActiveSources returns the source columns currently bound to some target,
// excluding the ignore sentinel, in table column order.
func (m *MappingState) ActiveSources() []string {
	used := m.usedSources("")
	active := make([]string, 0, len(used))
	for _, c := range m.columns {
		if used[c] {
			active = append(active, c)
		}
	}
	return active
}

// AvailableSources returns the selectable sources for target: the ignore
// sentinel first, then every column not bound to another target, sorted.
func (m *MappingState) AvailableSources(target string) []string {
	used := m.usedSources(target)
	available := make([]string, 0, len(m.columns))
	for _, c := range m.columns {
		if !used[c] {
			available = append(available, c)
		}
	}
	sort.Strings(available)
	return append([]string{models.IgnoreSource}, available...)
}

// IsComplete reports whether every required target has a real binding.
func (m *MappingState) IsComplete() bool {
	return len(m.Missing()) == 0
}

// Missing returns the required targets that are still unbound.
func (m *MappingState) Missing() []string {
	var missing []string
	for _, name := range m.schema.RequiredFields() {
		if _, ok := m.bindings.Bound(name); !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Snapshot returns a copy of the current bindings.
func (m *MappingState) Snapshot() models.FieldMapping {
	out := make(models.FieldMapping, len(m.bindings))
	for k, v := range m.bindings {
		out[k] = v
	}
	return out
}

// Pairs returns the bindings as explicit pairs in schema order.
func (m *MappingState) Pairs() []models.MappingPair {
	return m.bindings.Pairs(m.schema.Names())
}

// Replace swaps the whole mapping for next after checking every pair and the
// uniqueness of sources. On error the state is unchanged.
func (m *MappingState) Replace(next models.FieldMapping) error {
	seen := make(map[string]string, len(next))
	for target, source := range next {
		if err := m.checkPair(target, source); err != nil {
			return err
		}
		if source == models.IgnoreSource {
			continue
		}
		if prev, dup := seen[source]; dup {
			return fmt.Errorf("%w: source %q bound to both %q and %q", apperrors.ErrInvalidMapping, source, prev, target)
		}
		seen[source] = target
	}

	bindings := make(models.FieldMapping, len(next))
	for k, v := range next {
		bindings[k] = v
	}
	m.bindings = bindings
	return nil
}

// Filter splits pairs into those valid for the current schema and table and
// those that are not. Duplicate sources are left for Replace to reject.
func (m *MappingState) Filter(pairs []models.MappingPair) (valid models.FieldMapping, skipped []models.MappingPair) {
	valid = make(models.FieldMapping, len(pairs))
	for _, p := range pairs {
		if m.checkPair(p.Target, p.Source) != nil {
			skipped = append(skipped, p)
			continue
		}
		valid[p.Target] = p.Source
	}
	return valid, skipped
}

func (m *MappingState) checkPair(target, source string) error {
	if !m.schema.Has(target) {
		return fmt.Errorf("%w: unknown target field %q", apperrors.ErrInvalidMapping, target)
	}
	if source == models.IgnoreSource {
		return nil
	}
	for _, c := range m.columns {
		if c == source {
			return nil
		}
	}
	return fmt.Errorf("%w: %q is not a column of the uploaded file", apperrors.ErrInvalidMapping, source)
}

// usedSources returns the sources bound to targets other than except.
func (m *MappingState) usedSources(except string) map[string]bool {
	used := make(map[string]bool, len(m.bindings))
	for target, source := range m.bindings {
		if target == except || source == models.IgnoreSource {
			continue
		}
		used[source] = true
	}
	return used
}
