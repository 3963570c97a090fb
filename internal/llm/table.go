package llm

import "fmt"

// Table is the ordered, immutable list of routable providers. Its order is the
// default priority used when a request states no preference.
type Table struct {
	descriptors []Descriptor
	index       map[string]int
}

// NewTable builds a Table. IDs must be non-empty and unique.
func NewTable(descriptors ...Descriptor) (*Table, error) {
	t := &Table{
		descriptors: make([]Descriptor, 0, len(descriptors)),
		index:       make(map[string]int, len(descriptors)),
	}
	for _, d := range descriptors {
		if d.ID == "" {
			return nil, fmt.Errorf("llm table: provider with model %q has no id", d.Model)
		}
		if _, dup := t.index[d.ID]; dup {
			return nil, fmt.Errorf("llm table: duplicate provider id %q", d.ID)
		}
		if d.Timeout <= 0 {
			return nil, fmt.Errorf("llm table: provider %q has non-positive timeout", d.ID)
		}
		t.index[d.ID] = len(t.descriptors)
		t.descriptors = append(t.descriptors, d)
	}
	return t, nil
}

// List returns the providers in priority order. The slice is a copy.
func (t *Table) List() []Descriptor {
	out := make([]Descriptor, len(t.descriptors))
	copy(out, t.descriptors)
	return out
}

// Get looks up a provider by id.
func (t *Table) Get(id string) (Descriptor, bool) {
	i, ok := t.index[id]
	if !ok {
		return Descriptor{}, false
	}
	return t.descriptors[i], true
}

// Len returns the number of providers.
func (t *Table) Len() int { return len(t.descriptors) }

// IDs returns the provider ids in priority order.
func (t *Table) IDs() []string {
	ids := make([]string, len(t.descriptors))
	for i, d := range t.descriptors {
		ids[i] = d.ID
	}
	return ids
}
