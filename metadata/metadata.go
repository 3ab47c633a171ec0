package metadata

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/hupe1980/fusion/model"
)

// ErrNotTable is returned when a dotted path crosses a non-table value.
var ErrNotTable = errors.New("metadata: path crosses a non-table value")

// Metadata is a TOML document.
type Metadata struct {
	raw  []byte
	root map[string]any
}

// New returns an empty document.
func New() *Metadata {
	return &Metadata{root: map[string]any{}}
}

// Parse decodes a TOML document.
func Parse(b []byte) (*Metadata, error) {
	root := map[string]any{}
	if err := toml.Unmarshal(b, &root); err != nil {
		return nil, model.NewFormatError("metadata", "invalid TOML", err)
	}
	return &Metadata{raw: slices.Clone(b), root: root}, nil
}

// FromMap builds a document from a decoded tree. The map is retained.
func FromMap(root map[string]any) *Metadata {
	if root == nil {
		root = map[string]any{}
	}
	return &Metadata{root: root}
}

// Bytes returns the TOML encoding: the parsed bytes if unmodified.
func (m *Metadata) Bytes() ([]byte, error) {
	if m.raw != nil {
		return m.raw, nil
	}
	b, err := toml.Marshal(m.root)
	if err != nil {
		return nil, fmt.Errorf("metadata: encode: %w", err)
	}
	return b, nil
}

// String returns the TOML text, or an empty string if it cannot be encoded.
func (m *Metadata) String() string {
	b, err := m.Bytes()
	if err != nil {
		return ""
	}
	return string(b)
}

// Map returns the decoded tree. It must not be modified; use Set.
func (m *Metadata) Map() map[string]any { return m.root }

// Keys returns the top-level keys in sorted order.
func (m *Metadata) Keys() []string {
	return slices.Sorted(maps.Keys(m.root))
}

// Len returns the number of top-level keys.
func (m *Metadata) Len() int { return len(m.root) }

// lookup walks to the table holding the last key of path.
func (m *Metadata) lookup(path string) (map[string]any, string, bool) {
	keys := strings.Split(path, ".")
	table := m.root
	for _, k := range keys[:len(keys)-1] {
		next, ok := table[k].(map[string]any)
		if !ok {
			return nil, "", false
		}
		table = next
	}
	return table, keys[len(keys)-1], true
}

// Get returns the value at a dotted path such as "model.dims".
func (m *Metadata) Get(path string) (any, bool) {
	table, key, ok := m.lookup(path)
	if !ok {
		return nil, false
	}
	v, ok := table[key]
	return v, ok
}

// Set stores v at a dotted path, creating intermediate tables.
func (m *Metadata) Set(path string, v any) error {
	keys := strings.Split(path, ".")
	table := m.root
	for i, k := range keys[:len(keys)-1] {
		next, exists := table[k]
		if !exists {
			t := map[string]any{}
			table[k] = t
			table = t
			continue
		}
		t, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotTable, strings.Join(keys[:i+1], "."))
		}
		table = t
	}
	table[keys[len(keys)-1]] = v
	m.raw = nil
	return nil
}

// Delete removes the value at a dotted path and reports whether it existed.
func (m *Metadata) Delete(path string) bool {
	table, key, ok := m.lookup(path)
	if !ok {
		return false
	}
	if _, ok := table[key]; !ok {
		return false
	}
	delete(table, key)
	m.raw = nil
	return true
}

// Clone returns a deep copy.
func (m *Metadata) Clone() *Metadata {
	return &Metadata{raw: slices.Clone(m.raw), root: cloneTable(m.root)}
}

func cloneTable(t map[string]any) map[string]any {
	out := make(map[string]any, len(t))
	for k, v := range t {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneTable(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
