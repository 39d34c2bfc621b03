// Package lookup holds the per-file lookup tables that tenant rules query
// while a file is processed, the worker-scoped slots that keep those tables
// isolated between concurrent workers, and the key resolution strategies.
package lookup

// CompositeSeparator joins the two parts of a composite key.
const CompositeSeparator = "_"

// AttributeMap is one row of a lookup table.
type AttributeMap map[string]string

// CompositeKey builds the key for a two-column table.
func CompositeKey(key1, key2 string) string {
	return key1 + CompositeSeparator + key2
}

// Table maps keys to attribute rows. Keys are iterated in the order they
// were added, so resolution against a table is reproducible. Tables are
// immutable; use a Builder to make one. A nil *Table behaves as an empty one.
type Table struct {
	keys []string
	rows map[string]AttributeMap
}

var empty = &Table{rows: map[string]AttributeMap{}}

// Empty returns the shared empty table.
func Empty() *Table {
	return empty
}

// Get returns the row stored under key.
func (t *Table) Get(key string) (AttributeMap, bool) {
	if t == nil {
		return nil, false
	}
	row, ok := t.rows[key]
	return row, ok
}

// Keys returns a copy of the keys in iteration order.
func (t *Table) Keys() []string {
	if t == nil {
		return nil
	}
	keys := make([]string, len(t.keys))
	copy(keys, t.keys)
	return keys
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.keys)
}

// Builder accumulates rows for a Table.
type Builder struct {
	keys []string
	rows map[string]AttributeMap
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		keys: make([]string, 0),
		rows: make(map[string]AttributeMap),
	}
}

// Add stores a row. Empty keys are rejected and the first row stored under
// a key is kept; Add reports whether the row was stored.
func (b *Builder) Add(key string, row AttributeMap) bool {
	if key == "" {
		return false
	}
	if _, ok := b.rows[key]; ok {
		return false
	}
	stored := make(AttributeMap, len(row))
	for k, v := range row {
		stored[k] = v
	}
	b.keys = append(b.keys, key)
	b.rows[key] = stored
	return true
}

// AddComposite stores a row under the composite key of key1 and key2.
// Both parts must be non-empty.
func (b *Builder) AddComposite(key1, key2 string, row AttributeMap) bool {
	if key1 == "" || key2 == "" {
		return false
	}
	return b.Add(CompositeKey(key1, key2), row)
}

// Table returns the built table and resets the builder.
func (b *Builder) Table() *Table {
	t := &Table{keys: b.keys, rows: b.rows}
	b.keys = make([]string, 0)
	b.rows = make(map[string]AttributeMap)
	return t
}

// NewTable builds a table from rows, in order.
func NewTable(rows ...Row) *Table {
	b := NewBuilder()
	for _, r := range rows {
		b.Add(r.Key, r.Attributes)
	}
	return b.Table()
}

// Row is a key and its attributes.
type Row struct {
	Key        string
	Attributes AttributeMap
}
