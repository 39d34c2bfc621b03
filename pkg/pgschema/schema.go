package pgschema

import (
	"fmt"

	"github.com/jackc/pglogrepl"

	"github.com/authzed/connector-archive/pkg/mapping"
)

// Schema represents a set of Tables and the tx log sequence number (XLogPos)
// at which they were fetched
type Schema struct {
	Tables  map[string]*Table
	XLogPos pglogrepl.LSN
}

// Table is a postgres table with its columns
type Table struct {
	// ID is the int table identifier in postgres
	ID              uint32
	Name            string
	ReplicaIdentity ReplicaIdentity
	Cols            []Col
}

// ReplicaIdentity is the pg_class.relreplident of a table. It decides which
// columns of the old row are logged for updates and deletes.
type ReplicaIdentity string

const (
	ReplicaIdentityDefault ReplicaIdentity = "d"
	ReplicaIdentityNothing ReplicaIdentity = "n"
	ReplicaIdentityFull    ReplicaIdentity = "f"
	ReplicaIdentityIndex   ReplicaIdentity = "i"
)

// Col returns the 1-indexed number of the named column.
func (t *Table) Col(name string) (int, bool) {
	for _, c := range t.Cols {
		if c.Name == name {
			return c.ID, true
		}
	}
	return 0, false
}

// Col is the name and index of a column in a table
type Col struct {
	Name string
	ID   int
}

// StoreTable locates the identifying columns of a mapping store table in
// replication tuples. Column numbers are 1-indexed.
type StoreTable struct {
	Kind      mapping.Kind
	Name      string
	TenantCol int
	TypeCol   int
	KeyCol    int
}

// pgoutput tuple column kinds that carry no value
const (
	tupleNull      = 'n'
	tupleUnchanged = 'u'
)

// StoreMapping maps postgres relation ids to mapping store tables
type StoreMapping map[uint32]StoreTable

var storeTables = []struct {
	kind   mapping.Kind
	name   string
	keyCol string
}{
	{mapping.KindName, mapping.NameMappingsTable, "raw_key"},
	{mapping.KindAttributes, mapping.AttributeEntriesTable, "collection_name"},
}

// StoreTableNames lists the tables the mapping store reads.
func StoreTableNames() []string {
	names := make([]string, 0, len(storeTables))
	for _, st := range storeTables {
		names = append(names, st.name)
	}
	return names
}

// StoreMapping resolves the mapping store tables against the schema.
func (s *Schema) StoreMapping() (StoreMapping, error) {
	m := make(StoreMapping, len(storeTables))
	for _, st := range storeTables {
		t, ok := s.Tables[st.name]
		if !ok {
			return nil, fmt.Errorf("table %s not found", st.name)
		}
		// deletes only carry the old row's identifying columns with a full
		// replica identity
		if t.ReplicaIdentity != "" && t.ReplicaIdentity != ReplicaIdentityFull {
			return nil, fmt.Errorf("table %s needs REPLICA IDENTITY FULL, has %q", st.name, t.ReplicaIdentity)
		}
		cols := make([]int, 0, 3)
		for _, name := range []string{"tenant", "collection_type", st.keyCol} {
			id, ok := t.Col(name)
			if !ok {
				return nil, fmt.Errorf("column %s.%s not found", st.name, name)
			}
			cols = append(cols, id)
		}
		m[t.ID] = StoreTable{
			Kind:      st.kind,
			Name:      st.name,
			TenantCol: cols[0],
			TypeCol:   cols[1],
			KeyCol:    cols[2],
		}
	}
	return m, nil
}

// Truncation returns the invalidation of every cached record when one of
// relationIDs is a store table.
func (m StoreMapping) Truncation(relationIDs []uint32) (mapping.Invalidation, bool) {
	for _, id := range relationIDs {
		if _, ok := m[id]; ok {
			return mapping.Invalidation{Kind: mapping.KindAll}, true
		}
	}
	return mapping.Invalidation{}, false
}

// Invalidation reads the records a replicated row identifies. It reports
// false for rows of other tables and for tuples missing an identifying
// column, such as unchanged or null values.
func (m StoreMapping) Invalidation(relationID uint32, tuple *pglogrepl.TupleData) (mapping.Invalidation, bool) {
	st, ok := m[relationID]
	if !ok || tuple == nil {
		return mapping.Invalidation{}, false
	}
	values := make([]string, 0, 3)
	for _, col := range []int{st.TenantCol, st.TypeCol, st.KeyCol} {
		// column numbers are 1-indexed
		if col < 1 || col > len(tuple.Columns) {
			return mapping.Invalidation{}, false
		}
		c := tuple.Columns[col-1]
		if c.DataType == tupleNull || c.DataType == tupleUnchanged {
			return mapping.Invalidation{}, false
		}
		values = append(values, string(c.Data))
	}
	return mapping.Invalidation{
		Kind:           st.Kind,
		Tenant:         values[0],
		CollectionType: values[1],
		Key:            values[2],
	}, true
}
