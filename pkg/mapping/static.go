package mapping

import (
	"context"
	"fmt"
	"os"
	"sort"

	"sigs.k8s.io/yaml"
)

// NameRecord maps a raw key to a canonical collection name.
type NameRecord struct {
	Tenant         string `json:"tenant"`
	CollectionType string `json:"collection_type"`
	RawKey         string `json:"raw_key"`
	CanonicalName  string `json:"canonical_name"`
}

// AttributeRecord holds the curated entries of one collection.
type AttributeRecord struct {
	Tenant         string  `json:"tenant"`
	CollectionType string  `json:"collection_type"`
	CollectionName string  `json:"collection_name"`
	Entries        []Entry `json:"entries"`
}

// StaticFile is the on-disk layout read by StaticStore.
type StaticFile struct {
	Names      []NameRecord      `json:"names"`
	Attributes []AttributeRecord `json:"attributes"`
}

type nameKey struct {
	tenant, collectionType, rawKey string
}

type collectionKey struct {
	tenant, collectionType, collectionName string
}

type namespaceKey struct {
	tenant, collectionType string
}

// StaticStore serves mapping records held in memory, typically decoded from
// a YAML file. It is used for dry runs and tests.
type StaticStore struct {
	names     map[nameKey]string
	entries   map[collectionKey][]Entry
	templates map[namespaceKey][]string
	types     map[string]map[string]struct{}
}

var _ Store = &StaticStore{}

// NewStaticStore indexes the records of f. The first name record for a key
// wins; attribute records for the same collection are concatenated.
func NewStaticStore(f StaticFile) *StaticStore {
	s := &StaticStore{
		names:     make(map[nameKey]string),
		entries:   make(map[collectionKey][]Entry),
		templates: make(map[namespaceKey][]string),
		types:     make(map[string]map[string]struct{}),
	}
	for _, n := range f.Names {
		k := nameKey{n.Tenant, n.CollectionType, n.RawKey}
		if _, ok := s.names[k]; !ok {
			s.names[k] = n.CanonicalName
		}
		s.addType(n.Tenant, n.CollectionType)
	}
	for _, a := range f.Attributes {
		k := collectionKey{a.Tenant, a.CollectionType, a.CollectionName}
		s.entries[k] = append(s.entries[k], a.Entries...)

		ns := namespaceKey{a.Tenant, a.CollectionType}
		for _, e := range a.Entries {
			if !contains(s.templates[ns], e.Name) {
				s.templates[ns] = append(s.templates[ns], e.Name)
			}
		}
		s.addType(a.Tenant, a.CollectionType)
	}
	return s
}

// ParseStaticStore decodes a YAML or JSON document into a StaticStore.
func ParseStaticStore(data []byte) (*StaticStore, error) {
	var f StaticFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing mapping file: %w", err)
	}
	return NewStaticStore(f), nil
}

// LoadStaticStore reads a mapping file from disk.
func LoadStaticStore(path string) (*StaticStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseStaticStore(data)
}

func (s *StaticStore) addType(tenant, collectionType string) {
	if s.types[tenant] == nil {
		s.types[tenant] = make(map[string]struct{})
	}
	s.types[tenant][collectionType] = struct{}{}
}

func (s *StaticStore) FindCanonicalName(_ context.Context, rawKey, collectionType, tenant string) (string, bool, error) {
	name, ok := s.names[nameKey{tenant, collectionType, rawKey}]
	return name, ok, nil
}

func (s *StaticStore) FindAttributeEntries(_ context.Context, collectionType, collectionName, tenant string) ([]Entry, error) {
	stored := s.entries[collectionKey{tenant, collectionType, collectionName}]
	entries := make([]Entry, len(stored))
	copy(entries, stored)
	return entries, nil
}

func (s *StaticStore) ListTemplateAttributes(_ context.Context, collectionType, tenant string) ([]string, error) {
	stored := s.templates[namespaceKey{tenant, collectionType}]
	names := make([]string, len(stored))
	copy(names, stored)
	return names, nil
}

// ListCollectionTypes returns every collection type and template namespace
// known for a tenant, sorted.
func (s *StaticStore) ListCollectionTypes(_ context.Context, tenant string) ([]string, error) {
	types := make([]string, 0, len(s.types[tenant]))
	for t := range s.types[tenant] {
		types = append(types, t)
	}
	sort.Strings(types)
	return types, nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
