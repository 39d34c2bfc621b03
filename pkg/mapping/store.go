// Package mapping reads the curated mapping store: canonical collection
// names keyed by raw path fragments, and attribute entries keyed by
// collection. Records are maintained by the store's own administration
// tooling; this package only reads them.
package mapping

import (
	"context"
	"strings"
)

const (
	// RequiredSuffix marks the template namespace of required attributes.
	RequiredSuffix = "_Required"
	// OptionalSuffix marks the template namespace of optional attributes.
	OptionalSuffix = "_Optional"
)

// RequiredNamespace returns the required-attribute template namespace of a
// collection type.
func RequiredNamespace(collectionType string) string {
	return collectionType + RequiredSuffix
}

// OptionalNamespace returns the optional-attribute template namespace of a
// collection type.
func OptionalNamespace(collectionType string) string {
	return collectionType + OptionalSuffix
}

// BaseType strips a template suffix from a namespace.
func BaseType(namespace string) string {
	namespace = strings.TrimSuffix(namespace, RequiredSuffix)
	return strings.TrimSuffix(namespace, OptionalSuffix)
}

// Entry is a curated attribute name/value pair.
type Entry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Store is the read side of the mapping store.
type Store interface {
	// FindCanonicalName returns the canonical collection name for a raw key.
	FindCanonicalName(ctx context.Context, rawKey, collectionType, tenant string) (string, bool, error)

	// FindAttributeEntries returns the curated entries of a collection in
	// their stored order.
	FindAttributeEntries(ctx context.Context, collectionType, collectionName, tenant string) ([]Entry, error)

	// ListTemplateAttributes returns the distinct attribute names defined in
	// a namespace across all of its collections, in first-defined order.
	ListTemplateAttributes(ctx context.Context, collectionType, tenant string) ([]string, error)
}

// Kind names the record type a change touched.
type Kind int

const (
	KindName Kind = iota
	KindAttributes
	// KindAll invalidates every record, e.g. after a table was truncated.
	KindAll
)

func (k Kind) String() string {
	switch k {
	case KindName:
		return "name"
	case KindAttributes:
		return "attributes"
	case KindAll:
		return "all"
	default:
		return "unknown"
	}
}

// Invalidation identifies the records affected by a change in the store.
// For KindName, Key is the raw key; for KindAttributes it is the collection
// name.
type Invalidation struct {
	Kind           Kind
	Tenant         string
	CollectionType string
	Key            string
}

func (i Invalidation) String() string {
	return i.Kind.String() + ":" + i.Tenant + "/" + i.CollectionType + "/" + i.Key
}

// Invalidator is implemented by stores that cache records.
type Invalidator interface {
	Invalidate(Invalidation)
}

// CollectionTypeLister is implemented by stores that can enumerate the
// collection types and template namespaces of a tenant.
type CollectionTypeLister interface {
	ListCollectionTypes(ctx context.Context, tenant string) ([]string, error)
}
