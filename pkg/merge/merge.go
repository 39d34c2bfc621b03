// Package merge combines the mapping store, the per-collection-type
// attribute templates and tenant supplied literals into the attribute list
// of a collection node.
package merge

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/authzed/connector-archive/pkg/mapping"
	"github.com/authzed/connector-archive/pkg/metadata"
)

// Source is a non-literal origin of attribute entries.
type Source string

const (
	SourceRequired Source = "required"
	SourceOptional Source = "optional"
	SourceStore    Source = "store"
)

// ParseSource validates a source name.
func ParseSource(s string) (Source, error) {
	switch src := Source(s); src {
	case SourceRequired, SourceOptional, SourceStore:
		return src, nil
	default:
		return "", fmt.Errorf("unknown attribute source %q", s)
	}
}

// Merger reads templates and curated entries from a mapping store.
type Merger struct {
	store mapping.Store
}

// NewMerger returns a Merger over store.
func NewMerger(store mapping.Store) *Merger {
	return &Merger{store: store}
}

// MergeRequiredTemplate returns the values of every attribute templated for
// collectionType's required namespace, as stored for collectionName.
// Attributes without a value are logged and omitted.
func (m *Merger) MergeRequiredTemplate(ctx context.Context, collectionType, collectionName, tenant string) ([]metadata.Entry, error) {
	return m.mergeTemplate(ctx, mapping.RequiredNamespace(collectionType), collectionName, tenant, true)
}

// MergeOptionalTemplate is MergeRequiredTemplate for the optional namespace.
// A type without an optional template contributes nothing.
func (m *Merger) MergeOptionalTemplate(ctx context.Context, collectionType, collectionName, tenant string) ([]metadata.Entry, error) {
	return m.mergeTemplate(ctx, mapping.OptionalNamespace(collectionType), collectionName, tenant, false)
}

func (m *Merger) mergeTemplate(ctx context.Context, namespace, collectionName, tenant string, required bool) ([]metadata.Entry, error) {
	names, err := m.store.ListTemplateAttributes(ctx, namespace, tenant)
	if err != nil {
		return nil, fmt.Errorf("listing template %s: %w", namespace, err)
	}
	if len(names) == 0 {
		return nil, nil
	}

	stored, err := m.store.FindAttributeEntries(ctx, namespace, collectionName, tenant)
	if err != nil {
		return nil, fmt.Errorf("reading template %s for %q: %w", namespace, collectionName, err)
	}

	entries := make([]metadata.Entry, 0, len(names))
	for _, name := range names {
		found := false
		for _, e := range stored {
			if e.Name != name {
				continue
			}
			entries = append(entries, metadata.NewEntry(e.Name, e.Value))
			found = true
		}
		if found {
			continue
		}
		ev := log.Info()
		if required {
			ev = log.Warn()
		}
		ev.Str("tenant", tenant).
			Str("collection_type", namespace).
			Str("collection", collectionName).
			Str("attribute", name).
			Msg("template attribute has no value, omitting")
	}
	return entries, nil
}

// MergeFromPersistedStore returns every curated entry of the collection in
// stored order.
func (m *Merger) MergeFromPersistedStore(ctx context.Context, collectionType, collectionName, tenant string) ([]metadata.Entry, error) {
	stored, err := m.store.FindAttributeEntries(ctx, collectionType, collectionName, tenant)
	if err != nil {
		return nil, fmt.Errorf("reading curated entries for %s %q: %w", collectionType, collectionName, err)
	}
	if len(stored) == 0 {
		log.Info().
			Str("tenant", tenant).
			Str("collection_type", collectionType).
			Str("collection", collectionName).
			Msg("no curated entries for collection")
		return nil, nil
	}
	entries := make([]metadata.Entry, 0, len(stored))
	for _, e := range stored {
		entries = append(entries, metadata.NewEntry(e.Name, e.Value))
	}
	return entries, nil
}

// ResolveCanonicalName maps a raw key to its curated collection name. An
// absent mapping is a MappingNotFoundError.
func (m *Merger) ResolveCanonicalName(ctx context.Context, rawKey, collectionType, tenant string) (string, error) {
	name, ok, err := m.store.FindCanonicalName(ctx, rawKey, collectionType, tenant)
	if err != nil {
		return "", fmt.Errorf("resolving canonical name for %q: %w", rawKey, err)
	}
	if !ok {
		return "", &metadata.MappingNotFoundError{
			Search:         rawKey,
			CollectionType: collectionType,
			Tenant:         tenant,
		}
	}
	return name, nil
}

// Request describes the attribute list of one collection node.
type Request struct {
	CollectionType string
	CollectionName string
	Tenant         string
	Literals       []metadata.Entry
	Sources        []Source
}

// Merge builds the entries of a node: literals, then the listed sources in
// order with any entry shadowed by a literal dropped.
func (m *Merger) Merge(ctx context.Context, req Request) ([]metadata.Entry, error) {
	b := m.Node(req.CollectionType, req.CollectionName, req.Tenant).Literal(req.Literals...)
	for _, src := range req.Sources {
		if err := b.Add(ctx, src); err != nil {
			return nil, err
		}
	}
	return b.Entries(), nil
}

// NodeBuilder accumulates the entries of one collection node.
type NodeBuilder struct {
	merger         *Merger
	collectionType string
	collectionName string
	tenant         string

	literals []metadata.Entry
	merged   []metadata.Entry
}

// Node starts a NodeBuilder for a collection.
func (m *Merger) Node(collectionType, collectionName, tenant string) *NodeBuilder {
	return &NodeBuilder{
		merger:         m,
		collectionType: collectionType,
		collectionName: collectionName,
		tenant:         tenant,
	}
}

// Literal adds tenant supplied entries. Literals take precedence over every
// other source regardless of when they are added.
func (b *NodeBuilder) Literal(entries ...metadata.Entry) *NodeBuilder {
	b.literals = append(b.literals, entries...)
	return b
}

// Add merges the entries of src.
func (b *NodeBuilder) Add(ctx context.Context, src Source) error {
	var (
		entries []metadata.Entry
		err     error
	)
	switch src {
	case SourceRequired:
		entries, err = b.merger.MergeRequiredTemplate(ctx, b.collectionType, b.collectionName, b.tenant)
	case SourceOptional:
		entries, err = b.merger.MergeOptionalTemplate(ctx, b.collectionType, b.collectionName, b.tenant)
	case SourceStore:
		entries, err = b.merger.MergeFromPersistedStore(ctx, b.collectionType, b.collectionName, b.tenant)
	default:
		return fmt.Errorf("unknown attribute source %q", src)
	}
	if err != nil {
		return err
	}
	b.merged = append(b.merged, entries...)
	return nil
}

// Entries returns the literals followed by the merged entries whose names
// no literal defines.
func (b *NodeBuilder) Entries() []metadata.Entry {
	literal := make(map[string]struct{}, len(b.literals))
	entries := make([]metadata.Entry, 0, len(b.literals)+len(b.merged))
	for _, e := range b.literals {
		literal[e.Name] = struct{}{}
		entries = append(entries, e)
	}
	for _, e := range b.merged {
		if _, ok := literal[e.Name]; ok {
			log.Debug().
				Str("tenant", b.tenant).
				Str("collection", b.collectionName).
				Stringer("entry", e).
				Msg("dropping entry shadowed by literal")
			continue
		}
		entries = append(entries, e)
	}
	return entries
}
