package mapping

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

// DefaultCacheSize is the number of records kept per record kind.
const DefaultCacheSize = 4096

type cachedName struct {
	name  string
	found bool
}

// CachingStore keeps recently read records of another Store in memory.
// Absent canonical names are cached too. Entries are evicted least recently
// used first, or explicitly through Invalidate.
type CachingStore struct {
	store Store

	// mu orders Invalidate against reads that are filling the cache, so that
	// a read started before an invalidation can't repopulate a stale record.
	mu         sync.RWMutex
	generation uint64

	names     *lru.Cache[nameKey, cachedName]
	entries   *lru.Cache[collectionKey, []Entry]
	templates *lru.Cache[namespaceKey, []string]
}

var (
	_ Store       = &CachingStore{}
	_ Invalidator = &CachingStore{}
)

// NewCachingStore wraps store with caches of size records each.
func NewCachingStore(store Store, size int) (*CachingStore, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	names, err := lru.New[nameKey, cachedName](size)
	if err != nil {
		return nil, err
	}
	entries, err := lru.New[collectionKey, []Entry](size)
	if err != nil {
		return nil, err
	}
	templates, err := lru.New[namespaceKey, []string](size)
	if err != nil {
		return nil, err
	}
	return &CachingStore{
		store:     store,
		names:     names,
		entries:   entries,
		templates: templates,
	}, nil
}

func (s *CachingStore) gen() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// fill runs add unless an invalidation happened since gen was read.
func (s *CachingStore) fill(gen uint64, add func()) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.generation == gen {
		add()
	}
}

func (s *CachingStore) FindCanonicalName(ctx context.Context, rawKey, collectionType, tenant string) (string, bool, error) {
	k := nameKey{tenant, collectionType, rawKey}
	if c, ok := s.names.Get(k); ok {
		return c.name, c.found, nil
	}
	gen := s.gen()
	name, found, err := s.store.FindCanonicalName(ctx, rawKey, collectionType, tenant)
	if err != nil {
		return "", false, err
	}
	s.fill(gen, func() { s.names.Add(k, cachedName{name: name, found: found}) })
	return name, found, nil
}

func (s *CachingStore) FindAttributeEntries(ctx context.Context, collectionType, collectionName, tenant string) ([]Entry, error) {
	k := collectionKey{tenant, collectionType, collectionName}
	if cached, ok := s.entries.Get(k); ok {
		return append([]Entry(nil), cached...), nil
	}
	gen := s.gen()
	entries, err := s.store.FindAttributeEntries(ctx, collectionType, collectionName, tenant)
	if err != nil {
		return nil, err
	}
	stored := append([]Entry(nil), entries...)
	s.fill(gen, func() { s.entries.Add(k, stored) })
	return entries, nil
}

func (s *CachingStore) ListTemplateAttributes(ctx context.Context, collectionType, tenant string) ([]string, error) {
	k := namespaceKey{tenant, collectionType}
	if cached, ok := s.templates.Get(k); ok {
		return append([]string(nil), cached...), nil
	}
	gen := s.gen()
	names, err := s.store.ListTemplateAttributes(ctx, collectionType, tenant)
	if err != nil {
		return nil, err
	}
	stored := append([]string(nil), names...)
	s.fill(gen, func() { s.templates.Add(k, stored) })
	return names, nil
}

// Invalidate drops the cached records touched by a change. A change to a
// collection's attributes also drops its namespace's template listing.
func (s *CachingStore) Invalidate(inv Invalidation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++

	switch inv.Kind {
	case KindName:
		s.names.Remove(nameKey{inv.Tenant, inv.CollectionType, inv.Key})
	case KindAttributes:
		s.entries.Remove(collectionKey{inv.Tenant, inv.CollectionType, inv.Key})
		s.templates.Remove(namespaceKey{inv.Tenant, inv.CollectionType})
	default:
		s.names.Purge()
		s.entries.Purge()
		s.templates.Purge()
	}
	log.Debug().Stringer("invalidation", inv).Msg("invalidated cached mapping records")
}

// Purge drops every cached record.
func (s *CachingStore) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.names.Purge()
	s.entries.Purge()
	s.templates.Purge()
}

// Len returns the number of cached records of all kinds.
func (s *CachingStore) Len() int {
	return s.names.Len() + s.entries.Len() + s.templates.Len()
}
