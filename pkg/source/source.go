// Package source fetches the bytes behind file references. A reference is
// either a plain filesystem path or a URL whose scheme selects the backend.
package source

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"
)

// Fetcher reads the whole content of a reference.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// Scheme returns the lower-cased URL scheme of ref, or "" for plain paths.
func Scheme(ref string) string {
	i := strings.Index(ref, "://")
	if i <= 0 {
		return ""
	}
	return strings.ToLower(ref[:i])
}

// Ext returns the lower-cased extension of ref, including the dot.
func Ext(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 && Scheme(ref) != "" {
		ref = ref[:i]
	}
	return strings.ToLower(path.Ext(ref))
}

// Resolve interprets rel relative to the directory holding ref. Absolute
// paths and URLs are returned unchanged.
func Resolve(ref, rel string) string {
	if rel == "" || Scheme(rel) != "" || path.IsAbs(rel) {
		return rel
	}
	scheme := Scheme(ref)
	if scheme == "" {
		return path.Join(path.Dir(ref), rel)
	}
	rest := ref[len(scheme)+len("://"):]
	return scheme + "://" + path.Join(path.Dir(rest), rel)
}

// Router dispatches references to a Fetcher by scheme.
type Router struct {
	schemes  map[string]Fetcher
	fallback Fetcher
}

var _ Fetcher = &Router{}

// NewRouter returns a Router that sends references without a registered
// scheme to fallback.
func NewRouter(fallback Fetcher) *Router {
	return &Router{schemes: make(map[string]Fetcher), fallback: fallback}
}

// Register routes scheme to f.
func (r *Router) Register(scheme string, f Fetcher) *Router {
	r.schemes[strings.ToLower(scheme)] = f
	return r
}

func (r *Router) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if f, ok := r.schemes[Scheme(ref)]; ok {
		return f.Fetch(ctx, ref)
	}
	if r.fallback == nil {
		return nil, fmt.Errorf("no fetcher for %q", ref)
	}
	return r.fallback.Fetch(ctx, ref)
}

// Memory serves references from memory.
type Memory struct {
	mu    sync.RWMutex
	files map[string][]byte
}

var _ Fetcher = &Memory{}

// NewMemory returns a Memory holding files.
func NewMemory(files map[string][]byte) *Memory {
	m := &Memory{files: make(map[string][]byte, len(files))}
	for ref, data := range files {
		m.files[ref] = data
	}
	return m
}

// Put stores data under ref.
func (m *Memory) Put(ref string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[ref] = data
}

func (m *Memory) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[ref]
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref, os.ErrNotExist)
	}
	return append([]byte(nil), data...), nil
}
