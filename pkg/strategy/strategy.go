// Package strategy holds the per-tenant rules that turn an ingested file
// into a metadata tree, selected by tenant identifier.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/authzed/connector-archive/pkg/lookup"
	"github.com/authzed/connector-archive/pkg/metadata"
	"github.com/authzed/connector-archive/pkg/source"
)

// ErrUnknownTenant is returned for files of a tenant without a strategy.
var ErrUnknownTenant = errors.New("unknown tenant")

// ErrInvalidCollectionName is returned when a level resolves to a name that
// would not nest under its parent collection.
var ErrInvalidCollectionName = errors.New("invalid collection name")

// File is a file handed over by the upstream sync.
type File struct {
	Tenant string `json:"tenant"`
	// Ref is where the file's content can be fetched.
	Ref string `json:"ref"`
	// Path is the logical path the rules read. It defaults to the path part
	// of Ref.
	Path string `json:"path,omitempty"`
}

// LogicalPath returns the normalized path the rules read.
func (f File) LogicalPath() string {
	p := f.Path
	if p == "" {
		p = f.Ref
		if scheme := source.Scheme(p); scheme != "" {
			p = p[len(scheme)+len("://"):]
			if i := strings.Index(p, "/"); i >= 0 {
				p = p[i:]
			} else {
				p = ""
			}
		}
	}
	return metadata.NormalizePath(p)
}

// Base returns the file name.
func (f File) Base() string {
	return path.Base(f.LogicalPath())
}

func (f File) String() string {
	return f.Tenant + ":" + f.Ref
}

// PathMetadataStrategy computes the destination and metadata of a tenant's
// files. Resolve reads the table loaded by LoadTable from the lookup slot
// carried by ctx.
type PathMetadataStrategy interface {
	Tenant() string
	LoadTable(ctx context.Context, f File) (*lookup.Table, error)
	Resolve(ctx context.Context, f File) (*metadata.Tree, error)
}

// Registry selects a strategy by tenant.
type Registry struct {
	strategies map[string]PathMetadataStrategy
}

// NewRegistry registers strategies.
func NewRegistry(strategies ...PathMetadataStrategy) (*Registry, error) {
	r := &Registry{strategies: make(map[string]PathMetadataStrategy, len(strategies))}
	for _, s := range strategies {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a strategy. A tenant can only be registered once.
func (r *Registry) Register(s PathMetadataStrategy) error {
	if _, ok := r.strategies[s.Tenant()]; ok {
		return fmt.Errorf("tenant %q registered twice", s.Tenant())
	}
	r.strategies[s.Tenant()] = s
	return nil
}

// Get returns the strategy of tenant.
func (r *Registry) Get(tenant string) (PathMetadataStrategy, error) {
	s, ok := r.strategies[tenant]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTenant, tenant)
	}
	return s, nil
}

// Tenants lists the registered tenants, sorted.
func (r *Registry) Tenants() []string {
	tenants := make([]string, 0, len(r.strategies))
	for t := range r.strategies {
		tenants = append(tenants, t)
	}
	sort.Strings(tenants)
	return tenants
}
