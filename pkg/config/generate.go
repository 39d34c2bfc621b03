package config

import (
	"context"
	"fmt"
	"path"

	"github.com/rs/zerolog/log"

	"github.com/authzed/connector-archive/pkg/mapping"
	"github.com/authzed/connector-archive/pkg/merge"
)

// Store is the part of the mapping store config generation reads
type Store interface {
	mapping.Store
	mapping.CollectionTypeLister
}

// Generate builds a starter config for tenant with one level per collection
// type known to the store. Each level is named by a path segment, in sorted
// type order, and merges every template namespace the store defines for it.
// The result is meant to be edited before use.
func Generate(ctx context.Context, store Store, tenant, root string) (*Config, error) {
	if tenant == "" {
		return nil, fmt.Errorf("tenant is required")
	}
	if root == "" {
		root = path.Join("/", tenant)
	}
	types, err := store.ListCollectionTypes(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("listing collection types: %w", err)
	}

	type namespaces struct {
		store, required, optional bool
	}
	order := make([]string, 0, len(types))
	bases := make(map[string]*namespaces, len(types))
	for _, t := range types {
		base := mapping.BaseType(t)
		ns, ok := bases[base]
		if !ok {
			ns = &namespaces{}
			bases[base] = ns
			order = append(order, base)
		}
		switch t {
		case mapping.RequiredNamespace(base):
			ns.required = true
		case mapping.OptionalNamespace(base):
			ns.optional = true
		default:
			ns.store = true
		}
	}

	levels := make([]Level, 0, len(order))
	for i, base := range order {
		ns := bases[base]
		templates := make([]string, 0, 3)
		if ns.required {
			templates = append(templates, string(merge.SourceRequired))
			if err := logTemplate(ctx, store, mapping.RequiredNamespace(base), tenant); err != nil {
				return nil, err
			}
		}
		if ns.optional {
			templates = append(templates, string(merge.SourceOptional))
			if err := logTemplate(ctx, store, mapping.OptionalNamespace(base), tenant); err != nil {
				return nil, err
			}
		}
		if ns.store {
			templates = append(templates, string(merge.SourceStore))
		}
		levels = append(levels, Level{
			CollectionType: base,
			Name:           ValueRule{Search: fmt.Sprintf("%s:%d", SearchSegment, i)},
			Templates:      templates,
		})
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("no collection types found for tenant %q", tenant)
	}

	c := &Config{Tenants: []Tenant{{Name: tenant, Root: root, Levels: levels}}}
	return c, c.Validate()
}

func logTemplate(ctx context.Context, store mapping.Store, namespace, tenant string) error {
	names, err := store.ListTemplateAttributes(ctx, namespace, tenant)
	if err != nil {
		return fmt.Errorf("listing %s attributes: %w", namespace, err)
	}
	log.Info().Str("tenant", tenant).Str("namespace", namespace).Strs("attributes", names).Msg("templated attributes")
	return nil
}
