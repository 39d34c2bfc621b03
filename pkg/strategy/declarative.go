package strategy

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/authzed/connector-archive/pkg/config"
	"github.com/authzed/connector-archive/pkg/loader"
	"github.com/authzed/connector-archive/pkg/lookup"
	"github.com/authzed/connector-archive/pkg/merge"
	"github.com/authzed/connector-archive/pkg/metadata"
	"github.com/authzed/connector-archive/pkg/source"
)

// ContentParser extracts metadata embedded in a file.
type ContentParser interface {
	Supports(ref string) bool
	Parse(ctx context.Context, ref string) ([]metadata.Entry, error)
}

// Declarative applies the rules of a config.Tenant.
type Declarative struct {
	tenant  config.Tenant
	loader  loader.Loader
	merger  *merge.Merger
	content ContentParser
}

var _ PathMetadataStrategy = &Declarative{}

// NewDeclarative returns the strategy for t. content may be nil when no
// rule extracts content.
func NewDeclarative(t config.Tenant, l loader.Loader, m *merge.Merger, content ContentParser) (*Declarative, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("tenant %q: %w", t.Name, err)
	}
	if t.Lookup != nil && l == nil {
		return nil, fmt.Errorf("tenant %q: a loader is required for the lookup source", t.Name)
	}
	if t.Object.ExtractContent && content == nil {
		return nil, fmt.Errorf("tenant %q: a content parser is required to extract content", t.Name)
	}
	return &Declarative{tenant: t, loader: l, merger: m, content: content}, nil
}

// FromConfig builds a Registry with a Declarative strategy per tenant.
func FromConfig(c *config.Config, l loader.Loader, m *merge.Merger, content ContentParser) (*Registry, error) {
	r, err := NewRegistry()
	if err != nil {
		return nil, err
	}
	for _, t := range c.Tenants {
		s, err := NewDeclarative(t, l, m, content)
		if err != nil {
			return nil, err
		}
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (d *Declarative) Tenant() string {
	return d.tenant.Name
}

// LoadTable loads the tenant's lookup source for f. Tenants without a
// lookup source get the empty table.
func (d *Declarative) LoadTable(ctx context.Context, f File) (*lookup.Table, error) {
	src := d.tenant.Lookup
	if src == nil {
		return lookup.Empty(), nil
	}
	ref := source.Resolve(f.Ref, src.Source)
	if len(src.KeyColumns) == 2 {
		return d.loader.LoadComposite(ctx, ref, src.KeyColumns[0], src.KeyColumns[1])
	}
	return d.loader.Load(ctx, ref, src.KeyColumns[0])
}

// env holds the strings search expressions read.
type env struct {
	file       File
	path       string
	segments   []string
	collection string
	parent     string
	table      *lookup.Table
}

func (e *env) search(expr string) (string, bool) {
	s, err := config.ParseSearch(expr)
	if err != nil {
		return "", false
	}
	var v string
	switch s.Kind {
	case config.SearchFile:
		v = path.Base(e.path)
	case config.SearchPath:
		v = e.path
	case config.SearchCollection:
		v = e.collection
	case config.SearchParent:
		v = e.parent
	case config.SearchSegment:
		i := s.Index
		if i < 0 {
			i += len(e.segments)
		}
		if i < 0 || i >= len(e.segments) {
			return "", false
		}
		v = e.segments[i]
	}
	return v, v != ""
}

// value evaluates a rule. A miss is reported with ok false; it is up to the
// caller whether that is an error.
func (e *env) value(r config.ValueRule) (string, bool) {
	if r.IsLiteral() {
		return r.Value, true
	}
	searches := make([]string, 0, 2)
	for _, expr := range r.Searches() {
		v, ok := e.search(expr)
		if !ok {
			return "", false
		}
		searches = append(searches, v)
	}
	if r.Lookup == "" {
		return searches[0], true
	}
	m, err := lookup.ParseMatch(r.Match)
	if err != nil {
		return "", false
	}
	return m.Lookup(r.Lookup, e.table, searches...)
}

func (e *env) entries(rules []config.AttributeRule) ([]metadata.Entry, error) {
	entries := make([]metadata.Entry, 0, len(rules))
	for _, r := range rules {
		v, ok := e.value(r.ValueRule)
		if !ok {
			if r.Required {
				return nil, &metadata.MappingNotFoundError{
					Search:    strings.Join(r.Searches(), ","),
					Attribute: r.Name,
					Tenant:    e.file.Tenant,
				}
			}
			if r.OmitMissing {
				continue
			}
			log.Info().
				Str("tenant", e.file.Tenant).
				Str("file", e.file.Ref).
				Str("attribute", r.Name).
				Msg("attribute has no value")
			entries = append(entries, metadata.MissingEntry(r.Name).WithDateFormat(r.DateFormat))
			continue
		}
		entries = append(entries, metadata.NewEntry(r.Name, v).WithDateFormat(r.DateFormat))
	}
	return entries, nil
}

// Resolve places f under the tenant root, one collection per level, and
// attaches the configured metadata.
func (d *Declarative) Resolve(ctx context.Context, f File) (*metadata.Tree, error) {
	logical := f.LogicalPath()
	if logical == "" || logical == "/" {
		return nil, fmt.Errorf("file %s has no path", f)
	}
	dir := strings.Trim(path.Dir(logical), "/")
	segments := make([]string, 0)
	if dir != "" {
		segments = strings.Split(dir, "/")
	}
	e := &env{
		file:     f,
		path:     logical,
		segments: segments,
		table:    lookup.TableFromContext(ctx),
	}

	mode := metadata.ModeLegacy
	if d.tenant.StrictNesting() {
		mode = metadata.ModeStrict
	}
	asm := metadata.NewAssembler(d.tenant.Name, mode)

	collectionPath := metadata.NormalizePath(d.tenant.Root)
	for _, level := range d.tenant.Levels {
		name, err := d.collectionName(ctx, e, level)
		if err != nil {
			return nil, err
		}
		collectionPath = path.Join(collectionPath, name)
		e.collection = name

		literals, err := e.entries(level.Attributes)
		if err != nil {
			return nil, err
		}
		b := d.merger.Node(level.CollectionType, name, d.tenant.Name).Literal(literals...)
		for _, t := range level.Templates {
			src, err := merge.ParseSource(t)
			if err != nil {
				return nil, err
			}
			if err := b.Add(ctx, src); err != nil {
				return nil, err
			}
		}
		if err := asm.AppendNode(collectionPath, b.Entries()...); err != nil {
			return nil, err
		}
		e.parent = name
	}

	object, err := e.entries(d.tenant.Object.Attributes)
	if err != nil {
		return nil, err
	}
	if d.tenant.Object.ExtractContent && d.content.Supports(f.Ref) {
		extracted, err := d.content.Parse(ctx, f.Ref)
		if err != nil {
			return nil, err
		}
		object = append(object, extracted...)
	}
	if err := asm.SetObject(path.Join(collectionPath, path.Base(logical)), object...); err != nil {
		return nil, err
	}
	return asm.Finalize()
}

// collectionName evaluates a level's name rule. Names are mandatory.
func (d *Declarative) collectionName(ctx context.Context, e *env, level config.Level) (string, error) {
	e.collection = ""
	raw, ok := e.value(level.Name)
	if !ok {
		return "", &metadata.MappingNotFoundError{
			Search:         strings.Join(level.Name.Searches(), ","),
			Attribute:      level.Name.Lookup,
			CollectionType: level.CollectionType,
			Tenant:         d.tenant.Name,
		}
	}
	name := raw
	if level.Canonical {
		canonical, err := d.merger.ResolveCanonicalName(ctx, raw, level.CollectionType, d.tenant.Name)
		if err != nil {
			return "", err
		}
		name = canonical
	}
	name = strings.ReplaceAll(name, "/", "_")
	switch strings.TrimSpace(name) {
	case "", ".", "..":
		return "", fmt.Errorf("%w %q for %s %q", ErrInvalidCollectionName, name, level.CollectionType, raw)
	}
	return name, nil
}
