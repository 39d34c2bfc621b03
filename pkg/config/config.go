// Package config holds the tenant rules that turn a file's path into a
// collection hierarchy with metadata.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/authzed/connector-archive/pkg/lookup"
	"github.com/authzed/connector-archive/pkg/merge"
)

// Config holds the rules of every tenant
type Config struct {
	Tenants []Tenant `json:"tenants"`
}

// Tenant configures how the files of one tenant are placed and described
type Tenant struct {
	Name string `json:"name"`
	// Root is the collection path every destination is nested under.
	Root   string        `json:"root"`
	Strict *bool         `json:"strict,omitempty"`
	Lookup *LookupSource `json:"lookup,omitempty"`
	Levels []Level       `json:"levels"`
	Object ObjectMapping `json:"object,omitempty"`
}

// StrictNesting reports whether collection nesting is enforced. It is on
// unless disabled explicitly.
func (t Tenant) StrictNesting() bool {
	return t.Strict == nil || *t.Strict
}

// LookupSource names the tabular file loaded for each ingested file. A
// relative source is resolved against the directory of the ingested file.
type LookupSource struct {
	Source     string   `json:"source"`
	KeyColumns []string `json:"key_columns"`
}

// Level is one collection between the tenant root and the file
type Level struct {
	CollectionType string          `json:"collection_type"`
	Name           ValueRule       `json:"name"`
	Canonical      bool            `json:"canonical,omitempty"`
	Templates      []string        `json:"templates,omitempty"`
	Attributes     []AttributeRule `json:"attributes,omitempty"`
}

// ObjectMapping configures the entries attached to the file itself
type ObjectMapping struct {
	Attributes     []AttributeRule `json:"attributes,omitempty"`
	ExtractContent bool            `json:"extract_content,omitempty"`
}

// ValueRule computes a string. Value is a literal; otherwise Search (or the
// two Composite searches) selects a string from the file's path, and Lookup,
// when set, names the lookup table attribute read under that string.
type ValueRule struct {
	Value     string   `json:"value,omitempty"`
	Search    string   `json:"search,omitempty"`
	Composite []string `json:"composite,omitempty"`
	Lookup    string   `json:"lookup,omitempty"`
	Match     string   `json:"match,omitempty"`
	Required  bool     `json:"required,omitempty"`
}

// IsLiteral reports whether the rule is a fixed value.
func (r ValueRule) IsLiteral() bool {
	return r.Value != ""
}

// Searches returns the search expressions of the rule.
func (r ValueRule) Searches() []string {
	if len(r.Composite) > 0 {
		return r.Composite
	}
	if r.Search != "" {
		return []string{r.Search}
	}
	return nil
}

// AttributeRule computes one attribute entry
type AttributeRule struct {
	Name string `json:"name"`
	ValueRule
	DateFormat string `json:"date_format,omitempty"`
	// OmitMissing drops the entry instead of emitting it without a value.
	OmitMissing bool `json:"omit_missing,omitempty"`
}

// SearchKind selects the part of a file path a search expression reads
type SearchKind string

const (
	SearchFile       SearchKind = "file"
	SearchPath       SearchKind = "path"
	SearchSegment    SearchKind = "segment"
	SearchCollection SearchKind = "collection"
	SearchParent     SearchKind = "parent"
)

// Search is a parsed search expression. Index is only set for segments;
// negative indexes count from the last directory.
type Search struct {
	Kind  SearchKind
	Index int
}

// ParseSearch parses "file", "path", "collection", "parent" or "segment:N".
func ParseSearch(s string) (Search, error) {
	kind, arg, hasArg := strings.Cut(s, ":")
	switch SearchKind(kind) {
	case SearchFile, SearchPath, SearchCollection, SearchParent:
		if hasArg {
			return Search{}, fmt.Errorf("search %q takes no argument", kind)
		}
		return Search{Kind: SearchKind(kind)}, nil
	case SearchSegment:
		i, err := strconv.Atoi(arg)
		if err != nil {
			return Search{}, fmt.Errorf("invalid segment index in %q: %w", s, err)
		}
		return Search{Kind: SearchSegment, Index: i}, nil
	default:
		return Search{}, fmt.Errorf("unknown search %q", s)
	}
}

// Load reads a config file in YAML or JSON.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and validates a config document.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Tenant returns the rules of the named tenant.
func (c *Config) Tenant(name string) (Tenant, bool) {
	for _, t := range c.Tenants {
		if t.Name == name {
			return t, true
		}
	}
	return Tenant{}, false
}

// Validate checks every tenant rule.
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Tenants))
	for _, t := range c.Tenants {
		if t.Name == "" {
			return fmt.Errorf("tenant without name")
		}
		if _, ok := seen[t.Name]; ok {
			return fmt.Errorf("tenant %q defined twice", t.Name)
		}
		seen[t.Name] = struct{}{}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("tenant %q: %w", t.Name, err)
		}
	}
	return nil
}

// Validate checks the rules of a single tenant.
func (t Tenant) Validate() error {
	if t.Root == "" {
		return fmt.Errorf("root is required")
	}
	if len(t.Levels) == 0 {
		return fmt.Errorf("at least one level is required")
	}
	usesLookup := false
	for i, l := range t.Levels {
		if l.CollectionType == "" {
			return fmt.Errorf("level %d: collection_type is required", i)
		}
		if !l.Name.IsLiteral() && len(l.Name.Searches()) == 0 {
			return fmt.Errorf("level %d: name needs a value or a search", i)
		}
		if err := l.Name.validate(); err != nil {
			return fmt.Errorf("level %d name: %w", i, err)
		}
		usesLookup = usesLookup || l.Name.Lookup != ""
		for _, src := range l.Templates {
			if _, err := merge.ParseSource(src); err != nil {
				return fmt.Errorf("level %d: %w", i, err)
			}
		}
		for _, a := range l.Attributes {
			if err := a.validate(); err != nil {
				return fmt.Errorf("level %d: %w", i, err)
			}
			usesLookup = usesLookup || a.Lookup != ""
		}
	}
	for _, a := range t.Object.Attributes {
		if err := a.validate(); err != nil {
			return fmt.Errorf("object: %w", err)
		}
		usesLookup = usesLookup || a.Lookup != ""
	}

	if t.Lookup != nil {
		if t.Lookup.Source == "" {
			return fmt.Errorf("lookup source is required")
		}
		if n := len(t.Lookup.KeyColumns); n != 1 && n != 2 {
			return fmt.Errorf("lookup needs one or two key columns, got %d", n)
		}
	} else if usesLookup {
		return fmt.Errorf("rules read lookup attributes but no lookup source is configured")
	}
	return nil
}

func (a AttributeRule) validate() error {
	if a.Name == "" {
		return fmt.Errorf("attribute without name")
	}
	if !a.IsLiteral() && len(a.Searches()) == 0 {
		return fmt.Errorf("attribute %q needs a value or a search", a.Name)
	}
	if err := a.ValueRule.validate(); err != nil {
		return fmt.Errorf("attribute %q: %w", a.Name, err)
	}
	return nil
}

func (r ValueRule) validate() error {
	if r.IsLiteral() {
		if r.Search != "" || len(r.Composite) > 0 || r.Lookup != "" {
			return fmt.Errorf("a literal value can't be combined with a search or lookup")
		}
		return nil
	}
	if r.Search != "" && len(r.Composite) > 0 {
		return fmt.Errorf("search and composite are exclusive")
	}
	for _, s := range r.Searches() {
		if _, err := ParseSearch(s); err != nil {
			return err
		}
	}
	m, err := lookup.ParseMatch(r.Match)
	if err != nil {
		return err
	}
	if r.Lookup == "" {
		if r.Match != "" {
			return fmt.Errorf("match %q needs a lookup attribute", r.Match)
		}
		if len(r.Composite) > 0 {
			return fmt.Errorf("composite searches need a lookup attribute")
		}
		return nil
	}
	if len(r.Composite) > 0 && m != lookup.MatchComposite {
		return fmt.Errorf("composite searches need the composite match")
	}
	if got := len(r.Searches()); got != m.Arity() {
		return fmt.Errorf("match %q takes %d searches, got %d", m, m.Arity(), got)
	}
	return nil
}
