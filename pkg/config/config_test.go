package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const testConfig = `
tenants:
- name: lab
  root: /archive/lab
  lookup:
    source: samples.csv
    key_columns: [sample]
  levels:
  - collection_type: Project
    name:
      search: segment:0
    canonical: true
    templates: [store]
  - collection_type: Sample
    name:
      search: file
      lookup: sample
      match: contains
      required: true
    templates: [required, optional]
    attributes:
    - name: organism
      value: Human
    - name: tissue
      search: file
      lookup: tissue
  object:
    extract_content: true
    attributes:
    - name: run
      search: segment:-1
- name: imaging
  root: /archive/imaging
  strict: false
  levels:
  - collection_type: Study
    name:
      value: Pilot
`

func TestParse(t *testing.T) {
	require := require.New(t)
	c, err := Parse([]byte(testConfig))
	require.NoError(err)
	require.Len(c.Tenants, 2)

	lab, ok := c.Tenant("lab")
	require.True(ok)
	require.True(lab.StrictNesting())
	require.Equal([]string{"sample"}, lab.Lookup.KeyColumns)
	require.Len(lab.Levels, 2)
	require.True(lab.Levels[0].Canonical)
	require.Equal("tissue", lab.Levels[1].Attributes[1].Lookup)
	require.Equal("Human", lab.Levels[1].Attributes[0].Value)
	require.True(lab.Object.ExtractContent)

	imaging, ok := c.Tenant("imaging")
	require.True(ok)
	require.False(imaging.StrictNesting())

	_, ok = c.Tenant("unknown")
	require.False(ok)
}

func TestValidate(t *testing.T) {
	level := func(name ValueRule) Level {
		return Level{CollectionType: "Sample", Name: name}
	}
	lookupSource := &LookupSource{Source: "samples.csv", KeyColumns: []string{"sample"}}

	tests := []struct {
		name    string
		tenant  Tenant
		wantErr string
	}{
		{
			name:   "valid",
			tenant: Tenant{Name: "t", Root: "/r", Levels: []Level{level(ValueRule{Search: "segment:1"})}},
		},
		{
			name:    "missing root",
			tenant:  Tenant{Name: "t", Levels: []Level{level(ValueRule{Value: "x"})}},
			wantErr: "root is required",
		},
		{
			name:    "no levels",
			tenant:  Tenant{Name: "t", Root: "/r"},
			wantErr: "at least one level",
		},
		{
			name:    "empty name rule",
			tenant:  Tenant{Name: "t", Root: "/r", Levels: []Level{level(ValueRule{})}},
			wantErr: "needs a value or a search",
		},
		{
			name:    "bad search",
			tenant:  Tenant{Name: "t", Root: "/r", Levels: []Level{level(ValueRule{Search: "segment:x"})}},
			wantErr: "invalid segment index",
		},
		{
			name:    "lookup without source",
			tenant:  Tenant{Name: "t", Root: "/r", Levels: []Level{level(ValueRule{Search: "file", Lookup: "sample"})}},
			wantErr: "no lookup source",
		},
		{
			name: "composite arity",
			tenant: Tenant{Name: "t", Root: "/r", Lookup: lookupSource, Levels: []Level{
				level(ValueRule{Search: "file", Lookup: "sample", Match: "composite"}),
			}},
			wantErr: "takes 2 searches",
		},
		{
			name: "composite",
			tenant: Tenant{Name: "t", Root: "/r", Lookup: lookupSource, Levels: []Level{
				level(ValueRule{Composite: []string{"segment:0", "file"}, Lookup: "sample", Match: "composite"}),
			}},
		},
		{
			name: "unknown template",
			tenant: Tenant{Name: "t", Root: "/r", Levels: []Level{
				{CollectionType: "Sample", Name: ValueRule{Value: "x"}, Templates: []string{"mandatory"}},
			}},
			wantErr: "unknown attribute source",
		},
		{
			name: "literal with lookup",
			tenant: Tenant{Name: "t", Root: "/r", Lookup: lookupSource, Levels: []Level{
				level(ValueRule{Value: "x", Lookup: "sample"}),
			}},
			wantErr: "literal value",
		},
		{
			name: "too many key columns",
			tenant: Tenant{Name: "t", Root: "/r", Lookup: &LookupSource{Source: "s.csv", KeyColumns: []string{"a", "b", "c"}}, Levels: []Level{
				level(ValueRule{Value: "x"}),
			}},
			wantErr: "one or two key columns",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tenant.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateDuplicateTenants(t *testing.T) {
	c := &Config{Tenants: []Tenant{
		{Name: "t", Root: "/r", Levels: []Level{{CollectionType: "A", Name: ValueRule{Value: "x"}}}},
		{Name: "t", Root: "/r", Levels: []Level{{CollectionType: "A", Name: ValueRule{Value: "x"}}}},
	}}
	require.ErrorContains(t, c.Validate(), "defined twice")
}

func TestParseSearch(t *testing.T) {
	require := require.New(t)
	s, err := ParseSearch("segment:-2")
	require.NoError(err)
	require.Equal(Search{Kind: SearchSegment, Index: -2}, s)

	s, err = ParseSearch("parent")
	require.NoError(err)
	require.Equal(SearchParent, s.Kind)

	_, err = ParseSearch("file:1")
	require.Error(err)
	_, err = ParseSearch("basename")
	require.Error(err)
}
