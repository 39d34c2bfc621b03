package mapping

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

const testMappingFile = `
names:
- tenant: lab
  collection_type: Project
  raw_key: P-001
  canonical_name: Liver Atlas
- tenant: lab
  collection_type: Project
  raw_key: P-001
  canonical_name: Shadowed
attributes:
- tenant: lab
  collection_type: Sample_Required
  collection_name: S1
  entries:
  - name: organism
    value: Unknown
  - name: tissue
    value: Liver
- tenant: lab
  collection_type: Sample_Required
  collection_name: S2
  entries:
  - name: tissue
    value: Brain
  - name: sex
    value: F
- tenant: lab
  collection_type: Project
  collection_name: Liver Atlas
  entries:
  - name: keyword
    value: liver
  - name: keyword
    value: atlas
`

func TestStaticStore(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	store, err := ParseStaticStore([]byte(testMappingFile))
	require.NoError(err)

	name, ok, err := store.FindCanonicalName(ctx, "P-001", "Project", "lab")
	require.NoError(err)
	require.True(ok)
	require.Equal("Liver Atlas", name)

	_, ok, err = store.FindCanonicalName(ctx, "P-001", "Project", "other")
	require.NoError(err)
	require.False(ok)

	entries, err := store.FindAttributeEntries(ctx, "Project", "Liver Atlas", "lab")
	require.NoError(err)
	require.Equal([]Entry{{Name: "keyword", Value: "liver"}, {Name: "keyword", Value: "atlas"}}, entries)

	entries, err = store.FindAttributeEntries(ctx, "Project", "Unknown", "lab")
	require.NoError(err)
	require.Empty(entries)

	attrs, err := store.ListTemplateAttributes(ctx, RequiredNamespace("Sample"), "lab")
	require.NoError(err)
	require.Equal([]string{"organism", "tissue", "sex"}, attrs)

	types, err := store.ListCollectionTypes(ctx, "lab")
	require.NoError(err)
	require.Equal([]string{"Project", "Sample_Required"}, types)
}

func TestStaticStoreParseError(t *testing.T) {
	_, err := ParseStaticStore([]byte("names: {"))
	require.Error(t, err)
}

func TestNamespaces(t *testing.T) {
	require := require.New(t)
	require.Equal("Sample_Required", RequiredNamespace("Sample"))
	require.Equal("Sample_Optional", OptionalNamespace("Sample"))
	require.Equal("Sample", BaseType("Sample_Optional"))
	require.Equal("Sample", BaseType("Sample"))
}
