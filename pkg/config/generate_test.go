package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/authzed/connector-archive/pkg/mapping"
)

func TestGenerate(t *testing.T) {
	require := require.New(t)
	store := mapping.NewStaticStore(mapping.StaticFile{
		Names: []mapping.NameRecord{
			{Tenant: "lab", CollectionType: "Project", RawKey: "P-001", CanonicalName: "Liver Atlas"},
		},
		Attributes: []mapping.AttributeRecord{
			{Tenant: "lab", CollectionType: "Sample_Required", CollectionName: "S1", Entries: []mapping.Entry{{Name: "organism", Value: "Human"}}},
			{Tenant: "lab", CollectionType: "Sample_Optional", CollectionName: "S1", Entries: []mapping.Entry{{Name: "sex", Value: "F"}}},
			{Tenant: "other", CollectionType: "Run", CollectionName: "R1"},
		},
	})

	c, err := Generate(context.Background(), store, "lab", "")
	require.NoError(err)
	require.Len(c.Tenants, 1)
	tenant := c.Tenants[0]
	require.Equal("lab", tenant.Name)
	require.Equal("/lab", tenant.Root)
	require.Equal([]Level{
		{CollectionType: "Project", Name: ValueRule{Search: "segment:0"}, Templates: []string{"store"}},
		{CollectionType: "Sample", Name: ValueRule{Search: "segment:1"}, Templates: []string{"required", "optional"}},
	}, tenant.Levels)

	_, err = Generate(context.Background(), store, "nobody", "/x")
	require.ErrorContains(err, "no collection types")

	_, err = Generate(context.Background(), store, "", "/x")
	require.Error(err)
}
