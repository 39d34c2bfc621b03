package e2e

import (
	"context"
	_ "embed"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	v1 "github.com/authzed/authzed-go/proto/authzed/api/v1"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/authzed/connector-archive/pkg/cache"
	"github.com/authzed/connector-archive/pkg/cmd/ingest"
	"github.com/authzed/connector-archive/pkg/config"
	"github.com/authzed/connector-archive/pkg/follow"
	"github.com/authzed/connector-archive/pkg/mapping"
	"github.com/authzed/connector-archive/pkg/options"
	"github.com/authzed/connector-archive/pkg/pgschema"
	"github.com/authzed/connector-archive/pkg/source"
	"github.com/authzed/connector-archive/pkg/streams"
	"github.com/authzed/connector-archive/pkg/write"
)

//go:embed fixtures/tenants.yaml
var tenantConfig []byte

func TestPostgresStore(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	pg, port := postgres(t, "postgres:secret", 5432)
	conn, _ := newTestDB(t, pg, "postgres:secret", port)
	store := mapping.NewPostgresStore(conn)

	// idempotent
	require.NoError(store.EnsureSchema(ctx))

	name, ok, err := store.FindCanonicalName(ctx, "P-001", "Project", "lab")
	require.NoError(err)
	require.True(ok)
	require.Equal("Liver Atlas", name)

	_, ok, err = store.FindCanonicalName(ctx, "P-404", "Project", "lab")
	require.NoError(err)
	require.False(ok)

	entries, err := store.FindAttributeEntries(ctx, "Project", "Liver Atlas", "lab")
	require.NoError(err)
	require.Equal([]mapping.Entry{{Name: "keyword", Value: "liver"}, {Name: "keyword", Value: "atlas"}}, entries)

	names, err := store.ListTemplateAttributes(ctx, "Sample_Required", "lab")
	require.NoError(err)
	require.Equal([]string{"organism", "tissue"}, names)

	types, err := store.ListCollectionTypes(ctx, "lab")
	require.NoError(err)
	require.Equal([]string{"Project", "Sample_Optional", "Sample_Required"}, types)

	generated, err := config.Generate(ctx, store, "lab", "")
	require.NoError(err)
	require.Len(generated.Tenants[0].Levels, 2)
}

func TestFollowInvalidatesCachedRecords(t *testing.T) {
	require := require.New(t)
	pg, port := postgres(t, "postgres:secret", 5432)
	conn, connString := newTestDB(t, pg, "postgres:secret", port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	caching, err := mapping.NewCachingStore(mapping.NewPostgresStore(conn), 0)
	require.NoError(err)
	name, ok, err := caching.FindCanonicalName(ctx, "P-001", "Project", "lab")
	require.NoError(err)
	require.True(ok)
	require.Equal("Liver Atlas", name)
	entries, err := caching.FindAttributeEntries(ctx, "Sample_Required", "S2", "lab")
	require.NoError(err)
	require.Len(entries, 1)

	replogConfig, err := pgxpool.ParseConfig(options.ReplicationURI(connString))
	require.NoError(err)
	replogConfig.ConnConfig.PreferSimpleProtocol = true
	replogConn, err := pgxpool.ConnectConfig(ctx, replogConfig)
	require.NoError(err)
	defer replogConn.Close()

	schema, err := pgschema.SyncSchema(ctx, replogConn, pgschema.StoreTableNames()...)
	require.NoError(err)
	storeMapping, err := schema.StoreMapping()
	require.NoError(err)

	repconn, err := replogConn.Acquire(ctx)
	require.NoError(err)
	defer repconn.Release()

	repCache := cache.NewCache(ctx)
	follower := follow.NewWalFollower(repconn.Conn().PgConn(), storeMapping, repCache)
	go func() {
		_ = follower.Follow(ctx, schema.XLogPos)
	}()
	go repCache.Drain(caching)

	_, err = conn.Exec(context.Background(), `UPDATE name_mappings SET canonical_name = 'Liver Atlas v2' WHERE raw_key = 'P-001'`)
	require.NoError(err)
	_, err = conn.Exec(context.Background(), `DELETE FROM attribute_entries WHERE collection_name = 'S2'`)
	require.NoError(err)

	require.Eventually(func() bool {
		name, _, err := caching.FindCanonicalName(ctx, "P-001", "Project", "lab")
		return err == nil && name == "Liver Atlas v2"
	}, 30*time.Second, 200*time.Millisecond)

	require.Eventually(func() bool {
		entries, err := caching.FindAttributeEntries(ctx, "Sample_Required", "S2", "lab")
		return err == nil && len(entries) == 0
	}, 30*time.Second, 200*time.Millisecond)
}

func TestIngestRegistersWithSpiceDB(t *testing.T) {
	require := require.New(t)
	pg, port := postgres(t, "postgres:secret", 5432)
	_, connString := newTestDB(t, pg, "postgres:secret", port)
	spiceClient := spicedb(t)

	c, err := config.Parse(tenantConfig)
	require.NoError(err)

	testIO, in, _, _ := streams.NewTestIO()
	in.WriteString("lab\t/incoming/P-001/run1/sample_S1_R1.fastq\nlab\t/incoming/P-001/run1/sample_S3_R1.fastq\n")
	o := ingest.NewOptions(testIO)
	o.Config = c
	o.PostgresURI = connString
	o.Output = options.OutputSpiceDB
	o.AppendSchema = true
	o.Client = spiceClient
	o.Fetcher = source.NewMemory(map[string][]byte{
		"/incoming/P-001/run1/samples.csv": []byte("sample,tissue\nS1,Liver\nS2,Brain\n"),
	})

	require.NoError(o.Complete(context.Background(), nil))
	defer o.Close()
	require.NoError(o.Run(context.Background()))

	schema, err := spiceClient.ReadSchema(context.Background(), &v1.ReadSchemaRequest{})
	require.NoError(err)
	require.Contains(schema.SchemaText, "archive/collection")

	stream, err := spiceClient.ReadRelationships(context.Background(), &v1.ReadRelationshipsRequest{
		Consistency:        &v1.Consistency{Requirement: &v1.Consistency_FullyConsistent{FullyConsistent: true}},
		RelationshipFilter: &v1.RelationshipFilter{ResourceType: write.ObjectType},
	})
	require.NoError(err)
	objects := make([]string, 0)
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(err)
		objects = append(objects, resp.Relationship.Resource.ObjectId)
	}
	require.Equal([]string{write.ObjectID("lab", "/archive/lab/Liver Atlas/S1/sample_S1_R1.fastq")}, objects)
	require.False(strings.Contains(objects[0], "/"))
}
