package e2e

import (
	"context"
	"crypto/rand"
	_ "embed"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	authzed "github.com/authzed/authzed-go/v1"
	"github.com/authzed/grpcutil"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/authzed/connector-archive/pkg/mapping"
)

//go:embed fixtures/mappings.sql
var testMappings string

func spicedb(t testing.TB) *authzed.Client {
	t.Log("starting spicedb")
	defer t.Log("spicedb started")
	require := require.New(t)
	pool, err := dockertest.NewPool("")
	require.NoError(err)

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Cmd:          strings.Split(`serve --grpc-preshared-key somerandomkeyhere --grpc-no-tls --http-no-tls`, " "),
		Repository:   "quay.io/authzed/spicedb",
		Tag:          "v1.1.0",
		ExposedPorts: []string{"50051"},
	})
	require.NoError(err)

	var client *authzed.Client
	port := resource.GetPort("50051/tcp")
	require.NoError(pool.Retry(func() error {
		var err error
		client, err = authzed.NewClient(fmt.Sprintf("localhost:%s", port), grpcutil.WithInsecureBearerToken("somerandomkeyhere"), grpc.WithInsecure())
		return err
	}))

	t.Cleanup(func() {
		require.NoError(pool.Purge(resource))
	})
	return client
}

func postgres(t testing.TB, creds string, portNum uint16) (*pgxpool.Pool, string) {
	t.Log("starting postgres")
	defer t.Log("postgres started")
	require := require.New(t)
	pool, err := dockertest.NewPool("")
	require.NoError(err)

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Cmd:        strings.Split("postgres -c wal_level=logical -c max_wal_senders=5 -c max_replication_slots=5", " "),
		Repository: "postgres",
		Tag:        "11.13",
		Env:        []string{"POSTGRES_PASSWORD=secret", "POSTGRES_DB=defaultdb"},
	})
	require.NoError(err)

	var dbpool *pgxpool.Pool
	port := resource.GetPort(fmt.Sprintf("%d/tcp", portNum))
	require.NoError(pool.Retry(func() error {
		var err error
		dbpool, err = pgxpool.Connect(context.Background(), fmt.Sprintf("postgres://%s@localhost:%s/defaultdb?sslmode=disable", creds, port))
		if err != nil {
			return err
		}
		return dbpool.Ping(context.Background())
	}))

	t.Cleanup(func() {
		dbpool.Close()
		require.NoError(pool.Purge(resource))
	})

	return dbpool, port
}

// newTestDB creates a database holding the mapping store tables and the
// fixture records, and returns a pool connected to it with its URI.
func newTestDB(t testing.TB, pool *pgxpool.Pool, creds string, port string) (*pgxpool.Pool, string) {
	require := require.New(t)
	newDBName := "db" + tokenHex(require, 4)
	_, err := pool.Exec(context.Background(), "CREATE DATABASE "+newDBName)
	require.NoError(err)

	connectStr := fmt.Sprintf(
		"postgres://%s@localhost:%s/%s?sslmode=disable",
		creds,
		port,
		newDBName,
	)

	testpool, err := pgxpool.Connect(context.Background(), connectStr)
	require.NoError(err)
	t.Cleanup(testpool.Close)

	require.NoError(mapping.NewPostgresStore(testpool).EnsureSchema(context.Background()))
	_, err = testpool.Exec(context.Background(), testMappings)
	require.NoError(err)

	t.Log(connectStr)

	return testpool, connectStr
}

func tokenHex(require *require.Assertions, nbytes uint8) string {
	token := make([]byte, nbytes)
	_, err := rand.Read(token)
	require.NoError(err)
	return hex.EncodeToString(token)
}
