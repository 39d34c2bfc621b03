package options

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/authzed/connector-archive/pkg/util"
)

// PostgresOptions holds options related to the postgres mapping store
type PostgresOptions struct {
	PostgresURI string

	ReplogConfig *pgxpool.Config
	PoolConfig   *pgxpool.Config
}

// Enabled reports whether a postgres mapping store is configured.
func (o *PostgresOptions) Enabled() bool {
	return o.PostgresURI != "" || o.PoolConfig != nil
}

// Complete configures postgres options from a URI if needed
// Set either URI or the config objects, but not both.
func (o *PostgresOptions) Complete() error {
	if o.PoolConfig != nil && o.ReplogConfig != nil {
		log.Debug().Msg("postgres config already set, skipping postgres option validation")
		return nil
	}
	if o.PoolConfig != nil || o.ReplogConfig != nil {
		return fmt.Errorf("postgres options incomplete: either set postgres uri, or configure both connections")
	}
	if o.PostgresURI == "" {
		return fmt.Errorf("must provide postgres uri or dsn")
	}

	cfg, err := pgxpool.ParseConfig(o.PostgresURI)
	if err != nil {
		return err
	}
	o.PoolConfig = cfg

	// configure a (limited) connection for watching the replication log
	repcfg, err := pgxpool.ParseConfig(ReplicationURI(o.PostgresURI))
	if err != nil {
		return err
	}
	// replication connections don't support extended query protocol
	repcfg.ConnConfig.PreferSimpleProtocol = true
	o.ReplogConfig = repcfg
	return nil
}

// ReplicationURI adds the replication parameter to a postgres URI.
func ReplicationURI(uri string) string {
	if strings.Contains(uri, "?") {
		return uri + "&replication=database"
	}
	return uri + "?replication=database"
}

// Connect opens the pool for reading the mapping store.
func (o *PostgresOptions) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	log.Info().EmbedObject(util.LoggedConnConfig{ConnConfig: o.PoolConfig.ConnConfig}).Msg("connecting to postgres")
	return pgxpool.ConnectConfig(ctx, o.PoolConfig)
}

// ConnectReplication opens the pool for following the mapping store.
func (o *PostgresOptions) ConnectReplication(ctx context.Context) (*pgxpool.Pool, error) {
	log.Info().EmbedObject(util.LoggedConnConfig{ConnConfig: o.ReplogConfig.ConnConfig}).Msg("connecting to postgres for replication")
	return pgxpool.ConnectConfig(ctx, o.ReplogConfig)
}
