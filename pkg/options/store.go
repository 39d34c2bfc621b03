package options

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/authzed/connector-archive/pkg/mapping"
)

// StoreOptions selects the mapping store: a static file or postgres
type StoreOptions struct {
	PostgresOptions

	MappingFile  string
	CacheSize    int
	EnsureSchema bool

	Store   mapping.Store
	Caching *mapping.CachingStore
	Pool    *pgxpool.Pool
}

// Complete opens the mapping store. The returned store is cached unless
// CacheSize is negative.
func (o *StoreOptions) Complete(ctx context.Context) error {
	if o.Store != nil {
		log.Debug().Msg("mapping store already set, skipping store option validation")
		return nil
	}
	if o.MappingFile != "" && o.Enabled() {
		return fmt.Errorf("set either a mapping file or a postgres uri, not both")
	}

	var store mapping.Store
	switch {
	case o.MappingFile != "":
		log.Info().Str("file", o.MappingFile).Msg("loading static mapping store")
		s, err := mapping.LoadStaticStore(o.MappingFile)
		if err != nil {
			return err
		}
		store = s
	case o.Enabled():
		if err := o.PostgresOptions.Complete(); err != nil {
			return err
		}
		pool, err := o.Connect(ctx)
		if err != nil {
			return err
		}
		o.Pool = pool
		pg := mapping.NewPostgresStore(pool)
		if o.EnsureSchema {
			if err := pg.EnsureSchema(ctx); err != nil {
				return err
			}
		}
		store = pg
	default:
		return fmt.Errorf("must provide a mapping file or postgres uri")
	}

	if o.CacheSize < 0 {
		o.Store = store
		return nil
	}
	caching, err := mapping.NewCachingStore(store, o.CacheSize)
	if err != nil {
		return err
	}
	o.Caching = caching
	o.Store = caching
	return nil
}

// Close releases the postgres pool, if any.
func (o *StoreOptions) Close() {
	if o.Pool != nil {
		o.Pool.Close()
	}
}
