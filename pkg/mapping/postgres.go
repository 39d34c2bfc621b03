package mapping

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog/log"
)

// PostgresStore reads mapping records from postgres.
type PostgresStore struct {
	conn *pgxpool.Pool
}

var _ Store = &PostgresStore{}

// NewPostgresStore returns a store backed by conn.
func NewPostgresStore(conn *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{conn: conn}
}

// EnsureSchema creates the mapping tables if they don't exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	log.Info().Msg("ensuring mapping store tables")
	if _, err := s.conn.Exec(ctx, querySchema); err != nil {
		return fmt.Errorf("creating mapping store tables: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindCanonicalName(ctx context.Context, rawKey, collectionType, tenant string) (string, bool, error) {
	var name string
	err := s.conn.QueryRow(ctx, querySelectCanonicalName, rawKey, collectionType, tenant).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("querying canonical name for %q: %w", rawKey, err)
	}
	return name, true, nil
}

func (s *PostgresStore) FindAttributeEntries(ctx context.Context, collectionType, collectionName, tenant string) ([]Entry, error) {
	rows, err := s.conn.Query(ctx, querySelectAttributeEntries, collectionType, collectionName, tenant)
	if err != nil {
		return nil, fmt.Errorf("querying attribute entries for %s %q: %w", collectionType, collectionName, err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Name, &e.Value); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *PostgresStore) ListTemplateAttributes(ctx context.Context, collectionType, tenant string) ([]string, error) {
	return s.strings(ctx, querySelectTemplateAttributes, collectionType, tenant)
}

// ListCollectionTypes returns every collection type and template namespace
// known for a tenant.
func (s *PostgresStore) ListCollectionTypes(ctx context.Context, tenant string) ([]string, error) {
	return s.strings(ctx, querySelectCollectionTypes, tenant)
}

func (s *PostgresStore) strings(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make([]string, 0)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return values, nil
}
