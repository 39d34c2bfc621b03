package pgschema

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// SyncSchema reads the tables of the current schema, limited to
// includedTables when any are given, along with the tx log position they
// were read at. It assumes that conn has the `replication` flag set so that
// it can fetch the current tx log sequence number, and will error if not.
func SyncSchema(ctx context.Context, conn *pgxpool.Pool, includedTables ...string) (*Schema, error) {
	if !strings.Contains(conn.Config().ConnString(), "replication") {
		return nil, fmt.Errorf("SyncSchema called on a non-replication connection")
	}
	if !conn.Config().ConnConfig.PreferSimpleProtocol {
		return nil, fmt.Errorf("SyncSchema can't be called without simple protocol preferred")
	}

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tables, err := syncTables(ctx, tx, includedTables)
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		t.Cols, err = collect(ctx, tx, querySelectCols, func(rows pgx.Rows) (Col, error) {
			var c Col
			err := rows.Scan(&c.Name, &c.ID)
			return c, err
		}, int64(t.ID))
		if err != nil {
			return nil, fmt.Errorf("reading columns of %s: %w", t.Name, err)
		}
	}

	// Exec on the underlying pgconn will re-use the current transaction
	id, err := pglogrepl.ParseIdentifySystem(tx.Conn().PgConn().Exec(ctx, "IDENTIFY_SYSTEM"))
	if err != nil {
		return nil, err
	}
	return &Schema{
		Tables:  tables,
		XLogPos: id.XLogPos,
	}, nil
}

func syncTables(ctx context.Context, tx pgx.Tx, includedTables []string) (map[string]*Table, error) {
	all, err := collect(ctx, tx, querySelectTables, func(rows pgx.Rows) (*Table, error) {
		var (
			oid      int64
			identity string
		)
		t := &Table{}
		if err := rows.Scan(&oid, &t.Name, &identity); err != nil {
			return nil, err
		}
		t.ID = uint32(oid)
		t.ReplicaIdentity = ReplicaIdentity(identity)
		return t, nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading tables: %w", err)
	}

	tables := make(map[string]*Table, len(all))
	for _, t := range all {
		tables[t.Name] = t
	}
	if len(includedTables) == 0 {
		return tables, nil
	}

	included := make(map[string]*Table, len(includedTables))
	missing := make([]string, 0)
	for _, name := range includedTables {
		t, ok := tables[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		included[name] = t
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("not all expected tables found in remote schema. missing: %v", missing)
	}
	return included, nil
}

// collect scans every row of a query with scan.
func collect[T any](ctx context.Context, tx pgx.Tx, query string, scan func(pgx.Rows) (T, error), args ...interface{}) ([]T, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make([]T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return values, nil
}
