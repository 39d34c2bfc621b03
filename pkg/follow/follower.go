package follow

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgproto3/v2"
	"github.com/rs/zerolog/log"

	"github.com/authzed/connector-archive/pkg/cache"
	"github.com/authzed/connector-archive/pkg/pgschema"
)

const (
	pgOutputPlugin = "pgoutput"

	// Publication is the publication created over the mapping store tables.
	Publication = "connector_archive"
)

// Follower is the interface for things that can follow a WAL
type Follower interface {
	Follow(ctx context.Context, startingpos pglogrepl.LSN) error
}

// WalFollower watches the WAL for changes to the mapping store and queues
// the invalidations they imply
type WalFollower struct {
	conn   *pgconn.PgConn
	tables pgschema.StoreMapping
	cache  *cache.Cache
}

var _ Follower = &WalFollower{}

// NewWalFollower creates a new WalFollower for postgres. The conn must be made
// with the `replication` flag set.
func NewWalFollower(conn *pgconn.PgConn, tables pgschema.StoreMapping, cache *cache.Cache) *WalFollower {
	return &WalFollower{
		conn:   conn,
		tables: tables,
		cache:  cache,
	}
}

// Follow starts watching the replication log at startpos. Inserts and
// updates are queued as touches, deletes and truncates as deletes.
// Follow (and replication connections in general) are not safe to share across
// threads. Operations should be read from the cache to process them.
func (f *WalFollower) Follow(ctx context.Context, startpos pglogrepl.LSN) error {
	result := f.conn.Exec(ctx, fmt.Sprintf("DROP PUBLICATION IF EXISTS %s;", Publication))
	if _, err := result.ReadAll(); err != nil {
		return err
	}

	result = f.conn.Exec(ctx, fmt.Sprintf("CREATE PUBLICATION %s FOR TABLE %s;", Publication, strings.Join(pgschema.StoreTableNames(), ", ")))
	if _, err := result.ReadAll(); err != nil {
		return err
	}

	pluginArguments := []string{"proto_version '1'", fmt.Sprintf("publication_names '%s'", Publication)}

	slotName := newSlotName("connector_archive_slot")
	_, err := pglogrepl.CreateReplicationSlot(ctx, f.conn, slotName, pgOutputPlugin, pglogrepl.CreateReplicationSlotOptions{Temporary: true})
	if err != nil {
		return err
	}
	err = pglogrepl.StartReplication(ctx, f.conn, slotName, startpos, pglogrepl.StartReplicationOptions{PluginArgs: pluginArguments})
	if err != nil {
		return err
	}
	log.Info().Str("slot", slotName).Stringer("XLogPos", startpos).Msg("following mapping store changes")

	clientXLogPos := startpos
	standbyMessageTimeout := time.Second * 10
	nextStandbyMessageDeadline := time.Now().Add(standbyMessageTimeout)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Now().After(nextStandbyMessageDeadline) {
			err = pglogrepl.SendStandbyStatusUpdate(ctx, f.conn, pglogrepl.StandbyStatusUpdate{WALWritePosition: clientXLogPos})
			if err != nil {
				return err
			}
			nextStandbyMessageDeadline = time.Now().Add(standbyMessageTimeout)
		}

		recvCtx, cancel := context.WithDeadline(ctx, nextStandbyMessageDeadline)
		msg, err := f.conn.ReceiveMessage(recvCtx)
		cancel()
		if err != nil {
			if pgconn.Timeout(err) {
				continue
			}
			return err
		}

		copyData, ok := msg.(*pgproto3.CopyData)
		if !ok {
			log.Warn().Str("msg", fmt.Sprintf("%#v", msg)).Msg("received unexpected message")
			continue
		}
		switch copyData.Data[0] {
		case pglogrepl.PrimaryKeepaliveMessageByteID:
			pkm, err := pglogrepl.ParsePrimaryKeepaliveMessage(copyData.Data[1:])
			if err != nil {
				return err
			}
			if pkm.ReplyRequested {
				nextStandbyMessageDeadline = time.Time{}
			}

		case pglogrepl.XLogDataByteID:
			xld, err := pglogrepl.ParseXLogData(copyData.Data[1:])
			if err != nil {
				return err
			}
			log.Trace().Stringer("WALStart", xld.WALStart).Stringer("ServerWALEnd", xld.ServerWALEnd).Time("ServerTime", xld.ServerTime).Msg("received XLogData")
			logicalMsg, err := pglogrepl.Parse(xld.WALData)
			if err != nil {
				return err
			}
			f.apply(logicalMsg)
			clientXLogPos = xld.WALStart + pglogrepl.LSN(len(xld.WALData))
		}
	}
}

// apply queues the invalidations of a logical replication message.
func (f *WalFollower) apply(msg pglogrepl.Message) {
	switch m := msg.(type) {
	case *pglogrepl.InsertMessage:
		if inv, ok := f.tables.Invalidation(m.RelationID, m.Tuple); ok {
			f.cache.Touch(inv)
		}
	case *pglogrepl.UpdateMessage:
		// the old row may have been keyed differently
		if inv, ok := f.tables.Invalidation(m.RelationID, m.OldTuple); ok {
			f.cache.Touch(inv)
		}
		if inv, ok := f.tables.Invalidation(m.RelationID, m.NewTuple); ok {
			f.cache.Touch(inv)
		}
	case *pglogrepl.DeleteMessage:
		if inv, ok := f.tables.Invalidation(m.RelationID, m.OldTuple); ok {
			f.cache.Delete(inv)
		}
	case *pglogrepl.TruncateMessage:
		if inv, ok := f.tables.Truncation(m.RelationIDs); ok {
			f.cache.Delete(inv)
		}
	}
}

// newSlotName can panic and should only be called during process init
func newSlotName(prefix string) string {
	token := make([]byte, 5)
	if _, err := rand.Read(token); err != nil {
		panic("couldn't get random bytes")
	}
	return strings.Join([]string{prefix, hex.EncodeToString(token)}, "_")
}
