package write

import (
	"context"
	"encoding/hex"
	"path"

	v1 "github.com/authzed/authzed-go/proto/authzed/api/v1"
	authzed "github.com/authzed/authzed-go/v1"
	"github.com/minio/highwayhash"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/authzed/connector-archive/pkg/metadata"
	"github.com/authzed/connector-archive/pkg/util"
)

const (
	CollectionType = "archive/collection"
	ObjectType     = "archive/object"

	ParentRelation     = "parent"
	CollectionRelation = "collection"
)

var idKey = []byte("connector-archive/object-ids/v1.")

// ObjectID derives a stable SpiceDB object id from a tenant and an archive
// path.
func ObjectID(tenant, p string) string {
	sum := highwayhash.Sum128([]byte(tenant+"\x00"+metadata.NormalizePath(p)), idKey)
	return hex.EncodeToString(sum[:])
}

// Relationships lists the containment relationships of a tree: each
// collection points at its parent collection and the object points at its
// leaf collection. Repeated relationships are listed once.
func Relationships(t *metadata.Tree) []*v1.RelationshipUpdate {
	updates := make([]*v1.RelationshipUpdate, 0, len(t.Nodes)+1)
	seen := make(map[string]struct{})
	add := func(resourceType, resourcePath, relation, parentPath string) {
		rel := &v1.Relationship{
			Resource: &v1.ObjectReference{
				ObjectType: resourceType,
				ObjectId:   ObjectID(t.Tenant, resourcePath),
			},
			Relation: relation,
			Subject: &v1.SubjectReference{
				Object: &v1.ObjectReference{
					ObjectType: CollectionType,
					ObjectId:   ObjectID(t.Tenant, parentPath),
				},
			},
		}
		key := util.RelString(rel)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		updates = append(updates, &v1.RelationshipUpdate{
			Operation:    v1.RelationshipUpdate_OPERATION_TOUCH,
			Relationship: rel,
		})
	}

	for _, p := range t.Paths() {
		if parent := path.Dir(p); parent != p {
			add(CollectionType, p, ParentRelation, parent)
		}
	}
	if leaf, ok := t.Leaf(); ok && t.Destination != "" {
		add(ObjectType, t.Destination, CollectionRelation, leaf.Path)
	}
	return updates
}

// RelationshipRegistrationWriter registers the containment hierarchy of each
// tree in SpiceDB
type RelationshipRegistrationWriter struct {
	writer RelationshipWriter
}

// NewRelationshipRegistrationWriter writes through writer.
func NewRelationshipRegistrationWriter(writer RelationshipWriter) *RelationshipRegistrationWriter {
	return &RelationshipRegistrationWriter{writer: writer}
}

func (w *RelationshipRegistrationWriter) Write(ctx context.Context, trees []*metadata.Tree) error {
	updates := make([]*v1.RelationshipUpdate, 0)
	for _, t := range trees {
		updates = append(updates, Relationships(t)...)
	}
	if len(updates) == 0 {
		return nil
	}
	return w.writer.Write(ctx, updates)
}

// RelationshipWriter writes v1 relationships
type RelationshipWriter interface {
	Write(context.Context, []*v1.RelationshipUpdate) error
}

// NewRelationshipWriter returns a relationship writer based on the current
// config. It will configure trace logging if the current log level is trace,
// and will dry-run if no client is passed.
func NewRelationshipWriter(client *authzed.Client, batchSize int) RelationshipWriter {
	if client == nil {
		return NewDryRunRelationshipWriter()
	}
	var w RelationshipWriter = StdRelationshipWriter{client: client}
	if zerolog.GlobalLevel() == zerolog.TraceLevel {
		w = LoggingRelationshipWriter{writer: w, level: zerolog.TraceLevel}
	}
	if batchSize > 0 {
		w = BatchingRelationshipWriter{writer: w, batchSize: batchSize}
	}
	return w
}

// StdRelationshipWriter writes via an authzed client, no-frills.
type StdRelationshipWriter struct {
	client *authzed.Client
}

func (w StdRelationshipWriter) Write(ctx context.Context, updates []*v1.RelationshipUpdate) error {
	_, err := w.client.WriteRelationships(ctx, &v1.WriteRelationshipsRequest{Updates: updates})
	return err
}

// BatchingRelationshipWriter writes in batches of batchSize
type BatchingRelationshipWriter struct {
	writer    RelationshipWriter
	batchSize int
}

func (w BatchingRelationshipWriter) Write(ctx context.Context, updates []*v1.RelationshipUpdate) error {
	return batches(len(updates), w.batchSize, func(start, end int) error {
		return w.writer.Write(ctx, updates[start:end])
	})
}

// LoggingRelationshipWriter will log each write before delegating to an
// underlying RelationshipWriter
type LoggingRelationshipWriter struct {
	writer RelationshipWriter
	level  zerolog.Level
}

func (w LoggingRelationshipWriter) Write(ctx context.Context, updates []*v1.RelationshipUpdate) error {
	err := w.writer.Write(ctx, updates)
	for _, u := range updates {
		log.WithLevel(w.level).Str("rel", util.RelString(u.Relationship)).Msg(u.Operation.String())
	}
	return err
}

// NewDryRunRelationshipWriter constructs a new relationship writer that logs
// but doesn't write.
func NewDryRunRelationshipWriter() RelationshipWriter {
	return LoggingRelationshipWriter{
		writer: DiscardingRelationshipWriter{},
		level:  zerolog.InfoLevel,
	}
}

// DiscardingRelationshipWriter does nothing but satisfy RelationshipWriter
type DiscardingRelationshipWriter struct{}

func (w DiscardingRelationshipWriter) Write(ctx context.Context, updates []*v1.RelationshipUpdate) error {
	return nil
}
