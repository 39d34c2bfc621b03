package write

import (
	"context"
	"strings"

	v1 "github.com/authzed/authzed-go/proto/authzed/api/v1"
	authzed "github.com/authzed/authzed-go/v1"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ArchiveSchema defines the containment hierarchy written by
// RelationshipRegistrationWriter.
const ArchiveSchema = `definition archive/collection {
	relation parent: archive/collection
}

definition archive/object {
	relation collection: archive/collection
}`

// AppendSchemaWriter appends a schema fragment to a spicedb schema
type AppendSchemaWriter interface {
	Write(context.Context, string) error
}

func NewSchemaAppendWriter(client *authzed.Client, discard bool) AppendSchemaWriter {
	if discard {
		return DiscardingSchemaAppendWriter{}
	}
	if client == nil {
		return NewDryRunSchemaAppendWriter(nil)
	}
	return NewStdSchemaAppendWriter(client)
}

// StdSchemaAppendWriter writes via an authzed client, no-frills.
type StdSchemaAppendWriter struct {
	client *authzed.Client
}

func (w *StdSchemaAppendWriter) Write(ctx context.Context, schema string) error {
	existing, err := readSchema(ctx, w.client)
	if err != nil {
		return err
	}
	fullSchema := appendSchema(existing, schema)
	if fullSchema == existing {
		log.Info().Msg("schema already up to date")
		return nil
	}
	log.Info().Msg("writing schema")
	log.Debug().Str("schema", fullSchema).Send()
	_, err = w.client.WriteSchema(ctx, &v1.WriteSchemaRequest{
		Schema: fullSchema,
	})
	return err
}

// NewStdSchemaAppendWriter constructs a new schema append writer
func NewStdSchemaAppendWriter(client *authzed.Client) *StdSchemaAppendWriter {
	return &StdSchemaAppendWriter{client: client}
}

// DryRunSchemaAppendWriter prints what the schema would have been.
type DryRunSchemaAppendWriter struct {
	client *authzed.Client
}

func (w *DryRunSchemaAppendWriter) Write(ctx context.Context, schema string) error {
	existing := ""
	if w.client != nil {
		var err error
		if existing, err = readSchema(ctx, w.client); err != nil {
			return err
		}
	}
	log.Info().Msg("schema write skipped")
	log.Debug().Str("schema", appendSchema(existing, schema)).Send()
	return nil
}

// NewDryRunSchemaAppendWriter constructs a new schema append writer that logs
// but doesn't write. If client is non-nil, it will attempt to read the existing
// schema from spicedb; otherwise it will assume the schema is empty.
func NewDryRunSchemaAppendWriter(client *authzed.Client) *DryRunSchemaAppendWriter {
	return &DryRunSchemaAppendWriter{
		client: client,
	}
}

// DiscardingSchemaAppendWriter does nothing but satisfy SchemaAppendWriter
type DiscardingSchemaAppendWriter struct{}

func (w DiscardingSchemaAppendWriter) Write(ctx context.Context, schema string) error {
	return nil
}

func readSchema(ctx context.Context, client *authzed.Client) (string, error) {
	resp, err := client.ReadSchema(ctx, &v1.ReadSchemaRequest{})
	if status.Code(err) == codes.NotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return resp.SchemaText, nil
}

// appendSchema adds the definitions of fragment that initial doesn't
// define yet. Definitions in fragment are separated by blank lines.
func appendSchema(initial, fragment string) string {
	out := initial
	for _, def := range strings.Split(strings.TrimSpace(fragment), "\n\n") {
		def = strings.TrimSpace(def)
		if def == "" {
			continue
		}
		header := strings.TrimSpace(strings.TrimSuffix(strings.SplitN(def, "\n", 2)[0], "{"))
		if strings.Contains(initial, header+" ") || strings.Contains(initial, header+"{") {
			continue
		}
		if strings.TrimSpace(out) != "" {
			out = strings.TrimRight(out, "\n") + "\n\n"
		}
		out += def + "\n"
	}
	return out
}
