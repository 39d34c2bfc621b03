package options

import (
	"fmt"

	authzed "github.com/authzed/authzed-go/v1"
	"github.com/authzed/grpcutil"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"

	"github.com/authzed/connector-archive/pkg/write"
)

// SpiceDBOptions configures the SpiceDB instance collections are registered
// with
type SpiceDBOptions struct {
	SpiceDBEndpoint  string
	SpiceDBToken     string
	SpiceDBInsecure  bool
	SpiceDBBatchSize int
	AppendSchema     bool

	Client *authzed.Client
}

// Complete builds the client. Nothing is dialed when SpiceDB is not used.
func (o *SpiceDBOptions) Complete(enabled bool) (err error) {
	if !enabled {
		return nil
	}
	if o.Client != nil {
		log.Debug().Msg("spicedb client already configured, skipping client option validation")
		return nil
	}
	if o.SpiceDBEndpoint == "" {
		return fmt.Errorf("must provide spicedb uri")
	}
	grpcOpts := make([]grpc.DialOption, 0)
	if o.SpiceDBInsecure {
		grpcOpts = append(grpcOpts, grpc.WithInsecure())
	}
	if o.SpiceDBToken != "" && o.SpiceDBInsecure {
		grpcOpts = append(grpcOpts, grpcutil.WithInsecureBearerToken(o.SpiceDBToken))
	}
	if o.SpiceDBToken != "" && !o.SpiceDBInsecure {
		grpcOpts = append(grpcOpts, grpcutil.WithBearerToken(o.SpiceDBToken))
	}
	o.Client, err = authzed.NewClient(o.SpiceDBEndpoint, grpcOpts...)
	return
}

// RegistrationWriter registers trees as SpiceDB relationships.
func (o *SpiceDBOptions) RegistrationWriter() write.RegistrationWriter {
	return write.NewRelationshipRegistrationWriter(write.NewRelationshipWriter(o.Client, o.SpiceDBBatchSize))
}

// SchemaWriter appends the archive schema unless disabled.
func (o *SpiceDBOptions) SchemaWriter() write.AppendSchemaWriter {
	return write.NewSchemaAppendWriter(o.Client, !o.AppendSchema)
}
