package ingest

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jzelinskie/cobrautil"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/authzed/connector-archive/pkg/ingest"
	"github.com/authzed/connector-archive/pkg/options"
	"github.com/authzed/connector-archive/pkg/strategy"
	"github.com/authzed/connector-archive/pkg/streams"
	"github.com/authzed/connector-archive/pkg/util"
	"github.com/authzed/connector-archive/pkg/write"
)

// NewIngestCmd configures a new cobra command that resolves a list of files
// into collection trees and registers them
func NewIngestCmd(ctx context.Context, streams streams.IO) *cobra.Command {
	o := NewOptions(streams)
	cmd := &cobra.Command{
		Use:   "ingest [file list]",
		Short: "resolve files into collection hierarchies with metadata and register them",
		Long: `Reads one file reference per line from the file list (or stdin). A line is
either a reference, "tenant<TAB>reference" or "tenant<TAB>reference<TAB>logical path".`,
		Example: `  connector-archive ingest --config=tenants.yaml --mapping-file=mappings.yaml --tenant=lab files.txt`,
		Args:    cobra.MaximumNArgs(1),
		// logs to stderr so that stdout only contains registrations
		PreRunE: util.ZeroLogPreRunEFunc(o.IO.ErrOut),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(ctx, args); err != nil {
				return err
			}
			defer o.Close()
			return o.Run(ctx)
		},
	}
	RegisterFlags(cmd.Flags(), o)
	cmd.Flags().StringVar(&o.Output, "output", options.OutputJSON, "where to register trees: json, spicedb or none")
	cobrautil.RegisterZeroLogFlags(cmd.Flags(), "log")

	return cmd
}

// RegisterFlags registers the flags shared by commands that ingest files.
func RegisterFlags(flags *pflag.FlagSet, o *Options) {
	flags.StringVar(&o.ConfigFile, "config", "", "path to a YAML or JSON file with the tenant rules")
	flags.StringVar(&o.Tenant, "tenant", "", "tenant of file references that don't name one")
	flags.IntVar(&o.Workers, "workers", ingest.DefaultWorkers, "number of files resolved concurrently")
	flags.BoolVar(&o.DryRun, "dry-run", false, "log registrations without writing them")
	flags.IntVar(&o.BatchSize, "batch-size", 0, "number of trees registered per write (0 writes each run at once)")

	flags.StringVar(&o.MappingFile, "mapping-file", "", "path to a static mapping store file")
	flags.StringVar(&o.PostgresURI, "postgres", "", "address of the postgres mapping store")
	flags.BoolVar(&o.EnsureSchema, "ensure-schema", false, "create the postgres mapping store tables if missing")
	flags.IntVar(&o.CacheSize, "cache-size", 0, "mapping store records cached in memory (negative disables the cache)")

	flags.StringVar(&o.S3Endpoint, "s3-endpoint", "", "S3 compatible endpoint serving s3:// references")
	flags.StringVar(&o.S3AccessKeyID, "s3-access-key-id", "", "S3 access key id")
	flags.StringVar(&o.S3SecretAccessKey, "s3-secret-access-key", "", "S3 secret access key")
	flags.StringVar(&o.S3Region, "s3-region", "", "S3 region")
	flags.BoolVar(&o.S3UseSSL, "s3-use-ssl", true, "connect to the S3 endpoint with TLS")

	flags.StringVar(&o.SpiceDBEndpoint, "spicedb-endpoint", "localhost:50051", "address for the SpiceDB endpoint")
	flags.StringVar(&o.SpiceDBToken, "spicedb-token", "", "token for reading and writing to SpiceDB")
	flags.BoolVar(&o.SpiceDBInsecure, "spicedb-insecure", false, "connect to SpiceDB without TLS")
	flags.IntVar(&o.SpiceDBBatchSize, "spicedb-batch-size", 100, "relationships written to SpiceDB per request")
	flags.BoolVar(&o.AppendSchema, "append-schema", true, "append the archive schema to the schema in SpiceDB")
}

// Options holds options for the ingest command
type Options struct {
	streams.IO
	options.ConfigOptions
	options.StoreOptions
	options.SourceOptions
	options.OutputOptions

	Tenant  string
	Workers int

	Registry *strategy.Registry
	FileList string
}

// NewOptions returns initialized Options
func NewOptions(ioStreams streams.IO) *Options {
	return &Options{
		IO:      ioStreams,
		Workers: ingest.DefaultWorkers,
	}
}

// Complete fills out default values before running
func (o *Options) Complete(ctx context.Context, args []string) error {
	if len(args) > 0 {
		o.FileList = args[0]
	}
	if err := o.ConfigOptions.Complete(); err != nil {
		return err
	}
	if err := o.SourceOptions.Complete(); err != nil {
		return err
	}
	if err := o.OutputOptions.Complete(o.Out); err != nil {
		return err
	}
	if err := o.StoreOptions.Complete(ctx); err != nil {
		return err
	}
	if o.Registry != nil {
		return nil
	}
	registry, err := options.NewRegistry(o.Config, o.Store, o.Fetcher)
	if err != nil {
		return err
	}
	o.Registry = registry
	return nil
}

// Close releases connections opened by Complete.
func (o *Options) Close() {
	o.StoreOptions.Close()
}

// Run runs the command configured by Options.
func (o *Options) Run(ctx context.Context) error {
	files, err := o.readFiles()
	if err != nil {
		return err
	}
	if err := o.WriteSchema(ctx); err != nil {
		return err
	}

	log.Info().Int("files", len(files)).Int("workers", o.Workers).Strs("tenants", o.Registry.Tenants()).Msg("ingesting")
	results, err := ingest.NewPool(o.Registry, o.Writer, o.Workers).Ingest(ctx, files)
	if err != nil {
		return err
	}
	ok, failed := ingest.Summarize(results)
	log.Info().Int("registered", ok).Int("skipped", failed).Msg("ingest complete")
	return nil
}

// WriteSchema appends the archive schema when registering with SpiceDB.
func (o *Options) WriteSchema(ctx context.Context) error {
	if !o.UsesSpiceDB() {
		return nil
	}
	return o.SchemaWriter().Write(ctx, write.ArchiveSchema)
}

func (o *Options) readFiles() ([]strategy.File, error) {
	var in io.Reader = o.In
	if o.FileList != "" && o.FileList != "-" {
		f, err := os.Open(o.FileList)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		in = f
	}

	files := make([]strategy.File, 0)
	lineNum := 0
	err := streams.Lines(in, func(line string) error {
		lineNum++
		f, ok, err := ingest.ParseFileLine(line, o.Tenant)
		if err != nil {
			return fmt.Errorf("file list line %d: %w", lineNum, err)
		}
		if ok {
			files = append(files, f)
		}
		return nil
	})
	return files, err
}
