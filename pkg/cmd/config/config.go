package config

import (
	"context"
	"fmt"

	"github.com/jzelinskie/cobrautil"
	"github.com/spf13/cobra"

	"github.com/authzed/connector-archive/pkg/config"
	"github.com/authzed/connector-archive/pkg/options"
	"github.com/authzed/connector-archive/pkg/streams"
	"github.com/authzed/connector-archive/pkg/util"
)

// NewConfigCmd configures a new cobra command for generating a starter
// tenant config from the collection types in the mapping store.
func NewConfigCmd(ctx context.Context, streams streams.IO) *cobra.Command {
	o := NewOptions(streams)
	cmd := &cobra.Command{
		Use:   "config",
		Short: "generate a starter tenant config from the collection types in the mapping store",
		// logs to stderr so that stdout only contains the generated config
		PreRunE: util.ZeroLogPreRunEFunc(o.IO.ErrOut),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(ctx); err != nil {
				return err
			}
			defer o.Close()
			return o.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&o.Tenant, "tenant", "", "tenant to generate rules for")
	cmd.Flags().StringVar(&o.Root, "root", "", "collection path the tenant's files are placed under (default /<tenant>)")
	cmd.Flags().StringVar(&o.Format, "format", "yaml", "output format: yaml or json")
	cmd.Flags().StringVar(&o.MappingFile, "mapping-file", "", "path to a static mapping store file")
	cmd.Flags().StringVar(&o.PostgresURI, "postgres", "", "address of the postgres mapping store")
	cobrautil.RegisterZeroLogFlags(cmd.Flags(), "log")

	return cmd
}

// Options holds options for the config generator
type Options struct {
	streams.IO
	options.StoreOptions

	Tenant string
	Root   string
	Format string

	printer options.ConfigPrinter
}

// NewOptions returns initialized Options
func NewOptions(ioStreams streams.IO) *Options {
	return &Options{
		IO:     ioStreams,
		Format: "yaml",
	}
}

// Complete fills out default values before running
func (o *Options) Complete(ctx context.Context) error {
	if o.Tenant == "" {
		return fmt.Errorf("must provide a tenant")
	}
	printer, err := options.NewConfigPrinter(o.Format, o.Out)
	if err != nil {
		return err
	}
	o.printer = printer

	// listing collection types isn't cached
	o.CacheSize = -1
	return o.StoreOptions.Complete(ctx)
}

// Run runs the command configured by Options.
func (o *Options) Run(ctx context.Context) error {
	store, ok := o.Store.(config.Store)
	if !ok {
		return fmt.Errorf("mapping store can't list collection types")
	}
	c, err := config.Generate(ctx, store, o.Tenant, o.Root)
	if err != nil {
		return err
	}
	return o.printer(c)
}
