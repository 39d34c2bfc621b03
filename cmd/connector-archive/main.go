package main

import (
	"github.com/jzelinskie/cobrautil"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	configcmd "github.com/authzed/connector-archive/pkg/cmd/config"
	"github.com/authzed/connector-archive/pkg/cmd/ingest"
	"github.com/authzed/connector-archive/pkg/cmd/run"
	"github.com/authzed/connector-archive/pkg/signals"
	"github.com/authzed/connector-archive/pkg/streams"
)

func main() {
	s := streams.NewStdIO()
	ctx := signals.Context()
	rootCmd := &cobra.Command{
		Use:               "connector-archive",
		Short:             "Place ingested files into a collection hierarchy with curated metadata",
		PersistentPreRunE: cobrautil.SyncViperPreRunE("connector-archive"),
		SilenceUsage:      true,
	}

	rootCmd.AddCommand(ingest.NewIngestCmd(ctx, s))
	rootCmd.AddCommand(run.NewRunCmd(ctx, s))
	rootCmd.AddCommand(configcmd.NewConfigCmd(ctx, s))
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}
