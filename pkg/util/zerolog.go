package util

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jzelinskie/cobrautil"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/authzed/connector-archive/pkg/metadata"
)

// ZeroLogPreRunEFunc returns a cobra PreRunE function that wires zerolog into
// out. Commands that print results to stdout should log to stderr.
func ZeroLogPreRunEFunc(out io.Writer) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if cobrautil.IsBuiltinCommand(cmd) {
			return nil // No-op for builtins
		}
		return ConfigureLogger(out, cobrautil.MustGetString(cmd, "log-format"), cobrautil.MustGetString(cmd, "log-level"))
	}
}

// ConfigureLogger points the global logger at out. The "human" format, or
// "auto" on a terminal, writes console output; anything else writes JSON.
func ConfigureLogger(out io.Writer, format, levelString string) error {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd())
	}
	if format == "human" || (format == "auto" && tty) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out})
	} else {
		log.Logger = log.Output(out)
	}

	levelString = strings.ToLower(levelString)
	level, err := zerolog.ParseLevel(levelString)
	if err != nil {
		return fmt.Errorf("unknown log level: %s", levelString)
	}
	zerolog.SetGlobalLevel(level)
	log.Debug().Str("new level", levelString).Msg("set log level")
	return nil
}

// LoggedConnConfig wraps a pgx.ConnConfig to make it satisfy the
// zerolog.LogObjectMarshaler interface
type LoggedConnConfig struct {
	*pgx.ConnConfig
}

// MarshalZerologObject satisfies the zerolog.LogObjectMarshaler interface
func (l LoggedConnConfig) MarshalZerologObject(e *zerolog.Event) {
	e.Str("host", l.Host)
	e.Str("user", l.User)
	e.Str("database", l.Database)
}

// LoggedTree summarizes a metadata tree in log events
type LoggedTree struct {
	*metadata.Tree
}

// MarshalZerologObject satisfies the zerolog.LogObjectMarshaler interface
func (l LoggedTree) MarshalZerologObject(e *zerolog.Event) {
	missing := 0
	for _, n := range l.Nodes {
		missing += len(n.Entries) - len(metadata.DropMissing(n.Entries))
	}
	missing += len(l.Object) - len(metadata.DropMissing(l.Object))

	e.Str("tenant", l.Tenant)
	e.Str("destination", l.Destination)
	e.Int("collections", len(l.Nodes))
	e.Int("entries", len(l.Object))
	e.Int("missing", missing)
}
