// Package signals ties process shutdown to a context.
package signals

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
)

// Context returns a context that is cancelled on SIGINT or SIGTERM. A second
// signal exits immediately.
func Context() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info().Stringer("signal", sig).Msg("shutting down")
		cancel()
		<-sigs
		os.Exit(1)
	}()
	return ctx
}
