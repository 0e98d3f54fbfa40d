package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/chroma-core/controlplane/pkg/common"
	"github.com/rs/zerolog/log"
)

// runUntilSignal starts every component in order, blocks until SIGINT/
// SIGTERM, then stops them in reverse order. Grounded on the teacher's
// pkg/utils.RunProcess/WaitUntilSignal, generalized from a single
// io.Closer to an ordered list of common.Component so `run` can register
// the log server, coordinator, compactor, and cleanup sweeper together.
func runUntilSignal(components []common.Component) int {
	for i, c := range components {
		if err := c.Start(); err != nil {
			log.Error().Err(err).Int("component", i).Msg("failed to start component")
			stopAll(components[:i])
			return classifyErr(err)
		}
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	sig := <-c
	log.Info().Str("signal", sig.String()).Msg("received signal, shutting down")

	stopAll(components)
	log.Info().Msg("shutdown complete")
	return exitOK
}

func stopAll(components []common.Component) {
	for i := len(components) - 1; i >= 0; i-- {
		if err := components[i].Stop(); err != nil {
			log.Error().Err(err).Int("component", i).Msg("error stopping component")
		}
	}
}
