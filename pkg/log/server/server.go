// Package server is the Log facade spec.md §4.2 describes: it exposes the
// single Log contract and picks the embedded or distributed backend at
// construction time, so the compactor and query executor never need to
// know which mode they're running in.
package server

import (
	"context"
	"fmt"

	chromalog "github.com/chroma-core/controlplane/pkg/log"
	"github.com/chroma-core/controlplane/pkg/log/embedded"
	"github.com/chroma-core/controlplane/pkg/log/store"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Mode string

const (
	ModeEmbedded    Mode = "embedded"
	ModeDistributed Mode = "distributed"
)

type Config struct {
	Mode Mode

	// EmbeddedDir is the local directory for pkg/log/embedded. Required
	// when Mode == ModeEmbedded.
	EmbeddedDir string

	// PostgresDSN is the connection string for pkg/log/store. Required
	// when Mode == ModeDistributed.
	PostgresDSN string
}

// Server wraps the selected Log backend and satisfies common.Component so
// it can be registered alongside the other long-running services.
type Server struct {
	chromalog.Log
	closer func() error
}

func New(ctx context.Context, cfg Config) (*Server, error) {
	switch cfg.Mode {
	case ModeEmbedded:
		st, err := embedded.NewStore(cfg.EmbeddedDir)
		if err != nil {
			return nil, fmt.Errorf("opening embedded log store: %w", err)
		}
		return &Server{Log: st, closer: st.Close}, nil
	case ModeDistributed:
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connecting to log postgres: %w", err)
		}
		if err := store.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrating log schema: %w", err)
		}
		st := store.NewStore(pool)
		return &Server{Log: st, closer: func() error { pool.Close(); return nil }}, nil
	default:
		return nil, fmt.Errorf("unknown log server mode %q", cfg.Mode)
	}
}

func (s *Server) Start() error { return nil }
func (s *Server) Stop() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}
