// Package cmd provides the shared wiring helpers used by the binaries.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/relaykit/journey/pkg/persistence"
	"github.com/relaykit/journey/pkg/persistence/file"
	"github.com/relaykit/journey/pkg/persistence/postgresql"
)

// NewPersistence selects the backend by URL scheme: postgres for shared
// deployments, file for everything else.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parseProvider(databaseURL) {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic("failed to initialize PostgreSQL persistence: " + err.Error())
		}

		return p
	default:
		return file.NewPersistence(databaseURL)
	}
}

func parseProvider(databaseURL string) string {
	parts := strings.SplitN(databaseURL, "://", 2)

	return parts[0]
}
