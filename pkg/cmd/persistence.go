// Package cmd provides shared initialization for the flowhook binaries.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/flowhook/flowhook/pkg/persistence"
	"github.com/flowhook/flowhook/pkg/persistence/file"
	"github.com/flowhook/flowhook/pkg/persistence/postgresql"
)

// NewPersistence selects the persistence backend from the database URL
// scheme. postgres:// URLs get the postgresql backend with migrations
// applied; anything else is treated as a directory path for file
// persistence.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(err)
		}

		return store
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://"))
	}
}
