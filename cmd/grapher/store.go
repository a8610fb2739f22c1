package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/alfredjeanlab/grapher/internal/backup"
	"github.com/alfredjeanlab/grapher/internal/config"
	"github.com/alfredjeanlab/grapher/internal/events"
	"github.com/alfredjeanlab/grapher/internal/store"
	"github.com/alfredjeanlab/grapher/internal/store/postgres"
	"github.com/alfredjeanlab/grapher/internal/store/sqlite"
)

// database is a resolved connection target.
type database struct {
	driver string
	dsn    string
	source string // where the URL came from, for error messages
}

// resolveDatabase picks the database URL from the --database-url flag,
// GRAPHER_DATABASE_URL or the selected target, in that order.
func resolveDatabase() (database, error) {
	rawURL, source, driver := databaseURL, "--database-url", cfg.DatabaseDriver
	if rawURL == "" && cfg.DatabaseURL != "" {
		rawURL, source = cfg.DatabaseURL, "GRAPHER_DATABASE_URL"
	}
	if rawURL == "" {
		t, name, ok, err := selectedTarget()
		if err != nil {
			return database{}, err
		}
		if !ok {
			return database{}, fmt.Errorf("no database configured; pass --database-url, set GRAPHER_DATABASE_URL or run 'grapher target use <name>'")
		}
		rawURL, source = t.DatabaseURL, "target "+name
		if driver == "" {
			driver = t.Driver
		}
	}

	inferred, dsn, err := inferDriver(rawURL)
	switch {
	case driver == "" && err != nil:
		return database{}, fmt.Errorf("%s: %w", source, err)
	case driver == "":
		driver = inferred
	case driver == config.DriverSQLite:
		dsn = sqlitePath(rawURL)
	default:
		dsn = rawURL
	}
	return database{driver: driver, dsn: dsn, source: source}, nil
}

// inferDriver maps a database URL to a driver name and the DSN that driver
// expects.
func inferDriver(raw string) (driver, dsn string, err error) {
	switch {
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return config.DriverPostgres, raw, nil
	case strings.HasPrefix(raw, "sqlite://"), strings.HasPrefix(raw, "file:"):
		return config.DriverSQLite, sqlitePath(raw), nil
	case raw == "":
		return "", "", fmt.Errorf("empty database URL")
	case filepath.IsAbs(raw), strings.HasPrefix(raw, "."), strings.HasSuffix(raw, ".db"), strings.HasSuffix(raw, ".sqlite"):
		return config.DriverSQLite, raw, nil
	}
	return "", "", fmt.Errorf("cannot infer database driver from %q; set GRAPHER_DATABASE_DRIVER", redactURL(raw))
}

func sqlitePath(raw string) string {
	if p, ok := strings.CutPrefix(raw, "sqlite://"); ok {
		return p
	}
	if p, ok := strings.CutPrefix(raw, "file:"); ok {
		return strings.TrimPrefix(p, "//")
	}
	return raw
}

func openStore() (store.Store, error) {
	db, err := resolveDatabase()
	if err != nil {
		return nil, err
	}
	logger.Debug("opening store", "driver", db.driver, "source", db.source)

	switch db.driver {
	case config.DriverPostgres:
		s, err := postgres.New(db.dsn)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", db.source, err)
		}
		return s, nil
	case config.DriverSQLite:
		s, err := sqlite.New(db.dsn)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", db.source, err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unsupported driver %q", db.driver)
}

// resolveNATSURL returns GRAPHER_NATS_URL, falling back to the selected
// target's NATS URL. Empty means events are disabled.
func resolveNATSURL() string {
	if cfg.NATSURL != "" {
		return cfg.NATSURL
	}
	t, _, ok, err := selectedTarget()
	if err != nil || !ok {
		return ""
	}
	return t.NATSURL
}

func newPublisher() events.Publisher {
	natsURL := resolveNATSURL()
	if natsURL == "" {
		return &events.NoopPublisher{}
	}
	pub, err := events.NewNATSPublisher(natsURL)
	if err != nil {
		logger.Warn("NATS unavailable, events disabled", "err", err)
		return &events.NoopPublisher{}
	}
	logger.Debug("publishing events", "nats_url", natsURL)
	return pub
}

func backupDestinations(ctx context.Context, b config.Backup) ([]backup.Destination, error) {
	var dests []backup.Destination
	if b.S3Bucket != "" {
		d, err := backup.NewS3Destination(ctx, b.S3Bucket, b.S3Prefix, b.S3Region, b.S3Endpoint)
		if err != nil {
			return nil, fmt.Errorf("s3 backup: %w", err)
		}
		dests = append(dests, d)
	}
	if b.GitRepo != "" {
		dests = append(dests, backup.NewGitDestination(b.GitRepo, b.GitFile, b.GitBranch))
	}
	return dests, nil
}
