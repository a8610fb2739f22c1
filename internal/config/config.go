// Package config loads grapher's runtime configuration from the environment.
package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
)

// Driver names accepted in GRAPHER_DATABASE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	DatabaseURL    string     `env:"GRAPHER_DATABASE_URL"`    // optional when a target is active
	DatabaseDriver string     `env:"GRAPHER_DATABASE_DRIVER"` // empty = infer from the URL
	NATSURL        string     `env:"GRAPHER_NATS_URL"`        // optional, empty = no events
	LogLevel       slog.Level `env:"GRAPHER_LOG_LEVEL" envDefault:"info"`

	Backup Backup
}

// Backup configures the snapshot taken before a migration run. Setting the
// bucket or the repo enables that destination.
type Backup struct {
	S3Bucket   string `env:"GRAPHER_BACKUP_S3_BUCKET"`
	S3Endpoint string `env:"GRAPHER_BACKUP_S3_ENDPOINT"` // custom endpoint for MinIO
	S3Region   string `env:"GRAPHER_BACKUP_S3_REGION" envDefault:"us-east-1"`
	S3Prefix   string `env:"GRAPHER_BACKUP_S3_PREFIX" envDefault:"grapher/backups"` // one object per run: <prefix>/<run id>.jsonl
	GitRepo    string `env:"GRAPHER_BACKUP_GIT_REPO"` // path to a local clone
	GitFile    string `env:"GRAPHER_BACKUP_GIT_FILE" envDefault:"charts.jsonl"`
	GitBranch  string `env:"GRAPHER_BACKUP_GIT_BRANCH" envDefault:"main"`
}

// Enabled reports whether any backup destination is configured.
func (b Backup) Enabled() bool {
	return b.S3Bucket != "" || b.GitRepo != ""
}

func Load() (*Config, error) {
	c := &Config{}
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	switch c.DatabaseDriver {
	case "", DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("GRAPHER_DATABASE_DRIVER: unsupported driver %q (want %s or %s)", c.DatabaseDriver, DriverPostgres, DriverSQLite)
	}
	return c, nil
}
