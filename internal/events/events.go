package events

import "context"

// Event topic constants
const (
	TopicMigrationStarted = "grapher.migration.started"
	TopicMigrationApplied = "grapher.migration.applied"
	TopicMigrationFailed  = "grapher.migration.failed"

	TopicBackupCompleted = "grapher.backup.completed"

	// TopicAll matches every topic published by this package.
	TopicAll = "grapher.>"
)

// Event types

type MigrationStarted struct {
	RunID  string `json:"run_id"`
	Step   string `json:"step"`
	DryRun bool   `json:"dry_run,omitempty"`
}

type MigrationApplied struct {
	RunID      string `json:"run_id"`
	Step       string `json:"step"`
	Rows       int    `json:"rows"`
	DurationMS int64  `json:"duration_ms"`
	DryRun     bool   `json:"dry_run,omitempty"`
}

type MigrationFailed struct {
	RunID string `json:"run_id"`
	Step  string `json:"step"`
	Error string `json:"error"`
}

type BackupCompleted struct {
	RunID     string   `json:"run_id"`
	Charts    int      `json:"charts"`
	Locations []string `json:"locations"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// NoopPublisher discards every event. The runner uses it when no NATS URL is
// configured.
type NoopPublisher struct{}

func (*NoopPublisher) Publish(context.Context, string, any) error { return nil }

func (*NoopPublisher) Close() error { return nil }
