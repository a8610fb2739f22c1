package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/alfredjeanlab/grapher/internal/config"
)

func TestInferDriver(t *testing.T) {
	for _, tc := range []struct {
		in         string
		wantDriver string
		wantDSN    string
		wantErr    bool
	}{
		{"postgres://localhost/grapher", "postgres", "postgres://localhost/grapher", false},
		{"postgresql://u:p@db:5432/grapher?sslmode=disable", "postgres", "postgresql://u:p@db:5432/grapher?sslmode=disable", false},
		{"sqlite:///var/lib/grapher.db", "sqlite", "/var/lib/grapher.db", false},
		{"sqlite://grapher.db", "sqlite", "grapher.db", false},
		{"file:/tmp/grapher.db", "sqlite", "/tmp/grapher.db", false},
		{"file:///tmp/grapher.db", "sqlite", "/tmp/grapher.db", false},
		{"/tmp/grapher.db", "sqlite", "/tmp/grapher.db", false},
		{"./dev.sqlite", "sqlite", "./dev.sqlite", false},
		{"charts.db", "sqlite", "charts.db", false},
		{"mysql://localhost/grapher", "", "", true},
		{"", "", "", true},
	} {
		t.Run(tc.in, func(t *testing.T) {
			driver, dsn, err := inferDriver(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got driver %q", driver)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if driver != tc.wantDriver || dsn != tc.wantDSN {
				t.Errorf("inferDriver(%q) = (%q, %q), want (%q, %q)", tc.in, driver, dsn, tc.wantDriver, tc.wantDSN)
			}
		})
	}
}

func TestInferDriver_ErrorRedactsPassword(t *testing.T) {
	_, _, err := inferDriver("mysql://root:hunter2@db/grapher")
	if err == nil || strings.Contains(err.Error(), "hunter2") {
		t.Fatalf("error should not leak the password: %v", err)
	}
}

func TestResolveDatabase_Precedence(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if err := saveTargetsConfig(TargetsConfig{
		Active: "dev",
		Targets: map[string]Target{
			"dev":     {DatabaseURL: "/tmp/dev.db"},
			"staging": {DatabaseURL: "postgres://staging/grapher", NATSURL: "nats://staging:4222"},
			"custom":  {DatabaseURL: "grapher-data", Driver: "sqlite"},
		},
	}); err != nil {
		t.Fatalf("save targets: %v", err)
	}
	t.Cleanup(func() { databaseURL, targetName = "", "" })

	for _, tc := range []struct {
		name       string
		flag       string
		target     string
		cfg        config.Config
		wantDriver string
		wantDSN    string
		wantSource string
	}{
		{"ActiveTarget", "", "", config.Config{}, "sqlite", "/tmp/dev.db", "target dev"},
		{"NamedTarget", "", "staging", config.Config{}, "postgres", "postgres://staging/grapher", "target staging"},
		{"TargetDriver", "", "custom", config.Config{}, "sqlite", "grapher-data", "target custom"},
		{"EnvBeatsTarget", "", "", config.Config{DatabaseURL: "postgres://env/grapher"}, "postgres", "postgres://env/grapher", "GRAPHER_DATABASE_URL"},
		{"FlagBeatsEnv", "sqlite:///tmp/flag.db", "", config.Config{DatabaseURL: "postgres://env/grapher"}, "sqlite", "/tmp/flag.db", "--database-url"},
		{"DriverOverride", "", "", config.Config{DatabaseURL: "sqlite://x.db", DatabaseDriver: "sqlite"}, "sqlite", "x.db", "GRAPHER_DATABASE_URL"},
		{"DriverOverrideOpaqueURL", "", "", config.Config{DatabaseURL: "host=db dbname=grapher", DatabaseDriver: "postgres"}, "postgres", "host=db dbname=grapher", "GRAPHER_DATABASE_URL"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			databaseURL, targetName = tc.flag, tc.target
			c := tc.cfg
			cfg = &c

			db, err := resolveDatabase()
			if err != nil {
				t.Fatalf("resolveDatabase: %v", err)
			}
			if db.driver != tc.wantDriver || db.dsn != tc.wantDSN || db.source != tc.wantSource {
				t.Errorf("got %+v, want driver=%s dsn=%s source=%s", db, tc.wantDriver, tc.wantDSN, tc.wantSource)
			}
		})
	}
}

func TestResolveDatabase_NothingConfigured(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	databaseURL, targetName = "", ""
	cfg = &config.Config{}

	if _, err := resolveDatabase(); err == nil {
		t.Fatal("expected error with no database configured")
	}

	targetName = "ghost"
	t.Cleanup(func() { targetName = "" })
	if _, err := resolveDatabase(); err == nil || !strings.Contains(err.Error(), "ghost") {
		t.Fatalf("expected unknown target error, got %v", err)
	}
}

func TestResolveNATSURL(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if err := saveTargetsConfig(TargetsConfig{
		Active:  "staging",
		Targets: map[string]Target{"staging": {DatabaseURL: filepath.Join(t.TempDir(), "x.db"), NATSURL: "nats://staging:4222"}},
	}); err != nil {
		t.Fatalf("save targets: %v", err)
	}
	targetName = ""

	cfg = &config.Config{}
	if got := resolveNATSURL(); got != "nats://staging:4222" {
		t.Errorf("resolveNATSURL() = %q, want target URL", got)
	}
	cfg = &config.Config{NATSURL: "nats://env:4222"}
	if got := resolveNATSURL(); got != "nats://env:4222" {
		t.Errorf("resolveNATSURL() = %q, want env URL", got)
	}
}

func TestBackupDestinations(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "minio")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "minio123")

	dests, err := backupDestinations(t.Context(), config.Backup{
		S3Bucket: "charts", S3Prefix: "grapher/backups", S3Region: "us-east-1", S3Endpoint: "http://127.0.0.1:9000",
		GitRepo: "/srv/backups", GitFile: "charts.jsonl", GitBranch: "main",
	})
	if err != nil {
		t.Fatalf("backupDestinations: %v", err)
	}
	if len(dests) != 2 || dests[0].Name() != "s3://charts/grapher/backups/" || dests[1].Name() != "git:/srv/backups@main/charts.jsonl" {
		t.Fatalf("unexpected destinations: %v", dests)
	}

	dests, err = backupDestinations(t.Context(), config.Backup{})
	if err != nil || len(dests) != 0 {
		t.Fatalf("empty config should give no destinations, got %v, %v", dests, err)
	}
}
