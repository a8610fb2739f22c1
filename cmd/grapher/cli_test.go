package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/alfredjeanlab/grapher/internal/model"
	"github.com/alfredjeanlab/grapher/internal/steps"
	"github.com/alfredjeanlab/grapher/internal/store"
	"github.com/alfredjeanlab/grapher/internal/store/sqlite"
)

// execute runs the root command with args and returns stdout. Flag values
// are reset afterwards so runs do not leak into each other.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { resetFlags(rootCmd) })

	err := rootCmd.ExecuteContext(context.Background())
	resetFlags(rootCmd)
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// seedDB creates a SQLite database holding the given configs and returns
// its path.
func seedDB(t *testing.T, configs ...string) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("NO_COLOR", "1")
	for _, key := range []string{"GRAPHER_DATABASE_URL", "GRAPHER_DATABASE_DRIVER", "GRAPHER_NATS_URL", "GRAPHER_BACKUP_S3_BUCKET", "GRAPHER_BACKUP_GIT_REPO", "GRAPHER_LOG_LEVEL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	path := filepath.Join(t.TempDir(), "grapher.db")
	s, err := sqlite.New(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer s.Close()
	for i, c := range configs {
		chart := &model.Chart{Slug: "chart-" + string(rune('a'+i)), Config: json.RawMessage(c)}
		if err := s.CreateChart(context.Background(), chart); err != nil {
			t.Fatalf("create chart: %v", err)
		}
	}
	return path
}

func TestMigrateUp(t *testing.T) {
	path := seedDB(t, `{"type":"LineChart"}`, `{"version":3,"color":"red"}`)

	out, err := execute(t, "--database-url", "sqlite://"+path, "--json", "migrate", "up")
	if err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	var res runResultJSON
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if !strings.HasPrefix(res.RunID, "run-") || len(res.Applied) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Applied[1].Name != steps.ChartConfigVersionName || res.Applied[1].Rows != 2 {
		t.Errorf("backfill result = %+v", res.Applied[1])
	}

	out, err = execute(t, "--database-url", "sqlite://"+path, "--json", "charts", "list")
	if err != nil {
		t.Fatalf("charts list: %v", err)
	}
	var rows []chartRowJSON
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode charts: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 charts, got %d", len(rows))
	}
	for _, r := range rows {
		if !r.Valid || r.Version == nil || *r.Version != 1 {
			t.Errorf("chart %d not backfilled: %+v", r.ID, r)
		}
	}

	// Second run has nothing to do.
	out, err = execute(t, "--database-url", "sqlite://"+path, "migrate", "up")
	if err != nil {
		t.Fatalf("second migrate up: %v", err)
	}
	if !strings.Contains(out, "nothing to apply") {
		t.Errorf("second run output = %q", out)
	}
}

func TestMigrateUp_DryRun(t *testing.T) {
	path := seedDB(t, `{"type":"LineChart"}`)

	out, err := execute(t, "--database-url", path, "migrate", "up", "--dry-run")
	if err != nil {
		t.Fatalf("migrate up --dry-run: %v", err)
	}
	if !strings.Contains(out, "would apply") {
		t.Errorf("dry run output = %q", out)
	}

	out, err = execute(t, "--database-url", path, "--json", "migrate", "up", "--dry-run")
	if err != nil {
		t.Fatalf("migrate up --dry-run --json: %v", err)
	}
	var res runResultJSON
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	var found bool
	for _, sr := range res.Applied {
		if sr.Name == steps.ChartConfigVersionName {
			found = true
			if sr.Writes != 1 {
				t.Errorf("skipped writes = %d, want 1", sr.Writes)
			}
		}
	}
	if !res.DryRun || !found {
		t.Errorf("dry run result = %+v", res)
	}

	out, err = execute(t, "--database-url", path, "--json", "migrate", "status")
	if err != nil {
		t.Fatalf("migrate status: %v", err)
	}
	var status []stepStatusJSON
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	for _, st := range status {
		if st.Applied {
			t.Errorf("dry run recorded %s", st.Name)
		}
	}
}

func TestMigrateUp_To(t *testing.T) {
	path := seedDB(t, `{}`)

	if _, err := execute(t, "--database-url", path, "migrate", "up", "--to", steps.ChartSlugRedirectsName); err != nil {
		t.Fatalf("migrate up --to: %v", err)
	}
	out, err := execute(t, "--database-url", path, "migrate", "status")
	if err != nil {
		t.Fatalf("migrate status: %v", err)
	}
	if !strings.Contains(out, "2 steps (1 pending)") {
		t.Errorf("status output:\n%s", out)
	}
}

func TestMigrateUp_MalformedConfigFails(t *testing.T) {
	path := seedDB(t, `{"type":"LineChart"}`, `[]`)

	_, err := execute(t, "--database-url", path, "migrate", "up")
	if err == nil || !strings.Contains(err.Error(), "malformed chart config") {
		t.Fatalf("expected malformed config error, got %v", err)
	}

	out, err := execute(t, "--database-url", path, "charts", "list")
	if err != nil {
		t.Fatalf("charts list: %v", err)
	}
	if !strings.Contains(out, "invalid") {
		t.Errorf("list should flag the malformed chart:\n%s", out)
	}
}

func TestMigrateSteps(t *testing.T) {
	seedDB(t)
	out, err := execute(t, "migrate", "steps")
	if err != nil {
		t.Fatalf("migrate steps: %v", err)
	}
	i := strings.Index(out, steps.ChartSlugRedirectsName)
	j := strings.Index(out, steps.ChartConfigVersionName)
	if i < 0 || j < 0 || i > j {
		t.Errorf("steps not listed in dependency order:\n%s", out)
	}
}

func TestChartsExport(t *testing.T) {
	path := seedDB(t, `{"type":"LineChart"}`, `{}`)
	outFile := filepath.Join(t.TempDir(), "charts.jsonl")

	if _, err := execute(t, "--database-url", path, "charts", "export", "-o", outFile); err != nil {
		t.Fatalf("charts export: %v", err)
	}
	data, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 || !strings.Contains(lines[0], `"chart_count":2`) {
		t.Errorf("unexpected export:\n%s", data)
	}
}

func TestActiveTargetUsedByCommands(t *testing.T) {
	path := seedDB(t, `{}`)
	if _, err := execute(t, "target", "add", "dev", path); err != nil {
		t.Fatalf("target add: %v", err)
	}
	if _, err := execute(t, "target", "use", "dev"); err != nil {
		t.Fatalf("target use: %v", err)
	}
	out, err := execute(t, "charts", "list")
	if err != nil {
		t.Fatalf("charts list via target: %v", err)
	}
	if !strings.Contains(out, "1 charts") {
		t.Errorf("output:\n%s", out)
	}
}

func TestExportToFile(t *testing.T) {
	path := seedDB(t, `{"type":"LineChart"}`)
	s, err := sqlite.New(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer s.Close()

	outFile := filepath.Join(t.TempDir(), "charts.jsonl")
	n, err := exportToFile(context.Background(), s, outFile)
	if err != nil || n != 1 {
		t.Fatalf("exportToFile = (%d, %v)", n, err)
	}

	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}
	if _, err := exportToFile(context.Background(), s, "/dev/full"); err == nil {
		t.Fatal("expected an error when the export cannot be written")
	}
}

func TestChartsShow(t *testing.T) {
	path := seedDB(t, `{"type":"LineChart","color":"red"}`, `[]`)

	out, err := execute(t, "--database-url", path, "charts", "show", "1")
	if err != nil {
		t.Fatalf("charts show: %v", err)
	}
	for _, want := range []string{"chart-a", "type", `"LineChart"`, "color", `"red"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "--database-url", path, "charts", "show", "2")
	if err != nil {
		t.Fatalf("charts show malformed: %v", err)
	}
	if !strings.Contains(out, "malformed chart config") || !strings.Contains(out, "[]") {
		t.Errorf("malformed config not reported:\n%s", out)
	}

	if _, err := execute(t, "--database-url", path, "charts", "show", "99"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing chart: expected ErrNotFound, got %v", err)
	}
	if _, err := execute(t, "--database-url", path, "charts", "show", "abc"); err == nil {
		t.Error("expected error for a non-numeric id")
	}
}

func TestPrintChart_Version(t *testing.T) {
	var buf bytes.Buffer
	c := &model.Chart{ID: 7, Slug: "gdp", Config: json.RawMessage(`{"version":1,"type":"LineChart"}`)}
	if err := printChart(&buf, c); err != nil {
		t.Fatalf("printChart: %v", err)
	}
	out := buf.String()
	var versionLine string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "VERSION") {
			versionLine = line
		}
	}
	if f := strings.Fields(versionLine); len(f) != 2 || f[1] != "1" {
		t.Errorf("version line = %q:\n%s", versionLine, out)
	}
	if strings.Index(out, "  type") > strings.Index(out, "  version") {
		t.Errorf("config keys not sorted:\n%s", out)
	}
}
