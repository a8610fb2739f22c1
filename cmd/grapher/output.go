package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/alfredjeanlab/grapher/internal/migrate"
	"github.com/alfredjeanlab/grapher/internal/model"
	"github.com/alfredjeanlab/grapher/internal/ui"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// stepStatusJSON is the JSON shape of one row of `migrate status`.
type stepStatusJSON struct {
	Name      string     `json:"name"`
	DependsOn []string   `json:"depends_on,omitempty"`
	Applied   bool       `json:"applied"`
	RunID     string     `json:"run_id,omitempty"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
	Rows      *int       `json:"rows,omitempty"`
}

func statusJSON(plan []migrate.Status) []stepStatusJSON {
	out := make([]stepStatusJSON, 0, len(plan))
	for _, st := range plan {
		row := stepStatusJSON{Name: st.Step.Name, DependsOn: st.Step.DependsOn, Applied: st.Applied}
		if st.Record != nil {
			appliedAt, rows := st.Record.AppliedAt, st.Record.Rows
			row.RunID = st.Record.RunID
			row.AppliedAt = &appliedAt
			row.Rows = &rows
		}
		out = append(out, row)
	}
	return out
}

func printStatusTable(w io.Writer, plan []migrate.Status) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tSTATUS\tAPPLIED AT\tRUN\tROWS")
	pending := 0
	for _, st := range plan {
		if !st.Applied {
			pending++
			fmt.Fprintf(tw, "%s\t%s\t\t\t\n", st.Step.Name, ui.RenderWarn("pending"))
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
			st.Step.Name,
			ui.RenderPass("applied"),
			st.Record.AppliedAt.Format("2006-01-02 15:04:05"),
			ui.RenderAccent(st.Record.RunID),
			st.Record.Rows,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d steps (%d pending)\n", len(plan), pending)
	return err
}

func printSteps(w io.Writer, steps []migrate.Step) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tDEPENDS ON\tSCHEMA\tDESCRIPTION")
	for _, s := range steps {
		deps := strings.Join(s.DependsOn, ", ")
		if deps == "" {
			deps = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", ui.RenderCommand(s.Name), deps, s.Schema, ui.RenderMuted(s.Description))
	}
	return tw.Flush()
}

// runResultJSON is the JSON shape of `migrate up`.
type runResultJSON struct {
	RunID   string           `json:"run_id,omitempty"`
	DryRun  bool             `json:"dry_run"`
	Backup  *backupJSON      `json:"backup,omitempty"`
	Applied []stepResultJSON `json:"applied"`
	Error   string           `json:"error,omitempty"`
}

type backupJSON struct {
	Charts    int      `json:"charts"`
	Locations []string `json:"locations"`
}

type stepResultJSON struct {
	Name       string `json:"name"`
	Rows       int    `json:"rows"`
	Writes     int    `json:"skipped_writes,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

func resultJSON(res *migrate.Result, runErr error) runResultJSON {
	out := runResultJSON{Applied: []stepResultJSON{}}
	if runErr != nil {
		out.Error = runErr.Error()
	}
	if res == nil {
		return out
	}
	out.RunID, out.DryRun = res.RunID, res.DryRun
	if res.Backup != nil {
		out.Backup = &backupJSON{Charts: res.Backup.Charts, Locations: res.Backup.Locations}
	}
	for _, sr := range res.Applied {
		out.Applied = append(out.Applied, stepResultJSON{Name: sr.Name, Rows: sr.Rows, Writes: sr.Writes, DurationMS: sr.Duration.Milliseconds()})
	}
	return out
}

func printRunResult(w io.Writer, res *migrate.Result) {
	if res.RunID == "" {
		fmt.Fprintln(w, "nothing to apply")
		return
	}
	verb := "applied"
	if res.DryRun {
		verb = ui.RenderWarn("would apply")
	}
	if res.Backup != nil {
		fmt.Fprintf(w, "backed up %d charts to %s\n", res.Backup.Charts, strings.Join(res.Backup.Locations, ", "))
	}
	for _, sr := range res.Applied {
		if res.DryRun {
			fmt.Fprintf(w, "%s %s (%d rows, %d writes skipped, %s)\n", verb, ui.RenderCommand(sr.Name), sr.Rows, sr.Writes, sr.Duration.Round(time.Millisecond))
			continue
		}
		fmt.Fprintf(w, "%s %s (%d rows, %s)\n", verb, ui.RenderCommand(sr.Name), sr.Rows, sr.Duration.Round(time.Millisecond))
	}
	fmt.Fprintf(w, "run %s: %d steps completed\n", ui.RenderAccent(res.RunID), len(res.Applied))
}

// chartRowJSON is the JSON shape of one row of `charts list`.
type chartRowJSON struct {
	ID        int64     `json:"id"`
	Slug      string    `json:"slug,omitempty"`
	Version   *int      `json:"version"`
	Valid     bool      `json:"valid_config"`
	UpdatedAt time.Time `json:"updated_at"`
}

func chartRows(charts []*model.Chart) []chartRowJSON {
	out := make([]chartRowJSON, 0, len(charts))
	for _, c := range charts {
		row := chartRowJSON{ID: c.ID, Slug: c.Slug, UpdatedAt: c.UpdatedAt}
		if cfg, err := model.DecodeChartConfig(c.Config); err == nil {
			row.Valid = true
			if v, ok := cfg.Version(); ok {
				row.Version = &v
			}
		}
		out = append(out, row)
	}
	return out
}

func printChartTable(w io.Writer, rows []chartRowJSON) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSLUG\tVERSION\tUPDATED")
	for _, r := range rows {
		version := ui.RenderMuted("-")
		switch {
		case !r.Valid:
			version = ui.RenderFail("invalid")
		case r.Version != nil:
			version = fmt.Sprintf("%d", *r.Version)
		}
		slug := truncate(r.Slug, 50)
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.ID, slug, version, r.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d charts\n", len(rows))
	return err
}

// printChart writes a chart's fields followed by its config keys in sorted
// order. A malformed config is printed raw.
func printChart(w io.Writer, c *model.Chart) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%d\n", c.ID)
	fmt.Fprintf(tw, "SLUG\t%s\n", c.Slug)
	fmt.Fprintf(tw, "UPDATED\t%s\n", c.UpdatedAt.Format("2006-01-02 15:04:05"))

	cfg, err := model.DecodeChartConfig(c.Config)
	if err != nil {
		fmt.Fprintf(tw, "CONFIG\t%s\n", ui.RenderFail(err.Error()))
		fmt.Fprintf(tw, "RAW\t%s\n", string(c.Config))
		return tw.Flush()
	}
	version := ui.RenderMuted("-")
	if v, ok := cfg.Version(); ok {
		version = fmt.Sprintf("%d", v)
	}
	fmt.Fprintf(tw, "VERSION\t%s\n", version)
	fmt.Fprintln(tw, "CONFIG\t")
	for _, key := range cfg.Keys() {
		raw, _ := cfg.Get(key)
		fmt.Fprintf(tw, "  %s\t%s\n", key, truncate(string(raw), 60))
	}
	return tw.Flush()
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}
