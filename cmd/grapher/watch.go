package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/grapher/internal/events"
	"github.com/alfredjeanlab/grapher/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream migration events from NATS",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, _ := cmd.Flags().GetString("topic")
		natsURL := resolveNATSURL()
		if natsURL == "" {
			return fmt.Errorf("no NATS URL; set GRAPHER_NATS_URL or add one to the target with --nats")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		sub, err := events.NewNATSSubscriber(natsURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logger.Warn("nats disconnected", "err", err)
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				logger.Info("nats reconnected")
			}),
		)
		if err != nil {
			return err
		}
		defer sub.Close()

		ch, cancel, err := sub.Subscribe(topic)
		if err != nil {
			return err
		}
		defer cancel()
		logger.Info("watching", "topic", topic, "nats_url", natsURL)

		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, ok := <-ch:
				if !ok {
					return nil
				}
				printEvent(cmd.OutOrStdout(), time.Now(), msg)
			}
		}
	},
}

// watchLine is the JSON shape of one event printed by `watch --json`.
type watchLine struct {
	Time  time.Time       `json:"time"`
	Topic string          `json:"topic"`
	RunID string          `json:"run_id,omitempty"`
	Data  json.RawMessage `json:"data"`
}

func printEvent(w io.Writer, at time.Time, msg events.Message) {
	if jsonOutput {
		data := json.RawMessage(msg.Data)
		if !json.Valid(data) {
			data, _ = json.Marshal(string(msg.Data))
		}
		line, err := json.Marshal(watchLine{Time: at.UTC(), Topic: msg.Topic, RunID: msg.RunID, Data: data})
		if err != nil {
			return
		}
		fmt.Fprintln(w, string(line))
		return
	}
	fmt.Fprintf(w, "%s %s %s\n", ui.RenderMuted(at.Format("15:04:05")), renderTopic(msg.Topic), describeEvent(msg))
}

func renderTopic(topic string) string {
	switch topic {
	case events.TopicMigrationApplied, events.TopicBackupCompleted:
		return ui.RenderPass(topic)
	case events.TopicMigrationFailed:
		return ui.RenderFail(topic)
	}
	return ui.RenderCommand(topic)
}

// describeEvent renders the payload of known topics; unknown payloads are
// printed raw.
func describeEvent(msg events.Message) string {
	switch msg.Topic {
	case events.TopicMigrationStarted:
		var e events.MigrationStarted
		if json.Unmarshal(msg.Data, &e) == nil {
			return fmt.Sprintf("%s step=%s dry_run=%t", ui.RenderAccent(e.RunID), e.Step, e.DryRun)
		}
	case events.TopicMigrationApplied:
		var e events.MigrationApplied
		if json.Unmarshal(msg.Data, &e) == nil {
			return fmt.Sprintf("%s step=%s rows=%d duration=%dms dry_run=%t", ui.RenderAccent(e.RunID), e.Step, e.Rows, e.DurationMS, e.DryRun)
		}
	case events.TopicMigrationFailed:
		var e events.MigrationFailed
		if json.Unmarshal(msg.Data, &e) == nil {
			return fmt.Sprintf("%s step=%s error=%q", ui.RenderAccent(e.RunID), e.Step, e.Error)
		}
	case events.TopicBackupCompleted:
		var e events.BackupCompleted
		if json.Unmarshal(msg.Data, &e) == nil {
			return fmt.Sprintf("%s charts=%d locations=%v", ui.RenderAccent(e.RunID), e.Charts, e.Locations)
		}
	}
	return string(msg.Data)
}

func init() {
	watchCmd.Flags().String("topic", events.TopicAll, "NATS subject to watch (wildcards allowed)")
}
