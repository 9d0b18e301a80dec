package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/contentstore/internal/events"
	"github.com/alfredjeanlab/contentstore/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream entry change events from NATS",
	Long: `Print entry change events as they are published. The NATS URL comes from
--nats, CSTORE_NATS_URL or the active remote.`,
	GroupID: "content",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		natsURL, _ := cmd.Flags().GetString("nats")
		topic, _ := cmd.Flags().GetString("topic")
		if natsURL == "" {
			natsURL = envOr("CSTORE_NATS_URL", activeRemoteNATSURL())
		}
		if natsURL == "" {
			return fmt.Errorf("no NATS URL; pass --nats, set CSTORE_NATS_URL or add one to the active remote")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		sub, err := events.NewNATSSubscriber(natsURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				slog.Warn("nats disconnected", "err", err)
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				slog.Info("nats reconnected")
			}),
		)
		if err != nil {
			return err
		}
		defer sub.Close()

		return watchEvents(ctx, sub, topic, cmd.OutOrStdout())
	},
}

// watchEvents prints events on topic until ctx ends or the subscription closes.
func watchEvents(ctx context.Context, sub events.Subscriber, topic string, w io.Writer) error {
	ch, cancel, err := sub.Subscribe(topic)
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := printEvent(w, msg); err != nil {
				slog.Warn("skipping event", "topic", msg.Topic, "err", err)
			}
		}
	}
}

func printEvent(w io.Writer, msg events.Message) error {
	if outputFmt == outputJSON {
		_, err := fmt.Fprintf(w, "{\"topic\":%q,\"event\":%s}\n", msg.Topic, msg.Data)
		return err
	}
	ev, err := msg.Decode()
	if err != nil {
		return err
	}
	if outputFmt == outputYAML {
		return printStructured(w, outputYAML, map[string]any{"topic": msg.Topic, "event": ev})
	}

	switch e := ev.(type) {
	case *events.EntryCreated:
		_, err = fmt.Fprintf(w, "%s %s %s\n", e.At.Format("15:04:05"), ui.RenderOK("created"),
			describe(e.Entry.Key, e.Entry.Revision))
	case *events.EntryUpdated:
		_, err = fmt.Fprintf(w, "%s %s %s %s\n", e.At.Format("15:04:05"), ui.RenderAccent("updated"),
			describe(e.Entry.Key, e.Entry.Revision), ui.RenderMuted(fmt.Sprintf("(was %d)", e.PreviousRevision)))
	case *events.EntryDeleted:
		_, err = fmt.Fprintf(w, "%s %s %s %s\n", e.At.Format("15:04:05"), ui.RenderWarn("deleted"),
			e.Key, ui.RenderMuted(e.ID))
	}
	return err
}

func describe(key string, revision int64) string {
	return fmt.Sprintf("%s rev %d", key, revision)
}

func init() {
	watchCmd.Flags().String("nats", "", "NATS server URL")
	watchCmd.Flags().String("topic", events.TopicAll, "subject to subscribe to")
}
