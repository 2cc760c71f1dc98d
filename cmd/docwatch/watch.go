package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/docwatch/pkg/docwatch"
)

var watchSubscriptionName string

var watchCmd = &cobra.Command{
	Use:   "watch <collection> <insert|update|write|delete>",
	Short: "Durably subscribe to a collection's change events until interrupted",
	Args:  cobra.ExactArgs(2),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchSubscriptionName, "name", "",
		"subscription name; defaults to <collection>_<event> so repeat invocations resume instead of replaying")
}

func runWatch(cmd *cobra.Command, args []string) error {
	collectionName, on := args[0], docwatch.EventType(args[1])

	collection, err := db.Collection(cmd.Context(), collectionName)
	if err != nil {
		return fmt.Errorf("open collection %q: %w", collectionName, err)
	}

	name := watchSubscriptionName
	if name == "" {
		name = collectionName + "_" + string(on)
	}

	// Unsubscribe is intentionally not called on exit: the subscription's
	// cursor is meant to outlive this process so the next `watch` with the
	// same --name resumes instead of replaying. Use `unsubscribe` to delete
	// a subscription's cursor row for good.
	_, err = collection.Subscribe(cmd.Context(), name, on, docwatch.SubscriberFunc(
		func(ctx context.Context, ev docwatch.Event) error {
			printEvent(cmd, ev)
			return nil
		},
	))
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	<-ctx.Done()

	return nil
}

func printEvent(cmd *cobra.Command, ev docwatch.Event) {
	var payload map[string]any
	switch e := ev.(type) {
	case docwatch.InsertEvent:
		payload = map[string]any{"type": "insert", "id": e.ID(), "date": e.Date(), "after": e.After}
	case docwatch.UpdateEvent:
		payload = map[string]any{"type": "update", "id": e.ID(), "date": e.Date(), "before": e.Before, "after": e.After}
	case docwatch.WriteEvent:
		payload = map[string]any{"type": "write", "id": e.ID(), "date": e.Date(), "before": e.Before, "after": e.After}
	case docwatch.DeleteEvent:
		payload = map[string]any{"type": "delete", "id": e.ID(), "date": e.Date(), "before": e.Before}
	}
	out, err := json.Marshal(payload)
	if err != nil {
		cmd.PrintErrln("watch: marshal event:", err)
		return
	}
	cmd.Println(string(out))
}
