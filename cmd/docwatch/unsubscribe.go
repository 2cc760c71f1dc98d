package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/docwatch/pkg/docwatch"
)

var unsubscribeName string

var unsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe <collection> <insert|update|write|delete>",
	Short: "Delete a durable subscription's cursor so it stops resuming",
	Args:  cobra.ExactArgs(2),
	RunE:  runUnsubscribe,
}

func init() {
	unsubscribeCmd.Flags().StringVar(&unsubscribeName, "name", "",
		"subscription name; defaults to <collection>_<event>, matching watch's default")
}

func runUnsubscribe(cmd *cobra.Command, args []string) error {
	collectionName, on := args[0], docwatch.EventType(args[1])

	collection, err := db.Collection(cmd.Context(), collectionName)
	if err != nil {
		return fmt.Errorf("open collection %q: %w", collectionName, err)
	}

	name := unsubscribeName
	if name == "" {
		name = collectionName + "_" + string(on)
	}

	sub, err := collection.Subscribe(cmd.Context(), name, on, docwatch.SubscriberFunc(
		func(ctx context.Context, ev docwatch.Event) error { return nil },
	))
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return sub.Unsubscribe(cmd.Context())
}
