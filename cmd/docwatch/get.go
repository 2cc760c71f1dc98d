package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <collection> <id>",
	Short: "Get a document by id",
	Args:  cobra.ExactArgs(2),
	RunE:  runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	collectionName, id := args[0], args[1]

	collection, err := db.Collection(cmd.Context(), collectionName)
	if err != nil {
		return fmt.Errorf("open collection %q: %w", collectionName, err)
	}

	doc, ok, err := collection.Get(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}
	if !ok {
		return fmt.Errorf("document %q not found in %q", id, collectionName)
	}

	output, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	cmd.Println(string(output))
	return nil
}
