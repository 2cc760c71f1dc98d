package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/docwatch/pkg/docwatch"
)

var saveCmd = &cobra.Command{
	Use:   "save <collection> <json>",
	Short: "Save a document into a collection",
	Long: `Save upserts a JSON document into the named collection. If the
document has no "id" field one is generated.

Example:
  docwatch save tasks '{"title": "write docs", "done": false}'`,
	Args: cobra.ExactArgs(2),
	RunE: runSave,
}

func runSave(cmd *cobra.Command, args []string) error {
	collectionName, rawJSON := args[0], args[1]

	var doc docwatch.Document
	if err := json.Unmarshal([]byte(rawJSON), &doc); err != nil {
		return fmt.Errorf("parse document: %w", err)
	}

	collection, err := db.Collection(cmd.Context(), collectionName)
	if err != nil {
		return fmt.Errorf("open collection %q: %w", collectionName, err)
	}

	saved, err := collection.Save(cmd.Context(), doc)
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}

	output, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	cmd.Println(string(output))
	return nil
}
