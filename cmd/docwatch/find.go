package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var findCmd = &cobra.Command{
	Use:   "find <collection> <json-query>",
	Short: "Find documents matching a query",
	Long: `Find evaluates a JSON query object against a collection. A bare
value means equality; a two-element array ["op", value] selects one of
=, >, <, >=, <=, !=, in, not in, like.

Example:
  docwatch find tasks '{"done": false, "priority": [">", 2]}'`,
	Args: cobra.ExactArgs(2),
	RunE: runFind,
}

func runFind(cmd *cobra.Command, args []string) error {
	collectionName, rawQuery := args[0], args[1]

	q, err := parseQuery(rawQuery)
	if err != nil {
		return err
	}

	collection, err := db.Collection(cmd.Context(), collectionName)
	if err != nil {
		return fmt.Errorf("open collection %q: %w", collectionName, err)
	}

	docs, err := collection.Find(cmd.Context(), q)
	if err != nil {
		return fmt.Errorf("find documents: %w", err)
	}

	output, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal documents: %w", err)
	}
	cmd.Println(string(output))
	return nil
}
