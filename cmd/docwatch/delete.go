package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <collection> <id>",
	Short: "Delete a document by id",
	Args:  cobra.ExactArgs(2),
	RunE:  runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
	collectionName, id := args[0], args[1]

	collection, err := db.Collection(cmd.Context(), collectionName)
	if err != nil {
		return fmt.Errorf("open collection %q: %w", collectionName, err)
	}

	if err := collection.Delete(cmd.Context(), id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	cmd.Println("deleted", id)
	return nil
}
