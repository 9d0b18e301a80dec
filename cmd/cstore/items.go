package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/contentstore/internal/client"
)

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Edit list entries item by item (HTTP only)",
	Long: `Treat a json entry as a list of items with ids. Each edit reads the
whole list, changes it and writes it back; without --guard two concurrent
edits can overwrite each other.`,
	GroupID: "content",
}

var itemsListCmd = &cobra.Command{
	Use:   "list <key>",
	Short: "List the items stored under a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := httpClient.ListItems(context.Background(), args[0])
		if err != nil {
			return err
		}
		if outputFmt != outputTable {
			return printStructured(cmd.OutOrStdout(), outputFmt, list)
		}
		return printItems(cmd.OutOrStdout(), outputFmt, list.Items)
	},
}

var itemsAddCmd = &cobra.Command{
	Use:   "add <key> <json-object>",
	Short: "Append an item, assigning an id if it has none",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		item, err := parseItem(args[1])
		if err != nil {
			return err
		}
		added, err := httpClient.AppendItem(context.Background(), args[0], item, collectionOptions(cmd))
		if err != nil {
			return err
		}
		return printItems(cmd.OutOrStdout(), outputFmt, []map[string]any{added})
	},
}

var itemsEditCmd = &cobra.Command{
	Use:   "edit <key> <id> <json-object>",
	Short: "Replace the item with the given id",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		item, err := parseItem(args[2])
		if err != nil {
			return err
		}
		items, err := httpClient.ReplaceItem(context.Background(), args[0], args[1], item, collectionOptions(cmd))
		if err != nil {
			return err
		}
		return printItems(cmd.OutOrStdout(), outputFmt, items)
	},
}

var itemsRemoveCmd = &cobra.Command{
	Use:   "remove <key> <id>",
	Short: "Remove the item with the given id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := httpClient.RemoveItem(context.Background(), args[0], args[1], collectionOptions(cmd))
		if err != nil {
			return err
		}
		return printItems(cmd.OutOrStdout(), outputFmt, items)
	},
}

var itemsToggleCmd = &cobra.Command{
	Use:   "toggle <key> <id> <field>",
	Short: "Flip a boolean field of an item",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := httpClient.ToggleItem(context.Background(), args[0], args[1], args[2], collectionOptions(cmd))
		if err != nil {
			return err
		}
		return printItems(cmd.OutOrStdout(), outputFmt, items)
	},
}

// parseItem decodes a JSON object, keeping numbers as written so ids survive.
func parseItem(s string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var item map[string]any
	if err := dec.Decode(&item); err != nil {
		return nil, fmt.Errorf("item must be a JSON object: %w", err)
	}
	if item == nil {
		return nil, fmt.Errorf("item must be a JSON object")
	}
	return item, nil
}

func collectionOptions(cmd *cobra.Command) client.CollectionOptions {
	flags := cmd.Flags()
	title, _ := flags.GetString("title")
	section, _ := flags.GetString("section")
	subsection, _ := flags.GetString("subsection")
	guard, _ := flags.GetBool("guard")
	return client.CollectionOptions{Title: title, Section: section, Subsection: subsection, Guard: guard}
}

func init() {
	for _, c := range []*cobra.Command{itemsAddCmd, itemsEditCmd, itemsRemoveCmd, itemsToggleCmd} {
		c.Flags().String("title", "", "title to write with the items (default keeps the stored one)")
		c.Flags().String("section", "", "section to write with the items (default keeps the stored one)")
		c.Flags().String("subsection", "", "subsection to write with the items")
		c.Flags().Bool("guard", false, "fail instead of overwriting a concurrent edit")
	}

	itemsCmd.AddCommand(itemsListCmd)
	itemsCmd.AddCommand(itemsAddCmd)
	itemsCmd.AddCommand(itemsEditCmd)
	itemsCmd.AddCommand(itemsRemoveCmd)
	itemsCmd.AddCommand(itemsToggleCmd)
}
