package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/contentstore/internal/client"
	"github.com/alfredjeanlab/contentstore/internal/content"
	"github.com/alfredjeanlab/contentstore/internal/model"
)

var getCmd = &cobra.Command{
	Use:     "get <key>",
	Short:   "Show an entry",
	GroupID: "content",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		shape, _ := cmd.Flags().GetString("decode")
		out := cmd.OutOrStdout()

		if shape != "" {
			if shape == "auto" {
				shape = ""
			}
			d, err := httpClient.GetDecoded(ctx, args[0], shape)
			if err != nil {
				return err
			}
			return printDecoded(out, outputFmt, d)
		}

		e, err := contentClient.GetEntry(ctx, args[0])
		if err != nil {
			return err
		}
		return printEntry(out, outputFmt, e)
	},
}

var putCmd = &cobra.Command{
	Use:   "put <key>",
	Short: "Create or replace an entry",
	Long: `Create or replace an entry. Every field is written; flags left unset
store their zero value rather than keeping the previous one.

Content comes from --content or --file ("-" reads stdin).`,
	GroupID: "content",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := putRequestFromFlags(cmd, args[0])
		if err != nil {
			return err
		}
		e, err := contentClient.PutEntry(context.Background(), req)
		if err != nil {
			return err
		}
		return printEntry(cmd.OutOrStdout(), outputFmt, e)
	},
}

func putRequestFromFlags(cmd *cobra.Command, key string) (*client.PutEntryRequest, error) {
	flags := cmd.Flags()
	title, _ := flags.GetString("title")
	typ, _ := flags.GetString("type")
	section, _ := flags.GetString("section")
	subsection, _ := flags.GetString("subsection")
	published, _ := flags.GetBool("published")
	order, _ := flags.GetInt("order")
	metadata, _ := flags.GetString("metadata")
	revision, _ := flags.GetInt64("if-revision")

	body, err := readContent(cmd)
	if err != nil {
		return nil, err
	}

	ct := model.ContentType(typ)
	if !ct.IsValid() {
		return nil, fmt.Errorf("invalid --type %q (must be text or json)", typ)
	}

	req := &client.PutEntryRequest{
		UpsertRequest: content.UpsertRequest{
			Key:         key,
			Title:       title,
			Type:        ct,
			Section:     section,
			Subsection:  subsection,
			Content:     body,
			IsPublished: published,
			Order:       order,
		},
	}
	if metadata != "" {
		if !json.Valid([]byte(metadata)) {
			return nil, errors.New("--metadata must be valid JSON")
		}
		req.Metadata = json.RawMessage(metadata)
	}
	if flags.Changed("if-revision") {
		if revision < 0 {
			return nil, errors.New("--if-revision must not be negative")
		}
		req.ExpectedRevision = &revision
	}
	return req, nil
}

func readContent(cmd *cobra.Command) (string, error) {
	flags := cmd.Flags()
	text, _ := flags.GetString("content")
	file, _ := flags.GetString("file")
	if flags.Changed("content") && file != "" {
		return "", errors.New("use either --content or --file, not both")
	}
	switch file {
	case "":
		return text, nil
	case "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	default:
		data, err := os.ReadFile(file)
		return string(data), err
	}
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id-or-key>",
	Short:   "Delete an entry by key or id",
	GroupID: "content",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := contentClient.DeleteEntry(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List entries",
	GroupID: "content",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		section, _ := flags.GetString("section")
		subsection, _ := flags.GetString("subsection")
		typ, _ := flags.GetString("type")
		sort, _ := flags.GetString("sort")

		entries, err := contentClient.ListEntries(context.Background(), model.EntryFilter{
			Section:    section,
			Subsection: subsection,
			Type:       model.ContentType(typ),
			Sort:       sort,
		})
		if err != nil {
			return err
		}
		return printEntries(cmd.OutOrStdout(), outputFmt, entries)
	},
}

func init() {
	getCmd.Flags().String("decode", "", "decode content as auto, list or object (HTTP only)")

	putCmd.Flags().String("title", "", "entry title")
	putCmd.Flags().String("type", string(model.TypeText), "content type (text or json)")
	putCmd.Flags().String("section", "", "section")
	putCmd.Flags().String("subsection", "", "subsection")
	putCmd.Flags().String("content", "", "content string")
	putCmd.Flags().String("file", "", "read content from a file (- for stdin)")
	putCmd.Flags().String("metadata", "", "metadata as a JSON value")
	putCmd.Flags().Bool("published", false, "mark as published")
	putCmd.Flags().Int("order", 0, "sort order")
	putCmd.Flags().Int64("if-revision", 0, "only write if the stored revision matches (0 = only create)")

	listCmd.Flags().String("section", "", "filter by section")
	listCmd.Flags().String("subsection", "", "filter by subsection")
	listCmd.Flags().String("type", "", "filter by content type")
	listCmd.Flags().String("sort", "", "sort field (order, key, title, created_at, updated_at; prefix - for descending)")
}
