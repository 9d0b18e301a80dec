package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/alfredjeanlab/contentstore/internal/client"
	"github.com/alfredjeanlab/contentstore/internal/model"
	"github.com/alfredjeanlab/contentstore/internal/ui"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

func checkOutputFormat(f string) error {
	switch f {
	case outputTable, outputJSON, outputYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q (must be table, json or yaml)", f)
}

// printStructured writes v as JSON or YAML. YAML goes through JSON first so
// field names and raw metadata match the API.
func printStructured(w io.Writer, format string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	if format == outputJSON {
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}
	out, err := yaml.Marshal(generic)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	_, err = w.Write(out)
	return err
}

func printEntry(w io.Writer, format string, e *model.Entry) error {
	if format != outputTable {
		return printStructured(w, format, e)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Key:\t%s\n", ui.RenderAccent(e.Key))
	fmt.Fprintf(tw, "ID:\t%s\n", e.ID)
	fmt.Fprintf(tw, "Type:\t%s\n", e.Type)
	fmt.Fprintf(tw, "Title:\t%s\n", e.Title)
	if e.Section != "" || e.Subsection != "" {
		fmt.Fprintf(tw, "Section:\t%s\n", sectionLabel(e))
	}
	fmt.Fprintf(tw, "Revision:\t%d\n", e.Revision)
	fmt.Fprintf(tw, "Published:\t%t\n", e.IsPublished)
	fmt.Fprintf(tw, "Order:\t%d\n", e.Order)
	if len(e.Metadata) > 0 {
		fmt.Fprintf(tw, "Metadata:\t%s\n", e.Metadata)
	}
	if !e.CreatedAt.IsZero() {
		fmt.Fprintf(tw, "Created At:\t%s\n", e.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if !e.UpdatedAt.IsZero() {
		fmt.Fprintf(tw, "Updated At:\t%s\n", e.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%s\n", e.Content)
	return err
}

func printEntries(w io.Writer, format string, entries []*model.Entry) error {
	if format != outputTable {
		if entries == nil {
			entries = []*model.Entry{}
		}
		return printStructured(w, format, entries)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tTYPE\tREV\tORDER\tSECTION\tTITLE")
	for _, e := range entries {
		title := e.Title
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n", e.Key, e.Type, e.Revision, e.Order, sectionLabel(e), title)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d entries\n", len(entries))
	return err
}

func sectionLabel(e *model.Entry) string {
	if e.Subsection == "" {
		return e.Section
	}
	return e.Section + "/" + e.Subsection
}

func printItems(w io.Writer, format string, items []map[string]any) error {
	if items == nil {
		items = []map[string]any{}
	}
	if format != outputTable {
		return printStructured(w, format, items)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tITEM")
	for _, it := range items {
		data, err := json.Marshal(it)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\n", itemID(it), data)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d items\n", len(items))
	return err
}

func itemID(it map[string]any) string {
	switch v := it["id"].(type) {
	case nil:
		return ui.RenderMuted("-")
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func printDecoded(w io.Writer, format string, d *client.Decoded) error {
	if format != outputTable {
		return printStructured(w, format, d)
	}
	if d.Fallback != "" {
		msg := "decoded with fallback: " + d.Fallback
		if d.Cause != "" {
			msg += " (" + d.Cause + ")"
		}
		fmt.Fprintln(w, ui.RenderWarn(msg))
	}
	data, err := json.MarshalIndent(d.Value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
