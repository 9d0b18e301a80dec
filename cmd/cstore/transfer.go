package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/contentstore/internal/config"
	"github.com/alfredjeanlab/contentstore/internal/content"
	"github.com/alfredjeanlab/contentstore/internal/store"
	cssync "github.com/alfredjeanlab/contentstore/internal/sync"
)

// export and import open the configured backend directly, like serve.
func withLocalStore(fn func(ctx context.Context, cfg *config.Config, st store.Store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := context.Background()
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(ctx, cfg, st)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every entry as JSONL",
	Long: `Write every entry in the configured backend as JSONL, to stdout, a file
(--out) or a sync target (--to s3|git). Reads CSTORE_* settings like serve.`,
	GroupID:           "data",
	Args:              cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		to, _ := cmd.Flags().GetString("to")
		if out != "" && to != "" {
			return fmt.Errorf("use either --out or --to, not both")
		}

		return withLocalStore(func(ctx context.Context, cfg *config.Config, st store.Store) error {
			var buf bytes.Buffer
			if err := cssync.ExportJSONL(ctx, st, &buf); err != nil {
				return err
			}
			switch {
			case to != "":
				dest, err := syncTarget(ctx, cfg, to)
				if err != nil {
					return err
				}
				if err := dest.Write(ctx, buf.Bytes()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "exported %d bytes to %s\n", buf.Len(), dest)
				return nil
			case out != "":
				return os.WriteFile(out, buf.Bytes(), 0o644)
			default:
				_, err := cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Load entries from a JSONL export",
	Long: `Upsert every entry of a JSONL export into the configured backend. The
source is a file, stdin ("-" or no argument) or a sync target (--from s3|git).

Legacy newline-delimited list content is rewritten as JSON arrays. Entries
already identical in the store are left untouched.`,
	GroupID:           "data",
	Args:              cobra.MaximumNArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		if err := checkOutputFormat(outputFmt); err != nil {
			return err
		}
		if from != "" && len(args) > 0 {
			return fmt.Errorf("use either a file or --from, not both")
		}

		return withLocalStore(func(ctx context.Context, cfg *config.Config, st store.Store) error {
			r, err := importSource(ctx, cmd, cfg, from, args)
			if err != nil {
				return err
			}
			defer r.Close()

			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.LogLevel}))
			coord := content.New(st, content.WithLogger(logger))
			stats, err := cssync.ImportJSONL(ctx, coord, r)
			if err != nil {
				return err
			}
			if outputFmt != outputTable {
				return printStructured(cmd.OutOrStdout(), outputFmt, stats)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "written %d, unchanged %d, normalized %d\n",
				stats.Written, stats.Unchanged, stats.Normalized)
			return nil
		})
	},
}

func importSource(ctx context.Context, cmd *cobra.Command, cfg *config.Config, from string, args []string) (io.ReadCloser, error) {
	if from != "" {
		dest, err := syncTarget(ctx, cfg, from)
		if err != nil {
			return nil, err
		}
		src, ok := dest.(cssync.Source)
		if !ok {
			return nil, fmt.Errorf("sync target %q cannot be read", from)
		}
		data, err := src.Read(ctx)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, err
	}
	return f, nil
}

func init() {
	exportCmd.Flags().String("out", "", "write to this file instead of stdout")
	exportCmd.Flags().String("to", "", "write to a configured sync target (s3 or git)")
	importCmd.Flags().String("from", "", "read from a configured sync target (s3 or git)")
}
