package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/contentstore/internal/client"
	"github.com/alfredjeanlab/contentstore/internal/ui"
)

var (
	httpURL    string
	serverAddr string
	transport  string
	authToken  string
	outputFmt  string
	noColor    bool

	// contentClient talks over the selected transport. httpClient is always
	// HTTP; collection and decode endpoints only exist there.
	contentClient client.ContentClient
	httpClient    *client.HTTPClient
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultHTTPURL() string {
	if u := activeRemoteURL(); u != "" {
		return envOr("CSTORE_HTTP_URL", u)
	}
	return envOr("CSTORE_HTTP_URL", "http://localhost:8080")
}

func defaultServer() string {
	if a := activeRemoteGRPCAddr(); a != "" {
		return envOr("CSTORE_SERVER", a)
	}
	return envOr("CSTORE_SERVER", "localhost:9090")
}

func defaultToken() string {
	return envOr("CSTORE_TOKEN", activeRemoteToken())
}

var rootCmd = &cobra.Command{
	Use:          "cstore <command>",
	Short:        "Client and server for the keyed content store",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.Configure(noColor)
		if err := checkOutputFormat(outputFmt); err != nil {
			return err
		}

		httpClient = client.NewHTTPClient(httpURL, authToken)
		switch transport {
		case "http":
			contentClient = httpClient
		case "grpc":
			c, err := client.NewGRPCClient(serverAddr, authToken)
			if err != nil {
				return fmt.Errorf("failed to connect to server: %w", err)
			}
			contentClient = c
		default:
			return fmt.Errorf("unknown transport %q (must be http or grpc)", transport)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if contentClient != nil {
			contentClient.Close()
			contentClient = nil
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "HTTP server URL")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", defaultServer(), "gRPC server address")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "http", "transport protocol (http or grpc)")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultToken(), "bearer token")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", outputTable, "output format (table, json or yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "content", Title: "Content:"},
		&cobra.Group{ID: "data", Title: "Data:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Content
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(itemsCmd)
	rootCmd.AddCommand(watchCmd)

	// Data
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
