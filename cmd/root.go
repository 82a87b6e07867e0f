// Package cmd wires the control plane's CLI: flag parsing, the
// composition root, and logging setup. Every other package in this
// module is an external collaborator the CLI assembles — exactly the
// boundary spec.md §1 draws around "the core".
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X github.com/nextlevelbuilder/fnhost/cmd.Version=v1.0.0"
var Version = "dev"

var (
	flagPath          string
	flagAddr          string
	flagPort          int
	flagHost          string
	flagVerbose       bool
	flagOTelEndpoint  string
	flagAuditDB       string
	flagFlushInterval string
)

var rootCmd = &cobra.Command{
	Use:   "fnhost",
	Short: "fnhost — Function-as-a-Service control plane",
	Long:  "fnhost: a control plane that accepts uploaded function bundles, authenticates operators via bearer tokens, launches functions in an OS-level sandbox, and routes requests to them by subdomain.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagPath, "path", "./", "storage root directory")
	rootCmd.PersistentFlags().StringVar(&flagAddr, "addr", "127.0.0.1", "IP address to bind the control plane to")
	rootCmd.PersistentFlags().IntVar(&flagPort, "port", 8080, "port to bind the control plane to")
	rootCmd.PersistentFlags().StringVar(&flagHost, "host", "", "domain suffix for subdomain routing (required)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagOTelEndpoint, "otel-endpoint", "", "OTLP/HTTP collector endpoint for traces (disabled when empty)")
	rootCmd.PersistentFlags().StringVar(&flagAuditDB, "audit-db", "", "path to the deployment audit database (default: <path>/audit.db)")
	rootCmd.PersistentFlags().StringVar(&flagFlushInterval, "flush-interval", "", "cron expression overriding the fixed 12-minute persistence sweep")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(versionCmd())
}

func setupLogging() {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
