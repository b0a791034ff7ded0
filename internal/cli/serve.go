package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vincentbai/pagebeacon/internal/database"
	"github.com/vincentbai/pagebeacon/internal/publisher"
	"github.com/vincentbai/pagebeacon/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the collection endpoint",
		Long: `Run the HTTP endpoint the beacon posts to.

Accepted events are stored in SQLite and, when kafka.brokers is configured,
published to kafka.topic as well. Stops on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if address != "" {
				rootOpts.Config.Server.Address = address
			}
			return runServe(rootOpts)
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "listen address (overrides server.address)")
	return cmd
}

func runServe(opts *RootOptions) error {
	cfg := opts.Config
	logger := opts.Logger

	if err := os.MkdirAll(filepath.Dir(cfg.Server.DatabasePath), 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := database.NewDatabase(cfg.Server.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	sinks := server.Sinks{db}
	if len(cfg.Kafka.Brokers) > 0 {
		pub := publisher.New(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer pub.Close()
		sinks = append(sinks, pub)
		logger.Info("forwarding events to kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	logger.Info("storing events", "database", cfg.Server.DatabasePath)
	return server.NewServer(sinks, cfg.Server.Address, logger).Start()
}
