package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/d60-Lab/gin-board/config"
	"github.com/d60-Lab/gin-board/internal/backend"
	"github.com/d60-Lab/gin-board/internal/service"
	"github.com/d60-Lab/gin-board/pkg/database"
	"github.com/d60-Lab/gin-board/pkg/logger"
)

func migrateCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update all tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			client, err := backend.New(cfg.Backend, backend.Options{Database: database.DefaultOptions()})
			if err != nil {
				return err
			}
			defer client.Close()
			if err := client.Migrate(cmd.Context()); err != nil {
				return err
			}
			logger.Info("migration complete")
			return nil
		},
	}
}

func exportIDsCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		build bool
		limit int
	)
	cmd := &cobra.Command{
		Use:   "export-ids",
		Short: "Print the post ids to pre-render as JSON",
		Long: `Prints the detail-page ids for a static export.

With --build, missing backend configuration yields a placeholder client
instead of an error, and the output falls back to the placeholder post id.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			client, err := backend.New(cfg.Backend, backend.Options{BuildMode: build, Database: database.DefaultOptions()})
			if err != nil {
				return err
			}
			defer client.Close()

			if limit <= 0 {
				limit = cfg.Board.ExportLimit
			}
			ids := service.StaticPostIDs(cmd.Context(), service.NewPostService(client, service.PostServiceOptions{}), limit)
			logger.Debug("export ids", zap.Int("count", len(ids)), zap.Bool("placeholder", client.Placeholder()))

			out, err := json.Marshal(map[string][]string{"ids": ids})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&build, "build", false, "build mode: tolerate missing backend configuration")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of ids (default board.export_limit)")
	return cmd
}
