// Command board runs the message board API and its maintenance tasks.
//
// @title           Board API
// @version         1.0
// @description     Posts, comments, likes and sessions for a small message board.
// @BasePath        /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name apikey
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/d60-Lab/gin-board/config"
	"github.com/d60-Lab/gin-board/pkg/logger"
)

var (
	Version   = "0.1.0"
	BuildTime = "dev"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "board",
		Short:         "Message board API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (yaml)")

	load := func() (*config.Config, error) {
		cfg, err := config.LoadFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cmd.AddCommand(
		serveCmd(load),
		migrateCmd(load),
		exportIDsCmd(load),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "board version %s (build: %s)\n", Version, BuildTime)
			},
		},
	)
	return cmd
}
