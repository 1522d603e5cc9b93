package cmd

import (
	"albumapi/logger"
	"albumapi/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP API server",
	Long:  `Start the HTTP server exposing the album and track resources.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd)
	},
}

var serverAddr string

func runServer(cmd *cobra.Command) error {
	cfg := loadConfig()
	defer logger.Sync()

	if serverAddr != "" {
		cfg.ServerAddr = serverAddr
	}
	return server.Start(cmd.Context(), cfg)
}

func init() {
	serverCmd.Flags().StringVar(&serverAddr, "addr", "", "listen address, overrides SERVER_ADDR")
	rootCmd.AddCommand(serverCmd)
}
