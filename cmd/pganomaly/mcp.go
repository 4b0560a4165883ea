package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rmax-ai/pganomaly/pkg/mcp"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the pganomaly API to MCP clients over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer syncLogger(logger)
			logger.Info("mcp_serving", zap.String("api_url", settings.APIURL))
			return mcp.NewServer(settings.APIURL).Serve()
		},
	}
	cmd.Flags().String("api-url", defaultAPIURL, "pganomaly API ("+keyAPIURL+")")
	return cmd
}
