package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"autoform-mcp/internal/autoform"
	"autoform-mcp/internal/config"
	"autoform-mcp/internal/server"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tools over stdio, streamable HTTP or SSE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, opts.logger)
	if err != nil {
		return err
	}
	if cfg.PrivateAccessToken == "" {
		a.logger.Warn(autoform.TokenEnv + " not set; every call must carry a token header")
	}

	ctx, cancel := signalAwareContext(cmd.Context())
	defer cancel()

	switch cfg.Transport {
	case config.TransportStdio:
		a.logger.Info("starting MCP server", zap.String("transport", cfg.Transport), zap.String("base_url", cfg.BaseURL))
		err = a.server.Run(ctx, &mcp.StdioTransport{})
	case config.TransportHTTP, config.TransportSSE:
		srv := server.New(server.Config{
			Transport:   cfg.Transport,
			TLSCertFile: cfg.TLSCertFile,
			TLSKeyFile:  cfg.TLSKeyFile,
		}, a.registry, a.server, a.metrics, a.logger)
		err = srv.ListenAndServe(ctx, cfg.Addr)
	default:
		return fmt.Errorf("unsupported transport: %s", cfg.Transport)
	}
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return nil
	}
	return err
}
