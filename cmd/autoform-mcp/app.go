package main

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"autoform-mcp/internal/autoform"
	"autoform-mcp/internal/config"
	"autoform-mcp/internal/telemetry"
	"autoform-mcp/internal/tools"
)

// app is the wired process: one shared HTTP client, the registry built on it,
// and the MCP server exposing the registry.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *prometheus.Registry
	registry *tools.Registry
	server   *mcp.Server
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewPrometheusMetrics(promRegistry)

	client := autoform.New(cfg.BaseURL, cfg.PrivateAccessToken, &http.Client{Timeout: cfg.Timeout})
	client.Logger = logger.Named("autoform")
	client.Observer = metrics

	registry := tools.NewRegistry(logger, metrics)
	if err := tools.RegisterAutoform(registry, client); err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  promRegistry,
		registry: registry,
		server:   tools.NewServer(version, registry, cfg.BaseURL),
	}, nil
}
