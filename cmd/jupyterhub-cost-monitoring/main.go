package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jnywong/jupyterhub-cost-monitoring/internal/adapter/driven/aws"
	"github.com/jnywong/jupyterhub-cost-monitoring/internal/adapter/driven/config"
	"github.com/jnywong/jupyterhub-cost-monitoring/internal/adapter/driven/export"
	"github.com/jnywong/jupyterhub-cost-monitoring/internal/adapter/driven/prometheus"
	"github.com/jnywong/jupyterhub-cost-monitoring/internal/adapter/driving/cli"
	"github.com/jnywong/jupyterhub-cost-monitoring/internal/application/usecase"
	"github.com/jnywong/jupyterhub-cost-monitoring/internal/cache"
	"github.com/jnywong/jupyterhub-cost-monitoring/internal/shared/types"
)

func main() {
	configRepo := config.NewConfigRepository()
	exportRepo := export.NewExportRepository()

	factory := func(ctx context.Context, cfg *types.Config) (*usecase.AllocationUseCase, error) {
		logger := slog.Default()

		billingRepo, err := aws.NewCostExplorerRepository(ctx, cfg.ClusterName, logger)
		if err != nil {
			return nil, err
		}
		metricsRepo, err := prometheus.NewRepository(cfg.PrometheusURL, logger)
		if err != nil {
			return nil, err
		}

		queryCache := cache.New(time.Duration(cfg.CacheTTLSeconds) * time.Second)
		return usecase.NewAllocationUseCase(billingRepo, metricsRepo, queryCache, logger), nil
	}

	app := cli.NewCLIApp(configRepo, exportRepo, factory)

	if err := app.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
