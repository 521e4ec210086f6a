package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jnywong/jupyterhub-cost-monitoring/internal/adapter/driving/web"
	"github.com/jnywong/jupyterhub-cost-monitoring/internal/application/usecase"
	"github.com/jnywong/jupyterhub-cost-monitoring/internal/domain/entity"
	"github.com/jnywong/jupyterhub-cost-monitoring/internal/domain/repository"
	"github.com/jnywong/jupyterhub-cost-monitoring/internal/logging"
	"github.com/jnywong/jupyterhub-cost-monitoring/internal/shared/types"
	"github.com/jnywong/jupyterhub-cost-monitoring/pkg/console"
	"github.com/jnywong/jupyterhub-cost-monitoring/pkg/version"
)

// UseCaseFactory builds the allocation engine from a resolved configuration.
// Injected by main so the CLI stays free of AWS and Prometheus client setup.
type UseCaseFactory func(ctx context.Context, cfg *types.Config) (*usecase.AllocationUseCase, error)

// CLIApp represents the command-line interface application.
type CLIApp struct {
	rootCmd    *cobra.Command
	configRepo repository.ConfigRepository
	exportRepo repository.ExportRepository
	factory    UseCaseFactory
	console    *console.Console
}

// NewCLIApp creates the CLI application.
func NewCLIApp(configRepo repository.ConfigRepository, exportRepo repository.ExportRepository, factory UseCaseFactory) *CLIApp {
	app := &CLIApp{
		configRepo: configRepo,
		exportRepo: exportRepo,
		factory:    factory,
		console:    console.NewConsole(),
	}

	rootCmd := &cobra.Command{
		Use:     "jupyterhub-cost-monitoring",
		Short:   "Cost allocation for multi-tenant JupyterHub deployments on AWS",
		Version: version.FormatVersion(),
	}
	rootCmd.SetVersionTemplate(`{{printf "jupyterhub-cost-monitoring version: %s\n" .Version}}`)

	rootCmd.PersistentFlags().StringP("config-file", "C", "", "Path to a TOML, YAML, or JSON configuration file")

	rootCmd.AddCommand(app.newServeCommand())
	rootCmd.AddCommand(app.newReportCommand())

	app.rootCmd = rootCmd
	return app
}

// Execute runs the CLI application.
func (app *CLIApp) Execute() error {
	return app.rootCmd.Execute()
}

func (app *CLIApp) loadConfig(cmd *cobra.Command) (*types.Config, error) {
	configFile, _ := cmd.Flags().GetString("config-file")
	cfg, err := app.configRepo.Load(configFile)
	if err != nil {
		return nil, err
	}
	if cfg.ClusterName == "" {
		return nil, types.ErrMissingClusterName
	}
	return cfg, nil
}

func (app *CLIApp) newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the cost allocation API server",
		RunE:  app.runServe,
	}
	cmd.Flags().String("host", "", "Listen host (overrides config)")
	cmd.Flags().Int("port", 0, "Listen port (overrides config)")
	return cmd
}

func (app *CLIApp) runServe(cmd *cobra.Command, args []string) error {
	cfg, err := app.loadConfig(cmd)
	if err != nil {
		return err
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Port = port
	}

	logger := logging.Setup(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	allocation, err := app.factory(ctx, cfg)
	if err != nil {
		return err
	}

	server := web.New(allocation,
		web.WithHost(cfg.Host),
		web.WithPort(cfg.Port),
		web.WithLogger(logger))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()
	server.SetReady(true)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func (app *CLIApp) newReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render and export a cost allocation report",
		RunE:  app.runReport,
	}
	cmd.Flags().String("from", "", "Start date (YYYY-MM-DD, default: 30 days before 'to')")
	cmd.Flags().String("to", "", "End date (YYYY-MM-DD, default: today)")
	cmd.Flags().String("hub", "", "Filter by hub name ('support' selects untagged costs)")
	cmd.Flags().String("component", "", "Filter by component name")
	cmd.Flags().String("user", "", "Filter by user name")
	cmd.Flags().String("usergroup", "", "Filter by user group")
	cmd.Flags().Int("limit", 0, "Keep only the top N users by total cost")
	cmd.Flags().StringP("report-name", "n", "cost-report", "Base name for report files (without extension)")
	cmd.Flags().StringSliceP("report-type", "y", nil, "Export report types: csv, json, pdf")
	cmd.Flags().StringP("dir", "d", "", "Directory to save report files (default: current directory)")
	return cmd
}

func (app *CLIApp) parseReportArgs(cmd *cobra.Command) (*types.ReportArgs, error) {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	hub, _ := cmd.Flags().GetString("hub")
	component, _ := cmd.Flags().GetString("component")
	user, _ := cmd.Flags().GetString("user")
	userGroup, _ := cmd.Flags().GetString("usergroup")
	limit, _ := cmd.Flags().GetInt("limit")
	reportName, _ := cmd.Flags().GetString("report-name")
	reportType, _ := cmd.Flags().GetStringSlice("report-type")
	dir, _ := cmd.Flags().GetString("dir")

	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		dir = cwd
	} else {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			return nil, err
		}
		dir = absDir
	}

	return &types.ReportArgs{
		From:       from,
		To:         to,
		Hub:        hub,
		Component:  component,
		User:       user,
		UserGroup:  userGroup,
		Limit:      limit,
		ReportName: reportName,
		ReportType: reportType,
		Dir:        dir,
	}, nil
}

func (app *CLIApp) runReport(cmd *cobra.Command, args []string) error {
	displayWelcomeBanner()

	cfg, err := app.loadConfig(cmd)
	if err != nil {
		return err
	}
	logging.Setup(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	reportArgs, err := app.parseReportArgs(cmd)
	if err != nil {
		return err
	}

	dateRange, err := resolveDateRange(reportArgs.From, reportArgs.To)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	allocation, err := app.factory(ctx, cfg)
	if err != nil {
		return err
	}

	spinner := app.console.Status("Querying cost and usage backends...")

	componentCosts, err := allocation.TotalCostsPerComponent(ctx, dateRange, reportArgs.Hub, reportArgs.Component)
	if err != nil {
		spinner.Fail("Component cost query failed")
		return err
	}

	userCosts, err := allocation.TotalCostsPerUser(ctx, dateRange,
		reportArgs.Hub, reportArgs.Component, reportArgs.User, reportArgs.UserGroup, reportArgs.Limit)
	if err != nil {
		spinner.Fail("Per-user cost query failed")
		return err
	}
	spinner.Success("Cost data collected")

	from, to := dateRange.AWSRange()
	periodDates := fmt.Sprintf("%s to %s", from, to)

	app.console.LogInfo("Component costs (%s)", periodDates)
	app.console.Println(app.console.RenderComponentCosts(componentCosts))

	app.console.LogInfo("Per-user costs (%s)", periodDates)
	app.console.Println(app.console.RenderUserCosts(userCosts))

	return app.exportReports(userCosts, componentCosts, reportArgs, periodDates)
}

func (app *CLIApp) exportReports(userCosts []entity.UserCost, componentCosts []entity.ComponentCost, reportArgs *types.ReportArgs, periodDates string) error {
	for _, reportType := range reportArgs.ReportType {
		var path string
		var err error
		switch strings.ToLower(reportType) {
		case "csv":
			path, err = app.exportRepo.ExportUserCostsToCSV(userCosts, reportArgs.ReportName, reportArgs.Dir)
			if err == nil {
				_, err = app.exportRepo.ExportComponentCostsToCSV(componentCosts, reportArgs.ReportName+"_components", reportArgs.Dir)
			}
		case "json":
			path, err = app.exportRepo.ExportUserCostsToJSON(userCosts, reportArgs.ReportName, reportArgs.Dir)
			if err == nil {
				_, err = app.exportRepo.ExportComponentCostsToJSON(componentCosts, reportArgs.ReportName+"_components", reportArgs.Dir)
			}
		case "pdf":
			path, err = app.exportRepo.ExportUserCostsToPDF(userCosts, reportArgs.ReportName, reportArgs.Dir, periodDates)
		default:
			app.console.LogWarning("Unknown report type: %s", reportType)
			continue
		}
		if err != nil {
			app.console.LogError("Failed to export %s report: %v", reportType, err)
			return err
		}
		app.console.LogSuccess("Exported %s report to %s", reportType, path)
	}
	return nil
}

// resolveDateRange applies the same defaults as the HTTP API: to defaults to
// today (UTC), from to 30 days earlier.
func resolveDateRange(fromStr, toStr string) (entity.DateRange, error) {
	now := time.Now().UTC().Truncate(24 * time.Hour)

	to := now
	if toStr != "" {
		t, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			return entity.DateRange{}, fmt.Errorf("invalid 'to' date %q: %w", toStr, err)
		}
		to = t
	}

	from := to.AddDate(0, 0, -30)
	if fromStr != "" {
		t, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			return entity.DateRange{}, fmt.Errorf("invalid 'from' date %q: %w", fromStr, err)
		}
		from = t
	}

	if to.After(now) {
		to = now
	}
	if !from.Before(now) {
		from = to.AddDate(0, 0, -1)
	}

	return entity.NewDateRange(from, to), nil
}
