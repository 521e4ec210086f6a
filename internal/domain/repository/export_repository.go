package repository

import "github.com/jnywong/jupyterhub-cost-monitoring/internal/domain/entity"

// ExportRepository defines file export of allocation reports.
type ExportRepository interface {
	ExportUserCostsToCSV(entries []entity.UserCost, filename, outputDir string) (string, error)
	ExportUserCostsToJSON(entries []entity.UserCost, filename, outputDir string) (string, error)
	ExportUserCostsToPDF(entries []entity.UserCost, filename, outputDir, periodDates string) (string, error)

	ExportComponentCostsToCSV(entries []entity.ComponentCost, filename, outputDir string) (string, error)
	ExportComponentCostsToJSON(entries []entity.ComponentCost, filename, outputDir string) (string, error)
}
