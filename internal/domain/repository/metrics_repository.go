package repository

import (
	"context"

	"github.com/jnywong/jupyterhub-cost-monitoring/internal/domain/entity"
)

// MetricsRepository defines the usage backend interactions the allocation
// engine needs.
type MetricsRepository interface {
	// GetUsage returns absolute per-day, per-user usage for one component, or
	// for every configured component when componentName is "". Sub-day
	// samples are already summed into day buckets.
	GetUsage(ctx context.Context, dateRange entity.DateRange, componentName string) ([]entity.UsageRecord, error)

	// GetUserGroups returns the distinct user-to-group memberships observed
	// in the range.
	GetUserGroups(ctx context.Context, dateRange entity.DateRange) ([]entity.UserGroupMembership, error)
}
