package repository

import (
	"context"

	"github.com/jnywong/jupyterhub-cost-monitoring/internal/domain/entity"
)

// CostScope selects which additional predicate the billing adapter layers
// onto the base attribution filter for a per-service cost query.
type CostScope string

const (
	// CostScopeBase queries all attributable usage costs.
	CostScopeBase CostScope = "base"
	// CostScopeHomeStorage narrows to volumes tagged as home directory storage.
	CostScopeHomeStorage CostScope = "home-storage"
	// CostScopeCore narrows to fixed infrastructure costs: core node compute
	// and storage, the shared NAT gateway, hub database volumes and
	// monitoring-stack volumes.
	CostScopeCore CostScope = "core"
)

// BillingRepository defines the billing backend interactions the allocation
// engine needs. Hub name arguments use "" for no filter and "support" for
// costs carrying no hub tag.
type BillingRepository interface {
	// ListHubNames enumerates the hub tag values seen in the range, mapping
	// the empty tag value to "support".
	ListHubNames(ctx context.Context, dateRange entity.DateRange) ([]string, error)

	// GetTotalCosts returns daily cost totals, either for the whole account
	// or restricted to costs attributable to the monitored cluster.
	GetTotalCosts(ctx context.Context, dateRange entity.DateRange, attributableOnly bool) ([]entity.TotalCost, error)

	// GetTotalCostsPerHub returns daily attributable cost totals grouped by
	// hub tag value, with untagged costs reported under "support".
	GetTotalCostsPerHub(ctx context.Context, dateRange entity.DateRange) ([]entity.TotalCost, error)

	// GetCostsPerService returns raw daily costs grouped by billing service,
	// filtered to the given scope and optionally to a single hub.
	GetCostsPerService(ctx context.Context, dateRange entity.DateRange, hubName string, scope CostScope) ([]entity.ServiceCost, error)

	// GetAccountID returns the identity of the billed account.
	GetAccountID(ctx context.Context) (string, error)
}
