package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jnywong/jupyterhub-cost-monitoring/internal/cache"
	"github.com/jnywong/jupyterhub-cost-monitoring/internal/domain/entity"
	"github.com/jnywong/jupyterhub-cost-monitoring/internal/domain/repository"
)

// mockBilling is a hand-written BillingRepository double returning canned
// responses per cost scope.
type mockBilling struct {
	serviceCosts map[repository.CostScope][]entity.ServiceCost
	accountCosts []entity.TotalCost
	attribCosts  []entity.TotalCost
	hubCosts     []entity.TotalCost
	hubNames     []string

	serviceCalls int
}

func (m *mockBilling) ListHubNames(ctx context.Context, dr entity.DateRange) ([]string, error) {
	return m.hubNames, nil
}

func (m *mockBilling) GetTotalCosts(ctx context.Context, dr entity.DateRange, attributableOnly bool) ([]entity.TotalCost, error) {
	if attributableOnly {
		return m.attribCosts, nil
	}
	return m.accountCosts, nil
}

func (m *mockBilling) GetTotalCostsPerHub(ctx context.Context, dr entity.DateRange) ([]entity.TotalCost, error) {
	return m.hubCosts, nil
}

func (m *mockBilling) GetCostsPerService(ctx context.Context, dr entity.DateRange, hubName string, scope repository.CostScope) ([]entity.ServiceCost, error) {
	m.serviceCalls++
	return m.serviceCosts[scope], nil
}

func (m *mockBilling) GetAccountID(ctx context.Context) (string, error) {
	return "123456789012", nil
}

type mockMetrics struct {
	usage  []entity.UsageRecord
	groups []entity.UserGroupMembership
}

func (m *mockMetrics) GetUsage(ctx context.Context, dr entity.DateRange, componentName string) ([]entity.UsageRecord, error) {
	if componentName == "" {
		return m.usage, nil
	}
	var out []entity.UsageRecord
	for _, r := range m.usage {
		if r.Component == componentName {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockMetrics) GetUserGroups(ctx context.Context, dr entity.DateRange) ([]entity.UserGroupMembership, error) {
	return m.groups, nil
}

func serviceCost(date, service string, amount float64) entity.ServiceCost {
	return entity.ServiceCost{Date: date, Service: service, Amount: amount}
}

func testDateRange() entity.DateRange {
	return entity.NewDateRange(
		time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC),
	)
}

// reclassifyBilling seeds billing data that reclassifies into
// compute=8.85, home storage=7.22, core=11.13 on 2025-09-01.
func reclassifyBilling() *mockBilling {
	return &mockBilling{
		serviceCosts: map[repository.CostScope][]entity.ServiceCost{
			repository.CostScopeBase: {
				serviceCost("2025-09-01", "EC2 - Other", 25.0),
				serviceCost("2025-09-01", "Amazon Elastic Compute Cloud - Compute", 2.20),
			},
			repository.CostScopeHomeStorage: {
				serviceCost("2025-09-01", "EC2 - Other", 7.22),
			},
			repository.CostScopeCore: {
				serviceCost("2025-09-01", "EC2 - Other", 8.93),
				serviceCost("2025-09-01", "Amazon Elastic Compute Cloud - Compute", 2.20),
			},
		},
	}
}

func newTestUseCase(billing repository.BillingRepository, metricsRepo repository.MetricsRepository) *AllocationUseCase {
	return NewAllocationUseCase(billing, metricsRepo, cache.New(time.Minute), nil)
}

func TestTotalCostsPerComponentReclassification(t *testing.T) {
	uc := newTestUseCase(reclassifyBilling(), &mockMetrics{})

	costs, err := uc.TotalCostsPerComponent(context.Background(), testDateRange(), "", "")
	require.NoError(t, err)

	byComponent := make(map[string]float64)
	for _, c := range costs {
		require.Equal(t, "2025-09-01", c.Date)
		byComponent[c.Component] = c.Cost
	}

	assert.InDelta(t, 8.85, byComponent[entity.ComponentCompute], 1e-9)
	assert.InDelta(t, 7.22, byComponent[entity.ComponentHomeStorage], 1e-9)
	assert.InDelta(t, 11.13, byComponent[entity.ComponentCore], 1e-9)

	// Corrections only move cost between components.
	total := 0.0
	for _, v := range byComponent {
		total += v
	}
	assert.InDelta(t, 27.20, total, 1e-9)
}

func TestTotalCostsPerComponentComponentFilter(t *testing.T) {
	uc := newTestUseCase(reclassifyBilling(), &mockMetrics{})

	costs, err := uc.TotalCostsPerComponent(context.Background(), testDateRange(), "", entity.ComponentCore)
	require.NoError(t, err)

	require.Len(t, costs, 1)
	assert.Equal(t, entity.ComponentCore, costs[0].Component)
	assert.InDelta(t, 11.13, costs[0].Cost, 1e-9)
}

func TestTotalCostsPerComponentFloorsComputeAtZero(t *testing.T) {
	billing := &mockBilling{
		serviceCosts: map[repository.CostScope][]entity.ServiceCost{
			repository.CostScopeBase: {
				serviceCost("2025-09-01", "EC2 - Other", 5.0),
			},
			repository.CostScopeCore: {
				// Exceeds the whole compute bucket.
				serviceCost("2025-09-01", "EC2 - Other", 9.0),
			},
		},
	}
	uc := newTestUseCase(billing, &mockMetrics{})

	costs, err := uc.TotalCostsPerComponent(context.Background(), testDateRange(), "", "")
	require.NoError(t, err)

	byComponent := make(map[string]float64)
	for _, c := range costs {
		byComponent[c.Component] = c.Cost
	}
	assert.Zero(t, byComponent[entity.ComponentCompute])
	assert.InDelta(t, 9.0, byComponent[entity.ComponentCore], 1e-9)
}

func TestTotalCostsPerComponentCachesBackendCalls(t *testing.T) {
	billing := reclassifyBilling()
	uc := newTestUseCase(billing, &mockMetrics{})

	_, err := uc.TotalCostsPerComponent(context.Background(), testDateRange(), "", "")
	require.NoError(t, err)
	_, err = uc.TotalCostsPerComponent(context.Background(), testDateRange(), "", "")
	require.NoError(t, err)

	// base + home-storage + core, once.
	assert.Equal(t, 3, billing.serviceCalls)
}

func TestTotalCostsPerUserDistributesComponentCosts(t *testing.T) {
	metricsRepo := &mockMetrics{
		usage: []entity.UsageRecord{
			{Date: "2025-09-01", Hub: "staging", User: "A", Component: entity.ComponentCompute, Value: 60},
			{Date: "2025-09-01", Hub: "staging", User: "B", Component: entity.ComponentCompute, Value: 40},
		},
	}
	uc := newTestUseCase(reclassifyBilling(), metricsRepo)

	costs, err := uc.TotalCostsPerUser(context.Background(), testDateRange(), "", entity.ComponentCompute, "", "", 0)
	require.NoError(t, err)
	require.Len(t, costs, 2)

	byUser := make(map[string]float64)
	var sum float64
	for _, c := range costs {
		assert.Equal(t, entity.NoUserGroup, c.UserGroup)
		byUser[c.User] = c.Value
		sum += c.Value
	}
	assert.InDelta(t, 5.31, byUser["A"], 1e-9)
	assert.InDelta(t, 3.54, byUser["B"], 1e-9)
	assert.InDelta(t, 8.85, sum, 1e-9)

	// Sorted highest cost first within (date, hub, component).
	assert.Equal(t, "A", costs[0].User)
}

func TestTotalCostsPerUserExcludesBinderHub(t *testing.T) {
	metricsRepo := &mockMetrics{
		usage: []entity.UsageRecord{
			{Date: "2025-09-01", Hub: "binder", User: "A", Component: entity.ComponentCompute, Value: 50},
			{Date: "2025-09-01", Hub: "staging", User: "B", Component: entity.ComponentCompute, Value: 50},
		},
	}
	uc := newTestUseCase(reclassifyBilling(), metricsRepo)

	costs, err := uc.TotalCostsPerUser(context.Background(), testDateRange(), "", "", "", "", 0)
	require.NoError(t, err)

	for _, c := range costs {
		assert.NotEqual(t, "binder", c.Hub)
	}
}

func TestTotalCostsPerUserDropsRecordsWithoutCostEntry(t *testing.T) {
	metricsRepo := &mockMetrics{
		usage: []entity.UsageRecord{
			{Date: "2025-09-01", Hub: "staging", User: "A", Component: entity.ComponentCompute, Value: 1},
			// No cost entry exists for this date.
			{Date: "2025-09-05", Hub: "staging", User: "A", Component: entity.ComponentCompute, Value: 1},
		},
	}
	uc := newTestUseCase(reclassifyBilling(), metricsRepo)

	costs, err := uc.TotalCostsPerUser(context.Background(), testDateRange(), "", "", "", "", 0)
	require.NoError(t, err)

	require.Len(t, costs, 1)
	assert.Equal(t, "2025-09-01", costs[0].Date)
}

func TestTotalCostsPerUserGroupFanOut(t *testing.T) {
	metricsRepo := &mockMetrics{
		usage: []entity.UsageRecord{
			{Date: "2025-09-01", Hub: "staging", User: "A", Component: entity.ComponentCompute, Value: 60},
			{Date: "2025-09-01", Hub: "staging", User: "B", Component: entity.ComponentCompute, Value: 40},
		},
		groups: []entity.UserGroupMembership{
			{Hub: "staging", Username: "A", UserGroup: "researchers"},
			{Hub: "staging", Username: "A", UserGroup: "admins"},
			// Duplicate membership must not clone twice.
			{Hub: "staging", Username: "A", UserGroup: "admins"},
		},
	}
	uc := newTestUseCase(reclassifyBilling(), metricsRepo)

	costs, err := uc.TotalCostsPerUser(context.Background(), testDateRange(), "", entity.ComponentCompute, "", "", 0)
	require.NoError(t, err)

	groupsForA := make(map[string]float64)
	for _, c := range costs {
		if c.User == "A" {
			groupsForA[c.UserGroup] = c.Value
		}
	}
	require.Len(t, groupsForA, 2)
	assert.InDelta(t, 5.31, groupsForA["researchers"], 1e-9)
	assert.InDelta(t, 5.31, groupsForA["admins"], 1e-9)

	for _, c := range costs {
		if c.User == "B" {
			assert.Equal(t, entity.NoUserGroup, c.UserGroup)
		}
	}
}

func TestTotalCostsPerUserUserGroupFilter(t *testing.T) {
	metricsRepo := &mockMetrics{
		usage: []entity.UsageRecord{
			{Date: "2025-09-01", Hub: "staging", User: "A", Component: entity.ComponentCompute, Value: 60},
			{Date: "2025-09-01", Hub: "staging", User: "B", Component: entity.ComponentCompute, Value: 40},
		},
		groups: []entity.UserGroupMembership{
			{Hub: "staging", Username: "A", UserGroup: "researchers"},
		},
	}
	uc := newTestUseCase(reclassifyBilling(), metricsRepo)

	costs, err := uc.TotalCostsPerUser(context.Background(), testDateRange(), "", "", "", "researchers", 0)
	require.NoError(t, err)

	require.Len(t, costs, 1)
	assert.Equal(t, "A", costs[0].User)
}

func TestTotalCostsPerUserTopNLimit(t *testing.T) {
	metricsRepo := &mockMetrics{
		usage: []entity.UsageRecord{
			{Date: "2025-09-01", Hub: "staging", User: "A", Component: entity.ComponentCompute, Value: 50},
			{Date: "2025-09-01", Hub: "staging", User: "B", Component: entity.ComponentCompute, Value: 30},
			{Date: "2025-09-01", Hub: "staging", User: "C", Component: entity.ComponentCompute, Value: 20},
		},
	}
	uc := newTestUseCase(reclassifyBilling(), metricsRepo)

	costs, err := uc.TotalCostsPerUser(context.Background(), testDateRange(), "", entity.ComponentCompute, "", "", 2)
	require.NoError(t, err)

	users := make(map[string]struct{})
	for _, c := range costs {
		users[c.User] = struct{}{}
	}
	assert.Equal(t, map[string]struct{}{"A": {}, "B": {}}, users)
}

func TestTotalCostsPerUserTopNLimitTieBreaksByName(t *testing.T) {
	metricsRepo := &mockMetrics{
		usage: []entity.UsageRecord{
			{Date: "2025-09-01", Hub: "staging", User: "zoe", Component: entity.ComponentCompute, Value: 25},
			{Date: "2025-09-01", Hub: "staging", User: "amy", Component: entity.ComponentCompute, Value: 25},
			{Date: "2025-09-01", Hub: "staging", User: "bob", Component: entity.ComponentCompute, Value: 50},
		},
	}
	uc := newTestUseCase(reclassifyBilling(), metricsRepo)

	costs, err := uc.TotalCostsPerUser(context.Background(), testDateRange(), "", entity.ComponentCompute, "", "", 2)
	require.NoError(t, err)

	users := make(map[string]struct{})
	for _, c := range costs {
		users[c.User] = struct{}{}
	}
	assert.Contains(t, users, "bob")
	assert.Contains(t, users, "amy")
	assert.NotContains(t, users, "zoe")
}

func TestTotalCostsPerGroupRollsUpUserCosts(t *testing.T) {
	metricsRepo := &mockMetrics{
		usage: []entity.UsageRecord{
			{Date: "2025-09-01", Hub: "staging", User: "A", Component: entity.ComponentCompute, Value: 60},
			{Date: "2025-09-01", Hub: "staging", User: "B", Component: entity.ComponentCompute, Value: 40},
		},
		groups: []entity.UserGroupMembership{
			{Hub: "staging", Username: "A", UserGroup: "researchers"},
			{Hub: "staging", Username: "B", UserGroup: "researchers"},
		},
	}
	uc := newTestUseCase(reclassifyBilling(), metricsRepo)

	groupCosts, err := uc.TotalCostsPerGroup(context.Background(), testDateRange())
	require.NoError(t, err)

	byGroup := make(map[string]float64)
	for _, g := range groupCosts {
		byGroup[g.UserGroup] += g.Cost
	}
	assert.InDelta(t, 8.85, byGroup["researchers"], 1e-9)
}

func TestTotalUsageReturnsNormalizedShares(t *testing.T) {
	metricsRepo := &mockMetrics{
		usage: []entity.UsageRecord{
			{Date: "2025-09-01", Hub: "staging", User: "A", Component: entity.ComponentCompute, Value: 60},
			{Date: "2025-09-01", Hub: "staging", User: "B", Component: entity.ComponentCompute, Value: 40},
		},
	}
	uc := newTestUseCase(&mockBilling{}, metricsRepo)

	shares, err := uc.TotalUsage(context.Background(), testDateRange(), "", "", "")
	require.NoError(t, err)

	require.Len(t, shares, 2)
	assert.InDelta(t, 0.6, shares[0].Value, 1e-9)
	assert.InDelta(t, 0.4, shares[1].Value, 1e-9)
}

func TestTotalUsageUserFilterKeepsGlobalShares(t *testing.T) {
	metricsRepo := &mockMetrics{
		usage: []entity.UsageRecord{
			{Date: "2025-09-01", Hub: "staging", User: "A", Component: entity.ComponentCompute, Value: 60},
			{Date: "2025-09-01", Hub: "staging", User: "B", Component: entity.ComponentCompute, Value: 40},
		},
	}
	uc := newTestUseCase(&mockBilling{}, metricsRepo)

	shares, err := uc.TotalUsage(context.Background(), testDateRange(), "", "", "B")
	require.NoError(t, err)

	// Normalization runs before filtering, so B's share stays 0.4 rather
	// than becoming 1.0.
	require.Len(t, shares, 1)
	assert.Equal(t, "B", shares[0].User)
	assert.InDelta(t, 0.4, shares[0].Value, 1e-9)
}

func TestTotalCostsConcatenatesAndSortsByDate(t *testing.T) {
	billing := &mockBilling{
		accountCosts: []entity.TotalCost{
			{Date: "2025-09-02", Name: "account", Cost: 40.0},
			{Date: "2025-09-01", Name: "account", Cost: 30.0},
		},
		attribCosts: []entity.TotalCost{
			{Date: "2025-09-01", Name: "attributable", Cost: 27.20},
			{Date: "2025-09-02", Name: "attributable", Cost: 35.50},
		},
	}
	uc := newTestUseCase(billing, &mockMetrics{})

	costs, err := uc.TotalCosts(context.Background(), testDateRange())
	require.NoError(t, err)

	require.Len(t, costs, 4)
	assert.Equal(t, "2025-09-01", costs[0].Date)
	assert.Equal(t, "2025-09-01", costs[1].Date)
	assert.Equal(t, "2025-09-02", costs[2].Date)
	// Stable sort keeps account before attributable within a date.
	assert.Equal(t, "account", costs[0].Name)
	assert.Equal(t, "attributable", costs[1].Name)
}

func TestHubNames(t *testing.T) {
	billing := &mockBilling{hubNames: []string{"staging", "prod", "support"}}
	uc := newTestUseCase(billing, &mockMetrics{})

	names, err := uc.HubNames(context.Background(), testDateRange())
	require.NoError(t, err)
	assert.Equal(t, []string{"staging", "prod", "support"}, names)
}
