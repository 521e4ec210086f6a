package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/jnywong/jupyterhub-cost-monitoring/internal/cache"
	"github.com/jnywong/jupyterhub-cost-monitoring/internal/domain/entity"
	"github.com/jnywong/jupyterhub-cost-monitoring/internal/domain/repository"
	"github.com/jnywong/jupyterhub-cost-monitoring/internal/metrics"
)

// excludedHub is dropped from per-user results: it serves anonymous sessions
// and carries no stable user identities to attribute costs to.
const excludedHub = "binder"

// AllocationUseCase is the cost-allocation engine. It combines billing costs
// with usage metrics to attribute shared infrastructure costs to hubs, users
// and groups.
type AllocationUseCase struct {
	billing    repository.BillingRepository
	metrics    repository.MetricsRepository
	classifier *Classifier
	cache      *cache.TTLCache
	logger     *slog.Logger
}

// NewAllocationUseCase creates the allocation engine.
func NewAllocationUseCase(
	billing repository.BillingRepository,
	metricsRepo repository.MetricsRepository,
	queryCache *cache.TTLCache,
	logger *slog.Logger,
) *AllocationUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if queryCache == nil {
		queryCache = cache.New(cache.DefaultTTL)
	}
	return &AllocationUseCase{
		billing:    billing,
		metrics:    metricsRepo,
		classifier: NewClassifier(logger),
		cache:      queryCache,
		logger:     logger,
	}
}

func cacheKey(parts ...string) string {
	return strings.Join(parts, "|")
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

// HubNames enumerates hub names seen in the billing data for the range.
func (uc *AllocationUseCase) HubNames(ctx context.Context, dateRange entity.DateRange) ([]string, error) {
	return cache.GetOrCompute(uc.cache, cacheKey("hub-names", dateRange.Key()), func() ([]string, error) {
		return uc.billing.ListHubNames(ctx, dateRange)
	})
}

// TotalCosts reports daily account-wide and attributable cost totals. Not
// every cost can be attributed: accessing the billing API itself, for
// example, carries no ownership tag.
func (uc *AllocationUseCase) TotalCosts(ctx context.Context, dateRange entity.DateRange) ([]entity.TotalCost, error) {
	return cache.GetOrCompute(uc.cache, cacheKey("total-costs", dateRange.Key()), func() ([]entity.TotalCost, error) {
		account, err := uc.billing.GetTotalCosts(ctx, dateRange, false)
		if err != nil {
			return nil, err
		}
		attributable, err := uc.billing.GetTotalCosts(ctx, dateRange, true)
		if err != nil {
			return nil, err
		}

		out := append(account, attributable...)
		sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
		return out, nil
	})
}

// TotalCostsPerHub reports daily attributable cost totals per hub, with
// unattributed costs listed under "support".
func (uc *AllocationUseCase) TotalCostsPerHub(ctx context.Context, dateRange entity.DateRange) ([]entity.TotalCost, error) {
	return cache.GetOrCompute(uc.cache, cacheKey("costs-per-hub", dateRange.Key()), func() ([]entity.TotalCost, error) {
		return uc.billing.GetTotalCostsPerHub(ctx, dateRange)
	})
}

// TotalCostsPerComponent reports daily costs coalesced into logical
// components, after moving home-storage and fixed infrastructure costs out of
// the catch-all compute bucket. hubName and component are optional filters
// ("" means no filter).
//
// The three billing queries run sequentially: base costs, then the
// home-storage correction, then the core correction. Corrections only move
// cost between components; the per-date sum is conserved except when a
// correction exceeds the compute bucket and is floored at zero.
func (uc *AllocationUseCase) TotalCostsPerComponent(ctx context.Context, dateRange entity.DateRange, hubName, component string) ([]entity.ComponentCost, error) {
	key := cacheKey("costs-per-component", dateRange.Key(), hubName, component)
	return cache.GetOrCompute(uc.cache, key, func() ([]entity.ComponentCost, error) {
		raw, err := uc.billing.GetCostsPerService(ctx, dateRange, hubName, repository.CostScopeBase)
		if err != nil {
			return nil, err
		}

		// Coalesce service costs into component costs, indexed by date.
		entriesByDate := make(map[string]map[string]*entity.ComponentCost)
		for _, sc := range raw {
			componentName := uc.classifier.Classify(sc.Service)
			entries := entriesByDate[sc.Date]
			if entries == nil {
				entries = make(map[string]*entity.ComponentCost)
				entriesByDate[sc.Date] = entries
			}
			if e := entries[componentName]; e != nil {
				e.Cost += sc.Amount
			} else {
				entries[componentName] = &entity.ComponentCost{Date: sc.Date, Component: componentName, Cost: sc.Amount}
			}
		}
		for _, entries := range entriesByDate {
			for _, e := range entries {
				e.Cost = round2(e.Cost)
			}
		}

		// EBS volumes and snapshots backing home directories bill under
		// "EC2 - Other" and land in compute above; move them to home storage.
		homeStorage, err := uc.billing.GetCostsPerService(ctx, dateRange, hubName, repository.CostScopeHomeStorage)
		if err != nil {
			return nil, err
		}
		uc.reassign(entriesByDate, homeStorage, entity.ComponentHomeStorage, serviceEC2Other)

		// Core node compute and root volumes, hub database volumes, support
		// volumes and the shared NAT gateway are likewise mapped to compute
		// by default; move them to the core component.
		core, err := uc.billing.GetCostsPerService(ctx, dateRange, hubName, repository.CostScopeCore)
		if err != nil {
			return nil, err
		}
		uc.reassign(entriesByDate, core, entity.ComponentCore, "")

		dates := make([]string, 0, len(entriesByDate))
		for date := range entriesByDate {
			dates = append(dates, date)
		}
		sort.Strings(dates)

		out := make([]entity.ComponentCost, 0, len(raw))
		for _, date := range dates {
			entries := entriesByDate[date]
			names := make([]string, 0, len(entries))
			for name := range entries {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				if component != "" && name != component {
					continue
				}
				out = append(out, *entries[name])
			}
		}
		return out, nil
	})
}

// serviceEC2Other is the billing service whose costs the home-storage
// correction is restricted to.
const serviceEC2Other = "EC2 - Other"

// reassign sums matched raw costs per date, deducts them from that date's
// compute entry (floored at zero) and adds them to the target component,
// creating its entry if needed. When onlyService is non-empty, only rows for
// that billing service count.
func (uc *AllocationUseCase) reassign(entriesByDate map[string]map[string]*entity.ComponentCost, raw []entity.ServiceCost, target, onlyService string) {
	totals := make(map[string]float64)
	for _, sc := range raw {
		if onlyService != "" && sc.Service != onlyService {
			continue
		}
		totals[sc.Date] += sc.Amount
	}

	for date, amount := range totals {
		if amount <= 0 {
			continue
		}
		entries := entriesByDate[date]
		if entries == nil {
			entries = make(map[string]*entity.ComponentCost)
			entriesByDate[date] = entries
		}

		if computeEntry := entries[entity.ComponentCompute]; computeEntry != nil {
			next := computeEntry.Cost - amount
			if next < 0 {
				// A correction larger than the compute bucket signals
				// inconsistent base data, e.g. a node tagged both as core
				// and as belonging to a hub. Conservation is lossy here.
				metrics.ComputeFloorClamps.Inc()
				uc.logger.Warn("cost correction exceeds compute bucket, flooring at zero",
					slog.String("date", date),
					slog.String("target", target),
					slog.Float64("deficit", -next))
				next = 0
			}
			computeEntry.Cost = round2(next)
		}

		if targetEntry := entries[target]; targetEntry != nil {
			targetEntry.Cost = round2(targetEntry.Cost + amount)
		} else {
			entries[target] = &entity.ComponentCost{Date: date, Component: target, Cost: round2(amount)}
		}
	}
}

// TotalUsage returns per-user cost factors for the range: absolute usage is
// fetched per component, then normalized to shares before any user filtering,
// so a single user's share stays relative to everyone on the hub. hubName,
// componentName and userName are optional filters ("" means no filter).
func (uc *AllocationUseCase) TotalUsage(ctx context.Context, dateRange entity.DateRange, hubName, componentName, userName string) ([]entity.UsageRecord, error) {
	key := cacheKey("total-usage", dateRange.Key(), hubName, componentName, userName)
	return cache.GetOrCompute(uc.cache, key, func() ([]entity.UsageRecord, error) {
		records, err := uc.metrics.GetUsage(ctx, dateRange, componentName)
		if err != nil {
			return nil, err
		}

		factors := CalculateDailyCostFactors(records, hubName)

		out := factors[:0]
		for _, f := range factors {
			if hubName != "" && f.Hub != hubName {
				continue
			}
			if userName != "" && f.User != userName {
				continue
			}
			out = append(out, f)
		}
		return out, nil
	})
}

// TotalCostsPerUser attributes component costs to individual users by
// multiplying each user's cost factor with the matching component cost,
// overlaying group membership and applying the optional filters. limit <= 0
// returns all users; otherwise only entries of the limit users with the
// highest summed cost are kept. Results are sorted by (date, hub, component)
// with the highest cost first within each group.
func (uc *AllocationUseCase) TotalCostsPerUser(ctx context.Context, dateRange entity.DateRange, hubName, componentName, userName, userGroup string, limit int) ([]entity.UserCost, error) {
	key := cacheKey("costs-per-user", dateRange.Key(), hubName, componentName, userName, userGroup, fmt.Sprintf("%d", limit))
	return cache.GetOrCompute(uc.cache, key, func() ([]entity.UserCost, error) {
		componentCosts, err := uc.TotalCostsPerComponent(ctx, dateRange, hubName, componentName)
		if err != nil {
			return nil, err
		}
		costIndex := make(map[[2]string]float64, len(componentCosts))
		for _, cc := range componentCosts {
			costIndex[[2]string{cc.Date, cc.Component}] = cc.Cost
		}

		factors, err := uc.TotalUsage(ctx, dateRange, hubName, componentName, userName)
		if err != nil {
			return nil, err
		}

		results := make([]entity.UserCost, 0, len(factors))
		for _, f := range factors {
			cost, ok := costIndex[[2]string{f.Date, f.Component}]
			if !ok {
				// No cost could be attributed to this usage record. The drop
				// is deliberate but can mask misattribution, so it is counted
				// and traced rather than silently ignored.
				metrics.UsageRecordsDropped.Inc()
				uc.logger.Debug("dropping usage record with no matching component cost",
					slog.String("date", f.Date),
					slog.String("component", f.Component),
					slog.String("user", f.User))
				continue
			}
			if f.Hub == excludedHub {
				continue
			}
			results = append(results, entity.UserCost{
				Date:      f.Date,
				Hub:       f.Hub,
				Component: f.Component,
				User:      f.User,
				Value:     round4(f.Value * cost),
			})
		}

		groups, err := uc.metrics.GetUserGroups(ctx, dateRange)
		if err != nil {
			return nil, err
		}
		results = attachUserGroups(results, groups)

		if limit > 0 {
			results = limitTopUsers(results, limit)
		}

		filtered := results[:0]
		for _, r := range results {
			if hubName != "" && r.Hub != hubName {
				continue
			}
			if componentName != "" && r.Component != componentName {
				continue
			}
			if userName != "" && r.User != userName {
				continue
			}
			if userGroup != "" && r.UserGroup != userGroup {
				continue
			}
			filtered = append(filtered, r)
		}

		sort.SliceStable(filtered, func(i, j int) bool {
			a, b := filtered[i], filtered[j]
			if a.Date != b.Date {
				return a.Date < b.Date
			}
			if a.Hub != b.Hub {
				return a.Hub < b.Hub
			}
			if a.Component != b.Component {
				return a.Component < b.Component
			}
			return a.Value > b.Value
		})
		return filtered, nil
	})
}

type userCostKey struct {
	date      string
	hub       string
	user      string
	component string
	group     string
}

// attachUserGroups overlays group membership onto per-user cost entries. The
// first matching group is set on the entry itself; each further group clones
// the entry, so a dollar can legitimately appear in several group totals.
// The seen set keeps the same membership from being applied twice, and
// entries with no matching group get the "none" sentinel.
func attachUserGroups(results []entity.UserCost, groups []entity.UserGroupMembership) []entity.UserCost {
	seen := make(map[userCostKey]struct{})
	var clones []entity.UserCost

	for i := range results {
		r := &results[i]
		matched := false
		for _, g := range groups {
			if g.Hub != r.Hub || g.Username != r.User {
				continue
			}
			k := userCostKey{r.Date, r.Hub, r.User, r.Component, g.UserGroup}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			if !matched && r.UserGroup == "" {
				r.UserGroup = g.UserGroup
			} else {
				clone := *r
				clone.UserGroup = g.UserGroup
				clones = append(clones, clone)
			}
			matched = true
		}
		if !matched {
			k := userCostKey{r.Date, r.Hub, r.User, r.Component, entity.NoUserGroup}
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				r.UserGroup = entity.NoUserGroup
			}
		}
	}
	return append(results, clones...)
}

// limitTopUsers keeps only entries belonging to the limit users with the
// highest value summed across all their entries. Ties are broken
// lexicographically by user name so the selection is deterministic.
func limitTopUsers(results []entity.UserCost, limit int) []entity.UserCost {
	totals := make(map[string]float64)
	for _, r := range results {
		totals[r.User] += r.Value
	}

	users := make([]string, 0, len(totals))
	for user := range totals {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		if totals[users[i]] != totals[users[j]] {
			return totals[users[i]] > totals[users[j]]
		}
		return users[i] < users[j]
	})
	if limit < len(users) {
		users = users[:limit]
	}

	keep := make(map[string]struct{}, len(users))
	for _, user := range users {
		keep[user] = struct{}{}
	}

	out := results[:0]
	for _, r := range results {
		if _, ok := keep[r.User]; ok {
			out = append(out, r)
		}
	}
	return out
}

// TotalCostsPerGroup rolls the per-user output up to per-group daily totals.
func (uc *AllocationUseCase) TotalCostsPerGroup(ctx context.Context, dateRange entity.DateRange) ([]entity.GroupCost, error) {
	return cache.GetOrCompute(uc.cache, cacheKey("costs-per-group", dateRange.Key()), func() ([]entity.GroupCost, error) {
		perUser, err := uc.TotalCostsPerUser(ctx, dateRange, "", "", "", "", 0)
		if err != nil {
			return nil, err
		}

		type groupKey struct{ date, group string }
		totals := make(map[groupKey]float64)
		for _, r := range perUser {
			totals[groupKey{r.Date, r.UserGroup}] += r.Value
		}

		out := make([]entity.GroupCost, 0, len(totals))
		for k, v := range totals {
			out = append(out, entity.GroupCost{Date: k.date, UserGroup: k.group, Cost: v})
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Date != out[j].Date {
				return out[i].Date < out[j].Date
			}
			return out[i].UserGroup < out[j].UserGroup
		})
		return out, nil
	})
}

// AccountID reports the billed account's identity, for the index endpoint.
func (uc *AllocationUseCase) AccountID(ctx context.Context) (string, error) {
	return uc.billing.GetAccountID(ctx)
}
