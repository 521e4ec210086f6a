package prometheus

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"github.com/jnywong/jupyterhub-cost-monitoring/internal/domain/entity"
	"github.com/jnywong/jupyterhub-cost-monitoring/internal/metrics"
	"github.com/jnywong/jupyterhub-cost-monitoring/internal/shared/types"
)

// Repository reads usage data and group memberships from a Prometheus
// server scraping the cluster.
type Repository struct {
	api    promAPI
	logger *slog.Logger
}

// promAPI is the slice of the Prometheus query API this repository uses.
type promAPI interface {
	QueryRange(ctx context.Context, query string, r promv1.Range, opts ...promv1.Option) (model.Value, promv1.Warnings, error)
}

// NewRepository creates a repository talking to the Prometheus server at url.
func NewRepository(url string, logger *slog.Logger) (*Repository, error) {
	client, err := api.NewClient(api.Config{Address: url})
	if err != nil {
		return nil, fmt.Errorf("creating Prometheus client: %w", err)
	}
	return &Repository{api: promv1.NewAPI(client), logger: logger}, nil
}

// GetUsage collects per-user usage for the named component, or for every
// configured component when componentName is empty. Samples are summed into
// UTC calendar-day buckets per (date, hub, user, component).
func (r *Repository) GetUsage(ctx context.Context, dateRange entity.DateRange, componentName string) ([]entity.UsageRecord, error) {
	if componentName != "" {
		if _, ok := usageQueries[componentName]; !ok {
			return nil, fmt.Errorf("component %q: %w", componentName, types.ErrUnknownComponent)
		}
	}

	from, to := dateRange.PrometheusRange()
	var records []entity.UsageRecord
	for _, component := range usageComponents {
		if componentName != "" && component != componentName {
			continue
		}
		q := usageQueries[component]

		matrix, err := r.queryRange(ctx, q.expr, from, to, timeResolution)
		if err != nil {
			return nil, fmt.Errorf("querying %s usage: %w", component, err)
		}
		records = append(records, r.processMatrix(matrix, q, component)...)
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Component != b.Component {
			return a.Component < b.Component
		}
		if a.Hub != b.Hub {
			return a.Hub < b.Hub
		}
		return a.User < b.User
	})
	return records, nil
}

// GetUserGroups enumerates the distinct (hub, user, group) memberships seen
// in the range. A day step is enough: membership info is not a usage signal,
// only its presence matters.
func (r *Repository) GetUserGroups(ctx context.Context, dateRange entity.DateRange) ([]entity.UserGroupMembership, error) {
	from, to := dateRange.PrometheusRange()
	matrix, err := r.queryRange(ctx, userGroupsQuery, from, to, 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("querying user groups: %w", err)
	}

	type membershipKey struct{ hub, user, group string }
	seen := make(map[membershipKey]struct{})
	var memberships []entity.UserGroupMembership
	for _, series := range matrix {
		m := entity.UserGroupMembership{
			Hub:       string(series.Metric["namespace"]),
			Username:  string(series.Metric["username"]),
			UserGroup: string(series.Metric["usergroup"]),
		}
		k := membershipKey{m.Hub, m.Username, m.UserGroup}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		memberships = append(memberships, m)
	}

	sort.Slice(memberships, func(i, j int) bool {
		a, b := memberships[i], memberships[j]
		if a.Hub != b.Hub {
			return a.Hub < b.Hub
		}
		if a.Username != b.Username {
			return a.Username < b.Username
		}
		return a.UserGroup < b.UserGroup
	})
	return memberships, nil
}

func (r *Repository) queryRange(ctx context.Context, expr string, from, to time.Time, step time.Duration) (model.Matrix, error) {
	value, warnings, err := r.api.QueryRange(ctx, expr, promv1.Range{Start: from, End: to, Step: step})
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		r.logger.Warn("Prometheus query warning", slog.String("warning", w))
	}

	matrix, ok := value.(model.Matrix)
	if !ok {
		return nil, fmt.Errorf("unexpected Prometheus result type %q", value.Type())
	}
	return matrix, nil
}

// processMatrix collapses each series into per-day usage records. Multiple
// samples on one day are summed; a series with an unescapable username is
// skipped whole.
func (r *Repository) processMatrix(matrix model.Matrix, q usageQuery, component string) []entity.UsageRecord {
	type recordKey struct{ date, hub, user string }
	totals := make(map[recordKey]float64)
	order := make([]recordKey, 0, len(matrix))

	for _, series := range matrix {
		hub := string(series.Metric["namespace"])
		user := string(series.Metric[model.LabelName(q.userLabel)])
		if q.escaped {
			unescaped, err := UnescapeUsername(user)
			if err != nil {
				metrics.UnescapeFailures.Inc()
				r.logger.Warn("skipping series with unescapable username",
					slog.String("hub", hub),
					slog.String("username", user),
					slog.String("error", err.Error()))
				continue
			}
			user = unescaped
		}

		for _, sample := range series.Values {
			date := sample.Timestamp.Time().UTC().Format("2006-01-02")
			k := recordKey{date, hub, user}
			if _, ok := totals[k]; !ok {
				order = append(order, k)
			}
			totals[k] += float64(sample.Value)
		}
	}

	records := make([]entity.UsageRecord, 0, len(order))
	for _, k := range order {
		records = append(records, entity.UsageRecord{
			Date:      k.date,
			Hub:       k.hub,
			User:      k.user,
			Component: component,
			Value:     totals[k],
		})
	}
	return records
}
