package usecase

import (
	"sort"

	"github.com/jnywong/jupyterhub-cost-monitoring/internal/domain/entity"
)

type factorGroupKey struct {
	date      string
	hub       string
	component string
}

// CalculateDailyCostFactors converts absolute per-user usage into normalized
// shares. Records are grouped by (date, component), or by (date, hub,
// component) when hubName is non-empty, and each record's value is replaced
// with its fraction of the group total. Factors within a group sum to 1
// unless the group's total usage is zero, in which case every factor is 0.
//
// The output is sorted by (date, component, hub, user).
func CalculateDailyCostFactors(records []entity.UsageRecord, hubName string) []entity.UsageRecord {
	key := func(r entity.UsageRecord) factorGroupKey {
		k := factorGroupKey{date: r.Date, component: r.Component}
		if hubName != "" {
			k.hub = r.Hub
		}
		return k
	}

	totals := make(map[factorGroupKey]float64)
	for _, r := range records {
		totals[key(r)] += r.Value
	}

	out := make([]entity.UsageRecord, 0, len(records))
	for _, r := range records {
		total := totals[key(r)]
		if total > 0 {
			r.Value = r.Value / total
		} else {
			r.Value = 0.0
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
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
	return out
}
