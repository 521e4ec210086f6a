package prometheus

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jnywong/jupyterhub-cost-monitoring/internal/domain/entity"
	"github.com/jnywong/jupyterhub-cost-monitoring/internal/shared/types"
)

type fakePromAPI struct {
	result  model.Value
	queries []string
}

func (f *fakePromAPI) QueryRange(ctx context.Context, query string, r promv1.Range, opts ...promv1.Option) (model.Value, promv1.Warnings, error) {
	f.queries = append(f.queries, query)
	return f.result, nil, nil
}

func sampleAt(t time.Time, v float64) model.SamplePair {
	return model.SamplePair{
		Timestamp: model.TimeFromUnix(t.Unix()),
		Value:     model.SampleValue(v),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRepository(api promAPI) *Repository {
	return &Repository{api: api, logger: discardLogger()}
}

func testRange() entity.DateRange {
	return entity.NewDateRange(
		time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC),
	)
}

func TestGetUsageSumsSamplesPerDay(t *testing.T) {
	day1 := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 9, 2, 10, 0, 0, 0, time.UTC)

	api := &fakePromAPI{result: model.Matrix{
		&model.SampleStream{
			Metric: model.Metric{
				"namespace": "staging",
				"annotation_hub_jupyter_org_username": "jovyan",
			},
			Values: []model.SamplePair{
				sampleAt(day1, 10),
				sampleAt(day1.Add(5*time.Minute), 15),
				sampleAt(day2, 7),
			},
		},
	}}
	repo := newTestRepository(api)

	records, err := repo.GetUsage(context.Background(), testRange(), entity.ComponentCompute)
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, entity.UsageRecord{
		Date: "2025-09-01", Hub: "staging", User: "jovyan",
		Component: entity.ComponentCompute, Value: 25,
	}, records[0])
	assert.Equal(t, "2025-09-02", records[1].Date)
	assert.InDelta(t, 7, records[1].Value, 1e-9)
}

func TestGetUsageUnknownComponent(t *testing.T) {
	repo := newTestRepository(&fakePromAPI{result: model.Matrix{}})

	_, err := repo.GetUsage(context.Background(), testRange(), "gpu")
	assert.ErrorIs(t, err, types.ErrUnknownComponent)
}

func TestGetUsageQueriesAllComponentsByDefault(t *testing.T) {
	api := &fakePromAPI{result: model.Matrix{}}
	repo := newTestRepository(api)

	_, err := repo.GetUsage(context.Background(), testRange(), "")
	require.NoError(t, err)
	assert.Len(t, api.queries, len(usageComponents))
}

func TestGetUsageUnescapesDirectoryUsernames(t *testing.T) {
	day := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)

	api := &fakePromAPI{result: model.Matrix{
		&model.SampleStream{
			Metric: model.Metric{"namespace": "staging", "directory": "user-40example-2ecom"},
			Values: []model.SamplePair{sampleAt(day, 1024)},
		},
		&model.SampleStream{
			Metric: model.Metric{"namespace": "staging", "directory": "shared"},
			Values: []model.SamplePair{sampleAt(day, 2048)},
		},
		&model.SampleStream{
			// Malformed escape: record is skipped, the rest proceeds.
			Metric: model.Metric{"namespace": "staging", "directory": "broken-zz"},
			Values: []model.SamplePair{sampleAt(day, 4096)},
		},
	}}
	repo := newTestRepository(api)

	records, err := repo.GetUsage(context.Background(), testRange(), componentHomeDirectory)
	require.NoError(t, err)

	require.Len(t, records, 2)
	users := []string{records[0].User, records[1].User}
	assert.Contains(t, users, "user@example.com")
	assert.Contains(t, users, "shared")
}

func TestGetUserGroupsDeduplicatesMemberships(t *testing.T) {
	day := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	api := &fakePromAPI{result: model.Matrix{
		&model.SampleStream{
			Metric: model.Metric{"namespace": "staging", "username": "amy", "usergroup": "researchers"},
			Values: []model.SamplePair{sampleAt(day, 1), sampleAt(day.AddDate(0, 0, 1), 1)},
		},
		&model.SampleStream{
			Metric: model.Metric{"namespace": "staging", "username": "amy", "usergroup": "researchers"},
			Values: []model.SamplePair{sampleAt(day, 1)},
		},
		&model.SampleStream{
			Metric: model.Metric{"namespace": "staging", "username": "amy", "usergroup": "admins"},
			Values: []model.SamplePair{sampleAt(day, 1)},
		},
	}}
	repo := newTestRepository(api)

	memberships, err := repo.GetUserGroups(context.Background(), testRange())
	require.NoError(t, err)

	assert.Equal(t, []entity.UserGroupMembership{
		{Hub: "staging", Username: "amy", UserGroup: "admins"},
		{Hub: "staging", Username: "amy", UserGroup: "researchers"},
	}, memberships)
}
