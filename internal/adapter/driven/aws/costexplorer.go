package aws

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	ceTypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"golang.org/x/time/rate"

	"github.com/jnywong/jupyterhub-cost-monitoring/internal/domain/entity"
	"github.com/jnywong/jupyterhub-cost-monitoring/internal/domain/repository"
	"github.com/jnywong/jupyterhub-cost-monitoring/internal/shared/types"
)

const metricUnblendedCost = "UnblendedCost"

// Cost Explorer charges per request; the limiter keeps a burst of uncached
// queries from running up a bill of its own.
const costExplorerRequestsPerSecond = 2

// CostExplorerRepository reads billing data from the AWS Cost Explorer API.
type CostExplorerRepository struct {
	client      costExplorerAPI
	stsClient   stsAPI
	clusterName string
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// costExplorerAPI is the slice of the Cost Explorer client this repository
// uses, kept narrow so tests can stub it.
type costExplorerAPI interface {
	GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
	GetTags(ctx context.Context, params *costexplorer.GetTagsInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetTagsOutput, error)
}

type stsAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// NewCostExplorerRepository creates a repository backed by the real AWS API.
// Cost Explorer is a global service served from us-east-1 regardless of where
// the cluster runs.
func NewCostExplorerRepository(ctx context.Context, clusterName string, logger *slog.Logger) (*CostExplorerRepository, error) {
	if clusterName == "" {
		return nil, types.ErrMissingClusterName
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion("us-east-1"))
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}
	return &CostExplorerRepository{
		client:      costexplorer.NewFromConfig(cfg),
		stsClient:   sts.NewFromConfig(cfg),
		clusterName: clusterName,
		limiter:     rate.NewLimiter(rate.Limit(costExplorerRequestsPerSecond), 1),
		logger:      logger,
	}, nil
}

// getCostAndUsage performs one Cost Explorer query. Responses that would
// require pagination are rejected: reporting partial costs as totals is worse
// than failing.
func (r *CostExplorerRepository) getCostAndUsage(ctx context.Context, dateRange entity.DateRange, filter *ceTypes.Expression, groupBy []ceTypes.GroupDefinition) ([]ceTypes.ResultByTime, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	from, to := dateRange.AWSRange()
	r.logger.Debug("querying Cost Explorer",
		slog.String("from", from),
		slog.String("to", to),
		slog.Bool("grouped", len(groupBy) > 0))
	out, err := r.client.GetCostAndUsage(ctx, &costexplorer.GetCostAndUsageInput{
		Metrics:     []string{metricUnblendedCost},
		Granularity: ceTypes.GranularityDaily,
		TimePeriod: &ceTypes.DateInterval{
			Start: aws.String(from),
			End:   aws.String(to),
		},
		Filter:  filter,
		GroupBy: groupBy,
	})
	if err != nil {
		return nil, fmt.Errorf("querying Cost Explorer: %w", err)
	}
	if out.NextPageToken != nil && *out.NextPageToken != "" {
		return nil, fmt.Errorf("query from %s to %s: %w", from, to, types.ErrPaginatedResponse)
	}
	return out.ResultsByTime, nil
}

// ListHubNames enumerates the values of the hub-name tag seen in the range.
// Resources without the tag surface as an empty value, reported as "support".
func (r *CostExplorerRepository) ListHubNames(ctx context.Context, dateRange entity.DateRange) ([]string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	from, to := dateRange.AWSRange()
	out, err := r.client.GetTags(ctx, &costexplorer.GetTagsInput{
		TimePeriod: &ceTypes.DateInterval{
			Start: aws.String(from),
			End:   aws.String(to),
		},
		TagKey: aws.String(tagHubName),
	})
	if err != nil {
		return nil, fmt.Errorf("querying hub name tags: %w", err)
	}

	names := make([]string, 0, len(out.Tags))
	for _, t := range out.Tags {
		if t == "" {
			t = supportHubName
		}
		names = append(names, t)
	}
	return names, nil
}

// GetTotalCosts reports daily cost totals, either account-wide or restricted
// to costs attributable to the cluster.
func (r *CostExplorerRepository) GetTotalCosts(ctx context.Context, dateRange entity.DateRange, attributableOnly bool) ([]entity.TotalCost, error) {
	name := "account"
	filter := filterUsageCosts()
	if attributableOnly {
		name = "attributable"
		filter = ceTypes.Expression{
			And: []ceTypes.Expression{
				filterUsageCosts(),
				filterAttributableCosts(r.clusterName),
			},
		}
	}

	results, err := r.getCostAndUsage(ctx, dateRange, &filter, nil)
	if err != nil {
		return nil, err
	}
	return parseTotalCosts(results, name)
}

// GetTotalCostsPerHub reports daily attributable cost totals grouped by the
// hub-name tag. Costs without the tag surface under "support".
func (r *CostExplorerRepository) GetTotalCostsPerHub(ctx context.Context, dateRange entity.DateRange) ([]entity.TotalCost, error) {
	filter := ceTypes.Expression{
		And: []ceTypes.Expression{
			filterUsageCosts(),
			filterAttributableCosts(r.clusterName),
		},
	}

	results, err := r.getCostAndUsage(ctx, dateRange, &filter, groupByHubTag())
	if err != nil {
		return nil, err
	}
	return parseHubCosts(results)
}

// GetCostsPerService reports daily attributable costs grouped by billing
// service, optionally narrowed to one hub and one of the cost scopes.
// Amounts are returned unrounded; callers round after coalescing.
func (r *CostExplorerRepository) GetCostsPerService(ctx context.Context, dateRange entity.DateRange, hubName string, scope repository.CostScope) ([]entity.ServiceCost, error) {
	and := []ceTypes.Expression{
		filterUsageCosts(),
		filterAttributableCosts(r.clusterName),
	}
	if expr, ok := hubFilter(hubName); ok {
		and = append(and, expr)
	}

	switch scope {
	case repository.CostScopeBase:
	case repository.CostScopeHomeStorage:
		and = append(and, filterHomeStorageCosts())
	case repository.CostScopeCore:
		and = append(and, filterCoreCosts())
	default:
		return nil, fmt.Errorf("unknown cost scope %q", scope)
	}

	filter := ceTypes.Expression{And: and}
	results, err := r.getCostAndUsage(ctx, dateRange, &filter, groupByService())
	if err != nil {
		return nil, err
	}
	return parseServiceCosts(results)
}

// GetAccountID resolves the AWS account the credentials belong to.
func (r *CostExplorerRepository) GetAccountID(ctx context.Context) (string, error) {
	out, err := r.stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("resolving caller identity: %w", err)
	}
	return aws.ToString(out.Account), nil
}

func parseTotalCosts(results []ceTypes.ResultByTime, name string) ([]entity.TotalCost, error) {
	out := make([]entity.TotalCost, 0, len(results))
	for _, e := range results {
		amount, err := parseAmount(e.Total[metricUnblendedCost])
		if err != nil {
			return nil, err
		}
		out = append(out, entity.TotalCost{
			Date: aws.ToString(e.TimePeriod.Start),
			Name: name,
			Cost: roundCents(amount),
		})
	}
	return out, nil
}

func parseHubCosts(results []ceTypes.ResultByTime) ([]entity.TotalCost, error) {
	var out []entity.TotalCost
	for _, e := range results {
		date := aws.ToString(e.TimePeriod.Start)
		for _, g := range e.Groups {
			if len(g.Keys) == 0 {
				continue
			}
			amount, err := parseAmount(g.Metrics[metricUnblendedCost])
			if err != nil {
				return nil, err
			}
			out = append(out, entity.TotalCost{
				Date: date,
				Name: hubNameFromGroupKey(g.Keys[0]),
				Cost: roundCents(amount),
			})
		}
	}
	return out, nil
}

func parseServiceCosts(results []ceTypes.ResultByTime) ([]entity.ServiceCost, error) {
	var out []entity.ServiceCost
	for _, e := range results {
		date := aws.ToString(e.TimePeriod.Start)
		for _, g := range e.Groups {
			if len(g.Keys) == 0 {
				continue
			}
			amount, err := parseAmount(g.Metrics[metricUnblendedCost])
			if err != nil {
				return nil, err
			}
			out = append(out, entity.ServiceCost{
				Date:    date,
				Service: g.Keys[0],
				Amount:  amount,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// hubNameFromGroupKey strips the "<tag-key>$" prefix Cost Explorer puts on
// tag group keys. An empty tag value means the cost belongs to "support".
func hubNameFromGroupKey(key string) string {
	if i := strings.Index(key, "$"); i >= 0 {
		key = key[i+1:]
	}
	if key == "" {
		return supportHubName
	}
	return key
}

func parseAmount(m ceTypes.MetricValue) (float64, error) {
	raw := aws.ToString(m.Amount)
	if raw == "" {
		return 0, nil
	}
	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing cost amount %q: %w", raw, err)
	}
	return amount, nil
}

func roundCents(v float64) float64 { return math.Round(v*100) / 100 }
