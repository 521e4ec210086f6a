package aws

import (
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	ceTypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterAttributableCosts(t *testing.T) {
	expr := filterAttributableCosts("2i2c-aws-us")

	require.Len(t, expr.Or, 5)

	assert.Equal(t, "alpha.eksctl.io/cluster-name", awssdk.ToString(expr.Or[0].Tags.Key))
	assert.Equal(t, []string{"2i2c-aws-us"}, expr.Or[0].Tags.Values)

	assert.Equal(t, "kubernetes.io/cluster/2i2c-aws-us", awssdk.ToString(expr.Or[1].Tags.Key))
	assert.Equal(t, []string{"owned"}, expr.Or[1].Tags.Values)

	assert.Equal(t, "2i2c.org/cluster-name", awssdk.ToString(expr.Or[2].Tags.Key))

	// The historical patches match any resource carrying the tag at all.
	require.NotNil(t, expr.Or[3].Not)
	assert.Equal(t, tagHubName, awssdk.ToString(expr.Or[3].Not.Tags.Key))
	assert.Equal(t, matchAbsent, expr.Or[3].Not.Tags.MatchOptions)
	require.NotNil(t, expr.Or[4].Not)
	assert.Equal(t, tagNodePurpose, awssdk.ToString(expr.Or[4].Not.Tags.Key))
}

func TestFilterUsageCosts(t *testing.T) {
	expr := filterUsageCosts()

	require.NotNil(t, expr.Dimensions)
	assert.Equal(t, ceTypes.DimensionRecordType, expr.Dimensions.Key)
	assert.Equal(t, []string{"Usage"}, expr.Dimensions.Values)
}

func TestFilterHomeStorageCosts(t *testing.T) {
	expr := filterHomeStorageCosts()

	require.NotNil(t, expr.Tags)
	assert.Equal(t, tagVolumePurpose, awssdk.ToString(expr.Tags.Key))
	assert.Equal(t, []string{"home-nfs"}, expr.Tags.Values)
}

func TestFilterCoreCosts(t *testing.T) {
	expr := filterCoreCosts()

	require.Len(t, expr.Or, 5)
	for i, branch := range expr.Or {
		assert.Len(t, branch.And, 2, "branch %d", i)
	}

	// Core node compute targets the compute service, every other branch the
	// catch-all EC2 - Other service.
	assert.Equal(t, []string{serviceEC2Compute}, expr.Or[1].And[0].Dimensions.Values)
	assert.Equal(t, []string{serviceEC2Other}, expr.Or[0].And[0].Dimensions.Values)

	natBranch := expr.Or[2]
	assert.Equal(t, ceTypes.DimensionUsageTypeGroup, natBranch.And[1].Dimensions.Key)
	assert.Equal(t, []string{usageTypeGroupNATHours, usageTypeGroupNATData}, natBranch.And[1].Dimensions.Values)

	assert.Equal(t, []string{"hub-db-dir"}, expr.Or[3].And[1].Tags.Values)
	assert.Equal(t, []string{"support"}, expr.Or[4].And[1].Tags.Values)
}

func TestHubFilter(t *testing.T) {
	_, ok := hubFilter("")
	assert.False(t, ok)

	expr, ok := hubFilter("support")
	require.True(t, ok)
	assert.Equal(t, matchAbsent, expr.Tags.MatchOptions)
	assert.Empty(t, expr.Tags.Values)

	expr, ok = hubFilter("staging")
	require.True(t, ok)
	assert.Equal(t, tagHubName, awssdk.ToString(expr.Tags.Key))
	assert.Equal(t, []string{"staging"}, expr.Tags.Values)
	assert.Equal(t, matchEquals, expr.Tags.MatchOptions)
}

func TestGroupDefinitions(t *testing.T) {
	byService := groupByService()
	require.Len(t, byService, 1)
	assert.Equal(t, ceTypes.GroupDefinitionTypeDimension, byService[0].Type)
	assert.Equal(t, "SERVICE", awssdk.ToString(byService[0].Key))

	byHub := groupByHubTag()
	require.Len(t, byHub, 1)
	assert.Equal(t, ceTypes.GroupDefinitionTypeTag, byHub[0].Type)
	assert.Equal(t, tagHubName, awssdk.ToString(byHub[0].Key))
}
