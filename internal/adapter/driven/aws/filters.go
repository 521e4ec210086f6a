package aws

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	ceTypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
)

// Tag and dimension vocabulary used by 2i2c-managed clusters.
const (
	tagHubName       = "2i2c:hub-name"
	tagNodePurpose   = "2i2c:node-purpose"
	tagVolumePurpose = "2i2c:volume-purpose"
	tagClusterName   = "2i2c.org/cluster-name"
	tagEksctlCluster = "alpha.eksctl.io/cluster-name"

	tagPVCName      = "kubernetes.io/created-for/pvc/name"
	tagPVCNamespace = "kubernetes.io/created-for/pvc/namespace"

	serviceEC2Other   = "EC2 - Other"
	serviceEC2Compute = "Amazon Elastic Compute Cloud - Compute"

	usageTypeGroupNATHours = "EC2: NAT Gateway - Running Hours"
	usageTypeGroupNATData  = "EC2: NAT Gateway - Data Processed"

	// Costs not attributed to any hub are reported under this name.
	supportHubName = "support"
)

var matchEquals = []ceTypes.MatchOption{ceTypes.MatchOptionEquals}
var matchAbsent = []ceTypes.MatchOption{ceTypes.MatchOptionAbsent}

func tagEquals(key string, values ...string) ceTypes.Expression {
	return ceTypes.Expression{
		Tags: &ceTypes.TagValues{
			Key:          aws.String(key),
			Values:       values,
			MatchOptions: matchEquals,
		},
	}
}

func dimensionEquals(key ceTypes.Dimension, values ...string) ceTypes.Expression {
	return ceTypes.Expression{
		Dimensions: &ceTypes.DimensionValues{
			Key:          key,
			Values:       values,
			MatchOptions: matchEquals,
		},
	}
}

// filterUsageCosts restricts results to the Usage charge type, excluding
// credits, tax and similar records.
func filterUsageCosts() ceTypes.Expression {
	return ceTypes.Expression{
		Dimensions: &ceTypes.DimensionValues{
			Key:    ceTypes.DimensionRecordType,
			Values: []string{"Usage"},
		},
	}
}

// filterAttributableCosts matches resources that can be tied to the cluster
// via any of the tags the provisioning tooling applies. The two Not/ABSENT
// branches additionally capture resources that carry only a hub-name or
// node-purpose tag, as happened for some clusters during mid-2024.
func filterAttributableCosts(clusterName string) ceTypes.Expression {
	return ceTypes.Expression{
		Or: []ceTypes.Expression{
			tagEquals(tagEksctlCluster, clusterName),
			tagEquals("kubernetes.io/cluster/"+clusterName, "owned"),
			tagEquals(tagClusterName, clusterName),
			{
				Not: &ceTypes.Expression{
					Tags: &ceTypes.TagValues{
						Key:          aws.String(tagHubName),
						MatchOptions: matchAbsent,
					},
				},
			},
			{
				Not: &ceTypes.Expression{
					Tags: &ceTypes.TagValues{
						Key:          aws.String(tagNodePurpose),
						MatchOptions: matchAbsent,
					},
				},
			},
		},
	}
}

// filterHomeStorageCosts matches EBS volumes and snapshots dedicated to user
// home directories.
func filterHomeStorageCosts() ceTypes.Expression {
	return tagEquals(tagVolumePurpose, "home-nfs")
}

// filterCoreCosts matches fixed infrastructure costs shared by all hubs:
// core node compute and root volumes, the cluster NAT gateway, hub database
// volumes and the storage backing support services such as Prometheus and
// Grafana.
func filterCoreCosts() ceTypes.Expression {
	ec2Other := dimensionEquals(ceTypes.DimensionService, serviceEC2Other)
	return ceTypes.Expression{
		Or: []ceTypes.Expression{
			{And: []ceTypes.Expression{
				ec2Other,
				tagEquals(tagNodePurpose, "core"),
			}},
			{And: []ceTypes.Expression{
				dimensionEquals(ceTypes.DimensionService, serviceEC2Compute),
				tagEquals(tagNodePurpose, "core"),
			}},
			{And: []ceTypes.Expression{
				ec2Other,
				dimensionEquals(ceTypes.DimensionUsageTypeGroup, usageTypeGroupNATHours, usageTypeGroupNATData),
			}},
			{And: []ceTypes.Expression{
				ec2Other,
				tagEquals(tagPVCName, "hub-db-dir"),
			}},
			{And: []ceTypes.Expression{
				ec2Other,
				tagEquals(tagPVCNamespace, supportHubName),
			}},
		},
	}
}

// hubFilter narrows a query to one hub. "support" selects costs with no hub
// tag at all, a concrete name selects that hub, and "" adds no constraint.
func hubFilter(hubName string) (ceTypes.Expression, bool) {
	switch hubName {
	case "":
		return ceTypes.Expression{}, false
	case supportHubName:
		return ceTypes.Expression{
			Tags: &ceTypes.TagValues{
				Key:          aws.String(tagHubName),
				MatchOptions: matchAbsent,
			},
		}, true
	default:
		return tagEquals(tagHubName, hubName), true
	}
}

func groupByService() []ceTypes.GroupDefinition {
	return []ceTypes.GroupDefinition{{
		Type: ceTypes.GroupDefinitionTypeDimension,
		Key:  aws.String("SERVICE"),
	}}
}

func groupByHubTag() []ceTypes.GroupDefinition {
	return []ceTypes.GroupDefinition{{
		Type: ceTypes.GroupDefinitionTypeTag,
		Key:  aws.String(tagHubName),
	}}
}
