package prometheus

import (
	"time"

	"github.com/jnywong/jupyterhub-cost-monitoring/internal/domain/entity"
)

// timeResolution is the sampling step for usage queries. Coarse enough to
// keep response sizes sane over month-long ranges, fine enough that short
// user sessions still register.
const timeResolution = 5 * time.Minute

// memoryPerUserQuery sums the working-set memory of each user's singleuser
// pods, labelled with the owning hub namespace and the username annotation.
const memoryPerUserQuery = `
    sum(
        container_memory_working_set_bytes{name!="", pod=~"jupyter-.*", namespace=~".*"}
        * on (namespace, pod) group_left(annotation_hub_jupyter_org_username)
        group(
            kube_pod_annotations{namespace=~".*", annotation_hub_jupyter_org_username=~".*", pod=~"jupyter-.*"}
        ) by (pod, namespace, annotation_hub_jupyter_org_username)
    ) by (annotation_hub_jupyter_org_username, namespace)
`

// homeDirectoryQuery reports the size of each user's home directory. The
// directory label carries a filesystem-escaped username.
const homeDirectoryQuery = `
    max(
        dirsize_total_size_bytes{namespace=~".*"}
    ) by (directory, namespace)
`

// userGroupsQuery enumerates user group memberships per hub namespace.
const userGroupsQuery = `max(jupyterhub_user_group_info) by (namespace, username, usergroup)`

// usageQuery describes how one component's usage is read from Prometheus.
type usageQuery struct {
	expr      string
	userLabel string
	// escaped marks user labels carrying filesystem-escaped usernames.
	escaped bool
}

// usageComponents lists the components usage is collected for, in the order
// they are queried.
var usageComponents = []string{entity.ComponentCompute, componentHomeDirectory}

// componentHomeDirectory names per-user home directory usage. It is distinct
// from the billing-side home storage component: directory sizes have no
// per-gigabyte price attached, so these records carry usage shares only.
const componentHomeDirectory = "home directory"

var usageQueries = map[string]usageQuery{
	entity.ComponentCompute: {
		expr:      memoryPerUserQuery,
		userLabel: "annotation_hub_jupyter_org_username",
	},
	componentHomeDirectory: {
		expr:      homeDirectoryQuery,
		userLabel: "directory",
		escaped:   true,
	},
}
