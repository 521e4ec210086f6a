package entity

// NoUserGroup is the sentinel group attached to users that belong to no
// recognized group.
const NoUserGroup = "none"

// UsageRecord is one per-day, per-user resource usage row. Value holds
// absolute usage (for example byte-seconds) as returned by the usage
// normalizer, or a share in [0,1] after cost-factor calculation.
type UsageRecord struct {
	Date      string  `json:"date"`
	Hub       string  `json:"hub"`
	User      string  `json:"user"`
	Component string  `json:"component"`
	Value     float64 `json:"value"`
}

// UserCost is a per-day dollar amount attributed to a single user for one
// component, tagged with one of the user's groups. A user in several groups
// produces one UserCost per group with identical value.
type UserCost struct {
	Date      string  `json:"date"`
	Hub       string  `json:"hub"`
	Component string  `json:"component"`
	User      string  `json:"user"`
	UserGroup string  `json:"usergroup"`
	Value     float64 `json:"value"`
}

// GroupCost is the per-day rollup of user costs by group.
type GroupCost struct {
	Date      string  `json:"date"`
	UserGroup string  `json:"usergroup"`
	Cost      float64 `json:"cost"`
}

// UserGroupMembership links a hub user to one of its groups.
type UserGroupMembership struct {
	Hub       string `json:"hub"`
	Username  string `json:"username"`
	UserGroup string `json:"usergroup"`
}
