package entity

// Logical cost components that raw billing services are coalesced into.
const (
	ComponentBackup        = "backup"
	ComponentCompute       = "compute"
	ComponentCore          = "core"
	ComponentHomeStorage   = "home storage"
	ComponentNetworking    = "networking"
	ComponentObjectStorage = "object storage"
	ComponentOther         = "other"
)

// ServiceCost is one raw per-day, per-billing-service cost row as returned by
// the billing backend, before any component classification.
type ServiceCost struct {
	Date    string  `json:"date"`
	Service string  `json:"service"`
	Amount  float64 `json:"amount"`
}

// ComponentCost is one per-day, per-component cost entry after coalescing
// services into components and running the reclassification corrections.
type ComponentCost struct {
	Date      string  `json:"date"`
	Component string  `json:"component"`
	Cost      float64 `json:"cost"`
}

// TotalCost is a per-day cost total labelled by scope ("account",
// "attributable") or by hub name.
type TotalCost struct {
	Date string  `json:"date"`
	Name string  `json:"name"`
	Cost float64 `json:"cost"`
}
