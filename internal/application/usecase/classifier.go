package usecase

import (
	"log/slog"
	"sync"

	"github.com/jnywong/jupyterhub-cost-monitoring/internal/domain/entity"
)

// serviceComponentMap coalesces raw billing service names into logical cost
// components. "EC2 - Other" lands in compute by default even though it can
// include EBS volumes and snapshots used for home storage; the
// reclassification pipeline moves those costs out afterwards.
var serviceComponentMap = map[string]string{
	"AWS Backup": entity.ComponentBackup,
	"EC2 - Other":                                      entity.ComponentCompute,
	"Amazon Elastic Compute Cloud - Compute":           entity.ComponentCompute,
	"Amazon Elastic Container Service for Kubernetes":  entity.ComponentCore,
	"Amazon Elastic File System":                       entity.ComponentHomeStorage,
	"Amazon Elastic Load Balancing":                    entity.ComponentNetworking,
	"Amazon Simple Storage Service":                    entity.ComponentObjectStorage,
	"Amazon Virtual Private Cloud":                     entity.ComponentNetworking,
}

// Classifier maps billing service names to cost components. Unmapped names
// fall back to the "other" component and are logged once per distinct name.
type Classifier struct {
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewClassifier creates a Classifier.
func NewClassifier(logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		logger: logger,
		seen:   make(map[string]struct{}),
	}
}

// Classify returns the component for a billing service name.
func (c *Classifier) Classify(serviceName string) string {
	if component, ok := serviceComponentMap[serviceName]; ok {
		return component
	}

	c.mu.Lock()
	_, warned := c.seen[serviceName]
	c.seen[serviceName] = struct{}{}
	c.mu.Unlock()

	if !warned {
		c.logger.Warn("service not categorized as a component yet",
			slog.String("service", serviceName))
	}
	return entity.ComponentOther
}
