package adapters

import (
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
)

type ManagerOption func(*Manager)

func WithLogger(logger *log.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithRefreshLimiter limits the rate of refresh calls across all adapters.
func WithRefreshLimiter(limiter ratelimit.Limiter) ManagerOption {
	return func(m *Manager) {
		m.limiter = limiter
	}
}

// WithMetrics registers the manager metrics with reg.
func WithMetrics(reg prometheus.Registerer) ManagerOption {
	return func(m *Manager) {
		m.registerer = reg
	}
}
