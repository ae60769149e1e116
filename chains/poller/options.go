package poller

import (
	"time"

	"github.com/flow-hydraulics/wallet-orchestrator/adapters"
	log "github.com/sirupsen/logrus"
)

type Option func(*Poller)

func WithLogger(logger *log.Logger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		p.interval = d
	}
}

// WithBackoff sets the bounds of the retry delay after a failed pass.
func WithBackoff(min, max time.Duration) Option {
	return func(p *Poller) {
		p.minBackoff = min
		p.maxBackoff = max
	}
}

// WithRetryable makes failed passes whose error is not retryable wait the
// regular interval instead of backing off.
func WithRetryable(retryable func(error) bool) Option {
	return func(p *Poller) {
		p.retryable = retryable
	}
}

// WithStateHook calls fn with every state change.
func WithStateHook(fn func(adapters.State)) Option {
	return func(p *Poller) {
		p.onState = fn
	}
}
