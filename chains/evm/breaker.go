package evm

import (
	stderrors "errors"

	"github.com/flow-hydraulics/wallet-orchestrator/errors"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

func newCircuitBreaker(name string, logger *log.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: name,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests > 20 && failureRatio >= 0.7
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			entry := logger.WithFields(log.Fields{"node": name, "from": from, "to": to})
			switch {
			case to == gobreaker.StateOpen:
				entry.Warn("node seems down, stop allowing requests")
			case from == gobreaker.StateOpen && to == gobreaker.StateHalfOpen:
				entry.Info("checking node status")
			case from == gobreaker.StateHalfOpen && to == gobreaker.StateClosed:
				entry.Info("node seems ok, restart allowing requests")
			}
		},
	})
}

// call runs fn through cb.
func call[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	v, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// isRetryable reports whether a failed pass should back off: node
// connectivity problems and requests rejected by an open breaker.
func isRetryable(err error) bool {
	return stderrors.Is(err, gobreaker.ErrOpenState) ||
		stderrors.Is(err, gobreaker.ErrTooManyRequests) ||
		errors.IsChainConnectionError(err)
}
