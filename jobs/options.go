package jobs

import (
	log "github.com/sirupsen/logrus"
)

type WorkerPoolOption func(*WorkerPool)

func WithLogger(logger *log.Logger) WorkerPoolOption {
	return func(wp *WorkerPool) {
		wp.logger = logger
	}
}
