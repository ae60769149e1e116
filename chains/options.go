package chains

import (
	log "github.com/sirupsen/logrus"
)

type RegistryOption func(*Registry)

func WithLogger(logger *log.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}
