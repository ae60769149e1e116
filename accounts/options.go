package accounts

import log "github.com/sirupsen/logrus"

type ManagerOption func(*Manager)

func WithLogger(logger *log.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithCurrentLevel sets the level the manager starts on.
func WithCurrentLevel(level int) ManagerOption {
	return func(m *Manager) {
		m.currentLevel = level
	}
}
