package wallets

import log "github.com/sirupsen/logrus"

type ManagerOption func(*Manager)

func WithLogger(logger *log.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

type StorageOption func(*Storage)

func WithStorageLogger(logger *log.Logger) StorageOption {
	return func(s *Storage) {
		s.logger = logger
	}
}
