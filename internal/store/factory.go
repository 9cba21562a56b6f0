package store

import (
	"fmt"

	"fastboard/internal/config"
)

// NewStore returns the snapshot store selected by the configuration.
func NewStore(cfg *config.Config) (SnapshotStore, error) {
	switch cfg.DataBackend {
	case "sqlite":
		s, err := NewSQLiteStore(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("create sqlite store: %w", err)
		}
		return s, nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown data backend: %s", cfg.DataBackend)
	}
}
