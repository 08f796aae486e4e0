package store

import (
	"fmt"

	"studiod/internal/config"
)

// FromConfig builds the configured transition store. A nil, nil return
// means persistence is disabled.
func FromConfig(cfg config.StoreConfig) (Store, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "sqlite":
		return NewSQLite(cfg.Path)
	case "postgres":
		return NewPostgres(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}
