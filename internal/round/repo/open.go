package repo

import (
	"context"
	"fmt"

	"github.com/radieske/updown-rounds/internal/shared/db"
)

// Open escolhe o backend pelo STORE_DRIVER. "memory" só serve para um processo
// isolado: serviços diferentes não compartilham estado.
func Open(ctx context.Context, driver, dsn string) (Store, func() error, error) {
	switch driver {
	case "memory":
		return NewMemory(), func() error { return nil }, nil
	case "", "postgres":
		pg, err := db.ConnectPostgres(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		store := NewPostgres(pg)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, err
		}
		return store, pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
