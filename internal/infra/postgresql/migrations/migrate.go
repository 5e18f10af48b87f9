package migrations

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, All())
	if err := m.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// All returns every migration in apply order.
func All() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		createBroadcastsTable(),
		createBroadcastFailuresTable(),
		addBroadcastsStatusIndex(),
	}
}
