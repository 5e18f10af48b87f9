package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func addBroadcastsStatusIndex() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_add_broadcasts_status_index",
		Migrate: func(tx *gorm.DB) error {
			statements := []string{
				`CREATE INDEX IF NOT EXISTS idx_broadcasts_status_created ON broadcasts (status, created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_broadcasts_correlation_id ON broadcasts (correlation_id)`,
			}
			for _, sql := range statements {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			statements := []string{
				`DROP INDEX IF EXISTS idx_broadcasts_correlation_id`,
				`DROP INDEX IF EXISTS idx_broadcasts_status_created`,
			}
			for _, sql := range statements {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
	}
}
