package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/broadcast-engine/internal/repository"
	"gorm.io/gorm"
)

func createBroadcastFailuresTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_broadcast_failures",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.BroadcastFailureModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_broadcast_failures_position ON broadcast_failures (broadcast_id, position)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.BroadcastFailureModel{})
		},
	}
}
