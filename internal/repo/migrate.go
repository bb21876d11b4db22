package repo

import (
	"gorm.io/gorm"

	"team-visualizer/internal/domain"
)

// Models 需要建表的实体
func Models() []any { return []any{&domain.User{}, &domain.HourRecord{}} }

func Migrate(db *gorm.DB) error { return db.AutoMigrate(Models()...) }
