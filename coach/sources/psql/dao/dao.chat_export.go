// coach/sources/psql/dao/dao.chat_export.go
package dao

import (
	"context"

	"essaycoach/coach/sources/psql/models"

	"gorm.io/gorm"
)

type ChatExportDAO struct {
	DB *gorm.DB
}

func NewChatExportDAO(db *gorm.DB) *ChatExportDAO {
	return &ChatExportDAO{DB: db}
}

func (dao *ChatExportDAO) CreateExport(ctx context.Context, e *models.ChatExport) error {
	return dao.DB.WithContext(ctx).Create(e).Error
}

// ListExportsByUser returns up to limit exports, newest first.
func (dao *ChatExportDAO) ListExportsByUser(ctx context.Context, userID int, limit int) ([]models.ChatExport, error) {
	var exports []models.ChatExport
	err := dao.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&exports).Error
	if err != nil {
		return nil, err
	}
	return exports, nil
}
