package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"careerhub/internal/model"
)

type AuditEventRepository struct {
	db *gorm.DB
}

func NewAuditEventRepository(db *gorm.DB) *AuditEventRepository {
	return &AuditEventRepository{db: db}
}

func (r *AuditEventRepository) Create(ctx context.Context, event *model.AuditEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("create audit event failed: %w", err)
	}
	return nil
}

func (r *AuditEventRepository) ListByUserID(ctx context.Context, userID uint, limit int) ([]model.AuditEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	var events []model.AuditEvent
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list audit events failed: %w", err)
	}
	return events, nil
}
