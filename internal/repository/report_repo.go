package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/bounty-chat/internal/models"
)

// ReportRepository reads reports together with their parent bounty.
type ReportRepository interface {
	GetWithBounty(ctx context.Context, id string) (models.Report, error)
	GetOwnedByUser(ctx context.Context, id, userID string) (models.Report, error)
}

type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository constructs a report repository backed by GORM.
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) GetWithBounty(ctx context.Context, id string) (models.Report, error) {
	var report models.Report
	if err := r.db.WithContext(ctx).Preload("Bounty").Where("id = ?", id).First(&report).Error; err != nil {
		return models.Report{}, err
	}
	return report, nil
}

func (r *reportRepository) GetOwnedByUser(ctx context.Context, id, userID string) (models.Report, error) {
	var report models.Report
	err := r.db.WithContext(ctx).Preload("Bounty").Where("id = ? AND user_id = ?", id, userID).First(&report).Error
	if err != nil {
		return models.Report{}, err
	}
	return report, nil
}
