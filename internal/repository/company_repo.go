package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/bounty-chat/internal/models"
)

// CompanyRepository resolves companies for company managers.
type CompanyRepository interface {
	GetByManager(ctx context.Context, managerID string) (models.Company, error)
}

type companyRepository struct {
	db *gorm.DB
}

// NewCompanyRepository constructs a company repository backed by GORM.
func NewCompanyRepository(db *gorm.DB) CompanyRepository {
	return &companyRepository{db: db}
}

func (r *companyRepository) GetByManager(ctx context.Context, managerID string) (models.Company, error) {
	var company models.Company
	if err := r.db.WithContext(ctx).Where("manager_id = ?", managerID).First(&company).Error; err != nil {
		return models.Company{}, err
	}
	return company, nil
}
