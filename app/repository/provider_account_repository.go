package repository

import (
	"github.com/ManuelReschke/CreatorStudio/app/models"
	"gorm.io/gorm"
)

type providerAccountRepository struct {
	db *gorm.DB
}

// NewProviderAccountRepository creates a repository for OAuth identities
func NewProviderAccountRepository(db *gorm.DB) ProviderAccountRepository {
	return &providerAccountRepository{db: db}
}

func (r *providerAccountRepository) GetByProviderUID(provider, providerUserID string) (*models.ProviderAccount, error) {
	var pa models.ProviderAccount
	err := r.db.Where("provider = ? AND provider_user_id = ?", provider, providerUserID).First(&pa).Error
	if err != nil {
		return nil, err
	}
	return &pa, nil
}

func (r *providerAccountRepository) Save(account *models.ProviderAccount) error {
	return r.db.Save(account).Error
}
