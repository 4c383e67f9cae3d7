package repository

import (
	"time"

	"github.com/ManuelReschke/CreatorStudio/app/models"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/entitlements"
	"gorm.io/gorm"
)

// UserRepository defines the interface for account-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetStatsByUserID(userID uint) (*UserStats, error)
	Update(user *models.User) error
	UpdateFields(id uint, fields map[string]interface{}) error
	TouchLastLogin(id uint, at time.Time) error
	List(filter ListUsersFilter) ([]UserWithCounts, int64, error)
	Count() (int64, error)
	CountActivePaid() (int64, error)
	TierBreakdown() (map[entitlements.Tier]int64, error)
	CountCreatedSince(since time.Time) (int64, error)
	GetDailyStats(startDate, endDate time.Time) ([]models.DailyStats, error)
}

// ProviderAccountRepository stores OAuth identities.
type ProviderAccountRepository interface {
	GetByProviderUID(provider, providerUserID string) (*models.ProviderAccount, error)
	Save(account *models.ProviderAccount) error
}

// GenerationRepository defines persistence for avatar and video generations
type GenerationRepository interface {
	CreateAvatar(gen *models.AvatarGeneration) error
	ListAvatarsByUser(userID uint, limit int) ([]models.AvatarGeneration, error)
	GetAvatarByUUID(uuid string) (*models.AvatarGeneration, error)
	CountAvatars() (int64, error)
	SetImageArchiveKey(imageID uint, key string) error
	CreateVideo(video *models.VideoGeneration) error
	ListVideosByUser(userID uint, limit int) ([]models.VideoGeneration, error)
	GetVideoForUser(id, userID uint) (*models.VideoGeneration, error)
	GetVideoByRequestID(requestID string) (*models.VideoGeneration, error)
	DeleteVideo(id uint) error
	CountVideos() (int64, error)
}

// ListUsersFilter selects a page of accounts for the admin list.
type ListUsersFilter struct {
	Page   int
	Limit  int
	Search string
	Tier   string
}

// Normalize clamps paging values into their valid ranges.
func (f ListUsersFilter) Normalize() ListUsersFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	return f
}

// Offset returns the row offset of the selected page.
func (f ListUsersFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// UserWithCounts is an account with its generation counts
type UserWithCounts struct {
	User        models.User
	AvatarCount int64
	VideoCount  int64
}

// UserStats provides aggregated generation counts for a single user.
type UserStats struct {
	AvatarCount int64
	VideoCount  int64
}

// Repositories struct holds all repository instances
type Repositories struct {
	User            UserRepository
	ProviderAccount ProviderAccountRepository
	Generation      GenerationRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:            NewUserRepository(db),
		ProviderAccount: NewProviderAccountRepository(db),
		Generation:      NewGenerationRepository(db),
	}
}
