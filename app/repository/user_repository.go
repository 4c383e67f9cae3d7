package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/CreatorStudio/app/models"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/entitlements"
	"gorm.io/gorm"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user in the database
func (r *userRepository) Create(user *models.User) error {
	user.Email = models.NormalizeEmail(user.Email)
	return r.db.Create(user).Error
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by email, ignoring case
func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	normalized := models.NormalizeEmail(email)
	if normalized == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var user models.User
	err := r.db.Where("LOWER(email) = ?", normalized).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetStatsByUserID returns generation counts for the given user.
func (r *userRepository) GetStatsByUserID(userID uint) (*UserStats, error) {
	var stats UserStats
	if err := r.db.Model(&models.AvatarGeneration{}).Where("user_id = ?", userID).Count(&stats.AvatarCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count avatar generations: %w", err)
	}
	if err := r.db.Model(&models.VideoGeneration{}).Where("user_id = ?", userID).Count(&stats.VideoCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count video generations: %w", err)
	}
	return &stats, nil
}

// Update updates an existing user in the database
func (r *userRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

// UpdateFields writes only the given columns of one account.
func (r *userRepository) UpdateFields(id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.Model(&models.User{}).Where("id = ?", id).Updates(fields).Error
}

// TouchLastLogin stamps the last sign-in time.
func (r *userRepository) TouchLastLogin(id uint, at time.Time) error {
	return r.db.Model(&models.User{}).Where("id = ?", id).UpdateColumn("last_login_at", at).Error
}

type userCountRow struct {
	models.User `gorm:"embedded"`
	AvatarCount int64
	VideoCount  int64
}

// List returns one page of accounts, newest first, with their generation
// counts and the total number of matching accounts.
func (r *userRepository) List(filter ListUsersFilter) ([]UserWithCounts, int64, error) {
	filter = filter.Normalize()

	query := r.db.Model(&models.User{})
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("users.name LIKE ? OR users.email LIKE ?", pattern, pattern)
	}
	if tier, ok := entitlements.ParseTier(filter.Tier); ok {
		query = query.Where("users.subscription_tier = ?", tier)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	var rows []userCountRow
	err := query.
		Select("users.*, " +
			"(SELECT COUNT(*) FROM avatar_generations ag WHERE ag.user_id = users.id) AS avatar_count, " +
			"(SELECT COUNT(*) FROM video_generations vg WHERE vg.user_id = users.id) AS video_count").
		Order("users.created_at DESC").
		Offset(filter.Offset()).
		Limit(filter.Limit).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	out := make([]UserWithCounts, 0, len(rows))
	for _, row := range rows {
		out = append(out, UserWithCounts{
			User:        row.User,
			AvatarCount: row.AvatarCount,
			VideoCount:  row.VideoCount,
		})
	}
	return out, total, nil
}

// Count returns the total number of users
func (r *userRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).Count(&count).Error
	return count, err
}

// CountActivePaid counts accounts with an active paid subscription.
func (r *userRepository) CountActivePaid() (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).
		Where("subscription_status = ? AND subscription_tier <> ?", entitlements.StatusActive, entitlements.TierFree).
		Count(&count).Error
	return count, err
}

// TierBreakdown counts accounts per subscription tier.
func (r *userRepository) TierBreakdown() (map[entitlements.Tier]int64, error) {
	var rows []struct {
		Tier  string
		Count int64
	}
	err := r.db.Model(&models.User{}).
		Select("subscription_tier AS tier, COUNT(*) AS count").
		Group("subscription_tier").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to group users by tier: %w", err)
	}

	out := make(map[entitlements.Tier]int64, len(rows))
	for _, row := range rows {
		out[entitlements.Tier(row.Tier)] = row.Count
	}
	return out, nil
}

// CountCreatedSince counts accounts created at or after since.
func (r *userRepository) CountCreatedSince(since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).Where("created_at >= ?", since).Count(&count).Error
	return count, err
}

// GetDailyStats returns daily user registration statistics for a date range
func (r *userRepository) GetDailyStats(startDate, endDate time.Time) ([]models.DailyStats, error) {
	var results []struct {
		Date  string
		Count int64
	}

	err := r.db.Model(&models.User{}).
		Select("DATE_FORMAT(created_at, '%Y-%m-%d') as date, COUNT(*) as count").
		Where("created_at BETWEEN ? AND ?", startDate, endDate).
		Group("DATE_FORMAT(created_at, '%Y-%m-%d')").
		Order("date").
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get daily user stats: %w", err)
	}

	dailyStats := make([]models.DailyStats, len(results))
	for i, result := range results {
		dailyStats[i] = models.DailyStats{
			Date:  result.Date,
			Count: int(result.Count),
		}
	}

	return dailyStats, nil
}
