package repository

import (
	"github.com/ManuelReschke/CreatorStudio/app/models"
	"gorm.io/gorm"
)

// DefaultHistoryLimit is the number of records returned by history listings.
const DefaultHistoryLimit = 50

type generationRepository struct {
	db *gorm.DB
}

// NewGenerationRepository creates a new generation repository instance
func NewGenerationRepository(db *gorm.DB) GenerationRepository {
	return &generationRepository{db: db}
}

// CreateAvatar stores a generation together with its images
func (r *generationRepository) CreateAvatar(gen *models.AvatarGeneration) error {
	return r.db.Create(gen).Error
}

// ListAvatarsByUser returns the newest generations of a user with images in position order
func (r *generationRepository) ListAvatarsByUser(userID uint, limit int) ([]models.AvatarGeneration, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	var gens []models.AvatarGeneration
	err := r.db.
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&gens).Error
	return gens, err
}

func (r *generationRepository) GetAvatarByUUID(uuid string) (*models.AvatarGeneration, error) {
	var gen models.AvatarGeneration
	err := r.db.
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("uuid = ?", uuid).
		First(&gen).Error
	if err != nil {
		return nil, err
	}
	return &gen, nil
}

func (r *generationRepository) CountAvatars() (int64, error) {
	var count int64
	err := r.db.Model(&models.AvatarGeneration{}).Count(&count).Error
	return count, err
}

// SetImageArchiveKey records where an image was archived
func (r *generationRepository) SetImageArchiveKey(imageID uint, key string) error {
	return r.db.Model(&models.AvatarImage{}).Where("id = ?", imageID).UpdateColumn("archive_key", key).Error
}

func (r *generationRepository) CreateVideo(video *models.VideoGeneration) error {
	return r.db.Create(video).Error
}

func (r *generationRepository) ListVideosByUser(userID uint, limit int) ([]models.VideoGeneration, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	var videos []models.VideoGeneration
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Find(&videos).Error
	return videos, err
}

// GetVideoForUser returns a video only when it belongs to userID
func (r *generationRepository) GetVideoForUser(id, userID uint) (*models.VideoGeneration, error) {
	var video models.VideoGeneration
	err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&video).Error
	if err != nil {
		return nil, err
	}
	return &video, nil
}

func (r *generationRepository) GetVideoByRequestID(requestID string) (*models.VideoGeneration, error) {
	var video models.VideoGeneration
	err := r.db.Where("request_id = ?", requestID).First(&video).Error
	if err != nil {
		return nil, err
	}
	return &video, nil
}

func (r *generationRepository) DeleteVideo(id uint) error {
	return r.db.Delete(&models.VideoGeneration{}, id).Error
}

func (r *generationRepository) CountVideos() (int64, error) {
	var count int64
	err := r.db.Model(&models.VideoGeneration{}).Count(&count).Error
	return count, err
}
