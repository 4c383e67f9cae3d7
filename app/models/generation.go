package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	AVATAR_MODE_CREATE  = "create"
	AVATAR_MODE_EDIT    = "edit"
	AVATAR_MODE_COMBINE = "combine"

	ORIENTATION_IMAGE = "image"
	ORIENTATION_VIDEO = "video"
)

// AvatarGeneration is one avatar or combine run and its output images.
type AvatarGeneration struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	UUID           string        `gorm:"type:char(36);uniqueIndex" json:"uuid"`
	UserID         uint          `gorm:"index;not null" json:"userId"`
	Mode           string        `gorm:"type:varchar(20);not null;default:'create'" json:"mode"`
	Prompt         string        `gorm:"type:text;not null" json:"prompt"`
	SourceImageURL *string       `gorm:"type:text" json:"sourceImageUrl"`
	Images         []AvatarImage `gorm:"foreignKey:GenerationID;constraint:OnDelete:CASCADE" json:"images"`
	CreatedAt      time.Time     `gorm:"autoCreateTime;index" json:"createdAt"`
}

// BeforeCreate assigns a UUID when none is set.
func (g *AvatarGeneration) BeforeCreate(tx *gorm.DB) error {
	if g.UUID == "" {
		g.UUID = uuid.New().String()
	}
	return nil
}

// AvatarImage is a single output asset of an AvatarGeneration.
type AvatarImage struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	GenerationID uint      `gorm:"index;not null" json:"generationId"`
	URL          string    `gorm:"type:text;not null" json:"url"`
	Position     int       `gorm:"not null;default:0" json:"position"`
	ArchiveKey   string    `gorm:"type:varchar(255);default:''" json:"-"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// URLs returns the output URLs in position order.
func (g *AvatarGeneration) URLs() []string {
	out := make([]string, 0, len(g.Images))
	for _, img := range g.Images {
		out = append(out, img.URL)
	}
	return out
}

// NewAvatarGeneration builds a generation with one image row per URL.
func NewAvatarGeneration(userID uint, mode, prompt string, sourceImageURL string, urls []string) *AvatarGeneration {
	g := &AvatarGeneration{
		UserID: userID,
		Mode:   mode,
		Prompt: prompt,
	}
	if sourceImageURL != "" {
		src := sourceImageURL
		g.SourceImageURL = &src
	}
	for i, u := range urls {
		g.Images = append(g.Images, AvatarImage{URL: u, Position: i})
	}
	return g
}

// VideoGeneration is a finished motion video.
type VideoGeneration struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	UUID                 string    `gorm:"type:char(36);uniqueIndex" json:"uuid"`
	UserID               uint      `gorm:"index;not null" json:"userId"`
	RequestID            string    `gorm:"type:varchar(191);index;default:''" json:"requestId"`
	Prompt               *string   `gorm:"type:text" json:"prompt"`
	CharacterOrientation string    `gorm:"type:varchar(20);not null;default:'image'" json:"characterOrientation"`
	SourceImageURL       string    `gorm:"type:text;not null" json:"sourceImageUrl"`
	SourceVideoURL       string    `gorm:"type:text;not null" json:"sourceVideoUrl"`
	ResultURL            string    `gorm:"type:text;not null" json:"resultUrl"`
	FileName             *string   `gorm:"type:varchar(255)" json:"fileName"`
	CreatedAt            time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

// BeforeCreate assigns a UUID when none is set.
func (v *VideoGeneration) BeforeCreate(tx *gorm.DB) error {
	if v.UUID == "" {
		v.UUID = uuid.New().String()
	}
	return nil
}
