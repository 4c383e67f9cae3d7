package models

import "time"

// ProviderAccount links an OAuth identity (currently Google) to a User.
type ProviderAccount struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"index" json:"userId"`
	Provider       string     `gorm:"index:provider_uid,unique;type:varchar(50)" json:"provider"`
	ProviderUserID string     `gorm:"index:provider_uid,unique;type:varchar(191)" json:"providerUserId"`
	AccessToken    string     `gorm:"type:text" json:"-"`
	RefreshToken   string     `gorm:"type:text" json:"-"`
	ExpiresAt      *time.Time `gorm:"type:timestamp;default:null" json:"expiresAt,omitempty"`
	LastSignInAt   *time.Time `gorm:"type:timestamp;default:null" json:"lastSignInAt,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

// Touch records a sign-in through this identity and refreshes its tokens.
func (p *ProviderAccount) Touch(accessToken, refreshToken string, expiresAt *time.Time) {
	now := time.Now()
	p.LastSignInAt = &now
	if accessToken != "" {
		p.AccessToken = accessToken
	}
	if refreshToken != "" {
		p.RefreshToken = refreshToken
	}
	if expiresAt != nil && !expiresAt.IsZero() {
		p.ExpiresAt = expiresAt
	}
}
