package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/ManuelReschke/CreatorStudio/internal/pkg/entitlements"
)

const (
	ROLE_USER  = "user"
	ROLE_ADMIN = "admin"

	PROVIDER_CREDENTIALS = "credentials"
	PROVIDER_GOOGLE      = "google"
)

// User is the account record. Credits and subscription fields are written by
// the credit ledger and the billing reconciler; admins may edit them directly.
type User struct {
	ID                 uint                `gorm:"primaryKey" json:"id"`
	Name               string              `gorm:"type:varchar(150)" json:"name" validate:"max=150"`
	Email              string              `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,max=200"`
	Password           string              `gorm:"type:text" json:"-"`
	Image              string              `gorm:"type:varchar(512);default:null" json:"image"`
	Provider           string              `gorm:"type:varchar(50);default:'credentials'" json:"provider" validate:"oneof=credentials google"`
	Role               string              `gorm:"type:varchar(50);default:'user'" json:"role" validate:"oneof=user admin"`
	Credits            int                 `gorm:"not null;default:0" json:"credits"`
	SubscriptionTier   entitlements.Tier   `gorm:"type:varchar(20);not null;default:'free';index" json:"subscriptionTier"`
	SubscriptionStatus entitlements.Status `gorm:"type:varchar(20);not null;default:'free';index" json:"subscriptionStatus"`
	SubscriptionID     *string             `gorm:"type:varchar(191);default:null" json:"subscriptionId"`
	BillingCustomerID  *string             `gorm:"type:varchar(191);uniqueIndex;default:null" json:"billingCustomerId"`
	CurrentPeriodEnd   *time.Time          `gorm:"type:timestamp;default:null" json:"currentPeriodEnd"`
	CreditsResetDate   *time.Time          `gorm:"type:timestamp;default:null" json:"creditsResetDate"`
	LastLoginAt        *time.Time          `gorm:"type:timestamp;default:null" json:"lastLoginAt"`
	CreatedAt          time.Time           `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt          time.Time           `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// NormalizeEmail lower-cases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser builds a new credentials account on the free tier with the
// given starting balance.
func CreateUser(name, email, password string, startingCredits int) (*User, error) {
	u := &User{
		Name:               strings.TrimSpace(name),
		Email:              NormalizeEmail(email),
		Provider:           PROVIDER_CREDENTIALS,
		Role:               ROLE_USER,
		Credits:            startingCredits,
		SubscriptionTier:   entitlements.TierFree,
		SubscriptionStatus: entitlements.StatusFree,
	}
	if err := u.SetPassword(password); err != nil {
		return nil, err
	}
	now := time.Now()
	u.CreditsResetDate = &now

	if err := u.Validate(); err != nil {
		return nil, err
	}

	return u, nil
}

// NewOAuthUser builds a new account for a first OAuth sign-in.
func NewOAuthUser(provider, name, email, image string, startingCredits int) *User {
	now := time.Now()
	return &User{
		Name:               strings.TrimSpace(name),
		Email:              NormalizeEmail(email),
		Image:              image,
		Provider:           provider,
		Role:               ROLE_USER,
		Credits:            startingCredits,
		SubscriptionTier:   entitlements.TierFree,
		SubscriptionStatus: entitlements.StatusFree,
		CreditsResetDate:   &now,
	}
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	return err == nil
}

// CheckPassword verifies the password. OAuth-only accounts never match.
func (u *User) CheckPassword(password string) bool {
	if u.Password == "" {
		return false
	}
	return CheckPasswordHash(password, u.Password)
}

// SetPassword hashes and sets a new password for the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.Password = hashedPassword
	return nil
}

// IsAdmin reports whether the account carries the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == ROLE_ADMIN
}

// HasBillingCustomer reports whether a billing customer id is linked.
func (u *User) HasBillingCustomer() bool {
	return u.BillingCustomerID != nil && *u.BillingCustomerID != ""
}
