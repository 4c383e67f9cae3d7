package models

import "time"

const (
	BillingProviderPolar = "polar"
)

// Webhook processing outcomes recorded on BillingWebhookEvent.Outcome.
const (
	WebhookOutcomeApplied    = "applied"
	WebhookOutcomeNoop       = "noop"
	WebhookOutcomeLogged     = "logged"
	WebhookOutcomeUnresolved = "unresolved"
	WebhookOutcomeIgnored    = "ignored"
	WebhookOutcomeFailed     = "failed"
)

// BillingWebhookEvent keeps every received webhook delivery. The
// provider/event id pair is unique so redeliveries are detected on insert.
type BillingWebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;index:ux_billing_webhook_events_provider_event,unique,priority:1;index" json:"provider"`
	ProviderEventID string     `gorm:"type:varchar(191);not null;default:'';index:ux_billing_webhook_events_provider_event,unique,priority:2" json:"providerEventId"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"eventType"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"-"`
	SignatureValid  bool       `gorm:"default:false;index" json:"signatureValid"`
	UserID          *uint      `gorm:"index;default:null" json:"userId,omitempty"`
	Outcome         string     `gorm:"type:varchar(20);default:'';index" json:"outcome"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processedAt,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processingError,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}
