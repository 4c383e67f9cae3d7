package models

import "time"

const (
	CREDIT_TX_SIGNUP       = "signup"
	CREDIT_TX_DEBIT        = "debit"
	CREDIT_TX_RESET        = "reset"
	CREDIT_TX_ADMIN_ADJUST = "admin_adjust"
)

// CreditTransaction is an append-only audit row written in the same
// transaction as every balance change.
type CreditTransaction struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"index;not null" json:"userId"`
	Kind          string    `gorm:"type:varchar(20);not null;index" json:"kind"`
	Action        string    `gorm:"type:varchar(20);default:''" json:"action,omitempty"`
	Amount        int       `gorm:"not null" json:"amount"`
	BalanceBefore *int      `json:"balanceBefore,omitempty"`
	BalanceAfter  int       `gorm:"not null" json:"balanceAfter"`
	Reason        string    `gorm:"type:varchar(500);default:''" json:"reason,omitempty"`
	ActorUserID   *uint     `gorm:"index" json:"actorUserId,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}
