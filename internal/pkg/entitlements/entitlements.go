package entitlements

import "strings"

// Tier is the internal subscription tier of an account.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierBusiness   Tier = "business"
	TierCorporate  Tier = "corporate"
	TierEnterprise Tier = "enterprise"
)

// Status is the subscription status stored on an account.
type Status string

const (
	StatusFree     Status = "free"
	StatusActive   Status = "active"
	StatusCanceled Status = "canceled"
)

// Action is a paid generation action.
type Action string

const (
	ActionAvatar  Action = "avatar"
	ActionVideo   Action = "video"
	ActionCombine Action = "combine"
)

const (
	// UnlimitedCredits is the allowance sentinel for tiers without a monthly cap.
	UnlimitedCredits = -1
	// UnlimitedBalance is what gets stored instead of the sentinel.
	UnlimitedBalance = 999999
)

// AllTiers lists tiers in ascending order.
var AllTiers = []Tier{TierFree, TierPro, TierBusiness, TierCorporate, TierEnterprise}

// ParseTier normalizes a tier name. ok is false for unknown names.
func ParseTier(s string) (Tier, bool) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case TierFree, TierPro, TierBusiness, TierCorporate, TierEnterprise:
		return t, true
	default:
		return TierFree, false
	}
}

// ParseStatus normalizes a status name. ok is false for unknown names.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusFree, StatusActive, StatusCanceled:
		return st, true
	default:
		return StatusFree, false
	}
}

// ParseAction normalizes an action name. ok is false for unknown names.
func ParseAction(s string) (Action, bool) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case ActionAvatar, ActionVideo, ActionCombine:
		return a, true
	default:
		return "", false
	}
}

// IsPaid reports whether the tier is a paid tier.
func (t Tier) IsPaid() bool {
	return t != TierFree && t != ""
}
