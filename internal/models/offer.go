package models

import (
	"time"

	"github.com/parallax/reboot-hackathon-2025/internal/utils"
)

// OfferStatus is derived from an offer's decision timestamps and never stored.
type OfferStatus string

const (
	OfferStatusPending  OfferStatus = "pending"
	OfferStatusAccepted OfferStatus = "accepted"
	OfferStatusRejected OfferStatus = "rejected"
)

// OfferDecision is the target owner's answer to a pending offer.
type OfferDecision string

const (
	OfferDecisionAccept OfferDecision = "accept"
	OfferDecisionReject OfferDecision = "reject"
)

// Offer proposes swapping OfferedItemID for ItemID. At most one of
// AcceptedAt and RejectedAt is ever set. The nullable fields are written as
// explicit nulls so the pending filter matches on them.
type Offer struct {
	Base          `bson:",inline"`
	ItemID        utils.SixID `bson:"item_id" json:"item_id"`
	OfferedItemID utils.SixID `bson:"offered_item_id" json:"offered_item_id"`
	OffererUserID string      `bson:"offerer_user_id" json:"offerer_user_id"`
	CreatedAt     time.Time   `bson:"created_at" json:"created_at"`
	Expiry        time.Time   `bson:"expiry" json:"expiry"`
	AcceptedAt    *time.Time  `bson:"accepted_at" json:"accepted_at"`
	RejectedAt    *time.Time  `bson:"rejected_at" json:"rejected_at"`
	RejectReason  *string     `bson:"reject_reason" json:"reject_reason"`
}

// IsExpired reports whether the offer's expiry has passed. Informational only.
func (o *Offer) IsExpired(now time.Time) bool {
	return !o.Expiry.After(now)
}

// OfferView is an offer annotated for display.
type OfferView struct {
	Offer       `bson:",inline"`
	Status      OfferStatus  `json:"status"`
	Expired     bool         `json:"expired"`
	Item        *ItemSummary `json:"item,omitempty"`
	OfferedItem *ItemSummary `json:"offered_item,omitempty"`
}

// UserOffers groups the offers a user received on their items and the ones they made.
type UserOffers struct {
	Received []OfferView `json:"received"`
	Made     []OfferView `json:"made"`
}

// CreateOfferResult is returned once the offer is durably stored.
type CreateOfferResult struct {
	OfferID          utils.SixID `json:"offer_id"`
	Expiry           time.Time   `json:"expiry"`
	NotificationSent bool        `json:"notification_sent"`
}
