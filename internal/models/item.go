package models

import (
	"time"
)

// Item is a good or service a user lists for swapping. Items are never
// hard-deleted; Active=false hides them from browsing and new offers.
type Item struct {
	Base        `bson:",inline"`
	UserID      string    `bson:"user_id" json:"user_id"`
	Title       string    `bson:"title" json:"title"`
	Description string    `bson:"description" json:"description"`
	Active      bool      `bson:"active" json:"active"`
	Repeatable  bool      `bson:"repeatable" json:"repeatable"`
	ImageKey    string    `bson:"image_key,omitempty" json:"image_key,omitempty"` // S3 key
	TagIDs      []int     `bson:"tag_ids" json:"tag_ids"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

// ItemSummary is the slice of an item shown next to an offer.
type ItemSummary struct {
	Base        `bson:",inline"`
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
	ImageKey    string `json:"image_key,omitempty"`
}

// Summary returns the offer-facing view of the item.
func (i *Item) Summary() *ItemSummary {
	if i == nil {
		return nil
	}
	return &ItemSummary{
		Base:        i.Base,
		UserID:      i.UserID,
		Title:       i.Title,
		Description: i.Description,
		Active:      i.Active,
		ImageKey:    i.ImageKey,
	}
}

// ItemDetail is an item joined with its tag names and owner profile.
type ItemDetail struct {
	Item          `bson:",inline"`
	Tags          []Tag  `json:"tags"`
	OwnerName     string `json:"owner_name"`
	OwnerLocation string `json:"owner_location,omitempty"`
}

// ItemPatch lists the fields UpdateItem may change. Nil means unchanged.
type ItemPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	TagIDs      []int   `json:"tag_ids,omitempty"`
	Repeatable  *bool   `json:"repeatable,omitempty"`
	Active      *bool   `json:"active,omitempty"`
	ImageKey    *string `json:"image_key,omitempty"`
}
