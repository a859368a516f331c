package models

import (
	"time"
)

// User mirrors an identity-provider account plus the profile kept locally.
// ID is the provider's user id.
type User struct {
	ID                 string     `bson:"_id" json:"id"`
	Name               string     `bson:"name" json:"name"`
	Email              string     `bson:"email" json:"email"`
	Location           string     `bson:"location" json:"location"`
	OnboardingComplete *time.Time `bson:"onboarding_complete" json:"onboarding_complete"`
	InterestedTagIDs   []int      `bson:"interested_tag_ids" json:"interested_tag_ids"`
	OfferingTagIDs     []int      `bson:"offering_tag_ids" json:"offering_tag_ids"`
	CreatedAt          time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `bson:"updated_at" json:"updated_at"`
}

// Identity is what the bearer token says about the caller.
type Identity struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// Contact is where notifications for a user go.
type Contact struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}
