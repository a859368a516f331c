package models

import (
	"github.com/parallax/reboot-hackathon-2025/internal/utils"
)

// Base carries the SixID primary key shared by items, offers and templates.
type Base struct {
	ID utils.SixID `bson:"_id,omitempty" json:"id"`
}

// GenID assigns a fresh id. Retried inserts call it again after a duplicate key.
func (m *Base) GenID() {
	m.ID = utils.NewSixID()
}

// NewBase returns a Base with a fresh id.
func NewBase() Base {
	return Base{
		ID: utils.NewSixID(),
	}
}
