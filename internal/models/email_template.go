package models

// EmailTemplate is a text/template pair stored in the DB, overriding the built-in defaults.
type EmailTemplate struct {
	Base       `bson:",inline"`
	TemplateID string `bson:"template_id" json:"template_id"` // e.g. "offer_received"
	Locale     string `bson:"locale" json:"locale"`           // e.g. "en-US"
	Subject    string `bson:"subject" json:"subject"`
	Body       string `bson:"body" json:"body"`
}
