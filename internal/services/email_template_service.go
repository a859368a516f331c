package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/parallax/reboot-hackathon-2025/internal/db"
	"github.com/parallax/reboot-hackathon-2025/internal/models"
	"github.com/parallax/reboot-hackathon-2025/internal/utils"
)

const (
	TemplateOfferReceived = "offer_received"
	DefaultLocale         = "en-US"
)

// Default email templates used as fallback when not found in database
var defaultEmailTemplates = map[string]models.EmailTemplate{
	TemplateOfferReceived: {
		TemplateID: TemplateOfferReceived,
		Locale:     DefaultLocale,
		Subject:    `New offer received for "{{.item_title}}"`,
		Body: `Hi {{if .recipient_name}}{{.recipient_name}}{{else}}there{{end}},

You've received a new offer!

For your item: "{{.item_title}}"
{{.item_description}}

Offered in exchange: "{{.offered_item_title}}"
{{.offered_item_description}}

View & respond to the offer: {{.offer_url}}

Offer ID: {{.offer_id}} | Expires: {{.expiry}}

This offer was made through {{.app_name}}. Visit the platform to manage your offers and connect with other local businesses.
`,
	},
}

// ErrTemplateNotFound is returned when neither the DB nor the defaults know a template.
var ErrTemplateNotFound = errors.New("email template not found")

// IEmailTemplateService defines the interface for email template operations.
type IEmailTemplateService interface {
	GetTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error)
	Render(ctx context.Context, templateID, locale string, data map[string]interface{}) (subject, body string, err error)
}

// EmailTemplateService handles operations related to email templates
type EmailTemplateService struct {
	db *mongo.Database
}

// NewEmailTemplateService creates a new instance of EmailTemplateService
func NewEmailTemplateService(database *mongo.Database) *EmailTemplateService {
	return &EmailTemplateService{db: database}
}

// GetTemplate retrieves an email template by ID and locale, falling back to the built-in default.
func (s *EmailTemplateService) GetTemplate(ctx context.Context, templateID string, locale string) (*models.EmailTemplate, error) {
	if s.db == nil {
		return defaultTemplate(templateID, locale)
	}

	filter := bson.M{
		"template_id": templateID,
		"locale":      locale,
	}

	var tmpl models.EmailTemplate
	err := s.db.Collection(db.CollectionEmailTemplates).FindOne(ctx, filter).Decode(&tmpl)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return defaultTemplate(templateID, locale)
		}
		return nil, fmt.Errorf("error retrieving template: %w", err)
	}

	return &tmpl, nil
}

func defaultTemplate(templateID, locale string) (*models.EmailTemplate, error) {
	if tmpl, ok := defaultEmailTemplates[templateID]; ok {
		return &tmpl, nil
	}
	return nil, fmt.Errorf("%w: %s (locale: %s)", ErrTemplateNotFound, templateID, locale)
}

// Render looks up a template and executes its subject and body against data.
// Missing keys are an error rather than rendering "<no value>".
func (s *EmailTemplateService) Render(ctx context.Context, templateID, locale string, data map[string]interface{}) (string, string, error) {
	tmpl, err := s.GetTemplate(ctx, templateID, locale)
	if err != nil {
		return "", "", err
	}

	subject, err := execute(templateID+".subject", tmpl.Subject, data)
	if err != nil {
		return "", "", err
	}
	body, err := execute(templateID+".body", tmpl.Body, data)
	if err != nil {
		return "", "", err
	}

	// Header injection guard; subjects are a single line.
	subject = strings.Join(strings.Fields(subject), " ")
	return subject, body, nil
}

func execute(name, text string, data map[string]interface{}) (string, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return sb.String(), nil
}

// DefaultTemplates returns copies of the built-in templates.
func DefaultTemplates() []models.EmailTemplate {
	out := make([]models.EmailTemplate, 0, len(defaultEmailTemplates))
	for _, tmpl := range defaultEmailTemplates {
		out = append(out, tmpl)
	}
	return out
}

// SaveTemplate saves an email template to the database
func (s *EmailTemplateService) SaveTemplate(ctx context.Context, tmpl *models.EmailTemplate) error {
	filter := bson.M{
		"template_id": tmpl.TemplateID,
		"locale":      tmpl.Locale,
	}

	update := bson.M{"$set": bson.M{
		"template_id": tmpl.TemplateID,
		"locale":      tmpl.Locale,
		"subject":     tmpl.Subject,
		"body":        tmpl.Body,
	}, "$setOnInsert": bson.M{"_id": utils.NewSixID()}}
	opts := options.Update().SetUpsert(true)

	if _, err := s.db.Collection(db.CollectionEmailTemplates).UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("error saving template: %w", err)
	}
	return nil
}
