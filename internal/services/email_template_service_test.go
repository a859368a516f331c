package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func offerReceivedData() map[string]interface{} {
	return map[string]interface{}{
		"recipient_name":           "Uma",
		"item_title":               "Road\r\nbike",
		"item_description":         "Blue frame",
		"offered_item_title":       "Guitar",
		"offered_item_description": "Acoustic",
		"offer_url":                "https://swapable.example/offers/0000000001",
		"offer_id":                 "0000000001",
		"expiry":                   "8 Mar 2025",
		"app_name":                 "Swapable",
	}
}

func TestEmailTemplateService_RenderDefault(t *testing.T) {
	svc := NewEmailTemplateService(nil)

	subject, body, err := svc.Render(context.Background(), TemplateOfferReceived, DefaultLocale, offerReceivedData())

	require.NoError(t, err)
	assert.Equal(t, `New offer received for "Road bike"`, subject)
	assert.Contains(t, body, "Hi Uma,")
	assert.Contains(t, body, `Offered in exchange: "Guitar"`)
	assert.Contains(t, body, "https://swapable.example/offers/0000000001")
}

func TestEmailTemplateService_RenderMissingKey(t *testing.T) {
	svc := NewEmailTemplateService(nil)
	data := offerReceivedData()
	delete(data, "offer_url")

	_, _, err := svc.Render(context.Background(), TemplateOfferReceived, DefaultLocale, data)
	assert.Error(t, err)
}

func TestEmailTemplateService_UnknownTemplate(t *testing.T) {
	svc := NewEmailTemplateService(nil)

	_, err := svc.GetTemplate(context.Background(), "password_reset", DefaultLocale)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestDefaultTemplates(t *testing.T) {
	templates := DefaultTemplates()
	require.Len(t, templates, 1)
	assert.Equal(t, TemplateOfferReceived, templates[0].TemplateID)
	assert.Equal(t, DefaultLocale, templates[0].Locale)
}
