package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/parallax/reboot-hackathon-2025/internal/config"
	"github.com/parallax/reboot-hackathon-2025/internal/services"
)

// OfferNotifier delivers "offer received" notifications by queueing an
// email:deliver task for the background worker.
type OfferNotifier struct {
	client IAsynqClient
	cfg    *config.Config
}

// NewOfferNotifier creates an OfferNotifier that enqueues on client.
func NewOfferNotifier(client IAsynqClient, cfg *config.Config) *OfferNotifier {
	return &OfferNotifier{client: client, cfg: cfg}
}

// SendOfferReceived enqueues the notification. A nil error means the task was
// accepted by the queue, not that the email has gone out.
func (n *OfferNotifier) SendOfferReceived(ctx context.Context, note services.OfferNotification) error {
	if note.Recipient.Email == "" {
		return fmt.Errorf("recipient %s has no email address", note.Recipient.UserID)
	}

	recipientName := note.Recipient.Name
	if recipientName == "" {
		recipientName = "there"
	}

	payload, err := json.Marshal(EmailTaskPayload{
		To:         note.Recipient.Email,
		TemplateID: services.TemplateOfferReceived,
		Locale:     services.DefaultLocale,
		Data: map[string]interface{}{
			"recipient_name":           recipientName,
			"item_title":               note.Item.Title,
			"item_description":         note.Item.Description,
			"offered_item_title":       note.OfferedItem.Title,
			"offered_item_description": note.OfferedItem.Description,
			"offer_url":                n.offerURL(note),
			"offer_id":                 note.OfferID.String(),
			"expiry":                   note.Expiry.UTC().Format("2 January 2006"),
			"app_name":                 n.cfg.AppName,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal offer notification: %w", err)
	}

	task := asynq.NewTask(TypeEmailDelivery, payload, asynq.Queue(QueueCritical), asynq.MaxRetry(5))
	info, err := n.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue offer notification: %w", err)
	}

	log.Debug().
		Str("task_id", info.ID).
		Str("offer_id", note.OfferID.String()).
		Msg("Offer notification enqueued")
	return nil
}

func (n *OfferNotifier) offerURL(note services.OfferNotification) string {
	return fmt.Sprintf("%s/offers/%s", strings.TrimRight(n.cfg.AppURL, "/"), note.OfferID)
}
