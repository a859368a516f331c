// Package events publishes offer lifecycle events to NATS JetStream.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/parallax/reboot-hackathon-2025/internal/utils"
)

const (
	StreamName = "OFFERS"

	SubjectOfferCreated = "offers.created"
	SubjectOfferDecided = "offers.decided"
)

// OfferCreated is published after an offer is stored.
type OfferCreated struct {
	OfferID       utils.SixID `json:"offer_id"`
	ItemID        utils.SixID `json:"item_id"`
	OfferedItemID utils.SixID `json:"offered_item_id"`
	OffererUserID string      `json:"offerer_user_id"`
	Expiry        time.Time   `json:"expiry"`
	CreatedAt     time.Time   `json:"created_at"`
}

// OfferDecided is published after an offer is accepted or rejected.
type OfferDecided struct {
	OfferID      utils.SixID `json:"offer_id"`
	ItemID       utils.SixID `json:"item_id"`
	Decision     string      `json:"decision"`
	DecidedBy    string      `json:"decided_by"`
	RejectReason *string     `json:"reject_reason,omitempty"`
	DecidedAt    time.Time   `json:"decided_at"`
}

// Publisher is implemented by Bus and Noop.
type Publisher interface {
	Publish(ctx context.Context, subj string, v any) error
}

// Bus wraps a NATS JetStream connection for publishing events.
type Bus struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// New connects to url and makes sure the offers stream exists.
func New(url string, opts ...nats.Option) (*Bus, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to open JetStream context: %w", err)
	}

	if _, err := js.StreamInfo(StreamName); err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			nc.Close()
			return nil, fmt.Errorf("failed to look up stream %s: %w", StreamName, err)
		}
		if _, err := js.AddStream(&nats.StreamConfig{
			Name:     StreamName,
			Subjects: []string{"offers.>"},
		}); err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to create stream %s: %w", StreamName, err)
		}
	}

	log.Info().Str("url", url).Msg("Connected to NATS")
	return &Bus{conn: nc, js: js}, nil
}

// Close drains the underlying NATS connection.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}

// Publish encodes v as JSON and publishes it to subj.
func (b *Bus) Publish(ctx context.Context, subj string, v any) error {
	if b == nil {
		return errors.New("nil bus")
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	_, err = b.js.Publish(subj, data, nats.Context(ctx))
	return err
}

// Noop drops every event. Used when NATS_URL is not configured.
type Noop struct{}

// Publish logs and discards the event.
func (Noop) Publish(ctx context.Context, subj string, v any) error {
	log.Debug().Str("subject", subj).Msg("Event publishing disabled, dropping event")
	return nil
}
