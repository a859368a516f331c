package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/parallax/reboot-hackathon-2025/internal/apperr"
	"github.com/parallax/reboot-hackathon-2025/internal/config"
	"github.com/parallax/reboot-hackathon-2025/internal/events"
	"github.com/parallax/reboot-hackathon-2025/internal/metrics"
	"github.com/parallax/reboot-hackathon-2025/internal/models"
	"github.com/parallax/reboot-hackathon-2025/internal/utils"
)

var tracer = otel.Tracer("github.com/parallax/reboot-hackathon-2025/internal/services")

// CreateOfferRequest proposes OfferedItemID in exchange for TargetItemID.
// Expiry overrides the configured default when set.
type CreateOfferRequest struct {
	TargetItemID     utils.SixID
	OfferedItemID    utils.SixID
	RequestingUserID string
	Expiry           *time.Time
}

// RespondToOfferRequest is the target owner's decision on an offer.
type RespondToOfferRequest struct {
	OfferID          utils.SixID
	Decision         models.OfferDecision
	RequestingUserID string
	Reason           string
}

// OfferNotification is handed to the notifier once an offer is stored.
type OfferNotification struct {
	Recipient   models.Contact
	OfferID     utils.SixID
	Item        models.ItemSummary
	OfferedItem models.ItemSummary
	Expiry      time.Time
}

// INotificationSender delivers "offer received" notifications.
type INotificationSender interface {
	SendOfferReceived(ctx context.Context, n OfferNotification) error
}

// IContactResolver maps a user id to a notification contact.
type IContactResolver interface {
	ResolveContact(ctx context.Context, userID string) (*models.Contact, error)
}

// IOfferService is the offer lifecycle: create, respond, list.
type IOfferService interface {
	CreateOffer(ctx context.Context, req CreateOfferRequest) (*models.CreateOfferResult, error)
	RespondToOffer(ctx context.Context, req RespondToOfferRequest) (*models.OfferView, error)
	ListOffersForItem(ctx context.Context, itemID utils.SixID) ([]models.OfferView, error)
	ListOffersForItemVisibleTo(ctx context.Context, itemID utils.SixID, userID string) ([]models.OfferView, error)
	ListOffersForUser(ctx context.Context, userID string) (*models.UserOffers, error)
}

type offerService struct {
	cfg      *config.Config
	repo     OfferRepository
	items    IItemService
	contacts IContactResolver
	notifier INotificationSender
	events   events.Publisher
	now      func() time.Time
}

// NewOfferService creates a new OfferService.
func NewOfferService(cfg *config.Config, repo OfferRepository, items IItemService, contacts IContactResolver, notifier INotificationSender, publisher events.Publisher) IOfferService {
	return &offerService{
		cfg:      cfg,
		repo:     repo,
		items:    items,
		contacts: contacts,
		notifier: notifier,
		events:   publisher,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// DeriveStatus computes an offer's status from its decision timestamps.
func DeriveStatus(offer *models.Offer) models.OfferStatus {
	switch {
	case offer.AcceptedAt != nil:
		return models.OfferStatusAccepted
	case offer.RejectedAt != nil:
		return models.OfferStatusRejected
	default:
		return models.OfferStatusPending
	}
}

// CreateOffer stores a pending offer and then notifies the target item's owner.
// Notification problems never undo the offer; they show up as NotificationSent=false.
func (s *offerService) CreateOffer(ctx context.Context, req CreateOfferRequest) (*models.CreateOfferResult, error) {
	ctx, span := tracer.Start(ctx, "OfferService.CreateOffer")
	defer span.End()

	result, err := s.createOffer(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, string(apperr.KindOf(err)))
	}
	return result, err
}

func (s *offerService) createOffer(ctx context.Context, req CreateOfferRequest) (*models.CreateOfferResult, error) {
	if req.RequestingUserID == "" {
		return nil, apperr.Unauthenticated()
	}
	if req.TargetItemID.IsZero() || req.OfferedItemID.IsZero() {
		return nil, apperr.Validation("both the item and the offered item are required")
	}
	if req.TargetItemID == req.OfferedItemID {
		return nil, apperr.Validation("an item cannot be offered in exchange for itself")
	}

	now := s.now()
	expiry := now.Add(s.cfg.OfferExpiry)
	if req.Expiry != nil {
		if !req.Expiry.After(now) {
			return nil, apperr.Validation("expiry must be in the future")
		}
		expiry = req.Expiry.UTC()
	}

	var target, offered *models.Item
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		item, err := s.items.FindItemByID(gctx, req.TargetItemID)
		target = item
		return err
	})
	g.Go(func() error {
		item, err := s.items.FindItemByID(gctx, req.OfferedItemID)
		offered = item
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if offered.UserID != req.RequestingUserID {
		return nil, apperr.Unauthorized("you can only offer items you own")
	}
	if target.UserID == req.RequestingUserID {
		return nil, apperr.Validation("you cannot make an offer on your own item")
	}
	if !target.Active {
		return nil, apperr.Validation("this item is no longer accepting offers")
	}
	if !offered.Active {
		return nil, apperr.Validation("the item you are offering is no longer listed")
	}

	offer := &models.Offer{
		ItemID:        target.ID,
		OfferedItemID: offered.ID,
		OffererUserID: req.RequestingUserID,
		CreatedAt:     now,
		Expiry:        expiry,
	}
	if err := s.repo.Insert(ctx, offer); err != nil {
		return nil, apperr.Dependency(err, "failed to create offer")
	}
	metrics.OffersCreated.Inc()

	logger := log.With().
		Str("offer_id", offer.ID.String()).
		Str("item_id", target.ID.String()).
		Str("offered_item_id", offered.ID.String()).
		Logger()
	logger.Info().Str("user_id", req.RequestingUserID).Msg("Offer created")

	// The offer is durable from here on; the remaining steps are best effort
	// and must not be cut short by the caller going away.
	sideCtx := context.WithoutCancel(ctx)
	sent := s.notifyOfferReceived(sideCtx, offer, target, offered)

	s.publish(sideCtx, events.SubjectOfferCreated, events.OfferCreated{
		OfferID:       offer.ID,
		ItemID:        offer.ItemID,
		OfferedItemID: offer.OfferedItemID,
		OffererUserID: offer.OffererUserID,
		Expiry:        offer.Expiry,
		CreatedAt:     offer.CreatedAt,
	})

	return &models.CreateOfferResult{
		OfferID:          offer.ID,
		Expiry:           offer.Expiry,
		NotificationSent: sent,
	}, nil
}

func (s *offerService) notifyOfferReceived(ctx context.Context, offer *models.Offer, target, offered *models.Item) bool {
	logger := log.With().Str("offer_id", offer.ID.String()).Str("recipient_user_id", target.UserID).Logger()

	contact, err := s.contacts.ResolveContact(ctx, target.UserID)
	if err != nil {
		metrics.NotificationFailures.WithLabelValues("resolve_contact").Inc()
		logger.Warn().Err(err).Msg("Could not resolve item owner contact, offer notification skipped")
		return false
	}

	err = s.notifier.SendOfferReceived(ctx, OfferNotification{
		Recipient:   *contact,
		OfferID:     offer.ID,
		Item:        *target.Summary(),
		OfferedItem: *offered.Summary(),
		Expiry:      offer.Expiry,
	})
	if err != nil {
		metrics.NotificationFailures.WithLabelValues("send").Inc()
		logger.Warn().Err(err).Msg("Offer notification failed")
		return false
	}
	return true
}

func (s *offerService) publish(ctx context.Context, subject string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, subject, payload); err != nil {
		metrics.EventPublishFailures.WithLabelValues(subject).Inc()
		log.Warn().Err(err).Str("subject", subject).Msg("Failed to publish offer event")
	}
}

// RespondToOffer accepts or rejects a pending offer on behalf of the target
// item's owner. The write only applies while the offer is still pending, so
// of two racing responses exactly one wins and the other gets AlreadyDecided.
// Expiry does not block a decision.
func (s *offerService) RespondToOffer(ctx context.Context, req RespondToOfferRequest) (*models.OfferView, error) {
	ctx, span := tracer.Start(ctx, "OfferService.RespondToOffer")
	defer span.End()
	span.SetAttributes(attribute.String("offer.decision", string(req.Decision)))

	view, err := s.respondToOffer(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, string(apperr.KindOf(err)))
	}
	return view, err
}

func (s *offerService) respondToOffer(ctx context.Context, req RespondToOfferRequest) (*models.OfferView, error) {
	if req.RequestingUserID == "" {
		return nil, apperr.Unauthenticated()
	}
	if req.Decision != models.OfferDecisionAccept && req.Decision != models.OfferDecisionReject {
		return nil, apperr.Validation("decision must be %q or %q", models.OfferDecisionAccept, models.OfferDecisionReject)
	}

	offer, err := s.findOffer(ctx, req.OfferID)
	if err != nil {
		return nil, err
	}

	target, err := s.items.FindItemByID(ctx, offer.ItemID)
	if err != nil {
		return nil, err
	}
	if target.UserID != req.RequestingUserID {
		return nil, apperr.Unauthorized("only the owner of the item can respond to this offer")
	}

	reason := strings.TrimSpace(req.Reason)
	if req.Decision == models.OfferDecisionReject && reason == "" {
		return nil, apperr.Validation("a reason is required when rejecting an offer")
	}

	updated, err := s.repo.DecidePending(ctx, offer.ID, req.Decision, s.now(), reason)
	if errors.Is(err, ErrOfferNotPending) {
		return nil, s.explainNotPending(ctx, offer.ID, err)
	}
	if err != nil {
		return nil, apperr.Dependency(err, "failed to record your response")
	}
	metrics.OfferDecisions.WithLabelValues(string(req.Decision)).Inc()

	log.Info().
		Str("offer_id", updated.ID.String()).
		Str("decision", string(req.Decision)).
		Str("user_id", req.RequestingUserID).
		Msg("Offer decided")

	decidedAt := updated.AcceptedAt
	if req.Decision == models.OfferDecisionReject {
		decidedAt = updated.RejectedAt
	}
	event := events.OfferDecided{
		OfferID:      updated.ID,
		ItemID:       updated.ItemID,
		Decision:     string(req.Decision),
		DecidedBy:    req.RequestingUserID,
		RejectReason: updated.RejectReason,
	}
	if decidedAt != nil {
		event.DecidedAt = *decidedAt
	}
	s.publish(context.WithoutCancel(ctx), events.SubjectOfferDecided, event)

	view := s.newView(updated, target, nil)
	if offered, err := s.items.FindItemByID(ctx, updated.OfferedItemID); err == nil {
		view.OfferedItem = offered.Summary()
	} else {
		log.Debug().Err(err).Str("offer_id", updated.ID.String()).Msg("Offered item lookup failed")
	}
	return &view, nil
}

// explainNotPending re-reads an offer whose conditional update matched nothing.
func (s *offerService) explainNotPending(ctx context.Context, offerID utils.SixID, cause error) error {
	current, err := s.findOffer(ctx, offerID)
	if err != nil {
		return err
	}
	status := DeriveStatus(current)
	if status == models.OfferStatusPending {
		return apperr.Dependency(cause, "failed to record your response")
	}
	metrics.OfferDecisionConflicts.Inc()
	return apperr.AlreadyDecided("this offer has already been %s", status)
}

func (s *offerService) findOffer(ctx context.Context, offerID utils.SixID) (*models.Offer, error) {
	offer, err := s.repo.FindByID(ctx, offerID)
	if errors.Is(err, ErrOfferNotFound) {
		return nil, apperr.NotFound("offer %s not found", offerID)
	}
	if err != nil {
		return nil, apperr.Dependency(err, "failed to load offer %s", offerID)
	}
	return offer, nil
}

// ListOffersForItem returns every offer on itemID, newest first.
func (s *offerService) ListOffersForItem(ctx context.Context, itemID utils.SixID) ([]models.OfferView, error) {
	offers, err := s.repo.ListByItems(ctx, []utils.SixID{itemID})
	if err != nil {
		return nil, apperr.Dependency(err, "failed to list offers")
	}
	return s.buildViews(ctx, offers)
}

// ListOffersForItemVisibleTo returns the offers on itemID that userID may see:
// all of them for the item's owner, otherwise only offers of the user's own items.
func (s *offerService) ListOffersForItemVisibleTo(ctx context.Context, itemID utils.SixID, userID string) ([]models.OfferView, error) {
	if userID == "" {
		return nil, apperr.Unauthenticated()
	}

	target, err := s.items.FindItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	views, err := s.ListOffersForItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if target.UserID == userID {
		return views, nil
	}

	visible := make([]models.OfferView, 0, len(views))
	for _, v := range views {
		owner := v.OffererUserID
		if v.OfferedItem != nil {
			owner = v.OfferedItem.UserID
		}
		if owner == userID {
			visible = append(visible, v)
		}
	}
	if len(visible) == 0 {
		return nil, apperr.NotFound("no offers found for item %s", itemID)
	}
	return visible, nil
}

// ListOffersForUser returns offers received on the user's items and offers the user made.
func (s *offerService) ListOffersForUser(ctx context.Context, userID string) (*models.UserOffers, error) {
	if userID == "" {
		return nil, apperr.Unauthenticated()
	}

	owned, err := s.items.ListItemsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ownedIDs := make([]utils.SixID, len(owned))
	for i := range owned {
		ownedIDs[i] = owned[i].ID
	}

	var received, made []models.Offer
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		received, err = s.repo.ListByItems(gctx, ownedIDs)
		return err
	})
	g.Go(func() error {
		var err error
		made, err = s.repo.ListByOfferer(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperr.Dependency(err, "failed to list offers")
	}

	receivedViews, err := s.buildViews(ctx, received)
	if err != nil {
		return nil, err
	}
	madeViews, err := s.buildViews(ctx, made)
	if err != nil {
		return nil, err
	}
	return &models.UserOffers{Received: receivedViews, Made: madeViews}, nil
}

// buildViews annotates offers with status and item summaries, keeping order.
func (s *offerService) buildViews(ctx context.Context, offers []models.Offer) ([]models.OfferView, error) {
	views := make([]models.OfferView, 0, len(offers))
	if len(offers) == 0 {
		return views, nil
	}

	seen := make(map[utils.SixID]struct{}, len(offers)*2)
	var ids []utils.SixID
	for _, o := range offers {
		for _, id := range []utils.SixID{o.ItemID, o.OfferedItemID} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}

	items, err := s.items.FindItemsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	for i := range offers {
		views = append(views, s.newView(&offers[i], items[offers[i].ItemID], items[offers[i].OfferedItemID]))
	}
	return views, nil
}

func (s *offerService) newView(offer *models.Offer, target, offered *models.Item) models.OfferView {
	status := DeriveStatus(offer)
	return models.OfferView{
		Offer:       *offer,
		Status:      status,
		Expired:     status == models.OfferStatusPending && offer.IsExpired(s.now()),
		Item:        target.Summary(),
		OfferedItem: offered.Summary(),
	}
}
