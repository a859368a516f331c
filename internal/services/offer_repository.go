package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/parallax/reboot-hackathon-2025/internal/db"
	"github.com/parallax/reboot-hackathon-2025/internal/models"
	"github.com/parallax/reboot-hackathon-2025/internal/utils"
)

var (
	// ErrOfferNotFound is returned when no offer has the requested id.
	ErrOfferNotFound = errors.New("offer not found")
	// ErrOfferNotPending is returned by DecidePending when the offer is
	// missing or already has a decision.
	ErrOfferNotPending = errors.New("offer is not pending")
)

// OfferRepository persists offers.
type OfferRepository interface {
	// Insert assigns a fresh id to offer and stores it.
	Insert(ctx context.Context, offer *models.Offer) error
	FindByID(ctx context.Context, offerID utils.SixID) (*models.Offer, error)
	// ListByItems returns offers targeting any of itemIDs, newest first.
	ListByItems(ctx context.Context, itemIDs []utils.SixID) ([]models.Offer, error)
	// ListByOfferer returns offers made by userID, newest first.
	ListByOfferer(ctx context.Context, userID string) ([]models.Offer, error)
	// DecidePending records decision only if the offer is still pending and
	// returns the updated offer.
	DecidePending(ctx context.Context, offerID utils.SixID, decision models.OfferDecision, at time.Time, reason string) (*models.Offer, error)
}

type mongoOfferRepository struct {
	collection *mongo.Collection
}

// NewOfferRepository returns an OfferRepository backed by the offer_history collection.
func NewOfferRepository(database *mongo.Database) OfferRepository {
	return &mongoOfferRepository{collection: database.Collection(db.CollectionOffers)}
}

func (r *mongoOfferRepository) Insert(ctx context.Context, offer *models.Offer) error {
	err := db.Try(ctx, func() error {
		offer.GenID()
		_, insertErr := r.collection.InsertOne(ctx, offer)
		return insertErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert offer (last attempted id %s): %w", offer.ID, err)
	}
	return nil
}

func (r *mongoOfferRepository) FindByID(ctx context.Context, offerID utils.SixID) (*models.Offer, error) {
	var offer models.Offer
	err := r.collection.FindOne(ctx, bson.M{"_id": offerID}).Decode(&offer)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOfferNotFound
		}
		return nil, fmt.Errorf("error finding offer %s: %w", offerID, err)
	}
	return &offer, nil
}

func (r *mongoOfferRepository) ListByItems(ctx context.Context, itemIDs []utils.SixID) ([]models.Offer, error) {
	if len(itemIDs) == 0 {
		return []models.Offer{}, nil
	}
	return r.find(ctx, bson.M{"item_id": bson.M{"$in": itemIDs}})
}

func (r *mongoOfferRepository) ListByOfferer(ctx context.Context, userID string) ([]models.Offer, error) {
	return r.find(ctx, bson.M{"offerer_user_id": userID})
}

func (r *mongoOfferRepository) find(ctx context.Context, filter bson.M) ([]models.Offer, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying offers: %w", err)
	}
	offers := []models.Offer{}
	if err := cursor.All(ctx, &offers); err != nil {
		return nil, fmt.Errorf("error decoding offers: %w", err)
	}
	return offers, nil
}

// pendingFilter matches offerID only while neither decision timestamp is set.
func pendingFilter(offerID utils.SixID) bson.M {
	return bson.M{
		"_id":         offerID,
		"accepted_at": nil,
		"rejected_at": nil,
	}
}

// decisionUpdate sets one timestamp and explicitly clears the other side.
func decisionUpdate(decision models.OfferDecision, at time.Time, reason string) bson.M {
	if decision == models.OfferDecisionAccept {
		return bson.M{"$set": bson.M{
			"accepted_at":   at,
			"rejected_at":   nil,
			"reject_reason": nil,
		}}
	}
	return bson.M{"$set": bson.M{
		"rejected_at":   at,
		"reject_reason": reason,
		"accepted_at":   nil,
	}}
}

func (r *mongoOfferRepository) DecidePending(ctx context.Context, offerID utils.SixID, decision models.OfferDecision, at time.Time, reason string) (*models.Offer, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var offer models.Offer
	err := r.collection.FindOneAndUpdate(ctx, pendingFilter(offerID), decisionUpdate(decision, at, reason), opts).Decode(&offer)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOfferNotPending
		}
		return nil, fmt.Errorf("failed to record decision on offer %s: %w", offerID, err)
	}
	return &offer, nil
}
