package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/parallax/reboot-hackathon-2025/internal/apperr"
	"github.com/parallax/reboot-hackathon-2025/internal/config"
	"github.com/parallax/reboot-hackathon-2025/internal/db"
	"github.com/parallax/reboot-hackathon-2025/internal/models"
	"github.com/parallax/reboot-hackathon-2025/internal/utils"
)

// CreateItemInput holds the fields a user supplies for a new listing.
type CreateItemInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageKey    string `json:"image_key"`
	TagIDs      []int  `json:"tag_ids"`
	Repeatable  bool   `json:"repeatable"`
}

// IItemService defines the interface for item (listing) operations.
type IItemService interface {
	CreateItem(ctx context.Context, userID string, input CreateItemInput) (*models.Item, error)
	UpdateItem(ctx context.Context, itemID utils.SixID, userID string, patch models.ItemPatch) (*models.Item, error)
	FindItemByID(ctx context.Context, itemID utils.SixID) (*models.Item, error)
	FindItemsByIDs(ctx context.Context, itemIDs []utils.SixID) (map[utils.SixID]*models.Item, error)
	GetItemDetail(ctx context.Context, itemID utils.SixID) (*models.ItemDetail, error)
	ListItemsByUser(ctx context.Context, userID string) ([]models.Item, error)
	BrowseActiveItems(ctx context.Context, tagIDs []int) ([]models.Item, error)
	SetItemImage(ctx context.Context, itemID utils.SixID, imageKey string) error
}

// itemService implements IItemService.
type itemService struct {
	db    *mongo.Database
	cfg   *config.Config
	tags  ITagService
	users IUserService
	now   func() time.Time
}

// NewItemService creates a new ItemService.
func NewItemService(database *mongo.Database, cfg *config.Config, tags ITagService, users IUserService) IItemService {
	return &itemService{
		db:    database,
		cfg:   cfg,
		tags:  tags,
		users: users,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func validateItemFields(title, description string, tagIDs []int) error {
	if title == "" {
		return apperr.Validation("title is required")
	}
	if description == "" {
		return apperr.Validation("description is required")
	}
	if len(tagIDs) == 0 {
		return apperr.Validation("select at least one tag")
	}
	return nil
}

// CreateItem stores a new active item owned by userID.
func (s *itemService) CreateItem(ctx context.Context, userID string, input CreateItemInput) (*models.Item, error) {
	if userID == "" {
		return nil, apperr.Unauthenticated()
	}

	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	tagIDs := dedupeTagIDs(input.TagIDs)
	if err := validateItemFields(title, description, tagIDs); err != nil {
		return nil, err
	}

	collection := s.db.Collection(db.CollectionItems)
	now := s.now()

	var item *models.Item
	err := db.Try(ctx, func() error {
		item = &models.Item{
			Base:        models.NewBase(),
			UserID:      userID,
			Title:       title,
			Description: description,
			Active:      true,
			Repeatable:  input.Repeatable,
			ImageKey:    strings.TrimSpace(input.ImageKey),
			TagIDs:      tagIDs,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		_, insertErr := collection.InsertOne(ctx, item)
		return insertErr
	})
	if err != nil {
		return nil, apperr.Dependency(err, "failed to create item for user %s", userID)
	}

	log.Info().Str("item_id", item.ID.String()).Str("user_id", userID).Msg("Created item")
	return item, nil
}

// UpdateItem applies patch to an item owned by userID.
func (s *itemService) UpdateItem(ctx context.Context, itemID utils.SixID, userID string, patch models.ItemPatch) (*models.Item, error) {
	if userID == "" {
		return nil, apperr.Unauthenticated()
	}

	set := bson.M{}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, apperr.Validation("title is required")
		}
		set["title"] = title
	}
	if patch.Description != nil {
		description := strings.TrimSpace(*patch.Description)
		if description == "" {
			return nil, apperr.Validation("description is required")
		}
		set["description"] = description
	}
	if patch.TagIDs != nil {
		tagIDs := dedupeTagIDs(patch.TagIDs)
		if len(tagIDs) == 0 {
			return nil, apperr.Validation("select at least one tag")
		}
		set["tag_ids"] = tagIDs
	}
	if patch.Repeatable != nil {
		set["repeatable"] = *patch.Repeatable
	}
	if patch.Active != nil {
		set["active"] = *patch.Active
	}
	if patch.ImageKey != nil {
		set["image_key"] = strings.TrimSpace(*patch.ImageKey)
	}
	if len(set) == 0 {
		return nil, apperr.Validation("no fields provided for update")
	}
	set["updated_at"] = s.now()

	collection := s.db.Collection(db.CollectionItems)
	filter := bson.M{"_id": itemID, "user_id": userID}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Item
	err := collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.Dependency(err, "failed to update item %s", itemID)
	}

	// Nothing matched; find out whether the item is missing or someone else's.
	existing, findErr := s.FindItemByID(ctx, itemID)
	if findErr != nil {
		return nil, findErr
	}
	if existing.UserID != userID {
		return nil, apperr.Unauthorized("item %s does not belong to you", itemID)
	}
	return nil, apperr.Dependency(err, "failed to update item %s", itemID)
}

// FindItemByID returns the item or a NotFound error. It does not check ownership.
func (s *itemService) FindItemByID(ctx context.Context, itemID utils.SixID) (*models.Item, error) {
	var item models.Item
	err := s.db.Collection(db.CollectionItems).FindOne(ctx, bson.M{"_id": itemID}).Decode(&item)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("item %s not found", itemID)
		}
		return nil, apperr.Dependency(err, "failed to load item %s", itemID)
	}
	return &item, nil
}

// FindItemsByIDs loads several items at once. Missing ids are absent from the map.
func (s *itemService) FindItemsByIDs(ctx context.Context, itemIDs []utils.SixID) (map[utils.SixID]*models.Item, error) {
	result := make(map[utils.SixID]*models.Item, len(itemIDs))
	if len(itemIDs) == 0 {
		return result, nil
	}

	cursor, err := s.db.Collection(db.CollectionItems).Find(ctx, bson.M{"_id": bson.M{"$in": itemIDs}})
	if err != nil {
		return nil, apperr.Dependency(err, "failed to load items")
	}
	var items []models.Item
	if err := cursor.All(ctx, &items); err != nil {
		return nil, apperr.Dependency(err, "failed to decode items")
	}
	for i := range items {
		result[items[i].ID] = &items[i]
	}
	return result, nil
}

// GetItemDetail joins the item with its tag names and its owner's name and location.
func (s *itemService) GetItemDetail(ctx context.Context, itemID utils.SixID) (*models.ItemDetail, error) {
	item, err := s.FindItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	detail := &models.ItemDetail{Item: *item, Tags: []models.Tag{}}

	if tags, err := s.tags.FindTagsByIDs(ctx, item.TagIDs); err != nil {
		log.Warn().Err(err).Str("item_id", itemID.String()).Msg("Failed to load item tags")
	} else {
		detail.Tags = tags
	}

	detail.OwnerName = fallbackOwnerName(item.UserID)
	owner, err := s.users.FindByID(ctx, item.UserID)
	if err != nil {
		log.Debug().Err(err).Str("user_id", item.UserID).Msg("Owner lookup failed, using fallback name")
	} else {
		if owner.Name != "" {
			detail.OwnerName = owner.Name
		}
		detail.OwnerLocation = owner.Location
	}

	return detail, nil
}

func fallbackOwnerName(userID string) string {
	short := userID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("User %s...", short)
}

// ListItemsByUser returns all of a user's items, newest first.
func (s *itemService) ListItemsByUser(ctx context.Context, userID string) ([]models.Item, error) {
	return s.findItems(ctx, bson.M{"user_id": userID})
}

// BrowseActiveItems returns active items carrying any of tagIDs, newest first.
// An empty selection matches nothing.
func (s *itemService) BrowseActiveItems(ctx context.Context, tagIDs []int) ([]models.Item, error) {
	tagIDs = dedupeTagIDs(tagIDs)
	if len(tagIDs) == 0 {
		return []models.Item{}, nil
	}
	return s.findItems(ctx, bson.M{"active": true, "tag_ids": bson.M{"$in": tagIDs}})
}

func (s *itemService) findItems(ctx context.Context, filter bson.M) ([]models.Item, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(db.CollectionItems).Find(ctx, filter, opts)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to query items")
	}
	items := []models.Item{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, apperr.Dependency(err, "failed to decode items")
	}
	return items, nil
}

// SetItemImage records the processed image key. Called by the image worker.
func (s *itemService) SetItemImage(ctx context.Context, itemID utils.SixID, imageKey string) error {
	result, err := s.db.Collection(db.CollectionItems).UpdateOne(ctx,
		bson.M{"_id": itemID},
		bson.M{"$set": bson.M{"image_key": imageKey, "updated_at": s.now()}},
	)
	if err != nil {
		return apperr.Dependency(err, "failed to set image for item %s", itemID)
	}
	if result.MatchedCount == 0 {
		return apperr.NotFound("item %s not found", itemID)
	}
	return nil
}
