package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/parallax/reboot-hackathon-2025/internal/apperr"
	"github.com/parallax/reboot-hackathon-2025/internal/config"
	"github.com/parallax/reboot-hackathon-2025/internal/db"
	"github.com/parallax/reboot-hackathon-2025/internal/models"
)

// ProfileSetupInput is what the onboarding form submits.
type ProfileSetupInput struct {
	Location         string `json:"location"`
	InterestedTagIDs []int  `json:"interested_tag_ids"`
	OfferingTagIDs   []int  `json:"offering_tag_ids"`
}

// IUserService is the local directory of identity-provider users plus their profile.
type IUserService interface {
	UpsertIdentity(ctx context.Context, identity models.Identity) error
	FindByID(ctx context.Context, userID string) (*models.User, error)
	ResolveContact(ctx context.Context, userID string) (*models.Contact, error)
	SubmitProfileSetup(ctx context.Context, userID string, input ProfileSetupInput) (*models.User, error)
	GetProfile(ctx context.Context, userID string) (*models.User, error)
	ClearOnboardingStatus(ctx context.Context, userID string) error
}

type userService struct {
	db  *mongo.Database
	rdb redis.Cmdable
	cfg *config.Config
	now func() time.Time
}

// NewUserService creates a new UserService. rdb may be nil, in which case
// every UpsertIdentity call writes through.
func NewUserService(database *mongo.Database, rdb redis.Cmdable, cfg *config.Config) IUserService {
	return &userService{db: database, rdb: rdb, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

func identitySyncKey(userID string) string {
	return fmt.Sprintf("identity:sync:%s", userID)
}

// UpsertIdentity records the caller's name and email from their token. It
// writes at most once per IDENTITY_SYNC_TTL per user.
func (s *userService) UpsertIdentity(ctx context.Context, identity models.Identity) error {
	if identity.UserID == "" {
		return apperr.Unauthenticated()
	}

	if s.rdb != nil && s.cfg.IdentitySyncTTL > 0 {
		fresh, err := s.rdb.SetNX(ctx, identitySyncKey(identity.UserID), 1, s.cfg.IdentitySyncTTL).Result()
		if err != nil {
			log.Warn().Err(err).Str("user_id", identity.UserID).Msg("Identity sync gate unavailable, writing through")
		} else if !fresh {
			return nil
		}
	}

	now := s.now()
	set := bson.M{"updated_at": now}
	if name := strings.TrimSpace(identity.Name); name != "" {
		set["name"] = name
	}
	if email := strings.TrimSpace(identity.Email); email != "" {
		set["email"] = strings.ToLower(email)
	}

	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"created_at":          now,
			"onboarding_complete": nil,
			"interested_tag_ids":  []int{},
			"offering_tag_ids":    []int{},
			"location":            "",
		},
	}
	_, err := s.db.Collection(db.CollectionUsers).UpdateOne(ctx, bson.M{"_id": identity.UserID}, update, options.Update().SetUpsert(true))
	if err != nil {
		if s.rdb != nil {
			_ = s.rdb.Del(ctx, identitySyncKey(identity.UserID)).Err()
		}
		return apperr.Dependency(err, "failed to record identity")
	}
	return nil
}

// FindByID returns the directory entry for userID.
func (s *userService) FindByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := s.db.Collection(db.CollectionUsers).FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("user %s not found", userID)
		}
		return nil, apperr.Dependency(err, "failed to load user %s", userID)
	}
	return &user, nil
}

// ResolveContact returns where notifications for userID should go.
func (s *userService) ResolveContact(ctx context.Context, userID string) (*models.Contact, error) {
	user, err := s.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Email == "" {
		return nil, apperr.NotFound("user %s has no email address", userID)
	}
	return &models.Contact{UserID: user.ID, Name: user.Name, Email: user.Email}, nil
}

// SubmitProfileSetup stores the onboarding answers and marks onboarding complete.
func (s *userService) SubmitProfileSetup(ctx context.Context, userID string, input ProfileSetupInput) (*models.User, error) {
	if userID == "" {
		return nil, apperr.Unauthenticated()
	}

	location := strings.TrimSpace(input.Location)
	interested := dedupeTagIDs(input.InterestedTagIDs)
	offering := dedupeTagIDs(input.OfferingTagIDs)

	if location == "" && len(interested) == 0 && len(offering) == 0 {
		return nil, apperr.Validation("add a location or select at least one tag to continue")
	}

	now := s.now()
	update := bson.M{
		"$set": bson.M{
			"location":            location,
			"interested_tag_ids":  interested,
			"offering_tag_ids":    offering,
			"onboarding_complete": now,
			"updated_at":          now,
		},
		"$setOnInsert": bson.M{
			"created_at": now,
			"name":       "",
			"email":      "",
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var user models.User
	err := s.db.Collection(db.CollectionUsers).FindOneAndUpdate(ctx, bson.M{"_id": userID}, update, opts).Decode(&user)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to save profile")
	}
	return &user, nil
}

// GetProfile returns the caller's profile.
func (s *userService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, apperr.Unauthenticated()
	}
	return s.FindByID(ctx, userID)
}

// ClearOnboardingStatus resets onboarding so the setup flow runs again.
func (s *userService) ClearOnboardingStatus(ctx context.Context, userID string) error {
	if userID == "" {
		return apperr.Unauthenticated()
	}

	now := s.now()
	update := bson.M{
		"$set": bson.M{
			"onboarding_complete": nil,
			"updated_at":          now,
		},
		"$setOnInsert": bson.M{"created_at": now},
	}
	_, err := s.db.Collection(db.CollectionUsers).UpdateOne(ctx, bson.M{"_id": userID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return apperr.Dependency(err, "failed to clear onboarding status")
	}
	return nil
}
