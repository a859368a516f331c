package services

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/parallax/reboot-hackathon-2025/internal/apperr"
	"github.com/parallax/reboot-hackathon-2025/internal/cache"
	"github.com/parallax/reboot-hackathon-2025/internal/config"
	"github.com/parallax/reboot-hackathon-2025/internal/db"
	"github.com/parallax/reboot-hackathon-2025/internal/models"
)

// DefaultTagNames are the categories seeded by the seed-tags command and
// served when the tag collection cannot be read.
var DefaultTagNames = []string{
	"Business & Tech Expertise",
	"Coaching & Mentoring",
	"Community & Volunteering",
	"Creative & Design Skills",
	"Event & Meeting Venues",
	"Events & Hospitality Services",
	"Finance & Legal Support",
	"Food & Drink",
	"Furniture & Fixtures",
	"Gardening & Outdoor Gear",
	"Hands-On Trades & Repairs",
	"IT & Electronics",
	"Learning & Training",
	"Marketing & Content",
	"Media & Promotion Opportunities",
	"Office & Co-Working Space",
	"Specialist Equipment",
	"Stock & Materials",
	"Vehicles & Transport",
	"Other",
}

const tagsCacheKey = "cache:tags"

// ITagService defines the interface for tag operations.
type ITagService interface {
	ListTags(ctx context.Context) ([]models.Tag, error)
	FindTagsByIDs(ctx context.Context, ids []int) ([]models.Tag, error)
	SeedTags(ctx context.Context, names []string) (int, error)
}

type tagService struct {
	db  *mongo.Database
	rdb redis.Cmdable
	cfg *config.Config
}

// NewTagService creates a new TagService. rdb may be nil, which disables caching.
func NewTagService(database *mongo.Database, rdb redis.Cmdable, cfg *config.Config) ITagService {
	return &tagService{db: database, rdb: rdb, cfg: cfg}
}

// DefaultTags numbers DefaultTagNames from 1, matching what SeedTags writes into an empty collection.
func DefaultTags() []models.Tag {
	tags := make([]models.Tag, len(DefaultTagNames))
	for i, name := range DefaultTagNames {
		tags[i] = models.Tag{ID: i + 1, Name: name}
	}
	return tags
}

// ListTags returns all tags ordered by name.
func (s *tagService) ListTags(ctx context.Context) ([]models.Tag, error) {
	if s.rdb != nil {
		var cached []models.Tag
		found, err := cache.GetJSON(ctx, s.rdb, tagsCacheKey, &cached)
		if err != nil {
			log.Warn().Err(err).Msg("Tag cache read failed")
		} else if found {
			return cached, nil
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := s.db.Collection(db.CollectionTags).Find(ctx, bson.M{}, opts)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load tags, serving defaults")
		return DefaultTags(), nil
	}
	var tags []models.Tag
	if err := cursor.All(ctx, &tags); err != nil {
		log.Error().Err(err).Msg("Failed to decode tags, serving defaults")
		return DefaultTags(), nil
	}
	if len(tags) == 0 {
		return DefaultTags(), nil
	}

	if s.rdb != nil && s.cfg.GetCacheTTL > 0 {
		if err := cache.SetJSON(ctx, s.rdb, tagsCacheKey, tags, s.cfg.GetCacheTTL); err != nil {
			log.Warn().Err(err).Msg("Tag cache write failed")
		}
	}
	return tags, nil
}

// FindTagsByIDs returns the tags with the given ids, ordered by name. Unknown ids are skipped.
func (s *tagService) FindTagsByIDs(ctx context.Context, ids []int) ([]models.Tag, error) {
	if len(ids) == 0 {
		return []models.Tag{}, nil
	}
	all, err := s.ListTags(ctx)
	if err != nil {
		return nil, err
	}
	wanted := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	tags := make([]models.Tag, 0, len(ids))
	for _, t := range all {
		if _, ok := wanted[t.ID]; ok {
			tags = append(tags, t)
		}
	}
	return tags, nil
}

// SeedTags inserts any names not already present and returns how many were added.
// New tags get ids after the current maximum.
func (s *tagService) SeedTags(ctx context.Context, names []string) (int, error) {
	collection := s.db.Collection(db.CollectionTags)

	cursor, err := collection.Find(ctx, bson.M{})
	if err != nil {
		return 0, apperr.Dependency(err, "failed to read tags")
	}
	var existing []models.Tag
	if err := cursor.All(ctx, &existing); err != nil {
		return 0, apperr.Dependency(err, "failed to read tags")
	}

	known := make(map[string]struct{}, len(existing))
	maxID := 0
	for _, t := range existing {
		known[strings.ToLower(t.Name)] = struct{}{}
		if t.ID > maxID {
			maxID = t.ID
		}
	}

	var docs []interface{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := known[strings.ToLower(name)]; ok {
			continue
		}
		known[strings.ToLower(name)] = struct{}{}
		maxID++
		docs = append(docs, models.Tag{ID: maxID, Name: name})
	}
	if len(docs) == 0 {
		return 0, nil
	}

	if _, err := collection.InsertMany(ctx, docs); err != nil {
		return 0, apperr.Dependency(err, "failed to insert tags")
	}

	if s.rdb != nil {
		if err := s.rdb.Del(ctx, tagsCacheKey).Err(); err != nil {
			log.Warn().Err(err).Msg("Failed to invalidate tag cache")
		}
	}

	log.Info().Int("added", len(docs)).Msg("Seeded tags")
	return len(docs), nil
}

// dedupeTagIDs drops non-positive and repeated ids, keeping first-seen order.
func dedupeTagIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
