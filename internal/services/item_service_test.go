package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/parallax/reboot-hackathon-2025/internal/apperr"
	"github.com/parallax/reboot-hackathon-2025/internal/config"
	"github.com/parallax/reboot-hackathon-2025/internal/db"
	"github.com/parallax/reboot-hackathon-2025/internal/models"
	"github.com/parallax/reboot-hackathon-2025/internal/utils"
)

// --- Test Setup Helper ---
func setupItemServiceTest(t *testing.T) (*mongo.Database, *itemService) {
	dbName := fmt.Sprintf("testdb_item_service_%d", time.Now().UnixNano())
	database := utils.SetupTestDB(t, dbName, db.CollectionItems, db.CollectionUsers, db.CollectionTags)
	t.Cleanup(func() {
		if err := database.Drop(context.Background()); err != nil {
			t.Logf("Failed to drop database %s: %v", dbName, err)
		}
	})

	cfg := &config.Config{}
	tags := NewTagService(database, nil, cfg)
	users := NewUserService(database, nil, cfg)
	svc := NewItemService(database, cfg, tags, users).(*itemService)

	// Each call advances the clock so "newest first" is deterministic.
	clock := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return database, svc
}

func createTestItem(t *testing.T, svc *itemService, userID, title string, tagIDs ...int) *models.Item {
	t.Helper()
	item, err := svc.CreateItem(context.Background(), userID, CreateItemInput{
		Title:       title,
		Description: title + " description",
		TagIDs:      tagIDs,
	})
	require.NoError(t, err)
	return item
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestItemService_CreateItem(t *testing.T) {
	_, svc := setupItemServiceTest(t)
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, "user_1", CreateItemInput{
		Title:       "  Road bike ",
		Description: "\tBlue frame\n",
		ImageKey:    " uploads/user_1/bike.jpg ",
		TagIDs:      []int{4, 2, 4, 0},
		Repeatable:  true,
	})
	require.NoError(t, err)
	assert.False(t, item.ID.IsZero())
	assert.Equal(t, "Road bike", item.Title)
	assert.Equal(t, "Blue frame", item.Description)
	assert.Equal(t, "uploads/user_1/bike.jpg", item.ImageKey)
	assert.Equal(t, []int{4, 2}, item.TagIDs)
	assert.True(t, item.Active)
	assert.True(t, item.Repeatable)

	stored, err := svc.FindItemByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.Title, stored.Title)
	assert.Equal(t, "user_1", stored.UserID)
}

func TestItemService_CreateItem_Validation(t *testing.T) {
	_, svc := setupItemServiceTest(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		userID string
		input  CreateItemInput
		kind   apperr.Kind
	}{
		{"no user", "", CreateItemInput{Title: "Bike", Description: "Blue", TagIDs: []int{1}}, apperr.KindUnauthenticated},
		{"blank title", "user_1", CreateItemInput{Title: "   ", Description: "Blue", TagIDs: []int{1}}, apperr.KindValidation},
		{"blank description", "user_1", CreateItemInput{Title: "Bike", Description: " ", TagIDs: []int{1}}, apperr.KindValidation},
		{"no tags", "user_1", CreateItemInput{Title: "Bike", Description: "Blue"}, apperr.KindValidation},
		{"only invalid tags", "user_1", CreateItemInput{Title: "Bike", Description: "Blue", TagIDs: []int{0, -1}}, apperr.KindValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateItem(ctx, tc.userID, tc.input)
			assert.Equal(t, tc.kind, apperr.KindOf(err))
		})
	}

	items, err := svc.ListItemsByUser(ctx, "user_1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestItemService_UpdateItem(t *testing.T) {
	_, svc := setupItemServiceTest(t)
	ctx := context.Background()
	item := createTestItem(t, svc, "user_1", "Road bike", 1)

	updated, err := svc.UpdateItem(ctx, item.ID, "user_1", models.ItemPatch{
		Title:  strPtr(" Racing bike "),
		TagIDs: []int{2, 2, 3},
		Active: boolPtr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, "Racing bike", updated.Title)
	assert.Equal(t, "Road bike description", updated.Description)
	assert.Equal(t, []int{2, 3}, updated.TagIDs)
	assert.False(t, updated.Active)
	assert.True(t, updated.UpdatedAt.After(item.UpdatedAt))
}

func TestItemService_UpdateItem_Failures(t *testing.T) {
	_, svc := setupItemServiceTest(t)
	ctx := context.Background()
	item := createTestItem(t, svc, "user_1", "Road bike", 1)

	_, err := svc.UpdateItem(ctx, item.ID, "user_2", models.ItemPatch{Title: strPtr("Mine now")})
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	_, err = svc.UpdateItem(ctx, utils.NewSixID(), "user_1", models.ItemPatch{Title: strPtr("Ghost")})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = svc.UpdateItem(ctx, item.ID, "user_1", models.ItemPatch{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.UpdateItem(ctx, item.ID, "user_1", models.ItemPatch{Description: strPtr("  ")})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.UpdateItem(ctx, item.ID, "user_1", models.ItemPatch{TagIDs: []int{0}})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.UpdateItem(ctx, item.ID, "", models.ItemPatch{Title: strPtr("x")})
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))

	stored, err := svc.FindItemByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Road bike", stored.Title)
}

func TestItemService_BrowseActiveItems(t *testing.T) {
	_, svc := setupItemServiceTest(t)
	ctx := context.Background()

	bike := createTestItem(t, svc, "user_1", "Road bike", 1, 2)
	lamp := createTestItem(t, svc, "user_2", "Lamp", 3)
	chair := createTestItem(t, svc, "user_2", "Chair", 2)
	hidden := createTestItem(t, svc, "user_1", "Old desk", 2)
	_, err := svc.UpdateItem(ctx, hidden.ID, "user_1", models.ItemPatch{Active: boolPtr(false)})
	require.NoError(t, err)

	items, err := svc.BrowseActiveItems(ctx, []int{2})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, chair.ID, items[0].ID)
	assert.Equal(t, bike.ID, items[1].ID)

	items, err = svc.BrowseActiveItems(ctx, []int{3, 1})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, lamp.ID, items[0].ID)
	assert.Equal(t, bike.ID, items[1].ID)

	empty, err := svc.BrowseActiveItems(ctx, nil)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	// Inactive items still show on the owner's list.
	mine, err := svc.ListItemsByUser(ctx, "user_1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, hidden.ID, mine[0].ID)
}

func TestItemService_SetItemImage(t *testing.T) {
	_, svc := setupItemServiceTest(t)
	ctx := context.Background()
	item := createTestItem(t, svc, "user_1", "Road bike", 1)

	require.NoError(t, svc.SetItemImage(ctx, item.ID, "uploads/user_1/processed.jpg"))
	stored, err := svc.FindItemByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "uploads/user_1/processed.jpg", stored.ImageKey)

	err = svc.SetItemImage(ctx, utils.NewSixID(), "uploads/none.jpg")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestItemService_GetItemDetail(t *testing.T) {
	_, svc := setupItemServiceTest(t)
	ctx := context.Background()

	_, err := svc.tags.SeedTags(ctx, []string{"Bikes", "Art"})
	require.NoError(t, err)
	_, err = svc.users.SubmitProfileSetup(ctx, "user_1", ProfileSetupInput{Location: "Bristol"})
	require.NoError(t, err)
	require.NoError(t, svc.users.UpsertIdentity(ctx, models.Identity{UserID: "user_1", Name: "Ada", Email: "ada@example.com"}))

	item := createTestItem(t, svc, "user_1", "Road bike", 1, 2)
	detail, err := svc.GetItemDetail(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", detail.OwnerName)
	assert.Equal(t, "Bristol", detail.OwnerLocation)
	assert.Equal(t, []models.Tag{{ID: 2, Name: "Art"}, {ID: 1, Name: "Bikes"}}, detail.Tags)

	// Unknown owners get a placeholder name.
	orphan := createTestItem(t, svc, "user_abcdefghijk", "Lamp", 1)
	detail, err = svc.GetItemDetail(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, "User user_abc...", detail.OwnerName)
	assert.Empty(t, detail.OwnerLocation)

	_, err = svc.GetItemDetail(ctx, utils.NewSixID())
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestItemService_FindItemsByIDs(t *testing.T) {
	_, svc := setupItemServiceTest(t)
	ctx := context.Background()
	bike := createTestItem(t, svc, "user_1", "Road bike", 1)
	lamp := createTestItem(t, svc, "user_2", "Lamp", 1)

	found, err := svc.FindItemsByIDs(ctx, []utils.SixID{bike.ID, lamp.ID, utils.NewSixID()})
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Equal(t, "Lamp", found[lamp.ID].Title)

	none, err := svc.FindItemsByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestValidateItemFields(t *testing.T) {
	assert.NoError(t, validateItemFields("Bike", "Blue", []int{1}))
	for _, tc := range []struct {
		title, description string
		tags               []int
	}{
		{"", "Blue", []int{1}},
		{"Bike", "", []int{1}},
		{"Bike", "Blue", nil},
	} {
		err := validateItemFields(tc.title, tc.description, tc.tags)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	}
}
