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
func setupUserServiceTest(t *testing.T) (*mongo.Database, IUserService) {
	// Unique DB name per test to avoid parallel test interference
	dbName := fmt.Sprintf("testdb_user_service_%d", time.Now().UnixNano())
	database := utils.SetupTestDB(t, dbName, db.CollectionUsers)
	t.Cleanup(func() {
		if err := database.Drop(context.Background()); err != nil {
			t.Logf("Failed to drop database %s: %v", dbName, err)
		}
	})

	svc := NewUserService(database, nil, &config.Config{})
	return database, svc
}

func TestUserService_UpsertIdentity(t *testing.T) {
	_, svc := setupUserServiceTest(t)
	ctx := context.Background()

	err := svc.UpsertIdentity(ctx, models.Identity{UserID: "user_1", Name: " Ada ", Email: "Ada@Example.com"})
	require.NoError(t, err)

	user, err := svc.FindByID(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.Name)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Nil(t, user.OnboardingComplete)
	assert.Empty(t, user.InterestedTagIDs)

	// A later token without a name keeps the stored one.
	err = svc.UpsertIdentity(ctx, models.Identity{UserID: "user_1", Email: "ada@new.example.com"})
	require.NoError(t, err)

	user, err = svc.FindByID(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.Name)
	assert.Equal(t, "ada@new.example.com", user.Email)

	err = svc.UpsertIdentity(ctx, models.Identity{})
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
}

func TestUserService_ResolveContact(t *testing.T) {
	_, svc := setupUserServiceTest(t)
	ctx := context.Background()

	require.NoError(t, svc.UpsertIdentity(ctx, models.Identity{UserID: "user_1", Name: "Ada", Email: "ada@example.com"}))

	contact, err := svc.ResolveContact(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, models.Contact{UserID: "user_1", Name: "Ada", Email: "ada@example.com"}, *contact)

	_, err = svc.ResolveContact(ctx, "nobody")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	// Known user without an email cannot be notified.
	_, err = svc.SubmitProfileSetup(ctx, "user_2", ProfileSetupInput{Location: "Leeds"})
	require.NoError(t, err)
	_, err = svc.ResolveContact(ctx, "user_2")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestUserService_ProfileSetupAndClear(t *testing.T) {
	_, svc := setupUserServiceTest(t)
	ctx := context.Background()

	_, err := svc.SubmitProfileSetup(ctx, "user_1", ProfileSetupInput{Location: "  "})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	user, err := svc.SubmitProfileSetup(ctx, "user_1", ProfileSetupInput{
		Location:         " Bristol ",
		InterestedTagIDs: []int{3, 1, 3},
		OfferingTagIDs:   []int{2},
	})
	require.NoError(t, err)
	assert.Equal(t, "Bristol", user.Location)
	assert.ElementsMatch(t, []int{1, 3}, user.InterestedTagIDs)
	assert.Equal(t, []int{2}, user.OfferingTagIDs)
	require.NotNil(t, user.OnboardingComplete)

	require.NoError(t, svc.ClearOnboardingStatus(ctx, "user_1"))

	profile, err := svc.GetProfile(ctx, "user_1")
	require.NoError(t, err)
	assert.Nil(t, profile.OnboardingComplete)
	assert.Equal(t, "Bristol", profile.Location)

	_, err = svc.GetProfile(ctx, "")
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
}
