package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parallax/reboot-hackathon-2025/internal/db"
	"github.com/parallax/reboot-hackathon-2025/internal/models"
	"github.com/parallax/reboot-hackathon-2025/internal/utils"
)

func setupOfferRepositoryTest(t *testing.T) OfferRepository {
	dbName := fmt.Sprintf("testdb_offer_repository_%d", time.Now().UnixNano())
	database := utils.SetupTestDB(t, dbName, db.CollectionOffers)
	t.Cleanup(func() {
		_ = database.Drop(context.Background())
	})
	require.NoError(t, db.EnsureIndexes(context.Background(), database))
	return NewOfferRepository(database)
}

func newPendingOffer(item, offered utils.SixID, offerer string, createdAt time.Time) *models.Offer {
	return &models.Offer{
		ItemID:        item,
		OfferedItemID: offered,
		OffererUserID: offerer,
		CreatedAt:     createdAt,
		Expiry:        createdAt.Add(7 * 24 * time.Hour),
	}
}

func TestMongoOfferRepository_InsertAndFind(t *testing.T) {
	repo := setupOfferRepositoryTest(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	offer := newPendingOffer(item10, item22, "U1", now)
	require.NoError(t, repo.Insert(ctx, offer))
	require.False(t, offer.ID.IsZero())

	found, err := repo.FindByID(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, item10, found.ItemID)
	assert.Equal(t, item22, found.OfferedItemID)
	assert.True(t, found.CreatedAt.Equal(now))
	assert.Nil(t, found.AcceptedAt)
	assert.Nil(t, found.RejectedAt)
	assert.Nil(t, found.RejectReason)

	_, err = repo.FindByID(ctx, utils.NewSixID())
	assert.ErrorIs(t, err, ErrOfferNotFound)
}

func TestMongoOfferRepository_ListOrdering(t *testing.T) {
	repo := setupOfferRepositoryTest(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	older := newPendingOffer(item10, item22, "U1", now.Add(-time.Hour))
	newer := newPendingOffer(item10, item30, "U3", now)
	elsewhere := newPendingOffer(item22, item30, "U3", now)
	for _, o := range []*models.Offer{older, newer, elsewhere} {
		require.NoError(t, repo.Insert(ctx, o))
	}

	offers, err := repo.ListByItems(ctx, []utils.SixID{item10})
	require.NoError(t, err)
	require.Len(t, offers, 2)
	assert.Equal(t, newer.ID, offers[0].ID)
	assert.Equal(t, older.ID, offers[1].ID)

	none, err := repo.ListByItems(ctx, nil)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	made, err := repo.ListByOfferer(ctx, "U3")
	require.NoError(t, err)
	assert.Len(t, made, 2)
}

func TestMongoOfferRepository_DecidePendingOnlyOnce(t *testing.T) {
	repo := setupOfferRepositoryTest(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	offer := newPendingOffer(item10, item22, "U1", now)
	require.NoError(t, repo.Insert(ctx, offer))

	const racers = 6
	var wg sync.WaitGroup
	results := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			decision := models.OfferDecisionAccept
			if i%2 == 1 {
				decision = models.OfferDecisionReject
			}
			_, results[i] = repo.DecidePending(ctx, offer.ID, decision, now.Add(time.Minute), "not for me")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrOfferNotPending)
		}
	}
	assert.Equal(t, 1, wins)

	stored, err := repo.FindByID(ctx, offer.ID)
	require.NoError(t, err)
	assert.False(t, stored.AcceptedAt != nil && stored.RejectedAt != nil)
	if stored.AcceptedAt != nil {
		assert.Nil(t, stored.RejectReason)
	} else {
		require.NotNil(t, stored.RejectReason)
		assert.Equal(t, "not for me", *stored.RejectReason)
	}

	_, err = repo.DecidePending(ctx, utils.NewSixID(), models.OfferDecisionAccept, now, "")
	assert.ErrorIs(t, err, ErrOfferNotPending)
}
