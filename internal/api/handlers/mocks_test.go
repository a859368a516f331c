package handlers_test

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"

	"github.com/parallax/reboot-hackathon-2025/internal/models"
	"github.com/parallax/reboot-hackathon-2025/internal/services"
	"github.com/parallax/reboot-hackathon-2025/internal/utils"
)

// --- Mocks ---

// MockUserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) UpsertIdentity(ctx context.Context, identity models.Identity) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

func (m *MockUserService) FindByID(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) ResolveContact(ctx context.Context, userID string) (*models.Contact, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contact), args.Error(1)
}

func (m *MockUserService) SubmitProfileSetup(ctx context.Context, userID string, input services.ProfileSetupInput) (*models.User, error) {
	args := m.Called(ctx, userID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) ClearOnboardingStatus(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// MockItemService
type MockItemService struct {
	mock.Mock
}

func (m *MockItemService) CreateItem(ctx context.Context, userID string, input services.CreateItemInput) (*models.Item, error) {
	args := m.Called(ctx, userID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Item), args.Error(1)
}

func (m *MockItemService) UpdateItem(ctx context.Context, itemID utils.SixID, userID string, patch models.ItemPatch) (*models.Item, error) {
	args := m.Called(ctx, itemID, userID, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Item), args.Error(1)
}

func (m *MockItemService) FindItemByID(ctx context.Context, itemID utils.SixID) (*models.Item, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Item), args.Error(1)
}

func (m *MockItemService) FindItemsByIDs(ctx context.Context, itemIDs []utils.SixID) (map[utils.SixID]*models.Item, error) {
	args := m.Called(ctx, itemIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[utils.SixID]*models.Item), args.Error(1)
}

func (m *MockItemService) GetItemDetail(ctx context.Context, itemID utils.SixID) (*models.ItemDetail, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ItemDetail), args.Error(1)
}

func (m *MockItemService) ListItemsByUser(ctx context.Context, userID string) ([]models.Item, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Item), args.Error(1)
}

func (m *MockItemService) BrowseActiveItems(ctx context.Context, tagIDs []int) ([]models.Item, error) {
	args := m.Called(ctx, tagIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Item), args.Error(1)
}

func (m *MockItemService) SetItemImage(ctx context.Context, itemID utils.SixID, imageKey string) error {
	args := m.Called(ctx, itemID, imageKey)
	return args.Error(0)
}

// MockOfferService
type MockOfferService struct {
	mock.Mock
}

func (m *MockOfferService) CreateOffer(ctx context.Context, req services.CreateOfferRequest) (*models.CreateOfferResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CreateOfferResult), args.Error(1)
}

func (m *MockOfferService) RespondToOffer(ctx context.Context, req services.RespondToOfferRequest) (*models.OfferView, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OfferView), args.Error(1)
}

func (m *MockOfferService) ListOffersForItem(ctx context.Context, itemID utils.SixID) ([]models.OfferView, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.OfferView), args.Error(1)
}

func (m *MockOfferService) ListOffersForItemVisibleTo(ctx context.Context, itemID utils.SixID, userID string) ([]models.OfferView, error) {
	args := m.Called(ctx, itemID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.OfferView), args.Error(1)
}

func (m *MockOfferService) ListOffersForUser(ctx context.Context, userID string) (*models.UserOffers, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserOffers), args.Error(1)
}

// MockTagService
type MockTagService struct {
	mock.Mock
}

func (m *MockTagService) ListTags(ctx context.Context) ([]models.Tag, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Tag), args.Error(1)
}

func (m *MockTagService) FindTagsByIDs(ctx context.Context, ids []int) ([]models.Tag, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Tag), args.Error(1)
}

func (m *MockTagService) SeedTags(ctx context.Context, names []string) (int, error) {
	args := m.Called(ctx, names)
	return args.Int(0), args.Error(1)
}

// MockS3Storage
type MockS3Storage struct {
	mock.Mock
}

func (m *MockS3Storage) GeneratePresignedPutURL(ctx context.Context, userID, itemID, filename, contentType string) (string, string, error) {
	args := m.Called(ctx, userID, itemID, filename, contentType)
	return args.String(0), args.String(1), args.Error(2)
}

// MockAsynqClient
type MockAsynqClient struct {
	mock.Mock
}

func (m *MockAsynqClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}
