package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lebowvsky/atelier-kaisla-sub001/internal/domain/models"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/lib/locker"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/lib/logger/handlers/slogdiscard"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/services/collection"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/services/coordinator"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/services/ingestion"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/services/upsert"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/storage/memstorage"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/transport/http/dto"
)

// MockListingRepository реализация мок-репозитория
type MockListingRepository struct {
	mock.Mock
}

func (m *MockListingRepository) Create(ctx context.Context, listing models.Listing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}

func (m *MockListingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingRepository) List(ctx context.Context, limit int) ([]models.Listing, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]models.Listing), args.Error(1)
}

func (m *MockListingRepository) Update(ctx context.Context, listing models.Listing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}

func (m *MockListingRepository) Delete(ctx context.Context, id uuid.UUID) ([]models.MediaAsset, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MediaAsset), args.Error(1)
}

// mediaStub satisfies collection.Repository for flows that never touch it.
type mediaStub struct {
	collection.Repository
}

func setupService(t *testing.T) (*ListingService, *MockListingRepository, *memstorage.Store) {
	t.Helper()

	log := slogdiscard.NewDiscardLogger()
	store := memstorage.New("http://cdn.test")
	validator := ingestion.New(log, ingestion.Rules{
		MaxFileSize:       5 << 20,
		MaxFilesCreate:    5,
		MaxFilesPerEntity: 20,
		AllowedTypes:      []string{"image/jpeg", "image/png"},
	})
	manager := collection.New(log, mediaStub{}, locker.New(), true, 20)
	repo := new(MockListingRepository)

	svc := NewListingService(log, repo, upsert.New(log, validator, coordinator.New(log, store, manager)))
	svc.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	return svc, repo, store
}

func jpegFile(name string) ingestion.File {
	return ingestion.File{
		Filename:    name,
		ContentType: "image/jpeg",
		Size:        1024,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("\xff\xd8\xff")), nil
		},
	}
}

func TestListingService_CreateListing(t *testing.T) {
	ctx := context.Background()
	dims := `{"width": 30, "height": 40, "unit": "cm"}`

	tests := []struct {
		name      string
		upload    ingestion.Request
		mockSetup func(repo *MockListingRepository)
		wantErr   func(t *testing.T, err error)
		wantPuts  int
		wantKeys  int
	}{
		{
			name:   "successful creation",
			upload: ingestion.Request{Files: []ingestion.File{jpegFile("a.jpg"), jpegFile("b.jpg")}, RawDimensions: &dims},
			mockSetup: func(repo *MockListingRepository) {
				repo.On("Create", ctx, mock.MatchedBy(func(l models.Listing) bool {
					return l.Name == "Rug" && l.Dimensions != nil && l.Dimensions.Width == 30 &&
						len(l.Media) == 2 && l.Media[0].IsCover
				})).Return(nil).Once()
			},
			wantPuts: 2,
			wantKeys: 2,
		},
		{
			name:      "invalid dimensions",
			upload:    ingestion.Request{Files: []ingestion.File{jpegFile("a.jpg")}, RawDimensions: strPtr(`{"width": -5, "height": 10, "unit": "cm"}`)},
			mockSetup: func(repo *MockListingRepository) {},
			wantErr: func(t *testing.T, err error) {
				assert.True(t, models.IsValidationError(err))
			},
		},
		{
			name:   "database failure removes files",
			upload: ingestion.Request{Files: []ingestion.File{jpegFile("a.jpg"), jpegFile("b.jpg"), jpegFile("c.jpg")}},
			mockSetup: func(repo *MockListingRepository) {
				repo.On("Create", ctx, mock.Anything).Return(errors.New("connection refused")).Once()
			},
			wantErr: func(t *testing.T, err error) {
				var pErr *models.PersistenceError
				assert.True(t, errors.As(err, &pErr))
			},
			wantPuts: 3,
			wantKeys: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, store := setupService(t)
			tt.mockSetup(repo)

			resp, err := svc.CreateListing(ctx, dto.CreateListingRequest{Name: " Rug ", Price: 1000}, tt.upload)

			if tt.wantErr != nil {
				require.Error(t, err)
				tt.wantErr(t, err)
				assert.Nil(t, resp)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "Rug", resp.Name)
				require.Len(t, resp.Media, 2)
				assert.True(t, strings.HasPrefix(resp.Media[0].URL, "http://cdn.test/listings/"))
				assert.True(t, resp.Media[0].IsCover)
			}

			assert.Equal(t, tt.wantPuts, store.Puts())
			assert.Len(t, store.Keys("listings"), tt.wantKeys)
			repo.AssertExpectations(t)
		})
	}
}

func TestListingService_UpdateListing(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	existing := func() *models.Listing {
		return &models.Listing{
			ID:         id,
			Name:       "Rug",
			Price:      100,
			Dimensions: &models.Dimensions{Width: 1, Height: 1, Unit: "m"},
			Media:      []models.MediaAsset{{ID: uuid.New(), ParentKind: models.ParentListing, ParentID: id, StorageKey: "k.jpg"}},
		}
	}

	t.Run("replace dimensions", func(t *testing.T) {
		svc, repo, _ := setupService(t)
		repo.On("GetByID", ctx, id).Return(existing(), nil).Once()
		repo.On("Update", ctx, mock.MatchedBy(func(l models.Listing) bool {
			return l.Dimensions != nil && l.Dimensions.Unit == "cm" && l.Price == 250
		})).Return(nil).Once()

		price := int64(250)
		resp, err := svc.UpdateListing(ctx, id, dto.UpdateListingRequest{
			Price:      &price,
			Dimensions: json.RawMessage(`{"width": 2, "height": 3, "unit": "cm"}`),
		})
		require.NoError(t, err)
		assert.Equal(t, "http://cdn.test/listings/k.jpg", resp.Media[0].URL)
		repo.AssertExpectations(t)
	})

	t.Run("clear dimensions", func(t *testing.T) {
		svc, repo, _ := setupService(t)
		repo.On("GetByID", ctx, id).Return(existing(), nil).Once()
		repo.On("Update", ctx, mock.MatchedBy(func(l models.Listing) bool {
			return l.Dimensions == nil
		})).Return(nil).Once()

		_, err := svc.UpdateListing(ctx, id, dto.UpdateListingRequest{Dimensions: json.RawMessage(`null`)})
		require.NoError(t, err)
	})

	t.Run("invalid dimensions", func(t *testing.T) {
		svc, repo, _ := setupService(t)
		repo.On("GetByID", ctx, id).Return(existing(), nil).Once()

		_, err := svc.UpdateListing(ctx, id, dto.UpdateListingRequest{Dimensions: json.RawMessage(`{"width": 0, "height": 3, "unit": "yd"}`)})
		var vErr *models.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Len(t, vErr.Violations, 2)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("not found", func(t *testing.T) {
		svc, repo, _ := setupService(t)
		repo.On("GetByID", ctx, id).Return(nil, models.ErrNotFound).Once()

		_, err := svc.UpdateListing(ctx, id, dto.UpdateListingRequest{})
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestListingService_DeleteListing(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	svc, repo, store := setupService(t)

	key, err := store.Put(ctx, strings.NewReader("x"), "a.jpg", "listings")
	require.NoError(t, err)

	repo.On("Delete", mock.Anything, id).Return([]models.MediaAsset{{StorageKey: key, ParentKind: models.ParentListing}}, nil).Once()

	require.NoError(t, svc.DeleteListing(ctx, id))
	assert.False(t, store.Exists(key, "listings"))

	repo.On("Delete", mock.Anything, id).Return(nil, models.ErrNotFound).Once()
	assert.ErrorIs(t, svc.DeleteListing(ctx, id), models.ErrNotFound)
}

func TestListingService_ListListings(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := setupService(t)

	repo.On("List", ctx, 100).Return([]models.Listing{{ID: uuid.New(), Name: "A", Media: []models.MediaAsset{}}}, nil).Once()

	out, err := svc.ListListings(ctx, 1000)
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, 20, clampLimit(0))
}

func strPtr(s string) *string {
	return &s
}
