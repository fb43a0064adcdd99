package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lebowvsky/atelier-kaisla-sub001/internal/domain/models"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/lib/logger/sl"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/repository"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/services/ingestion"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/services/upsert"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/transport/http/dto"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type ListingService struct {
	log    *slog.Logger
	repo   repository.ListingRepository
	upsert *upsert.Service
	now    func() time.Time
}

func NewListingService(log *slog.Logger, repo repository.ListingRepository, upsert *upsert.Service) *ListingService {
	return &ListingService{
		log:    log,
		repo:   repo,
		upsert: upsert,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateListing создает позицию каталога вместе с изображениями
func (s *ListingService) CreateListing(ctx context.Context, req dto.CreateListingRequest, upload ingestion.Request) (*dto.ListingResponse, error) {
	const op = "service.ListingService.CreateListing"
	log := s.log.With(
		slog.String("op", op),
		slog.String("name", req.Name),
	)

	log.Info("creating listing")

	var created models.Listing
	_, assets, err := s.upsert.Create(ctx, models.ParentListing, upload,
		func(ctx context.Context, ref models.ParentRef, batch *ingestion.Batch, assets []models.MediaAsset) error {
			now := s.now()
			created = models.Listing{
				ID:          ref.ID,
				Name:        strings.TrimSpace(req.Name),
				Description: req.Description,
				Price:       req.Price,
				Dimensions:  batch.Dimensions,
				Media:       assets,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			return s.repo.Create(ctx, created)
		})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	created.Media = assets
	log.Info("listing created", slog.String("id", created.ID.String()))

	resp := dto.NewListingResponse(created)
	return &resp, nil
}

func (s *ListingService) GetListing(ctx context.Context, id uuid.UUID) (*dto.ListingResponse, error) {
	const op = "service.ListingService.GetListing"

	listing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.upsert.ResolveURLs(listing.Media)

	resp := dto.NewListingResponse(*listing)
	return &resp, nil
}

// ListListings возвращает последние позиции; limit ограничен сверху
func (s *ListingService) ListListings(ctx context.Context, limit int) ([]dto.ListingResponse, error) {
	const op = "service.ListingService.ListListings"

	listings, err := s.repo.List(ctx, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]dto.ListingResponse, 0, len(listings))
	for _, l := range listings {
		s.upsert.ResolveURLs(l.Media)
		out = append(out, dto.NewListingResponse(l))
	}

	return out, nil
}

// UpdateListing обновляет скалярные поля и dimensions
func (s *ListingService) UpdateListing(ctx context.Context, id uuid.UUID, req dto.UpdateListingRequest) (*dto.ListingResponse, error) {
	const op = "service.ListingService.UpdateListing"
	log := s.log.With(
		slog.String("op", op),
		slog.String("listing_id", id.String()),
	)

	listing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if req.Name != nil {
		listing.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		listing.Description = *req.Description
	}
	if req.Price != nil {
		listing.Price = *req.Price
	}
	if len(req.Dimensions) > 0 {
		raw := strings.TrimSpace(string(req.Dimensions))
		if raw == "null" {
			listing.Dimensions = nil
		} else {
			dims, err := s.upsert.Validator().ValidateDimensions(&raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			listing.Dimensions = dims
		}
	}
	listing.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, *listing); err != nil {
		log.Error("failed to update listing", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("listing updated")

	s.upsert.ResolveURLs(listing.Media)
	resp := dto.NewListingResponse(*listing)
	return &resp, nil
}

// DeleteListing удаляет позицию; файлы удаляются после строк
func (s *ListingService) DeleteListing(ctx context.Context, id uuid.UUID) error {
	const op = "service.ListingService.DeleteListing"

	ref := models.ParentRef{Kind: models.ParentListing, ID: id}
	err := s.upsert.Delete(ctx, ref, func(ctx context.Context) ([]models.MediaAsset, error) {
		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.log.Error("failed to delete listing", slog.String("op", op), sl.Err(err))
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}
