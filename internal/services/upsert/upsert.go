package upsert

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lebowvsky/atelier-kaisla-sub001/internal/domain/models"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/lib/logger/sl"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/services/coordinator"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/services/ingestion"
)

// PersistFunc сохраняет сущность конкретного типа вместе с подготовленными медиа.
type PersistFunc func(ctx context.Context, ref models.ParentRef, batch *ingestion.Batch, assets []models.MediaAsset) error

// Service общее ядро для всех типов владельцев: сначала валидация,
// затем сага координатора. Для каждого типа отличается только сохранение.
type Service struct {
	log       *slog.Logger
	validator *ingestion.Validator
	coord     *coordinator.Coordinator
}

func New(log *slog.Logger, validator *ingestion.Validator, coord *coordinator.Coordinator) *Service {
	return &Service{
		log:       log,
		validator: validator,
		coord:     coord,
	}
}

func (s *Service) Validator() *ingestion.Validator {
	return s.validator
}

// Create проверяет загрузку и создает сущность вида kind с медиа.
func (s *Service) Create(ctx context.Context, kind models.ParentKind, req ingestion.Request, persist PersistFunc) (models.ParentRef, []models.MediaAsset, error) {
	const op = "upsert.Service.Create"
	log := s.log.With(
		slog.String("op", op),
		slog.String("kind", string(kind)),
	)

	batch, err := s.validator.ValidateCreate(req)
	if err != nil {
		return models.ParentRef{}, nil, fmt.Errorf("%s: %w", op, err)
	}

	ref := models.ParentRef{Kind: kind, ID: uuid.New()}
	assets, err := s.coord.Create(ctx, ref, batch, func(ctx context.Context, assets []models.MediaAsset) error {
		return persist(ctx, ref, batch, assets)
	})
	if err != nil {
		log.Error("failed to create entity", sl.Err(err))
		return models.ParentRef{}, nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("entity created", slog.String("id", ref.ID.String()), slog.Int("media", len(assets)))

	return ref, assets, nil
}

// AddMedia добавляет изображения к существующей сущности.
func (s *Service) AddMedia(ctx context.Context, ref models.ParentRef, req ingestion.Request) ([]models.MediaAsset, error) {
	const op = "upsert.Service.AddMedia"

	existing, err := s.coord.Media().List(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	batch, err := s.validator.ValidateAppend(ingestion.Request{
		Files:      req.Files,
		CoverIndex: req.CoverIndex,
		AltTexts:   req.AltTexts,
	}, len(existing))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	assets, err := s.coord.Append(ctx, ref, batch)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return assets, nil
}

func (s *Service) UpdateMedia(ctx context.Context, ref models.ParentRef, mediaID uuid.UUID, upd models.MediaUpdate) (*models.MediaAsset, error) {
	const op = "upsert.Service.UpdateMedia"

	asset, err := s.coord.Media().UpdateMetadata(ctx, ref, mediaID, upd)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	assets := []models.MediaAsset{*asset}
	s.coord.ResolveURLs(assets)

	return &assets[0], nil
}

func (s *Service) DeleteMedia(ctx context.Context, ref models.ParentRef, mediaID uuid.UUID) error {
	const op = "upsert.Service.DeleteMedia"

	if err := s.coord.DeleteMedia(ctx, ref, mediaID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Service) ListMedia(ctx context.Context, ref models.ParentRef) ([]models.MediaAsset, error) {
	const op = "upsert.Service.ListMedia"

	assets, err := s.coord.Media().List(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.coord.ResolveURLs(assets)

	return assets, nil
}

// Delete удаляет сущность через remove, затем ее файлы.
func (s *Service) Delete(ctx context.Context, ref models.ParentRef, remove coordinator.RemoveFunc) error {
	const op = "upsert.Service.Delete"

	if err := s.coord.DeleteParent(ctx, ref, remove); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Service) ResolveURLs(assets []models.MediaAsset) {
	s.coord.ResolveURLs(assets)
}
