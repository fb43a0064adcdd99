package collection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lebowvsky/atelier-kaisla-sub001/internal/domain/models"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/lib/locker"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/lib/logger/sl"
)

// Repository хранит строки медиа. Все методы, меняющие обложку, должны
// выполнять снятие старой и установку новой одной транзакцией.
type Repository interface {
	ParentExists(ctx context.Context, ref models.ParentRef) (bool, error)
	ListByParent(ctx context.Context, ref models.ParentRef) ([]models.MediaAsset, error)
	GetMedia(ctx context.Context, ref models.ParentRef, mediaID uuid.UUID) (*models.MediaAsset, error)
	// AppendMedia вставляет медиа; при unsetCover сначала снимается текущая обложка
	AppendMedia(ctx context.Context, ref models.ParentRef, assets []models.MediaAsset, unsetCover bool) error
	// UpdateMedia сохраняет метаданные; при IsCover обложка снимается с остальных медиа владельца
	UpdateMedia(ctx context.Context, asset models.MediaAsset) error
	DeleteMedia(ctx context.Context, ref models.ParentRef, mediaID uuid.UUID) (*models.MediaAsset, error)
}

// AppendPlan строки, которые должно записать добавление
type AppendPlan struct {
	Assets     []models.MediaAsset
	UnsetCover bool
}

type Manager struct {
	log          *slog.Logger
	repo         Repository
	locker       locker.Locker
	defaultCover bool
	capacity     int
	now          func() time.Time
}

// New создает менеджер коллекции. capacity <= 0 снимает ограничение на размер.
func New(log *slog.Logger, repo Repository, l locker.Locker, defaultCover bool, capacity int) *Manager {
	return &Manager{
		log:          log,
		repo:         repo,
		locker:       l,
		defaultCover: defaultCover,
		capacity:     capacity,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (m *Manager) Capacity() int {
	return m.capacity
}

// PlanAppend назначает sort_order (max+1, либо 0 для пустой коллекции) и обложку.
// Чистая функция: ничего не пишет.
func (m *Manager) PlanAppend(ref models.ParentRef, existing []models.MediaAsset, incoming []models.NewAsset, coverIndex *int) AppendPlan {
	next := 0
	for i, a := range existing {
		if i == 0 || a.SortOrder >= next {
			next = a.SortOrder + 1
		}
	}

	now := m.now()
	plan := AppendPlan{Assets: make([]models.MediaAsset, 0, len(incoming))}
	for i, in := range incoming {
		plan.Assets = append(plan.Assets, models.MediaAsset{
			ID:         uuid.New(),
			ParentKind: ref.Kind,
			ParentID:   ref.ID,
			StorageKey: in.StorageKey,
			AltText:    in.AltText,
			SortOrder:  next + i,
			CreatedAt:  now,
		})
	}

	if len(plan.Assets) == 0 {
		return plan
	}

	hasCover := models.CoverCount(existing) > 0
	switch {
	case coverIndex != nil && *coverIndex >= 0 && *coverIndex < len(plan.Assets):
		plan.Assets[*coverIndex].IsCover = true
		plan.UnsetCover = hasCover
	case !hasCover && m.defaultCover:
		plan.Assets[0].IsCover = true
	}

	return plan
}

// Lock сериализует изменения коллекции одного владельца.
func (m *Manager) Lock(ctx context.Context, ref models.ParentRef) (func(), error) {
	const op = "collection.Manager.Lock"

	unlock, err := m.locker.Lock(ctx, ref.String())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return unlock, nil
}

// Append добавляет уже записанные файлы к коллекции под блокировкой владельца.
// Емкость перепроверяется под блокировкой.
func (m *Manager) Append(ctx context.Context, ref models.ParentRef, incoming []models.NewAsset, coverIndex *int) ([]models.MediaAsset, error) {
	const op = "collection.Manager.Append"
	log := m.log.With(
		slog.String("op", op),
		slog.String("parent", ref.String()),
		slog.Int("count", len(incoming)),
	)

	unlock, err := m.Lock(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := m.loadExisting(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if m.capacity > 0 && len(existing)+len(incoming) > m.capacity {
		log.Info("collection capacity exceeded", slog.Int("existing", len(existing)))
		return nil, &models.ValidationError{Violations: []models.Violation{{
			Field:   "images",
			Code:    models.CodeCapacityExceeded,
			Message: fmt.Sprintf("collection holds %d of %d images, cannot add %d", len(existing), m.capacity, len(incoming)),
		}}}
	}

	plan := m.PlanAppend(ref, existing, incoming, coverIndex)
	if err := m.repo.AppendMedia(ctx, ref, plan.Assets, plan.UnsetCover); err != nil {
		log.Error("failed to append media", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("media appended", slog.Bool("cover_moved", plan.UnsetCover))

	return plan.Assets, nil
}

// UpdateMetadata меняет alt_text, sort_order и флаг обложки одного медиа.
func (m *Manager) UpdateMetadata(ctx context.Context, ref models.ParentRef, mediaID uuid.UUID, upd models.MediaUpdate) (*models.MediaAsset, error) {
	const op = "collection.Manager.UpdateMetadata"
	log := m.log.With(
		slog.String("op", op),
		slog.String("parent", ref.String()),
		slog.String("media_id", mediaID.String()),
	)

	unlock, err := m.Lock(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer unlock()

	asset, err := m.repo.GetMedia(ctx, ref, mediaID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if upd.Empty() {
		return asset, nil
	}

	if upd.AltText != nil {
		asset.AltText = *upd.AltText
	}
	if upd.SortOrder != nil {
		asset.SortOrder = *upd.SortOrder
	}
	if upd.IsCover != nil {
		asset.IsCover = *upd.IsCover
	}

	if err := m.repo.UpdateMedia(ctx, *asset); err != nil {
		log.Error("failed to update media", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("media updated", slog.Bool("is_cover", asset.IsCover))

	return asset, nil
}

// Remove удаляет строку медиа. Обложка не переназначается.
func (m *Manager) Remove(ctx context.Context, ref models.ParentRef, mediaID uuid.UUID) (*models.MediaAsset, error) {
	const op = "collection.Manager.Remove"

	unlock, err := m.Lock(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer unlock()

	removed, err := m.repo.DeleteMedia(ctx, ref, mediaID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return removed, nil
}

func (m *Manager) List(ctx context.Context, ref models.ParentRef) ([]models.MediaAsset, error) {
	const op = "collection.Manager.List"

	assets, err := m.loadExisting(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return assets, nil
}

func (m *Manager) loadExisting(ctx context.Context, ref models.ParentRef) ([]models.MediaAsset, error) {
	ok, err := m.repo.ParentExists(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref, models.ErrNotFound)
	}

	assets, err := m.repo.ListByParent(ctx, ref)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	return assets, nil
}
