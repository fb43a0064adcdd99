package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/lebowvsky/atelier-kaisla-sub001/internal/domain/models"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/services/collection"
)

type MediaRepository interface {
	collection.Repository
	ListByParents(ctx context.Context, kind models.ParentKind, ids []uuid.UUID) (map[uuid.UUID][]models.MediaAsset, error)
}

type ListingRepository interface {
	Create(ctx context.Context, listing models.Listing) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	List(ctx context.Context, limit int) ([]models.Listing, error)
	Update(ctx context.Context, listing models.Listing) error
	// Delete удаляет позицию и возвращает принадлежавшие ей строки медиа
	Delete(ctx context.Context, id uuid.UUID) ([]models.MediaAsset, error)
}

type ArticleRepository interface {
	Create(ctx context.Context, article models.Article) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Article, error)
	List(ctx context.Context, limit int, onlyPublished bool) ([]models.Article, error)
	Update(ctx context.Context, article models.Article) error
	Delete(ctx context.Context, id uuid.UUID) ([]models.MediaAsset, error)
}

var (
	_ MediaRepository   = (*MediaRepo)(nil)
	_ ListingRepository = (*ListingRepo)(nil)
	_ ArticleRepository = (*ArticleRepo)(nil)
)
