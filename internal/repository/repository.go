package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
)

type Repository struct {
	db       *pgxpool.Pool
	Media    *MediaRepo
	Listings *ListingRepo
	Articles *ArticleRepo
}

func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	db, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return New(db), nil
}

func New(db *pgxpool.Pool) *Repository {
	media := NewMediaRepository(db)

	return &Repository{
		db:       db,
		Media:    media,
		Listings: NewListingRepository(db, media),
		Articles: NewArticleRepository(db, media),
	}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *Repository) Close() {
	r.db.Close()
}
