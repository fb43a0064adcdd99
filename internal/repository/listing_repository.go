package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/lebowvsky/atelier-kaisla-sub001/internal/domain/models"
)

type ListingRepo struct {
	db    *pgxpool.Pool
	sb    sq.StatementBuilderType
	media *MediaRepo
}

func NewListingRepository(db *pgxpool.Pool, media *MediaRepo) *ListingRepo {
	return &ListingRepo{
		db:    db,
		sb:    sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		media: media,
	}
}

// Create сохраняет позицию каталога и все ее медиа одной транзакцией
func (r *ListingRepo) Create(ctx context.Context, listing models.Listing) error {
	const op = "repository.ListingRepo.Create"

	dims, err := dimensionsArg(listing.Dimensions)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback(ctx)

	query, args, err := r.sb.Insert("listings").
		Columns("id", "name", "description", "price", "dimensions", "created_at", "updated_at").
		Values(listing.ID, listing.Name, listing.Description, listing.Price, dims, listing.CreatedAt, listing.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := insertMedia(ctx, tx, r.sb, listing.Media); err != nil {
		return fmt.Errorf("%s: failed to insert media: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return nil
}

func (r *ListingRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	const op = "repository.ListingRepo.GetByID"

	query, args, err := r.sb.Select("id", "name", "description", "price", "dimensions", "created_at", "updated_at").
		From("listings").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	listing, err := scanListing(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	listing.Media, err = r.media.ListByParent(ctx, listing.Ref())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &listing, nil
}

// List возвращает последние позиции каталога вместе с медиа
func (r *ListingRepo) List(ctx context.Context, limit int) ([]models.Listing, error) {
	const op = "repository.ListingRepo.List"

	query, args, err := r.sb.Select("id", "name", "description", "price", "dimensions", "created_at", "updated_at").
		From("listings").
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	listings := []models.Listing{}
	ids := []uuid.UUID{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		listings = append(listings, l)
		ids = append(ids, l.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rows.Close()

	media, err := r.media.ListByParents(ctx, models.ParentListing, ids)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for i := range listings {
		listings[i].Media = media[listings[i].ID]
		if listings[i].Media == nil {
			listings[i].Media = []models.MediaAsset{}
		}
	}

	return listings, nil
}

// Update обновляет скалярные поля; медиа не затрагиваются
func (r *ListingRepo) Update(ctx context.Context, listing models.Listing) error {
	const op = "repository.ListingRepo.Update"

	dims, err := dimensionsArg(listing.Dimensions)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query, args, err := r.sb.Update("listings").
		Set("name", listing.Name).
		Set("description", listing.Description).
		Set("price", listing.Price).
		Set("dimensions", dims).
		Set("updated_at", listing.UpdatedAt).
		Where(sq.Eq{"id": listing.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	return nil
}

// Delete удаляет позицию и ее медиа, возвращая удаленные строки медиа
func (r *ListingRepo) Delete(ctx context.Context, id uuid.UUID) ([]models.MediaAsset, error) {
	const op = "repository.ListingRepo.Delete"

	removed, err := deleteParent(ctx, r.db, r.sb, models.ParentRef{Kind: models.ParentListing, ID: id})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return removed, nil
}

func scanListing(row pgx.Row) (models.Listing, error) {
	var (
		l    models.Listing
		dims []byte
	)
	err := row.Scan(&l.ID, &l.Name, &l.Description, &l.Price, &dims, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return l, err
	}

	if len(dims) > 0 {
		var d models.Dimensions
		if err := json.Unmarshal(dims, &d); err != nil {
			return l, fmt.Errorf("decode dimensions: %w", err)
		}
		l.Dimensions = &d
	}

	return l, nil
}

// dimensionsArg возвращает nil для NULL либо JSON-текст для колонки jsonb
func dimensionsArg(d *models.Dimensions) (interface{}, error) {
	if d == nil {
		return nil, nil
	}

	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}

	return string(b), nil
}

// deleteParent удаляет строки медиа и владельца в одной транзакции
func deleteParent(ctx context.Context, db *pgxpool.Pool, sb sq.StatementBuilderType, ref models.ParentRef) ([]models.MediaAsset, error) {
	table, err := parentTable(ref.Kind)
	if err != nil {
		return nil, err
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockParent(ctx, tx, ref); err != nil {
		return nil, err
	}

	removed, err := deleteMediaByParent(ctx, tx, sb, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to delete media: %w", err)
	}

	query, args, err := sb.Delete(table).Where(sq.Eq{"id": ref.ID}).ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return removed, nil
}
