package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/lebowvsky/atelier-kaisla-sub001/internal/domain/models"
)

type ArticleRepo struct {
	db    *pgxpool.Pool
	sb    sq.StatementBuilderType
	media *MediaRepo
}

func NewArticleRepository(db *pgxpool.Pool, media *MediaRepo) *ArticleRepo {
	return &ArticleRepo{
		db:    db,
		sb:    sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		media: media,
	}
}

// Create сохраняет статью и ее изображения одной транзакцией
func (r *ArticleRepo) Create(ctx context.Context, article models.Article) error {
	const op = "repository.ArticleRepo.Create"

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback(ctx)

	query, args, err := r.sb.Insert("articles").
		Columns("id", "title", "content", "published", "created_at", "updated_at").
		Values(article.ID, article.Title, article.Content, article.Published, article.CreatedAt, article.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := insertMedia(ctx, tx, r.sb, article.Media); err != nil {
		return fmt.Errorf("%s: failed to insert media: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return nil
}

func (r *ArticleRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Article, error) {
	const op = "repository.ArticleRepo.GetByID"

	query, args, err := r.sb.Select("id", "title", "content", "published", "created_at", "updated_at").
		From("articles").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var a models.Article
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&a.ID,
		&a.Title,
		&a.Content,
		&a.Published,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.Media, err = r.media.ListByParent(ctx, a.Ref())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &a, nil
}

// List возвращает последние статьи; onlyPublished скрывает черновики
func (r *ArticleRepo) List(ctx context.Context, limit int, onlyPublished bool) ([]models.Article, error) {
	const op = "repository.ArticleRepo.List"

	qb := r.sb.Select("id", "title", "content", "published", "created_at", "updated_at").
		From("articles").
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit))
	if onlyPublished {
		qb = qb.Where(sq.Eq{"published": true})
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	articles := []models.Article{}
	ids := []uuid.UUID{}
	for rows.Next() {
		var a models.Article
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.Published, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		articles = append(articles, a)
		ids = append(ids, a.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rows.Close()

	media, err := r.media.ListByParents(ctx, models.ParentArticle, ids)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for i := range articles {
		articles[i].Media = media[articles[i].ID]
		if articles[i].Media == nil {
			articles[i].Media = []models.MediaAsset{}
		}
	}

	return articles, nil
}

func (r *ArticleRepo) Update(ctx context.Context, article models.Article) error {
	const op = "repository.ArticleRepo.Update"

	query, args, err := r.sb.Update("articles").
		Set("title", article.Title).
		Set("content", article.Content).
		Set("published", article.Published).
		Set("updated_at", article.UpdatedAt).
		Where(sq.Eq{"id": article.ID}).
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

func (r *ArticleRepo) Delete(ctx context.Context, id uuid.UUID) ([]models.MediaAsset, error) {
	const op = "repository.ArticleRepo.Delete"

	removed, err := deleteParent(ctx, r.db, r.sb, models.ParentRef{Kind: models.ParentArticle, ID: id})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return removed, nil
}
