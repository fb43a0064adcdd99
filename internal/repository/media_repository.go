package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/lib/pq"

	"github.com/lebowvsky/atelier-kaisla-sub001/internal/domain/models"
)

const mediaTable = "media_assets"

var mediaColumns = []string{
	"id",
	"parent_kind",
	"parent_id",
	"storage_key",
	"alt_text",
	"is_cover",
	"sort_order",
	"created_at",
}

// parentTables сопоставляет тип владельца с таблицей
var parentTables = map[models.ParentKind]string{
	models.ParentListing: "listings",
	models.ParentArticle: "articles",
}

func parentTable(kind models.ParentKind) (string, error) {
	t, ok := parentTables[kind]
	if !ok {
		return "", fmt.Errorf("unknown parent kind %q", kind)
	}
	return t, nil
}

// querier реализуют и *pgxpool.Pool, и pgx.Tx
type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type MediaRepo struct {
	db *pgxpool.Pool
	sb sq.StatementBuilderType
}

func NewMediaRepository(db *pgxpool.Pool) *MediaRepo {
	return &MediaRepo{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *MediaRepo) ParentExists(ctx context.Context, ref models.ParentRef) (bool, error) {
	const op = "repository.MediaRepo.ParentExists"

	table, err := parentTable(ref.Kind)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	var exists bool
	err = r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)`, table),
		ref.ID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}

func (r *MediaRepo) ListByParent(ctx context.Context, ref models.ParentRef) ([]models.MediaAsset, error) {
	const op = "repository.MediaRepo.ListByParent"

	assets, err := selectMedia(ctx, r.db, r.sb, sq.Eq{"parent_kind": string(ref.Kind), "parent_id": ref.ID})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return assets, nil
}

// ListByParents загружает медиа нескольких владельцев одного типа за один запрос
func (r *MediaRepo) ListByParents(ctx context.Context, kind models.ParentKind, ids []uuid.UUID) (map[uuid.UUID][]models.MediaAsset, error) {
	const op = "repository.MediaRepo.ListByParents"

	out := make(map[uuid.UUID][]models.MediaAsset, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	strIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		strIDs = append(strIDs, id.String())
	}

	assets, err := selectMedia(ctx, r.db, r.sb, sq.And{
		sq.Eq{"parent_kind": string(kind)},
		sq.Expr("parent_id = ANY(?)", pq.Array(strIDs)),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, a := range assets {
		out[a.ParentID] = append(out[a.ParentID], a)
	}

	return out, nil
}

func (r *MediaRepo) GetMedia(ctx context.Context, ref models.ParentRef, mediaID uuid.UUID) (*models.MediaAsset, error) {
	const op = "repository.MediaRepo.GetMedia"

	query, args, err := r.sb.Select(mediaColumns...).
		From(mediaTable).
		Where(sq.Eq{"id": mediaID, "parent_kind": string(ref.Kind), "parent_id": ref.ID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	asset, err := scanMedia(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &asset, nil
}

// AppendMedia вставляет строки в транзакции, удерживая строку владельца FOR UPDATE.
func (r *MediaRepo) AppendMedia(ctx context.Context, ref models.ParentRef, assets []models.MediaAsset, unsetCover bool) error {
	const op = "repository.MediaRepo.AppendMedia"

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback(ctx)

	if err := lockParent(ctx, tx, ref); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if unsetCover {
		if err := unsetCovers(ctx, tx, r.sb, ref, uuid.Nil); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := insertMedia(ctx, tx, r.sb, assets); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return nil
}

// UpdateMedia сохраняет метаданные. Если asset.IsCover, обложка снимается с
// остальных медиа владельца в той же транзакции.
func (r *MediaRepo) UpdateMedia(ctx context.Context, asset models.MediaAsset) error {
	const op = "repository.MediaRepo.UpdateMedia"

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback(ctx)

	ref := asset.Parent()
	if err := lockParent(ctx, tx, ref); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if asset.IsCover {
		if err := unsetCovers(ctx, tx, r.sb, ref, asset.ID); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	query, args, err := r.sb.Update(mediaTable).
		Set("alt_text", asset.AltText).
		Set("sort_order", asset.SortOrder).
		Set("is_cover", asset.IsCover).
		Where(sq.Eq{"id": asset.ID, "parent_kind": string(ref.Kind), "parent_id": ref.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return nil
}

func (r *MediaRepo) DeleteMedia(ctx context.Context, ref models.ParentRef, mediaID uuid.UUID) (*models.MediaAsset, error) {
	const op = "repository.MediaRepo.DeleteMedia"

	query, args, err := r.sb.Delete(mediaTable).
		Where(sq.Eq{"id": mediaID, "parent_kind": string(ref.Kind), "parent_id": ref.ID}).
		Suffix("RETURNING " + strings.Join(mediaColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	asset, err := scanMedia(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &asset, nil
}

func lockParent(ctx context.Context, tx pgx.Tx, ref models.ParentRef) error {
	table, err := parentTable(ref.Kind)
	if err != nil {
		return err
	}

	var id uuid.UUID
	err = tx.QueryRow(ctx,
		fmt.Sprintf(`SELECT id FROM %s WHERE id = $1 FOR UPDATE`, table),
		ref.ID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s: %w", ref, models.ErrNotFound)
		}
		return err
	}

	return nil
}

func unsetCovers(ctx context.Context, tx pgx.Tx, sb sq.StatementBuilderType, ref models.ParentRef, except uuid.UUID) error {
	query, args, err := sb.Update(mediaTable).
		Set("is_cover", false).
		Where(sq.Eq{"parent_kind": string(ref.Kind), "parent_id": ref.ID, "is_cover": true}).
		Where(sq.NotEq{"id": except}).
		ToSql()
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, query, args...)
	return err
}

func insertMedia(ctx context.Context, tx pgx.Tx, sb sq.StatementBuilderType, assets []models.MediaAsset) error {
	if len(assets) == 0 {
		return nil
	}

	ins := sb.Insert(mediaTable).Columns(mediaColumns...)
	for _, a := range assets {
		ins = ins.Values(a.ID, string(a.ParentKind), a.ParentID, a.StorageKey, a.AltText, a.IsCover, a.SortOrder, a.CreatedAt)
	}

	query, args, err := ins.ToSql()
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, query, args...)
	return err
}

func deleteMediaByParent(ctx context.Context, tx pgx.Tx, sb sq.StatementBuilderType, ref models.ParentRef) ([]models.MediaAsset, error) {
	query, args, err := sb.Delete(mediaTable).
		Where(sq.Eq{"parent_kind": string(ref.Kind), "parent_id": ref.ID}).
		Suffix("RETURNING " + strings.Join(mediaColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMedia(rows)
}

// mediaOrder задает полный порядок: id разрешает совпадения sort_order и created_at
var mediaOrder = []string{"sort_order ASC", "created_at ASC", "id ASC"}

func mediaSelect(sb sq.StatementBuilderType, where sq.Sqlizer) sq.SelectBuilder {
	return sb.Select(mediaColumns...).
		From(mediaTable).
		Where(where).
		OrderBy(mediaOrder...)
}

func selectMedia(ctx context.Context, q querier, sb sq.StatementBuilderType, where sq.Sqlizer) ([]models.MediaAsset, error) {
	query, args, err := mediaSelect(sb, where).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMedia(rows)
}

func collectMedia(rows pgx.Rows) ([]models.MediaAsset, error) {
	assets := []models.MediaAsset{}
	for rows.Next() {
		a, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}

	return assets, rows.Err()
}

func scanMedia(row pgx.Row) (models.MediaAsset, error) {
	var (
		a    models.MediaAsset
		kind string
	)
	err := row.Scan(
		&a.ID,
		&kind,
		&a.ParentID,
		&a.StorageKey,
		&a.AltText,
		&a.IsCover,
		&a.SortOrder,
		&a.CreatedAt,
	)
	a.ParentKind = models.ParentKind(kind)

	return a, err
}
