package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lebowvsky/atelier-kaisla-sub001/internal/domain/models"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/lib/logger/sl"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/metrics"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/services/collection"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/services/ingestion"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/storage"
)

const (
	reasonWriteFailed   = "write_failed"
	reasonPersistFailed = "persist_failed"
	reasonRejected      = "rejected"
)

// PersistFunc сохраняет сущность вместе со строками медиа одной записью.
type PersistFunc func(ctx context.Context, assets []models.MediaAsset) error

// RemoveFunc удаляет сущность и возвращает строки медиа, которые ей принадлежали.
type RemoveFunc func(ctx context.Context) ([]models.MediaAsset, error)

// Coordinator выполняет сагу "записать файлы -> сохранить запись -> компенсировать".
type Coordinator struct {
	log     *slog.Logger
	backend storage.Backend
	media   *collection.Manager

	// CompensationTimeout ограничивает очистку, идущую после отмены контекста запроса
	CompensationTimeout time.Duration
	// CompensationWorkers ограничивает число параллельных удалений
	CompensationWorkers int
}

func New(log *slog.Logger, backend storage.Backend, media *collection.Manager) *Coordinator {
	return &Coordinator{
		log:                 log,
		backend:             backend,
		media:               media,
		CompensationTimeout: 30 * time.Second,
		CompensationWorkers: 4,
	}
}

func (c *Coordinator) Media() *collection.Manager {
	return c.media
}

// Create записывает файлы пакета, затем вызывает persist с подготовленными строками.
// При любой ошибке после записи файлы удаляются до возврата ошибки.
func (c *Coordinator) Create(ctx context.Context, ref models.ParentRef, batch *ingestion.Batch, persist PersistFunc) ([]models.MediaAsset, error) {
	const op = "coordinator.Coordinator.Create"
	ns := ref.Kind.Namespace()
	log := c.log.With(
		slog.String("op", op),
		slog.String("parent", ref.String()),
		slog.Int("files", len(batch.Files)),
	)

	keys, err := c.writeFiles(ctx, log, ns, batch)
	if err != nil {
		c.compensate(ctx, log, ns, keys, reasonWriteFailed)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	plan := c.media.PlanAppend(ref, nil, newAssets(keys, batch), batch.CoverIndex)

	log.Debug("saga state", slog.String("state", "persisting_record"))
	if err := persist(ctx, plan.Assets); err != nil {
		log.Error("failed to persist record", sl.Err(err))
		c.compensate(ctx, log, ns, keys, reasonPersistFailed)
		return nil, fmt.Errorf("%s: %w", op, &models.PersistenceError{Err: err})
	}

	log.Debug("saga state", slog.String("state", "committed"))
	c.ResolveURLs(plan.Assets)

	return plan.Assets, nil
}

// Append добавляет файлы к существующей сущности. Емкость и обложка
// определяются менеджером коллекции под блокировкой владельца.
func (c *Coordinator) Append(ctx context.Context, ref models.ParentRef, batch *ingestion.Batch) ([]models.MediaAsset, error) {
	const op = "coordinator.Coordinator.Append"
	ns := ref.Kind.Namespace()
	log := c.log.With(
		slog.String("op", op),
		slog.String("parent", ref.String()),
		slog.Int("files", len(batch.Files)),
	)

	keys, err := c.writeFiles(ctx, log, ns, batch)
	if err != nil {
		c.compensate(ctx, log, ns, keys, reasonWriteFailed)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Debug("saga state", slog.String("state", "persisting_record"))
	assets, err := c.media.Append(ctx, ref, newAssets(keys, batch), batch.CoverIndex)
	if err != nil {
		switch {
		case models.IsValidationError(err), errors.Is(err, models.ErrNotFound):
			c.compensate(ctx, log, ns, keys, reasonRejected)
			return nil, fmt.Errorf("%s: %w", op, err)
		default:
			log.Error("failed to persist media", sl.Err(err))
			c.compensate(ctx, log, ns, keys, reasonPersistFailed)
			return nil, fmt.Errorf("%s: %w", op, &models.PersistenceError{Err: err})
		}
	}

	log.Debug("saga state", slog.String("state", "committed"))
	c.ResolveURLs(assets)

	return assets, nil
}

// DeleteParent удаляет записи первыми, файлы удаляются после, ошибки удаления файлов только логируются.
func (c *Coordinator) DeleteParent(ctx context.Context, ref models.ParentRef, remove RemoveFunc) error {
	const op = "coordinator.Coordinator.DeleteParent"
	log := c.log.With(
		slog.String("op", op),
		slog.String("parent", ref.String()),
	)

	unlock, err := c.media.Lock(ctx, ref)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer unlock()

	removed, err := remove(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	c.removeFiles(ctx, log, ref.Kind.Namespace(), storageKeys(removed))
	log.Info("parent deleted", slog.Int("media", len(removed)))

	return nil
}

// DeleteMedia удаляет одно медиа; обложка не переназначается.
func (c *Coordinator) DeleteMedia(ctx context.Context, ref models.ParentRef, mediaID uuid.UUID) error {
	const op = "coordinator.Coordinator.DeleteMedia"
	log := c.log.With(
		slog.String("op", op),
		slog.String("parent", ref.String()),
		slog.String("media_id", mediaID.String()),
	)

	removed, err := c.media.Remove(ctx, ref, mediaID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	c.removeFiles(ctx, log, ref.Kind.Namespace(), []string{removed.StorageKey})
	log.Info("media deleted", slog.Bool("was_cover", removed.IsCover))

	return nil
}

// ResolveURLs заполняет URL по ключу хранилища каждого медиа
func (c *Coordinator) ResolveURLs(assets []models.MediaAsset) {
	for i := range assets {
		assets[i].URL = c.backend.URLFor(assets[i].StorageKey, assets[i].ParentKind.Namespace())
	}
}

// writeFiles пишет файлы последовательно и возвращает ключи успешно записанных,
// в том числе при ошибке.
func (c *Coordinator) writeFiles(ctx context.Context, log *slog.Logger, ns string, batch *ingestion.Batch) ([]string, error) {
	log.Debug("saga state", slog.String("state", "writing_files"))

	if err := c.backend.EnsureNamespace(ctx, ns); err != nil {
		log.Error("failed to ensure namespace", sl.Err(err))
		return nil, &models.StorageError{Op: "ensure_namespace", Key: ns, Err: err}
	}

	keys := make([]string, 0, len(batch.Files))
	for i, f := range batch.Files {
		if err := ctx.Err(); err != nil {
			log.Warn("write interrupted", slog.Int("written", len(keys)), sl.Err(err))
			return keys, &models.StorageError{Op: "put", Err: err}
		}

		key, err := c.put(ctx, ns, f)
		if err != nil {
			log.Error("failed to write file",
				slog.Int("index", i),
				slog.Int("written", len(keys)),
				sl.Err(err),
			)
			return keys, &models.StorageError{Op: "put", Key: f.Filename, Err: err}
		}

		metrics.MediaObjectsWritten.WithLabelValues(ns).Inc()
		keys = append(keys, key)
	}

	return keys, nil
}

func (c *Coordinator) put(ctx context.Context, ns string, f ingestion.File) (string, error) {
	if f.Open == nil {
		return "", errors.New("file has no content")
	}

	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	return c.backend.Put(ctx, rc, f.Filename, ns)
}

// compensate удаляет записанные файлы на контексте, не зависящем от отмены запроса.
func (c *Coordinator) compensate(ctx context.Context, log *slog.Logger, ns string, keys []string, reason string) {
	if len(keys) == 0 {
		return
	}

	log.Warn("compensating written files",
		slog.String("reason", reason),
		slog.Int("count", len(keys)),
	)
	metrics.MediaCompensations.WithLabelValues(ns, reason).Add(float64(len(keys)))

	if failed := c.deleteKeys(ctx, log, ns, keys); failed > 0 {
		metrics.MediaCompensationFailures.WithLabelValues(ns).Add(float64(failed))
	}
}

func (c *Coordinator) removeFiles(ctx context.Context, log *slog.Logger, ns string, keys []string) {
	if failed := c.deleteKeys(ctx, log, ns, keys); failed > 0 {
		log.Warn("files left behind after delete", slog.Int("count", failed))
	}
}

func (c *Coordinator) deleteKeys(ctx context.Context, log *slog.Logger, ns string, keys []string) int {
	if len(keys) == 0 {
		return 0
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.CompensationTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(c.CompensationWorkers, 1))

	failed := make([]bool, len(keys))
	for i, key := range keys {
		g.Go(func() error {
			if err := c.backend.Delete(gctx, key, ns); err != nil {
				log.Error("failed to delete file",
					slog.String("key", key),
					slog.String("namespace", ns),
					sl.Err(err),
				)
				failed[i] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, f := range failed {
		if f {
			n++
		}
	}

	return n
}

func newAssets(keys []string, batch *ingestion.Batch) []models.NewAsset {
	out := make([]models.NewAsset, 0, len(keys))
	for i, key := range keys {
		out = append(out, models.NewAsset{StorageKey: key, AltText: batch.AltText(i)})
	}

	return out
}

func storageKeys(assets []models.MediaAsset) []string {
	keys := make([]string, 0, len(assets))
	for _, a := range assets {
		keys = append(keys, a.StorageKey)
	}

	return keys
}
