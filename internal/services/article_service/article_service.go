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

type ArticleService struct {
	log    *slog.Logger
	repo   repository.ArticleRepository
	upsert *upsert.Service
	now    func() time.Time
}

func NewArticleService(log *slog.Logger, repo repository.ArticleRepository, upsert *upsert.Service) *ArticleService {
	return &ArticleService{
		log:    log,
		repo:   repo,
		upsert: upsert,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateArticle создает статью с изображениями. Структурированное поле для статей не используется.
func (s *ArticleService) CreateArticle(ctx context.Context, req dto.CreateArticleRequest, upload ingestion.Request) (*dto.ArticleResponse, error) {
	const op = "service.ArticleService.CreateArticle"
	log := s.log.With(
		slog.String("op", op),
		slog.String("title", req.Title),
	)

	log.Info("creating article")

	upload.RawDimensions = nil

	var created models.Article
	_, assets, err := s.upsert.Create(ctx, models.ParentArticle, upload,
		func(ctx context.Context, ref models.ParentRef, _ *ingestion.Batch, assets []models.MediaAsset) error {
			now := s.now()
			created = models.Article{
				ID:        ref.ID,
				Title:     strings.TrimSpace(req.Title),
				Content:   req.Content,
				Published: req.Published,
				Media:     assets,
				CreatedAt: now,
				UpdatedAt: now,
			}
			return s.repo.Create(ctx, created)
		})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	created.Media = assets
	log.Info("article created", slog.String("id", created.ID.String()))

	resp := dto.NewArticleResponse(created)
	return &resp, nil
}

func (s *ArticleService) GetArticle(ctx context.Context, id uuid.UUID) (*dto.ArticleResponse, error) {
	const op = "service.ArticleService.GetArticle"

	article, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.upsert.ResolveURLs(article.Media)

	resp := dto.NewArticleResponse(*article)
	return &resp, nil
}

func (s *ArticleService) ListArticles(ctx context.Context, limit int, onlyPublished bool) ([]dto.ArticleResponse, error) {
	const op = "service.ArticleService.ListArticles"

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	articles, err := s.repo.List(ctx, limit, onlyPublished)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]dto.ArticleResponse, 0, len(articles))
	for _, a := range articles {
		s.upsert.ResolveURLs(a.Media)
		out = append(out, dto.NewArticleResponse(a))
	}

	return out, nil
}

func (s *ArticleService) UpdateArticle(ctx context.Context, id uuid.UUID, req dto.UpdateArticleRequest) (*dto.ArticleResponse, error) {
	const op = "service.ArticleService.UpdateArticle"
	log := s.log.With(
		slog.String("op", op),
		slog.String("article_id", id.String()),
	)

	article, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if req.Title != nil {
		article.Title = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		article.Content = *req.Content
	}
	if req.Published != nil {
		article.Published = *req.Published
	}
	article.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, *article); err != nil {
		log.Error("failed to update article", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("article updated", slog.Bool("published", article.Published))

	s.upsert.ResolveURLs(article.Media)
	resp := dto.NewArticleResponse(*article)
	return &resp, nil
}

func (s *ArticleService) DeleteArticle(ctx context.Context, id uuid.UUID) error {
	const op = "service.ArticleService.DeleteArticle"

	ref := models.ParentRef{Kind: models.ParentArticle, ID: id}
	err := s.upsert.Delete(ctx, ref, func(ctx context.Context) ([]models.MediaAsset, error) {
		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.log.Error("failed to delete article", slog.String("op", op), sl.Err(err))
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
