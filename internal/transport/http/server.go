package http

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lebowvsky/atelier-kaisla-sub001/internal/domain/models"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/lib/logger/sl"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/services/ingestion"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/transport/http/dto"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/transport/http/dto/response"
)

// Имена полей multipart-формы
const (
	fieldImages     = "images"
	fieldDimensions = "dimensions"
	fieldCoverIndex = "cover_index"
	fieldAltText    = "alt_text"
)

type ListingService interface {
	CreateListing(ctx context.Context, req dto.CreateListingRequest, upload ingestion.Request) (*dto.ListingResponse, error)
	GetListing(ctx context.Context, id uuid.UUID) (*dto.ListingResponse, error)
	ListListings(ctx context.Context, limit int) ([]dto.ListingResponse, error)
	UpdateListing(ctx context.Context, id uuid.UUID, req dto.UpdateListingRequest) (*dto.ListingResponse, error)
	DeleteListing(ctx context.Context, id uuid.UUID) error
}

type ArticleService interface {
	CreateArticle(ctx context.Context, req dto.CreateArticleRequest, upload ingestion.Request) (*dto.ArticleResponse, error)
	GetArticle(ctx context.Context, id uuid.UUID) (*dto.ArticleResponse, error)
	ListArticles(ctx context.Context, limit int, onlyPublished bool) ([]dto.ArticleResponse, error)
	UpdateArticle(ctx context.Context, id uuid.UUID, req dto.UpdateArticleRequest) (*dto.ArticleResponse, error)
	DeleteArticle(ctx context.Context, id uuid.UUID) error
}

// MediaService работает с коллекцией изображений любой сущности
type MediaService interface {
	AddMedia(ctx context.Context, ref models.ParentRef, req ingestion.Request) ([]models.MediaAsset, error)
	UpdateMedia(ctx context.Context, ref models.ParentRef, mediaID uuid.UUID, upd models.MediaUpdate) (*models.MediaAsset, error)
	DeleteMedia(ctx context.Context, ref models.ParentRef, mediaID uuid.UUID) error
	ListMedia(ctx context.Context, ref models.ParentRef) ([]models.MediaAsset, error)
}

type Routers struct {
	log            *slog.Logger
	ListingService ListingService
	ArticleService ArticleService
	MediaService   MediaService
}

func NewRouter(log *slog.Logger, listingService ListingService, articleService ArticleService, mediaService MediaService) *Routers {
	return &Routers{
		log:            log,
		ListingService: listingService,
		ArticleService: articleService,
		MediaService:   mediaService,
	}
}

// Register вешает все маршруты API на группу /api/v1
func (r *Routers) Register(api *echo.Group) {
	listings := api.Group("/listings")
	{
		listings.POST("", r.CreateListing)
		listings.GET("", r.ListListings)
		listings.GET("/:id", r.GetListing)
		listings.PATCH("/:id", r.UpdateListing)
		listings.DELETE("/:id", r.DeleteListing)
		r.registerMedia(listings, models.ParentListing)
	}

	articles := api.Group("/articles")
	{
		articles.POST("", r.CreateArticle)
		articles.GET("", r.ListArticles)
		articles.GET("/:id", r.GetArticle)
		articles.PATCH("/:id", r.UpdateArticle)
		articles.DELETE("/:id", r.DeleteArticle)
		r.registerMedia(articles, models.ParentArticle)
	}
}

func (r *Routers) registerMedia(g *echo.Group, kind models.ParentKind) {
	g.GET("/:id/media", r.ListMedia(kind))
	g.POST("/:id/media", r.AddMedia(kind))
	g.PATCH("/:id/media/:media_id", r.UpdateMedia(kind))
	g.DELETE("/:id/media/:media_id", r.DeleteMedia(kind))
}

// fail переводит доменную ошибку в HTTP-ответ
func (r *Routers) fail(c echo.Context, log *slog.Logger, err error) error {
	var (
		vErr *models.ValidationError
		sErr *models.StorageError
		pErr *models.PersistenceError
	)

	switch {
	case errors.As(err, &vErr):
		log.Warn("validation failed", slog.Int("violations", len(vErr.Violations)))
		return c.JSON(http.StatusBadRequest, response.ValidationFailed(vErr.Violations))
	case errors.Is(err, models.ErrNotFound):
		log.Info("not found", sl.Err(err))
		return c.JSON(http.StatusNotFound, response.NotFound("Resource not found"))
	case errors.As(err, &sErr):
		log.Error("storage failure", sl.Err(err))
		return c.JSON(http.StatusInternalServerError,
			response.ErrorResponseWithDetails(response.CodeStorageError, "Failed to store files"))
	case errors.As(err, &pErr):
		log.Error("persistence failure", sl.Err(err))
		return c.JSON(http.StatusInternalServerError,
			response.ErrorResponseWithDetails(response.CodePersistenceError, "Failed to save record"))
	default:
		log.Error("request failed", sl.Err(err))
		return c.JSON(http.StatusInternalServerError, response.Internal())
	}
}

func parseID(c echo.Context, param string) (uuid.UUID, error) {
	return uuid.Parse(c.Param(param))
}

// parseUpload читает файлы и служебные поля формы. Отсутствие поля dimensions
// и пустое значение различаются: nil означает, что поле не передавалось.
func parseUpload(c echo.Context) (ingestion.Request, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return ingestion.Request{}, err
	}

	return uploadFromForm(form)
}

func uploadFromForm(form *multipart.Form) (ingestion.Request, error) {
	var req ingestion.Request

	for _, fh := range form.File[fieldImages] {
		req.Files = append(req.Files, ingestion.FromMultipart(fh))
	}

	if vals, ok := form.Value[fieldDimensions]; ok && len(vals) > 0 {
		raw := vals[0]
		req.RawDimensions = &raw
	}

	if vals := form.Value[fieldCoverIndex]; len(vals) > 0 && strings.TrimSpace(vals[0]) != "" {
		idx, err := strconv.Atoi(strings.TrimSpace(vals[0]))
		if err != nil {
			return ingestion.Request{}, &models.ValidationError{Violations: []models.Violation{{
				Field:   fieldCoverIndex,
				Code:    models.CodeCoverIndex,
				Message: "must be an integer",
			}}}
		}
		req.CoverIndex = &idx
	}

	req.AltTexts = form.Value[fieldAltText]

	return req, nil
}

func queryLimit(c echo.Context) int {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil {
		return 0
	}
	return limit
}
