package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/lebowvsky/atelier-kaisla-sub001/internal/domain/models"
)

type CreateArticleRequest struct {
	Title     string `form:"title" validate:"required,max=255"`
	Content   string `form:"content"`
	Published bool   `form:"published"`
}

type UpdateArticleRequest struct {
	Title     *string `json:"title" validate:"omitempty,min=1,max=255"`
	Content   *string `json:"content"`
	Published *bool   `json:"published"`
}

type ArticleResponse struct {
	ID        uuid.UUID       `json:"id"`
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	Published bool            `json:"published"`
	Media     []MediaResponse `json:"media"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func NewArticleResponse(a models.Article) ArticleResponse {
	return ArticleResponse{
		ID:        a.ID,
		Title:     a.Title,
		Content:   a.Content,
		Published: a.Published,
		Media:     NewMediaResponses(a.Media),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}
