package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/lebowvsky/atelier-kaisla-sub001/internal/domain/models"
)

// MediaResponse отдает медиа с уже разрешенным URL; ключ хранилища наружу не выходит
type MediaResponse struct {
	ID        uuid.UUID `json:"id"`
	URL       string    `json:"url"`
	AltText   string    `json:"alt_text"`
	IsCover   bool      `json:"is_cover"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
}

type UpdateMediaRequest struct {
	AltText   *string `json:"alt_text" validate:"omitempty,max=255"`
	SortOrder *int    `json:"sort_order" validate:"omitempty,min=0"`
	IsCover   *bool   `json:"is_cover"`
}

func (r UpdateMediaRequest) ToDomain() models.MediaUpdate {
	return models.MediaUpdate{
		AltText:   r.AltText,
		SortOrder: r.SortOrder,
		IsCover:   r.IsCover,
	}
}

func NewMediaResponse(m models.MediaAsset) MediaResponse {
	return MediaResponse{
		ID:        m.ID,
		URL:       m.URL,
		AltText:   m.AltText,
		IsCover:   m.IsCover,
		SortOrder: m.SortOrder,
		CreatedAt: m.CreatedAt,
	}
}

func NewMediaResponses(assets []models.MediaAsset) []MediaResponse {
	out := make([]MediaResponse, 0, len(assets))
	for _, a := range assets {
		out = append(out, NewMediaResponse(a))
	}
	return out
}
