package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/lebowvsky/atelier-kaisla-sub001/internal/domain/models"
)

// CreateListingRequest скалярные поля multipart-формы; файлы и dimensions читаются отдельно
type CreateListingRequest struct {
	Name        string `form:"name" validate:"required,max=255"`
	Description string `form:"description"`
	Price       int64  `form:"price" validate:"gte=0"`
}

type UpdateListingRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description"`
	Price       *int64  `json:"price" validate:"omitempty,gte=0"`
	// Dimensions: отсутствие сохраняет значение, null очищает, объект заменяет
	Dimensions json.RawMessage `json:"dimensions"`
}

type ListingResponse struct {
	ID          uuid.UUID          `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Price       int64              `json:"price"`
	Dimensions  *models.Dimensions `json:"dimensions,omitempty"`
	Media       []MediaResponse    `json:"media"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func NewListingResponse(l models.Listing) ListingResponse {
	return ListingResponse{
		ID:          l.ID,
		Name:        l.Name,
		Description: l.Description,
		Price:       l.Price,
		Dimensions:  l.Dimensions,
		Media:       NewMediaResponses(l.Media),
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}
