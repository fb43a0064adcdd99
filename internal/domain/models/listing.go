package models

import (
	"time"

	"github.com/google/uuid"
)

// Listing представляет позицию каталога
type Listing struct {
	ID          uuid.UUID    `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Price       int64        `json:"price"`
	Dimensions  *Dimensions  `json:"dimensions,omitempty"`
	Media       []MediaAsset `json:"media"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (l Listing) Ref() ParentRef {
	return ParentRef{Kind: ParentListing, ID: l.ID}
}
