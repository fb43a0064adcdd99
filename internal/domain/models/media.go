package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ParentKind определяет тип сущности-владельца медиа
type ParentKind string

const (
	ParentListing ParentKind = "listing"
	ParentArticle ParentKind = "article"
)

// Namespace возвращает пространство имен хранилища для данного типа сущности
func (k ParentKind) Namespace() string {
	switch k {
	case ParentListing:
		return "listings"
	case ParentArticle:
		return "articles"
	default:
		return string(k)
	}
}

func (k ParentKind) Valid() bool {
	return k == ParentListing || k == ParentArticle
}

// ParentRef ссылается на конкретную сущность-владельца
type ParentRef struct {
	Kind ParentKind
	ID   uuid.UUID
}

func (r ParentRef) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

// MediaAsset представляет загруженное изображение, принадлежащее сущности
type MediaAsset struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	ParentKind ParentKind `json:"parent_kind" db:"parent_kind"`
	ParentID   uuid.UUID  `json:"parent_id" db:"parent_id"`
	StorageKey string     `json:"-" db:"storage_key"`
	URL        string     `json:"url" db:"-"`
	AltText    string     `json:"alt_text,omitempty" db:"alt_text"`
	IsCover    bool       `json:"is_cover" db:"is_cover"`
	SortOrder  int        `json:"sort_order" db:"sort_order"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

func (m MediaAsset) Parent() ParentRef {
	return ParentRef{Kind: m.ParentKind, ID: m.ParentID}
}

// NewAsset описывает уже записанный в хранилище файл, для которого еще нет строки в БД
type NewAsset struct {
	StorageKey string
	AltText    string
}

// MediaUpdate содержит изменяемые поля метаданных медиа
type MediaUpdate struct {
	AltText   *string
	SortOrder *int
	IsCover   *bool
}

func (u MediaUpdate) Empty() bool {
	return u.AltText == nil && u.SortOrder == nil && u.IsCover == nil
}

// CoverCount возвращает количество обложек в наборе
func CoverCount(assets []MediaAsset) int {
	n := 0
	for _, a := range assets {
		if a.IsCover {
			n++
		}
	}

	return n
}
