package models

import (
	"time"

	"github.com/google/uuid"
)

// Article представляет редакционную статью
type Article struct {
	ID        uuid.UUID    `db:"id" json:"id"`
	Title     string       `db:"title" json:"title"`
	Content   string       `db:"content" json:"content"`
	Published bool         `db:"published" json:"published"`
	Media     []MediaAsset `json:"media"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
}

func (a Article) Ref() ParentRef {
	return ParentRef{Kind: ParentArticle, ID: a.ID}
}
