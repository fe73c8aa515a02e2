package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// DefaultBookName là name khi record không có cả title lẫn name
const DefaultBookName = "Untitled Book"

// Book represents one row of the books table
type Book struct {
	// Identity
	EntityID int64     `json:"entity_id" db:"entity_id"`
	UUID     uuid.UUID `json:"uuid" db:"uuid"`
	Name     string    `json:"name" db:"name"`
	Title    string    `json:"title" db:"title"`

	// Content
	Authors         pq.StringArray   `json:"authors" db:"authors"`
	ISBN            *string          `json:"isbn,omitempty" db:"isbn"`
	PublicationDate *time.Time       `json:"publication_date,omitempty" db:"publication_date"`
	Pages           *int32           `json:"pages,omitempty" db:"pages"`
	Price           *decimal.Decimal `json:"price,omitempty" db:"price"`
	Description     *string          `json:"description,omitempty" db:"description"`
	CoverImageURL   *string          `json:"cover_image_url,omitempty" db:"cover_image_url"`
	PurchaseURL     *string          `json:"purchase_url,omitempty" db:"purchase_url"`

	// Relationships (weak: NULL khi lookup row bị xóa)
	PublisherID *int32 `json:"publisher_id,omitempty" db:"publisher_id"`
	GenreID     *int32 `json:"genre_id,omitempty" db:"genre_id"`
	LanguageID  *int32 `json:"language_id,omitempty" db:"language_id"`
	FormatID    *int32 `json:"format_id,omitempty" db:"format_id"`

	// Open-ended attributes
	Metadata Metadata `json:"metadata,omitempty" db:"metadata"`

	// Timestamps
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	LastEditedAt *time.Time `json:"last_edited_at,omitempty" db:"last_edited_at"`
	EditedByName *string    `json:"edited_by_name,omitempty" db:"edited_by_name"`
}

// LookupIDs trả về 4 FK theo thứ tự publisher, genre, language, format
func (b *Book) LookupIDs() [4]*int32 {
	return [4]*int32{b.PublisherID, b.GenreID, b.LanguageID, b.FormatID}
}

// CreatedBook là kết quả của Create
type CreatedBook struct {
	EntityID int64     `json:"entity_id"`
	UUID     uuid.UUID `json:"uuid"`
}

// ScoredBook là Book kèm điểm rank của search
type ScoredBook struct {
	Book
	Score float64 `json:"score"`
}

// SearchResult là một trang kết quả search
type SearchResult struct {
	Books []ScoredBook `json:"books"`
	Total int          `json:"total"`
}

// RecentPage là một trang của ListRecent; NextCursor rỗng khi hết dữ liệu
type RecentPage struct {
	Books      []Book `json:"books"`
	NextCursor string `json:"next_cursor,omitempty"`
}
