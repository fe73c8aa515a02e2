package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ========================================
// CREATE
// ========================================

// CreateBookRequest chứa dữ liệu để tạo book. Lookup phải được resolve
// thành id trước (xem lookup service).
type CreateBookRequest struct {
	UUID            *uuid.UUID       `json:"uuid,omitempty"`
	Name            string           `json:"name"`
	Title           string           `json:"title"`
	Authors         []string         `json:"authors"`
	ISBN            *string          `json:"isbn,omitempty"`
	PublicationDate *time.Time       `json:"publication_date,omitempty"`
	Pages           *int32           `json:"pages,omitempty"`
	Price           *decimal.Decimal `json:"price,omitempty"`
	Description     *string          `json:"description,omitempty"`
	CoverImageURL   *string          `json:"cover_image_url,omitempty"`
	PurchaseURL     *string          `json:"purchase_url,omitempty"`
	PublisherID     *int32           `json:"publisher_id,omitempty"`
	GenreID         *int32           `json:"genre_id,omitempty"`
	LanguageID      *int32           `json:"language_id,omitempty"`
	FormatID        *int32           `json:"format_id,omitempty"`
	Metadata        Metadata         `json:"metadata,omitempty"`
}

// ToBook chuyển request thành entity: gom whitespace của name/title thành
// một space (exact search so khớp dạng đã gom), name mặc định là title,
// authors không bao giờ nil.
func (r CreateBookRequest) ToBook() *Book {
	title := CollapseSpace(r.Title)
	name := CollapseSpace(r.Name)
	if name == "" {
		name = title
	}

	b := &Book{
		Name:            name,
		Title:           title,
		Authors:         CleanAuthors(r.Authors),
		ISBN:            trimmedOrNil(r.ISBN),
		PublicationDate: dateOnly(r.PublicationDate),
		Pages:           r.Pages,
		Price:           r.Price,
		Description:     r.Description,
		CoverImageURL:   trimmedOrNil(r.CoverImageURL),
		PurchaseURL:     trimmedOrNil(r.PurchaseURL),
		PublisherID:     r.PublisherID,
		GenreID:         r.GenreID,
		LanguageID:      r.LanguageID,
		FormatID:        r.FormatID,
		Metadata:        r.Metadata,
	}
	if r.UUID != nil {
		b.UUID = *r.UUID
	}
	return b
}

// CollapseSpace trims s and turns every whitespace run into one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CleanAuthors trims each author and drops blanks, keeping order.
func CleanAuthors(in []string) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		if a = CollapseSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

// dateOnly bỏ phần giờ vì cột publication_date là date
func dateOnly(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

// ========================================
// UPDATE
// ========================================

// Field là tên cột có thể clear (set NULL) qua BookPatch.Clear
type Field string

const (
	FieldISBN            Field = "isbn"
	FieldPublicationDate Field = "publication_date"
	FieldPages           Field = "pages"
	FieldPrice           Field = "price"
	FieldDescription     Field = "description"
	FieldCoverImageURL   Field = "cover_image_url"
	FieldPurchaseURL     Field = "purchase_url"
	FieldPublisherID     Field = "publisher_id"
	FieldGenreID         Field = "genre_id"
	FieldLanguageID      Field = "language_id"
	FieldFormatID        Field = "format_id"
	FieldMetadata        Field = "metadata"
	FieldLastEditedAt    Field = "last_edited_at"
	FieldEditedByName    Field = "edited_by_name"
)

// BookPatch mô tả một partial update. Field nil nghĩa là giữ nguyên.
type BookPatch struct {
	Name            *string          `json:"name,omitempty"`
	Title           *string          `json:"title,omitempty"`
	Authors         *[]string        `json:"authors,omitempty"`
	ISBN            *string          `json:"isbn,omitempty"`
	PublicationDate *time.Time       `json:"publication_date,omitempty"`
	Pages           *int32           `json:"pages,omitempty"`
	Price           *decimal.Decimal `json:"price,omitempty"`
	Description     *string          `json:"description,omitempty"`
	CoverImageURL   *string          `json:"cover_image_url,omitempty"`
	PurchaseURL     *string          `json:"purchase_url,omitempty"`
	PublisherID     *int32           `json:"publisher_id,omitempty"`
	GenreID         *int32           `json:"genre_id,omitempty"`
	LanguageID      *int32           `json:"language_id,omitempty"`
	FormatID        *int32           `json:"format_id,omitempty"`

	// Metadata thay toàn bộ object; MergeMetadata merge top-level keys,
	// key có value nil bị xóa.
	Metadata      *Metadata `json:"metadata,omitempty"`
	MergeMetadata Metadata  `json:"merge_metadata,omitempty"`

	// Clear set NULL cho các cột liệt kê, chạy sau các field ở trên
	Clear []Field `json:"clear,omitempty"`

	// UpdatedAt override giá trị mặc định now()
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	// LastEditedAt override; nếu nil và EditedBy != nil thì dùng now()
	LastEditedAt *time.Time `json:"last_edited_at,omitempty"`
	EditedBy     *string    `json:"edited_by,omitempty"`
}

// IsEmpty reports a patch that would only bump updated_at.
func (p *BookPatch) IsEmpty() bool {
	return p.Name == nil && p.Title == nil && p.Authors == nil && p.ISBN == nil &&
		p.PublicationDate == nil && p.Pages == nil && p.Price == nil &&
		p.Description == nil && p.CoverImageURL == nil && p.PurchaseURL == nil &&
		p.PublisherID == nil && p.GenreID == nil && p.LanguageID == nil && p.FormatID == nil &&
		p.Metadata == nil && p.MergeMetadata == nil && len(p.Clear) == 0 &&
		p.UpdatedAt == nil && p.LastEditedAt == nil && p.EditedBy == nil
}

// TouchLastEdited: repository set last_edited_at = now(). Chỉ khi có tên
// editor, để last_edited_at và edited_by_name luôn đi cùng nhau.
func (p *BookPatch) TouchLastEdited() bool {
	return p.EditedBy != nil && strings.TrimSpace(*p.EditedBy) != "" && p.LastEditedAt == nil
}

// Apply ghi patch lên b. Không validate; gọi ValidateBook sau đó.
// EditedBy rỗng trả về ErrBlankEditor; xóa editor dùng Clear.
func (p *BookPatch) Apply(b *Book) error {
	if p.EditedBy != nil && strings.TrimSpace(*p.EditedBy) == "" {
		return ErrBlankEditor
	}

	if p.Name != nil {
		b.Name = CollapseSpace(*p.Name)
	}
	if p.Title != nil {
		b.Title = CollapseSpace(*p.Title)
	}
	if p.Authors != nil {
		b.Authors = CleanAuthors(*p.Authors)
	}
	if p.ISBN != nil {
		b.ISBN = trimmedOrNil(p.ISBN)
	}
	if p.PublicationDate != nil {
		b.PublicationDate = dateOnly(p.PublicationDate)
	}
	if p.Pages != nil {
		b.Pages = p.Pages
	}
	if p.Price != nil {
		b.Price = p.Price
	}
	if p.Description != nil {
		b.Description = p.Description
	}
	if p.CoverImageURL != nil {
		b.CoverImageURL = trimmedOrNil(p.CoverImageURL)
	}
	if p.PurchaseURL != nil {
		b.PurchaseURL = trimmedOrNil(p.PurchaseURL)
	}
	if p.PublisherID != nil {
		b.PublisherID = p.PublisherID
	}
	if p.GenreID != nil {
		b.GenreID = p.GenreID
	}
	if p.LanguageID != nil {
		b.LanguageID = p.LanguageID
	}
	if p.FormatID != nil {
		b.FormatID = p.FormatID
	}

	if p.Metadata != nil {
		b.Metadata = p.Metadata.Clone()
	}
	if p.MergeMetadata != nil {
		merged := b.Metadata.Clone()
		if merged == nil {
			merged = Metadata{}
		}
		for k, v := range p.MergeMetadata {
			if v == nil {
				delete(merged, k)
				continue
			}
			merged[k] = v
		}
		b.Metadata = merged
	}

	if p.LastEditedAt != nil {
		t := *p.LastEditedAt
		b.LastEditedAt = &t
	}
	if p.EditedBy != nil {
		b.EditedByName = trimmedOrNil(p.EditedBy)
	}
	if p.UpdatedAt != nil {
		b.UpdatedAt = *p.UpdatedAt
	}

	for _, f := range p.Clear {
		if err := clearField(b, f); err != nil {
			return err
		}
	}
	return nil
}

func clearField(b *Book, f Field) error {
	switch f {
	case FieldISBN:
		b.ISBN = nil
	case FieldPublicationDate:
		b.PublicationDate = nil
	case FieldPages:
		b.Pages = nil
	case FieldPrice:
		b.Price = nil
	case FieldDescription:
		b.Description = nil
	case FieldCoverImageURL:
		b.CoverImageURL = nil
	case FieldPurchaseURL:
		b.PurchaseURL = nil
	case FieldPublisherID:
		b.PublisherID = nil
	case FieldGenreID:
		b.GenreID = nil
	case FieldLanguageID:
		b.LanguageID = nil
	case FieldFormatID:
		b.FormatID = nil
	case FieldMetadata:
		b.Metadata = nil
	case FieldLastEditedAt:
		b.LastEditedAt = nil
	case FieldEditedByName:
		b.EditedByName = nil
	default:
		return fmt.Errorf("%w: %s", ErrFieldNotClearable, f)
	}
	return nil
}

// UpdateOptions điều khiển các cột timestamp khi repository ghi update
type UpdateOptions struct {
	// UpdatedAt nil thì dùng now()
	UpdatedAt *time.Time
	// TouchLastEdited set last_edited_at = now() thay cho giá trị trong Book
	TouchLastEdited bool
}
