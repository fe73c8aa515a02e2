package model

import (
	"errors"

	"bookcatalog/internal/shared"
)

var (
	ErrInvalidSearchMode       = errors.New("search mode must be fuzzy, substring or exact")
	ErrInvalidSearchField      = errors.New("search field must be title, name, description or metadata")
	ErrInvalidThreshold        = errors.New("similarity threshold must be in (0, 1]")
	ErrInvalidPageLimit        = errors.New("limit and offset must not be negative")
	ErrEmptyExactQuery         = errors.New("exact search needs a query")
	ErrInvalidPriceRange       = errors.New("price_min must be <= price_max")
	ErrInvalidDateRange        = errors.New("published_from must be <= published_to")
	ErrInvalidMetadataPath     = errors.New("metadata path needs at least one key and a scalar value")
	ErrInvalidRecentField      = errors.New("recent field must be created_at, updated_at, publication_date or last_edited_at")
	ErrInvalidCursor           = errors.New("invalid pagination cursor")
	ErrFieldNotClearable       = errors.New("field cannot be cleared")
	ErrEmptyPatch              = errors.New("patch changes nothing")
	ErrBlankEditor             = errors.New("edited_by must not be blank")
	ErrUnsupportedImportFormat = errors.New("import format must be json, yaml, csv or xlsx")
	ErrUnrecognizedCollection  = errors.New(`import document is not a {"books": [...]} collection`)
)

// Rule names trùng với tên constraint trong schema để lỗi từ Go và từ
// PostgreSQL giống nhau.
const (
	RuleNameNotBlank        = "books_name_not_blank"
	RuleTitleNotBlank       = "books_title_not_blank"
	RuleUpdatedAfterCreated = "books_updated_after_created"
	RuleEditedAfterCreated  = "books_last_edited_after_created"
	RuleMetadataIsObject    = "books_metadata_is_object"
	RulePriceNonNegative    = "books_price_non_negative"
	RulePagesPositive       = "books_pages_positive"
	RuleISBNUnique          = "books_isbn_key"
	RuleUUIDUnique          = "books_uuid_key"
	RulePublisherForeignKey = "books_publisher_id_fkey"
	RuleGenreForeignKey     = "books_genre_id_fkey"
	RuleLanguageForeignKey  = "books_language_id_fkey"
	RuleFormatForeignKey    = "books_format_id_fkey"
)

// NewBookNotFound - book với id (entity_id hoặc uuid) không tồn tại
func NewBookNotFound(id any) error {
	return shared.NewNotFound("book", id)
}

// IsBookNotFound reports a NotFoundError for the book entity.
func IsBookNotFound(err error) bool {
	var nf *shared.NotFoundError
	return errors.As(err, &nf) && nf.Entity == "book"
}
