package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SearchMode chọn cách match text
type SearchMode string

const (
	SearchFuzzy     SearchMode = "fuzzy"     // pg_trgm word similarity
	SearchSubstring SearchMode = "substring" // ILIKE '%q%'
	SearchExact     SearchMode = "exact"     // lower(title) = lower(q)
)

// ParseSearchMode: chuỗi rỗng là fuzzy
func ParseSearchMode(s string) (SearchMode, error) {
	switch m := SearchMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return SearchFuzzy, nil
	case SearchFuzzy, SearchSubstring, SearchExact:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSearchMode, s)
}

// SearchField là cột text được search
type SearchField string

const (
	FieldTitleText       SearchField = "title"
	FieldNameText        SearchField = "name"
	FieldDescriptionText SearchField = "description"
	FieldMetadataText    SearchField = "metadata"
)

// DefaultSearchFields - tất cả các cột có trigram index
var DefaultSearchFields = []SearchField{
	FieldTitleText, FieldNameText, FieldDescriptionText, FieldMetadataText,
}

func ParseSearchField(s string) (SearchField, error) {
	switch f := SearchField(strings.ToLower(strings.TrimSpace(s))); f {
	case FieldTitleText, FieldNameText, FieldDescriptionText, FieldMetadataText:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSearchField, s)
}

// SearchFilters - tất cả optional, kết hợp bằng AND
type SearchFilters struct {
	PublisherID *int32 `json:"publisher_id,omitempty"`
	GenreID     *int32 `json:"genre_id,omitempty"`
	LanguageID  *int32 `json:"language_id,omitempty"`
	FormatID    *int32 `json:"format_id,omitempty"`

	// Authors: book phải chứa tất cả
	Authors []string `json:"authors,omitempty"`

	// MetadataContains: metadata @> object
	MetadataContains Metadata `json:"metadata_contains,omitempty"`
	// MetadataPath + MetadataValue: metadata @@ '$."a"."b" == value'
	MetadataPath  []string `json:"metadata_path,omitempty"`
	MetadataValue any      `json:"metadata_value,omitempty"`

	PublishedFrom *time.Time       `json:"published_from,omitempty"`
	PublishedTo   *time.Time       `json:"published_to,omitempty"`
	PriceMin      *decimal.Decimal `json:"price_min,omitempty"`
	PriceMax      *decimal.Decimal `json:"price_max,omitempty"`
}

// SearchQuery là input của Search. Text rỗng nghĩa là chỉ lọc theo filters.
type SearchQuery struct {
	Text      string        `json:"text"`
	Mode      SearchMode    `json:"mode"`
	Fields    []SearchField `json:"fields,omitempty"`
	Threshold float64       `json:"threshold,omitempty"`
	Filters   SearchFilters `json:"filters"`
	Limit     int           `json:"limit"`
	Offset    int           `json:"offset"`
}

// HasText reports whether the query ranks by text match.
func (q *SearchQuery) HasText() bool {
	return q.Text != ""
}

// Normalize điền giá trị mặc định và kiểm tra tham số
func (q *SearchQuery) Normalize(defaultLimit, maxLimit int, defaultThreshold float64) error {
	q.Text = CollapseSpace(q.Text)

	mode, err := ParseSearchMode(string(q.Mode))
	if err != nil {
		return err
	}
	q.Mode = mode
	if q.Mode == SearchExact && q.Text == "" {
		return ErrEmptyExactQuery
	}

	if q.Mode == SearchExact {
		q.Fields = []SearchField{FieldTitleText}
	} else if len(q.Fields) == 0 {
		q.Fields = append([]SearchField(nil), DefaultSearchFields...)
	} else {
		seen := make(map[SearchField]bool, len(q.Fields))
		fields := make([]SearchField, 0, len(q.Fields))
		for _, f := range q.Fields {
			pf, err := ParseSearchField(string(f))
			if err != nil {
				return err
			}
			if !seen[pf] {
				seen[pf] = true
				fields = append(fields, pf)
			}
		}
		q.Fields = fields
	}

	if q.Threshold == 0 {
		q.Threshold = defaultThreshold
	}
	if q.Threshold <= 0 || q.Threshold > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, q.Threshold)
	}

	if q.Limit < 0 || q.Offset < 0 {
		return ErrInvalidPageLimit
	}
	if q.Limit == 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}

	return q.Filters.normalize()
}

func (f *SearchFilters) normalize() error {
	if f.Authors != nil {
		f.Authors = CleanAuthors(f.Authors)
		if len(f.Authors) == 0 {
			f.Authors = nil
		}
	}
	if f.PriceMin != nil && f.PriceMax != nil && f.PriceMin.GreaterThan(*f.PriceMax) {
		return ErrInvalidPriceRange
	}
	if f.PublishedFrom != nil && f.PublishedTo != nil && f.PublishedFrom.After(*f.PublishedTo) {
		return ErrInvalidDateRange
	}
	if len(f.MetadataPath) > 0 || f.MetadataValue != nil {
		if _, err := f.MetadataPathExpr(); err != nil {
			return err
		}
	}
	return nil
}

// MetadataPathExpr builds the jsonpath predicate for MetadataPath and
// MetadataValue, e.g. `$."edition"."year" == 1999`.
func (f *SearchFilters) MetadataPathExpr() (string, error) {
	if len(f.MetadataPath) == 0 || f.MetadataValue == nil {
		return "", ErrInvalidMetadataPath
	}

	var sb strings.Builder
	sb.WriteByte('$')
	for _, key := range f.MetadataPath {
		if key == "" {
			return "", ErrInvalidMetadataPath
		}
		sb.WriteByte('.')
		sb.WriteString(jsonLiteral(key))
	}
	sb.WriteString(" == ")

	switch v := f.MetadataValue.(type) {
	case string:
		sb.WriteString(jsonLiteral(v))
	case bool:
		fmt.Fprintf(&sb, "%t", v)
	case json.Number:
		if _, err := v.Float64(); err != nil {
			return "", ErrInvalidMetadataPath
		}
		sb.WriteString(v.String())
	case int, int32, int64:
		fmt.Fprintf(&sb, "%d", v)
	case float64:
		sb.WriteString(decimal.NewFromFloat(v).String())
	default:
		return "", ErrInvalidMetadataPath
	}
	return sb.String(), nil
}

// jsonLiteral quotes s as a JSON string without HTML escaping.
func jsonLiteral(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}
