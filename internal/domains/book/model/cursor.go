package model

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RecentField là cột timestamp dùng cho keyset pagination
type RecentField string

const (
	RecentCreated   RecentField = "created_at"
	RecentUpdated   RecentField = "updated_at"
	RecentPublished RecentField = "publication_date"
	RecentEdited    RecentField = "last_edited_at"
)

func ParseRecentField(s string) (RecentField, error) {
	switch f := RecentField(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return RecentUpdated, nil
	case RecentCreated, RecentUpdated, RecentPublished, RecentEdited:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRecentField, s)
}

// Value trả về giá trị của field trên book (nil với cột nullable chưa set)
func (f RecentField) Value(b *Book) *time.Time {
	switch f {
	case RecentCreated:
		return &b.CreatedAt
	case RecentUpdated:
		return &b.UpdatedAt
	case RecentPublished:
		return b.PublicationDate
	case RecentEdited:
		return b.LastEditedAt
	}
	return nil
}

// RecentQuery là input của ListRecent
type RecentQuery struct {
	Field  RecentField `json:"field"`
	Limit  int         `json:"limit"`
	Cursor string      `json:"cursor,omitempty"`
}

func (q *RecentQuery) Normalize(defaultLimit, maxLimit int) error {
	field, err := ParseRecentField(string(q.Field))
	if err != nil {
		return err
	}
	q.Field = field

	if q.Limit < 0 {
		return ErrInvalidPageLimit
	}
	if q.Limit == 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return nil
}

// Cursor là vị trí (value, entity_id) của row cuối cùng đã trả về
type Cursor struct {
	Field RecentField `json:"f"`
	At    time.Time   `json:"t"`
	ID    int64       `json:"id"`
}

// EncodeCursor trả về chuỗi opaque (base64url của JSON)
func EncodeCursor(c Cursor) string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor rejects garbage and cursors issued for another field.
func DecodeCursor(s string, field RecentField) (*Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if c.Field != field || c.ID <= 0 || c.At.IsZero() {
		return nil, ErrInvalidCursor
	}
	return &c, nil
}

// NextCursor cho trang tiếp theo, bắt đầu sau last
func NextCursor(field RecentField, last *Book) string {
	at := field.Value(last)
	if at == nil {
		return ""
	}
	return EncodeCursor(Cursor{Field: field, At: *at, ID: last.EntityID})
}
