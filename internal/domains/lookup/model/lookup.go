package model

import (
	"strings"
	"time"
)

// Kind xác định lookup table: publisher, genre, language, format
type Kind string

const (
	KindPublisher Kind = "publisher"
	KindGenre     Kind = "genre"
	KindLanguage  Kind = "language"
	KindFormat    Kind = "format"
)

// AllKinds theo thứ tự cột trong bảng books
func AllKinds() []Kind {
	return []Kind{KindPublisher, KindGenre, KindLanguage, KindFormat}
}

func (k Kind) IsValid() bool {
	switch k {
	case KindPublisher, KindGenre, KindLanguage, KindFormat:
		return true
	}
	return false
}

// Table trả về tên bảng, vd "publishers"
func (k Kind) Table() string {
	return string(k) + "s"
}

// IDColumn trả về tên cột khóa chính, cũng là tên FK trong books
func (k Kind) IDColumn() string {
	return string(k) + "_id"
}

// ParseKind accepts singular or plural, any case.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	k := Kind(strings.TrimSuffix(s, "s"))
	if !k.IsValid() {
		return "", NewInvalidKind(s)
	}
	return k, nil
}

// Lookup là một row trong publishers/genres/languages/formats
type Lookup struct {
	ID        int32     `json:"id"`
	Kind      Kind      `json:"kind"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ScoredLookup là kết quả Search kèm trigram similarity
type ScoredLookup struct {
	Lookup
	Score float64 `json:"score"`
}

// NormalizeName trims and collapses internal whitespace runs to one space.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
