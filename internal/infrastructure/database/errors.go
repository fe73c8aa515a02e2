package database

import (
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"bookcatalog/internal/shared"
)

// SQLSTATE codes của class 23 (integrity constraint violation)
const (
	SQLStateNotNullViolation    = "23502"
	SQLStateForeignKeyViolation = "23503"
	SQLStateUniqueViolation     = "23505"
	SQLStateCheckViolation      = "23514"
)

// constraintFields maps named constraints to the column they guard.
var constraintFields = map[string]string{
	"books_isbn_key":                  "isbn",
	"books_uuid_key":                  "uuid",
	"books_pkey":                      "entity_id",
	"books_publisher_id_fkey":         "publisher_id",
	"books_genre_id_fkey":             "genre_id",
	"books_language_id_fkey":          "language_id",
	"books_format_id_fkey":            "format_id",
	"books_name_not_blank":            "name",
	"books_title_not_blank":           "title",
	"books_updated_after_created":     "updated_at",
	"books_last_edited_after_created": "last_edited_at",
	"books_metadata_is_object":        "metadata",
	"books_price_non_negative":        "price",
	"books_pages_positive":            "pages",
	"publishers_name_key":             "name",
	"genres_name_key":                 "name",
	"languages_name_key":              "name",
	"formats_name_key":                "name",
}

// "Key (isbn)=(978-...) already exists."
var detailKeyPattern = regexp.MustCompile(`Key \(([^)]+)\)`)

// ClassifyError chuyển *pgconn.PgError thành shared.ConstraintViolation.
// Lỗi khác được trả về nguyên vẹn.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	field := fieldFor(pgErr)
	switch pgErr.Code {
	case SQLStateUniqueViolation:
		return shared.NewUniqueViolation(pgErr.ConstraintName, field, err)
	case SQLStateForeignKeyViolation:
		return shared.NewForeignKeyViolation(pgErr.ConstraintName, field, err)
	case SQLStateCheckViolation:
		return shared.NewCheckViolation(pgErr.ConstraintName, field, conditionName(pgErr.Code)+" on "+field, err)
	case SQLStateNotNullViolation:
		rule := pgErr.TableName + "_" + pgErr.ColumnName + "_not_null"
		return shared.NewCheckViolation(rule, pgErr.ColumnName, pgErr.ColumnName+" must not be null", err)
	}

	return err
}

// IsSQLState reports whether err carries the given SQLSTATE.
func IsSQLState(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func fieldFor(pgErr *pgconn.PgError) string {
	if f, ok := constraintFields[pgErr.ConstraintName]; ok {
		return f
	}
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	if m := detailKeyPattern.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	return pgErr.ConstraintName
}

// conditionName trả về tên condition của SQLSTATE, vd "check_violation"
func conditionName(code string) string {
	name := pq.ErrorCode(code).Name()
	if name == "" {
		return code
	}
	return name
}
