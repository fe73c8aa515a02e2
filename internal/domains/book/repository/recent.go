package repository

import (
	"context"
	"fmt"

	"bookcatalog/internal/domains/book/model"
	"bookcatalog/internal/shared/utils"
)

// recentFieldCast - kiểu SQL của cursor value để so sánh row-wise dùng index
var recentFieldCast = map[model.RecentField]string{
	model.RecentCreated:   "timestamptz",
	model.RecentUpdated:   "timestamptz",
	model.RecentPublished: "date",
	model.RecentEdited:    "timestamptz",
}

// recentNullable - cột nullable có index DESC NULLS LAST
var recentNullable = map[model.RecentField]bool{
	model.RecentPublished: true,
	model.RecentEdited:    true,
}

// buildRecentQuery: keyset pagination (field DESC, entity_id DESC).
// Lấy limit+1 row để biết còn trang sau hay không.
func buildRecentQuery(field model.RecentField, after *model.Cursor, limit int) (string, []any, error) {
	cast, ok := recentFieldCast[field]
	if !ok {
		return "", nil, model.ErrInvalidRecentField
	}

	var args utils.Args
	col := "b." + string(field)
	conditions := []string{col + " IS NOT NULL"}
	if after != nil {
		conditions = append(conditions, fmt.Sprintf("(%s, b.entity_id) < (%s::%s, %s)",
			col, args.Add(after.At), cast, args.Add(after.ID)))
	}

	order := col + " DESC"
	if recentNullable[field] {
		order += " NULLS LAST"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM books b
		WHERE %s
		ORDER BY %s, b.entity_id DESC
		LIMIT %s`,
		bookColumns, utils.JoinWithAnd(conditions), order, args.Add(limit+1))
	return query, args.Values(), nil
}

// ListRecent trả về tối đa limit+1 book; service cắt và tạo cursor
func (r *postgresRepository) ListRecent(ctx context.Context, field model.RecentField, after *model.Cursor, limit int) ([]model.Book, error) {
	query, args, err := buildRecentQuery(field, after, limit)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recent books: %w", err)
	}
	return collectBooks(rows)
}
