package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"bookcatalog/internal/domains/book/model"
	"bookcatalog/internal/shared/utils"
	pkgdb "bookcatalog/pkg/database"
)

// searchFieldExpr - biểu thức SQL mà trigram index được build trên đó
var searchFieldExpr = map[model.SearchField]string{
	model.FieldTitleText:       "b.title",
	model.FieldNameText:        "b.name",
	model.FieldDescriptionText: "b.description",
	model.FieldMetadataText:    "jsonb_values_to_text(b.metadata)",
}

// searchSQL là kết quả của buildSearchQuery
type searchSQL struct {
	where   string
	score   string
	orderBy string
	args    utils.Args
}

func (s *searchSQL) selectQuery(limit, offset int) (string, []any) {
	args := s.args
	query := fmt.Sprintf(`
		SELECT %s,
		       %s AS score,
		       count(*) OVER () AS total
		FROM books b
		%s
		ORDER BY %s
		LIMIT %s OFFSET %s`,
		bookColumns, s.score, s.where, s.orderBy, args.Add(limit), args.Add(offset))
	return query, args.Values()
}

func (s *searchSQL) countQuery() (string, []any) {
	return `SELECT count(*) FROM books b ` + s.where, s.args.Values()
}

// buildSearchQuery dựng WHERE/score/ORDER BY từ một query đã Normalize
func buildSearchQuery(q model.SearchQuery) (*searchSQL, error) {
	s := &searchSQL{
		score:   "0::float8",
		orderBy: "b.updated_at DESC, b.entity_id DESC",
	}
	var conditions []string

	if q.HasText() {
		var matches, scores []string
		switch q.Mode {
		case model.SearchExact:
			conditions = append(conditions, fmt.Sprintf("lower(b.title) = lower(%s)", s.args.Add(q.Text)))
			s.score = "1::float8"
		case model.SearchSubstring:
			text := s.args.Add(q.Text)
			pattern := s.args.Add(utils.ContainsPattern(q.Text))
			for _, f := range q.Fields {
				expr := searchFieldExpr[f]
				matches = append(matches, fmt.Sprintf("%s ILIKE %s", expr, pattern))
				scores = append(scores, fmt.Sprintf("similarity(%s, %s)", expr, text))
			}
		default:
			// <% dùng pg_trgm.word_similarity_threshold, được set trong SearchBooks
			text := s.args.Add(q.Text)
			for _, f := range q.Fields {
				expr := searchFieldExpr[f]
				matches = append(matches, fmt.Sprintf("%s <%% %s", text, expr))
				scores = append(scores, fmt.Sprintf("word_similarity(%s, %s)", text, expr))
			}
		}
		if len(matches) > 0 {
			conditions = append(conditions, "("+utils.JoinWithOr(matches)+")")
			s.score = fmt.Sprintf("COALESCE(GREATEST(%s), 0)::float8", strings.Join(scores, ", "))
		}
		s.orderBy = "score DESC, b.entity_id DESC"
	}

	filters, err := buildFilterConditions(q.Filters, &s.args)
	if err != nil {
		return nil, err
	}
	conditions = append(conditions, filters...)

	if len(conditions) > 0 {
		s.where = "WHERE " + utils.JoinWithAnd(conditions)
	}
	return s, nil
}

func buildFilterConditions(f model.SearchFilters, args *utils.Args) ([]string, error) {
	var conditions []string

	for _, fk := range []struct {
		column string
		id     *int32
	}{
		{"b.publisher_id", f.PublisherID},
		{"b.genre_id", f.GenreID},
		{"b.language_id", f.LanguageID},
		{"b.format_id", f.FormatID},
	} {
		if fk.id != nil {
			conditions = append(conditions, fmt.Sprintf("%s = %s", fk.column, args.Add(*fk.id)))
		}
	}

	if len(f.Authors) > 0 {
		conditions = append(conditions, fmt.Sprintf("b.authors @> %s::text[]", args.Add(f.Authors)))
	}

	if f.MetadataContains != nil {
		doc, err := f.MetadataContains.SQLArg()
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, fmt.Sprintf("b.metadata @> %s::jsonb", args.Add(doc)))
	}

	if len(f.MetadataPath) > 0 {
		expr, err := f.MetadataPathExpr()
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, fmt.Sprintf("b.metadata @@ %s::jsonpath", args.Add(expr)))
	}

	if f.PublishedFrom != nil {
		conditions = append(conditions, fmt.Sprintf("b.publication_date >= %s::date", args.Add(*f.PublishedFrom)))
	}
	if f.PublishedTo != nil {
		conditions = append(conditions, fmt.Sprintf("b.publication_date <= %s::date", args.Add(*f.PublishedTo)))
	}
	if f.PriceMin != nil {
		conditions = append(conditions, fmt.Sprintf("b.price >= %s", args.Add(*f.PriceMin)))
	}
	if f.PriceMax != nil {
		conditions = append(conditions, fmt.Sprintf("b.price <= %s", args.Add(*f.PriceMax)))
	}

	return conditions, nil
}

// ========================= SEARCH BOOK =====================

// SearchBooks chạy trong READ ONLY transaction để set_config(..., true)
// chỉ áp dụng cho query này. q phải đã qua Normalize.
func (r *postgresRepository) SearchBooks(ctx context.Context, q model.SearchQuery) (*model.SearchResult, error) {
	built, err := buildSearchQuery(q)
	if err != nil {
		return nil, err
	}
	query, args := built.selectQuery(q.Limit, q.Offset)

	result := &model.SearchResult{Books: make([]model.ScoredBook, 0, q.Limit)}
	err = pkgdb.WithReadOnlyTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		if q.HasText() && q.Mode == model.SearchFuzzy {
			threshold := strconv.FormatFloat(q.Threshold, 'f', -1, 64)
			if _, err := tx.Exec(ctx, `SELECT set_config('pg_trgm.word_similarity_threshold', $1, true)`, threshold); err != nil {
				return fmt.Errorf("set similarity threshold: %w", err)
			}
		}

		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("search query failed: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var score float64
			b, err := scanBook(rows, &score, &result.Total)
			if err != nil {
				return fmt.Errorf("scan search row: %w", err)
			}
			result.Books = append(result.Books, model.ScoredBook{Book: *b, Score: score})
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}

		// Offset vượt quá số kết quả: đếm riêng
		if len(result.Books) == 0 && q.Offset > 0 {
			countQuery, countArgs := built.countQuery()
			if err := tx.QueryRow(ctx, countQuery, countArgs...).Scan(&result.Total); err != nil {
				return fmt.Errorf("count search results: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
