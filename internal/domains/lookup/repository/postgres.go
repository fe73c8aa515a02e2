package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bookcatalog/internal/domains/lookup/model"
	"bookcatalog/internal/infrastructure/database"
	"bookcatalog/internal/shared"
	"bookcatalog/internal/shared/utils"
	"bookcatalog/pkg/cache"
	"bookcatalog/pkg/logger"
)

// postgresRepository implements RepositoryInterface
type postgresRepository struct {
	pool     *pgxpool.Pool
	cache    cache.Cache
	cacheTTL time.Duration
}

// NewPostgresRepository creates a new lookup repository instance
func NewPostgresRepository(pool *pgxpool.Pool, c cache.Cache, cacheTTL time.Duration) RepositoryInterface {
	if c == nil {
		c = cache.NewNoopCache()
	}
	return &postgresRepository{pool: pool, cache: c, cacheTTL: cacheTTL}
}

// Upsert dùng ON CONFLICT DO UPDATE (không phải DO NOTHING) để RETURNING
// luôn trả về row, kể cả khi một transaction khác vừa insert cùng name.
func (r *postgresRepository) Upsert(ctx context.Context, kind model.Kind, name string) (*model.Lookup, error) {
	if !kind.IsValid() {
		return nil, model.NewInvalidKind(string(kind))
	}

	if l, ok := r.fromCache(ctx, shared.LookupNameCacheKey(string(kind), name)); ok {
		return l, nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %[1]s (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING %[2]s, name, created_at`,
		kind.Table(), kind.IDColumn(),
	)

	l := &model.Lookup{Kind: kind}
	if err := r.pool.QueryRow(ctx, query, name).Scan(&l.ID, &l.Name, &l.CreatedAt); err != nil {
		return nil, fmt.Errorf("upsert %s: %w", kind, database.ClassifyError(err))
	}

	r.store(ctx, l)
	return l, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, kind model.Kind, id int32) (*model.Lookup, error) {
	if !kind.IsValid() {
		return nil, model.NewInvalidKind(string(kind))
	}

	if l, ok := r.fromCache(ctx, shared.LookupIDCacheKey(string(kind), id)); ok {
		return l, nil
	}

	query := fmt.Sprintf(`SELECT %s, name, created_at FROM %s WHERE %[1]s = $1`,
		kind.IDColumn(), kind.Table())

	l := &model.Lookup{Kind: kind}
	err := r.pool.QueryRow(ctx, query, id).Scan(&l.ID, &l.Name, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.NewLookupNotFound(kind, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %d: %w", kind, id, err)
	}

	r.store(ctx, l)
	return l, nil
}

func (r *postgresRepository) GetByName(ctx context.Context, kind model.Kind, name string) (*model.Lookup, error) {
	if !kind.IsValid() {
		return nil, model.NewInvalidKind(string(kind))
	}

	if l, ok := r.fromCache(ctx, shared.LookupNameCacheKey(string(kind), name)); ok {
		return l, nil
	}

	query := fmt.Sprintf(`SELECT %s, name, created_at FROM %s WHERE name = $1`,
		kind.IDColumn(), kind.Table())

	l := &model.Lookup{Kind: kind}
	err := r.pool.QueryRow(ctx, query, name).Scan(&l.ID, &l.Name, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.NewLookupNotFound(kind, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %q: %w", kind, name, err)
	}

	r.store(ctx, l)
	return l, nil
}

func (r *postgresRepository) List(ctx context.Context, kind model.Kind, offset, limit int) ([]model.Lookup, int, error) {
	if !kind.IsValid() {
		return nil, 0, model.NewInvalidKind(string(kind))
	}

	query := fmt.Sprintf(`
		SELECT %s, name, created_at, count(*) OVER () AS total
		FROM %s
		ORDER BY name ASC, %[1]s ASC
		OFFSET $1 LIMIT $2`,
		kind.IDColumn(), kind.Table(),
	)

	rows, err := r.pool.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	items := make([]model.Lookup, 0, limit)
	total := 0
	for rows.Next() {
		l := model.Lookup{Kind: kind}
		if err := rows.Scan(&l.ID, &l.Name, &l.CreatedAt, &total); err != nil {
			return nil, 0, fmt.Errorf("scan %s: %w", kind, err)
		}
		items = append(items, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", kind, err)
	}

	// Trang rỗng vì offset vượt quá: count(*) OVER () không có row để trả về
	if len(items) == 0 && offset > 0 {
		countQuery := fmt.Sprintf(`SELECT count(*) FROM %s`, kind.Table())
		if err := r.pool.QueryRow(ctx, countQuery).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count %s: %w", kind, err)
		}
	}

	return items, total, nil
}

// Search xếp hạng theo trigram similarity, cộng thêm substring match để
// tên ngắn như "DAW" vẫn tìm được bằng "daw books".
func (r *postgresRepository) Search(ctx context.Context, kind model.Kind, q string, limit int) ([]model.ScoredLookup, error) {
	if !kind.IsValid() {
		return nil, model.NewInvalidKind(string(kind))
	}

	query := fmt.Sprintf(`
		SELECT %s, name, created_at, similarity(name, $1)::float8 AS score
		FROM %s
		WHERE name %% $1 OR name ILIKE $2
		ORDER BY score DESC, %[1]s ASC
		LIMIT $3`,
		kind.IDColumn(), kind.Table(),
	)

	rows, err := r.pool.Query(ctx, query, q, utils.ContainsPattern(q), limit)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", kind, err)
	}
	defer rows.Close()

	items := make([]model.ScoredLookup, 0, limit)
	for rows.Next() {
		s := model.ScoredLookup{Lookup: model.Lookup{Kind: kind}}
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedAt, &s.Score); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *postgresRepository) Delete(ctx context.Context, kind model.Kind, id int32) error {
	if !kind.IsValid() {
		return model.NewInvalidKind(string(kind))
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, kind.Table(), kind.IDColumn())
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete %s %d: %w", kind, id, database.ClassifyError(err))
	}
	if tag.RowsAffected() == 0 {
		return model.NewLookupNotFound(kind, id)
	}

	// ON DELETE SET NULL đã đổi các book tham chiếu, xóa luôn book cache
	if err := r.cache.DeletePattern(ctx, shared.LookupCachePattern(string(kind))); err != nil {
		logger.Warn("[LOOKUP] Cache invalidation failed", map[string]interface{}{"error": err.Error()})
	}
	if err := r.cache.DeletePattern(ctx, shared.BookCachePattern); err != nil {
		logger.Warn("[LOOKUP] Book cache invalidation failed", map[string]interface{}{"error": err.Error()})
	}
	return nil
}

// ========================================
// CACHE HELPERS
// ========================================

func (r *postgresRepository) fromCache(ctx context.Context, key string) (*model.Lookup, bool) {
	var l model.Lookup
	found, err := r.cache.Get(ctx, key, &l)
	if err != nil {
		logger.Debug("[LOOKUP] Cache get failed", map[string]interface{}{"key": key, "error": err.Error()})
		return nil, false
	}
	if !found {
		return nil, false
	}
	return &l, true
}

func (r *postgresRepository) store(ctx context.Context, l *model.Lookup) {
	for _, key := range []string{
		shared.LookupIDCacheKey(string(l.Kind), l.ID),
		shared.LookupNameCacheKey(string(l.Kind), l.Name),
	} {
		if err := r.cache.Set(ctx, key, l, r.cacheTTL); err != nil {
			logger.Debug("[LOOKUP] Cache set failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}
}
