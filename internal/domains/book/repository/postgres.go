package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bookcatalog/internal/domains/book/model"
	"bookcatalog/internal/infrastructure/database"
	"bookcatalog/internal/shared"
	"bookcatalog/pkg/cache"
	"bookcatalog/pkg/logger"
)

// bookColumns - thứ tự khớp với scanBook
const bookColumns = `
	b.entity_id, b.uuid, b.name, b.title, b.authors, b.isbn, b.publication_date,
	b.pages, b.price, b.description, b.cover_image_url, b.purchase_url,
	b.publisher_id, b.genre_id, b.language_id, b.format_id, b.metadata,
	b.created_at, b.updated_at, b.last_edited_at, b.edited_by_name`

// PostgresRepository - Raw SQL with pgxpool
type postgresRepository struct {
	pool     *pgxpool.Pool
	cache    cache.Cache
	cacheTTL time.Duration
}

// NewPostgresRepository - Constructor
func NewPostgresRepository(pool *pgxpool.Pool, c cache.Cache, cacheTTL time.Duration) RepositoryInterface {
	if c == nil {
		c = cache.NewNoopCache()
	}
	return &postgresRepository{
		pool:     pool,
		cache:    c,
		cacheTTL: cacheTTL,
	}
}

// scanBook đọc một row theo bookColumns; extra là các cột phía sau (score, total...)
func scanBook(row pgx.Row, extra ...any) (*model.Book, error) {
	var (
		b        model.Book
		metadata []byte
	)
	dest := []any{
		&b.EntityID, &b.UUID, &b.Name, &b.Title, (*[]string)(&b.Authors), &b.ISBN, &b.PublicationDate,
		&b.Pages, &b.Price, &b.Description, &b.CoverImageURL, &b.PurchaseURL,
		&b.PublisherID, &b.GenreID, &b.LanguageID, &b.FormatID, &metadata,
		&b.CreatedAt, &b.UpdatedAt, &b.LastEditedAt, &b.EditedByName,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	md, err := model.DecodeMetadata(metadata)
	if err != nil {
		return nil, err
	}
	b.Metadata = md
	if b.Authors == nil {
		b.Authors = []string{}
	}
	return &b, nil
}

func collectBooks(rows pgx.Rows) ([]model.Book, error) {
	defer rows.Close()

	books := make([]model.Book, 0)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return books, nil
}

// ============================================
// CREATE
// ============================================

// CreateBook - Insert book; DB gán entity_id, created_at, updated_at
// (và uuid nếu book.UUID là Nil).
func (r *postgresRepository) CreateBook(ctx context.Context, book *model.Book) (*model.CreatedBook, error) {
	query := `
		INSERT INTO books (
			uuid, name, title, authors, isbn, publication_date, pages, price,
			description, cover_image_url, purchase_url,
			publisher_id, genre_id, language_id, format_id, metadata
		) VALUES (
			COALESCE($1::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11,
			$12, $13, $14, $15, $16::jsonb
		)
		RETURNING entity_id, uuid
	`

	metadata, err := book.Metadata.SQLArg()
	if err != nil {
		return nil, err
	}

	var id *uuid.UUID
	if book.UUID != uuid.Nil {
		id = &book.UUID
	}

	created := &model.CreatedBook{}
	err = r.pool.QueryRow(ctx, query,
		id, book.Name, book.Title, []string(book.Authors), book.ISBN, book.PublicationDate, book.Pages, book.Price,
		book.Description, book.CoverImageURL, book.PurchaseURL,
		book.PublisherID, book.GenreID, book.LanguageID, book.FormatID, metadata,
	).Scan(&created.EntityID, &created.UUID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert book: %w", database.ClassifyError(err))
	}

	return created, nil
}

// ============================================
// READ
// ============================================

// GetBookByID - cache-aside theo entity_id
func (r *postgresRepository) GetBookByID(ctx context.Context, id int64) (*model.Book, error) {
	cacheKey := shared.BookCacheKey(id)

	var cached model.Book
	found, err := r.cache.Get(ctx, cacheKey, &cached)
	if err != nil {
		logger.Debug("[BOOK] Cache get failed", map[string]interface{}{"key": cacheKey, "error": err.Error()})
	}
	if found {
		return &cached, nil
	}

	query := `SELECT ` + bookColumns + ` FROM books b WHERE b.entity_id = $1`
	book, err := scanBook(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.NewBookNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}

	if err := r.cache.Set(ctx, cacheKey, book, r.cacheTTL); err != nil {
		logger.Warn("[BOOK] Cache set failed", map[string]interface{}{"key": cacheKey, "error": err.Error()})
	}
	return book, nil
}

func (r *postgresRepository) GetBookByUUID(ctx context.Context, id uuid.UUID) (*model.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books b WHERE b.uuid = $1`
	book, err := scanBook(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.NewBookNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return book, nil
}

// GetBooksByIDs trả về các book tồn tại theo thứ tự entity_id; id thiếu bị bỏ qua
func (r *postgresRepository) GetBooksByIDs(ctx context.Context, ids []int64) ([]model.Book, error) {
	if len(ids) == 0 {
		return []model.Book{}, nil
	}
	query := `SELECT ` + bookColumns + ` FROM books b WHERE b.entity_id = ANY($1) ORDER BY b.entity_id`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get books: %w", err)
	}
	return collectBooks(rows)
}

// FindByTitle - exact match không phân biệt hoa thường (books_title_lower_idx)
func (r *postgresRepository) FindByTitle(ctx context.Context, title string, limit int) ([]model.Book, error) {
	query := `SELECT ` + bookColumns + `
		FROM books b
		WHERE lower(b.title) = lower($1)
		ORDER BY b.entity_id
		LIMIT $2`
	rows, err := r.pool.Query(ctx, query, title, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find books by title: %w", err)
	}
	return collectBooks(rows)
}

// ============================================
// UPDATE
// ============================================

// GetBookByIDForUpdate - Get book với SELECT FOR UPDATE (lock row)
func (r *postgresRepository) GetBookByIDForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*model.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books b WHERE b.entity_id = $1 FOR UPDATE`

	book, err := scanBook(tx.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.NewBookNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock book: %w", err)
	}
	return book, nil
}

// UpdateBookWithTx ghi toàn bộ cột có thể sửa. updated_at mặc định là
// now(); last_edited_at là now() khi opts.TouchLastEdited.
func (r *postgresRepository) UpdateBookWithTx(ctx context.Context, tx pgx.Tx, book *model.Book, opts model.UpdateOptions) (*model.Book, error) {
	query := `
		UPDATE books AS b
		SET name = $2, title = $3, authors = $4, isbn = $5, publication_date = $6,
		    pages = $7, price = $8, description = $9, cover_image_url = $10, purchase_url = $11,
		    publisher_id = $12, genre_id = $13, language_id = $14, format_id = $15,
		    metadata = $16::jsonb,
		    updated_at = COALESCE($17::timestamptz, now()),
		    last_edited_at = CASE WHEN $18::boolean THEN now() ELSE $19::timestamptz END,
		    edited_by_name = $20
		WHERE b.entity_id = $1
		RETURNING ` + bookColumns

	metadata, err := book.Metadata.SQLArg()
	if err != nil {
		return nil, err
	}

	updated, err := scanBook(tx.QueryRow(ctx, query,
		book.EntityID, book.Name, book.Title, []string(book.Authors), book.ISBN, book.PublicationDate,
		book.Pages, book.Price, book.Description, book.CoverImageURL, book.PurchaseURL,
		book.PublisherID, book.GenreID, book.LanguageID, book.FormatID,
		metadata,
		opts.UpdatedAt,
		opts.TouchLastEdited, book.LastEditedAt,
		book.EditedByName,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.NewBookNotFound(book.EntityID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update book: %w", database.ClassifyError(err))
	}
	return updated, nil
}

// InvalidateBook xóa cache entry; gọi sau khi transaction đã commit
func (r *postgresRepository) InvalidateBook(ctx context.Context, id int64) {
	if err := r.cache.Delete(ctx, shared.BookCacheKey(id)); err != nil {
		logger.Warn("[BOOK] Cache invalidation failed", map[string]interface{}{
			"entity_id": id,
			"error":     err.Error(),
		})
	}
}

// ============================================
// DELETE
// ============================================

// DeleteBook xóa hẳn row; không có bảng nào tham chiếu books
func (r *postgresRepository) DeleteBook(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM books WHERE entity_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete book: %w", database.ClassifyError(err))
	}
	if tag.RowsAffected() == 0 {
		return model.NewBookNotFound(id)
	}

	r.InvalidateBook(ctx, id)
	return nil
}
