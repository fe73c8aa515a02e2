package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bookcatalog/internal/domains/book/model"
)

// RepositoryInterface - Định nghĩa data access methods
type RepositoryInterface interface {
	CreateBook(ctx context.Context, book *model.Book) (*model.CreatedBook, error)
	GetBookByID(ctx context.Context, id int64) (*model.Book, error)
	GetBookByUUID(ctx context.Context, id uuid.UUID) (*model.Book, error)
	GetBooksByIDs(ctx context.Context, ids []int64) ([]model.Book, error)
	FindByTitle(ctx context.Context, title string, limit int) ([]model.Book, error)
	DeleteBook(ctx context.Context, id int64) error

	// Update flow: lock row, ghi, commit rồi mới invalidate cache
	GetBookByIDForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*model.Book, error)
	UpdateBookWithTx(ctx context.Context, tx pgx.Tx, book *model.Book, opts model.UpdateOptions) (*model.Book, error)
	InvalidateBook(ctx context.Context, id int64)

	SearchBooks(ctx context.Context, q model.SearchQuery) (*model.SearchResult, error)
	ListRecent(ctx context.Context, field model.RecentField, after *model.Cursor, limit int) ([]model.Book, error)
}
