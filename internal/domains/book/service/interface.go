package service

import (
	"context"
	"io"

	"github.com/google/uuid"

	"bookcatalog/internal/domains/book/model"
)

// ServiceInterface - Định nghĩa business logic methods
type ServiceInterface interface {
	Create(ctx context.Context, req model.CreateBookRequest) (*model.CreatedBook, error)
	Get(ctx context.Context, id int64) (*model.Book, error)
	GetByUUID(ctx context.Context, id uuid.UUID) (*model.Book, error)
	GetMany(ctx context.Context, ids []int64) ([]model.Book, error)
	FindByTitle(ctx context.Context, title string) ([]model.Book, error)
	Update(ctx context.Context, id int64, patch model.BookPatch) (*model.Book, error)
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, q model.SearchQuery) (*model.SearchResult, error)
	ListRecent(ctx context.Context, q model.RecentQuery) (*model.RecentPage, error)
}

// ImportServiceInterface - import một collection book từ file
type ImportServiceInterface interface {
	Import(ctx context.Context, r io.Reader, format model.ImportFormat) (*model.ImportReport, error)
}

// Settings - giới hạn cho search và listing
type Settings struct {
	DefaultLimit        int
	MaxLimit            int
	SimilarityThreshold float64
}

// DefaultSettings khớp với giá trị mặc định của config
func DefaultSettings() Settings {
	return Settings{DefaultLimit: 20, MaxLimit: 100, SimilarityThreshold: 0.3}
}
