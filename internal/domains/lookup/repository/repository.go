package repository

import (
	"context"

	"bookcatalog/internal/domains/lookup/model"
)

// RepositoryInterface - data access cho 4 lookup tables
type RepositoryInterface interface {
	// Upsert trả về row có name này, tạo mới nếu chưa có
	Upsert(ctx context.Context, kind model.Kind, name string) (*model.Lookup, error)
	GetByID(ctx context.Context, kind model.Kind, id int32) (*model.Lookup, error)
	GetByName(ctx context.Context, kind model.Kind, name string) (*model.Lookup, error)
	// List theo name ASC, trả về thêm total
	List(ctx context.Context, kind model.Kind, offset, limit int) ([]model.Lookup, int, error)
	Search(ctx context.Context, kind model.Kind, query string, limit int) ([]model.ScoredLookup, error)
	// Delete xóa row; books tham chiếu tới sẽ có FK = NULL
	Delete(ctx context.Context, kind model.Kind, id int32) error
}
