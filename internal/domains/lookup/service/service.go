package service

import (
	"context"

	"bookcatalog/internal/domains/lookup/model"
)

// ServiceInterface - business logic cho lookup tables
type ServiceInterface interface {
	Upsert(ctx context.Context, kind model.Kind, name string) (*model.Lookup, error)
	// Resolve trả về nil khi name nil hoặc rỗng, ngược lại Upsert và trả về id
	Resolve(ctx context.Context, kind model.Kind, name *string) (*int32, error)
	GetByID(ctx context.Context, kind model.Kind, id int32) (*model.Lookup, error)
	GetByName(ctx context.Context, kind model.Kind, name string) (*model.Lookup, error)
	List(ctx context.Context, kind model.Kind, offset, limit int) (*ListResult, error)
	Search(ctx context.Context, kind model.Kind, query string, limit int) ([]model.ScoredLookup, error)
	Delete(ctx context.Context, kind model.Kind, id int32) error
}

// ListResult là một trang của List
type ListResult struct {
	Items  []model.Lookup `json:"items"`
	Total  int            `json:"total"`
	Offset int            `json:"offset"`
	Limit  int            `json:"limit"`
}
