package service

import (
	"context"

	"bookcatalog/internal/domains/lookup/model"
	"bookcatalog/internal/domains/lookup/repository"
	"bookcatalog/pkg/logger"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type lookupService struct {
	repo repository.RepositoryInterface
}

func NewLookupService(repo repository.RepositoryInterface) ServiceInterface {
	return &lookupService{repo: repo}
}

func (s *lookupService) Upsert(ctx context.Context, kind model.Kind, name string) (*model.Lookup, error) {
	if !kind.IsValid() {
		return nil, model.NewInvalidKind(string(kind))
	}

	normalized := model.NormalizeName(name)
	if normalized == "" {
		return nil, model.NewBlankName(kind)
	}

	l, err := s.repo.Upsert(ctx, kind, normalized)
	if err != nil {
		return nil, err
	}

	logger.Debug("[LOOKUP] Upserted", map[string]interface{}{
		"kind": kind,
		"id":   l.ID,
		"name": l.Name,
	})
	return l, nil
}

func (s *lookupService) Resolve(ctx context.Context, kind model.Kind, name *string) (*int32, error) {
	if name == nil || model.NormalizeName(*name) == "" {
		return nil, nil
	}

	l, err := s.Upsert(ctx, kind, *name)
	if err != nil {
		return nil, err
	}
	return &l.ID, nil
}

func (s *lookupService) GetByID(ctx context.Context, kind model.Kind, id int32) (*model.Lookup, error) {
	if !kind.IsValid() {
		return nil, model.NewInvalidKind(string(kind))
	}
	if id <= 0 {
		return nil, model.NewLookupNotFound(kind, id)
	}
	return s.repo.GetByID(ctx, kind, id)
}

func (s *lookupService) GetByName(ctx context.Context, kind model.Kind, name string) (*model.Lookup, error) {
	if !kind.IsValid() {
		return nil, model.NewInvalidKind(string(kind))
	}

	normalized := model.NormalizeName(name)
	if normalized == "" {
		return nil, model.NewLookupNotFound(kind, name)
	}
	return s.repo.GetByName(ctx, kind, normalized)
}

func (s *lookupService) List(ctx context.Context, kind model.Kind, offset, limit int) (*ListResult, error) {
	if !kind.IsValid() {
		return nil, model.NewInvalidKind(string(kind))
	}
	if offset < 0 || limit < 0 {
		return nil, model.ErrInvalidPageParams
	}
	if limit == 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	items, total, err := s.repo.List(ctx, kind, offset, limit)
	if err != nil {
		return nil, err
	}
	return &ListResult{Items: items, Total: total, Offset: offset, Limit: limit}, nil
}

func (s *lookupService) Search(ctx context.Context, kind model.Kind, query string, limit int) ([]model.ScoredLookup, error) {
	if !kind.IsValid() {
		return nil, model.NewInvalidKind(string(kind))
	}

	query = model.NormalizeName(query)
	if query == "" {
		return []model.ScoredLookup{}, nil
	}
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	return s.repo.Search(ctx, kind, query, limit)
}

func (s *lookupService) Delete(ctx context.Context, kind model.Kind, id int32) error {
	if !kind.IsValid() {
		return model.NewInvalidKind(string(kind))
	}
	if err := s.repo.Delete(ctx, kind, id); err != nil {
		return err
	}

	logger.Info("[LOOKUP] Deleted", map[string]interface{}{"kind": kind, "id": id})
	return nil
}
