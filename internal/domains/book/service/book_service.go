package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bookcatalog/internal/domains/book/model"
	"bookcatalog/internal/domains/book/repository"
	pkgdb "bookcatalog/pkg/database"
	"bookcatalog/pkg/logger"
)

// BookService - Implements ServiceInterface
type BookService struct {
	repo     repository.RepositoryInterface
	db       pkgdb.TxBeginner
	settings Settings
}

// NewService - Constructor with DI. db mở transaction cho Update.
func NewService(repo repository.RepositoryInterface, db pkgdb.TxBeginner, settings Settings) ServiceInterface {
	defaults := DefaultSettings()
	if settings.DefaultLimit <= 0 {
		settings.DefaultLimit = defaults.DefaultLimit
	}
	if settings.MaxLimit <= 0 {
		settings.MaxLimit = defaults.MaxLimit
	}
	if settings.SimilarityThreshold <= 0 {
		settings.SimilarityThreshold = defaults.SimilarityThreshold
	}
	return &BookService{repo: repo, db: db, settings: settings}
}

// ============================================
// CREATE
// ============================================

// Create validate rồi insert; lỗi ràng buộc là *shared.ConstraintViolation
func (s *BookService) Create(ctx context.Context, req model.CreateBookRequest) (*model.CreatedBook, error) {
	book := req.ToBook()
	if err := model.ValidateBook(book); err != nil {
		return nil, err
	}

	created, err := s.repo.CreateBook(ctx, book)
	if err != nil {
		return nil, err
	}

	logger.Info("[BOOK] Created", map[string]interface{}{
		"entity_id": created.EntityID,
		"uuid":      created.UUID.String(),
		"title":     book.Title,
	})
	return created, nil
}

// ============================================
// READ
// ============================================

func (s *BookService) Get(ctx context.Context, id int64) (*model.Book, error) {
	if id <= 0 {
		return nil, model.NewBookNotFound(id)
	}
	return s.repo.GetBookByID(ctx, id)
}

func (s *BookService) GetByUUID(ctx context.Context, id uuid.UUID) (*model.Book, error) {
	if id == uuid.Nil {
		return nil, model.NewBookNotFound(id)
	}
	return s.repo.GetBookByUUID(ctx, id)
}

// GetMany bỏ qua id trùng hoặc không hợp lệ
func (s *BookService) GetMany(ctx context.Context, ids []int64) ([]model.Book, error) {
	seen := make(map[int64]bool, len(ids))
	unique := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id > 0 && !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	return s.repo.GetBooksByIDs(ctx, unique)
}

func (s *BookService) FindByTitle(ctx context.Context, title string) ([]model.Book, error) {
	title = model.CollapseSpace(title)
	if title == "" {
		return []model.Book{}, nil
	}
	return s.repo.FindByTitle(ctx, title, s.settings.MaxLimit)
}

// ============================================
// UPDATE
// ============================================

// Update lock row trong transaction, apply patch và kiểm tra lại invariants.
// Cache chỉ bị xóa sau khi commit.
func (s *BookService) Update(ctx context.Context, id int64, patch model.BookPatch) (*model.Book, error) {
	if patch.IsEmpty() {
		return nil, model.ErrEmptyPatch
	}
	if id <= 0 {
		return nil, model.NewBookNotFound(id)
	}

	updated, err := pkgdb.WithTransactionResult(ctx, s.db, func(tx pgx.Tx) (*model.Book, error) {
		current, err := s.repo.GetBookByIDForUpdate(ctx, tx, id)
		if err != nil {
			return nil, err
		}

		if err := patch.Apply(current); err != nil {
			return nil, err
		}
		if err := model.ValidateBook(current); err != nil {
			return nil, err
		}

		return s.repo.UpdateBookWithTx(ctx, tx, current, model.UpdateOptions{
			UpdatedAt:       patch.UpdatedAt,
			TouchLastEdited: patch.TouchLastEdited(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.repo.InvalidateBook(ctx, id)

	fields := map[string]interface{}{"entity_id": id}
	if updated.EditedByName != nil {
		fields["edited_by"] = *updated.EditedByName
	}
	logger.Info("[BOOK] Updated", fields)
	return updated, nil
}

// ============================================
// DELETE
// ============================================

func (s *BookService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return model.NewBookNotFound(id)
	}
	if err := s.repo.DeleteBook(ctx, id); err != nil {
		return err
	}

	logger.Info("[BOOK] Deleted", map[string]interface{}{"entity_id": id})
	return nil
}

// ============================================
// SEARCH & LISTING
// ============================================

func (s *BookService) Search(ctx context.Context, q model.SearchQuery) (*model.SearchResult, error) {
	if err := q.Normalize(s.settings.DefaultLimit, s.settings.MaxLimit, s.settings.SimilarityThreshold); err != nil {
		return nil, err
	}

	result, err := s.repo.SearchBooks(ctx, q)
	if err != nil {
		return nil, err
	}

	logger.Debug("[BOOK] Search", map[string]interface{}{
		"mode":  q.Mode,
		"text":  q.Text,
		"total": result.Total,
	})
	return result, nil
}

// ListRecent - keyset pagination; NextCursor rỗng ở trang cuối
func (s *BookService) ListRecent(ctx context.Context, q model.RecentQuery) (*model.RecentPage, error) {
	if err := q.Normalize(s.settings.DefaultLimit, s.settings.MaxLimit); err != nil {
		return nil, err
	}

	var after *model.Cursor
	if q.Cursor != "" {
		c, err := model.DecodeCursor(q.Cursor, q.Field)
		if err != nil {
			return nil, err
		}
		after = c
	}

	books, err := s.repo.ListRecent(ctx, q.Field, after, q.Limit)
	if err != nil {
		return nil, err
	}

	page := &model.RecentPage{Books: books}
	if len(books) > q.Limit {
		page.Books = books[:q.Limit]
		page.NextCursor = model.NextCursor(q.Field, &page.Books[q.Limit-1])
	}
	return page, nil
}
