package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookcatalog/internal/domains/book/model"
	"bookcatalog/internal/shared"
)

// ========================================
// FAKES
// ========================================

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	txs []*fakeTx
}

func (d *fakeDB) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	tx := &fakeTx{}
	d.txs = append(d.txs, tx)
	return tx, nil
}

func (d *fakeDB) last() *fakeTx {
	return d.txs[len(d.txs)-1]
}

// fakeRepo giữ book trong map và enforce unique ISBN như schema
type fakeRepo struct {
	mu          sync.Mutex
	nextID      int64
	books       map[int64]*model.Book
	invalidated []int64
	lastOpts    model.UpdateOptions
	lastSearch  *model.SearchQuery
	recent      []model.Book
	lastAfter   *model.Cursor
	now         time.Time
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		books: map[int64]*model.Book{},
		now:   time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (f *fakeRepo) CreateBook(_ context.Context, b *model.Book) (*model.CreatedBook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if b.ISBN != nil {
		for _, existing := range f.books {
			if existing.ISBN != nil && *existing.ISBN == *b.ISBN {
				return nil, shared.NewUniqueViolation(model.RuleISBNUnique, "isbn", nil)
			}
		}
	}

	f.nextID++
	stored := *b
	stored.EntityID = f.nextID
	if stored.UUID == uuid.Nil {
		stored.UUID = uuid.New()
	}
	stored.CreatedAt, stored.UpdatedAt = f.now, f.now
	f.books[stored.EntityID] = &stored
	return &model.CreatedBook{EntityID: stored.EntityID, UUID: stored.UUID}, nil
}

func (f *fakeRepo) get(id int64) (*model.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.books[id]
	if !ok {
		return nil, model.NewBookNotFound(id)
	}
	cp := *b
	return &cp, nil
}

func (f *fakeRepo) GetBookByID(_ context.Context, id int64) (*model.Book, error) {
	return f.get(id)
}

func (f *fakeRepo) GetBookByUUID(_ context.Context, id uuid.UUID) (*model.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.books {
		if b.UUID == id {
			cp := *b
			return &cp, nil
		}
	}
	return nil, model.NewBookNotFound(id)
}

func (f *fakeRepo) GetBooksByIDs(_ context.Context, ids []int64) ([]model.Book, error) {
	out := []model.Book{}
	for _, id := range ids {
		if b, err := f.get(id); err == nil {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out, nil
}

func (f *fakeRepo) FindByTitle(_ context.Context, title string, _ int) ([]model.Book, error) {
	return []model.Book{}, nil
}

func (f *fakeRepo) DeleteBook(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.books[id]; !ok {
		return model.NewBookNotFound(id)
	}
	delete(f.books, id)
	return nil
}

func (f *fakeRepo) GetBookByIDForUpdate(_ context.Context, _ pgx.Tx, id int64) (*model.Book, error) {
	return f.get(id)
}

func (f *fakeRepo) UpdateBookWithTx(_ context.Context, _ pgx.Tx, b *model.Book, opts model.UpdateOptions) (*model.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastOpts = opts

	stored := *b
	stored.UpdatedAt = f.now.Add(time.Minute)
	if opts.UpdatedAt != nil {
		stored.UpdatedAt = *opts.UpdatedAt
	}
	if opts.TouchLastEdited {
		at := f.now.Add(time.Minute)
		stored.LastEditedAt = &at
	}
	f.books[b.EntityID] = &stored
	cp := stored
	return &cp, nil
}

func (f *fakeRepo) InvalidateBook(_ context.Context, id int64) {
	f.invalidated = append(f.invalidated, id)
}

func (f *fakeRepo) SearchBooks(_ context.Context, q model.SearchQuery) (*model.SearchResult, error) {
	f.lastSearch = &q
	return &model.SearchResult{Books: []model.ScoredBook{}}, nil
}

func (f *fakeRepo) ListRecent(_ context.Context, _ model.RecentField, after *model.Cursor, limit int) ([]model.Book, error) {
	f.lastAfter = after
	if len(f.recent) > limit+1 {
		return f.recent[:limit+1], nil
	}
	return f.recent, nil
}

func newTestService() (*BookService, *fakeRepo, *fakeDB) {
	repo := newFakeRepo()
	db := &fakeDB{}
	svc := NewService(repo, db, Settings{}).(*BookService)
	return svc, repo, db
}

func strPtr(s string) *string { return &s }
func int32Ptr(n int32) *int32 { return &n }

// ========================================
// TESTS
// ========================================

func TestNewService_FillsDefaults(t *testing.T) {
	svc, _, _ := newTestService()
	assert.Equal(t, DefaultSettings(), svc.settings)
}

func TestCreate_ValidatesBeforeInsert(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, model.CreateBookRequest{Title: "   "})
	require.Error(t, err)
	assert.True(t, shared.IsCheckViolation(err))
	assert.Equal(t, model.RuleTitleNotBlank, shared.ViolatedRule(err))

	neg := decimal.NewFromInt(-1)
	_, err = svc.Create(ctx, model.CreateBookRequest{Title: "Paid", Price: &neg})
	assert.Equal(t, model.RulePriceNonNegative, shared.ViolatedRule(err))

	assert.Empty(t, repo.books)

	zero := decimal.Zero
	created, err := svc.Create(ctx, model.CreateBookRequest{Title: "Free", Price: &zero})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.EntityID)
}

func TestCreate_DuplicateISBN(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, model.CreateBookRequest{Title: "A", ISBN: strPtr("978-1")})
	require.NoError(t, err)

	_, err = svc.Create(ctx, model.CreateBookRequest{Title: "B", ISBN: strPtr("978-1")})
	assert.True(t, shared.IsUniqueViolation(err))
}

func TestGet_NonPositiveID(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Get(context.Background(), 0)
	assert.True(t, model.IsBookNotFound(err))
}

func TestGetMany_Dedupes(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	for _, title := range []string{"a", "b"} {
		_, err := svc.Create(ctx, model.CreateBookRequest{Title: title})
		require.NoError(t, err)
	}

	books, err := svc.GetMany(ctx, []int64{2, 2, -1, 1, 99})
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, int64(1), books[0].EntityID)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("empty patch", func(t *testing.T) {
		svc, _, db := newTestService()
		_, err := svc.Update(ctx, 1, model.BookPatch{})
		assert.ErrorIs(t, err, model.ErrEmptyPatch)
		assert.Empty(t, db.txs)
	})

	t.Run("missing book rolls back", func(t *testing.T) {
		svc, repo, db := newTestService()
		_, err := svc.Update(ctx, 42, model.BookPatch{Title: strPtr("x")})
		assert.True(t, model.IsBookNotFound(err))
		assert.True(t, db.last().rolledBack)
		assert.Empty(t, repo.invalidated)
	})

	t.Run("blank title rejected", func(t *testing.T) {
		svc, _, db := newTestService()
		created, err := svc.Create(ctx, model.CreateBookRequest{Title: "Dune"})
		require.NoError(t, err)

		_, err = svc.Update(ctx, created.EntityID, model.BookPatch{Title: strPtr(" ")})
		assert.True(t, shared.IsCheckViolation(err))
		assert.True(t, db.last().rolledBack)
	})

	t.Run("updated_at before created_at rejected", func(t *testing.T) {
		svc, repo, db := newTestService()
		created, err := svc.Create(ctx, model.CreateBookRequest{Title: "Dune"})
		require.NoError(t, err)

		early := repo.now.Add(-time.Hour)
		_, err = svc.Update(ctx, created.EntityID, model.BookPatch{UpdatedAt: &early})
		assert.True(t, shared.IsCheckViolation(err))
		assert.Equal(t, model.RuleUpdatedAfterCreated, shared.ViolatedRule(err))
		assert.True(t, db.last().rolledBack)
	})

	t.Run("blank editor rejected", func(t *testing.T) {
		svc, repo, db := newTestService()
		created, err := svc.Create(ctx, model.CreateBookRequest{Title: "Dune"})
		require.NoError(t, err)

		_, err = svc.Update(ctx, created.EntityID, model.BookPatch{EditedBy: strPtr("  ")})
		assert.ErrorIs(t, err, model.ErrBlankEditor)
		assert.True(t, db.last().rolledBack)
		assert.Empty(t, repo.invalidated)
	})

	t.Run("commits, invalidates and stamps editor", func(t *testing.T) {
		svc, repo, db := newTestService()
		created, err := svc.Create(ctx, model.CreateBookRequest{Title: "Dune"})
		require.NoError(t, err)

		updated, err := svc.Update(ctx, created.EntityID, model.BookPatch{
			Pages:    func() *int32 { p := int32(412); return &p }(),
			EditedBy: strPtr("curator"),
		})
		require.NoError(t, err)

		assert.True(t, db.last().committed)
		assert.Equal(t, []int64{created.EntityID}, repo.invalidated)
		assert.True(t, repo.lastOpts.TouchLastEdited)
		assert.Nil(t, repo.lastOpts.UpdatedAt)
		assert.Equal(t, "curator", *updated.EditedByName)
		require.NotNil(t, updated.LastEditedAt)
		assert.Equal(t, int32(412), *updated.Pages)
	})
}

func TestDelete(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, model.CreateBookRequest{Title: "x"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, created.EntityID))

	err = svc.Delete(ctx, created.EntityID)
	assert.True(t, shared.IsNotFound(err))
}

func TestSearch_NormalizesBeforeRepository(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Search(ctx, model.SearchQuery{Mode: "regex"})
	assert.ErrorIs(t, err, model.ErrInvalidSearchMode)
	assert.Nil(t, repo.lastSearch)

	_, err = svc.Search(ctx, model.SearchQuery{Text: " dune "})
	require.NoError(t, err)
	require.NotNil(t, repo.lastSearch)
	assert.Equal(t, "dune", repo.lastSearch.Text)
	assert.Equal(t, 0.3, repo.lastSearch.Threshold)
	assert.Equal(t, 20, repo.lastSearch.Limit)
}

func TestListRecent_Pages(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for id := int64(5); id >= 1; id-- {
		at := base
		repo.recent = append(repo.recent, model.Book{EntityID: id, LastEditedAt: &at})
	}

	page, err := svc.ListRecent(ctx, model.RecentQuery{Field: model.RecentEdited, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Books, 2)
	require.NotEmpty(t, page.NextCursor)

	_, err = svc.ListRecent(ctx, model.RecentQuery{Field: model.RecentEdited, Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.NotNil(t, repo.lastAfter)
	assert.Equal(t, int64(4), repo.lastAfter.ID)
	assert.True(t, base.Equal(repo.lastAfter.At))

	repo.recent = repo.recent[:1]
	page, err = svc.ListRecent(ctx, model.RecentQuery{Field: model.RecentEdited, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Books, 1)
	assert.Empty(t, page.NextCursor)
}

func TestListRecent_CursorForOtherField(t *testing.T) {
	svc, _, _ := newTestService()
	cursor := model.EncodeCursor(model.Cursor{Field: model.RecentCreated, At: time.Now(), ID: 1})

	_, err := svc.ListRecent(context.Background(), model.RecentQuery{Field: model.RecentEdited, Cursor: cursor})
	assert.True(t, errors.Is(err, model.ErrInvalidCursor))
}
