package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookcatalog/internal/domains/book/model"
	"bookcatalog/internal/domains/book/repository"
	lookupModel "bookcatalog/internal/domains/lookup/model"
	lookupRepo "bookcatalog/internal/domains/lookup/repository"
	lookupService "bookcatalog/internal/domains/lookup/service"
	"bookcatalog/internal/infrastructure/database"
	"bookcatalog/internal/shared"
	"bookcatalog/internal/testutil"
	pkgdb "bookcatalog/pkg/database"
)

type integrationEnv struct {
	db      *database.PostgresDB
	cache   *testutil.MemoryCache
	repo    repository.RepositoryInterface
	books   ServiceInterface
	lookups lookupService.ServiceInterface
}

func newIntegrationEnv(t *testing.T) *integrationEnv {
	db := testutil.NewTestDB(t)
	c := testutil.NewMemoryCache()

	repo := repository.NewPostgresRepository(db.Pool, c, time.Minute)
	return &integrationEnv{
		db:      db,
		cache:   c,
		repo:    repo,
		books:   NewService(repo, db.Pool, DefaultSettings()),
		lookups: lookupService.NewLookupService(lookupRepo.NewPostgresRepository(db.Pool, c, time.Minute)),
	}
}

func (e *integrationEnv) create(t *testing.T, req model.CreateBookRequest) *model.Book {
	t.Helper()
	ctx := context.Background()
	created, err := e.books.Create(ctx, req)
	require.NoError(t, err)
	b, err := e.books.Get(ctx, created.EntityID)
	require.NoError(t, err)
	return b
}

// Property 1
func TestIntegration_CreateStampsTimestamps(t *testing.T) {
	env := newIntegrationEnv(t)

	b := env.create(t, model.CreateBookRequest{
		Title:   "The Left Hand of Darkness",
		Authors: []string{"Ursula K. Le Guin"},
	})

	assert.NotZero(t, b.EntityID)
	assert.NotEqual(t, uuid.Nil, b.UUID)
	assert.True(t, b.CreatedAt.Equal(b.UpdatedAt), "created_at == updated_at on insert")
	assert.Nil(t, b.LastEditedAt)
	assert.Nil(t, b.EditedByName)
	assert.Equal(t, b.Title, b.Name)
	assert.Equal(t, []string{"Ursula K. Le Guin"}, []string(b.Authors))

	byUUID, err := env.books.GetByUUID(context.Background(), b.UUID)
	require.NoError(t, err)
	assert.Equal(t, b.EntityID, byUUID.EntityID)
}

// Property 2
func TestIntegration_BlankTitleRejected(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()

	_, err := env.books.Create(ctx, model.CreateBookRequest{Title: "  "})
	assert.True(t, shared.IsCheckViolation(err))

	// Same rule enforced by PostgreSQL when validation is bypassed
	_, err = env.repo.CreateBook(ctx, &model.Book{Name: "ok", Title: " \t ", Authors: []string{}})
	require.Error(t, err)
	assert.True(t, shared.IsCheckViolation(err))
	assert.Equal(t, model.RuleTitleNotBlank, shared.ViolatedRule(err))
	assert.Equal(t, "title", shared.ViolatedField(err))

	b := env.create(t, model.CreateBookRequest{Title: "Valid"})
	_, err = env.books.Update(ctx, b.EntityID, model.BookPatch{Title: func() *string { s := ""; return &s }()})
	assert.True(t, shared.IsCheckViolation(err))
}

// Property 3
func TestIntegration_DuplicateISBN(t *testing.T) {
	env := newIntegrationEnv(t)
	isbn := "978-0-553-38016-3"

	env.create(t, model.CreateBookRequest{Title: "First", ISBN: &isbn})
	_, err := env.books.Create(context.Background(), model.CreateBookRequest{Title: "Second", ISBN: &isbn})

	require.Error(t, err)
	assert.True(t, shared.IsUniqueViolation(err))
	assert.Equal(t, model.RuleISBNUnique, shared.ViolatedRule(err))

	// NULL ISBNs never collide
	env.create(t, model.CreateBookRequest{Title: "No ISBN 1"})
	env.create(t, model.CreateBookRequest{Title: "No ISBN 2"})
}

// Property 4
func TestIntegration_DeletingLookupNullsReference(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()

	pub, err := env.lookups.Upsert(ctx, lookupModel.KindPublisher, "Ace Books")
	require.NoError(t, err)

	b := env.create(t, model.CreateBookRequest{Title: "Neuromancer", PublisherID: &pub.ID})
	require.NotNil(t, b.PublisherID)
	assert.True(t, env.cache.Has(shared.BookCacheKey(b.EntityID)), "Get populated the book cache")

	require.NoError(t, env.lookups.Delete(ctx, lookupModel.KindPublisher, pub.ID))

	after, err := env.books.Get(ctx, b.EntityID)
	require.NoError(t, err, "book survives the publisher")
	assert.Nil(t, after.PublisherID)

	_, err = env.books.Create(ctx, model.CreateBookRequest{Title: "Dangling", PublisherID: &pub.ID})
	assert.True(t, shared.IsForeignKeyViolation(err))
	assert.Equal(t, model.RulePublisherForeignKey, shared.ViolatedRule(err))
}

// Property 5
func TestIntegration_UpdatedAtNotBeforeCreatedAt(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()
	b := env.create(t, model.CreateBookRequest{Title: "Timekeeping"})

	early := b.CreatedAt.Add(-time.Hour)
	_, err := env.books.Update(ctx, b.EntityID, model.BookPatch{UpdatedAt: &early})
	assert.True(t, shared.IsCheckViolation(err))

	err = pkgdb.WithTransaction(ctx, env.db.Pool, func(tx pgx.Tx) error {
		locked, err := env.repo.GetBookByIDForUpdate(ctx, tx, b.EntityID)
		if err != nil {
			return err
		}
		_, err = env.repo.UpdateBookWithTx(ctx, tx, locked, model.UpdateOptions{UpdatedAt: &early})
		return err
	})
	require.Error(t, err)
	assert.True(t, shared.IsCheckViolation(err))
	assert.Equal(t, model.RuleUpdatedAfterCreated, shared.ViolatedRule(err))

	pages := int32(300)
	updated, err := env.books.Update(ctx, b.EntityID, model.BookPatch{Pages: &pages})
	require.NoError(t, err)
	assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt))
	assert.Nil(t, updated.LastEditedAt, "no editor, no edit stamp")
}

// Property 6
func TestIntegration_FuzzyMetadataSearch(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()

	meta := model.Metadata{"tags": "vintage rare", "note": "signed copy"}
	target := env.create(t, model.CreateBookRequest{Title: "Foundation", Metadata: meta})
	env.create(t, model.CreateBookRequest{Title: "Unrelated", Metadata: model.Metadata{"note": "paperback"}})

	var flattened string
	require.NoError(t, env.db.Pool.QueryRow(ctx,
		`SELECT jsonb_values_to_text(metadata) FROM books WHERE entity_id = $1`, target.EntityID).Scan(&flattened))
	want, ok := model.FlattenMetadata(meta)
	require.True(t, ok)
	assert.Equal(t, want, flattened)

	fuzzy, err := env.books.Search(ctx, model.SearchQuery{
		Text:   "sgined",
		Fields: []model.SearchField{model.FieldMetadataText},
	})
	require.NoError(t, err)
	require.NotEmpty(t, fuzzy.Books)
	assert.Equal(t, target.EntityID, fuzzy.Books[0].EntityID)
	assert.Greater(t, fuzzy.Books[0].Score, 0.0)

	substring, err := env.books.Search(ctx, model.SearchQuery{
		Text:   "vintage",
		Mode:   model.SearchSubstring,
		Fields: []model.SearchField{model.FieldMetadataText},
	})
	require.NoError(t, err)
	require.Len(t, substring.Books, 1)
	assert.Equal(t, target.EntityID, substring.Books[0].EntityID)

	exact, err := env.books.Search(ctx, model.SearchQuery{Text: "vintage", Mode: model.SearchExact})
	require.NoError(t, err)
	assert.Empty(t, exact.Books)
	assert.Zero(t, exact.Total)
}

// Property 7
func TestIntegration_PriceBounds(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()

	neg := decimal.NewFromInt(-1)
	_, err := env.books.Create(ctx, model.CreateBookRequest{Title: "Negative", Price: &neg})
	assert.True(t, shared.IsCheckViolation(err))

	_, err = env.repo.CreateBook(ctx, &model.Book{Name: "Negative", Title: "Negative", Authors: []string{}, Price: &neg})
	assert.Equal(t, model.RulePriceNonNegative, shared.ViolatedRule(err))

	zero := decimal.Zero
	b := env.create(t, model.CreateBookRequest{Title: "Free", Price: &zero})
	require.NotNil(t, b.Price)
	assert.True(t, b.Price.IsZero())
}

// Property 8
func TestIntegration_RecentlyEditedIsDeterministic(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()

	var ids []int64
	for _, title := range []string{"A", "B", "C", "D", "E"} {
		ids = append(ids, env.create(t, model.CreateBookRequest{Title: title}).EntityID)
	}
	env.create(t, model.CreateBookRequest{Title: "never edited"})

	// Cùng last_edited_at cho mọi book: thứ tự chỉ còn phụ thuộc entity_id
	var tie time.Time
	editor := "curator"
	for i, id := range ids {
		if i == 0 {
			updated, err := env.books.Update(ctx, id, model.BookPatch{EditedBy: &editor})
			require.NoError(t, err)
			tie = *updated.LastEditedAt
			continue
		}
		_, err := env.books.Update(ctx, id, model.BookPatch{EditedBy: &editor, LastEditedAt: &tie})
		require.NoError(t, err)
	}

	collect := func() []int64 {
		var out []int64
		cursor := ""
		for {
			page, err := env.books.ListRecent(ctx, model.RecentQuery{Field: model.RecentEdited, Limit: 2, Cursor: cursor})
			require.NoError(t, err)
			for _, b := range page.Books {
				out = append(out, b.EntityID)
			}
			if page.NextCursor == "" {
				return out
			}
			cursor = page.NextCursor
		}
	}

	first := collect()
	assert.Equal(t, []int64{ids[4], ids[3], ids[2], ids[1], ids[0]}, first)
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, collect())
	}
}

func TestIntegration_SearchFilters(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()

	date := func(y int) *time.Time { d := time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC); return &d }
	price := func(s string) *decimal.Decimal { d := decimal.RequireFromString(s); return &d }

	gp := env.create(t, model.CreateBookRequest{
		Title:           "Good Omens",
		Authors:         []string{"Terry Pratchett", "Neil Gaiman"},
		PublicationDate: date(1990),
		Price:           price("12.50"),
		Metadata:        model.Metadata{"edition": map[string]any{"number": 1}, "signed": true},
	})
	env.create(t, model.CreateBookRequest{
		Title:           "Mort",
		Authors:         []string{"Terry Pratchett"},
		PublicationDate: date(1987),
		Price:           price("30.00"),
	})

	res, err := env.books.Search(ctx, model.SearchQuery{Filters: model.SearchFilters{
		Authors: []string{"Neil Gaiman", "Terry Pratchett"},
	}})
	require.NoError(t, err)
	require.Len(t, res.Books, 1)
	assert.Equal(t, gp.EntityID, res.Books[0].EntityID)

	res, err = env.books.Search(ctx, model.SearchQuery{Filters: model.SearchFilters{
		MetadataPath:  []string{"edition", "number"},
		MetadataValue: 1,
	}})
	require.NoError(t, err)
	require.Len(t, res.Books, 1)

	res, err = env.books.Search(ctx, model.SearchQuery{Filters: model.SearchFilters{
		MetadataContains: model.Metadata{"signed": true},
		PriceMax:         price("20"),
		PublishedFrom:    date(1989),
	}})
	require.NoError(t, err)
	require.Len(t, res.Books, 1)
	assert.Equal(t, 1, res.Total)

	res, err = env.books.Search(ctx, model.SearchQuery{Filters: model.SearchFilters{
		Authors: []string{"Terry Pratchett"},
	}, Limit: 1, Offset: 5})
	require.NoError(t, err)
	assert.Empty(t, res.Books)
	assert.Equal(t, 2, res.Total, "total counted even past the last page")

	found, err := env.books.FindByTitle(ctx, "good OMENS")
	require.NoError(t, err)
	require.Len(t, found, 1)
}

func TestIntegration_UpdateInvalidatesCache(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()

	b := env.create(t, model.CreateBookRequest{Title: "Hyperion"})
	require.True(t, env.cache.Has(shared.BookCacheKey(b.EntityID)))

	meta := model.Metadata{"shelf": "B2"}
	_, err := env.books.Update(ctx, b.EntityID, model.BookPatch{MergeMetadata: meta})
	require.NoError(t, err)
	assert.False(t, env.cache.Has(shared.BookCacheKey(b.EntityID)))

	again, err := env.books.Get(ctx, b.EntityID)
	require.NoError(t, err)
	assert.Equal(t, "B2", again.Metadata["shelf"])
	assert.False(t, again.UpdatedAt.Before(b.UpdatedAt))

	require.NoError(t, env.books.Delete(ctx, b.EntityID))
	_, err = env.books.Get(ctx, b.EntityID)
	assert.True(t, model.IsBookNotFound(err))
}

func TestIntegration_Import(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()
	svc := NewImportService(env.books, env.lookups, 4)

	doc := []byte(`
books:
  - title: Dune
    authors: Frank Herbert; Brian Herbert
    publisher: Chilton Books
    genre: Science Fiction
    publication_date: 1965/08/01
  - title: Dune Messiah
    publisher: Chilton Books
    pages: 256
    price: 9.99
    shelf: A1
`)
	records, err := model.DecodeCollectionBytes(doc, model.ImportYAML)
	require.NoError(t, err)
	require.Len(t, records, 2)

	report, err := svc.Import(ctx, bytes.NewReader(doc), model.ImportYAML)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created)
	assert.Empty(t, report.Failed)

	pubs, err := env.lookups.List(ctx, lookupModel.KindPublisher, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, pubs.Total, "both books share one publisher row")

	found, err := env.books.FindByTitle(ctx, "dune messiah")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "A1", found[0].Metadata["shelf"])
	assert.Equal(t, "9.99", found[0].Price.StringFixed(2))
}

// Các CHECK constraint còn lại, chạm thẳng vào PostgreSQL
func TestIntegration_CheckConstraintsInDatabase(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()

	t.Run("metadata must be an object", func(t *testing.T) {
		_, err := env.db.Pool.Exec(ctx,
			`INSERT INTO books (name, title, metadata) VALUES ('Array', 'Array', '[1]'::jsonb)`)
		err = database.ClassifyError(err)
		require.Error(t, err)
		assert.True(t, shared.IsCheckViolation(err))
		assert.Equal(t, model.RuleMetadataIsObject, shared.ViolatedRule(err))
		assert.Equal(t, "metadata", shared.ViolatedField(err))

		_, err = env.db.Pool.Exec(ctx,
			`INSERT INTO books (name, title, metadata) VALUES ('Null', 'Null', NULL)`)
		require.NoError(t, err, "NULL metadata is allowed")
	})

	t.Run("pages must be positive", func(t *testing.T) {
		zero := int32(0)
		_, err := env.repo.CreateBook(ctx, &model.Book{Name: "Empty", Title: "Empty", Authors: []string{}, Pages: &zero})
		require.Error(t, err)
		assert.True(t, shared.IsCheckViolation(err))
		assert.Equal(t, model.RulePagesPositive, shared.ViolatedRule(err))
		assert.Equal(t, "pages", shared.ViolatedField(err))
	})

	t.Run("last_edited_at not before created_at", func(t *testing.T) {
		b := env.create(t, model.CreateBookRequest{Title: "Backdated"})
		early := b.CreatedAt.Add(-time.Hour)
		editor := "curator"

		err := pkgdb.WithTransaction(ctx, env.db.Pool, func(tx pgx.Tx) error {
			locked, err := env.repo.GetBookByIDForUpdate(ctx, tx, b.EntityID)
			if err != nil {
				return err
			}
			locked.LastEditedAt = &early
			locked.EditedByName = &editor
			_, err = env.repo.UpdateBookWithTx(ctx, tx, locked, model.UpdateOptions{})
			return err
		})
		require.Error(t, err)
		assert.True(t, shared.IsCheckViolation(err))
		assert.Equal(t, model.RuleEditedAfterCreated, shared.ViolatedRule(err))
		assert.Equal(t, "last_edited_at", shared.ViolatedField(err))

		after, err := env.books.Get(ctx, b.EntityID)
		require.NoError(t, err)
		assert.Nil(t, after.LastEditedAt, "failed update left the row untouched")
	})
}

// Property 4 cho genre, language và format
func TestIntegration_DeletingAnyLookupNullsReference(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()

	for _, kind := range []lookupModel.Kind{lookupModel.KindGenre, lookupModel.KindLanguage, lookupModel.KindFormat} {
		t.Run(string(kind), func(t *testing.T) {
			l, err := env.lookups.Upsert(ctx, kind, "Doomed "+string(kind))
			require.NoError(t, err)

			req := model.CreateBookRequest{Title: "Survivor " + string(kind)}
			switch kind {
			case lookupModel.KindGenre:
				req.GenreID = &l.ID
			case lookupModel.KindLanguage:
				req.LanguageID = &l.ID
			case lookupModel.KindFormat:
				req.FormatID = &l.ID
			}
			b := env.create(t, req)

			idx := map[lookupModel.Kind]int{lookupModel.KindGenre: 1, lookupModel.KindLanguage: 2, lookupModel.KindFormat: 3}[kind]
			require.NotNil(t, b.LookupIDs()[idx])

			require.NoError(t, env.lookups.Delete(ctx, kind, l.ID))

			after, err := env.books.Get(ctx, b.EntityID)
			require.NoError(t, err)
			assert.Nil(t, after.LookupIDs()[idx])

			_, err = env.books.Create(ctx, req)
			assert.True(t, shared.IsForeignKeyViolation(err))
			assert.Equal(t, kind.IDColumn(), shared.ViolatedField(err))
		})
	}
}

func TestIntegration_ExactSearchMatchesCollapsedTitle(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()

	b := env.create(t, model.CreateBookRequest{Title: "War  and\tPeace"})
	assert.Equal(t, "War and Peace", b.Title)

	exact, err := env.books.Search(ctx, model.SearchQuery{Text: "war   and peace", Mode: model.SearchExact})
	require.NoError(t, err)
	require.Len(t, exact.Books, 1)
	assert.Equal(t, b.EntityID, exact.Books[0].EntityID)

	found, err := env.books.FindByTitle(ctx, "WAR AND  PEACE")
	require.NoError(t, err)
	require.Len(t, found, 1)

	renamed := "Anna   Karenina"
	updated, err := env.books.Update(ctx, b.EntityID, model.BookPatch{Title: &renamed})
	require.NoError(t, err)
	assert.Equal(t, "Anna Karenina", updated.Title)

	found, err = env.books.FindByTitle(ctx, "anna karenina")
	require.NoError(t, err)
	require.Len(t, found, 1)
}

func TestIntegration_BlankEditorRejected(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()
	b := env.create(t, model.CreateBookRequest{Title: "Unsigned"})

	blank := ""
	_, err := env.books.Update(ctx, b.EntityID, model.BookPatch{EditedBy: &blank})
	assert.ErrorIs(t, err, model.ErrBlankEditor)

	after, err := env.books.Get(ctx, b.EntityID)
	require.NoError(t, err)
	assert.Nil(t, after.LastEditedAt)
	assert.Nil(t, after.EditedByName)
}
