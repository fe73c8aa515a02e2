package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bookcatalog/internal/domains/book/model"
	lookupModel "bookcatalog/internal/domains/lookup/model"
)

// ============================================
// SCHEMA
// ============================================

type SchemaCmd struct {
	Apply  SchemaApplyCmd  `cmd:"" help:"Apply pending schema files"`
	Status SchemaStatusCmd `cmd:"" help:"Show applied and pending schema files"`
}

type SchemaApplyCmd struct{}

func (SchemaApplyCmd) Run(rt *runtime) error {
	applied, err := rt.c.DB.ApplySchema(rt.ctx)
	if err != nil {
		return err
	}
	return rt.print(map[string]any{"applied": applied})
}

type SchemaStatusCmd struct{}

func (SchemaStatusCmd) Run(rt *runtime) error {
	status, err := rt.c.DB.SchemaStatus(rt.ctx)
	if err != nil {
		return err
	}
	return rt.print(map[string]any{
		"applied":    status.Applied,
		"pending":    status.Pending,
		"drifted":    status.Drifted,
		"pg_trgm":    status.PgTrgm,
		"up_to_date": status.UpToDate(),
	})
}

type HealthCmd struct{}

func (HealthCmd) Run(rt *runtime) error {
	if err := rt.c.DB.HealthCheck(rt.ctx); err != nil {
		return err
	}
	status, err := rt.c.DB.SchemaStatus(rt.ctx)
	if err != nil {
		return err
	}
	stats, err := rt.c.DB.Stats()
	if err != nil {
		return err
	}
	return rt.print(map[string]any{
		"database":       "ok",
		"cache":          rt.c.Cache.Ping(rt.ctx) == nil,
		"pg_trgm":        status.PgTrgm,
		"schema_current": status.UpToDate(),
		"pool":           stats,
	})
}

// ============================================
// LOOKUP
// ============================================

type LookupCmd struct {
	Upsert LookupUpsertCmd `cmd:"" help:"Return the row with this name, creating it if needed"`
	Get    LookupGetCmd    `cmd:"" help:"Get a row by id or by --name"`
	List   LookupListCmd   `cmd:"" help:"List rows ordered by name"`
	Search LookupSearchCmd `cmd:"" help:"Fuzzy search names"`
	Delete LookupDeleteCmd `cmd:"" help:"Delete a row; referencing books keep existing with a NULL reference"`
}

type LookupUpsertCmd struct {
	Kind string `arg:"" help:"publisher, genre, language or format"`
	Name string `arg:"" help:"Display name"`
}

func (c *LookupUpsertCmd) Run(rt *runtime) error {
	kind, err := lookupModel.ParseKind(c.Kind)
	if err != nil {
		return err
	}
	l, err := rt.c.LookupService.Upsert(rt.ctx, kind, c.Name)
	if err != nil {
		return err
	}
	return rt.print(l)
}

type LookupGetCmd struct {
	Kind string `arg:""`
	ID   int32  `arg:"" optional:"" help:"Row id"`
	Name string `help:"Look up by name instead of id"`
}

func (c *LookupGetCmd) Run(rt *runtime) error {
	kind, err := lookupModel.ParseKind(c.Kind)
	if err != nil {
		return err
	}

	var l *lookupModel.Lookup
	if c.Name != "" {
		l, err = rt.c.LookupService.GetByName(rt.ctx, kind, c.Name)
	} else {
		l, err = rt.c.LookupService.GetByID(rt.ctx, kind, c.ID)
	}
	if err != nil {
		return err
	}
	return rt.print(l)
}

type LookupListCmd struct {
	Kind   string `arg:""`
	Offset int    `help:"Rows to skip" default:"0"`
	Limit  int    `help:"Page size" default:"50"`
}

func (c *LookupListCmd) Run(rt *runtime) error {
	kind, err := lookupModel.ParseKind(c.Kind)
	if err != nil {
		return err
	}
	page, err := rt.c.LookupService.List(rt.ctx, kind, c.Offset, c.Limit)
	if err != nil {
		return err
	}
	return rt.print(page)
}

type LookupSearchCmd struct {
	Kind  string `arg:""`
	Query string `arg:""`
	Limit int    `default:"10"`
}

func (c *LookupSearchCmd) Run(rt *runtime) error {
	kind, err := lookupModel.ParseKind(c.Kind)
	if err != nil {
		return err
	}
	items, err := rt.c.LookupService.Search(rt.ctx, kind, c.Query, c.Limit)
	if err != nil {
		return err
	}
	return rt.print(items)
}

type LookupDeleteCmd struct {
	Kind string `arg:""`
	ID   int32  `arg:""`
}

func (c *LookupDeleteCmd) Run(rt *runtime) error {
	kind, err := lookupModel.ParseKind(c.Kind)
	if err != nil {
		return err
	}
	if err := rt.c.LookupService.Delete(rt.ctx, kind, c.ID); err != nil {
		return err
	}
	return rt.print(map[string]any{"deleted": true, "kind": kind, "id": c.ID})
}

// ============================================
// BOOK
// ============================================

type BookCmd struct {
	Create BookCreateCmd `cmd:"" help:"Create one book from a JSON document; invalid values are rejected"`
	Get    BookGetCmd    `cmd:"" help:"Get books by entity id or uuid"`
	Find   BookFindCmd   `cmd:"" help:"Find books whose title equals the argument, ignoring case"`
	Edit   BookEditCmd   `cmd:"" help:"Apply a JSON patch to a book"`
	Delete BookDeleteCmd `cmd:"" help:"Delete a book"`
}

type BookCreateCmd struct {
	File string `arg:"" optional:"" help:"Book JSON file, - for stdin" default:"-"`
}

func (c *BookCreateCmd) Run(rt *runtime) error {
	req, err := readCreateRequest(c.File, os.Stdin)
	if err != nil {
		return err
	}
	created, err := rt.c.BookService.Create(rt.ctx, *req)
	if err != nil {
		return err
	}
	return rt.print(created)
}

type BookGetCmd struct {
	Refs []string `arg:"" help:"entity_id or uuid, one or more"`
}

func (c *BookGetCmd) Run(rt *runtime) error {
	if len(c.Refs) == 1 {
		if id, err := uuid.Parse(c.Refs[0]); err == nil {
			b, err := rt.c.BookService.GetByUUID(rt.ctx, id)
			if err != nil {
				return err
			}
			return rt.print(b)
		}
	}

	ids, err := parseIDs(c.Refs)
	if err != nil {
		return err
	}
	if len(ids) == 1 {
		b, err := rt.c.BookService.Get(rt.ctx, ids[0])
		if err != nil {
			return err
		}
		return rt.print(b)
	}

	books, err := rt.c.BookService.GetMany(rt.ctx, ids)
	if err != nil {
		return err
	}
	return rt.print(books)
}

type BookFindCmd struct {
	Title string `arg:""`
}

func (c *BookFindCmd) Run(rt *runtime) error {
	books, err := rt.c.BookService.FindByTitle(rt.ctx, c.Title)
	if err != nil {
		return err
	}
	return rt.print(books)
}

type BookEditCmd struct {
	ID       int64  `arg:""`
	Patch    string `short:"p" help:"Patch JSON file, - for stdin" default:"-"`
	EditedBy string `help:"Editor name; also stamps last_edited_at"`
}

func (c *BookEditCmd) Run(rt *runtime) error {
	patch, err := readPatch(c.Patch, os.Stdin)
	if err != nil {
		return err
	}
	if c.EditedBy != "" {
		patch.EditedBy = &c.EditedBy
	}

	b, err := rt.c.BookService.Update(rt.ctx, c.ID, *patch)
	if err != nil {
		return err
	}
	return rt.print(b)
}

type BookDeleteCmd struct {
	ID int64 `arg:""`
}

func (c *BookDeleteCmd) Run(rt *runtime) error {
	if err := rt.c.BookService.Delete(rt.ctx, c.ID); err != nil {
		return err
	}
	return rt.print(map[string]any{"deleted": true, "entity_id": c.ID})
}

// ============================================
// SEARCH & RECENT
// ============================================

type SearchCmd struct {
	Text      string   `arg:"" optional:"" help:"Search text; omit to filter only"`
	Mode      string   `help:"fuzzy, substring or exact" default:"fuzzy" enum:"fuzzy,substring,exact"`
	Field     []string `help:"Fields to match: title, name, description, metadata (repeatable)"`
	Threshold float64  `help:"word_similarity threshold for fuzzy mode (0 uses the configured default)"`

	Publisher int32    `help:"publisher_id filter"`
	Genre     int32    `help:"genre_id filter"`
	Language  int32    `help:"language_id filter"`
	Format    int32    `help:"format_id filter"`
	Author    []string `help:"Book must list every given author (repeatable)"`

	MetaContains string `help:"JSON object the metadata must contain"`
	MetaPath     string `help:"Dot-separated metadata path, compared with --meta-value"`
	MetaValue    string `help:"JSON scalar compared at --meta-path; bare words are strings"`

	From     string `help:"Earliest publication_date (YYYY-MM-DD)"`
	To       string `help:"Latest publication_date (YYYY-MM-DD)"`
	PriceMin string `help:"Minimum price"`
	PriceMax string `help:"Maximum price"`

	Limit  int `help:"Page size (0 uses the configured default)"`
	Offset int `help:"Rows to skip"`

	XLSX string `name:"xlsx" help:"Also write the page to this spreadsheet (importable with catalogctl import)" type:"path"`
}

func (c *SearchCmd) Run(rt *runtime) error {
	q, err := c.query()
	if err != nil {
		return err
	}
	result, err := rt.c.BookService.Search(rt.ctx, q)
	if err != nil {
		return err
	}
	if c.XLSX != "" {
		books := make([]model.Book, len(result.Books))
		for i, b := range result.Books {
			books[i] = b.Book
		}
		if err := rt.exportXLSX(c.XLSX, books); err != nil {
			return err
		}
	}
	return rt.print(result)
}

// query chuyển flags thành SearchQuery; Normalize do service làm
func (c *SearchCmd) query() (model.SearchQuery, error) {
	mode, err := model.ParseSearchMode(c.Mode)
	if err != nil {
		return model.SearchQuery{}, err
	}

	q := model.SearchQuery{
		Text:      c.Text,
		Mode:      mode,
		Threshold: c.Threshold,
		Limit:     c.Limit,
		Offset:    c.Offset,
	}
	for _, f := range c.Field {
		sf, err := model.ParseSearchField(f)
		if err != nil {
			return q, err
		}
		q.Fields = append(q.Fields, sf)
	}

	f := &q.Filters
	f.PublisherID = positiveOrNil(c.Publisher)
	f.GenreID = positiveOrNil(c.Genre)
	f.LanguageID = positiveOrNil(c.Language)
	f.FormatID = positiveOrNil(c.Format)
	f.Authors = c.Author

	if c.MetaContains != "" {
		if err := json.Unmarshal([]byte(c.MetaContains), &f.MetadataContains); err != nil {
			return q, fmt.Errorf("--meta-contains: %w", err)
		}
	}
	if c.MetaPath != "" {
		f.MetadataPath = strings.Split(c.MetaPath, ".")
		f.MetadataValue = parseScalar(c.MetaValue)
	}

	if f.PublishedFrom, err = parseDate("--from", c.From); err != nil {
		return q, err
	}
	if f.PublishedTo, err = parseDate("--to", c.To); err != nil {
		return q, err
	}
	if f.PriceMin, err = parseDecimal("--price-min", c.PriceMin); err != nil {
		return q, err
	}
	if f.PriceMax, err = parseDecimal("--price-max", c.PriceMax); err != nil {
		return q, err
	}
	return q, nil
}

type RecentCmd struct {
	Field  string `help:"created_at, updated_at, publication_date or last_edited_at" default:"updated_at"`
	Limit  int    `help:"Page size (0 uses the configured default)"`
	Cursor string `help:"next_cursor from the previous page"`
	XLSX   string `name:"xlsx" help:"Also write the page to this spreadsheet (importable with catalogctl import)" type:"path"`
}

func (c *RecentCmd) Run(rt *runtime) error {
	field, err := model.ParseRecentField(c.Field)
	if err != nil {
		return err
	}
	page, err := rt.c.BookService.ListRecent(rt.ctx, model.RecentQuery{
		Field:  field,
		Limit:  c.Limit,
		Cursor: c.Cursor,
	})
	if err != nil {
		return err
	}
	if c.XLSX != "" {
		if err := rt.exportXLSX(c.XLSX, page.Books); err != nil {
			return err
		}
	}
	return rt.print(page)
}

// ============================================
// IMPORT
// ============================================

type ImportCmd struct {
	File   string `arg:"" help:"Collection file, - for stdin"`
	Format string `help:"json, yaml, csv or xlsx; guessed from the file extension when empty"`
}

func (c *ImportCmd) Run(rt *runtime) error {
	name := c.File
	if name == "-" {
		name = ""
	}
	format, err := model.ParseImportFormat(c.Format, name)
	if err != nil {
		return err
	}

	var r io.Reader = os.Stdin
	if c.File != "-" {
		f, err := os.Open(c.File)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	report, err := rt.c.ImportService.Import(rt.ctx, r, format)
	if err != nil {
		return err
	}
	return rt.print(report)
}

// ============================================
// HELPERS
// ============================================

func parseIDs(refs []string) ([]int64, error) {
	ids := make([]int64, 0, len(refs))
	for _, r := range refs {
		id, err := strconv.ParseInt(r, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is neither an entity id nor a uuid", r)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// readStrictJSON đọc file (hoặc stdin khi path là "-") và từ chối field lạ
func readStrictJSON(what, path string, stdin io.Reader, dest any) error {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", what, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("decode %s: %w", what, err)
	}
	return nil
}

func readPatch(path string, stdin io.Reader) (*model.BookPatch, error) {
	var patch model.BookPatch
	if err := readStrictJSON("patch", path, stdin, &patch); err != nil {
		return nil, err
	}
	return &patch, nil
}

func readCreateRequest(path string, stdin io.Reader) (*model.CreateBookRequest, error) {
	var req model.CreateBookRequest
	if err := readStrictJSON("book", path, stdin, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func positiveOrNil(v int32) *int32 {
	if v <= 0 {
		return nil
	}
	return &v
}

// parseScalar đọc JSON scalar; chuỗi không phải JSON được coi là string
func parseScalar(s string) any {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return s
	}
	return v
}

func parseDate(flag, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", flag, err)
	}
	return &t, nil
}

func parseDecimal(flag, s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", flag, err)
	}
	return &d, nil
}
