package model

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// ImportFormat là định dạng file import
type ImportFormat string

const (
	ImportJSON ImportFormat = "json"
	ImportYAML ImportFormat = "yaml"
	ImportCSV  ImportFormat = "csv"
	ImportXLSX ImportFormat = "xlsx"
)

// ParseImportFormat accepts a format name or, when s is empty, guesses it
// from the file extension.
func ParseImportFormat(s, filename string) (ImportFormat, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		name = strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	}
	switch name {
	case "json":
		return ImportJSON, nil
	case "yaml", "yml":
		return ImportYAML, nil
	case "csv":
		return ImportCSV, nil
	case "xlsx":
		return ImportXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedImportFormat, name)
}

// ============================================
// DECODING
// ============================================

// DecodeCollection đọc một collection {"books": [...]} (JSON/YAML) hoặc
// bảng có header (CSV, sheet đầu tiên của XLSX), trả về từng record dạng map.
func DecodeCollection(r io.Reader, format ImportFormat) ([]map[string]any, error) {
	switch format {
	case ImportJSON:
		dec := json.NewDecoder(r)
		dec.UseNumber()
		var doc any
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		return booksFrom(doc)
	case ImportYAML:
		var doc any
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
			if err == io.EOF {
				return nil, ErrUnrecognizedCollection
			}
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		return booksFrom(doc)
	case ImportCSV:
		return decodeCSV(r)
	case ImportXLSX:
		return decodeXLSX(r)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedImportFormat, format)
}

func booksFrom(doc any) ([]map[string]any, error) {
	root, ok := doc.(map[string]any)
	if !ok {
		return nil, ErrUnrecognizedCollection
	}
	list, ok := root["books"].([]any)
	if !ok {
		return nil, ErrUnrecognizedCollection
	}

	records := make([]map[string]any, 0, len(list))
	for i, item := range list {
		rec, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: books[%d] is not an object", ErrUnrecognizedCollection, i)
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeCSV(r io.Reader) ([]map[string]any, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return recordsFromRows(rows)
}

// decodeXLSX đọc sheet đầu tiên theo cùng quy ước với CSV
func decodeXLSX(r io.Reader) ([]map[string]any, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrUnrecognizedCollection
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read xlsx sheet %q: %w", sheets[0], err)
	}
	return recordsFromRows(rows)
}

// recordsFromRows: dòng đầu là header (không phân biệt hoa thường), ô rỗng bị bỏ qua
func recordsFromRows(rows [][]string) ([]map[string]any, error) {
	if len(rows) == 0 {
		return nil, ErrUnrecognizedCollection
	}

	header := make([]string, len(rows[0]))
	for i, col := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(col))
	}

	records := make([]map[string]any, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(map[string]any, len(header))
		for i, cell := range row {
			if i >= len(header) || header[i] == "" {
				continue
			}
			if cell = strings.TrimSpace(cell); cell != "" {
				rec[header[i]] = cell
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// ============================================
// RECORD NORMALISATION
// ============================================

// ImportColumns là các key được map vào cột, theo thứ tự cột của export;
// key khác vào metadata
var ImportColumns = []string{
	"name", "title", "authors", "isbn", "publication_date", "pages", "price",
	"description", "cover_image_url", "purchase_url",
	"publisher", "genre", "language", "format",
}

var coreImportKeys = func() map[string]bool {
	m := make(map[string]bool, len(ImportColumns))
	for _, k := range ImportColumns {
		m[k] = true
	}
	return m
}()

// IsImportColumn báo key có được map vào cột của books không
func IsImportColumn(key string) bool {
	return coreImportKeys[key]
}

// MetadataRawDateKey giữ publication_date không parse được
const MetadataRawDateKey = "publication_date_raw"

var publicationDateLayouts = []string{"2006-01-02", "2006/01/02", "01/02/2006"}

var authorSeparators = regexp.MustCompile(`[,;]`)

// ParsedBook là một record import đã chuẩn hóa; lookup vẫn là tên, chưa resolve
type ParsedBook struct {
	Request   CreateBookRequest
	Publisher *string
	Genre     *string
	Language  *string
	Format    *string
	Warnings  []string
}

// ParseImportRecord chuẩn hóa một record. Giá trị không hợp lệ của pages,
// price hay publication_date không làm hỏng record mà chỉ sinh warning.
func ParseImportRecord(rec map[string]any) ParsedBook {
	var p ParsedBook

	title := importString(rec["title"])
	name := importString(rec["name"])
	switch {
	case title != nil:
		p.Request.Name = *title
		p.Request.Title = *title
	case name != nil:
		p.Request.Name = *name
		p.Request.Title = *name
	default:
		p.Request.Name = DefaultBookName
		p.Request.Title = DefaultBookName
	}

	p.Request.Authors = importAuthors(rec["authors"])
	p.Request.ISBN = importString(rec["isbn"])
	p.Request.Description = importString(rec["description"])
	p.Request.CoverImageURL = importString(rec["cover_image_url"])
	p.Request.PurchaseURL = importString(rec["purchase_url"])

	p.Publisher = importString(rec["publisher"])
	p.Genre = importString(rec["genre"])
	p.Language = importString(rec["language"])
	p.Format = importString(rec["format"])

	if v, present := rec["pages"]; present && !isBlank(v) {
		pages, ok := importPages(v)
		if !ok {
			p.Warnings = append(p.Warnings, fmt.Sprintf("cannot parse pages value %v, leaving empty", v))
		}
		p.Request.Pages = pages
	}

	if v, present := rec["price"]; present && !isBlank(v) {
		price, ok := importPrice(v)
		if !ok {
			p.Warnings = append(p.Warnings, fmt.Sprintf("cannot parse price value %v, leaving empty", v))
		}
		p.Request.Price = price
	}

	metadata := Metadata{}
	for k, v := range rec {
		if !coreImportKeys[k] {
			metadata[k] = v
		}
	}

	if v, present := rec["publication_date"]; present && !isBlank(v) {
		date, raw := importDate(v)
		if date != nil {
			p.Request.PublicationDate = date
		} else {
			p.Warnings = append(p.Warnings, fmt.Sprintf("cannot parse publication_date %q, kept in metadata", raw))
			metadata[MetadataRawDateKey] = raw
		}
	}

	if len(metadata) > 0 {
		p.Request.Metadata = metadata
	}
	return p
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// importString: whitespace collapse, blank thành nil, scalar khác qua fmt
func importString(v any) *string {
	var s string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s = t
	case json.Number:
		s = t.String()
	default:
		s = fmt.Sprint(t)
	}
	s = CollapseSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// importAuthors nhận chuỗi (tách theo , hoặc ;) hoặc danh sách
func importAuthors(v any) []string {
	switch t := v.(type) {
	case nil:
		return []string{}
	case string:
		return CleanAuthors(authorSeparators.Split(t, -1))
	case []any:
		out := make([]string, 0, len(t))
		for _, a := range t {
			if s := importString(a); s != nil {
				out = append(out, *s)
			}
		}
		return out
	case []string:
		return CleanAuthors(t)
	}
	if s := importString(v); s != nil {
		return []string{*s}
	}
	return []string{}
}

// importPages: ok=false khi không parse được; giá trị <= 0 cho nil, ok=true
func importPages(v any) (*int32, bool) {
	var n int64
	switch t := v.(type) {
	case int:
		n = int64(t)
	case int64:
		n = t
	case float64:
		n = int64(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			n = i
		} else if f, err := t.Float64(); err == nil {
			n = int64(f)
		} else {
			return nil, false
		}
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return nil, false
		}
		n = i
	default:
		return nil, false
	}

	if n > math.MaxInt32 {
		return nil, false
	}
	if n <= 0 {
		return nil, true
	}
	pages := int32(n)
	return &pages, true
}

// importPrice: số âm cho nil, ok=true
func importPrice(v any) (*decimal.Decimal, bool) {
	var d decimal.Decimal
	switch t := v.(type) {
	case int:
		d = decimal.NewFromInt(int64(t))
	case int64:
		d = decimal.NewFromInt(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil, false
		}
		d = decimal.NewFromFloat(t)
	case json.Number:
		parsed, err := decimal.NewFromString(t.String())
		if err != nil {
			return nil, false
		}
		d = parsed
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(t))
		if err != nil {
			return nil, false
		}
		d = parsed
	default:
		return nil, false
	}

	if d.IsNegative() {
		return nil, true
	}
	return &d, true
}

// importDate thử lần lượt các layout; trả về chuỗi gốc khi không parse được
func importDate(v any) (*time.Time, string) {
	if t, ok := v.(time.Time); ok {
		return dateOnly(&t), ""
	}

	raw := strings.TrimSpace(fmt.Sprint(v))
	if s, ok := v.(string); ok {
		raw = strings.TrimSpace(s)
	}
	for _, layout := range publicationDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, raw
		}
	}
	return nil, raw
}

// ============================================
// REPORT
// ============================================

// ImportFailure - record không tạo được
type ImportFailure struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	Error string `json:"error"`
}

// ImportWarning - record đã tạo nhưng có giá trị bị bỏ
type ImportWarning struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// ImportReport tổng kết một lần import
type ImportReport struct {
	Total    int             `json:"total"`
	Created  int             `json:"created"`
	Books    []CreatedBook   `json:"books,omitempty"`
	Failed   []ImportFailure `json:"failed,omitempty"`
	Warnings []ImportWarning `json:"warnings,omitempty"`
}

// DecodeCollectionBytes là tiện ích cho test và input nhỏ
func DecodeCollectionBytes(data []byte, format ImportFormat) ([]map[string]any, error) {
	return DecodeCollection(bytes.NewReader(data), format)
}
