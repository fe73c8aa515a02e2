package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"bookcatalog/internal/domains/book/model"
	lookupModel "bookcatalog/internal/domains/lookup/model"
	lookupService "bookcatalog/internal/domains/lookup/service"
	"bookcatalog/internal/shared"
	"bookcatalog/pkg/logger"
)

// ExportSheetName là tên sheet của file export
const ExportSheetName = "Books"

// ExportServiceInterface - xuất danh sách book ra spreadsheet
type ExportServiceInterface interface {
	WriteXLSX(ctx context.Context, w io.Writer, books []model.Book) error
}

type exportService struct {
	lookups lookupService.ServiceInterface
}

func NewExportService(lookups lookupService.ServiceInterface) ExportServiceInterface {
	return &exportService{lookups: lookups}
}

// WriteXLSX ghi books ra w. Header dùng đúng tên key của import nên file
// xuất ra có thể import lại.
func (s *exportService) WriteXLSX(ctx context.Context, w io.Writer, books []model.Book) error {
	f, err := s.buildBooksExcelFile(ctx, books)
	if err != nil {
		return fmt.Errorf("failed to build excel file: %w", err)
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write excel file: %w", err)
	}

	logger.Info("[EXPORT] Books exported", map[string]interface{}{"books": len(books)})
	return nil
}

func (s *exportService) buildBooksExcelFile(ctx context.Context, books []model.Book) (*excelize.File, error) {
	f := excelize.NewFile()

	sheetName := ExportSheetName
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	// Row 1: Header - các cột cố định rồi tới metadata key (sort)
	metaKeys := exportMetadataKeys(books)
	headers := append(append([]string{}, model.ImportColumns...), metaKeys...)

	for colIdx, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(colIdx+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
	})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		f.SetCellStyle(sheetName, "A1", last, headerStyle)
	}

	names := newLookupNames(s.lookups)

	// Data rows, bắt đầu từ row 2
	for i, b := range books {
		rowNum := i + 2
		values, err := exportRow(ctx, names, b)
		if err != nil {
			f.Close()
			return nil, err
		}
		for _, k := range metaKeys {
			values = append(values, metadataCell(b.Metadata[k]))
		}

		for colIdx, v := range values {
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowNum)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				f.Close()
				return nil, err
			}
		}
	}

	return f, nil
}

// exportRow trả về giá trị theo thứ tự model.ImportColumns; nil là ô trống
func exportRow(ctx context.Context, names *lookupNames, b model.Book) ([]any, error) {
	row := []any{
		b.Name,
		b.Title,
		strings.Join(b.Authors, "; "),
		strOrNil(b.ISBN),
		nil,
		nil,
		nil,
		strOrNil(b.Description),
		strOrNil(b.CoverImageURL),
		strOrNil(b.PurchaseURL),
	}
	if b.PublicationDate != nil {
		row[4] = b.PublicationDate.Format("2006-01-02")
	}
	if b.Pages != nil {
		row[5] = int(*b.Pages)
	}
	if b.Price != nil {
		row[6] = b.Price.InexactFloat64()
	}

	ids := b.LookupIDs()
	for i, kind := range lookupModel.AllKinds() {
		name, err := names.get(ctx, kind, ids[i])
		if err != nil {
			return nil, err
		}
		row = append(row, name)
	}
	return row, nil
}

func strOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// exportMetadataKeys: union các key metadata không trùng cột cố định
func exportMetadataKeys(books []model.Book) []string {
	seen := map[string]bool{}
	var keys []string
	for _, b := range books {
		for k := range b.Metadata {
			if seen[k] || model.IsImportColumn(k) {
				continue
			}
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// metadataCell: string giữ nguyên, giá trị khác ghi dạng JSON
func metadataCell(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return t
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}

// lookupNames cache id -> name trong một lần export
type lookupNames struct {
	lookups lookupService.ServiceInterface
	cache   map[lookupModel.Kind]map[int32]any
}

func newLookupNames(lookups lookupService.ServiceInterface) *lookupNames {
	return &lookupNames{lookups: lookups, cache: map[lookupModel.Kind]map[int32]any{}}
}

// get trả về nil khi id nil hoặc row đã bị xóa giữa chừng
func (n *lookupNames) get(ctx context.Context, kind lookupModel.Kind, id *int32) (any, error) {
	if id == nil {
		return nil, nil
	}
	if byID, ok := n.cache[kind]; ok {
		if name, ok := byID[*id]; ok {
			return name, nil
		}
	} else {
		n.cache[kind] = map[int32]any{}
	}

	var name any
	l, err := n.lookups.GetByID(ctx, kind, *id)
	switch {
	case err == nil:
		name = l.Name
	case shared.IsNotFound(err):
	default:
		return nil, err
	}
	n.cache[kind][*id] = name
	return name, nil
}
