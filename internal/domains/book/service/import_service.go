package service

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"bookcatalog/internal/domains/book/model"
	lookupModel "bookcatalog/internal/domains/lookup/model"
	lookupService "bookcatalog/internal/domains/lookup/service"
	"bookcatalog/pkg/logger"
)

type importService struct {
	books       ServiceInterface
	lookups     lookupService.ServiceInterface
	concurrency int
}

// NewImportService - concurrency giới hạn số record được tạo song song
func NewImportService(books ServiceInterface, lookups lookupService.ServiceInterface, concurrency int) ImportServiceInterface {
	if concurrency < 1 {
		concurrency = 1
	}
	return &importService{books: books, lookups: lookups, concurrency: concurrency}
}

// importOutcome - kết quả của một record, ghi theo index nên không cần lock
type importOutcome struct {
	title    string
	created  *model.CreatedBook
	err      error
	warnings []string
}

// Import đọc collection rồi tạo từng book. Lỗi của một record được ghi vào
// report; chỉ lỗi đọc file hoặc context bị hủy mới làm Import trả về error.
func (s *importService) Import(ctx context.Context, r io.Reader, format model.ImportFormat) (*model.ImportReport, error) {
	records, err := model.DecodeCollection(r, format)
	if err != nil {
		return nil, err
	}

	logger.Info("[IMPORT] Starting", map[string]interface{}{
		"format":  format,
		"records": len(records),
	})

	outcomes := make([]importOutcome, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, rec := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = s.importOne(gctx, rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &model.ImportReport{Total: len(records)}
	for i, o := range outcomes {
		for _, w := range o.warnings {
			report.Warnings = append(report.Warnings, model.ImportWarning{Index: i, Message: w})
		}
		if o.err != nil {
			report.Failed = append(report.Failed, model.ImportFailure{Index: i, Title: o.title, Error: o.err.Error()})
			logger.Warn("[IMPORT] Record failed", map[string]interface{}{
				"index": i,
				"title": o.title,
				"error": o.err.Error(),
			})
			continue
		}
		report.Created++
		report.Books = append(report.Books, *o.created)
	}

	logger.Info("[IMPORT] Completed", map[string]interface{}{
		"total":    report.Total,
		"created":  report.Created,
		"failed":   len(report.Failed),
		"warnings": len(report.Warnings),
	})
	return report, nil
}

func (s *importService) importOne(ctx context.Context, rec map[string]any) importOutcome {
	parsed := model.ParseImportRecord(rec)
	out := importOutcome{title: parsed.Request.Title, warnings: parsed.Warnings}

	for _, ref := range []struct {
		kind lookupModel.Kind
		name *string
		dest **int32
	}{
		{lookupModel.KindPublisher, parsed.Publisher, &parsed.Request.PublisherID},
		{lookupModel.KindGenre, parsed.Genre, &parsed.Request.GenreID},
		{lookupModel.KindLanguage, parsed.Language, &parsed.Request.LanguageID},
		{lookupModel.KindFormat, parsed.Format, &parsed.Request.FormatID},
	} {
		id, err := s.lookups.Resolve(ctx, ref.kind, ref.name)
		if err != nil {
			out.err = fmt.Errorf("resolve %s: %w", ref.kind, err)
			return out
		}
		*ref.dest = id
	}

	out.created, out.err = s.books.Create(ctx, parsed.Request)
	return out
}
