package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"msgsort/internal/util"
	"msgsort/pkg/categorizer"
)

// ExportFormat selects the file layout of a category export.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"

	exportSheet     = "categories"
	keywordJoiner   = ", "
	exportTimestamp = "20060102_150405"
)

var exportHeader = []string{"name", "keywords"}

func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (want csv or xlsx)", s)
	}
}

// ContentType is the MIME type of the format.
func (f ExportFormat) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// ExportFileName returns e.g. categories_20240131_094500.csv.
func ExportFileName(now time.Time, f ExportFormat) string {
	return fmt.Sprintf("categories_%s.%s", now.Format(exportTimestamp), f)
}

// ExportService writes and reads the category list as a two column table:
// name, and the keywords joined by ", ".
type ExportService struct {
	categories *CategoryService
}

func NewExportService(cs *CategoryService) *ExportService {
	return &ExportService{categories: cs}
}

// Export writes every category, in creation order, in format f.
func (s *ExportService) Export(ctx context.Context, w io.Writer, f ExportFormat) error {
	cats, err := s.categories.ListCategories(ctx)
	if err != nil {
		return err
	}
	switch f {
	case FormatXLSX:
		return WriteCategoriesXLSX(w, cats)
	default:
		return WriteCategoriesCSV(w, cats)
	}
}

// Import reads categories in format f and adds them through the category
// service.
func (s *ExportService) Import(ctx context.Context, r io.Reader, f ExportFormat) (*ImportReport, error) {
	var (
		cats []categorizer.Category
		err  error
	)
	if f == FormatXLSX {
		cats, err = ReadCategoriesXLSX(r)
	} else {
		cats, err = ReadCategoriesCSV(r)
	}
	if err != nil {
		return nil, err
	}
	return s.categories.ImportCategories(ctx, cats)
}

func WriteCategoriesCSV(w io.Writer, cats []categorizer.Category) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, c := range cats {
		if err := cw.Write([]string{c.Name, strings.Join(c.Keywords, keywordJoiner)}); err != nil {
			return fmt.Errorf("write csv row %q: %w", c.Name, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteCategoriesXLSX(w io.Writer, cats []categorizer.Category) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}
	for i, c := range cats {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []string{c.Name, strings.Join(c.Keywords, keywordJoiner)}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("write xlsx row %q: %w", c.Name, err)
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func ReadCategoriesCSV(r io.Reader) ([]categorizer.Category, error) {
	cr := csv.NewReader(util.SkipBOM(r))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return categoriesFromRows(rows)
}

func ReadCategoriesXLSX(r io.Reader) ([]categorizer.Category, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheet := exportSheet
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return categoriesFromRows(rows)
}

func categoriesFromRows(rows [][]string) ([]categorizer.Category, error) {
	if len(rows) == 0 {
		return nil, errors.New("category file is empty")
	}
	header := rows[0]
	if len(header) < 2 || !strings.EqualFold(strings.TrimSpace(header[0]), exportHeader[0]) ||
		!strings.EqualFold(strings.TrimSpace(header[1]), exportHeader[1]) {
		return nil, fmt.Errorf("unexpected header %v, want %v", header, exportHeader)
	}

	cats := make([]categorizer.Category, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}
		if len(row) < 2 {
			return nil, fmt.Errorf("row %d: want name and keywords", i+2)
		}
		cats = append(cats, categorizer.Category{
			Name:     strings.TrimSpace(row[0]),
			Keywords: categorizer.SplitKeywords(row[1], categorizer.KeywordSeparator),
		})
	}
	return cats, nil
}
