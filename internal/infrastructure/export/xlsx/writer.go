// Package xlsx renders a scan as a spreadsheet, one row per recognized item.
package xlsx

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/docscan/internal/core/domain"
)

const (
	defaultSheet   = "Sheet1"
	maxSheetName   = 31
	fallbackSheet  = "Scan"
	transcriptCol  = "C"
	transcriptWide = 80
)

var header = []any{"Page", "Item", "Transcript", "Barcode", "Recognized at"}

type Writer struct{}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) WriteScan(out io.Writer, scan *domain.Scan) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := SheetName(scan.Title)
	if err := f.SetSheetName(defaultSheet, sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}

	row := 2
	for _, capture := range scan.Captures {
		for _, item := range capture.Items {
			values := []any{
				capture.Position + 1,
				item.Position + 1,
				item.Transcript,
				item.IsBarcode,
				item.RecognizedAt.UTC().Format(time.RFC3339),
			}
			if err := setRow(f, sheet, row, values); err != nil {
				return err
			}
			row++
		}
	}

	if err := f.SetColWidth(sheet, transcriptCol, transcriptCol, transcriptWide); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.Write(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("set row %d: %w", row, err)
	}
	return nil
}

// SheetName makes a scan title usable as a worksheet name: no []:*?/\ and at
// most 31 characters.
func SheetName(title string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return ' '
		}
		return r
	}, title)
	cleaned = strings.Trim(strings.Join(strings.Fields(cleaned), " "), "'")
	if runes := []rune(cleaned); len(runes) > maxSheetName {
		cleaned = strings.TrimSpace(string(runes[:maxSheetName]))
	}
	if cleaned == "" {
		return fallbackSheet
	}
	return cleaned
}
