package usecase

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kirillkom/docscan/internal/core/domain"
	"github.com/kirillkom/docscan/internal/core/ports"
)

const fallbackExportName = "Document"

type ExportUseCase struct {
	repo        ports.ScanRepository
	spreadsheet ports.SpreadsheetWriter
}

func NewExportUseCase(repo ports.ScanRepository, spreadsheet ports.SpreadsheetWriter) *ExportUseCase {
	return &ExportUseCase{repo: repo, spreadsheet: spreadsheet}
}

// ScanText renders every transcript of a scan, one per line, in capture and
// item order.
func (uc *ExportUseCase) ScanText(ctx context.Context, scanID string) (string, string, error) {
	scan, err := uc.repo.GetScan(ctx, scanID)
	if err != nil {
		return "", "", err
	}
	var b strings.Builder
	for _, capture := range scan.Captures {
		writeTranscripts(&b, capture.Items)
	}
	return exportFilename(scan.Title, ".txt"), b.String(), nil
}

func (uc *ExportUseCase) CaptureText(ctx context.Context, captureID string) (string, string, error) {
	capture, err := uc.repo.GetCapture(ctx, captureID)
	if err != nil {
		return "", "", err
	}
	scan, err := uc.repo.GetScan(ctx, capture.ScanID)
	if err != nil {
		return "", "", err
	}
	var b strings.Builder
	writeTranscripts(&b, capture.Items)
	return exportFilename(capture.TitleSuggestion(scan.Title), ".txt"), b.String(), nil
}

func (uc *ExportUseCase) ScanSpreadsheet(ctx context.Context, scanID string, w io.Writer) (string, error) {
	if uc.spreadsheet == nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "export spreadsheet", fmt.Errorf("spreadsheet export is not configured"))
	}
	scan, err := uc.repo.GetScan(ctx, scanID)
	if err != nil {
		return "", err
	}
	if err := uc.spreadsheet.WriteScan(w, scan); err != nil {
		return "", fmt.Errorf("write spreadsheet: %w", err)
	}
	return exportFilename(scan.Title, ".xlsx"), nil
}

func writeTranscripts(b *strings.Builder, items []domain.RecognizedItem) {
	for _, item := range items {
		b.WriteString(item.Transcript)
		b.WriteByte('\n')
	}
}

func exportFilename(title, ext string) string {
	name := domain.SanitizeFilename(title)
	if name == "" {
		name = fallbackExportName
	}
	return name + ext
}
