package xlsx

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/docscan/internal/core/domain"
)

func TestWriteScanOneRowPerItem(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	scan := &domain.Scan{Title: "Receipts: March", Captures: []domain.Capture{
		{Position: 0, Items: []domain.RecognizedItem{
			{Position: 0, Transcript: "Milk 1.29", RecognizedAt: at},
			{Position: 1, Transcript: "4006381333931", IsBarcode: true, RecognizedAt: at},
		}},
		{Position: 1, Items: []domain.RecognizedItem{{Position: 0, Transcript: "Total 3.39", RecognizedAt: at}}},
	}}

	var buf bytes.Buffer
	if err := NewWriter().WriteScan(&buf, scan); err != nil {
		t.Fatalf("WriteScan() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Receipts March")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d", len(rows))
	}
	if rows[0][2] != "Transcript" || rows[2][2] != "4006381333931" || rows[3][0] != "2" {
		t.Fatalf("unexpected rows %q", rows)
	}
	if rows[1][4] != "2025-03-14T09:30:00Z" {
		t.Fatalf("unexpected timestamp %q", rows[1][4])
	}
}

func TestSheetName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", "Scan"},
		{"a/b[c]", "a b c"},
		{"A very long scan title that goes on and on", "A very long scan title that goe"},
	}
	for _, tc := range cases {
		if got := SheetName(tc.in); got != tc.want {
			t.Fatalf("SheetName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
