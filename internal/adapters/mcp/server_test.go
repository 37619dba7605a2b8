package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/docscan/internal/core/domain"
	"github.com/kirillkom/docscan/internal/core/ports"
)

type libraryFake struct {
	ports.ScanLibrary

	err        error
	lastQuery  ports.ScanQuery
	lastUpdate ports.UpdateScanInput
}

func (f *libraryFake) ListScans(_ context.Context, query ports.ScanQuery) ([]ports.ScanSummary, error) {
	f.lastQuery = query
	if f.err != nil {
		return nil, f.err
	}
	return []ports.ScanSummary{{ID: "scan-1", Title: "Receipts", ItemCount: 3}}, nil
}

func (f *libraryFake) UpdateScan(_ context.Context, id string, input ports.UpdateScanInput) (*domain.Scan, error) {
	f.lastUpdate = input
	if f.err != nil {
		return nil, f.err
	}
	scan := &domain.Scan{ID: id}
	if input.Title != nil {
		scan.Title = *input.Title
	}
	if input.Favorite != nil {
		scan.Favorite = *input.Favorite
	}
	return scan, nil
}

type exporterFake struct {
	ports.ScanExporter
}

func (exporterFake) ScanText(context.Context, string) (string, string, error) {
	return "Receipts.txt", "Total 12.50\n", nil
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) != 1 {
		t.Fatalf("expected one content item, got %d", len(result.Content))
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestListScansPassesFilters(t *testing.T) {
	library := &libraryFake{}
	srv := NewServer(library, exporterFake{})

	result, err := srv.listScans(context.Background(), callRequest(map[string]any{
		"query":          "total",
		"favorites_only": true,
	}))
	if err != nil {
		t.Fatalf("list scans: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}
	if library.lastQuery != (ports.ScanQuery{Text: "total", FavoritesOnly: true}) {
		t.Fatalf("unexpected query %+v", library.lastQuery)
	}

	var scans []ports.ScanSummary
	if err := json.Unmarshal([]byte(resultText(t, result)), &scans); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(scans) != 1 || scans[0].ItemCount != 3 {
		t.Fatalf("unexpected scans %+v", scans)
	}
}

func TestListScansReportsFailureAsToolError(t *testing.T) {
	srv := NewServer(&libraryFake{err: errors.New("db down")}, exporterFake{})

	result, err := srv.listScans(context.Background(), callRequest(nil))
	if err != nil {
		t.Fatalf("handler must not return protocol errors: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error result")
	}
}

func TestGetScanTextRequiresScanID(t *testing.T) {
	srv := NewServer(&libraryFake{}, exporterFake{})

	result, err := srv.getScanText(context.Background(), callRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("get scan text: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected error for missing scan_id")
	}

	result, err = srv.getScanText(context.Background(), callRequest(map[string]any{"scan_id": "scan-1"}))
	if err != nil {
		t.Fatalf("get scan text: %v", err)
	}
	if got := resultText(t, result); got != "Total 12.50\n" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestSetFavoriteOnlyTouchesFavorite(t *testing.T) {
	library := &libraryFake{}
	srv := NewServer(library, exporterFake{})

	result, err := srv.setFavorite(context.Background(), callRequest(map[string]any{
		"scan_id":  "scan-1",
		"favorite": true,
	}))
	if err != nil {
		t.Fatalf("set favorite: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}
	if library.lastUpdate.Title != nil || library.lastUpdate.Favorite == nil || !*library.lastUpdate.Favorite {
		t.Fatalf("unexpected update %+v", library.lastUpdate)
	}
}

func TestMCPServerRegistersTools(t *testing.T) {
	srv := NewServer(&libraryFake{}, exporterFake{}).MCPServer("test")

	response := srv.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(response)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	for _, name := range []string{"list_scans", "recent_scans", "get_scan_text", "create_scan", "rename_scan", "set_favorite", "item_details"} {
		if !strings.Contains(string(raw), `"name":"`+name+`"`) {
			t.Fatalf("tool %q not listed in %s", name, raw)
		}
	}
}
