// Package mcpadapter exposes the scan library as Model Context Protocol tools
// so assistants can search and edit scans.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/docscan/internal/core/ports"
)

const serverName = "docscan"

type Server struct {
	library  ports.ScanLibrary
	exporter ports.ScanExporter
}

func NewServer(library ports.ScanLibrary, exporter ports.ScanExporter) *Server {
	return &Server{library: library, exporter: exporter}
}

// MCPServer builds a server with every scan tool registered.
func (s *Server) MCPServer(version string) *server.MCPServer {
	srv := server.NewMCPServer(serverName, version, server.WithToolCapabilities(false))

	srv.AddTool(mcp.NewTool("list_scans",
		mcp.WithDescription("List scans in library order. Optionally filter by text and favorites."),
		mcp.WithString("query", mcp.Description("Case-insensitive text to look for in titles and transcripts.")),
		mcp.WithBoolean("title_only", mcp.Description("Match the query against titles only.")),
		mcp.WithBoolean("favorites_only", mcp.Description("Only return scans marked as favorite.")),
	), s.listScans)

	srv.AddTool(mcp.NewTool("recent_scans",
		mcp.WithDescription("Return the first few scans in library order."),
	), s.recentScans)

	srv.AddTool(mcp.NewTool("get_scan_text",
		mcp.WithDescription("Return the plain-text transcript of a scan, one recognized item per line."),
		mcp.WithString("scan_id", mcp.Required(), mcp.Description("Scan identifier.")),
	), s.getScanText)

	srv.AddTool(mcp.NewTool("create_scan",
		mcp.WithDescription("Create an empty scan. A default dated title is used when title is empty."),
		mcp.WithString("title", mcp.Description("Scan title.")),
	), s.createScan)

	srv.AddTool(mcp.NewTool("rename_scan",
		mcp.WithDescription("Change the title of a scan."),
		mcp.WithString("scan_id", mcp.Required(), mcp.Description("Scan identifier.")),
		mcp.WithString("title", mcp.Required(), mcp.Description("New title.")),
	), s.renameScan)

	srv.AddTool(mcp.NewTool("set_favorite",
		mcp.WithDescription("Mark or unmark a scan as favorite."),
		mcp.WithString("scan_id", mcp.Required(), mcp.Description("Scan identifier.")),
		mcp.WithBoolean("favorite", mcp.Required(), mcp.Description("Favorite flag.")),
	), s.setFavorite)

	srv.AddTool(mcp.NewTool("item_details",
		mcp.WithDescription("Return the email address, link and phone number found in a recognized item."),
		mcp.WithString("item_id", mcp.Required(), mcp.Description("Recognized item identifier.")),
	), s.itemDetails)

	return srv
}

func (s *Server) ServeStdio(version string) error {
	return server.ServeStdio(s.MCPServer(version))
}

func (s *Server) listScans(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scans, err := s.library.ListScans(ctx, ports.ScanQuery{
		Text:          req.GetString("query", ""),
		TitleOnly:     req.GetBool("title_only", false),
		FavoritesOnly: req.GetBool("favorites_only", false),
	})
	if err != nil {
		return mcp.NewToolResultErrorFromErr("list scans failed", err), nil
	}
	return jsonResult(scans)
}

func (s *Server) recentScans(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scans, err := s.library.RecentScans(ctx)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("recent scans failed", err), nil
	}
	return jsonResult(scans)
}

func (s *Server) getScanText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scanID, err := req.RequireString("scan_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	_, text, err := s.exporter.ScanText(ctx, scanID)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("export scan text failed", err), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) createScan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scan, err := s.library.CreateScan(ctx, ports.CreateScanInput{Title: req.GetString("title", "")})
	if err != nil {
		return mcp.NewToolResultErrorFromErr("create scan failed", err), nil
	}
	return jsonResult(scan)
}

func (s *Server) renameScan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scanID, err := req.RequireString("scan_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	scan, err := s.library.UpdateScan(ctx, scanID, ports.UpdateScanInput{Title: &title})
	if err != nil {
		return mcp.NewToolResultErrorFromErr("rename scan failed", err), nil
	}
	return jsonResult(scan)
}

func (s *Server) setFavorite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scanID, err := req.RequireString("scan_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	favorite, err := req.RequireBool("favorite")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	scan, err := s.library.UpdateScan(ctx, scanID, ports.UpdateScanInput{Favorite: &favorite})
	if err != nil {
		return mcp.NewToolResultErrorFromErr("set favorite failed", err), nil
	}
	return jsonResult(scan)
}

func (s *Server) itemDetails(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	itemID, err := req.RequireString("item_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	details, err := s.library.ItemDetails(ctx, itemID)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("item details failed", err), nil
	}
	return jsonResult(details)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
