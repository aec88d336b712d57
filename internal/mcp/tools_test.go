package mcp

import (
	"encoding/json"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/gaius-codius/woody-mcp/internal/config"
	"github.com/gaius-codius/woody-mcp/internal/host"
)

func newToolServer(t *testing.T) (*Server, *host.MemoryHost) {
	t.Helper()
	cfg := config.Default()
	cfg.ExportDir = t.TempDir()
	h := host.NewMemoryHost()
	return NewServer(cfg, h), h
}

func resultText(t *testing.T, result ToolCallResult) string {
	t.Helper()
	if len(result.Content) != 1 {
		t.Fatalf("content length = %d, want 1", len(result.Content))
	}
	if result.Content[0].Type != "text" {
		t.Errorf("content type = %q, want text", result.Content[0].Type)
	}
	return result.Content[0].Text
}

func TestHandleExecuteCode_Arithmetic(t *testing.T) {
	server, _ := newToolServer(t)

	result := server.handleExecuteCode(map[string]interface{}{"code": "1+1"})
	if result.IsError {
		t.Fatalf("unexpected error: %v", resultText(t, result))
	}
	if text := resultText(t, result); text != "2" {
		t.Errorf("text = %q, want 2", text)
	}
}

func TestHandleExecuteCode_NoCode(t *testing.T) {
	server, _ := newToolServer(t)

	for _, args := range []map[string]interface{}{
		{},
		{"code": ""},
		{"code": "   "},
	} {
		result := server.callTool("execute_code", args)
		if !result.IsError {
			t.Errorf("args %v: expected error", args)
		}
		if text := resultText(t, result); text != "No code provided" {
			t.Errorf("text = %q, want No code provided", text)
		}
	}
}

func TestHandleExecuteCode_Fault(t *testing.T) {
	server, _ := newToolServer(t)

	result := server.handleExecuteCode(map[string]interface{}{"code": "this is not valid {{"})
	if !result.IsError {
		t.Fatal("expected error for malformed code")
	}
	if resultText(t, result) == "" {
		t.Error("fault message must not be empty")
	}
}

func TestHandleExecuteCode_ModelBinding(t *testing.T) {
	server, _ := newToolServer(t)

	result := server.handleExecuteCode(map[string]interface{}{
		"code": "model.addGroup('Shelf', [0,0,0], [600,300,19]); model.entityCount()",
	})
	if result.IsError {
		t.Fatalf("unexpected error: %v", resultText(t, result))
	}
	if text := resultText(t, result); text != "1" {
		t.Errorf("entityCount = %q, want 1", text)
	}
}

func TestHandleExecuteCode_NoModel(t *testing.T) {
	server, h := newToolServer(t)
	h.Close()

	result := server.handleExecuteCode(map[string]interface{}{"code": "1+1"})
	if !result.IsError {
		t.Fatal("expected error with no model open")
	}
}

func TestHandleDescribeModel_Empty(t *testing.T) {
	server, _ := newToolServer(t)

	result := server.handleDescribeModel(map[string]interface{}{})
	if result.IsError {
		t.Fatalf("unexpected error: %v", resultText(t, result))
	}

	var desc ModelDescription
	if err := json.Unmarshal([]byte(resultText(t, result)), &desc); err != nil {
		t.Fatalf("description is not valid JSON: %v", err)
	}
	if desc.EntityCounts.Total != 0 {
		t.Errorf("total = %d, want 0", desc.EntityCounts.Total)
	}
	if desc.Bounds != nil {
		t.Errorf("bounds = %v, want null", desc.Bounds)
	}
	if desc.Path != nil {
		t.Errorf("path = %v, want null for unsaved model", *desc.Path)
	}
}

func TestHandleDescribeModel_NoModel(t *testing.T) {
	server, h := newToolServer(t)
	h.Close()

	result := server.handleDescribeModel(map[string]interface{}{})
	if !result.IsError {
		t.Fatal("expected error with no model open")
	}
}

func TestHandleDescribeModel_CountsAndBounds(t *testing.T) {
	server, h := newToolServer(t)
	model, _ := h.ActiveModel()
	mem := model.(*host.MemoryModel)
	mem.AddBox(host.KindGroup, "Side", [3]float64{0, 0, 0}, [3]float64{19, 300, 900})
	mem.AddBox(host.KindComponent, "Leg", [3]float64{0, 0, 0}, [3]float64{40, 40, 700})
	mem.AddBox(host.KindFace, "", [3]float64{0, 0, 0}, [3]float64{10, 10, 0})
	mem.AddBox(host.KindEdge, "", [3]float64{0, 0, 0}, [3]float64{10, 0, 0})

	result := server.handleDescribeModel(map[string]interface{}{})
	var desc ModelDescription
	if err := json.Unmarshal([]byte(resultText(t, result)), &desc); err != nil {
		t.Fatalf("description is not valid JSON: %v", err)
	}

	want := EntityCounts{Total: 4, Groups: 1, Components: 1, Faces: 1, Edges: 1}
	if desc.EntityCounts != want {
		t.Errorf("counts = %+v, want %+v", desc.EntityCounts, want)
	}
	if desc.Bounds == nil {
		t.Fatal("bounds missing")
	}
	if desc.Bounds.Depth != 900 {
		t.Errorf("depth = %v, want 900", desc.Bounds.Depth)
	}
	if len(desc.Groups) != 0 {
		t.Errorf("details included without include_details")
	}
}

func TestHandleDescribeModel_DetailsCapped(t *testing.T) {
	server, h := newToolServer(t)
	model, _ := h.ActiveModel()
	mem := model.(*host.MemoryModel)
	for i := 0; i < 50; i++ {
		mem.AddBox(host.KindGroup, "Part", [3]float64{0, 0, 0}, [3]float64{10, 10, 10})
	}

	result := server.handleDescribeModel(map[string]interface{}{"include_details": true})
	var desc ModelDescription
	if err := json.Unmarshal([]byte(resultText(t, result)), &desc); err != nil {
		t.Fatalf("description is not valid JSON: %v", err)
	}

	if desc.EntityCounts.Groups != 50 {
		t.Errorf("groups = %d, want 50", desc.EntityCounts.Groups)
	}
	if len(desc.Groups) != 20 {
		t.Errorf("group details = %d, want 20", len(desc.Groups))
	}
}

func TestHandleDescribeModel_SelectionCapped(t *testing.T) {
	server, h := newToolServer(t)
	model, _ := h.ActiveModel()
	mem := model.(*host.MemoryModel)
	for i := 0; i < 15; i++ {
		mem.AddBox(host.KindEdge, "", [3]float64{0, 0, 0}, [3]float64{1, 0, 0})
	}
	mem.SelectAll()

	result := server.handleDescribeModel(map[string]interface{}{})
	var desc ModelDescription
	if err := json.Unmarshal([]byte(resultText(t, result)), &desc); err != nil {
		t.Fatalf("description is not valid JSON: %v", err)
	}

	if desc.Selection.Count != 15 {
		t.Errorf("selection count = %d, want 15", desc.Selection.Count)
	}
	if len(desc.Selection.Items) != 10 {
		t.Errorf("selection items = %d, want 10", len(desc.Selection.Items))
	}
	if desc.Selection.Items[0].Type != "edge" {
		t.Errorf("item type = %q, want edge", desc.Selection.Items[0].Type)
	}
}

var exportNameRe = regexp.MustCompile(`export_\d{8}_\d{6}\.png$`)

func TestHandleExportScene_PNGDefaults(t *testing.T) {
	server, _ := newToolServer(t)

	result := server.handleExportScene(map[string]interface{}{"format": "png"})
	if result.IsError {
		t.Fatalf("unexpected error: %v", resultText(t, result))
	}
	text := resultText(t, result)

	if !strings.HasPrefix(text, "Exported to: ") {
		t.Fatalf("text = %q, want Exported to: prefix", text)
	}
	if !strings.Contains(text, "1920x1080") {
		t.Errorf("text = %q, want default resolution reported", text)
	}

	path := strings.TrimSuffix(strings.TrimPrefix(text, "Exported to: "), " (1920x1080)")
	if !exportNameRe.MatchString(path) {
		t.Errorf("path %q does not match timestamped export name", path)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("exported file missing: %v", err)
	}
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode exported image: %v", err)
	}
	if format != "png" {
		t.Errorf("format = %q, want png", format)
	}
	if cfg.Width != 1920 || cfg.Height != 1080 {
		t.Errorf("size = %dx%d, want 1920x1080", cfg.Width, cfg.Height)
	}
}

func TestHandleExportScene_JPGCustomSize(t *testing.T) {
	server, h := newToolServer(t)
	model, _ := h.ActiveModel()
	model.(*host.MemoryModel).AddBox(host.KindGroup, "Top", [3]float64{0, 0, 0}, [3]float64{800, 400, 25})

	result := server.handleExportScene(map[string]interface{}{
		"format": "JPEG",
		"width":  float64(640),
		"height": float64(480),
	})
	if result.IsError {
		t.Fatalf("unexpected error: %v", resultText(t, result))
	}
	text := resultText(t, result)
	if !strings.Contains(text, ".jpg") {
		t.Errorf("text = %q, want .jpg path for jpeg alias", text)
	}
	if !strings.Contains(text, "640x480") {
		t.Errorf("text = %q, want 640x480 reported", text)
	}
}

func TestHandleExportScene_SKP(t *testing.T) {
	server, h := newToolServer(t)
	model, _ := h.ActiveModel()
	model.(*host.MemoryModel).AddBox(host.KindGroup, "Top", [3]float64{0, 0, 0}, [3]float64{800, 400, 25})

	result := server.handleExportScene(map[string]interface{}{})
	if result.IsError {
		t.Fatalf("unexpected error: %v", resultText(t, result))
	}
	text := resultText(t, result)
	path := strings.TrimPrefix(text, "Exported to: ")
	if !strings.HasSuffix(path, ".skp") {
		t.Fatalf("path = %q, want .skp", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("exported file missing: %v", err)
	}
	if model.Path() != path {
		t.Errorf("model path = %q, want %q", model.Path(), path)
	}
}

func TestHandleExportScene_UnsupportedFormat(t *testing.T) {
	server, _ := newToolServer(t)

	result := server.handleExportScene(map[string]interface{}{"format": "bmp"})
	if !result.IsError {
		t.Fatal("expected error for bmp")
	}
	text := resultText(t, result)
	if !strings.Contains(text, "skp, png, jpg") {
		t.Errorf("text = %q, want supported formats listed", text)
	}
}

func TestHandleExportScene_DimensionLimits(t *testing.T) {
	server, _ := newToolServer(t)

	result := server.handleExportScene(map[string]interface{}{
		"format": "png",
		"width":  float64(9000),
	})
	if !result.IsError {
		t.Fatal("expected error for oversized width")
	}

	result = server.handleExportScene(map[string]interface{}{
		"format": "png",
		"height": float64(0),
	})
	if !result.IsError {
		t.Fatal("expected error for zero height")
	}
}

func TestHandleExportScene_NoModel(t *testing.T) {
	server, h := newToolServer(t)
	h.Close()

	result := server.handleExportScene(map[string]interface{}{"format": "png"})
	if !result.IsError {
		t.Fatal("expected error with no model open")
	}
}

func TestHandleExportScene_Retention(t *testing.T) {
	server, _ := newToolServer(t)
	server.cfg.ExportRetention = 2

	// Three formats in the same timestamp second give three files.
	for _, format := range []string{"skp", "png", "jpg"} {
		result := server.handleExportScene(map[string]interface{}{"format": format})
		if result.IsError {
			t.Fatalf("export %s failed: %v", format, resultText(t, result))
		}
	}

	matches, err := filepath.Glob(filepath.Join(server.cfg.ExportDir, "export_*"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("exports on disk = %d, want 2 after pruning", len(matches))
	}
}

func TestHandleGetCutList(t *testing.T) {
	server, h := newToolServer(t)
	model, _ := h.ActiveModel()
	mem := model.(*host.MemoryModel)
	mem.AddBox(host.KindGroup, "Left Side", [3]float64{0, 0, 0}, [3]float64{19, 90, 1000})
	mem.AddBox(host.KindGroup, "Right Side", [3]float64{500, 0, 0}, [3]float64{519, 90, 1000})
	mem.AddBox(host.KindComponent, "Shelf", [3]float64{0, 0, 0}, [3]float64{562, 90, 19})
	mem.AddBox(host.KindFace, "", [3]float64{0, 0, 0}, [3]float64{10, 10, 0})

	result := server.handleGetCutList(map[string]interface{}{})
	if result.IsError {
		t.Fatalf("unexpected error: %v", resultText(t, result))
	}

	var cutList CutListResult
	if err := json.Unmarshal([]byte(resultText(t, result)), &cutList); err != nil {
		t.Fatalf("cut list is not valid JSON: %v", err)
	}

	if cutList.TotalPieces != 3 {
		t.Errorf("total pieces = %d, want 3", cutList.TotalPieces)
	}
	if len(cutList.CutList) != 2 {
		t.Fatalf("entries = %d, want 2 (sides grouped, shelf separate)", len(cutList.CutList))
	}
	for _, entry := range cutList.CutList {
		if entry.Dimensions == "19x90x1000mm" && entry.Quantity != 2 {
			t.Errorf("side quantity = %d, want 2", entry.Quantity)
		}
	}
}

func TestHandleGetCutList_NoModel(t *testing.T) {
	server, h := newToolServer(t)
	h.Close()

	result := server.handleGetCutList(map[string]interface{}{})
	if !result.IsError {
		t.Fatal("expected error with no model open")
	}
}
