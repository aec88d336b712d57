package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gaius-codius/woody-mcp/internal/host"
)

const (
	maxSelectionItems = 10
	maxDetailEntries  = 20
)

// toolDefinitions describes the bridge's tool surface for tools/list.
func toolDefinitions() []Tool {
	return []Tool{
		{
			Name: "execute_code",
			Description: "Execute code in the host's scripting context. Full API access, " +
				"no sandboxing. Returns the value of the final expression as text.",
			InputSchema: ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"code": map[string]interface{}{
						"type":        "string",
						"description": "Code to execute",
					},
				},
				Required: []string{"code"},
			},
		},
		{
			Name: "describe_model",
			Description: "Describe the current model: entity counts, selection, bounds, " +
				"and optionally per-group/component details.",
			InputSchema: ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"include_details": map[string]interface{}{
						"type":        "boolean",
						"description": "Include the first 20 groups and components with per-entity bounds",
						"default":     false,
					},
				},
			},
		},
		{
			Name:        "export_scene",
			Description: "Export the current model to a file. Formats: skp (native save), png, jpg.",
			InputSchema: ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"format": map[string]interface{}{
						"type":        "string",
						"description": "Export format: skp, png, or jpg",
						"default":     "skp",
					},
					"width": map[string]interface{}{
						"type":        "integer",
						"description": "Image width in pixels (raster formats, default 1920)",
					},
					"height": map[string]interface{}{
						"type":        "integer",
						"description": "Image height in pixels (raster formats, default 1080)",
					},
				},
			},
		},
		{
			Name: "get_cut_list",
			Description: "Group the model's groups and components by identical dimensions " +
				"into a cut list with quantities and total volume.",
			InputSchema: ToolInputSchema{
				Type:       "object",
				Properties: map[string]interface{}{},
			},
		},
	}
}

// callTool dispatches by tool name. An unrecognized name is an
// application-level failure, not a protocol error.
func (s *Server) callTool(name string, args map[string]interface{}) ToolCallResult {
	switch name {
	case "execute_code":
		return s.handleExecuteCode(args)
	case "describe_model":
		return s.handleDescribeModel(args)
	case "export_scene":
		return s.handleExportScene(args)
	case "get_cut_list":
		return s.handleGetCutList(args)
	default:
		return errorResult("Unknown tool: %s", name)
	}
}

// handleExecuteCode runs arbitrary code in the host's scripting context.
// This is the bridge's trust boundary: same privileges as the host's own
// console, mitigated only by the loopback bind and the optional secret.
func (s *Server) handleExecuteCode(args map[string]interface{}) ToolCallResult {
	code, _ := args["code"].(string)
	if strings.TrimSpace(code) == "" {
		return errorResult("No code provided")
	}

	model, err := s.host.ActiveModel()
	if err != nil {
		return errorResult("%v", err)
	}

	out, err := model.Eval(code)
	if err != nil {
		// Raw engine fault text goes back to the caller. Deliberate:
		// the caller is debugging its own code.
		return errorResult("%v", err)
	}
	return textResult(out)
}

// handleDescribeModel reports entity counts, selection, bounds and,
// on request, per-group/component details. Read-only.
func (s *Server) handleDescribeModel(args map[string]interface{}) ToolCallResult {
	includeDetails, _ := args["include_details"].(bool)

	model, err := s.host.ActiveModel()
	if err != nil {
		return errorResult("%v", err)
	}

	desc := ModelDescription{
		Name:      model.Name(),
		Units:     model.Units(),
		Selection: SelectionInfo{Items: []SelectionItem{}},
		Bounds:    boundsInfo(model.Bounds()),
	}
	if p := model.Path(); p != "" {
		desc.Path = &p
	}

	for _, e := range model.Entities() {
		desc.EntityCounts.Total++
		switch e.Kind {
		case host.KindGroup:
			desc.EntityCounts.Groups++
			if includeDetails && len(desc.Groups) < maxDetailEntries {
				desc.Groups = append(desc.Groups, entityDetail(e))
			}
		case host.KindComponent:
			desc.EntityCounts.Components++
			if includeDetails && len(desc.Components) < maxDetailEntries {
				desc.Components = append(desc.Components, entityDetail(e))
			}
		case host.KindFace:
			desc.EntityCounts.Faces++
		case host.KindEdge:
			desc.EntityCounts.Edges++
		}
	}

	selection := model.Selection()
	desc.Selection.Count = len(selection)
	for i, e := range selection {
		if i >= maxSelectionItems {
			break
		}
		desc.Selection.Items = append(desc.Selection.Items, SelectionItem{
			ID:   e.ID,
			Type: string(e.Kind),
		})
	}

	data, err := json.Marshal(desc)
	if err != nil {
		return errorResult("Failed to encode model description: %v", err)
	}
	return textResult(string(data))
}

// handleExportScene writes exactly one file per call: the native model
// snapshot for skp, or a viewport render for png/jpg.
func (s *Server) handleExportScene(args map[string]interface{}) ToolCallResult {
	format := "skp"
	if f, ok := args["format"].(string); ok && f != "" {
		format = strings.ToLower(f)
	}
	if format == "jpeg" {
		format = "jpg"
	}
	switch format {
	case "skp", "png", "jpg":
	default:
		return errorResult("Unsupported format: %s. Valid formats: skp, png, jpg", format)
	}

	model, err := s.host.ActiveModel()
	if err != nil {
		return errorResult("%v", err)
	}

	width := intArg(args, "width", s.cfg.DefaultImageWidth)
	height := intArg(args, "height", s.cfg.DefaultImageHeight)
	if format != "skp" {
		if width < 1 || width > s.cfg.MaxImageDimension {
			return errorResult("Width must be between 1 and %d", s.cfg.MaxImageDimension)
		}
		if height < 1 || height > s.cfg.MaxImageDimension {
			return errorResult("Height must be between 1 and %d", s.cfg.MaxImageDimension)
		}
	}

	if err := os.MkdirAll(s.cfg.ExportDir, 0755); err != nil {
		return errorResult("Failed to create export directory: %v", err)
	}
	path := filepath.Join(s.cfg.ExportDir,
		fmt.Sprintf("export_%s.%s", time.Now().Format("20060102_150405"), format))

	var text string
	switch format {
	case "skp":
		if err := model.SaveAs(path); err != nil {
			return errorResult("Export failed: %v", err)
		}
		text = fmt.Sprintf("Exported to: %s", path)
	default:
		opts := host.ImageOptions{
			Width:       width,
			Height:      height,
			Antialias:   true,
			Transparent: format == "png",
		}
		if err := model.View().WriteImage(path, opts); err != nil {
			return errorResult("Export failed: %v", err)
		}
		text = fmt.Sprintf("Exported to: %s (%dx%d)", path, width, height)
	}

	s.pruneExports()
	return textResult(text)
}

// pruneExports removes the oldest export files beyond the configured
// retention count. Retention 0 keeps everything. Pruning failures are
// logged, never surfaced to the caller: the export itself succeeded.
func (s *Server) pruneExports() {
	if s.cfg.ExportRetention <= 0 {
		return
	}
	matches, err := filepath.Glob(filepath.Join(s.cfg.ExportDir, "export_*"))
	if err != nil {
		s.log.Warn().Err(err).Msg("Export retention scan failed")
		return
	}
	if len(matches) <= s.cfg.ExportRetention {
		return
	}
	// Timestamped names sort chronologically.
	sort.Strings(matches)
	for _, stale := range matches[:len(matches)-s.cfg.ExportRetention] {
		if err := os.Remove(stale); err != nil {
			s.log.Warn().Err(err).Str("path", stale).Msg("Failed to prune export")
		} else {
			s.log.Debug().Str("path", stale).Msg("Pruned old export")
		}
	}
}

// handleGetCutList groups the model's groups and components by identical
// dimensions, rounded to whole millimeters and sorted smallest-first so
// orientation doesn't split equal pieces.
func (s *Server) handleGetCutList(args map[string]interface{}) ToolCallResult {
	model, err := s.host.ActiveModel()
	if err != nil {
		return errorResult("%v", err)
	}

	type bucket struct {
		dims  [3]int
		parts []string
	}
	buckets := make(map[string]*bucket)
	totalVolume := 0.0

	for _, e := range model.Entities() {
		if e.Kind != host.KindGroup && e.Kind != host.KindComponent {
			continue
		}
		if e.Bounds.Empty() {
			continue
		}
		dims := sortedDims(e.Bounds)
		key := fmt.Sprintf("%dx%dx%dmm", dims[0], dims[1], dims[2])
		b, ok := buckets[key]
		if !ok {
			b = &bucket{dims: dims}
			buckets[key] = b
		}
		name := e.Name
		if name == "" {
			name = fmt.Sprintf("%s %d", e.Kind, e.ID)
		}
		b.parts = append(b.parts, name)
		totalVolume += float64(dims[0]) * float64(dims[1]) * float64(dims[2]) / 1e9
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := CutListResult{CutList: []CutListEntry{}}
	for _, k := range keys {
		b := buckets[k]
		result.CutList = append(result.CutList, CutListEntry{
			Dimensions: k,
			Quantity:   len(b.parts),
			Parts:      b.parts,
		})
		result.TotalPieces += len(b.parts)
	}
	result.TotalVolume = fmt.Sprintf("%.4f cubic meters", totalVolume)

	data, err := json.Marshal(result)
	if err != nil {
		return errorResult("Failed to encode cut list: %v", err)
	}
	return textResult(string(data))
}

// boundsInfo is the shared bounds helper: nil for an empty volume,
// corners plus extents otherwise.
func boundsInfo(b host.Bounds) *BoundsInfo {
	if b.Empty() {
		return nil
	}
	return &BoundsInfo{
		Min:    b.Min,
		Max:    b.Max,
		Width:  b.Width(),
		Height: b.Height(),
		Depth:  b.Depth(),
	}
}

func entityDetail(e host.Entity) EntityDetail {
	return EntityDetail{
		ID:     e.ID,
		Name:   e.Name,
		Bounds: boundsInfo(e.Bounds),
	}
}

// sortedDims rounds a volume's extents to whole millimeters, ascending.
func sortedDims(b host.Bounds) [3]int {
	d := []float64{b.Width(), b.Height(), b.Depth()}
	sort.Float64s(d)
	return [3]int{round(d[0]), round(d[1]), round(d[2])}
}

func round(v float64) int {
	return int(v + 0.5)
}

// intArg extracts an integer argument, tolerating the float64 that JSON
// decoding produces for every number.
func intArg(args map[string]interface{}, key string, def int) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return def
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []Content{{Type: "text", Text: text}},
	}
}

func errorResult(format string, a ...interface{}) ToolCallResult {
	return ToolCallResult{
		Content: []Content{{Type: "text", Text: fmt.Sprintf(format, a...)}},
		IsError: true,
	}
}
