package mcp

import "encoding/json"

// JSON-RPC types

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      interface{}   `json:"id"`
	Result  interface{}   `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
}

type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// JSON-RPC error codes used by the bridge. Tool-level failures never use
// these; they travel as a ToolCallResult with IsError set.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeAuthFailed     = -32000
)

// MCP Protocol types

type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
}

type ServerCapabilities struct {
	Tools ToolCapabilities `json:"tools"`
}

type ToolCapabilities struct {
	ListChanged bool `json:"listChanged"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema ToolInputSchema `json:"inputSchema"`
}

type ToolInputSchema struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties"`
	Required   []string               `json:"required,omitempty"`
}

type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

type ToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolCallResult is the uniform shape every tool call returns, whether it
// produced data or failed at the application level.
type ToolCallResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError"`
}

type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Describe-model payload types

type ModelDescription struct {
	Name         string         `json:"name"`
	Path         *string        `json:"path"`
	Units        string         `json:"units"`
	EntityCounts EntityCounts   `json:"entityCounts"`
	Selection    SelectionInfo  `json:"selection"`
	Bounds       *BoundsInfo    `json:"bounds"`
	Groups       []EntityDetail `json:"groups,omitempty"`
	Components   []EntityDetail `json:"components,omitempty"`
}

type EntityCounts struct {
	Total      int `json:"total"`
	Groups     int `json:"groups"`
	Components int `json:"components"`
	Faces      int `json:"faces"`
	Edges      int `json:"edges"`
}

type SelectionInfo struct {
	Count int             `json:"count"`
	Items []SelectionItem `json:"items"`
}

type SelectionItem struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// BoundsInfo describes a non-empty bounding volume by its corner points
// and extents. An empty volume is represented as a null bounds field.
type BoundsInfo struct {
	Min    [3]float64 `json:"min"`
	Max    [3]float64 `json:"max"`
	Width  float64    `json:"width"`
	Height float64    `json:"height"`
	Depth  float64    `json:"depth"`
}

type EntityDetail struct {
	ID     int64       `json:"id"`
	Name   string      `json:"name"`
	Bounds *BoundsInfo `json:"bounds"`
}

// Cut-list payload types

type CutListResult struct {
	CutList     []CutListEntry `json:"cut_list"`
	TotalPieces int            `json:"total_pieces"`
	TotalVolume string         `json:"total_volume"`
}

type CutListEntry struct {
	Dimensions string   `json:"dimensions"`
	Quantity   int      `json:"quantity"`
	Parts      []string `json:"parts"`
}
