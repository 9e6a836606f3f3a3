package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cliffyan/go-metasearch/internal/config"
	"github.com/cliffyan/go-metasearch/internal/engine"
)

const (
	MCPVersion = "2024-11-05"
)

// Searcher 聚合搜索能力，由 engine.Manager 实现
type Searcher interface {
	Search(ctx context.Context, req engine.SearchRequest) (*engine.Outcome, error)
	GetEngineNames() []string
}

// Handler MCP 请求处理器
type Handler struct {
	config   *config.Config
	searcher Searcher
	logger   *zap.Logger
}

// NewHandler 创建 MCP 处理器
func NewHandler(cfg *config.Config, searcher Searcher, logger *zap.Logger) *Handler {
	return &Handler{
		config:   cfg,
		searcher: searcher,
		logger:   logger.Named("mcp"),
	}
}

// HandleRequest 处理 MCP JSON-RPC 请求，通知消息返回 nil
func (h *Handler) HandleRequest(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	h.logger.Debug("📥 MCP request", zap.String("method", req.Method), zap.Any("id", req.ID))

	if strings.HasPrefix(req.Method, "notifications/") {
		return nil
	}

	var result any
	var rpcErr *RPCError

	switch req.Method {
	case "initialize":
		result = h.handleInitialize()
	case "ping":
		result = struct{}{}
	case "tools/list":
		result = ListToolsResult{Tools: GetTools(h.config, h.searcher.GetEngineNames())}
	case "tools/call":
		result, rpcErr = h.handleToolsCall(ctx, req.Params)
	case "resources/list":
		result = ListResourcesResult{Resources: []any{}}
	case "prompts/list":
		result = ListPromptsResult{Prompts: []any{}}
	default:
		rpcErr = &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("unknown method: %s", req.Method)}
	}

	if rpcErr != nil {
		h.logger.Warn("❌ MCP error", zap.String("method", req.Method), zap.String("error", rpcErr.Message))
		return &JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
	}
	return &JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
}

// handleInitialize 处理初始化请求
func (h *Handler) handleInitialize() InitializeResult {
	return InitializeResult{
		ProtocolVersion: MCPVersion,
		Capabilities: Capability{
			Tools: ToolCapability{ListChanged: false},
		},
		ServerInfo: ServerInfo{
			Name:    h.config.MCP.ServerName,
			Version: h.config.MCP.ServerVersion,
		},
	}
}

// handleToolsCall 处理工具调用请求
func (h *Handler) handleToolsCall(ctx context.Context, params any) (*CallToolResult, *RPCError) {
	var call CallToolParams
	if err := remarshal(params, &call); err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: err.Error()}
	}
	h.logger.Info("🔧 tool call", zap.String("tool", call.Name), zap.Any("args", call.Arguments))

	switch call.Name {
	case h.config.MCP.Tools.SearchName:
		return h.handleSearch(ctx, call.Arguments), nil
	case EnginesToolName:
		return h.handleListEngines(), nil
	default:
		return textResult(fmt.Sprintf("Unknown tool: %s", call.Name), true), nil
	}
}

// handleSearch 执行聚合搜索，全部引擎失败时以错误结果返回
func (h *Handler) handleSearch(ctx context.Context, rawArgs map[string]any) *CallToolResult {
	var args SearchArgs
	if err := remarshal(rawArgs, &args); err != nil {
		return textResult(fmt.Sprintf("Invalid arguments: %v", err), true)
	}

	outcome, err := h.searcher.Search(ctx, engine.SearchRequest{
		Query:   args.Query,
		Page:    args.Page,
		Engines: args.Engines,
	})
	if err != nil {
		return textResult(fmt.Sprintf("Search failed: %v", err), true)
	}

	data, err := json.MarshalIndent(outcome.Response(), "", "  ")
	if err != nil {
		return textResult(fmt.Sprintf("Failed to format results: %v", err), true)
	}
	return textResult(string(data), outcome.AllFailed())
}

func (h *Handler) handleListEngines() *CallToolResult {
	data, err := json.MarshalIndent(map[string][]string{
		"available": h.searcher.GetEngineNames(),
		"default":   h.config.Search.DefaultEngines,
	}, "", "  ")
	if err != nil {
		return textResult(err.Error(), true)
	}
	return textResult(string(data), false)
}

// remarshal 把任意 JSON 值解码到目标结构
func remarshal(in any, out any) error {
	if in == nil {
		return nil
	}
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal params failed: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal params failed: %w", err)
	}
	return nil
}
