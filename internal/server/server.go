package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/cliffyan/go-metasearch/internal/config"
	"github.com/cliffyan/go-metasearch/internal/engine"
	"github.com/cliffyan/go-metasearch/internal/mcp"
	"github.com/cliffyan/go-metasearch/internal/metrics"
)

const sessionHeader = "mcp-session-id"

// Server 搜索 HTTP 服务器，提供 REST 搜索接口与 MCP 端点
type Server struct {
	config     *config.Config
	searcher   mcp.Searcher
	mcpHandler *mcp.Handler
	logger     *zap.Logger
	sessions   map[string]*Session
	sessionsMu sync.RWMutex
	keepalive  time.Duration

	httpServer *http.Server
}

// Session 会话信息
type Session struct {
	ID        string
	CreatedAt time.Time
}

// New 创建新的服务器实例
func New(cfg *config.Config, searcher mcp.Searcher, logger *zap.Logger) *Server {
	return &Server{
		config:     cfg,
		searcher:   searcher,
		mcpHandler: mcp.NewHandler(cfg, searcher, logger),
		logger:     logger.Named("server"),
		sessions:   make(map[string]*Session),
		keepalive:  30 * time.Second,
	}
}

// Handler 构建路由，CORS 按配置启用
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// 聚合搜索
	mux.HandleFunc("/search", s.handleSearch)

	// MCP 端点
	mux.HandleFunc("/mcp", s.handleMCP)

	// SSE 端点（兼容旧客户端）
	mux.HandleFunc("/sse", s.handleSSE)
	mux.HandleFunc("/messages", s.handleMessages)

	// 健康检查
	mux.HandleFunc("/health", s.handleHealth)

	if s.config.Server.Metrics {
		mux.Handle("/metrics", metrics.Handler())
	}

	var handler http.Handler = mux
	if s.config.Server.CORS.Enabled {
		c := cors.New(cors.Options{
			AllowedOrigins:   []string{s.config.Server.CORS.Origin},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", sessionHeader},
			ExposedHeaders:   []string{sessionHeader},
			AllowCredentials: true,
		})
		handler = c.Handler(mux)
	}
	return handler
}

// Start 启动 HTTP 服务器，阻塞直到服务器关闭
func (s *Server) Start() error {
	addr := s.config.Addr()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("🚀 starting HTTP server", zap.String("addr", addr))
	s.logger.Info("🔍 search endpoint", zap.String("url", fmt.Sprintf("http://%s/search?q=", addr)))
	s.logger.Info("📡 MCP endpoint", zap.String("url", fmt.Sprintf("http://%s/mcp", addr)))
	s.logger.Info("❤️ health check", zap.String("url", fmt.Sprintf("http://%s/health", addr)))
	if s.config.Server.Metrics {
		s.logger.Info("📊 metrics", zap.String("url", fmt.Sprintf("http://%s/metrics", addr)))
	}

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 优雅关闭服务器
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleSearch 处理 GET /search?q=&page=&engines=a,b
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	params := r.URL.Query()
	req := engine.SearchRequest{Query: params.Get("q")}

	if p := params.Get("page"); p != "" {
		page, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid page: " + p})
			return
		}
		req.Page = uint32(page)
	}
	if e := params.Get("engines"); e != "" {
		req.Engines = strings.Split(e, ",")
	}

	outcome, err := s.searcher.Search(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrEmptyQuery) || errors.Is(err, engine.ErrEngineNotAllowed) {
			status = http.StatusBadRequest
		}
		s.writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	status := http.StatusOK
	if outcome.AllFailed() {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, outcome.Response())
}

// handleMCP 处理 MCP 请求
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleMCPPost(w, r)
	case http.MethodGet:
		s.handleMCPGet(w, r)
	case http.MethodDelete:
		s.handleMCPDelete(w, r)
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleMCPPost 处理 MCP POST 请求
func (s *Server) handleMCPPost(w http.ResponseWriter, r *http.Request) {
	var req mcp.JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, nil, mcp.CodeParseError, "Parse error: "+err.Error())
		return
	}

	sessionID := r.Header.Get(sessionHeader)
	switch {
	case req.Method == "initialize" && sessionID == "":
		sessionID = s.createSession()
		w.Header().Set(sessionHeader, sessionID)
	case sessionID != "" && !s.hasSession(sessionID):
		http.Error(w, "Invalid session ID", http.StatusNotFound)
		return
	}

	s.respondRPC(r.Context(), w, req)
}

// handleMCPGet 处理 MCP GET 请求（SSE 流）
func (s *Server) handleMCPGet(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		http.Error(w, "Missing session ID", http.StatusBadRequest)
		return
	}
	if !s.hasSession(sessionID) {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return
	}

	s.stream(w, r, `{"uri": "/mcp"}`, nil)
}

// handleMCPDelete 处理 MCP DELETE 请求（关闭会话）
func (s *Server) handleMCPDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		http.Error(w, "Missing session ID", http.StatusBadRequest)
		return
	}

	s.deleteSession(sessionID)
	w.WriteHeader(http.StatusOK)
}

// handleSSE 处理 SSE 端点（兼容旧客户端）
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := s.createSession()
	s.logger.Info("📡 SSE connection established", zap.String("session", sessionID))
	s.stream(w, r, fmt.Sprintf(`{"uri": "/messages?sessionId=%s"}`, sessionID), func() {
		s.deleteSession(sessionID)
		s.logger.Info("📡 SSE connection closed", zap.String("session", sessionID))
	})
}

// handleMessages 旧客户端通过 /messages?sessionId= 发送 JSON-RPC 请求
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.hasSession(r.URL.Query().Get("sessionId")) {
		http.Error(w, "Invalid session ID", http.StatusNotFound)
		return
	}

	var req mcp.JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, nil, mcp.CodeParseError, "Parse error: "+err.Error())
		return
	}
	s.respondRPC(r.Context(), w, req)
}

// respondRPC 执行 JSON-RPC 请求，通知消息返回 202
func (s *Server) respondRPC(ctx context.Context, w http.ResponseWriter, req mcp.JSONRPCRequest) {
	resp := s.mcpHandler.HandleRequest(ctx, req)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// stream 输出 SSE 端点事件并保持连接，直到客户端断开
func (s *Server) stream(w http.ResponseWriter, r *http.Request, endpoint string, onClose func()) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}
	if onClose != nil {
		defer onClose()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	fmt.Fprintf(w, "event: endpoint\ndata: %s\n\n", endpoint)
	flusher.Flush()

	ticker := time.NewTicker(s.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func (s *Server) createSession() string {
	id := uuid.NewString()
	s.sessionsMu.Lock()
	s.sessions[id] = &Session{ID: id, CreatedAt: time.Now()}
	s.sessionsMu.Unlock()
	s.logger.Debug("📝 created session", zap.String("session", id))
	return id
}

func (s *Server) hasSession(id string) bool {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	_, ok := s.sessions[id]
	return ok
}

func (s *Server) deleteSession(id string) {
	s.sessionsMu.Lock()
	delete(s.sessions, id)
	s.sessionsMu.Unlock()
	s.logger.Debug("🗑️ deleted session", zap.String("session", id))
}

// handleHealth 健康检查端点
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": s.config.MCP.ServerName,
		"version": s.config.MCP.ServerVersion,
		"engines": s.searcher.GetEngineNames(),
	})
}

// sendError 发送 JSON-RPC 错误响应
func (s *Server) sendError(w http.ResponseWriter, id any, code int, message string) {
	s.writeJSON(w, http.StatusOK, mcp.JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &mcp.RPCError{
			Code:    code,
			Message: message,
		},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("❌ failed to encode response", zap.Error(err))
	}
}
