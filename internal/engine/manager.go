package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cliffyan/go-metasearch/internal/config"
	"github.com/cliffyan/go-metasearch/internal/metrics"
	"github.com/cliffyan/go-metasearch/internal/model"
	"github.com/cliffyan/go-metasearch/internal/transport"
	"github.com/cliffyan/go-metasearch/internal/useragent"
)

var (
	// ErrEmptyQuery 查询为空
	ErrEmptyQuery = errors.New("query is required")
	// ErrEngineNotAllowed 引擎不存在或未启用
	ErrEngineNotAllowed = errors.New("engine not available")
)

// factories 支持的引擎（封闭集合）
var factories = map[string]func(Options) SearchEngine{
	bingName:       func(o Options) SearchEngine { return NewBingEngine(o) },
	braveName:      func(o Options) SearchEngine { return NewBraveEngine(o) },
	duckduckgoName: func(o Options) SearchEngine { return NewDuckDuckGoEngine(o) },
	librexName:     func(o Options) SearchEngine { return NewLibreXEngine(o) },
	mojeekName:     func(o Options) SearchEngine { return NewMojeekEngine(o) },
	searxName:      func(o Options) SearchEngine { return NewSearxEngine(o) },
	startpageName:  func(o Options) SearchEngine { return NewStartpageEngine(o) },
	wikipediaName:  func(o Options) SearchEngine { return NewWikipediaEngine(o) },
}

// Names 返回所有支持的引擎名称
func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fetchers 引擎可用的访问方式
type Fetchers struct {
	HTTP transport.Fetcher
	// Browser 为 nil 时 use_browser 配置被忽略
	Browser transport.Fetcher
}

// Manager 搜索引擎管理器，负责并发分发查询并合并结果
type Manager struct {
	engines map[string]SearchEngine
	config  *config.Config
	logger  *zap.Logger
	mu      sync.RWMutex
}

// NewManager 创建搜索引擎管理器并按配置注册引擎
func NewManager(cfg *config.Config, fetchers Fetchers, logger *zap.Logger) *Manager {
	m := &Manager{
		engines: make(map[string]SearchEngine),
		config:  cfg,
		logger:  logger,
	}

	for _, name := range Names() {
		if !cfg.IsEngineAllowed(name) {
			continue
		}
		ec := cfg.Engine(name)
		fetcher := fetchers.HTTP
		if ec.UseBrowser {
			if fetchers.Browser != nil {
				fetcher = fetchers.Browser
			} else {
				logger.Warn("⚠️ browser disabled, engine falls back to plain HTTP", zap.String("engine", name))
			}
		}
		m.RegisterEngine(factories[name](Options{
			Fetcher:   fetcher,
			BaseURL:   ec.BaseURL,
			Selectors: ec.Selectors,
			Logger:    logger,
		}))
	}

	logger.Info("✅ search engines initialized", zap.Strings("engines", m.GetEngineNames()))
	return m
}

// RegisterEngine 注册搜索引擎，同名引擎会被替换
func (m *Manager) RegisterEngine(engine SearchEngine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.engines[engine.Name()] = engine
}

// GetEngine 获取搜索引擎
func (m *Manager) GetEngine(name string) (SearchEngine, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	engine, ok := m.engines[name]
	return engine, ok
}

// GetEngineNames 获取已注册的引擎名称
func (m *Manager) GetEngineNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.engines))
	for name := range m.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Failure 单个引擎的失败记录
type Failure struct {
	Engine  string          `json:"engine"`
	Kind    model.ErrorKind `json:"kind"`
	Message string          `json:"message"`
}

// Outcome 一次聚合搜索的结果
type Outcome struct {
	ID      string
	Query   string
	Page    uint32
	Engines []string
	Results model.Results
	// Failures 按请求引擎顺序记录 RequestError 与 UnexpectedError
	Failures []Failure
	// Empty 明确返回无结果的引擎
	Empty []string
}

// AllFailed 所有引擎均不可用（没有结果，且每个引擎都失败）
func (o *Outcome) AllFailed() bool {
	return len(o.Results) == 0 && len(o.Engines) > 0 && len(o.Failures) == len(o.Engines)
}

// SearchResponse 对外输出的搜索结果
type SearchResponse struct {
	ID       string             `json:"id"`
	Query    string             `json:"query"`
	Page     uint32             `json:"page"`
	Engines  []string           `json:"engines"`
	Results  []*model.RawResult `json:"results"`
	Failures []Failure          `json:"failures"`
	Empty    []string           `json:"empty"`
}

// Response 转换为输出结构，结果按引擎覆盖数排序
func (o *Outcome) Response() SearchResponse {
	resp := SearchResponse{
		ID:       o.ID,
		Query:    o.Query,
		Page:     o.Page,
		Engines:  o.Engines,
		Results:  o.Results.Sorted(),
		Failures: o.Failures,
		Empty:    o.Empty,
	}
	if resp.Failures == nil {
		resp.Failures = []Failure{}
	}
	if resp.Empty == nil {
		resp.Empty = []string{}
	}
	return resp
}

type engineOutcome struct {
	results model.Results
	err     error
	elapsed time.Duration
}

// Search 并发查询所选引擎并合并结果。
// 只有请求本身无效时返回 error，单个引擎的失败记录在 Outcome 中。
func (m *Manager) Search(ctx context.Context, req SearchRequest) (*Outcome, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	selected, err := m.resolve(req.Engines)
	if err != nil {
		return nil, err
	}

	ua := req.UserAgent
	if ua == "" {
		ua = useragent.Random()
	}

	outcome := &Outcome{
		ID:      uuid.NewString(),
		Query:   query,
		Page:    req.Page,
		Results: model.Results{},
	}
	for _, eng := range selected {
		outcome.Engines = append(outcome.Engines, eng.Name())
	}
	logger := m.logger.With(zap.String("search_id", outcome.ID))
	logger.Info("🔍 search started",
		zap.String("query", query),
		zap.Uint32("page", req.Page),
		zap.Strings("engines", outcome.Engines),
	)

	start := time.Now()
	slots := make([]engineOutcome, len(selected))
	var g errgroup.Group
	g.SetLimit(m.config.Search.MaxConcurrency)
	for i, eng := range selected {
		g.Go(func() error {
			began := time.Now()
			results, err := m.fetch(ctx, eng, query, req.Page, ua)
			slots[i] = engineOutcome{results: results, err: err, elapsed: time.Since(began)}
			return nil
		})
	}
	_ = g.Wait()

	// 合并在全部引擎完成之后按请求顺序进行，保证文本字段的先写入者确定
	for i, eng := range selected {
		name := eng.Name()
		slot := slots[i]
		if slot.err == nil {
			outcome.Results.Merge(slot.results)
			metrics.RecordEngine(name, metrics.OutcomeSuccess, len(slot.results), slot.elapsed.Seconds())
			logger.Info("✅ engine returned results", zap.String("engine", name), zap.Int("results", len(slot.results)))
			continue
		}

		ee := model.WithEngine(slot.err, name)
		outcomeLabel := ee.Kind.String()
		if ee.Kind == model.EmptyResultSet {
			outcomeLabel = metrics.OutcomeEmpty
		}
		metrics.RecordEngine(name, outcomeLabel, 0, slot.elapsed.Seconds())
		switch ee.Kind {
		case model.EmptyResultSet:
			outcome.Empty = append(outcome.Empty, name)
			logger.Info("engine found no results", zap.String("engine", name))
			continue
		case model.RequestError:
			logger.Warn("⚠️ engine request failed", zap.String("engine", name), zap.Error(ee))
		default:
			logger.Error("❌ engine scraper failed, upstream markup may have changed", zap.String("engine", name), zap.Error(ee))
		}
		outcome.Failures = append(outcome.Failures, Failure{
			Engine:  name,
			Kind:    ee.Kind,
			Message: ee.Error(),
		})
	}

	status := "ok"
	switch {
	case outcome.AllFailed():
		status = "failed"
	case len(outcome.Failures) > 0:
		status = "partial"
	}
	metrics.RecordSearch(status, time.Since(start).Seconds())

	logger.Info("search finished",
		zap.String("status", status),
		zap.Int("results", len(outcome.Results)),
		zap.Int("failures", len(outcome.Failures)),
		zap.Int("empty", len(outcome.Empty)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return outcome, nil
}

// resolve 把请求中的引擎名称解析为已注册的引擎，未指定时使用默认引擎
func (m *Manager) resolve(names []string) ([]SearchEngine, error) {
	if len(names) == 0 {
		names = m.config.Search.DefaultEngines
	}

	seen := make(map[string]bool, len(names))
	selected := make([]SearchEngine, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		eng, ok := m.GetEngine(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrEngineNotAllowed, name)
		}
		selected = append(selected, eng)
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: no engine selected", ErrEngineNotAllowed)
	}
	return selected, nil
}

// fetch 在单独的超时内运行一个引擎，超时或 panic 都不会阻塞其他引擎的收集
func (m *Manager) fetch(ctx context.Context, eng SearchEngine, query string, page uint32, ua string) (model.Results, error) {
	ctx, cancel := context.WithTimeout(ctx, m.config.Search.EngineTimeout)
	defer cancel()

	done := make(chan engineOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- engineOutcome{err: model.NewUnexpectedError(fmt.Sprintf("panic: %v", r), nil)}
			}
		}()
		results, err := eng.Results(ctx, query, page, ua)
		done <- engineOutcome{results: results, err: err}
	}()

	select {
	case out := <-done:
		return out.results, out.err
	case <-ctx.Done():
		return nil, model.NewRequestError("", ctx.Err())
	}
}
