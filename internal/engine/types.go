package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/cliffyan/go-metasearch/internal/model"
	"github.com/cliffyan/go-metasearch/internal/scrape"
	"github.com/cliffyan/go-metasearch/internal/transport"
)

// SearchEngine 上游搜索引擎适配器接口，所有引擎行为一致：
// 成功时返回以 URL 为键的结果，失败时返回 *model.EngineError
type SearchEngine interface {
	// Name 返回引擎名称
	Name() string
	// Results 抓取指定页（从 0 开始）的结果
	Results(ctx context.Context, query string, page uint32, userAgent string) (model.Results, error)
}

// Options 引擎构造参数
type Options struct {
	Fetcher transport.Fetcher
	// BaseURL 为空时使用引擎默认地址
	BaseURL string
	// Selectors 中的非空字段覆盖引擎默认选择器
	Selectors scrape.Selectors
	Logger    *zap.Logger
}

// SearchRequest 聚合搜索请求
type SearchRequest struct {
	Query   string   `json:"query"`
	Page    uint32   `json:"page,omitempty"`
	Engines []string `json:"engines,omitempty"`
	// UserAgent 为空时每次查询随机选取
	UserAgent string `json:"-"`
}
