package engine

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/http/httpguts"

	"github.com/cliffyan/go-metasearch/internal/model"
	"github.com/cliffyan/go-metasearch/internal/scrape"
	"github.com/cliffyan/go-metasearch/internal/transport"
)

// htmlEngine 抓取 HTML 结果页的通用流程，各引擎只提供请求构造、选择器和无结果标记
type htmlEngine struct {
	name      string
	baseURL   string
	fetcher   transport.Fetcher
	selectors scrape.Selectors
	sentinel  string
	logger    *zap.Logger
}

func newHTMLEngine(name, defaultBase string, selectors scrape.Selectors, sentinel string, opts Options) htmlEngine {
	base := opts.BaseURL
	if base == "" {
		base = defaultBase
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return htmlEngine{
		name:      name,
		baseURL:   strings.TrimRight(base, "/"),
		fetcher:   opts.Fetcher,
		selectors: selectors.Override(opts.Selectors),
		sentinel:  sentinel,
		logger:    logger.With(zap.String("engine", name)),
	}
}

// Name 返回引擎名称
func (e *htmlEngine) Name() string {
	return e.name
}

// newRequest 创建带通用请求头的请求，userAgent 含非法字符时返回 UnexpectedError
func (e *htmlEngine) newRequest(target, userAgent, referer string) (*transport.Request, error) {
	if !httpguts.ValidHeaderFieldValue(userAgent) {
		return nil, model.WithEngine(model.NewUnexpectedError("invalid user agent header value", nil), e.name)
	}
	req := transport.NewRequest(target)
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	req.Header.Set("Referer", referer)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	return req, nil
}

// run 发送请求并解析结果页
func (e *htmlEngine) run(ctx context.Context, req *transport.Request, resolve func(string) (string, bool)) (model.Results, error) {
	if e.fetcher == nil {
		return nil, model.WithEngine(model.NewUnexpectedError("no fetcher configured", nil), e.name)
	}

	body, err := e.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, model.WithEngine(model.NewRequestError("", err), e.name)
	}

	parser, err := scrape.Compile(e.selectors)
	if err != nil {
		return nil, model.WithEngine(err, e.name)
	}

	doc, err := scrape.Parse(body)
	if err != nil {
		return nil, model.WithEngine(err, e.name)
	}

	if parser.NoResults(doc, e.sentinel) {
		return nil, model.WithEngine(model.NewEmptyResultSet("upstream reported no results"), e.name)
	}

	results, stats := parser.Extract(doc, e.name, resolve)
	if stats.Skipped > 0 {
		e.logger.Warn("⚠️ skipped malformed result cards",
			zap.Int("cards", stats.Cards),
			zap.Int("skipped", stats.Skipped),
		)
	}
	e.logger.Debug("🔍 parsed result page",
		zap.Int("bytes", len(body)),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// resolveURL 将相对链接解析为基于引擎地址的绝对链接，只接受 http(s)
func (e *htmlEngine) resolveURL(href string) (string, bool) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if !ref.IsAbs() {
		base, err := url.Parse(e.baseURL + "/")
		if err != nil {
			return "", false
		}
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return "", false
	}
	return ref.String(), true
}

// httpOnly 只接受绝对 http(s) 链接
func httpOnly(href string) (string, bool) {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href, true
	}
	return "", false
}

// encodeQuery 构造查询串
func encodeQuery(pairs ...string) string {
	params := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		params.Set(pairs[i], pairs[i+1])
	}
	return params.Encode()
}
