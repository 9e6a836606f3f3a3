package engine

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/cliffyan/go-metasearch/internal/model"
	"github.com/cliffyan/go-metasearch/internal/scrape"
)

const (
	duckduckgoName    = "duckduckgo"
	duckduckgoBaseURL = "https://html.duckduckgo.com"
)

var duckduckgoSelectors = scrape.Selectors{
	NoResults:   ".no-results",
	Card:        ".results>.result:not(.result--ad)",
	Title:       ".result__title>.result__a",
	URL:         ".result__title>.result__a",
	Description: ".result__snippet",
}

// DuckDuckGoEngine DuckDuckGo HTML 版
type DuckDuckGoEngine struct {
	htmlEngine
}

// NewDuckDuckGoEngine 创建 DuckDuckGo 搜索引擎
func NewDuckDuckGoEngine(opts Options) *DuckDuckGoEngine {
	return &DuckDuckGoEngine{newHTMLEngine(duckduckgoName, duckduckgoBaseURL, duckduckgoSelectors, "", opts)}
}

// Results 执行搜索
func (e *DuckDuckGoEngine) Results(ctx context.Context, query string, page uint32, userAgent string) (model.Results, error) {
	offset := uint64(page) * 20
	params := []string{"q", query, "kl", "wt-wt"}
	if page > 0 {
		params = append(params,
			"s", strconv.FormatUint(offset, 10),
			"dc", strconv.FormatUint(offset+1, 10),
		)
	}
	req, err := e.newRequest(e.baseURL+"/html/?"+encodeQuery(params...), userAgent, "https://duckduckgo.com/")
	if err != nil {
		return nil, err
	}
	req.SetCookies([2]string{"kl", "wt-wt"})

	return e.run(ctx, req, func(href string) (string, bool) {
		return httpOnly(extractDuckDuckGoURL(href))
	})
}

// extractDuckDuckGoURL 解析 //duckduckgo.com/l/?uddg= 形式的跳转链接
func extractDuckDuckGoURL(href string) string {
	if !strings.Contains(href, "duckduckgo.com/l/") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
