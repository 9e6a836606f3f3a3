package engine

import (
	"context"
	"strconv"

	"github.com/cliffyan/go-metasearch/internal/model"
	"github.com/cliffyan/go-metasearch/internal/scrape"
)

const (
	librexName    = "librex"
	librexBaseURL = "https://search.ahwx.org"
)

var librexSelectors = scrape.Selectors{
	NoResults:   ".text-result-wrapper>p",
	// 拼写建议块也使用 text-result-container
	Card:        ".text-result-wrapper>.text-result-container:not(.did-you-mean)",
	Title:       "a>h2",
	URL:         "a",
	Description: ".text-result-container>span",
}

// LibreXEngine LibreX/LibreY 前端实例
type LibreXEngine struct {
	htmlEngine
}

// NewLibreXEngine 创建 LibreX 搜索引擎
func NewLibreXEngine(opts Options) *LibreXEngine {
	return &LibreXEngine{newHTMLEngine(librexName, librexBaseURL, librexSelectors, "No results found", opts)}
}

// Results 执行搜索
func (e *LibreXEngine) Results(ctx context.Context, query string, page uint32, userAgent string) (model.Results, error) {
	req, err := e.newRequest(
		e.baseURL+"/search.php?"+encodeQuery("q", query, "p", strconv.FormatUint(uint64(page)*10, 10), "t", "0"),
		userAgent, "https://google.com/",
	)
	if err != nil {
		return nil, err
	}
	req.SetCookies(
		[2]string{"theme", "amoled"},
		[2]string{"disable_special", "on"},
		[2]string{"disable_frontends", "on"},
		[2]string{"language", ""},
		[2]string{"number_of_results", "10"},
		[2]string{"safe_search", "on"},
		[2]string{"save", "1"},
	)

	return e.run(ctx, req, e.resolveURL)
}
