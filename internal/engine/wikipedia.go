package engine

import (
	"context"
	"strconv"

	"github.com/cliffyan/go-metasearch/internal/model"
	"github.com/cliffyan/go-metasearch/internal/scrape"
)

const (
	wikipediaName    = "wikipedia"
	wikipediaBaseURL = "https://en.wikipedia.org"
	wikipediaLimit   = 20
)

var wikipediaSelectors = scrape.Selectors{
	NoResults:   "p.mw-search-nonefound",
	Card:        "ul.mw-search-results>li.mw-search-result",
	Title:       ".mw-search-result-heading>a",
	URL:         ".mw-search-result-heading>a",
	Description: ".searchresult",
}

// WikipediaEngine 维基百科全文搜索
type WikipediaEngine struct {
	htmlEngine
}

// NewWikipediaEngine 创建维基百科搜索引擎，BaseURL 可指向其他语言站点
func NewWikipediaEngine(opts Options) *WikipediaEngine {
	return &WikipediaEngine{newHTMLEngine(wikipediaName, wikipediaBaseURL, wikipediaSelectors, "", opts)}
}

// Results 执行搜索，结果链接是站内相对路径
func (e *WikipediaEngine) Results(ctx context.Context, query string, page uint32, userAgent string) (model.Results, error) {
	req, err := e.newRequest(
		e.baseURL+"/w/index.php?"+encodeQuery(
			"search", query,
			"title", "Special:Search",
			"profile", "default",
			"fulltext", "1",
			"ns0", "1",
			"limit", strconv.Itoa(wikipediaLimit),
			"offset", strconv.FormatUint(uint64(page)*wikipediaLimit, 10),
		),
		userAgent, e.baseURL+"/",
	)
	if err != nil {
		return nil, err
	}

	return e.run(ctx, req, e.resolveURL)
}
