package engine

import (
	"context"
	"strconv"

	"github.com/cliffyan/go-metasearch/internal/model"
	"github.com/cliffyan/go-metasearch/internal/scrape"
	"github.com/cliffyan/go-metasearch/internal/transport"
)

const (
	searxName    = "searx"
	searxBaseURL = "https://searx.work"

	searxNoResults = "we didn't find any results"

	// searxPreferences searx 实例的偏好 cookie：通用分类、安全搜索、启用的子引擎与插件
	searxPreferences = `categories=general; language=auto; locale=en; autocomplete=duckduckgo; image_proxy=1; method=POST; safesearch=2; theme=simple; results_on_new_tab=1; doi_resolver=oadoi.org; simple_style=auto; center_alignment=1; query_in_title=1; infinite_scroll=0; disabled_engines=; enabled_engines="archive is__general\054yep__general\054curlie__general\054currency__general\054ddg definitions__general\054wikidata__general\054duckduckgo__general\054tineye__general\054lingva__general\054startpage__general\054yahoo__general\054wiby__general\054marginalia__general\054alexandria__general\054wikibooks__general\054wikiquote__general\054wikisource__general\054wikiversity__general\054wikivoyage__general\054dictzone__general\054seznam__general\054mojeek__general\054naver__general\054wikimini__general\054brave__general\054petalsearch__general\054goo__general"; disabled_plugins=; enabled_plugins="searx.plugins.hostname_replace\054searx.plugins.oa_doi_rewrite\054searx.plugins.vim_hotkeys"; tokens=; maintab=on; enginetab=on`
)

var searxCookies = transport.CookiePairs(searxPreferences)

var searxSelectors = scrape.Selectors{
	NoResults:   "#urls>.dialog-error>p",
	Card:        ".result",
	Title:       "h3>a",
	URL:         "h3>a",
	Description: ".content",
}

// SearxEngine searx/searxng 实例
type SearxEngine struct {
	htmlEngine
}

// NewSearxEngine 创建 searx 引擎，BaseURL 可指向自建实例
func NewSearxEngine(opts Options) *SearxEngine {
	return &SearxEngine{newHTMLEngine(searxName, searxBaseURL, searxSelectors, searxNoResults, opts)}
}

// Results 执行搜索
func (e *SearxEngine) Results(ctx context.Context, query string, page uint32, userAgent string) (model.Results, error) {
	req, err := e.newRequest(
		e.baseURL+"/search?"+encodeQuery("q", query, "pageno", strconv.FormatUint(uint64(page)+1, 10)),
		userAgent, "https://google.com/",
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetCookies(searxCookies...)

	return e.run(ctx, req, e.resolveURL)
}
