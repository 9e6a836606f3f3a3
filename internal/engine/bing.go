package engine

import (
	"context"
	"encoding/base64"
	"net/url"
	"strconv"
	"strings"

	"github.com/cliffyan/go-metasearch/internal/model"
	"github.com/cliffyan/go-metasearch/internal/scrape"
)

const (
	bingName    = "bing"
	bingBaseURL = "https://www.bing.com"
)

var bingSelectors = scrape.Selectors{
	NoResults:   "#b_results>.b_no",
	Card:        "#b_results>li.b_algo",
	Title:       "h2 a",
	URL:         "h2 a",
	Description: ".b_caption p, p.b_lineclamp2, .b_algoSlug",
}

// BingEngine Bing 搜索引擎
type BingEngine struct {
	htmlEngine
}

// NewBingEngine 创建 Bing 搜索引擎
func NewBingEngine(opts Options) *BingEngine {
	return &BingEngine{newHTMLEngine(bingName, bingBaseURL, bingSelectors, "", opts)}
}

// Results 执行搜索
func (e *BingEngine) Results(ctx context.Context, query string, page uint32, userAgent string) (model.Results, error) {
	req, err := e.newRequest(
		e.baseURL+"/search?"+encodeQuery(
			"q", query,
			"first", strconv.FormatUint(uint64(page)*10+1, 10),
			"form", "QBLH",
			"setlang", "en",
		),
		userAgent, "https://www.bing.com/",
	)
	if err != nil {
		return nil, err
	}
	req.SetCookies(
		[2]string{"_EDGE_V", "1"},
		[2]string{"SRCHD", "AF=NOFORM"},
		[2]string{"_UR", "QS=0&TQS=0"},
		[2]string{"SRCHHPGUSR", "SRCHLANG=en&ADLT=MODERATE"},
	)

	return e.run(ctx, req, func(href string) (string, bool) {
		return httpOnly(extractBingURL(href))
	})
}

// extractBingURL 从 Bing 跳转链接 /ck/a?...&u=a1<base64> 中提取真实 URL
func extractBingURL(href string) string {
	if !strings.Contains(href, "bing.com/ck/a") {
		return href
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}

	u := parsed.Query().Get("u")
	if u == "" {
		return href
	}
	u = strings.TrimPrefix(u, "a1")
	decoded, err := base64.RawURLEncoding.DecodeString(u)
	if err != nil || len(decoded) == 0 {
		return href
	}
	return string(decoded)
}
