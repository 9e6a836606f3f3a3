package engine

import (
	"context"
	"strconv"

	"github.com/cliffyan/go-metasearch/internal/model"
	"github.com/cliffyan/go-metasearch/internal/scrape"
)

const (
	braveName    = "brave"
	braveBaseURL = "https://search.brave.com"
)

var braveSelectors = scrape.Selectors{
	NoResults:   "#results h4",
	Card:        "#results>.snippet[data-type=\"web\"]",
	Title:       ".title",
	URL:         "a",
	Description: ".snippet-description",
}

// BraveEngine Brave Search
type BraveEngine struct {
	htmlEngine
}

// NewBraveEngine 创建 Brave 搜索引擎
func NewBraveEngine(opts Options) *BraveEngine {
	return &BraveEngine{newHTMLEngine(braveName, braveBaseURL, braveSelectors, "No results found", opts)}
}

// Results 执行搜索
func (e *BraveEngine) Results(ctx context.Context, query string, page uint32, userAgent string) (model.Results, error) {
	req, err := e.newRequest(
		e.baseURL+"/search?"+encodeQuery("q", query, "offset", strconv.FormatUint(uint64(page), 10), "source", "web"),
		userAgent, "https://search.brave.com/",
	)
	if err != nil {
		return nil, err
	}
	req.SetCookies(
		[2]string{"safesearch", "moderate"},
		[2]string{"useLocation", "0"},
		[2]string{"summarizer", "0"},
		[2]string{"country", "all"},
		[2]string{"ui_lang", "en-us"},
	)

	return e.run(ctx, req, httpOnly)
}
