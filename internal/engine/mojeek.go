package engine

import (
	"context"
	"strconv"

	"github.com/cliffyan/go-metasearch/internal/model"
	"github.com/cliffyan/go-metasearch/internal/scrape"
)

const (
	mojeekName    = "mojeek"
	mojeekBaseURL = "https://www.mojeek.com"
)

var mojeekSelectors = scrape.Selectors{
	NoResults:   ".result-col>p",
	Card:        "ul.results-standard>li",
	Title:       "h2>a.title",
	URL:         "h2>a.title",
	Description: "p.s",
}

// MojeekEngine Mojeek 独立索引搜索引擎
type MojeekEngine struct {
	htmlEngine
}

// NewMojeekEngine 创建 Mojeek 搜索引擎
func NewMojeekEngine(opts Options) *MojeekEngine {
	return &MojeekEngine{newHTMLEngine(mojeekName, mojeekBaseURL, mojeekSelectors, "No pages found", opts)}
}

// Results 执行搜索
func (e *MojeekEngine) Results(ctx context.Context, query string, page uint32, userAgent string) (model.Results, error) {
	req, err := e.newRequest(
		e.baseURL+"/search?"+encodeQuery(
			"q", query,
			"s", strconv.FormatUint(uint64(page)*10+1, 10),
			"t", "10",
			"lb", "en",
			"arc", "none",
			"safe", "0",
		),
		userAgent, "https://google.com/",
	)
	if err != nil {
		return nil, err
	}
	req.SetCookies(
		[2]string{"arc", "none"},
		[2]string{"date", "1"},
		[2]string{"cdate", "1"},
		[2]string{"lb", "en"},
		[2]string{"hp", "minimal"},
		[2]string{"qss", "1"},
		[2]string{"safe", "0"},
		[2]string{"t", "10"},
	)

	return e.run(ctx, req, httpOnly)
}
