package engine

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/cliffyan/go-metasearch/internal/model"
	"github.com/cliffyan/go-metasearch/internal/scrape"
)

const (
	startpageName    = "startpage"
	startpageBaseURL = "https://www.startpage.com"

	// startpagePreferences 禁用家庭过滤、英文界面、每页 10 条
	startpagePreferences = "connect_to_serverEEE0N1Ndate_timeEEEworldN1Ndisable_family_filterEEE1N1Ndisable_open_in_new_windowEEE0N1Nenable_post_methodEEE1N1Nenable_proxy_safety_suggestEEE0N1Nenable_stay_controlEEE0N1Ninstant_answersEEE1N1Nlang_homepageEEEs%2Fdevice%2FenN1NlanguageEEEenglishN1Nlanguage_uiEEEenglishN1Nnum_of_resultsEEE10N1Nsearch_results_regionEEEallN1NsuggestionsEEE0N1Nwt_unitEEEcelsius"
)

var startpageSelectors = scrape.Selectors{
	NoResults:   ".no-results",
	Card:        ".w-gl__result",
	Title:       "h3",
	URL:         "a.w-gl__result-url",
	Description: "p.w-gl__description",
}

// StartpageEngine Startpage（Google 结果的隐私前端）
type StartpageEngine struct {
	htmlEngine
}

// NewStartpageEngine 创建 Startpage 搜索引擎
func NewStartpageEngine(opts Options) *StartpageEngine {
	return &StartpageEngine{newHTMLEngine(startpageName, startpageBaseURL, startpageSelectors, "", opts)}
}

// Results 执行搜索，Startpage 使用 POST 表单
func (e *StartpageEngine) Results(ctx context.Context, query string, page uint32, userAgent string) (model.Results, error) {
	req, err := e.newRequest(e.baseURL+"/sp/search", userAgent, e.baseURL+"/")
	if err != nil {
		return nil, err
	}
	req.Method = http.MethodPost
	req.Form = url.Values{
		"query": {query},
		"page":  {strconv.FormatUint(uint64(page)+1, 10)},
		"cat":   {"web"},
		"t":     {"device"},
		"lui":   {"english"},
		"abp":   {"1"},
	}
	req.SetCookies([2]string{"preferences", startpagePreferences})

	return e.run(ctx, req, httpOnly)
}
