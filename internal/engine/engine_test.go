package engine

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cliffyan/go-metasearch/internal/model"
	"github.com/cliffyan/go-metasearch/internal/scrape"
	"github.com/cliffyan/go-metasearch/internal/transport"
)

const testUA = "Mozilla/5.0 (X11; Linux x86_64) test"

// stubFetcher 返回固定响应并记录收到的请求
type stubFetcher struct {
	mu   sync.Mutex
	body []byte
	err  error
	reqs []*transport.Request
}

func (f *stubFetcher) Fetch(_ context.Context, req *transport.Request) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.body, f.err
}

func (f *stubFetcher) last(t *testing.T) *transport.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.reqs)
	return f.reqs[len(f.reqs)-1]
}

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

type engineCase struct {
	name    string
	new     func(Options) SearchEngine
	want    map[string]string // url -> title
	request func(t *testing.T, req *transport.Request)
}

func queryOf(t *testing.T, req *transport.Request) url.Values {
	t.Helper()
	u, err := url.Parse(req.URL)
	require.NoError(t, err)
	return u.Query()
}

var engineCases = []engineCase{
	{
		name: searxName,
		new:  factories[searxName],
		want: map[string]string{
			"https://go.dev/": "The Go Programming Language",
			"https://en.wikipedia.org/wiki/Go_(programming_language)": "Go (programming language) - Wikipedia",
		},
		request: func(t *testing.T, req *transport.Request) {
			assert.True(t, strings.HasPrefix(req.URL, searxBaseURL+"/search?"))
			q := queryOf(t, req)
			assert.Equal(t, "golang tips", q.Get("q"))
			assert.Equal(t, "3", q.Get("pageno"))
			assert.Equal(t, "https://google.com/", req.Header.Get("Referer"))
			assert.Contains(t, req.Header.Get("Cookie"), "categories=general")
			assert.Contains(t, req.Header.Get("Cookie"), "safesearch=2")
			assert.Equal(t, searxPreferences, req.Header.Get("Cookie"))
		},
	},
	{
		name: bingName,
		new:  factories[bingName],
		want: map[string]string{
			"https://go.dev/":     "The Go Programming Language",
			"https://pkg.go.dev/": "Go Packages",
		},
		request: func(t *testing.T, req *transport.Request) {
			q := queryOf(t, req)
			assert.Equal(t, "golang tips", q.Get("q"))
			assert.Equal(t, "21", q.Get("first"))
			assert.Contains(t, req.Header.Get("Cookie"), "_EDGE_V=1")
		},
	},
	{
		name: braveName,
		new:  factories[braveName],
		want: map[string]string{
			"https://go.dev/":     "The Go Programming Language",
			"https://go.dev/doc/": "Documentation",
		},
		request: func(t *testing.T, req *transport.Request) {
			q := queryOf(t, req)
			assert.Equal(t, "2", q.Get("offset"))
			assert.Contains(t, req.Header.Get("Cookie"), "safesearch=moderate")
		},
	},
	{
		name: duckduckgoName,
		new:  factories[duckduckgoName],
		want: map[string]string{
			"https://go.dev/":      "The Go Programming Language",
			"https://go.dev/tour/": "A Tour of Go",
		},
		request: func(t *testing.T, req *transport.Request) {
			assert.True(t, strings.HasPrefix(req.URL, duckduckgoBaseURL+"/html/?"))
			q := queryOf(t, req)
			assert.Equal(t, "40", q.Get("s"))
			assert.Equal(t, "41", q.Get("dc"))
		},
	},
	{
		name: librexName,
		new:  factories[librexName],
		want: map[string]string{
			"https://go.dev/":                 "The Go Programming Language",
			"https://go.dev/doc/effective_go": "Effective Go",
		},
		request: func(t *testing.T, req *transport.Request) {
			q := queryOf(t, req)
			assert.Equal(t, "20", q.Get("p"))
			assert.Contains(t, req.Header.Get("Cookie"), "disable_special=on")
		},
	},
	{
		name: mojeekName,
		new:  factories[mojeekName],
		want: map[string]string{
			"https://go.dev/":          "The Go Programming Language",
			"https://gobyexample.com/": "Go by Example",
		},
		request: func(t *testing.T, req *transport.Request) {
			assert.Equal(t, "21", queryOf(t, req).Get("s"))
		},
	},
	{
		name: startpageName,
		new:  factories[startpageName],
		want: map[string]string{
			"https://go.dev/": "The Go Programming Language",
		},
		request: func(t *testing.T, req *transport.Request) {
			assert.Equal(t, http.MethodPost, req.Method)
			assert.Equal(t, startpageBaseURL+"/sp/search", req.URL)
			assert.Equal(t, "golang tips", req.Form.Get("query"))
			assert.Equal(t, "3", req.Form.Get("page"))
			assert.Contains(t, req.Header.Get("Cookie"), "preferences=")
		},
	},
	{
		name: wikipediaName,
		new:  factories[wikipediaName],
		want: map[string]string{
			"https://en.wikipedia.org/wiki/Gopher": "Gopher",
		},
		request: func(t *testing.T, req *transport.Request) {
			q := queryOf(t, req)
			assert.Equal(t, "golang tips", q.Get("search"))
			assert.Equal(t, "40", q.Get("offset"))
			assert.Equal(t, wikipediaBaseURL+"/", req.Header.Get("Referer"))
		},
	},
}

func TestEngines_Results(t *testing.T) {
	for _, tc := range engineCases {
		t.Run(tc.name, func(t *testing.T) {
			f := &stubFetcher{body: fixture(t, tc.name+".html")}
			eng := tc.new(Options{Fetcher: f})
			assert.Equal(t, tc.name, eng.Name())

			results, err := eng.Results(context.Background(), "golang tips", 2, testUA)
			require.NoError(t, err)

			for u, title := range tc.want {
				r, ok := results[u]
				require.True(t, ok, "missing %s in %v", u, keys(results))
				assert.Equal(t, title, r.Title)
				assert.Equal(t, []string{tc.name}, r.Engines)
				assert.NotEmpty(t, r.Description)
				assert.Equal(t, strings.TrimSpace(r.Description), r.Description)
			}

			req := f.last(t)
			assert.Equal(t, testUA, req.Header.Get("User-Agent"))
			assert.NotEmpty(t, req.Header.Get("Referer"))
			tc.request(t, req)
		})
	}
}

func TestEngines_EmptyResultSet(t *testing.T) {
	for _, tc := range engineCases {
		t.Run(tc.name, func(t *testing.T) {
			f := &stubFetcher{body: fixture(t, tc.name+"_empty.html")}
			_, err := tc.new(Options{Fetcher: f}).Results(context.Background(), "zxqvbnm", 0, testUA)

			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrEmptyResultSet), err.Error())
			assert.Contains(t, err.Error(), tc.name)
		})
	}
}

func TestEngines_RequestError(t *testing.T) {
	for _, tc := range engineCases {
		t.Run(tc.name, func(t *testing.T) {
			f := &stubFetcher{err: errors.New("dial tcp: connection refused")}
			_, err := tc.new(Options{Fetcher: f}).Results(context.Background(), "go", 0, testUA)

			require.Error(t, err)
			assert.Equal(t, model.RequestError, model.KindOf(err))
			assert.Contains(t, err.Error(), "connection refused")
		})
	}
}

func TestEngines_InvalidSelectorOverride(t *testing.T) {
	for _, tc := range engineCases {
		t.Run(tc.name, func(t *testing.T) {
			f := &stubFetcher{body: fixture(t, tc.name+".html")}
			eng := tc.new(Options{Fetcher: f, Selectors: scrape.Selectors{Title: "h3>>>a"}})
			_, err := eng.Results(context.Background(), "go", 0, testUA)

			require.Error(t, err)
			assert.Equal(t, model.UnexpectedError, model.KindOf(err))
			assert.Contains(t, err.Error(), "invalid CSS selector: h3>>>a")
		})
	}
}

func TestEngines_InvalidUserAgent(t *testing.T) {
	f := &stubFetcher{body: fixture(t, "searx.html")}
	_, err := NewSearxEngine(Options{Fetcher: f}).Results(context.Background(), "go", 0, "bad\r\nagent")

	require.Error(t, err)
	assert.Equal(t, model.UnexpectedError, model.KindOf(err))
	assert.Empty(t, f.reqs)
}

func TestEngine_NoFetcher(t *testing.T) {
	_, err := NewBingEngine(Options{}).Results(context.Background(), "go", 0, testUA)
	assert.Equal(t, model.UnexpectedError, model.KindOf(err))
}

func TestEngine_BaseURLOverride(t *testing.T) {
	f := &stubFetcher{body: fixture(t, "searx.html")}
	eng := NewSearxEngine(Options{Fetcher: f, BaseURL: "https://searx.example.org/"})
	_, err := eng.Results(context.Background(), "go", 0, testUA)
	require.NoError(t, err)

	req := f.last(t)
	assert.True(t, strings.HasPrefix(req.URL, "https://searx.example.org/search?"), req.URL)
	assert.Equal(t, "1", queryOf(t, req).Get("pageno"))
}

func TestEngine_SkipsMalformedCard(t *testing.T) {
	f := &stubFetcher{body: fixture(t, "searx.html")}
	results, err := NewSearxEngine(Options{Fetcher: f}).Results(context.Background(), "go", 0, testUA)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestDuckDuckGo_FirstPageOmitsOffset(t *testing.T) {
	f := &stubFetcher{body: fixture(t, "duckduckgo.html")}
	_, err := NewDuckDuckGoEngine(Options{Fetcher: f}).Results(context.Background(), "go", 0, testUA)
	require.NoError(t, err)

	q := queryOf(t, f.last(t))
	assert.Equal(t, "", q.Get("s"))
	assert.Equal(t, "wt-wt", q.Get("kl"))
}

func TestExtractBingURL(t *testing.T) {
	assert.Equal(t, "https://go.dev/", extractBingURL("https://www.bing.com/ck/a?!&&p=x&u=a1aHR0cHM6Ly9nby5kZXYv&ntb=1"))
	assert.Equal(t, "https://example.com/", extractBingURL("https://example.com/"))
	assert.Equal(t, "https://www.bing.com/ck/a?u=a1!!!", extractBingURL("https://www.bing.com/ck/a?u=a1!!!"))
}

func TestExtractDuckDuckGoURL(t *testing.T) {
	assert.Equal(t, "https://go.dev/", extractDuckDuckGoURL("//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2F&rut=1"))
	assert.Equal(t, "https://go.dev/", extractDuckDuckGoURL("https://go.dev/"))
}

func TestResolveURL(t *testing.T) {
	e := newHTMLEngine("x", "https://en.wikipedia.org/", scrape.Selectors{}, "", Options{})

	got, ok := e.resolveURL("/wiki/Gopher")
	assert.True(t, ok)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Gopher", got)

	_, ok = e.resolveURL("javascript:void(0)")
	assert.False(t, ok)

	got, ok = e.resolveURL("https://go.dev/")
	assert.True(t, ok)
	assert.Equal(t, "https://go.dev/", got)
}

func keys(rs model.Results) []string {
	out := make([]string, 0, len(rs))
	for k := range rs {
		out = append(out, k)
	}
	return out
}
