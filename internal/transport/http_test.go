package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestHTTPFetcher_SendsHeadersAndForm(t *testing.T) {
	var got *http.Request
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	req := NewRequest(srv.URL + "/sp/search")
	req.Method = http.MethodPost
	req.Header.Set("User-Agent", "test-agent/1.0")
	req.Header.Set("Referer", "https://google.com/")
	req.SetCookies([2]string{"theme", "dark"}, [2]string{"safe", "1"})
	req.Form = url.Values{"query": {"golang"}}

	f := NewHTTPFetcher(HTTPOptions{Timeout: 5 * time.Second}, zap.NewNop())
	data, err := f.Fetch(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "<html>ok</html>", string(data))
	require.NotNil(t, got)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "test-agent/1.0", got.UserAgent())
	assert.Equal(t, "https://google.com/", got.Referer())
	assert.Equal(t, "theme=dark; safe=1", got.Header.Get("Cookie"))
	assert.Equal(t, "application/x-www-form-urlencoded", got.Header.Get("Content-Type"))
	assert.Equal(t, "query=golang", body)
}

func TestHTTPFetcher_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{}, zap.NewNop())
	_, err := f.Fetch(context.Background(), NewRequest(srv.URL))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code: 429")
}

func TestHTTPFetcher_BodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0123456789"))
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.WarnLevel)
	f := NewHTTPFetcher(HTTPOptions{MaxBodyBytes: 4}, zap.New(core))
	data, err := f.Fetch(context.Background(), NewRequest(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "0123", string(data))

	entries := logs.FilterMessage("⚠️ response body truncated").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(4), entries[0].ContextMap()["max_body_bytes"])
}

func TestHTTPFetcher_BodyAtLimitNotTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0123"))
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.WarnLevel)
	f := NewHTTPFetcher(HTTPOptions{MaxBodyBytes: 4}, zap.New(core))
	data, err := f.Fetch(context.Background(), NewRequest(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "0123", string(data))
	assert.Zero(t, logs.Len())
}

func TestHTTPFetcher_DoesNotKeepUpstreamCookies(t *testing.T) {
	cookies := make(chan string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookies <- r.Header.Get("Cookie")
		http.SetCookie(w, &http.Cookie{Name: "SRCHHPGUSR", Value: "ADLT=OFF", Path: "/"})
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{Timeout: 5 * time.Second}, zap.NewNop())
	for range 2 {
		req := NewRequest(srv.URL + "/search")
		req.SetCookies([2]string{"SRCHHPGUSR", "SRCHLANG=en&ADLT=MODERATE"})
		_, err := f.Fetch(context.Background(), req)
		require.NoError(t, err)
	}

	assert.Equal(t, "SRCHHPGUSR=SRCHLANG=en&ADLT=MODERATE", <-cookies)
	assert.Equal(t, "SRCHHPGUSR=SRCHLANG=en&ADLT=MODERATE", <-cookies)
}

func TestNewHTTPFetcher_ProxyWithChromeTLS(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	NewHTTPFetcher(HTTPOptions{ProxyURL: "http://127.0.0.1:7890", ChromeTLS: true}, zap.New(core))
	assert.Equal(t, 1, logs.FilterMessage("⚠️ chrome TLS fingerprint is not applied to proxied HTTPS requests").Len())

	core, logs = observer.New(zapcore.WarnLevel)
	NewHTTPFetcher(HTTPOptions{ChromeTLS: true}, zap.New(core))
	assert.Zero(t, logs.Len())
}

func TestHTTPFetcher_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f := NewHTTPFetcher(HTTPOptions{}, zap.NewNop())
	_, err := f.Fetch(ctx, NewRequest(srv.URL))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestHTTPFetcher_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	f := NewHTTPFetcher(HTTPOptions{Timeout: time.Second}, zap.NewNop())
	_, err := f.Fetch(context.Background(), NewRequest(addr))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
}

func TestFetcherFunc(t *testing.T) {
	f := FetcherFunc(func(ctx context.Context, req *Request) ([]byte, error) {
		return []byte(req.URL), nil
	})
	data, err := f.Fetch(context.Background(), NewRequest("https://example.com"))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", string(data))
}

func TestCookiePairs(t *testing.T) {
	header := `theme=simple; disabled_engines=; enabled_plugins="a\054b"; tokens=`
	pairs := CookiePairs(header)
	assert.Equal(t, [][2]string{
		{"theme", "simple"},
		{"disabled_engines", ""},
		{"enabled_plugins", `"a\054b"`},
		{"tokens", ""},
	}, pairs)

	req := NewRequest("https://searx.example.org/search")
	req.SetCookies(pairs...)
	assert.Equal(t, header, req.Header.Get("Cookie"))

	assert.Empty(t, CookiePairs("; =x; novalue"))
}
