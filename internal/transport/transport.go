// Package transport 负责把引擎构造的请求发送到上游并取回 HTML
package transport

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// Request 引擎构造的上游请求
type Request struct {
	Method string
	URL    string
	Header http.Header
	// Form 非空时以 application/x-www-form-urlencoded 作为请求体发送
	Form url.Values
}

// NewRequest 创建 GET 请求
func NewRequest(rawURL string) *Request {
	return &Request{
		Method: http.MethodGet,
		URL:    rawURL,
		Header: make(http.Header),
	}
}

// SetCookies 将 name=value 对拼接为单个 Cookie 头
func (r *Request) SetCookies(pairs ...[2]string) {
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p[0]+"="+p[1])
	}
	if len(parts) > 0 {
		r.Header.Set("Cookie", strings.Join(parts, "; "))
	}
}

// CookiePairs 把 "a=1; b=2" 形式的 cookie 串拆成 name=value 对，值原样保留
func CookiePairs(header string) [][2]string {
	var pairs [][2]string
	for _, part := range strings.Split(header, "; ") {
		name, value, ok := strings.Cut(part, "=")
		if !ok || name == "" {
			continue
		}
		pairs = append(pairs, [2]string{name, value})
	}
	return pairs
}

func (r *Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

// Fetcher 上游访问能力
type Fetcher interface {
	// Fetch 发送请求并返回响应体，非成功状态码也视为错误
	Fetch(ctx context.Context, req *Request) ([]byte, error)
}

// FetcherFunc 函数适配器
type FetcherFunc func(ctx context.Context, req *Request) ([]byte, error)

// Fetch 实现 Fetcher
func (f FetcherFunc) Fetch(ctx context.Context, req *Request) ([]byte, error) {
	return f(ctx, req)
}
