package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	utls "github.com/refraction-networking/utls"
	"go.uber.org/zap"
)

const defaultMaxBodyBytes = 10 << 20

// HTTPOptions HTTP 访问配置
type HTTPOptions struct {
	ProxyURL     string
	Timeout      time.Duration
	MaxBodyBytes int64
	// ChromeTLS 使用 Chrome 的 TLS 指纹握手
	ChromeTLS bool
}

// HTTPFetcher 基于 net/http 的 Fetcher。
// 不保存上游设置的 cookie，每个请求只携带引擎自己构造的 Cookie 头
type HTTPFetcher struct {
	client  *http.Client
	maxBody int64
	logger  *zap.Logger
}

// NewHTTPFetcher 创建 HTTP Fetcher
func NewHTTPFetcher(opts HTTPOptions, logger *zap.Logger) *HTTPFetcher {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	if opts.ProxyURL != "" {
		if proxy, err := url.Parse(opts.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxy)
		} else {
			logger.Warn("⚠️ invalid proxy url ignored", zap.String("proxy", opts.ProxyURL), zap.Error(err))
		}
	}
	if opts.ChromeTLS {
		// utls 连接只协商 http/1.1，避免 net/http 收到 h2 帧
		transport.DialTLSContext = dialChromeTLS
		transport.ForceAttemptHTTP2 = false
		// 经代理的 HTTPS 走 CONNECT 隧道，由 net/http 自己握手，不会调用 DialTLSContext
		if opts.ProxyURL != "" {
			logger.Warn("⚠️ chrome TLS fingerprint is not applied to proxied HTTPS requests", zap.String("proxy", opts.ProxyURL))
		}
	}

	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		maxBody: maxBody,
		logger:  logger,
	}
}

// Fetch 实现 Fetcher
func (f *HTTPFetcher) Fetch(ctx context.Context, r *Request) ([]byte, error) {
	var body io.Reader
	if len(r.Form) > 0 {
		body = strings.NewReader(r.Form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, r.method(), r.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(snippet))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read body failed: %w", err)
	}
	if int64(len(data)) > f.maxBody {
		data = data[:f.maxBody]
		f.logger.Warn("⚠️ response body truncated",
			zap.String("url", r.URL),
			zap.Int64("max_body_bytes", f.maxBody),
		)
	}

	f.logger.Debug("upstream responded",
		zap.String("url", r.URL),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return data, nil
}

// dialChromeTLS 使用 Chrome 指纹建立 TLS 连接
func dialChromeTLS(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	rawConn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(addr)
	conn := utls.UClient(rawConn, &utls.Config{
		ServerName: host,
		NextProtos: []string{"http/1.1"},
	}, utls.HelloCustom)

	hello, err := utls.UTLSIdToSpec(utls.HelloChrome_Auto)
	if err != nil {
		rawConn.Close()
		return nil, err
	}
	for _, ext := range hello.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}
	if err := conn.ApplyPreset(&hello); err != nil {
		rawConn.Close()
		return nil, err
	}

	if err := conn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return conn, nil
}
