package engine

import (
	"go.uber.org/zap"

	"github.com/cliffyan/go-metasearch/internal/config"
	"github.com/cliffyan/go-metasearch/internal/transport"
)

// NewFetchers 按配置创建 HTTP 与浏览器访问方式，返回的 close 用于释放浏览器
func NewFetchers(cfg *config.Config, logger *zap.Logger) (Fetchers, func()) {
	fetchers := Fetchers{
		HTTP: transport.NewHTTPFetcher(transport.HTTPOptions{
			ProxyURL:     cfg.ProxyURL(),
			Timeout:      cfg.Transport.Timeout,
			MaxBodyBytes: cfg.Transport.MaxBodyBytes,
			ChromeTLS:    cfg.Transport.TLSFingerprint,
		}, logger),
	}
	if !cfg.Browser.Enabled {
		return fetchers, func() {}
	}

	browser := transport.NewBrowserFetcher(transport.BrowserOptions{
		ProxyURL: cfg.ProxyURL(),
		Headless: cfg.Browser.Headless,
		ExecPath: cfg.Browser.ExecPath,
		Timeout:  cfg.Transport.Timeout,
		Settle:   cfg.Browser.Settle,
	}, logger)
	fetchers.Browser = browser
	return fetchers, browser.Close
}
