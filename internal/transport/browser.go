package transport

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// BrowserOptions 无头浏览器配置
type BrowserOptions struct {
	ProxyURL string
	Headless bool
	ExecPath string
	Timeout  time.Duration
	// Settle 页面加载后额外等待的时间
	Settle time.Duration
}

// BrowserFetcher 使用 headless Chrome 渲染结果页的 Fetcher，
// 用于对纯 HTTP 请求返回降级页面的引擎
type BrowserFetcher struct {
	opts   BrowserOptions
	logger *zap.Logger

	mu          sync.Mutex
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancelFunc  context.CancelFunc
	initialized bool
}

// NewBrowserFetcher 创建浏览器 Fetcher，浏览器在第一次请求时启动
func NewBrowserFetcher(opts BrowserOptions, logger *zap.Logger) *BrowserFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &BrowserFetcher{opts: opts, logger: logger}
}

// findChromePath 查找 Chrome 可执行文件路径
func findChromePath() string {
	var paths []string

	switch runtime.GOOS {
	case "darwin":
		paths = []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	case "linux":
		paths = []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
		}
	case "windows":
		paths = []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
			os.Getenv("LOCALAPPDATA") + `\Google\Chrome\Application\chrome.exe`,
		}
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// start 启动浏览器，调用方需持有锁
func (b *BrowserFetcher) start() error {
	if b.initialized {
		return nil
	}

	execPath := b.opts.ExecPath
	if execPath == "" {
		execPath = findChromePath()
	}
	if execPath == "" {
		return fmt.Errorf("chrome/chromium not found")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(execPath),
		chromedp.Flag("headless", b.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("lang", "en-US"),
		chromedp.WindowSize(1920, 1080),
	)
	if b.opts.ProxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(b.opts.ProxyURL))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(b.logger.Sugar().Debugf))

	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return fmt.Errorf("failed to start browser: %w", err)
	}

	b.allocCancel = allocCancel
	b.browserCtx = browserCtx
	b.cancelFunc = cancel
	b.initialized = true
	b.logger.Info("✅ browser initialized", zap.Bool("headless", b.opts.Headless), zap.String("path", execPath))
	return nil
}

// newTab 创建新的标签页上下文
func (b *BrowserFetcher) newTab() (context.Context, context.CancelFunc, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.start(); err != nil {
		return nil, nil, err
	}
	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)
	timeoutCtx, timeoutCancel := context.WithTimeout(tabCtx, b.opts.Timeout)
	return timeoutCtx, func() {
		timeoutCancel()
		tabCancel()
	}, nil
}

// Fetch 实现 Fetcher。表单请求会被转换为带查询参数的 GET 导航。
func (b *BrowserFetcher) Fetch(ctx context.Context, r *Request) ([]byte, error) {
	tabCtx, cancel, err := b.newTab()
	if err != nil {
		return nil, err
	}
	defer cancel()

	// 调用方的取消同样作用于标签页
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	target := r.URL
	if len(r.Form) > 0 {
		target += "?" + r.Form.Encode()
	}

	headers := network.Headers{}
	for k := range r.Header {
		if http.CanonicalHeaderKey(k) == "User-Agent" {
			continue
		}
		headers[k] = r.Header.Get(k)
	}

	setup := []chromedp.Action{
		network.Enable(),
		network.SetExtraHTTPHeaders(headers),
	}
	if ua := r.Header.Get("User-Agent"); ua != "" {
		setup = append(setup, emulation.SetUserAgentOverride(ua))
	}

	var html string
	err = chromedp.Run(tabCtx, setup...)
	if err == nil {
		var resp *network.Response
		resp, err = chromedp.RunResponse(tabCtx, chromedp.Navigate(target))
		if err == nil && resp != nil && (resp.Status < 200 || resp.Status >= 300) {
			return nil, fmt.Errorf("unexpected status code: %d", resp.Status)
		}
	}
	if err == nil {
		err = chromedp.Run(tabCtx,
			chromedp.Sleep(b.opts.Settle),
			chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("browser navigation failed: %w", ctxErr)
		}
		return nil, fmt.Errorf("browser navigation failed: %w", err)
	}

	b.logger.Debug("browser rendered page", zap.String("url", target), zap.Int("bytes", len(html)))
	return []byte(html), nil
}

// Close 关闭浏览器
func (b *BrowserFetcher) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancelFunc != nil {
		b.cancelFunc()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	b.initialized = false
}
