package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cliffyan/go-metasearch/internal/scrape"
)

// Config 应用配置
type Config struct {
	// 服务器配置
	Server ServerConfig `yaml:"server"`

	// 搜索聚合配置
	Search SearchConfig `yaml:"search"`

	// 各引擎配置，键为引擎名称
	Engines map[string]EngineConfig `yaml:"engines"`

	// 代理配置
	Proxy ProxyConfig `yaml:"proxy"`

	// HTTP 访问配置
	Transport TransportConfig `yaml:"transport"`

	// MCP 配置
	MCP MCPConfig `yaml:"mcp"`

	// 浏览器配置
	Browser BrowserConfig `yaml:"browser"`

	// 日志配置
	Log LogConfig `yaml:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int        `yaml:"port"`
	Host string     `yaml:"host"`
	CORS CORSConfig `yaml:"cors"`
	// Metrics 是否暴露 /metrics
	Metrics bool `yaml:"metrics"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Origin  string `yaml:"origin"`
}

// SearchConfig 搜索聚合配置
type SearchConfig struct {
	DefaultEngines []string      `yaml:"default_engines"`
	AllowedEngines []string      `yaml:"allowed_engines"`
	EngineTimeout  time.Duration `yaml:"engine_timeout"`
	MaxConcurrency int           `yaml:"max_concurrency"`
}

// EngineConfig 单个引擎配置
type EngineConfig struct {
	// Enabled 为 nil 时视为启用
	Enabled    *bool            `yaml:"enabled"`
	BaseURL    string           `yaml:"base_url"`
	UseBrowser bool             `yaml:"use_browser"`
	Selectors  scrape.Selectors `yaml:"selectors"`
}

// IsEnabled 引擎是否启用
func (e EngineConfig) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// ProxyConfig 代理配置
type ProxyConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

// TransportConfig HTTP 访问配置
type TransportConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	TLSFingerprint bool          `yaml:"tls_fingerprint"`
}

// MCPConfig MCP 协议配置
type MCPConfig struct {
	ServerName    string         `yaml:"server_name"`
	ServerVersion string         `yaml:"server_version"`
	Tools         MCPToolsConfig `yaml:"tools"`
}

// MCPToolsConfig MCP 工具名称配置
type MCPToolsConfig struct {
	SearchName        string `yaml:"search_name"`
	SearchDescription string `yaml:"search_description"`
}

// BrowserConfig 浏览器配置
type BrowserConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Headless bool          `yaml:"headless"`
	ExecPath string        `yaml:"exec_path"`
	Settle   time.Duration `yaml:"settle"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ValidEngines 支持的上游引擎（封闭集合）
var ValidEngines = []string{"bing", "brave", "duckduckgo", "librex", "mojeek", "searx", "startpage", "wikipedia"}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 3456,
			Host: "0.0.0.0",
			CORS: CORSConfig{
				Enabled: false,
				Origin:  "*",
			},
			Metrics: true,
		},
		Search: SearchConfig{
			DefaultEngines: []string{"duckduckgo", "searx"},
			AllowedEngines: []string{},
			EngineTimeout:  15 * time.Second,
			MaxConcurrency: 8,
		},
		Engines: map[string]EngineConfig{},
		Proxy: ProxyConfig{
			Enabled: false,
			URL:     "http://127.0.0.1:7890",
		},
		Transport: TransportConfig{
			Timeout:      30 * time.Second,
			MaxBodyBytes: 10 << 20,
		},
		MCP: MCPConfig{
			ServerName:    "go-metasearch",
			ServerVersion: "1.0.0",
			Tools: MCPToolsConfig{
				SearchName:        "search",
				SearchDescription: "Search the web through several engines at once (Bing, Brave, DuckDuckGo, LibreX, Mojeek, SearX, Startpage, Wikipedia) with no API key required. Returns merged results with title, URL, description and the engines that found each URL.",
			},
		},
		Browser: BrowserConfig{
			Enabled:  false,
			Headless: true,
			Settle:   time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// configSearchPaths 配置文件搜索路径
var configSearchPaths = []string{
	"config.yaml",
	"config.yml",
	"configs/config.yaml",
	"configs/config.yml",
}

// Load 从 YAML 配置文件加载配置
// 支持通过 CONFIG_FILE 环境变量指定配置文件路径，找不到时使用默认配置
func Load() *Config {
	configPath := findConfigFile()
	if configPath == "" {
		log.Printf("⚠️ No config file found, using default configuration")
		cfg := Default()
		cfg.validate()
		return cfg
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		log.Printf("⚠️ %v, using defaults", err)
		cfg = Default()
		cfg.validate()
		return cfg
	}
	log.Printf("📄 Loaded configuration from: %s", configPath)
	return cfg
}

// LoadFromFile 从指定路径加载配置
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file failed: %w", err)
	}
	return Parse(data)
}

// Parse 解析 YAML 配置内容
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file failed: %w", err)
	}
	cfg.validate()
	return cfg, nil
}

// findConfigFile 查找配置文件
func findConfigFile() string {
	if envPath := os.Getenv("CONFIG_FILE"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
		log.Printf("⚠️ CONFIG_FILE=%s not found, searching default paths", envPath)
	}

	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}
	workDir, _ := os.Getwd()

	searchDirs := []string{workDir}
	if execDir != "" && execDir != workDir {
		searchDirs = append(searchDirs, execDir)
	}

	for _, dir := range searchDirs {
		for _, name := range configSearchPaths {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// validate 验证并修正配置
func (c *Config) validate() {
	def := Default()

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		log.Printf("⚠️ Invalid port %d, using default %d", c.Server.Port, def.Server.Port)
		c.Server.Port = def.Server.Port
	}
	if c.Server.Host == "" {
		c.Server.Host = def.Server.Host
	}
	if c.Server.CORS.Origin == "" {
		c.Server.CORS.Origin = def.Server.CORS.Origin
	}

	if c.Engines == nil {
		c.Engines = map[string]EngineConfig{}
	}
	for name := range c.Engines {
		if !isValidEngine(name) {
			log.Printf("⚠️ Unknown engine section ignored: %s", name)
			delete(c.Engines, name)
		}
	}

	c.Search.AllowedEngines = filterEngines(c.Search.AllowedEngines, "allowed_engines")
	c.Search.DefaultEngines = filterEngines(c.Search.DefaultEngines, "default_engines")

	// 默认引擎必须可用：在允许列表中且未被 engines.<name>.enabled 关闭
	kept := c.Search.DefaultEngines[:0]
	for _, e := range c.Search.DefaultEngines {
		if c.IsEngineAllowed(e) {
			kept = append(kept, e)
		} else {
			log.Printf("⚠️ Default engine %s is not allowed or disabled, dropped", e)
		}
	}
	c.Search.DefaultEngines = kept
	if len(c.Search.DefaultEngines) == 0 {
		c.Search.DefaultEngines = c.fallbackEngines(def.Search.DefaultEngines)
		log.Printf("⚠️ No usable default engine, using %v", c.Search.DefaultEngines)
	}

	if c.Search.EngineTimeout <= 0 {
		c.Search.EngineTimeout = def.Search.EngineTimeout
	}
	if c.Search.MaxConcurrency <= 0 {
		c.Search.MaxConcurrency = def.Search.MaxConcurrency
	}

	if c.Proxy.Enabled && c.Proxy.URL == "" {
		log.Printf("⚠️ Proxy enabled but URL is empty, using default")
		c.Proxy.URL = def.Proxy.URL
	}

	if c.Transport.Timeout <= 0 {
		c.Transport.Timeout = def.Transport.Timeout
	}
	if c.Transport.MaxBodyBytes <= 0 {
		c.Transport.MaxBodyBytes = def.Transport.MaxBodyBytes
	}

	if c.MCP.ServerName == "" {
		c.MCP.ServerName = def.MCP.ServerName
	}
	if c.MCP.ServerVersion == "" {
		c.MCP.ServerVersion = def.MCP.ServerVersion
	}
	if c.MCP.Tools.SearchName == "" {
		c.MCP.Tools.SearchName = def.MCP.Tools.SearchName
	}
	if c.MCP.Tools.SearchDescription == "" {
		c.MCP.Tools.SearchDescription = def.MCP.Tools.SearchDescription
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
		c.Log.Format = strings.ToLower(c.Log.Format)
	default:
		c.Log.Format = def.Log.Format
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}

// fallbackEngines 默认引擎全部不可用时的替补：
// 无允许列表时取内置默认值中可用的引擎，否则取第一个可用引擎
func (c *Config) fallbackEngines(defaults []string) []string {
	if len(c.Search.AllowedEngines) == 0 {
		usable := []string{}
		for _, e := range defaults {
			if c.IsEngineAllowed(e) {
				usable = append(usable, e)
			}
		}
		if len(usable) > 0 {
			return usable
		}
	}

	candidates := c.Search.AllowedEngines
	if len(candidates) == 0 {
		candidates = ValidEngines
	}
	for _, e := range candidates {
		if c.IsEngineAllowed(e) {
			return []string{e}
		}
	}
	return []string{}
}

func filterEngines(in []string, field string) []string {
	out := []string{}
	for _, e := range in {
		e = strings.ToLower(strings.TrimSpace(e))
		switch {
		case !isValidEngine(e):
			log.Printf("⚠️ Invalid search engine in %s ignored: %s", field, e)
		case slices.Contains(out, e):
		default:
			out = append(out, e)
		}
	}
	return out
}

// IsEngineAllowed 检查搜索引擎是否被允许使用
func (c *Config) IsEngineAllowed(engine string) bool {
	if !isValidEngine(engine) || !c.Engine(engine).IsEnabled() {
		return false
	}
	if len(c.Search.AllowedEngines) == 0 {
		return true
	}
	return slices.Contains(c.Search.AllowedEngines, engine)
}

// Engine 获取引擎配置，未配置时返回零值
func (c *Config) Engine(name string) EngineConfig {
	return c.Engines[name]
}

// ProxyURL 获取生效的代理地址
func (c *Config) ProxyURL() string {
	if !c.Proxy.Enabled {
		return ""
	}
	return c.Proxy.URL
}

// Addr 服务器监听地址
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func isValidEngine(engine string) bool {
	return slices.Contains(ValidEngines, engine)
}
