// Package scrape 从搜索结果页中按命名选择器提取结果卡片
package scrape

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/cliffyan/go-metasearch/internal/model"
)

// Selectors 一个引擎结果页的 CSS 选择器集合
type Selectors struct {
	NoResults   string `yaml:"no_results"`
	Card        string `yaml:"card"`
	Title       string `yaml:"title"`
	URL         string `yaml:"url"`
	Description string `yaml:"description"`
}

// Override 用非空字段覆盖当前选择器
func (s Selectors) Override(o Selectors) Selectors {
	if o.NoResults != "" {
		s.NoResults = o.NoResults
	}
	if o.Card != "" {
		s.Card = o.Card
	}
	if o.Title != "" {
		s.Title = o.Title
	}
	if o.URL != "" {
		s.URL = o.URL
	}
	if o.Description != "" {
		s.Description = o.Description
	}
	return s
}

// Parser 编译后的选择器
type Parser struct {
	noResults   goquery.Matcher
	card        goquery.Matcher
	title       goquery.Matcher
	url         goquery.Matcher
	description goquery.Matcher
}

// Stats 一次提取的统计
type Stats struct {
	Cards   int
	Skipped int
}

// Compile 编译选择器，失败时返回携带原始选择器文本的 UnexpectedError
func Compile(s Selectors) (*Parser, error) {
	p := &Parser{}
	var err error
	if s.NoResults != "" {
		if p.noResults, err = compile(s.NoResults); err != nil {
			return nil, err
		}
	}
	required := []struct {
		name string
		sel  string
		dst  *goquery.Matcher
	}{
		{"card", s.Card, &p.card},
		{"title", s.Title, &p.title},
		{"url", s.URL, &p.url},
		{"description", s.Description, &p.description},
	}
	for _, r := range required {
		if strings.TrimSpace(r.sel) == "" {
			return nil, model.NewUnexpectedError("missing "+r.name+" selector", nil)
		}
		if *r.dst, err = compile(r.sel); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func compile(sel string) (goquery.Matcher, error) {
	m, err := cascadia.Compile(sel)
	if err != nil {
		return nil, model.NewUnexpectedError("invalid CSS selector: "+sel, err)
	}
	return m, nil
}

// Parse 解析 HTML 文档
func Parse(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, model.NewUnexpectedError("parse HTML failed", err)
	}
	return doc, nil
}

// NoResults 检查上游是否明确返回“无结果”。
// sentinel 为空时只要节点存在即视为无结果，否则要求节点文本包含 sentinel（忽略大小写）。
func (p *Parser) NoResults(doc *goquery.Document, sentinel string) bool {
	if p.noResults == nil {
		return false
	}
	nodes := doc.FindMatcher(p.noResults)
	if nodes.Length() == 0 {
		return false
	}
	if sentinel == "" {
		return true
	}
	sentinel = strings.ToLower(sentinel)
	found := false
	nodes.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		found = strings.Contains(strings.ToLower(normalizeSpace(s.Text())), sentinel)
		return !found
	})
	return found
}

// Card 单个结果卡片
type Card struct {
	sel *goquery.Selection
	p   *Parser
}

// Selection 返回卡片的底层节点
func (c Card) Selection() *goquery.Selection {
	return c.sel
}

// Title 标题文本
func (c Card) Title() (string, bool) {
	return c.text(c.p.title)
}

// Description 描述文本
func (c Card) Description() (string, bool) {
	return c.text(c.p.description)
}

// Href 链接地址
func (c Card) Href() (string, bool) {
	node := c.sel.FindMatcher(c.p.url).First()
	if node.Length() == 0 {
		return "", false
	}
	href, ok := node.Attr("href")
	if !ok {
		return "", false
	}
	href = strings.TrimSpace(href)
	return href, href != ""
}

func (c Card) text(m goquery.Matcher) (string, bool) {
	node := c.sel.FindMatcher(m).First()
	if node.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(node.Text()), true
}

// Cards 遍历结果卡片，fn 返回 false 的卡片计为跳过
func (p *Parser) Cards(doc *goquery.Document, fn func(Card) (*model.RawResult, bool)) (model.Results, Stats) {
	results := model.Results{}
	var stats Stats
	doc.FindMatcher(p.card).Each(func(_ int, s *goquery.Selection) {
		stats.Cards++
		r, ok := fn(Card{sel: s, p: p})
		if !ok || r == nil || r.URL == "" {
			stats.Skipped++
			return
		}
		results.Add(r)
	})
	return results, stats
}

// Extract 默认提取逻辑：缺少标题、链接或描述的卡片会被跳过。
// resolve 用于把原始 href 转换为最终访问地址，返回 false 表示丢弃。
func (p *Parser) Extract(doc *goquery.Document, engine string, resolve func(string) (string, bool)) (model.Results, Stats) {
	return p.Cards(doc, func(c Card) (*model.RawResult, bool) {
		title, ok := c.Title()
		if !ok || title == "" {
			return nil, false
		}
		href, ok := c.Href()
		if !ok {
			return nil, false
		}
		if resolve != nil {
			if href, ok = resolve(href); !ok {
				return nil, false
			}
		}
		desc, ok := c.Description()
		if !ok {
			return nil, false
		}
		return model.NewRawResult(normalizeSpace(title), href, normalizeSpace(desc), engine), true
	})
}

// normalizeSpace 把连续空白折叠为单个空格
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
