package model

import (
	"sort"
	"strings"
)

// RawResult 单个引擎抓取到的一条搜索结果
type RawResult struct {
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Engines     []string `json:"engines"`
}

// NewRawResult 创建搜索结果，标题和描述会去除首尾空白
func NewRawResult(title, url, description, engine string) *RawResult {
	r := &RawResult{
		Title:       strings.TrimSpace(title),
		URL:         url,
		Description: strings.TrimSpace(description),
	}
	r.AddEngines(engine)
	return r
}

// AddEngines 合并引擎归属（集合语义，保持有序且不重复）
func (r *RawResult) AddEngines(names ...string) {
	for _, name := range names {
		if name == "" {
			continue
		}
		i := sort.SearchStrings(r.Engines, name)
		if i < len(r.Engines) && r.Engines[i] == name {
			continue
		}
		r.Engines = append(r.Engines, "")
		copy(r.Engines[i+1:], r.Engines[i:])
		r.Engines[i] = name
	}
}

// HasEngine 判断结果是否来自指定引擎
func (r *RawResult) HasEngine(name string) bool {
	i := sort.SearchStrings(r.Engines, name)
	return i < len(r.Engines) && r.Engines[i] == name
}

// Clone 深拷贝
func (r *RawResult) Clone() *RawResult {
	c := *r
	c.Engines = append([]string(nil), r.Engines...)
	return &c
}

func (r *RawResult) valid() bool {
	return r != nil && r.URL != "" && len(r.Engines) > 0
}

// Results 以访问 URL 为键的结果集合
type Results map[string]*RawResult

// Add 插入单条结果，URL 已存在时只合并引擎归属
func (rs Results) Add(r *RawResult) {
	if !r.valid() {
		return
	}
	if existing, ok := rs[r.URL]; ok {
		existing.AddEngines(r.Engines...)
		return
	}
	rs[r.URL] = r.Clone()
}

// Merge 合并另一个引擎的结果。
// 文本字段先写入者优先，引擎归属取并集；重复合并同一集合不会产生重复记录。
func (rs Results) Merge(other Results) {
	keys := make([]string, 0, len(other))
	for k := range other {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rs.Add(other[k])
	}
}

// Sorted 按引擎覆盖数降序、URL 升序返回结果列表
func (rs Results) Sorted() []*RawResult {
	out := make([]*RawResult, 0, len(rs))
	for _, r := range rs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Engines) != len(out[j].Engines) {
			return len(out[i].Engines) > len(out[j].Engines)
		}
		return out[i].URL < out[j].URL
	})
	return out
}
