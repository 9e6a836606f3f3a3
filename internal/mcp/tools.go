package mcp

import (
	"github.com/cliffyan/go-metasearch/internal/config"
)

// EnginesToolName 列出可用引擎的工具
const EnginesToolName = "list_engines"

// GetTools 获取所有 MCP 工具定义，engines 为当前已注册的引擎
func GetTools(cfg *config.Config, engines []string) []Tool {
	zero := 0
	return []Tool{
		{
			Name:        cfg.MCP.Tools.SearchName,
			Description: cfg.MCP.Tools.SearchDescription,
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"query": {
						Type:        "string",
						Description: "The search query string",
					},
					"page": {
						Type:        "integer",
						Description: "Zero-based result page (default: 0)",
						Default:     0,
						Minimum:     &zero,
					},
					"engines": {
						Type:        "array",
						Description: "Search engines to query. Default uses the configured default engines.",
						Items:       &Items{Type: "string", Enum: engines},
					},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        EnginesToolName,
			Description: "List the search engines this server can query and the ones used by default.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{},
			},
		},
	}
}
