// Command metasearch 在终端中执行一次聚合搜索
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cliffyan/go-metasearch/internal/config"
	"github.com/cliffyan/go-metasearch/internal/engine"
	"github.com/cliffyan/go-metasearch/internal/logger"
	"github.com/cliffyan/go-metasearch/internal/mcp"
)

// errAllFailed 所有引擎都失败时命令以非零状态退出
var errAllFailed = errors.New("all engines failed")

type options struct {
	configFile string
	page       uint32
	engines    []string
	asJSON     bool
	verbose    bool
}

// newSearcher 根据配置创建搜索器，测试中可替换
var newSearcher = func(cfg *config.Config, lg *zap.Logger) (mcp.Searcher, func()) {
	fetchers, closeFetchers := engine.NewFetchers(cfg, lg)
	return engine.NewManager(cfg, fetchers, lg), closeFetchers
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "metasearch [query...]",
		Short:         "Search several engines at once and merge the results",
		Long:          "metasearch queries Bing, Brave, DuckDuckGo, LibreX, Mojeek, SearX, Startpage and Wikipedia concurrently and prints the merged results.",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, strings.Join(args, " "), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "config file path (default: CONFIG_FILE or ./config.yaml)")
	cmd.Flags().Uint32VarP(&opts.page, "page", "p", 0, "zero-based result page")
	cmd.Flags().StringSliceVarP(&opts.engines, "engines", "e", nil, "engines to query, comma separated: "+strings.Join(engine.Names(), ","))
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the full response as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log engine activity to stderr")
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load(), nil
	}
	return config.LoadFromFile(path)
}

func run(ctx context.Context, opts *options, query string, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(opts.configFile)
	if err != nil {
		return err
	}
	if !opts.verbose {
		cfg.Log.Level = "error"
	}
	lg, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer lg.Sync() //nolint:errcheck

	searcher, closeSearcher := newSearcher(cfg, lg)
	defer closeSearcher()

	outcome, err := searcher.Search(ctx, engine.SearchRequest{
		Query:   query,
		Page:    opts.page,
		Engines: opts.engines,
	})
	if err != nil {
		return err
	}

	resp := outcome.Response()
	if opts.asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return err
		}
	} else {
		render(stdout, stderr, resp)
	}

	if outcome.AllFailed() {
		return errAllFailed
	}
	return nil
}

// render 以文本形式输出结果，失败信息写入 stderr
func render(stdout, stderr io.Writer, resp engine.SearchResponse) {
	for i, r := range resp.Results {
		fmt.Fprintf(stdout, "%d. %s\n   %s\n", i+1, r.Title, r.URL)
		if r.Description != "" {
			fmt.Fprintf(stdout, "   %s\n", r.Description)
		}
		fmt.Fprintf(stdout, "   [%s]\n\n", strings.Join(r.Engines, ", "))
	}
	if len(resp.Results) == 0 {
		fmt.Fprintln(stdout, "No results.")
	}

	for _, name := range resp.Empty {
		fmt.Fprintf(stderr, "ℹ️ %s: no results\n", name)
	}
	for _, f := range resp.Failures {
		fmt.Fprintf(stderr, "⚠️ %s\n", f.Message)
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
