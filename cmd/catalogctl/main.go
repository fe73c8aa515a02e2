package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"bookcatalog/internal/config"
	"bookcatalog/internal/domains/book/model"
	lookupModel "bookcatalog/internal/domains/lookup/model"
	"bookcatalog/pkg/container"
	"bookcatalog/pkg/logger"
)

// CLI là cấu trúc lệnh của catalogctl
type CLI struct {
	EnvFile  string `help:"Path to a .env file loaded before reading the environment" default:".env" type:"path"`
	LogLevel string `help:"Override LOG_LEVEL (debug, info, warn, error)"`

	Schema SchemaCmd `cmd:"" help:"Manage the catalog schema"`
	Health HealthCmd `cmd:"" help:"Check connectivity, schema state and pool statistics"`
	Lookup LookupCmd `cmd:"" help:"Manage publishers, genres, languages and formats"`
	Book   BookCmd   `cmd:"" help:"Create, read, edit and delete books"`
	Search SearchCmd `cmd:"" help:"Search books by text and filters"`
	Recent RecentCmd `cmd:"" help:"List recently created, updated, published or edited books"`
	Import ImportCmd `cmd:"" help:"Import a {\"books\": [...]} collection (JSON, YAML, CSV or XLSX)"`
}

// runtime được bind vào Run(rt *runtime) của mọi command
type runtime struct {
	ctx context.Context
	c   *container.Container
	out io.Writer
}

// print ghi v ra stdout dạng JSON
func (rt *runtime) print(v any) error {
	enc := json.NewEncoder(rt.out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// exportXLSX ghi books ra file path; file dở dang bị xóa khi lỗi
func (rt *runtime) exportXLSX(path string, books []model.Book) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	return rt.c.ExportService.WriteXLSX(rt.ctx, f, books)
}

func newParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	options = append([]kong.Option{
		kong.Name("catalogctl"),
		kong.Description("Operate the book catalog stored in PostgreSQL."),
		kong.UsageOnError(),
	}, options...)
	return kong.New(cli, options...)
}

func main() {
	var cli CLI
	parser, err := newParser(&cli)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	os.Exit(run(kctx, &cli))
}

func run(kctx *kong.Context, cli *CLI) int {
	cfg, err := config.Load(cli.EnvFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if cli.LogLevel != "" {
		cfg.App.LogLevel = cli.LogLevel
	}
	logger.Init(cfg.App.Environment, cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize", err)
		return 1
	}
	defer c.Cleanup()

	if requiresSchema(kctx.Command()) {
		if err := c.DB.RequireSchema(ctx); err != nil {
			writeError(os.Stderr, err)
			return 1
		}
	}

	rt := &runtime{ctx: ctx, c: c, out: os.Stdout}
	if err := kctx.Run(rt); err != nil {
		writeError(os.Stderr, err)
		return 1
	}
	return 0
}

// requiresSchema: mọi lệnh trừ schema và health cần pg_trgm cùng các bảng
// catalog, nên database mới chỉ chạy được `schema apply`/`schema status`/`health`.
func requiresSchema(command string) bool {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return true
	}
	switch fields[0] {
	case "schema", "health":
		return false
	}
	return true
}

// writeError in lỗi dạng {"error": ..., "code": ...} để script có thể parse
func writeError(w io.Writer, err error) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(map[string]string{
		"error": err.Error(),
		"code":  lookupModel.GetErrorCode(err),
	})
}
