// Command elderly applies elderly mode to web pages.
//
// Usage:
//
//	elderly render https://example.com/          # treated HTML to stdout
//	elderly render -json -reader page.html       # report, HTML and reader export
//	elderly analyze https://example.com/         # block analysis, page untouched
//	elderly rules www.amazon.com                 # resolved rule document
//	elderly rules -list | -purge                 # rule cache maintenance
//	elderly serve                                # HTTP routes and /mcp
//	elderly mcp                                  # MCP over stdio
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/elderly/kit"
	"github.com/hazyhaar/elderly/retrofit"
)

const version = "0.3.0"

func main() {
	configPath := flag.String("config", "", "path to elderly.yaml config file")
	dbPath := flag.String("db", "", "path to the SQLite rule cache (overrides config)")
	headless := flag.Bool("headless", false, "render pages in headless Chrome before treating them")
	offline := flag.Bool("offline", false, "never fetch rule documents from the remote repository")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Usage = usage
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = kit.WithTransport(ctx, "cli")

	cfg, err := resolveConfig(*configPath, *dbPath, *headless, *offline)
	if err != nil {
		logger.Error("elderly: config", "error", err)
		os.Exit(1)
	}
	if err := run(ctx, logger, cfg, flag.Arg(0), flag.Args()[1:]); err != nil {
		logger.Error("elderly: fatal", "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: elderly [-config file] [-db path] [-headless] [-offline] [-log-level level] <render|analyze|rules|serve|mcp> [args]")
	flag.PrintDefaults()
}

func resolveConfig(configPath, dbPath string, headless, offline bool) (*retrofit.Config, error) {
	cfg := &retrofit.Config{}
	if configPath != "" {
		c, err := retrofit.LoadConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg = c
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if headless {
		cfg.Fetch.Headless = true
	}
	if offline {
		cfg.Rules.Offline = true
	}
	return cfg, nil
}

func run(ctx context.Context, logger *slog.Logger, cfg *retrofit.Config, cmd string, args []string) error {
	svc, err := retrofit.New(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	switch cmd {
	case "render":
		return runRender(ctx, svc, args)
	case "analyze":
		return runAnalyze(ctx, svc, args)
	case "rules":
		return runRules(ctx, svc, args)
	case "serve":
		return runServe(ctx, logger, svc, cfg.Listen)
	case "mcp":
		srv := newMCPServer(svc)
		logger.Info("elderly: MCP on stdio")
		return srv.Run(ctx, &mcp.StdioTransport{})
	}
	usage()
	return fmt.Errorf("unknown command %q", cmd)
}

// pageArg turns a URL or a local file into a page request.
func pageArg(fs *flag.FlagSet, base string) (retrofit.PageRequest, error) {
	if fs.NArg() != 1 {
		return retrofit.PageRequest{}, fmt.Errorf("%s: expected one URL or file", fs.Name())
	}
	arg := fs.Arg(0)
	if st, err := os.Stat(arg); err == nil && !st.IsDir() {
		data, err := os.ReadFile(arg)
		if err != nil {
			return retrofit.PageRequest{}, err
		}
		return retrofit.PageRequest{URL: base, HTML: string(data)}, nil
	}
	return retrofit.PageRequest{URL: arg}, nil
}

func runRender(ctx context.Context, svc *retrofit.Service, args []string) error {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	out := fs.String("o", "", "write to file instead of stdout")
	asJSON := fs.Bool("json", false, "print the full result as JSON")
	withReader := fs.Bool("reader", false, "include a Markdown export of the main content (implies -json)")
	generation := fs.String("generation", "", "semantic or rules (overrides config)")
	policy := fs.String("policy", "", "baseline or always-split (overrides config)")
	base := fs.String("base", "", "page URL of a local file, used for site rules and links")
	fs.Parse(args)

	page, err := pageArg(fs, *base)
	if err != nil {
		return err
	}
	res, err := svc.Render(ctx, &retrofit.RenderRequest{
		PageRequest: page,
		Generation:  *generation,
		Policy:      *policy,
		Reader:      *withReader,
	})
	if res == nil {
		return err
	}

	w := io.Writer(os.Stdout)
	if *out != "" {
		f, ferr := os.Create(*out)
		if ferr != nil {
			return ferr
		}
		defer f.Close()
		w = f
	}
	if *asJSON || *withReader {
		if eerr := encode(w, res); eerr != nil {
			return eerr
		}
	} else if _, werr := io.WriteString(w, res.HTML); werr != nil {
		return werr
	}
	return err
}

func runAnalyze(ctx context.Context, svc *retrofit.Service, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	policy := fs.String("policy", "", "baseline or always-split (overrides config)")
	base := fs.String("base", "", "page URL of a local file")
	fs.Parse(args)

	page, err := pageArg(fs, *base)
	if err != nil {
		return err
	}
	res, err := svc.Analyze(ctx, &retrofit.AnalyzeRequest{PageRequest: page, Policy: *policy})
	if err != nil {
		return err
	}
	return encode(os.Stdout, res)
}

func runRules(ctx context.Context, svc *retrofit.Service, args []string) error {
	fs := flag.NewFlagSet("rules", flag.ExitOnError)
	list := fs.Bool("list", false, "list built-in and cached sites")
	purge := fs.Bool("purge", false, "drop expired cache entries")
	fs.Parse(args)

	switch {
	case *list:
		res, err := svc.Sites(ctx)
		if err != nil {
			return err
		}
		return encode(os.Stdout, res)
	case *purge:
		n, err := svc.PurgeRules(ctx)
		if err != nil {
			return err
		}
		return encode(os.Stdout, map[string]int64{"purged": n})
	}
	if fs.NArg() != 1 {
		return errors.New("rules: expected a site")
	}
	res, err := svc.Rules(ctx, &retrofit.RulesRequest{Site: fs.Arg(0)})
	if err != nil {
		return err
	}
	return encode(os.Stdout, res)
}

func runServe(ctx context.Context, logger *slog.Logger, svc *retrofit.Service, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           svc.Handler(newMCPServer(svc)),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("elderly: listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("elderly: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newMCPServer(svc *retrofit.Service) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "elderly", Version: version}, nil)
	svc.RegisterMCP(srv)
	return srv
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
