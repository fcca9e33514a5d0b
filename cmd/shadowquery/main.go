// Command shadowquery runs shadow-piercing DOM queries against inline HTML,
// files, or live pages, and can serve them over HTTP and MCP.
//
// Usage:
//
//	shadowquery -html page.html -selector ':shadow .price'   # query a file
//	shadowquery -url https://example.com -selector '>>> h1'  # query a live page
//	shadowquery -serve -config shadowquery.yaml              # HTTP + MCP service
package main

import (
	"context"
	"crypto/tls"
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
	_ "modernc.org/sqlite"

	"github.com/xul8tr/shadowquery/browser"
	"github.com/xul8tr/shadowquery/config"
	"github.com/xul8tr/shadowquery/mcpquic"
	"github.com/xul8tr/shadowquery/service"
	"github.com/xul8tr/shadowquery/store"
)

func main() {
	configPath := flag.String("config", "", "path to shadowquery.yaml config file")
	htmlPath := flag.String("html", "", "query an HTML file ('-' for stdin)")
	pageURL := flag.String("url", "", "query a live page (starts Chrome)")
	selector := flag.String("selector", "", "CSS selector, optionally with a :shadow or >>> marker")
	op := flag.String("op", "all", "operation: first, all, all-level")
	mode := flag.String("mode", "", "override mode: implicit, marker-gated (default from config)")
	format := flag.String("format", "html", "match rendering: html, markdown")
	serve := flag.Bool("serve", false, "run the HTTP service")
	mcpStdio := flag.Bool("mcp", false, "serve MCP tools over stdio")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadFile(*configPath)
		if err != nil {
			logger.Error("shadowquery: config", "error", err)
			os.Exit(1)
		}
	}

	if err := run(ctx, logger, cfg, *htmlPath, *pageURL, *selector, *op, *mode, *format, *serve, *mcpStdio); err != nil {
		logger.Error("shadowquery: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.Config, htmlPath, pageURL, selector, op, mode, format string, serve, mcpStdio bool) error {
	if serve {
		return runServe(ctx, logger, cfg)
	}
	if mcpStdio {
		return runMCPStdio(ctx, logger, cfg)
	}
	if selector == "" {
		fmt.Fprintln(os.Stderr, "usage: shadowquery -serve | -mcp | -html <file> -selector <sel> | -url <url> -selector <sel>")
		os.Exit(1)
	}

	req := &service.QueryRequest{
		Selector: selector,
		Op:       op,
		Mode:     mode,
		Format:   format,
	}

	svc := service.New(cfg, logger)
	switch {
	case htmlPath != "":
		data, err := readInput(htmlPath)
		if err != nil {
			return err
		}
		req.HTML = string(data)
	case pageURL != "":
		mgr := browser.NewManager(browser.Config{
			RemoteURL:       cfg.Browser.Remote,
			Headful:         cfg.Browser.Headful,
			Stealth:         cfg.Browser.Stealth,
			NavigateTimeout: cfg.Browser.NavigateTimeout,
			Logger:          logger,
		})
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("browser: %w", err)
		}
		defer mgr.Close()
		svc.SetBrowser(mgr)
		req.URL = pageURL
	default:
		return errors.New("one of -html or -url is required")
	}

	resp, err := svc.Query(ctx, req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// runMCPStdio serves the MCP tools over stdin/stdout for local clients.
// Logs stay on stderr so they never interleave with the JSON-RPC stream.
func runMCPStdio(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	svc := service.New(cfg, logger)

	if cfg.Browser.Enabled {
		mgr := browser.NewManager(browser.Config{
			RemoteURL:       cfg.Browser.Remote,
			Headful:         cfg.Browser.Headful,
			Stealth:         cfg.Browser.Stealth,
			NavigateTimeout: cfg.Browser.NavigateTimeout,
			Logger:          logger,
		})
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("browser: %w", err)
		}
		defer mgr.Close()
		svc.SetBrowser(mgr)
	}

	srv := mcp.NewServer(&mcp.Implementation{Name: "shadowquery", Version: "0.1.0"}, nil)
	svc.RegisterMCP(srv)

	transport := &mcp.IOTransport{Reader: os.Stdin, Writer: os.Stdout}
	return srv.Run(ctx, transport)
}

func runServe(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	svc := service.New(cfg, logger)

	if cfg.Browser.Enabled {
		mgr := browser.NewManager(browser.Config{
			RemoteURL:       cfg.Browser.Remote,
			Headful:         cfg.Browser.Headful,
			Stealth:         cfg.Browser.Stealth,
			NavigateTimeout: cfg.Browser.NavigateTimeout,
			Logger:          logger,
		})
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("browser: %w", err)
		}
		defer mgr.Close()
		svc.SetBrowser(mgr)
	}

	if cfg.Store.Enabled {
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("store: %w", err)
		}
		defer st.Close()
		svc.SetStore(st)
	}

	if cfg.MCP.Enabled {
		mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "shadowquery", Version: "0.1.0"}, nil)
		svc.RegisterMCP(mcpSrv)

		var tlsCfg *tls.Config
		var err error
		if cfg.MCP.TLSCert != "" && cfg.MCP.TLSKey != "" {
			tlsCfg, err = mcpquic.ServerTLSConfig(cfg.MCP.TLSCert, cfg.MCP.TLSKey)
		} else {
			tlsCfg, err = mcpquic.SelfSignedTLSConfig()
		}
		if err != nil {
			return fmt.Errorf("mcp tls: %w", err)
		}

		ql, err := mcpquic.NewListener(cfg.MCP.Addr, tlsCfg, mcpSrv, logger)
		if err != nil {
			return fmt.Errorf("mcp listener: %w", err)
		}
		defer ql.Close()
		go func() {
			logger.Info("shadowquery: mcp listening", "addr", cfg.MCP.Addr)
			if err := ql.Serve(ctx); err != nil && ctx.Err() == nil {
				logger.Error("shadowquery: mcp", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.Listen.Addr,
		Handler:           svc.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("shadowquery: listening", "addr", cfg.Listen.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
