package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/viant/mcp-protocol/schema"
	mcpsrv "github.com/viant/mcp/server"

	vmcp "github.com/viant/vecflow/mcp"
	"github.com/viant/vecflow/service"
)

const queryCacheSize = 1000

func serveCmd(args []string) int {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	common := registerCommon(flags)
	mcpAddr := flags.String("mcp-addr", "", "MCP server address (default from config or 127.0.0.1:6071)")
	metricsLog := flags.Bool("metrics-log", false, "log mcp metric lines")
	flags.Parse(args)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	maybeDebugSleep("serve", *common.debugSleep)

	cfg, err := common.load()
	if err != nil {
		log.Printf("config: %v", err)
		return exitUsage
	}
	addr := resolveMCPAddr(*mcpAddr, cfg)

	svc, err := newService(ctx, cfg, *common.verbose, queryCacheSize)
	if err != nil {
		return fail(os.Stdout, service.StageInit, err)
	}
	defer func() { _ = svc.Close() }()

	server, err := mcpsrv.New(
		mcpsrv.WithImplementation(schema.Implementation{Name: "vecflow-mcp", Version: "0.1.0"}),
		mcpsrv.WithNewHandler(vmcp.NewHandler(svc, vmcp.Defaults{
			Index:     cfg.Index,
			Namespace: cfg.Namespace,
			TopK:      cfg.TopK,
			BatchSize: cfg.BatchSize,
		}, *metricsLog)),
		mcpsrv.WithEndpointAddress(addr),
		mcpsrv.WithRootRedirect(true),
		mcpsrv.WithStreamableURI("/mcp"),
	)
	if err != nil {
		log.Printf("serve: %v", err)
		return exitFailure
	}

	server.UseStreamableHTTP(true)
	httpServer := server.HTTP(ctx, addr)
	httpServer.ReadHeaderTimeout = 10 * time.Second
	httpServer.ReadTimeout = 60 * time.Second
	httpServer.WriteTimeout = 60 * time.Second
	httpServer.IdleTimeout = 120 * time.Second

	log.Printf("vecflow-mcp listening on %s (index %s)", httpServer.Addr, cfg.Index)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Printf("shutdown signal received: %v", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Printf("serve: %v", err)
			return exitFailure
		}
	}
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
	log.Printf("vecflow-mcp stopped")
	return exitOK
}

func resolveMCPAddr(flagAddr string, cfg *service.Config) string {
	if flagAddr != "" {
		return flagAddr
	}
	if addr := cfg.MCPServer.Address(); addr != "" {
		return addr
	}
	return "127.0.0.1:6071"
}
