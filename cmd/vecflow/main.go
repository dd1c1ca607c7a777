package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/gops/agent"
	_ "github.com/viant/afsc/gs"
	_ "github.com/viant/afsc/s3"
	"github.com/viant/vecflow/document"
	"github.com/viant/vecflow/service"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	startGops()
	os.Exit(dispatch(os.Args[1:]))
}

func dispatch(args []string) int {
	if len(args) == 0 {
		return runCmd(nil)
	}
	switch args[0] {
	case "run":
		return runCmd(args[1:])
	case "describe":
		return describeCmd(args[1:])
	case "stats":
		return statsCmd(args[1:])
	case "query", "search":
		return queryCmd(args[1:])
	case "upsert":
		return upsertCmd(args[1:])
	case "serve":
		return serveCmd(args[1:])
	case "emulate":
		return emulateCmd(args[1:])
	default:
		if strings.HasPrefix(args[0], "-") && args[0] != "-h" && args[0] != "--help" {
			return runCmd(args)
		}
		usage()
		return exitUsage
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: vecflow <command> [options]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  run       Connect, embed, upsert, read stats and query (default)")
	fmt.Fprintln(os.Stderr, "  describe  Describe the index (optionally wait until ready)")
	fmt.Fprintln(os.Stderr, "  stats     Show index statistics")
	fmt.Fprintln(os.Stderr, "  query     Run a similarity query (alias: search)")
	fmt.Fprintln(os.Stderr, "  upsert    Embed and write documents")
	fmt.Fprintln(os.Stderr, "  serve     Start the MCP tool server")
	fmt.Fprintln(os.Stderr, "  emulate   Start the local REST emulator of the hosted API")
}

// commonFlags are shared by every command talking to an index.
type commonFlags struct {
	config     *string
	index      *string
	namespace  *string
	backend    *string
	controlURL *string
	host       *string
	apiKey     *string
	embedder   *string
	model      *string
	dsn        *string
	verbose    *bool
	debugSleep *int
}

func registerCommon(flags *flag.FlagSet) *commonFlags {
	return &commonFlags{
		config:     flags.String("config", "", "config yaml (optional)"),
		index:      flags.String("index", "", "index name (default quickstart2)"),
		namespace:  flags.String("namespace", "", "namespace (default ns1)"),
		backend:    flags.String("backend", "", "vector database: remote|local"),
		controlURL: flags.String("control-url", "", "control plane URL (or VECFLOW_CONTROL_URL)"),
		host:       flags.String("host", "", "data plane host, skips host discovery"),
		apiKey:     flags.String("api-key", "", "API key (or PINECONE_API_KEY)"),
		embedder:   flags.String("embedder", "", "embedder: pinecone|openai|ollama|vertexai|simple"),
		model:      flags.String("model", "", "embedding model"),
		dsn:        flags.String("db", "", "SQLite database path for the local backend"),
		verbose:    flags.Bool("v", false, "log HTTP requests"),
		debugSleep: flags.Int("debug-sleep", 0, "debug: sleep N seconds before execution (for gops)"),
	}
}

// load reads the config file, then applies flag overrides and validates.
func (c *commonFlags) load() (*service.Config, error) {
	cfg, err := service.LoadConfig(*c.config)
	if err != nil {
		return nil, err
	}
	setString(&cfg.Index, *c.index)
	setString(&cfg.Namespace, *c.namespace)
	setString(&cfg.Backend, *c.backend)
	setString(&cfg.ControlURL, *c.controlURL)
	setString(&cfg.Host, *c.host)
	setString(&cfg.APIKey, *c.apiKey)
	setString(&cfg.Embedder.Provider, *c.embedder)
	setString(&cfg.Embedder.Model, *c.model)
	setString(&cfg.Local.DSN, *c.dsn)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setString(target *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*target = value
	}
}

func runCmd(args []string) int {
	flags := flag.NewFlagSet("run", flag.ExitOnError)
	common := registerCommon(flags)
	documents := flags.String("documents", "", "documents URL (json|yaml, any afs scheme); default built-in sample")
	query := flags.String("query", "", "query text")
	topK := flags.Int("top-k", 0, "number of matches")
	batch := flags.Int("batch", 0, "upsert batch size")
	skipWait := flags.Bool("skip-wait", false, "do not wait for the index to become ready")
	settle := flags.Duration("settle", -1, "delay between upsert and stats")
	output := flags.String("output", "", "write the run report to this URL (.json or .yaml)")
	flags.Parse(args)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	maybeDebugSleep("run", *common.debugSleep)

	cfg, err := common.load()
	if err != nil {
		log.Printf("config: %v", err)
		return exitUsage
	}
	setString(&cfg.Documents, *documents)
	setString(&cfg.Query, *query)
	setString(&cfg.Output, *output)
	if *topK > 0 {
		cfg.TopK = *topK
	}
	if *batch > 0 {
		cfg.BatchSize = *batch
	}
	if *settle >= 0 {
		cfg.SettleDelay = *settle
	}
	return runWorkflow(ctx, cfg, *skipWait, *common.verbose, os.Stdout)
}

func runWorkflow(ctx context.Context, cfg *service.Config, skipWait, verbose bool, out io.Writer) int {
	svc, err := newService(ctx, cfg, verbose, 0)
	if err != nil {
		return fail(out, service.StageInit, err)
	}
	defer func() { _ = svc.Close() }()

	docs, err := loadDocuments(ctx, cfg.Documents)
	if err != nil {
		return fail(out, service.StageInit, err)
	}
	_, err = svc.Run(ctx, service.RunRequest{
		Index:     cfg.Index,
		Namespace: cfg.Namespace,
		Documents: docs,
		Query:     cfg.Query,
		TopK:      cfg.TopK,
		BatchSize: cfg.BatchSize,
		SkipWait:  skipWait,
		Output:    cfg.Output,
		Out:       out,
		Logf:      log.Printf,
	})
	if err != nil {
		if interrupted(ctx, err) {
			fmt.Fprintln(out, "\ninterrupted, shutting down")
			return exitOK
		}
		return exitFailure
	}
	return exitOK
}

func describeCmd(args []string) int {
	flags := flag.NewFlagSet("describe", flag.ExitOnError)
	common := registerCommon(flags)
	wait := flags.Bool("wait", false, "wait until the index is ready")
	flags.Parse(args)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	maybeDebugSleep("describe", *common.debugSleep)
	cfg, err := common.load()
	if err != nil {
		log.Printf("config: %v", err)
		return exitUsage
	}
	svc, err := newService(ctx, cfg, *common.verbose, 0)
	if err != nil {
		return fail(os.Stdout, service.StageInit, err)
	}
	defer func() { _ = svc.Close() }()

	desc, err := svc.Connect(ctx, service.ConnectRequest{Index: cfg.Index, Wait: *wait, Logf: log.Printf})
	if err != nil {
		return fail(os.Stdout, service.StageConnect, err)
	}
	service.NewPrinter(os.Stdout).Index(desc)
	return exitOK
}

func statsCmd(args []string) int {
	flags := flag.NewFlagSet("stats", flag.ExitOnError)
	common := registerCommon(flags)
	flags.Parse(args)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	maybeDebugSleep("stats", *common.debugSleep)
	cfg, err := common.load()
	if err != nil {
		log.Printf("config: %v", err)
		return exitUsage
	}
	svc, err := newService(ctx, cfg, *common.verbose, 0)
	if err != nil {
		return fail(os.Stdout, service.StageInit, err)
	}
	defer func() { _ = svc.Close() }()

	stats, err := svc.Stats(ctx, cfg.Index)
	if err != nil {
		return fail(os.Stdout, service.StageStats, err)
	}
	service.NewPrinter(os.Stdout).Stats(stats, cfg.Namespace)
	return exitOK
}

func queryCmd(args []string) int {
	flags := flag.NewFlagSet("query", flag.ExitOnError)
	common := registerCommon(flags)
	query := flags.String("query", "", "query text (default the sample query)")
	prompt := flags.String("prompt", "", "alias for --query")
	topK := flags.Int("top-k", 0, "number of matches")
	mcpAddr := flags.String("mcp-addr", "", "query a running MCP server instead of the index")
	flags.Parse(args)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	maybeDebugSleep("query", *common.debugSleep)
	cfg, err := common.load()
	if err != nil {
		log.Printf("config: %v", err)
		return exitUsage
	}
	setString(&cfg.Query, *prompt)
	setString(&cfg.Query, *query)
	if *topK > 0 {
		cfg.TopK = *topK
	}
	printer := service.NewPrinter(os.Stdout)

	if *mcpAddr != "" {
		found, err := mcpSearch(ctx, *mcpAddr, cfg)
		if err != nil {
			return fail(os.Stdout, service.StageSearch, err)
		}
		printer.Results(found)
		return exitOK
	}

	svc, err := newService(ctx, cfg, *common.verbose, 0)
	if err != nil {
		return fail(os.Stdout, service.StageInit, err)
	}
	defer func() { _ = svc.Close() }()
	found, err := svc.Search(ctx, service.SearchRequest{
		Index:     cfg.Index,
		Namespace: cfg.Namespace,
		Query:     cfg.Query,
		TopK:      cfg.TopK,
		Logf:      log.Printf,
	})
	if err != nil {
		if interrupted(ctx, err) {
			return exitOK
		}
		return fail(os.Stdout, service.StageSearch, err)
	}
	printer.Results(found)
	return exitOK
}

func upsertCmd(args []string) int {
	flags := flag.NewFlagSet("upsert", flag.ExitOnError)
	common := registerCommon(flags)
	documents := flags.String("documents", "", "documents URL (json|yaml, any afs scheme); default built-in sample")
	batch := flags.Int("batch", 0, "upsert batch size")
	flags.Parse(args)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	maybeDebugSleep("upsert", *common.debugSleep)
	cfg, err := common.load()
	if err != nil {
		log.Printf("config: %v", err)
		return exitUsage
	}
	setString(&cfg.Documents, *documents)
	if *batch > 0 {
		cfg.BatchSize = *batch
	}
	svc, err := newService(ctx, cfg, *common.verbose, 0)
	if err != nil {
		return fail(os.Stdout, service.StageInit, err)
	}
	defer func() { _ = svc.Close() }()

	docs, err := loadDocuments(ctx, cfg.Documents)
	if err != nil {
		return fail(os.Stdout, service.StageInit, err)
	}
	written, err := svc.UpsertDocuments(ctx, service.UpsertDocumentsRequest{
		Index:     cfg.Index,
		Namespace: cfg.Namespace,
		Documents: docs,
		BatchSize: cfg.BatchSize,
		Logf:      log.Printf,
	})
	if err != nil {
		if interrupted(ctx, err) {
			return exitOK
		}
		return fail(os.Stdout, service.StageUpsert, err)
	}
	printer := service.NewPrinter(os.Stdout)
	printer.Embedded(written.Embed, len(docs))
	printer.Upserted(written.Upsert, cfg.Namespace)
	return exitOK
}

func loadDocuments(ctx context.Context, URL string) ([]document.Document, error) {
	if URL == "" {
		return document.Sample(), nil
	}
	return document.NewLoader(nil).Load(ctx, URL)
}

// fail prints a categorized hint for err and returns the failure exit code.
func fail(out io.Writer, stage service.Stage, err error) int {
	category, hint := service.Hint(&service.StageError{Stage: stage, Err: err})
	fmt.Fprintf(out, "\nerror (%s): %v\nhint (%s): %s\n", stage, err, category, hint)
	return exitFailure
}

func interrupted(ctx context.Context, err error) bool {
	return ctx.Err() != nil && errors.Is(err, context.Canceled)
}

func maybeDebugSleep(cmd string, seconds int) {
	if seconds <= 0 {
		seconds = debugSleepFromEnv()
	}
	if seconds <= 0 {
		return
	}
	log.Printf("debug: cmd=%s pid=%d sleep=%ds", cmd, os.Getpid(), seconds)
	time.Sleep(time.Duration(seconds) * time.Second)
}

func startGops() {
	if err := agent.Listen(agent.Options{ShutdownCleanup: true}); err != nil {
		log.Printf("gops: %v", err)
	}
}

func debugSleepFromEnv() int {
	val := strings.TrimSpace(os.Getenv("VECFLOW_DEBUG_SLEEP"))
	if val == "" {
		return 0
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
