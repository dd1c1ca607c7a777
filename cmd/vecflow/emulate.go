package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/viant/vecflow/embeddings"
	"github.com/viant/vecflow/service"
	"github.com/viant/vecflow/vectordb/emulator"
	"github.com/viant/vecflow/vectordb/local"
)

func emulateCmd(args []string) int {
	flags := flag.NewFlagSet("emulate", flag.ExitOnError)
	configPath := flags.String("config", "", "config yaml (optional)")
	addr := flags.String("addr", "", "listen address (default 127.0.0.1:5081)")
	dsn := flags.String("db", ":memory:", "SQLite database path backing the emulator")
	index := flags.String("index", "", "index created on start")
	dimension := flags.Int("dimension", 0, "index dimension")
	metric := flags.String("metric", "", "index metric: cosine|dotproduct|euclidean")
	apiKey := flags.String("api-key", "", "require this Api-Key header")
	readyAfter := flags.Int("ready-after", -1, "report the index as initializing for the first N describes")
	faultEmbed := flags.Int("fault-embed", 0, "fail /embed with this HTTP status")
	faultBatch := flags.Int("fault-batch-upsert", 0, "fail multi-vector upserts with this HTTP status")
	faultQuery := flags.Int("fault-namespaced-query", 0, "fail namespaced queries with this HTTP status")
	verbose := flags.Bool("v", false, "log requests")
	flags.Parse(args)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := service.LoadConfig(*configPath)
	if err != nil {
		log.Printf("config: %v", err)
		return exitUsage
	}
	ec := cfg.Emulator
	setString(&ec.Addr, *addr)
	setString(&ec.Index, *index)
	setString(&ec.Metric, *metric)
	setString(&ec.APIKey, *apiKey)
	if *dimension > 0 {
		ec.Dimension = *dimension
	}
	if *readyAfter >= 0 {
		ec.ReadyAfter = *readyAfter
	}
	if *faultEmbed != 0 {
		ec.Faults.Embed = *faultEmbed
	}
	if *faultBatch != 0 {
		ec.Faults.BatchUpsert = *faultBatch
	}
	if *faultQuery != 0 {
		ec.Faults.NamespacedQuery = *faultQuery
	}

	store, err := local.NewStore(ctx, local.WithDSN(*dsn))
	if err != nil {
		log.Printf("emulate: open store: %v", err)
		return exitFailure
	}
	defer func() { _ = store.Close() }()

	var opts []emulator.Option
	if *verbose {
		opts = append(opts, emulator.WithLogf(log.Printf))
	}
	server := emulator.New(store, embeddings.NewSimpleEmbedder(ec.Dimension), ec.Config, opts...)
	if err := server.Init(ctx); err != nil {
		log.Printf("emulate: init index: %v", err)
		return exitFailure
	}
	log.Printf("vecflow emulator listening on %s (index %s, dimension %d)", ec.Addr, ec.Index, ec.Dimension)
	if err := server.ListenAndServe(ctx, ec.Addr); err != nil {
		log.Printf("emulate: %v", err)
		return exitFailure
	}
	log.Printf("vecflow emulator stopped")
	return exitOK
}
