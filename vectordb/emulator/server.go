package emulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/viant/vecflow/apierr"
	"github.com/viant/vecflow/embeddings"
	inference "github.com/viant/vecflow/embeddings/pinecone"
	"github.com/viant/vecflow/vectordb"
	"github.com/viant/vecflow/vectordb/local"
	"github.com/viant/vecflow/vectordb/pinecone"
)

// Faults makes selected endpoints fail with the given HTTP status.
type Faults struct {
	Embed           int `yaml:"embed"`
	BatchUpsert     int `yaml:"batchUpsert"`
	NamespacedQuery int `yaml:"namespacedQuery"`
}

// Config holds emulator settings.
type Config struct {
	Index      string   `yaml:"index"`
	Dimension  int      `yaml:"dimension"`
	Metric     string   `yaml:"metric"`
	APIKey     string   `yaml:"apiKey"`
	Host       string   `yaml:"host"`
	ReadyAfter int      `yaml:"readyAfter"`
	Models     []string `yaml:"models"`
	Faults     Faults   `yaml:"faults"`
}

// Server emulates the control, inference and data plane REST endpoints over a local store.
type Server struct {
	store      *local.Store
	embedder   embeddings.Embedder
	config     Config
	router     *mux.Router
	httpServer *http.Server
	logf       func(format string, args ...any)

	mu        sync.Mutex
	describes map[string]int
}

// Option configures the server.
type Option func(*Server)

// WithLogf sets the request logger.
func WithLogf(logf func(format string, args ...any)) Option {
	return func(s *Server) { s.logf = logf }
}

// New creates an emulator serving store, embedding texts with embedder.
func New(store *local.Store, embedder embeddings.Embedder, config Config, opts ...Option) *Server {
	s := &Server{
		store:     store,
		embedder:  embedder,
		config:    config,
		describes: map[string]int{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

// Init creates the configured index when missing.
func (s *Server) Init(ctx context.Context) error {
	if s.config.Index == "" {
		return nil
	}
	_, err := s.store.CreateIndex(ctx, s.config.Index, s.config.Dimension, s.config.Metric)
	return err
}

func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()
	s.router.Use(s.loggingMiddleware)
	s.router.Use(jsonContentTypeMiddleware)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.NewRoute().Subrouter()
	api.Use(s.authMiddleware)
	api.HandleFunc("/indexes/{name}", s.handleDescribeIndex).Methods(http.MethodGet)
	api.HandleFunc("/embed", s.handleEmbed).Methods(http.MethodPost)
	api.HandleFunc("/vectors/upsert", s.handleUpsert).Methods(http.MethodPost)
	api.HandleFunc("/describe_index_stats", s.handleDescribeIndexStats).Methods(http.MethodPost, http.MethodGet)
	api.HandleFunc("/query", s.handleQuery).Methods(http.MethodPost)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Serve serves on listener until ctx is done.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.httpServer = &http.Server{
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()
	if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleDescribeIndex(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	desc, err := s.store.DescribeIndex(r.Context(), name)
	if err != nil {
		respondWithError(w, err)
		return
	}
	desc.Host = s.host(r)
	s.mu.Lock()
	s.describes[name]++
	seen := s.describes[name]
	s.mu.Unlock()
	if seen <= s.config.ReadyAfter {
		desc.Ready = false
		desc.State = pinecone.StateInitializing
	}
	respondWithJSON(w, http.StatusOK, pinecone.NewIndexModel(desc))
}

func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	if s.config.Faults.Embed != 0 {
		respondWithError(w, &apierr.Error{Status: s.config.Faults.Embed, Code: "RESOURCE_EXHAUSTED", Message: "embedding quota exceeded"})
		return
	}
	var req inference.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, invalidArgument("invalid JSON: "+err.Error()))
		return
	}
	if len(s.config.Models) > 0 && !contains(s.config.Models, req.Model) {
		respondWithError(w, &apierr.Error{Kind: apierr.KindNotFound, Code: "NOT_FOUND", Message: fmt.Sprintf("Model %v not found", req.Model)})
		return
	}
	inputType := embeddings.InputType(req.Parameters.InputType)
	if inputType != embeddings.InputPassage && inputType != embeddings.InputQuery {
		respondWithError(w, invalidArgument(fmt.Sprintf("unsupported input_type: %q", req.Parameters.InputType)))
		return
	}
	if len(req.Inputs) == 0 {
		respondWithError(w, invalidArgument("inputs must not be empty"))
		return
	}
	texts := make([]string, len(req.Inputs))
	tokens := 0
	for i, input := range req.Inputs {
		texts[i] = input.Text
		tokens += len(strings.Fields(input.Text))
	}
	vecs, err := embeddings.Embed(r.Context(), s.embedder, texts, inputType)
	if err != nil {
		respondWithError(w, err)
		return
	}
	resp := inference.Response{Model: req.Model, Data: make([]inference.Embedding, len(vecs))}
	for i, v := range vecs {
		resp.Data[i] = inference.Embedding{Values: v, VectorType: "dense"}
	}
	resp.Usage.TotalTokens = tokens
	respondWithJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var req pinecone.UpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, invalidArgument("invalid JSON: "+err.Error()))
		return
	}
	if s.config.Faults.BatchUpsert != 0 && len(req.Vectors) > 1 {
		respondWithError(w, &apierr.Error{Status: s.config.Faults.BatchUpsert, Code: "UNAVAILABLE", Message: "batch upsert unavailable"})
		return
	}
	count, err := s.store.Upsert(r.Context(), s.config.Index, req.Namespace, req.Vectors)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, pinecone.UpsertResponse{UpsertedCount: count})
}

func (s *Server) handleDescribeIndexStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.DescribeIndexStats(r.Context(), s.config.Index)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req vectordb.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, invalidArgument("invalid JSON: "+err.Error()))
		return
	}
	if s.config.Faults.NamespacedQuery != 0 && req.Namespace != "" {
		respondWithError(w, &apierr.Error{Status: s.config.Faults.NamespacedQuery, Code: "UNAVAILABLE", Message: "namespaced query unavailable"})
		return
	}
	resp, err := s.store.Query(r.Context(), s.config.Index, &req)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (s *Server) host(r *http.Request) string {
	if s.config.Host != "" {
		return s.config.Host
	}
	return "http://" + r.Host
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.APIKey != "" && r.Header.Get(pinecone.HeaderAPIKey) != s.config.APIKey {
			respondWithError(w, &apierr.Error{Kind: apierr.KindAuthentication, Code: "UNAUTHENTICATED", Message: "Invalid API Key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if s.logf != nil {
			s.logf("%s %s %v", r.Method, r.URL.Path, time.Since(start))
		}
	})
}

func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func respondWithError(w http.ResponseWriter, err error) {
	status := apierr.StatusOf(err)
	detail := pinecone.ErrorDetail{Code: "UNKNOWN", Message: err.Error()}
	var e *apierr.Error
	if errors.As(err, &e) {
		if e.Code != "" {
			detail.Code = e.Code
		}
		if e.Message != "" {
			detail.Message = e.Message
		}
	}
	respondWithJSON(w, status, pinecone.ErrorResponse{Error: detail, Status: status})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":"INTERNAL","message":"error marshaling JSON"}}`))
		return
	}
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

func invalidArgument(msg string) *apierr.Error {
	return &apierr.Error{Status: http.StatusBadRequest, Code: "INVALID_ARGUMENT", Message: msg}
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
