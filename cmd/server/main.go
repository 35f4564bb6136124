package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/baditaflorin/l"
	"github.com/valyala/fasthttp"
	"gonum.org/v1/gonum/mat"

	"github.com/baditaflorin/go_quality_matcher/internal/core/domain"
	"github.com/baditaflorin/go_quality_matcher/internal/pool"
	"github.com/baditaflorin/go_quality_matcher/pkg/batch"
	"github.com/baditaflorin/go_quality_matcher/pkg/matcher"
)

// Shared service state
var (
	// Default matcher built from the config file
	defaultMatcher *matcher.QualityMatcher

	// Batch engine over the default matcher
	batchEngine *batch.Engine

	// Matcher defaults used for per-request overrides
	matcherDefaults MatcherDefaults

	// Pool for flattened request matrices
	matrixPool = pool.NewFloat64Pool(4096)

	// Logger instance
	logger l.Logger
)

// MatchRequest represents one matching request. Thresholds, labels and the
// rescue flag are optional; absent fields fall back to the server defaults.
type MatchRequest struct {
	Quality [][]float64 `json:"quality"`
	// Predictions sets the column count when Quality has no rows (no ground
	// truth present).
	Predictions            int       `json:"predictions,omitempty"`
	Thresholds             []float64 `json:"thresholds,omitempty"`
	Labels                 []int     `json:"labels,omitempty"`
	AllowLowQualityMatches *bool     `json:"allow_low_quality_matches,omitempty"`
}

// BatchRequest carries several quality matrices matched with the server
// default configuration.
type BatchRequest struct {
	Qualities [][][]float64 `json:"qualities"`
}

// MatchResponse represents one matching response.
type MatchResponse struct {
	Matches        []int  `json:"matches"`
	Labels         []int  `json:"labels"`
	GroundTruths   int    `json:"ground_truths"`
	Predictions    int    `json:"predictions"`
	Rescued        int    `json:"rescued"`
	ProcessingTime string `json:"processing_time,omitempty"`
}

// BatchResponse represents a batch matching response.
type BatchResponse struct {
	Results        []MatchResponse `json:"results"`
	ProcessingTime string          `json:"processing_time,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func main() {
	configPath := flag.String("config", "", "TOML config file path (empty = built-in defaults)")
	port := flag.Int("port", 0, "HTTP server port (overrides config file)")
	logFile := flag.String("log-file", "", "Log file path (empty = stdout)")
	flag.Parse()

	cfg, err := LoadFileConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	logger, err = createLogger(*logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	logger.Info("Starting quality matcher HTTP server",
		"port", cfg.Server.Port,
		"read_timeout", cfg.Server.ReadTimeout(),
		"write_timeout", cfg.Server.WriteTimeout(),
		"max_request_size", cfg.Server.MaxRequestSize,
		"concurrency", cfg.Server.Concurrency,
	)

	initMatchers(cfg.Matcher)

	server := &fasthttp.Server{
		Handler:               requestHandler,
		ReadTimeout:           cfg.Server.ReadTimeout(),
		WriteTimeout:          cfg.Server.WriteTimeout(),
		MaxRequestBodySize:    cfg.Server.MaxRequestSize,
		Concurrency:           cfg.Server.Concurrency,
		DisableKeepalive:      false,
		TCPKeepalive:          true,
		TCPKeepalivePeriod:    3 * time.Minute,
		MaxConnsPerIP:         0, // unlimited
		MaxRequestsPerConn:    0, // unlimited
		MaxIdleWorkerDuration: 10 * time.Second,
		Logger:                nil, // we'll handle logging ourselves
	}

	// Set up graceful shutdown
	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		logger.Info("Shutting down server...")
		if err := server.Shutdown(); err != nil {
			logger.Error("Error during server shutdown", "error", err)
		}
		close(idleConnsClosed)
	}()

	logger.Info("Server listening", "address", fmt.Sprintf(":%d", cfg.Server.Port))
	if err := server.ListenAndServe(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		logger.Error("Server error", "error", err)
	}

	<-idleConnsClosed
	logger.Info("Server stopped")
}

// createLogger builds the service logger, writing to the given file or stdout.
func createLogger(logFile string) (l.Logger, error) {
	output := os.Stdout
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		output = f
	}
	return l.NewStandardFactory().CreateLogger(l.Config{
		Output:      output,
		JsonFormat:  logFile != "",
		AsyncWrite:  true,
		BufferSize:  1024 * 1024,
		MaxFileSize: 10 * 1024 * 1024,
		MaxBackups:  5,
		AddSource:   true,
		Metrics:     true,
	})
}

// initMatchers builds the default matcher and batch engine from the config
// file defaults.
func initMatchers(defaults MatcherDefaults) {
	matcherDefaults = defaults

	opts := []matcher.QualityMatcherOption{
		matcher.WithThresholds(defaults.Thresholds...),
		matcher.WithLabels(defaults.Labels...),
		matcher.WithAllowLowQualityMatches(defaults.AllowLowQualityMatches),
		matcher.WithLogger(logger),
	}
	if defaults.OptimizedReducer {
		opts = append(opts, matcher.WithOptimizedReducer())
	}
	if defaults.WarmUp {
		opts = append(opts, matcher.WithWarmUp(true))
	}

	var err error
	defaultMatcher, err = matcher.New(opts...)
	if err != nil {
		logger.Error("Failed to initialize matcher", "error", err)
		os.Exit(1)
	}

	batchEngine, err = batch.NewEngine(defaultMatcher, batch.WithLogger(logger))
	if err != nil {
		logger.Error("Failed to initialize batch engine", "error", err)
		os.Exit(1)
	}

	logger.Info("Matchers initialized successfully",
		"thresholds", defaults.Thresholds,
		"labels", defaults.Labels,
		"warm_up", defaults.WarmUp,
		"cpus", runtime.NumCPU(),
	)
}

// requestHandler is the main fasthttp request handler
func requestHandler(ctx *fasthttp.RequestCtx) {
	startTime := time.Now()

	ctx.Response.Header.Set("Content-Type", "application/json")
	ctx.Response.Header.Set("Server", "QualityMatcherServer")

	switch string(ctx.Path()) {
	case "/health":
		handleHealthCheck(ctx)
	case "/match":
		handleMatch(ctx)
	case "/batch":
		handleBatch(ctx)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		writeJSONError(ctx, "Not found")
	}

	duration := time.Since(startTime)
	logger.Info("Request processed",
		"method", string(ctx.Method()),
		"path", string(ctx.Path()),
		"status", ctx.Response.StatusCode(),
		"ip", ctx.RemoteIP().String(),
		"duration", duration,
	)
}

// handleHealthCheck responds to health check requests
func handleHealthCheck(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusOK)
	response := map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	}
	writeJSONResponse(ctx, response)
}

// handleMatch handles single-matrix matching requests
func handleMatch(ctx *fasthttp.RequestCtx) {
	if !ctx.IsPost() {
		ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
		writeJSONError(ctx, "Method not allowed")
		return
	}

	var req MatchRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		writeJSONError(ctx, "Invalid request: "+err.Error())
		return
	}

	var quality mat.Matrix
	if len(req.Quality) == 0 {
		if req.Predictions <= 0 {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			writeJSONError(ctx, "An empty quality matrix requires a positive predictions count")
			return
		}
		quality = matcher.EmptyQuality(req.Predictions)
	} else {
		dense, release, err := denseFromRows(req.Quality)
		if err != nil {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			writeJSONError(ctx, err.Error())
			return
		}
		defer release()
		quality = dense
	}

	m, err := matcherForRequest(req)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		writeJSONError(ctx, err.Error())
		return
	}

	c, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	result, err := m.Match(c, quality)
	if err != nil {
		writeMatchError(ctx, err)
		return
	}

	ctx.SetStatusCode(fasthttp.StatusOK)
	writeJSONResponse(ctx, MatchResponse{
		Matches:        result.Matches,
		Labels:         result.Labels,
		GroundTruths:   result.GroundTruths,
		Predictions:    result.Predictions,
		Rescued:        result.Rescued,
		ProcessingTime: time.Since(start).String(),
	})
}

// handleBatch handles multi-matrix matching requests
func handleBatch(ctx *fasthttp.RequestCtx) {
	if !ctx.IsPost() {
		ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
		writeJSONError(ctx, "Method not allowed")
		return
	}

	var req BatchRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		writeJSONError(ctx, "Invalid request: "+err.Error())
		return
	}
	if len(req.Qualities) == 0 {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		writeJSONError(ctx, "At least one quality matrix is required")
		return
	}

	matrices := make([]mat.Matrix, 0, len(req.Qualities))
	releases := make([]func(), 0, len(req.Qualities))
	defer func() {
		for _, release := range releases {
			release()
		}
	}()
	for i, rows := range req.Qualities {
		quality, release, err := denseFromRows(rows)
		if err != nil {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			writeJSONError(ctx, fmt.Sprintf("matrix %d: %s", i, err.Error()))
			return
		}
		matrices = append(matrices, quality)
		releases = append(releases, release)
	}

	c, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	start := time.Now()
	results, err := batchEngine.MatchAll(c, matrices)
	if err != nil {
		writeMatchError(ctx, err)
		return
	}

	response := BatchResponse{
		Results:        make([]MatchResponse, len(results)),
		ProcessingTime: time.Since(start).String(),
	}
	for i, result := range results {
		response.Results[i] = MatchResponse{
			Matches:      result.Matches,
			Labels:       result.Labels,
			GroundTruths: result.GroundTruths,
			Predictions:  result.Predictions,
			Rescued:      result.Rescued,
		}
	}

	ctx.SetStatusCode(fasthttp.StatusOK)
	writeJSONResponse(ctx, response)
}

// matcherForRequest returns the default matcher, or a one-off matcher when
// the request overrides thresholds, labels or the rescue flag.
func matcherForRequest(req MatchRequest) (*matcher.QualityMatcher, error) {
	if req.Thresholds == nil && req.Labels == nil && req.AllowLowQualityMatches == nil {
		return defaultMatcher, nil
	}

	thresholds := matcherDefaults.Thresholds
	if req.Thresholds != nil {
		thresholds = req.Thresholds
	}
	labels := matcherDefaults.Labels
	if req.Labels != nil {
		labels = req.Labels
	}
	allow := matcherDefaults.AllowLowQualityMatches
	if req.AllowLowQualityMatches != nil {
		allow = *req.AllowLowQualityMatches
	}

	opts := []matcher.QualityMatcherOption{
		matcher.WithThresholds(thresholds...),
		matcher.WithLabels(labels...),
		matcher.WithAllowLowQualityMatches(allow),
		matcher.WithLogger(logger),
	}
	if matcherDefaults.OptimizedReducer {
		opts = append(opts, matcher.WithOptimizedReducer())
	}
	return matcher.New(opts...)
}

// denseFromRows builds a dense matrix from JSON rows on a pooled backing
// slice. The returned release function must run after the matrix is no
// longer used.
func denseFromRows(rows [][]float64) (*mat.Dense, func(), error) {
	if len(rows) == 0 {
		return nil, nil, errors.New("quality matrix must have at least one row")
	}
	cols := len(rows[0])
	if cols == 0 {
		return nil, nil, errors.New("quality matrix rows must not be empty")
	}

	bufp := matrixPool.Get()
	buf := *bufp
	for i, row := range rows {
		if len(row) != cols {
			matrixPool.Put(bufp)
			return nil, nil, fmt.Errorf("row %d has %d columns, expected %d", i, len(row), cols)
		}
		buf = append(buf, row...)
	}
	*bufp = buf

	quality := mat.NewDense(len(rows), cols, buf)
	release := func() {
		matrixPool.Put(bufp)
	}
	return quality, release, nil
}

// writeMatchError maps matcher errors onto HTTP status codes.
func writeMatchError(ctx *fasthttp.RequestCtx, err error) {
	var invariantErr *domain.InvariantError
	var configErr *domain.ConfigError
	switch {
	case errors.As(err, &invariantErr), errors.As(err, &configErr):
		ctx.SetStatusCode(fasthttp.StatusUnprocessableEntity)
	default:
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
	}
	writeJSONError(ctx, err.Error())
}

// writeJSONResponse writes a JSON response body
func writeJSONResponse(ctx *fasthttp.RequestCtx, response interface{}) {
	data, err := json.Marshal(response)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		writeJSONError(ctx, "Failed to encode response")
		return
	}
	ctx.SetBody(data)
}

// writeJSONError writes a JSON error body
func writeJSONError(ctx *fasthttp.RequestCtx, message string) {
	data, _ := json.Marshal(ErrorResponse{Error: message})
	ctx.SetBody(data)
}
