// Package api is the HTTP surface of the analyzer: detection batch analysis,
// emitter import, track and order-of-battle queries, and fusion runs.
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/analysis"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/correlate"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/eob"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/fusion"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/httputil"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/monitoring"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/signal"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/store"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/tracker"
)

// ANSI escape codes for request log coloring.
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxRequestBody bounds request payloads at 16 MB; detection batches from a
// collection window can be large, but not unbounded.
const maxRequestBody = 16 << 20

type Server struct {
	analyzer *analysis.Analyzer
	tracks   *tracker.Store
	fuser    *fusion.Orchestrator
	db       *store.Store
}

func NewServer(analyzer *analysis.Analyzer, tracks *tracker.Store, fuser *fusion.Orchestrator, db *store.Store) *Server {
	return &Server{
		analyzer: analyzer,
		tracks:   tracks,
		fuser:    fuser,
		db:       db,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/analysis", s.analysis)
	mux.HandleFunc("/api/analysis/", s.getAnalysis)
	mux.HandleFunc("/api/emitters", s.listEmitters)
	mux.HandleFunc("/api/emitters/import", s.importEmitters)
	mux.HandleFunc("/api/eob", s.showOrderOfBattle)
	mux.HandleFunc("/api/fusion", s.fuse)
	mux.HandleFunc("/healthz", s.health)
	return mux
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

type analyzeRequest struct {
	Detections []signal.RawDetection `json:"detections"`
}

// analysis runs a batch on POST and lists stored runs on GET.
func (s *Server) analysis(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.runAnalysis(w, r)
	case http.MethodGet:
		s.listAnalyses(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) runAnalysis(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if len(req.Detections) == 0 {
		httputil.BadRequest(w, "no detections in request")
		return
	}

	res := s.analyzer.Run(req.Detections)
	httputil.WriteJSONOK(w, res)
}

type importRequest struct {
	Emitters []tracker.ImportedEmitter `json:"emitters"`
}

type importResponse struct {
	ImportedTrackIDs []string `json:"importedTrackIds"`
}

func (s *Server) importEmitters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req importRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if len(req.Emitters) == 0 {
		httputil.BadRequest(w, "no emitters in request")
		return
	}

	ids := s.tracks.ImportEmitters(req.Emitters)
	httputil.WriteJSONOK(w, importResponse{ImportedTrackIDs: ids})
}

func (s *Server) listEmitters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.tracks.Snapshot())
}

// getAnalysis replays a stored run summary by ID.
func (s *Server) getAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.db == nil {
		httputil.NotFound(w, "no analysis database attached")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/analysis/")
	if id == "" {
		httputil.BadRequest(w, "missing analysis id")
		return
	}

	run, err := s.db.GetAnalysisRun(id)
	if errors.Is(err, sql.ErrNoRows) {
		httputil.NotFound(w, fmt.Sprintf("no analysis run %q", id))
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load analysis run: %v", err))
		return
	}
	httputil.WriteJSONOK(w, run)
}

func (s *Server) showOrderOfBattle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	oob := eob.Build(s.tracks.Snapshot())
	httputil.WriteJSONOK(w, oob)
}

type fuseRequest struct {
	HumintEntities []correlate.HumintEntity `json:"humintEntities"`
	SigintEntities []correlate.SigintEntity `json:"sigintEntities"`
}

func (s *Server) fuse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req fuseRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	// With no sigint entities supplied, fuse against the live track set.
	if len(req.SigintEntities) == 0 {
		for _, t := range s.tracks.Snapshot() {
			req.SigintEntities = append(req.SigintEntities, correlate.EntityFromTrack(t))
		}
	}

	res, err := s.fuser.Fuse(r.Context(), req.HumintEntities, req.SigintEntities)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("fusion failed: %v", err))
		return
	}

	s.persistFusion(&res)
	httputil.WriteJSONOK(w, res)
}

// persistFusion records the run when a database is attached. Persistence
// failure is logged; the caller still gets the result.
func (s *Server) persistFusion(res *fusion.Result) {
	if s.db == nil {
		return
	}
	resultJSON, err := json.Marshal(res)
	if err != nil {
		monitoring.Logf("api: marshaling fusion result: %v", err)
		resultJSON = nil
	}
	run := &store.FusionRun{
		CreatedUnixNanos: res.Timestamp.UnixNano(),
		HumintCount:      res.Stats.HumintEntityCount,
		SigintCount:      res.Stats.SigintEntityCount,
		CorrelationCount: res.Stats.CorrelationCount,
		PredictionCount:  res.Stats.PredictionCount,
		ResultJSON:       resultJSON,
	}
	if err := s.db.SaveFusionRun(run); err != nil {
		monitoring.Logf("api: persisting fusion run: %v", err)
	}
}

func (s *Server) listAnalyses(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		httputil.NotFound(w, "no analysis database attached")
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	runs, err := s.db.ListAnalysisRuns(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list analysis runs: %v", err))
		return
	}
	if runs == nil {
		runs = []*store.AnalysisRun{}
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]interface{}{
		"status":     "ok",
		"trackCount": s.tracks.Len(),
	})
}
