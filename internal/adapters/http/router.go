package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/grounded-answer/internal/core/domain"
	"github.com/kirillkom/grounded-answer/internal/core/ports"
	"github.com/kirillkom/grounded-answer/internal/observability/metrics"
)

const (
	serviceName     = "grounded-api"
	maxRequestBytes = 64 << 10
)

type Options struct {
	CORSOrigin     string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
	QueueTimeout   time.Duration
}

type Router struct {
	answerer ports.QueryAnswerer
	opts     Options
	metrics  *metrics.HTTPServerMetrics
}

// NewRouter builds the HTTP surface. httpMetrics may be nil.
func NewRouter(answerer ports.QueryAnswerer, opts Options, httpMetrics *metrics.HTTPServerMetrics) *Router {
	if opts.QueueTimeout <= 0 {
		opts.QueueTimeout = 100 * time.Millisecond
	}
	return &Router{answerer: answerer, opts: opts, metrics: httpMetrics}
}

func (rt *Router) Handler() http.Handler {
	chat := http.Handler(http.HandlerFunc(rt.chat))
	chat = backpressureMiddleware(chat, rt.opts.MaxInFlight, rt.opts.QueueTimeout)
	chat = rateLimitMiddleware(chat, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst, rt.reject)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.Handle("/v1/chat", chat)
	mux.Handle("/chat", chat)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = corsMiddleware(mux, rt.opts.CORSOrigin)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) reject(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordRejection(serviceName, reason)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) chat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query     string `json:"query"`
		Location  string `json:"location"`
		SessionID string `json:"session_id"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Query parameter is required"})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = r.Header.Get("X-Session-Id")
	}
	resp, err := rt.answerer.Answer(r.Context(), domain.Query{
		Question:  req.Query,
		Location:  req.Location,
		SessionID: sessionID,
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("chat_failed", "request_id", requestIDFromContext(r.Context()), "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": errorMessage(status, err)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
