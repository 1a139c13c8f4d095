// Package httpapi implements request-ID assignment,
// body-size capping, rate limiting, cache coalescing, anonymous-profile
// upsert, structured access logging, and error-envelope mapping around the
// Ask Pipeline. Grounded on the klistr internal/server.Server shape (a
// struct holding its router plus collaborators, a buildRouter method
// registering chi routes under middleware), using go-chi/chi and
// go-chi/cors the way that example wires them, and on cmd/goresearch's
// zerolog bootstrap for logging conventions.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nolia/ask-service/internal/apierr"
	"github.com/nolia/ask-service/internal/askapi"
	"github.com/nolia/ask-service/internal/cache"
	"github.com/nolia/ask-service/internal/config"
	"github.com/nolia/ask-service/internal/export"
	"github.com/nolia/ask-service/internal/models"
	"github.com/nolia/ask-service/internal/pipeline"
	"github.com/nolia/ask-service/internal/profile"
	"github.com/nolia/ask-service/internal/ratelimit"
)

const maxBodyBytes = 1 << 20 // 1MB

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,200}$`)

// Server wires the Ask Pipeline, rate limiter, cache/coalescer, anonymous
// profile store, and model catalog behind a chi router.
type Server struct {
	Pipeline  *pipeline.Pipeline
	Models    *models.Catalog
	Cache     *cache.Cache
	Limiter   *ratelimit.Limiter
	Profiles  *profile.Store
	Config    config.Config
	StartedAt time.Time

	router *chi.Mux
}

// New constructs a Server and builds its router. The rate limiter allows 10
// requests per client per 60-second window.
func New(p *pipeline.Pipeline, catalog *models.Catalog, cfg config.Config) *Server {
	s := &Server{
		Pipeline:  p,
		Models:    catalog,
		Cache:     cache.New(),
		Limiter:   ratelimit.New(10, 60_000),
		Profiles:  profile.NewStore(),
		Config:    cfg,
		StartedAt: time.Now(),
	}
	s.router = s.buildRouter()
	return s
}

// ServeHTTP makes Server usable directly as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "X-Request-Id", "X-Nolia-Anon-Id"},
		ExposedHeaders: []string{"X-Request-Id", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:         300,
	}))
	r.Use(s.requestIDMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(s.accessLogMiddleware)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/models", s.handleModels)
	r.Post("/api/ask", s.handleAsk)
	r.Post("/api/ask/transcript.pdf", s.handleAskTranscriptPDF)
	r.Get("/robots.txt", s.handleRobots)
	r.Get("/sitemap.xml", s.handleSitemap)

	return r
}

type ctxKey int

const requestIDKey ctxKey = iota

// requestIDMiddleware assigns a requestId: the X-Request-Id header value if
// it matches the accepted shape, else a fresh v4 UUID. Echoed on every
// response via the X-Request-Id header.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if !requestIDPattern.MatchString(id) {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFrom(r *http.Request) string {
	if id, ok := r.Context().Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// recoverMiddleware converts a panic in a handler into a 500 Internal error
// envelope instead of crashing the process.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Str("request_id", requestIDFrom(r)).Msg("recovered from panic")
				s.writeError(w, r, apierr.Internal("internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// accessLogMiddleware emits one structured JSON log line per /api/* request:
// {request_id, method, path, status, duration_ms}.
func (s *Server) accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		log.Info().
			Str("request_id", requestIDFrom(r)).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"requestId": requestIDFrom(r),
		"uptimeSec": int64(time.Since(s.StartedAt).Seconds()),
		"env":       s.Config.NodeEnv,
	})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	requiresKey := strings.TrimSpace(s.Config.OpenRouterAPIKey) == ""
	if s.Models == nil {
		writeJSON(w, http.StatusOK, map[string]any{"provider": "openrouter", "models": []string{}, "requiresApiKey": requiresKey})
		return
	}
	list, err := s.Models.ListFreeModels(r.Context(), 8000)
	if err != nil {
		s.writeError(w, r, apierr.UpstreamLLM("failed to list models"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"provider": "openrouter", "models": list, "requiresApiKey": requiresKey})
}

// handleAsk implements POST /api/ask: rate limit -> validate -> cache/
// coalesce -> pipeline.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	clientIP := clientIPFrom(r)
	rl := s.Limiter.Check("ask:"+clientIP, ratelimit.Now())
	setRateLimitHeaders(w, rl)
	if !rl.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfter))
		s.writeError(w, r, apierr.RateLimited("Too Many Requests, please try again later"))
		return
	}

	body, err := readCappedBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req askapi.Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, r, apierr.Validation("request body is not valid JSON"))
		return
	}
	if verr := validateAskRequest(req); verr != nil {
		s.writeError(w, r, verr)
		return
	}

	anonID := r.Header.Get("X-Nolia-Anon-Id")
	if anonID != "" && !profile.ValidID(anonID) {
		anonID = ""
	}
	partition := clientIP
	if anonID != "" {
		partition = anonID
	}
	key := cache.Key(partition, body)

	result, err := s.Cache.GetOrRun(r.Context(), key, func(ctx context.Context) (any, error) {
		return s.Pipeline.Ask(ctx, req)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := result.(askapi.Response)

	if anonID != "" {
		s.Profiles.Upsert(anonID, req.Question, string(effectiveStyle(req)), string(req.Language), time.Now())
	}

	writeJSON(w, http.StatusOK, resp)
}

// effectiveStyle returns the style actually used for a request, defaulting
// to Balanced the same way the pipeline does, so profile tracking reflects
// the effective style rather than an empty string.
func effectiveStyle(req askapi.Request) askapi.Style {
	if req.Style == "" {
		return askapi.StyleBalanced
	}
	return req.Style
}

// handleAskTranscriptPDF runs the pipeline against the same request body as
// /api/ask and streams the result as a PDF transcript instead of JSON.
func (s *Server) handleAskTranscriptPDF(w http.ResponseWriter, r *http.Request) {
	body, err := readCappedBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req askapi.Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, r, apierr.Validation("request body is not valid JSON"))
		return
	}
	if verr := validateAskRequest(req); verr != nil {
		s.writeError(w, r, verr)
		return
	}

	resp, err := s.Pipeline.Ask(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="transcript.pdf"`)
	if err := export.WriteTranscriptPDF(w, req.Question, resp, time.Now()); err != nil {
		log.Error().Err(err).Str("request_id", requestIDFrom(r)).Msg("transcript export failed")
	}
}

func (s *Server) handleRobots(w http.ResponseWriter, r *http.Request) {
	origin := originFrom(r, s.Config.PublicBaseURL)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "User-agent: *\nAllow: /\nDisallow: /api/\nSitemap: "+origin+"/sitemap.xml\n")
}

func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	origin := originFrom(r, s.Config.PublicBaseURL)
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
		`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`+
		`<url><loc>`+origin+`/</loc><changefreq>daily</changefreq><priority>1.0</priority></url>`+
		`</urlset>`)
}

func originFrom(r *http.Request, publicBaseURL string) string {
	if strings.TrimSpace(publicBaseURL) != "" {
		return strings.TrimRight(publicBaseURL, "/")
	}
	proto := r.Header.Get("X-Forwarded-Proto")
	if proto == "" {
		if r.TLS != nil {
			proto = "https"
		} else {
			proto = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return proto + "://" + host
}

func clientIPFrom(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func setRateLimitHeaders(w http.ResponseWriter, rl ratelimit.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(rl.ResetUnix, 10))
}

func readCappedBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	limited := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(limited)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apierr.PayloadTooLarge("request body exceeds 1MB limit")
		}
		return nil, apierr.Validation("failed to read request body")
	}
	return body, nil
}

func validateAskRequest(req askapi.Request) *apierr.Error {
	var issues []string
	n := len(strings.TrimSpace(req.Question))
	if n == 0 {
		issues = append(issues, "question must not be empty")
	}
	if len(req.Question) > 2000 {
		issues = append(issues, "question must be at most 2000 characters")
	}
	if len(req.Model) > 200 {
		issues = append(issues, "model must be at most 200 characters")
	}
	if req.Mode != "" && req.Mode != askapi.ModeFast && req.Mode != askapi.ModeVerified {
		issues = append(issues, "mode must be one of: fast, verified")
	}
	if req.Language != "" && req.Language != askapi.LanguageAuto && req.Language != askapi.LanguageEN && req.Language != askapi.LanguageHI {
		issues = append(issues, "language must be one of: auto, en, hi")
	}
	if req.Style != "" && req.Style != askapi.StyleConcise && req.Style != askapi.StyleBalanced && req.Style != askapi.StyleDetailed && req.Style != askapi.StyleCreative {
		issues = append(issues, "style must be one of: Concise, Balanced, Detailed, Creative")
	}
	if req.WebTopic != "" && !isOneOf(req.WebTopic, "general", "news", "finance") {
		issues = append(issues, "webTopic must be one of: general, news, finance")
	}
	if req.WebTimeRange != "" && !isOneOf(req.WebTimeRange, "day", "week", "month", "year", "d", "w", "m", "y") {
		issues = append(issues, "webTimeRange must be one of: day, week, month, year, d, w, m, y")
	}
	if len(issues) == 0 {
		return nil
	}
	if len(issues) > 5 {
		issues = issues[:5]
	}
	return apierr.Validation(strings.Join(issues, "; "))
}

func isOneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) {
		apiErr = apierr.Internal(err.Error())
	}
	message := apiErr.Message
	if apiErr.Status == http.StatusInternalServerError && s.Config.IsProduction() {
		message = "Internal Server Error"
	}
	writeJSON(w, apiErr.Status, map[string]any{
		"message":   message,
		"requestId": requestIDFrom(r),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(v)
	_, _ = w.Write(buf.Bytes())
}

