package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pdpl_assistant/assistant"
	"pdpl_assistant/logging"
)

const (
	DefaultRequestTimeout = 90 * time.Second
	DefaultSessionTTL     = 30 * time.Minute
	DefaultMaxSessions    = 1000
	maxBodyBytes          = 1 << 20
)

// Options tunes the HTTP surface. Zero values get defaults.
type Options struct {
	AllowOrigin    string
	RateLimitRPS   float64
	RateLimitBurst int
	RequestTimeout time.Duration

	// TrustForwardedFor keys rate limits on X-Forwarded-For; off means RemoteAddr.
	TrustForwardedFor bool
	LimiterIdleTTL    time.Duration

	// Sessions idle for SessionTTL are dropped; past MaxSessions the least recently
	// used one is evicted.
	SessionTTL      time.Duration
	MaxSessions     int
	MaxHistoryTurns int

	// Metrics serves GET /metrics; nil uses the default Prometheus registry.
	Metrics http.Handler
}

type Server struct {
	agent   *assistant.Agent
	store   *sessionStore
	opts    Options
	logger  *slog.Logger
	limiter *IPRateLimiter
}

type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
	ttl      time.Duration
	max      int
	now      func() time.Time
}

type sessionEntry struct {
	sess     *assistant.Session
	lastSeen time.Time
}

func newStore(ttl time.Duration, maxSessions int) *sessionStore {
	return &sessionStore{sessions: make(map[string]*sessionEntry), ttl: ttl, max: maxSessions, now: time.Now}
}

func (s *sessionStore) set(sess *assistant.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweep(now)
	for len(s.sessions) >= s.max {
		s.evictOldest()
	}
	s.sessions[sess.ID] = &sessionEntry{sess: sess, lastSeen: now}
}

func (s *sessionStore) get(id string) (*assistant.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	now := s.now()
	if now.Sub(e.lastSeen) >= s.ttl {
		delete(s.sessions, id)
		return nil, false
	}
	e.lastSeen = now
	return e.sess, true
}

func (s *sessionStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *sessionStore) sweep(now time.Time) {
	for id, e := range s.sessions {
		if now.Sub(e.lastSeen) >= s.ttl {
			delete(s.sessions, id)
		}
	}
}

func (s *sessionStore) evictOldest() {
	var oldest string
	var at time.Time
	for id, e := range s.sessions {
		if oldest == "" || e.lastSeen.Before(at) {
			oldest, at = id, e.lastSeen
		}
	}
	delete(s.sessions, oldest)
}

func New(agent *assistant.Agent, opts Options) (*Server, error) {
	if agent == nil {
		return nil, errors.New("assistant agent required")
	}
	if opts.AllowOrigin == "" {
		opts.AllowOrigin = "*"
	}
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 5
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 10
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.Metrics == nil {
		opts.Metrics = promhttp.Handler()
	}
	limiter := NewIPRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst, opts.LimiterIdleTTL)
	limiter.TrustForwardedFor = opts.TrustForwardedFor
	return &Server{
		agent:   agent,
		store:   newStore(opts.SessionTTL, opts.MaxSessions),
		opts:    opts,
		logger:  logging.New("server"),
		limiter: limiter,
	}, nil
}

// Routes wires up all routes and middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", s.opts.Metrics)

	mux.HandleFunc("POST /api/scope", s.handleScope)
	mux.HandleFunc("POST /api/extract", s.handleExtract)
	mux.HandleFunc("POST /api/translate", s.handleTranslate)
	mux.HandleFunc("POST /api/summary", s.handleSummary)
	mux.HandleFunc("POST /api/context", s.handleContext)
	mux.HandleFunc("POST /api/answer", s.handleAnswer)
	mux.HandleFunc("POST /api/ask", s.handleAsk)

	mux.HandleFunc("POST /api/sessions", s.handleSessionCreate)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleSessionGet)
	mux.HandleFunc("POST /api/sessions/{id}/messages", s.handleSessionMessage)
	mux.HandleFunc("PUT /api/sessions/{id}/language", s.handleSessionLanguage)

	// Stack middleware: outermost first.
	var handler http.Handler = mux
	handler = Timeout(s.opts.RequestTimeout)(handler)
	handler = s.limiter.Middleware(handler)
	handler = Logging(s.logger)(handler)
	handler = CORS(s.opts.AllowOrigin)(handler)
	handler = RequestID(handler)
	handler = Recovery(s.logger)(handler)
	return handler
}

func newSessionID() string { return uuid.NewString() }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return newValidationError("invalid JSON body: " + err.Error())
	}
	return nil
}

// respondError writes err as an ErrorResponse. Details carry the cause for diagnostics.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := classify(err)
	if appErr.StatusCode >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed", "category", appErr.Category, "error", err)
	}
	resp := ErrorResponse{Error: appErr.Message, Code: string(appErr.Category)}
	if appErr.Err != nil {
		resp.Details = appErr.Err.Error()
	}
	writeJSON(w, appErr.StatusCode, resp)
}
