// Package sandbox implements a local stand-in for the application server:
// the JSON-RPC endpoint, the record and column REST endpoints and the
// preloaded HTML page, all backed by SQLite.
package sandbox

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"dbadmin/internal/domain"
	"dbadmin/internal/middleware"
	"dbadmin/pkg/rest"
	"dbadmin/pkg/rpc"
)

// TokenPath is where clients exchange credentials for a bearer token.
const TokenPath = "/api/auth/token/"

const defaultTokenTTL = 12 * time.Hour

// Options configures the sandbox server.
type Options struct {
	Logger             *slog.Logger
	CORSAllowedOrigins []string
	// Credentials enables authentication when Username is set.
	Credentials middleware.Credentials
	JWTSecret   string
	TokenTTL    time.Duration
	RateLimit   middleware.RateLimitConfig
	Version     string
}

// Server routes sandbox requests to the store.
type Server struct {
	store     *Store
	rpc       *Dispatcher
	opts      Options
	logger    *slog.Logger
	validator *middleware.HS256Validator
}

// New creates a server over st with every RPC method registered.
func New(st *Store, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = defaultTokenTTL
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	s := &Server{
		store:  st,
		rpc:    NewDispatcher(opts.Logger),
		opts:   opts,
		logger: opts.Logger,
	}
	if opts.Credentials.Username != "" {
		v, err := middleware.NewHS256Validator(opts.JWTSecret)
		if err != nil {
			return nil, err
		}
		s.validator = v
	}
	RegisterMethods(s.rpc, st)
	return s, nil
}

// Dispatcher exposes the JSON-RPC dispatcher, e.g. to register extra
// methods.
func (s *Server) Dispatcher() *Dispatcher { return s.rpc }

// Handler builds the HTTP router. ctx bounds background work such as the
// rate limiter sweep.
func (s *Server) Handler(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(s.corsHandler())
	if s.opts.RateLimit.RequestsPerSecond > 0 {
		r.Use(middleware.RateLimiter(ctx, s.opts.RateLimit))
	}
	r.Use(s.ensureCSRFToken)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.opts.Version})
	})
	r.Post(TokenPath, s.issueToken)

	r.Group(func(r chi.Router) {
		if s.validator != nil {
			r.Use(middleware.Auth(s.validator, s.opts.Credentials))
		}
		r.Use(s.requireCSRF)

		r.Get("/", s.servePage)
		r.Get("/db/{databaseID}/schemas/{schemaOID}/", s.servePage)
		r.Method(http.MethodPost, rpc.DefaultEndpoint, s.rpc)
		r.Route(rest.DefaultPrefix, s.restRoutes)
	})
	return r
}

func (s *Server) corsHandler() func(http.Handler) http.Handler {
	origins := s.opts.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	allowAll := len(origins) == 1 && origins[0] == "*"
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRFToken", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: !allowAll,
		MaxAge:           300,
	})
}

// TokenRequest is the body of a token exchange.
type TokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse carries an issued bearer token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) issueToken(w http.ResponseWriter, r *http.Request) {
	if s.validator == nil {
		writeRESTError(w, domain.ErrValidation("authentication is disabled on this server"))
		return
	}
	var req TokenRequest
	if user, pass, ok := r.BasicAuth(); ok {
		req = TokenRequest{Username: user, Password: pass}
	} else if err := decodeBody(r, w, &req); err != nil {
		writeRESTError(w, err)
		return
	}
	if !s.opts.Credentials.Match(req.Username, req.Password) {
		writeJSON(w, http.StatusUnauthorized, []restError{{Code: http.StatusUnauthorized, Message: "invalid username or password"}})
		return
	}
	token, exp, err := s.validator.Issue(req.Username, s.opts.TokenTTL)
	if err != nil {
		writeRESTError(w, err)
		return
	}
	s.logger.InfoContext(r.Context(), "token issued",
		slog.String("subject", req.Username),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())))
	writeJSON(w, http.StatusOK, TokenResponse{Token: token, ExpiresAt: exp})
}
