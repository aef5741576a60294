package httpapi

import (
	"context"
	"net/http"
	"time"

	postAuth "github.com/MrEthical07/postAuth"
	"github.com/MrEthical07/postAuth/middleware"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Options configures a Server.
type Options struct {
	// CookieName defaults to "jwt".
	CookieName string
	// CookieSecure sets the Secure attribute. Disable only for plain-HTTP development.
	CookieSecure bool
	// AllowedOrigins enables credentialed CORS for the listed origins.
	AllowedOrigins []string
	// TrustProxy takes the client address from X-Forwarded-For and X-Real-IP.
	TrustProxy bool
	// HealthTimeout bounds the store ping behind /healthz. Defaults to 2s.
	HealthTimeout time.Duration
	Logger        *zap.Logger
}

// Server exposes an Engine over HTTP.
type Server struct {
	engine        *postAuth.Engine
	logger        *zap.Logger
	cookieName    string
	cookieSecure  bool
	origins       []string
	trustProxy    bool
	healthTimeout time.Duration
}

// New returns a Server for engine.
func New(engine *postAuth.Engine, opts Options) *Server {
	s := &Server{
		engine:        engine,
		logger:        opts.Logger,
		cookieName:    opts.CookieName,
		cookieSecure:  opts.CookieSecure,
		origins:       opts.AllowedOrigins,
		trustProxy:    opts.TrustProxy,
		healthTimeout: opts.HealthTimeout,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.cookieName == "" {
		s.cookieName = middleware.DefaultCookieName
	}
	if s.healthTimeout <= 0 {
		s.healthTimeout = 2 * time.Second
	}
	return s
}

// Router returns the bare route table.
func (s *Server) Router() *mux.Router {
	guard := middleware.Options{CookieName: s.cookieName, OnError: s.writeError}
	session := middleware.RequireSession(s.engine, guard)
	admin := middleware.RequireAdmin(s.engine, guard)

	r := mux.NewRouter()
	api := r.PathPrefix("/api/auth").Subrouter()
	api.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/verify", s.handleVerify).Methods(http.MethodPost)
	api.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	api.HandleFunc("/isAuthenticated", s.handleIsAuthenticated).Methods(http.MethodGet)
	api.HandleFunc("/isAdmin", s.handleIsAdmin).Methods(http.MethodGet)
	api.Handle("/profile", session(http.HandlerFunc(s.handleProfile))).Methods(http.MethodGet)
	api.Handle("/phone", session(http.HandlerFunc(s.handlePhoneChange))).Methods(http.MethodPost)
	api.Handle("/phone/confirm", session(http.HandlerFunc(s.handlePhoneConfirm))).Methods(http.MethodPost)
	api.Handle("/totp/setup", admin(http.HandlerFunc(s.handleTOTPSetup))).Methods(http.MethodGet)
	api.Handle("/totp/verify", admin(http.HandlerFunc(s.handleTOTPVerify))).Methods(http.MethodPost)

	r.Handle("/metrics", s.engine.MetricsHandler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.writeError(w, req, postAuth.ErrNotFound)
	})
	return r
}

// Handler returns the route table wrapped with panic recovery, access
// logging, proxy header handling, and CORS when configured.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.Router()
	if len(s.origins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(s.origins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost}),
			handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
			handlers.AllowCredentials(),
		)(h)
	}
	if s.trustProxy {
		h = handlers.ProxyHeaders(h)
	}
	accessLog := zap.NewStdLog(s.logger.Named("access"))
	h = handlers.CombinedLoggingHandler(accessLog.Writer(), h)
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(s.logger.Named("panic"))),
		handlers.PrintRecoveryStack(true),
	)(h)
}

// requestContext carries client metadata and any presented session token
// into engine calls.
func (s *Server) requestContext(r *http.Request) context.Context {
	ctx := postAuth.WithClientIP(r.Context(), clientIP(r))
	ctx = postAuth.WithUserAgent(ctx, r.UserAgent())
	if token := middleware.TokenFromRequest(r, s.cookieName); token != "" {
		ctx = postAuth.WithSessionToken(ctx, token)
	}
	return ctx
}

func (s *Server) requestFields(r *http.Request, err error) []zap.Field {
	return []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	}
}
