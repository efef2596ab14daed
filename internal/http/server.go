package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"allowance/internal/auth"
	"allowance/internal/log"
	"allowance/internal/services"
	"allowance/internal/session"
	appweb "allowance/web"
)

const sessionCookie = "allowance_session"

// Pinger reports whether the record store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Auth      *auth.Authenticator
	Sessions  *session.Manager
	Allowance *services.AllowanceService
	Expenses  *services.ExpenseService
	Store     Pinger
	Logger    *log.Logger

	// SecureCookies marks the session cookie Secure; set behind TLS.
	SecureCookies bool
	// Now defaults to time.Now and decides the month key on reset.
	Now func() time.Time
	// PostLimit is the number of POSTs allowed per client per minute; 0 means 60.
	PostLimit int
}

type Server struct {
	http.Server
	templates   *template.Template
	auth        *auth.Authenticator
	sessions    *session.Manager
	allowance   *services.AllowanceService
	expenses    *services.ExpenseService
	store       Pinger
	logger      *log.Logger
	rateLimiter *rateLimiter
	metrics     *securityMetrics
	secure      bool
	now         func() time.Time
	started     time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		auth:        deps.Auth,
		sessions:    deps.Sessions,
		allowance:   deps.Allowance,
		expenses:    deps.Expenses,
		store:       deps.Store,
		logger:      logger.WithComponent(log.ComponentHTTP),
		rateLimiter: newRateLimiter(deps.PostLimit),
		metrics:     &securityMetrics{},
		secure:      deps.SecureCookies,
		now:         now,
		started:     time.Now(),
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t
	s.Handler = log.Middleware(s.logger, func(*http.Request) string { return generateRequestID() })(mux)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /{$}", s.withSecurityHeaders(s.handleIndex))
	mux.HandleFunc("GET /login", s.withSecurityHeaders(s.handleLoginPage))
	mux.HandleFunc("POST /login", s.withSecurityHeaders(s.handleLogin))
	mux.HandleFunc("POST /logout", s.withSecurityHeaders(s.handleLogout))

	mux.HandleFunc("GET /allowance", s.withSecurityHeaders(s.requireSession(s.handleAllowancePage)))
	mux.HandleFunc("POST /allowance", s.withSecurityHeaders(s.requireSession(s.handleSetAllowance)))
	mux.HandleFunc("POST /allowance/edit", s.withSecurityHeaders(s.requireSession(s.requireAllowance(s.handleEditAllowance))))
	mux.HandleFunc("POST /currency", s.withSecurityHeaders(s.requireSession(s.requireAllowance(s.handleSetCurrency))))
	mux.HandleFunc("POST /reset", s.withSecurityHeaders(s.requireSession(s.requireAllowance(s.handleResetMonth))))

	mux.HandleFunc("GET /dashboard", s.withSecurityHeaders(s.requireSession(s.handleDashboard)))
	mux.HandleFunc("POST /expenses", s.withSecurityHeaders(s.requireSession(s.requireAllowance(s.handleAddExpense))))
	mux.HandleFunc("POST /expenses/{id}/edit", s.withSecurityHeaders(s.requireSession(s.requireAllowance(s.handleBeginEdit))))
	mux.HandleFunc("POST /expenses/update", s.withSecurityHeaders(s.requireSession(s.requireAllowance(s.handleCommitEdit))))
	mux.HandleFunc("POST /expenses/cancel", s.withSecurityHeaders(s.requireSession(s.requireAllowance(s.handleCancelEdit))))
	mux.HandleFunc("POST /expenses/{id}/delete", s.withSecurityHeaders(s.requireSession(s.requireAllowance(s.handleDeleteExpense))))

	return s
}

// Shutdown gracefully shuts down the server and its cleanup goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// sessionHandler is a handler that runs with the caller's session.
type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

// requireSession resolves the session cookie and redirects to the login
// page when there is no live session.
func (s *Server) requireSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.currentSession(r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		ctx := log.NewContext(r.Context(), log.FromContext(r.Context()).With(log.FieldUsername, sess.Username()))
		next(w, r.WithContext(ctx), sess)
	}
}

// requireAllowance sends accounts without an allowance to first-time setup.
func (s *Server) requireAllowance(next sessionHandler) sessionHandler {
	return func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
		if rec, _ := sess.Snapshot(); !rec.IsConfigured() {
			http.Redirect(w, r, "/allowance", http.StatusSeeOther)
			return
		}
		next(w, r, sess)
	}
}

func (s *Server) currentSession(r *http.Request) (*session.Session, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return nil, false
	}
	return s.sessions.Get(c.Value)
}

func (s *Server) setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// withSecurityHeaders adds the client IP to the request logger and rate
// limits POSTs. It also sets security headers and logs completion.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)

		ctx := log.NewContext(r.Context(), log.FromContext(r.Context()).With(log.FieldClientIP, clientIP))
		r = r.WithContext(ctx)

		if detectSuspiciousRequest(r, s.metrics) {
			log.FromContext(ctx).WarnContext(ctx, "Suspicious request", "method", r.Method, "url", r.URL.Path)
		}

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP, s.metrics) {
			log.FromContext(ctx).WarnContext(ctx, "Rate limit exceeded", "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cache-Control", "no-store")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		log.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
