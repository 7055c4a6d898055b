package http

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
	appweb "fintrack/web"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the handlers call. Advisor and the dashboard
// summarizer may run without a model; everything else is required.
type Deps struct {
	Auth      *auth.Service
	Ledger    *services.LedgerService
	Dashboard *services.DashboardService
	Advisor   *services.AdvisorService
	Profiles  *services.ProfileService
	Store     Pinger
	Logger    *applog.Logger

	// CacheStats reports the AI summary cache for /metrics. Optional.
	CacheStats func() cache.Stats
}

// Options tune the HTTP surface.
type Options struct {
	CookieSecure bool
	// Per-minute budgets for login/signup attempts per client address and
	// for AI calls per user.
	AuthRequestsPerMinute int
	AIRequestsPerMinute   int
	// TrustedProxies are extra CIDRs whose forwarding headers name the client.
	TrustedProxies        []string
}

type Server struct {
	http.Server
	templates *template.Template
	deps      Deps
	opts      Options
	logger    *applog.Logger

	detector    *security.Detector
	trace       *trace.Middleware
	authLimiter *ratelimit.Limiter
	aiLimiter   *ratelimit.Limiter

	now          func() time.Time
	started      time.Time
	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and wires every route.
func NewServer(addr string, deps Deps, opts Options) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.AuthRequestsPerMinute <= 0 {
		opts.AuthRequestsPerMinute = 10
	}
	if opts.AIRequestsPerMinute <= 0 {
		opts.AIRequestsPerMinute = 20
	}

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}

	s := &Server{
		templates:   tmpl,
		deps:        deps,
		opts:        opts,
		logger:      deps.Logger.WithComponent(applog.ComponentHTTP),
		detector:    detector,
		authLimiter: ratelimit.NewLimiter(ratelimit.Config{Requests: opts.AuthRequestsPerMinute, Window: time.Minute}),
		aiLimiter:   ratelimit.NewLimiter(ratelimit.Config{Requests: opts.AIRequestsPerMinute, Window: time.Minute}),
		now:         time.Now,
		started:     time.Now(),
	}
	s.trace = trace.NewMiddleware(deps.Logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = applog.RequestIDMiddleware(trace.RequestIDFromRequest)(handler)
	handler = applog.Middleware(deps.Logger)(handler)
	handler = s.trace.Middleware(handler)
	handler = s.detector.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	byClient := s.authLimiter.Middleware(s.detector.ExtractClientIP)
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.Handle("POST /login", byClient(http.HandlerFunc(s.handleLogin)))
	mux.HandleFunc("GET /signup", s.handleSignupPage)
	mux.Handle("POST /signup", byClient(http.HandlerFunc(s.handleSignup)))
	mux.HandleFunc("POST /logout", s.handleLogout)

	private := func(h http.HandlerFunc) http.Handler {
		return security.NoStore(s.deps.Auth.Middleware(h))
	}
	byUser := s.aiLimiter.Middleware(func(r *http.Request) string {
		u, _ := auth.UserFrom(r.Context())
		return u.ID
	})
	privateAI := func(h http.HandlerFunc) http.Handler {
		return security.NoStore(s.deps.Auth.Middleware(byUser(h)))
	}

	mux.Handle("GET /{$}", private(s.handleDashboard))
	mux.Handle("GET /ui/summary", privateAI(s.handleSummary))
	mux.Handle("POST /dashboard/refresh", private(s.handleRefresh))

	mux.Handle("GET /expenses", private(s.handleExpensesPage))
	mux.Handle("POST /expenses", private(s.handleCreateExpense))
	mux.Handle("POST /expenses/{id}/delete", private(s.handleDeleteExpense))
	mux.Handle("GET /incomes", private(s.handleIncomesPage))
	mux.Handle("POST /incomes", private(s.handleCreateIncome))
	mux.Handle("POST /incomes/{id}/delete", private(s.handleDeleteIncome))

	mux.Handle("GET /goals", private(s.handleGoalsPage))
	mux.Handle("POST /goals", private(s.handleCreateGoal))
	mux.Handle("POST /goals/{id}/delete", private(s.handleDeleteGoal))

	mux.Handle("GET /advisor", private(s.handleAdvisorPage))
	mux.Handle("POST /advisor", privateAI(s.handleAsk))
	mux.Handle("POST /advisor/clear", private(s.handleClearChat))

	mux.Handle("GET /settings", private(s.handleSettingsPage))
	mux.Handle("POST /settings", private(s.handleUpdateSettings))

	mux.Handle("GET /api/dashboard", private(s.handleAPIDashboard))
	mux.Handle("GET /api/goals", private(s.handleAPIGoals))
}

// Shutdown stops the limiter janitors and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.authLimiter.Stop()
		s.aiLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

var templateFuncs = template.FuncMap{
	// money renders an amount with the profile's currency code.
	"money": func(c core.Currency, d decimal.Decimal) string {
		return c.Format(d)
	},
	"moneyOpt": func(c core.Currency, d decimal.NullDecimal) string {
		if !d.Valid {
			return "n/a"
		}
		return c.Format(d.Decimal)
	},
	"pct": func(g core.GoalProgress) int64 {
		return g.Percent()
	},
	"date": func(d core.Date) string {
		if d.IsZero() {
			return "no date"
		}
		return d.String()
	},
	"width":    barWidth,
	"negative": func(d decimal.Decimal) bool { return d.IsNegative() },
}

func parseTemplates() (*template.Template, error) {
	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return t, nil
}

// barWidth scales amount against max to a CSS percentage, keeping very
// small non-zero values visible.
func barWidth(amount, max decimal.Decimal) int {
	if !max.IsPositive() || !amount.IsPositive() {
		return 0
	}
	w := int(amount.Mul(decimal.NewFromInt(100)).Div(max).Round(0).IntPart())
	switch {
	case w < 2:
		return 2
	case w > 100:
		return 100
	}
	return w
}

// render executes a template into a buffer first so a template error never
// leaves a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentTemplate).ErrorContext(r.Context(), "Template execution failed",
			applog.FieldError, err,
			"template", name,
			applog.FieldErrorType, applog.ErrorTypeInternal)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
