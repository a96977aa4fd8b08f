package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/pascalpierre555/quantix/broker"
	"github.com/pascalpierre555/quantix/calendar"
	"github.com/pascalpierre555/quantix/internal/config"
	"github.com/rs/zerolog/log"
)

// Authenticator checks operator credentials and bearer headers.
type Authenticator interface {
	Login(username, password string) (string, error)
	Authenticate(authorizationHeader string) (string, error)
}

// Pairer is the pairing orchestrator as seen by the HTTP layer.
type Pairer interface {
	StartPairing(ctx context.Context, username string) (*broker.Pairing, error)
	BeginConsent(ctx context.Context, token string) (string, error)
	CompleteConsent(ctx context.Context, code, token string) (string, error)
	CheckStatus(username string) (*broker.Status, error)
}

// GrantRefresher keeps a user's Google grant usable.
type GrantRefresher interface {
	EnsureFresh(ctx context.Context, username string) (bool, error)
}

// EventLister reads one day of calendar events for a user.
type EventLister interface {
	Events(ctx context.Context, username, date string) ([]calendar.Event, error)
}

type Deps struct {
	Auth     Authenticator
	Pairing  Pairer
	Grants   GrantRefresher
	Calendar EventLister
}

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	auth     Authenticator
	pairing  Pairer
	grants   GrantRefresher
	calendar EventLister
	limiter  *RateLimiter
}

func New(config config.Config, deps Deps) (*Server, error) {
	if deps.Auth == nil {
		return nil, errors.New("[Server New] auth service is required")
	}
	if deps.Pairing == nil {
		return nil, errors.New("[Server New] pairing orchestrator is required")
	}
	if deps.Grants == nil {
		return nil, errors.New("[Server New] grant manager is required")
	}
	if deps.Calendar == nil {
		return nil, errors.New("[Server New] calendar client is required")
	}

	s := &Server{
		env:      config.GetEnv(),
		mux:      http.NewServeMux(),
		config:   config,
		auth:     deps.Auth,
		pairing:  deps.Pairing,
		grants:   deps.Grants,
		calendar: deps.Calendar,
		limiter: NewRateLimiter(RateLimitConfig{
			Rate:  config.GetLoginRateLimit(),
			Burst: config.GetLoginBurst(),
		}),
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Debug().Msgf("[%-19s] %s", colourMethod(method), path)
}

func colourMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}

// clientIP is the rate limit key for r: the first X-Forwarded-For hop when
// behind a proxy, otherwise the remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
