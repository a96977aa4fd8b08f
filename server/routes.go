package server

import (
	"net/http"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+RoutePing, ChainMiddleware(s.PingHandler(), s.APIMiddleware()...))

	// LOGIN
	s.RegisterRouteHandler("POST "+RouteLogin, ChainMiddleware(
		Pipeline(s.LoginHandler(), s.RateLimited(s.limiter)),
		s.APIMiddleware()...))

	// PAIRING: device side
	s.RegisterRouteHandler("POST "+RoutePairing, ChainMiddleware(
		Pipeline(s.StartPairingHandler(), s.RequireBearer()),
		s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RoutePairingStatus, ChainMiddleware(
		Pipeline(s.PairingStatusHandler(), s.RequireBearer()),
		s.APIMiddleware()...))

	// PAIRING: phone browser side
	s.RegisterRouteHandler("GET "+RouteSetup, ChainMiddleware(s.SetupHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteCallback, ChainMiddleware(s.CallbackHandler(), s.HTMLMiddleware()...))

	// Device data
	s.RegisterRouteHandler("POST "+RouteCalendar, ChainMiddleware(
		Pipeline(s.CalendarHandler(), s.RequireBearer(), s.RequireFreshGrant()),
		s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteFont, ChainMiddleware(
		Pipeline(s.FontHandler(), s.RequireBearer(), RequireQuery("chars")),
		s.APIMiddleware()...))

	// CORS preflight for the JSON endpoints; CorsMiddleware answers it
	for _, path := range []string{RouteLogin, RoutePairing, RoutePairingStatus, RouteCalendar, RouteFont} {
		s.RegisterRouteHandler("OPTIONS "+path, ChainMiddleware(http.NotFound, s.APIMiddleware()...))
	}
}
