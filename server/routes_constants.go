package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RoutePing  = "/ping"
	RouteLogin = "/login"

	// Pairing routes. The setup and callback pages are opened in the
	// user's phone browser, the rest are called by the device.
	RoutePairing       = "/api/pairing"
	RoutePairingStatus = "/api/pairing/status"
	RouteSetup         = "/setup"
	RouteCallback      = "/oauth2/callback"

	// Device data routes
	RouteCalendar = "/api/calendar"
	RouteFont     = "/font"
)
