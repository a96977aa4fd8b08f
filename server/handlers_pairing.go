package server

import (
	"net/http"

	"github.com/pascalpierre555/quantix/broker"
	"github.com/pascalpierre555/quantix/credentials"
	qerrors "github.com/pascalpierre555/quantix/internal/errors"
	"github.com/rs/zerolog/log"
)

type qrResponse struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Bitmap []byte `json:"bitmap"` // packed 1 bpp, base64 in JSON
}

type pairingResponse struct {
	SetupURL  string     `json:"setup_url"`
	ExpiresAt int64      `json:"expires_at"`
	QR        qrResponse `json:"qr"`
}

type statusResponse struct {
	Status broker.StatusKind  `json:"status"`
	Google *credentials.Grant `json:"google,omitempty"`
}

// StartPairingHandler issues a pairing token for the authenticated user and
// returns the setup URL with its QR bitmap.
func (s *Server) StartPairingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, ok := requireUsername(w, r)
		if !ok {
			return
		}
		p, err := s.pairing.StartPairing(r.Context(), username)
		if err != nil {
			writeError(w, r, err)
			return
		}

		resp := pairingResponse{
			SetupURL:  p.SetupURL,
			ExpiresAt: p.ExpiresAt.Unix(),
		}
		if p.QR != nil {
			resp.QR = qrResponse{Width: p.QR.Width, Height: p.QR.Height, Bitmap: p.QR.Data}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// SetupHandler is where the QR code leads. A live token is redirected to
// the Google consent screen.
func (s *Server) SetupHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			s.renderErrorPage(w, qerrors.Wrapf(qerrors.ErrPairingNotFound, "missing token parameter"))
			return
		}
		authURL, err := s.pairing.BeginConsent(r.Context(), token)
		if err != nil {
			log.Info().Err(err).Str("request_id", requestIDFrom(r.Context())).Msg("setup refused")
			s.renderErrorPage(w, err)
			return
		}
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// CallbackHandler receives the provider redirect. The pairing token comes
// back as state.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if providerErr := q.Get("error"); providerErr != "" {
			log.Info().Str("provider_error", providerErr).Str("request_id", requestIDFrom(r.Context())).Msg("consent denied")
			s.renderPage(w, http.StatusBadRequest, "Pairing cancelled",
				"Google access was not granted. Start pairing again on the device to retry.")
			return
		}

		code, state := q.Get("code"), q.Get("state")
		if code == "" || state == "" {
			s.renderErrorPage(w, qerrors.Wrapf(qerrors.ErrInvalidRequest, "missing code or state"))
			return
		}

		username, err := s.pairing.CompleteConsent(r.Context(), code, state)
		if err != nil {
			log.Warn().Err(err).Str("request_id", requestIDFrom(r.Context())).Msg("consent completion failed")
			s.renderErrorPage(w, err)
			return
		}

		log.Info().Str("username", username).Msg("device paired")
		s.renderPage(w, http.StatusOK, "Pairing complete",
			"Your Google account is now linked. You can close this page, the device will update shortly.")
	}
}

// PairingStatusHandler is polled by the device while the user is consenting.
func (s *Server) PairingStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, ok := requireUsername(w, r)
		if !ok {
			return
		}
		status, err := s.pairing.CheckStatus(username)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Status: status.Kind, Google: status.Grant})
	}
}
