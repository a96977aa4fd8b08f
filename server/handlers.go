package server

import (
	"net/http"

	qerrors "github.com/pascalpierre555/quantix/internal/errors"
	"github.com/rs/zerolog/log"
)

func (s *Server) PingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
	}
}

// LoginHandler exchanges operator credentials for a bearer token.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var form LoginForm
		if err := decodeForm(r, &form); err != nil {
			writeError(w, r, err)
			return
		}

		token, err := s.auth.Login(form.Username, form.Password)
		if err != nil {
			if qerrors.Is(err, qerrors.ErrInvalidCredentials) {
				log.Info().Str("ip", clientIP(r)).Msg("login rejected")
			}
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

// requireUsername is for handlers behind RequireBearer.
func requireUsername(w http.ResponseWriter, r *http.Request) (string, bool) {
	username, ok := UsernameFrom(r.Context())
	if !ok {
		writeError(w, r, qerrors.ErrAuthMissing)
	}
	return username, ok
}
