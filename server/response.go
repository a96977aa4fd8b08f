package server

import (
	"encoding/json"
	"net/http"

	qerrors "github.com/pascalpierre555/quantix/internal/errors"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	contentTypeHTML = "text/html; charset=utf-8"
)

// errorStatus is the HTTP rendering of one error kind.
type errorStatus struct {
	kind   error
	status int
	code   string
}

// errorStatuses is checked in order; the first kind in the chain wins.
var errorStatuses = []errorStatus{
	{qerrors.ErrAuthMissing, http.StatusUnauthorized, "token_missing"},
	{qerrors.ErrAuthExpired, http.StatusUnauthorized, "token_expired"},
	{qerrors.ErrAuthInvalid, http.StatusForbidden, "invalid_token"},
	{qerrors.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{qerrors.ErrPairingExpired, http.StatusForbidden, "pairing_expired"},
	{qerrors.ErrPairingNotFound, http.StatusForbidden, "pairing_not_found"},
	{qerrors.ErrGrantAbsent, http.StatusConflict, "grant_absent"},
	{qerrors.ErrGrantRefreshFailed, http.StatusConflict, "grant_refresh_failed"},
	{qerrors.ErrProviderRejected, http.StatusBadGateway, "provider_rejected"},
	{qerrors.ErrProviderUnavailable, http.StatusServiceUnavailable, "provider_unavailable"},
	{qerrors.ErrRateLimited, http.StatusTooManyRequests, "rate_limit_exceeded"},
	{qerrors.ErrInvalidRequest, http.StatusBadRequest, "invalid_request"},
	{qerrors.ErrNotFound, http.StatusNotFound, "not_found"},
	{qerrors.ErrPersistenceFailure, http.StatusInternalServerError, "server_error"},
}

// StatusFor maps err to its HTTP status and error code.
func StatusFor(err error) (int, string) {
	for _, es := range errorStatuses {
		if qerrors.Is(err, es.kind) {
			return es.status, es.code
		}
	}
	return http.StatusInternalServerError, "server_error"
}

// writeError renders err as a JSON error. Internal failures are logged and
// not described to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := StatusFor(err)
	description := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		log.Error().Err(err).Str("path", r.URL.Path).Str("request_id", requestIDFrom(r.Context())).Msg("request failed")
		description = http.StatusText(status)
	}
	writeJSONError(w, code, description, status)
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
