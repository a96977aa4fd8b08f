package server

import (
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.AppName}}</title>
<style>
body { font-family: sans-serif; max-width: 28rem; margin: 3rem auto; padding: 0 1rem; text-align: center; }
h1 { font-size: 1.4rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
</body>
</html>
`))

type pageData struct {
	AppName string
	Title   string
	Message string
}

func (s *Server) renderPage(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", contentTypeHTML)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	err := pageTemplate.Execute(w, pageData{
		AppName: s.config.GetAppName(),
		Title:   title,
		Message: message,
	})
	if err != nil {
		log.Error().Err(err).Msg("render page")
	}
}

// renderErrorPage is the browser facing counterpart of writeError.
func (s *Server) renderErrorPage(w http.ResponseWriter, err error) {
	status, code := StatusFor(err)
	var message string
	switch code {
	case "pairing_expired":
		message = "This setup link has expired. Start pairing again on the device to get a new QR code."
	case "pairing_not_found":
		message = "This setup link is not valid. Scan the QR code shown on the device."
	case "provider_rejected":
		message = "Google did not accept the authorization. Start pairing again on the device."
	case "provider_unavailable":
		message = "Google could not be reached. Go back and try again."
	case "invalid_request":
		message = "The request was incomplete. Scan the QR code shown on the device."
	default:
		message = "Something went wrong. Please try again later."
	}
	s.renderPage(w, status, "Pairing failed", message)
}
