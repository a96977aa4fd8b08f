package server

import (
	"net/http"
	"unicode/utf8"

	"github.com/pascalpierre555/quantix/bitmap"
	"github.com/pascalpierre555/quantix/calendar"
	qerrors "github.com/pascalpierre555/quantix/internal/errors"
	"github.com/rs/zerolog/log"
)

const maxFontChars = 256

type calendarResponse struct {
	Events []calendar.Event `json:"events"`
}

// CalendarHandler lists the authenticated user's events for one day.
// RequireFreshGrant has already refreshed the grant when needed.
func (s *Server) CalendarHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, ok := requireUsername(w, r)
		if !ok {
			return
		}
		var form CalendarForm
		if err := decodeForm(r, &form); err != nil {
			writeError(w, r, err)
			return
		}

		events, err := s.calendar.Events(r.Context(), username, form.Date)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if events == nil {
			events = []calendar.Event{}
		}
		writeJSON(w, http.StatusOK, calendarResponse{Events: events})
	}
}

// FontHandler returns 1 bpp glyph bitmaps for chars, keyed by the hex of
// each character's UTF-8 bytes. Byte values are sent as number arrays, the
// form the device's font cache stores.
func (s *Server) FontHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chars := r.URL.Query().Get("chars")
		if !utf8.ValidString(chars) || utf8.RuneCountInString(chars) > maxFontChars {
			writeError(w, r, qerrors.Wrapf(qerrors.ErrInvalidRequest, "chars must be valid UTF-8 of at most %d characters", maxFontChars))
			return
		}

		glyphs, missing := bitmap.Glyphs(chars)
		if len(missing) > 0 {
			log.Debug().Str("missing", string(missing)).Msg("font request has unsupported characters")
		}

		resp := make(map[string][]int, len(glyphs))
		for key, data := range glyphs {
			values := make([]int, len(data))
			for i, b := range data {
				values[i] = int(b)
			}
			resp[key] = values
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
