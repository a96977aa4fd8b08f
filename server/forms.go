package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	qerrors "github.com/pascalpierre555/quantix/internal/errors"
)

const maxFormBytes = 1 << 16

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoginForm is the body of POST /login.
type LoginForm struct {
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required,max=256"`
}

// CalendarForm is the body of POST /api/calendar.
type CalendarForm struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

// decodeForm reads a JSON body into form and validates it. Every failure is
// an ErrInvalidRequest carrying a message for the caller.
func decodeForm(r *http.Request, form any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxFormBytes))
	if err := dec.Decode(form); err != nil {
		if errors.Is(err, io.EOF) {
			return qerrors.Wrapf(qerrors.ErrInvalidRequest, "request body is empty")
		}
		return qerrors.Wrapf(qerrors.ErrInvalidRequest, "request body is not valid JSON")
	}
	if err := validate.Struct(form); err != nil {
		return qerrors.Wrapf(qerrors.ErrInvalidRequest, "%s", validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return "invalid request"
	}
	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", field))
		case "datetime":
			messages = append(messages, fmt.Sprintf("%s must be formatted as %s", field, fe.Param()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s is too long", field))
		default:
			messages = append(messages, fmt.Sprintf("%s is invalid", field))
		}
	}
	return strings.Join(messages, "; ")
}
