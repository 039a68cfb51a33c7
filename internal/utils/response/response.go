package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
)

type Response struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(data)
}

func GeneralError(err error) Response {
	return Response{
		Status: StatusError,
		Error:  err.Error(),
	}
}

// ErrorMessage is GeneralError for callers that must not expose the
// underlying error.
func ErrorMessage(msg string) Response {
	return GeneralError(errors.New(msg))
}

// ValidationError reports msg and lists the failed rule per field in Data.
func ValidationError(msg string, errs validator.ValidationErrors) Response {
	fields := make(map[string]string, len(errs))
	for _, err := range errs {
		rule := err.Tag()
		if err.Param() != "" {
			rule += "=" + err.Param()
		}
		fields[err.Field()] = rule
	}

	return Response{
		Status: StatusError,
		Error:  msg,
		Data:   fields,
	}
}

func RequestOK(message string, data any) Response {
	return Response{
		Status:  StatusSuccess,
		Message: message,
		Data:    data,
	}
}
