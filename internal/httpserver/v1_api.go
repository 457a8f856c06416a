package httpserver

import (
	"encoding/json"
	"net/http"
	"strings"

	"log/slog"
)

const maxBodyBytes = 1 << 20

type v1API struct {
	logger *slog.Logger
	svcs   Services
}

func newV1API(logger *slog.Logger, svcs Services) *v1API {
	return &v1API{logger: logger, svcs: svcs}
}

type apiError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, code ErrorCode, message string) {
	writeJSON(w, httpStatusForCode(code), apiErrorResponse{
		Error: apiError{Code: code, Message: message},
	})
}

// writeDomainError logs the real error and sends the client a short
// generic message.
func (api *v1API) writeDomainError(w http.ResponseWriter, err error) {
	code, message := codeAndMessage(err)
	if code == ErrCodeInternal {
		api.logger.Error("request failed", "error", err)
	}
	writeAPIError(w, code, message)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeAPIError(w, ErrCodeValidation, "invalid request body")
		return false
	}
	return true
}

// requireUser returns the authenticated user id or writes a 401.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		writeAPIError(w, ErrCodeTokenInvalid, "authentication required")
		return "", false
	}
	return userID, true
}

func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
