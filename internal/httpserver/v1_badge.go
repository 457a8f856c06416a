package httpserver

import (
	"net/http"
)

type badgeResponse struct {
	Count int `json:"count"`
}

func (api *v1API) handleBadge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeAPIError(w, ErrCodeMethodNotAllowed, "method not allowed")
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	count, err := api.svcs.Badge.Badge(r.Context(), userID)
	if err != nil {
		api.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, badgeResponse{Count: count})
}
