package httpserver

import (
	"net/http"
)

type inviteRequest struct {
	UserIDs      []string `json:"userIds"`
	PhoneNumbers []string `json:"phoneNumbers"`
}

type linkPhoneRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

type linkPhoneResponse struct {
	MigratedEvents int `json:"migratedEvents"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

func (api *v1API) handleEventSubroutes(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path)
	// Expected: ["v1", "events", "{id}", "{action}"]
	if len(parts) != 4 {
		writeAPIError(w, ErrCodeNotFound, "not found")
		return
	}
	if r.Method != http.MethodPost {
		writeAPIError(w, ErrCodeMethodNotAllowed, "method not allowed")
		return
	}

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	eventID := parts[2]

	switch parts[3] {
	case "accept":
		api.finishTransition(w, r, api.svcs.Roster.Accept(r.Context(), eventID, userID))
	case "decline":
		api.finishTransition(w, r, api.svcs.Roster.Decline(r.Context(), eventID, userID))
	case "accept-declined":
		api.finishTransition(w, r, api.svcs.Roster.AcceptDeclined(r.Context(), eventID, userID))
	case "leave":
		api.finishTransition(w, r, api.svcs.Roster.Leave(r.Context(), eventID, userID))
	case "invite":
		api.handleInvite(w, r, eventID)
	default:
		writeAPIError(w, ErrCodeNotFound, "not found")
	}
}

func (api *v1API) finishTransition(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		api.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (api *v1API) handleInvite(w http.ResponseWriter, r *http.Request, eventID string) {
	var req inviteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.UserIDs) == 0 && len(req.PhoneNumbers) == 0 {
		writeAPIError(w, ErrCodeValidation, "nothing to invite")
		return
	}

	if err := api.svcs.Roster.Invite(r.Context(), eventID, req.UserIDs, req.PhoneNumbers); err != nil {
		api.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (api *v1API) handleLinkPhone(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeAPIError(w, ErrCodeMethodNotAllowed, "method not allowed")
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req linkPhoneRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PhoneNumber == "" {
		writeAPIError(w, ErrCodeValidation, "phoneNumber is required")
		return
	}

	migrated, err := api.svcs.Roster.LinkPhone(r.Context(), userID, req.PhoneNumber)
	if err != nil {
		api.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, linkPhoneResponse{MigratedEvents: migrated})
}
