package httpserver

import (
	"net/http"
)

type friendRequestRequest struct {
	UserID string `json:"userId"`
}

type listFriendsResponse struct {
	Friends []string `json:"friends"`
}

type listRequestsResponse struct {
	Requests []string `json:"requests"`
}

func (api *v1API) handleFriends(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeAPIError(w, ErrCodeMethodNotAllowed, "method not allowed")
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	friends, err := api.svcs.Social.Friends(r.Context(), userID)
	if err != nil {
		api.writeDomainError(w, err)
		return
	}
	if friends == nil {
		friends = []string{}
	}
	writeJSON(w, http.StatusOK, listFriendsResponse{Friends: friends})
}

func (api *v1API) handleFriendSubroutes(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path)
	// Expected: ["v1", "friends", ...].
	rest := parts[2:]

	switch {
	case len(rest) == 1 && rest[0] == "requests" && r.Method == http.MethodGet:
		api.handleListRequests(w, r)
	case len(rest) == 1 && rest[0] == "requests" && r.Method == http.MethodPost:
		api.handleSendRequest(w, r)
	case len(rest) == 2 && rest[0] == "requests" && rest[1] == "accept" && r.Method == http.MethodPost:
		api.handleAcceptRequest(w, r)
	case len(rest) == 1 && r.Method == http.MethodDelete:
		api.handleRemoveFriend(w, r, rest[0])
	default:
		writeAPIError(w, ErrCodeNotFound, "not found")
	}
}

func (api *v1API) handleListRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	requests, err := api.svcs.Social.PendingRequests(r.Context(), userID)
	if err != nil {
		api.writeDomainError(w, err)
		return
	}
	if requests == nil {
		requests = []string{}
	}
	writeJSON(w, http.StatusOK, listRequestsResponse{Requests: requests})
}

func (api *v1API) handleSendRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req friendRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		writeAPIError(w, ErrCodeValidation, "userId is required")
		return
	}
	// The friend graph itself does not reject self-requests; this layer
	// must.
	if req.UserID == userID {
		writeAPIError(w, ErrCodeCannotFriendSelf, "cannot send a friend request to yourself")
		return
	}

	if err := api.svcs.Social.SendRequest(r.Context(), userID, req.UserID); err != nil {
		api.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (api *v1API) handleAcceptRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req friendRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		writeAPIError(w, ErrCodeValidation, "userId is required")
		return
	}

	if err := api.svcs.Social.Accept(r.Context(), req.UserID, userID); err != nil {
		api.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (api *v1API) handleRemoveFriend(w http.ResponseWriter, r *http.Request, friendID string) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := api.svcs.Social.Remove(r.Context(), userID, friendID); err != nil {
		api.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
