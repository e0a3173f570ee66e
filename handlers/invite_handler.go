package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Dosada05/esports-arena/middleware"
	"github.com/Dosada05/esports-arena/services"
)

type InviteHandler struct {
	inviteService services.InviteService
	publicURL     string
	logger        *slog.Logger
}

func NewInviteHandler(is services.InviteService, publicURL string, logger *slog.Logger) *InviteHandler {
	return &InviteHandler{
		inviteService: is,
		publicURL:     strings.TrimRight(publicURL, "/"),
		logger:        logger,
	}
}

func (h *InviteHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, h.logger)
		return
	}

	invite, err := h.inviteService.CreateInvite(r.Context(), teamID, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, h.logger, err)
		return
	}

	// Токен в модели скрыт от JSON, капитан получает его только здесь.
	response := jsonResponse{
		"invite":       invite,
		"invite_token": invite.Token,
		"invite_link":  h.publicURL + "/invites/" + invite.Token,
	}
	if err := writeJSON(w, http.StatusCreated, response, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

func (h *InviteHandler) ListTeamInvites(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, h.logger)
		return
	}

	invites, err := h.inviteService.ListTeamInvites(r.Context(), teamID, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, h.logger, err)
		return
	}

	items := make([]jsonResponse, 0, len(invites))
	for _, inv := range invites {
		items = append(items, jsonResponse{
			"id":           inv.ID,
			"team_id":      inv.TeamID,
			"expires_at":   inv.ExpiresAt,
			"invite_token": inv.Token,
		})
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"invites": items}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

func (h *InviteHandler) JoinTeam(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		badRequestResponse(w, r, h.logger, errors.New("missing invite token in URL path"))
		return
	}
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, h.logger)
		return
	}

	team, err := h.inviteService.AcceptInvite(r.Context(), token, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, h.logger, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"team": team}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}
