package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/esports-arena/middleware"
	"github.com/Dosada05/esports-arena/models"
	"github.com/Dosada05/esports-arena/services"
)

type WaitlistHandler struct {
	waitlistService services.WaitlistService
	logger          *slog.Logger
}

func NewWaitlistHandler(ws services.WaitlistService, logger *slog.Logger) *WaitlistHandler {
	return &WaitlistHandler{
		waitlistService: ws,
		logger:          logger,
	}
}

func (h *WaitlistHandler) Join(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, h.logger)
		return
	}

	entry, err := h.waitlistService.Join(r.Context(), tournamentID, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, h.logger, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"entry": entry}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

func (h *WaitlistHandler) List(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}

	entries, err := h.waitlistService.List(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, h.logger, err)
		return
	}
	if entries == nil {
		entries = []*models.WaitlistEntry{}
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"waitlist": entries}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

func (h *WaitlistHandler) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, h.logger)
		return
	}

	reg, err := h.waitlistService.AcceptOffer(r.Context(), tournamentID, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, h.logger, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"registration": reg}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}
