package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/esports-arena/middleware"
	"github.com/Dosada05/esports-arena/models"
	"github.com/Dosada05/esports-arena/services"
)

type RegistrationHandler struct {
	registrationService services.RegistrationService
	logger              *slog.Logger
}

func NewRegistrationHandler(rs services.RegistrationService, logger *slog.Logger) *RegistrationHandler {
	return &RegistrationHandler{
		registrationService: rs,
		logger:              logger,
	}
}

func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
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

	reg, err := h.registrationService.Register(r.Context(), tournamentID, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, h.logger, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"registration": reg}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

func (h *RegistrationHandler) ListByTournament(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}

	regs, err := h.registrationService.ListByTournament(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, h.logger, err)
		return
	}
	if regs == nil {
		regs = []*models.TournamentRegistration{}
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"registrations": regs}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

type updateRegistrationStatusInput struct {
	Status models.RegistrationStatus `json:"status"`
}

func (h *RegistrationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	registrationID, err := getIDFromURL(r, "registrationID")
	if err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}
	var input updateRegistrationStatusInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, h.logger)
		return
	}
	role, err := middleware.GetUserRoleFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, h.logger)
		return
	}

	reg, err := h.registrationService.UpdateStatus(r.Context(), registrationID, input.Status, userID, role)
	if err != nil {
		mapServiceErrorToHTTP(w, r, h.logger, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"registration": reg}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}
