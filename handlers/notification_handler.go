package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/esports-arena/middleware"
	"github.com/Dosada05/esports-arena/models"
	"github.com/Dosada05/esports-arena/services"
)

type NotificationHandler struct {
	notificationService services.NotificationService
	logger              *slog.Logger
}

func NewNotificationHandler(ns services.NotificationService, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationService: ns,
		logger:              logger,
	}
}

// List отдаёт уведомления текущего пользователя, новые первыми. ?unread=true - только непрочитанные.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, h.logger)
		return
	}
	unreadOnly := r.URL.Query().Get("unread") == "true"

	list, err := h.notificationService.ListForUser(r.Context(), userID, unreadOnly)
	if err != nil {
		mapServiceErrorToHTTP(w, r, h.logger, err)
		return
	}
	if list == nil {
		list = []*models.Notification{}
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"notifications": list}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	notificationID, err := getIDFromURL(r, "notificationID")
	if err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, h.logger)
		return
	}

	if err := h.notificationService.MarkRead(r.Context(), notificationID, userID); err != nil {
		mapServiceErrorToHTTP(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
