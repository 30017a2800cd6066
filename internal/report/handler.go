package report

import (
	"net/http"

	"github.com/talktivity/voicebridge/internal/api"
	"github.com/talktivity/voicebridge/internal/auth"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Generate handles POST /api/v1/reports.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	rep, err := h.service.Generate(r.Context(), claims.UserID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSON(w, http.StatusCreated, rep)
}

// Latest handles GET /api/v1/reports/latest.
func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	rep, err := h.service.Latest(r.Context(), claims.UserID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, rep)
}
