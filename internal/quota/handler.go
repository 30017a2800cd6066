package quota

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/talktivity/voicebridge/internal/api"
	"github.com/talktivity/voicebridge/internal/auth"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetStatus handles GET /api/v1/quota/{kind}.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	kind, ok := ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		api.HandleError(w, api.NewBadRequestError("unknown session kind"))
		return
	}

	api.JSON(w, http.StatusOK, h.service.Status(r.Context(), claims.UserID, kind))
}
