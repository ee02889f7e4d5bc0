package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medcheck/MedCheck-Engine/internal/domain/alert"
	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/monitoring/logging"
	"github.com/medcheck/MedCheck-Engine/pkg/errors"
)

// AlertHandler serves read access to the alert corpus.
type AlertHandler struct {
	repo alert.Repository
	log  logging.Logger
}

// NewAlertHandler creates an AlertHandler.
func NewAlertHandler(repo alert.Repository, log logging.Logger) *AlertHandler {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &AlertHandler{repo: repo, log: log.Named("alert_handler")}
}

// ListActive handles GET /api/v1/alerts.
func (h *AlertHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.repo.ListActive(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	if alerts == nil {
		alerts = []*alert.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// Get handles GET /api/v1/alerts/{alertID}.
func (h *AlertHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "alertID")
	if id == "" {
		writeAppError(w, errors.New(errors.ErrCodeBadRequest, "alert id is required"))
		return
	}

	a, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
