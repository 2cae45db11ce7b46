package api

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/warp/workforce-billing/billing"
)

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type insufficientDetails struct {
	Balance    string `json:"balance"`
	Charge     string `json:"charge"`
	ActiveDays int    `json:"active_days,omitempty"`
}

type nothingDetails struct {
	StartDate        string `json:"start_date"`
	EndDate          string `json:"end_date"`
	OffDays          int    `json:"off_days"`
	AlreadyScheduled int    `json:"already_scheduled"`
}

// writeServiceError maps a service error onto a status and body.
// Unknown errors are logged and reported as 500 without detail.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ibe *billing.InsufficientBalanceError
	if errors.As(err, &ibe) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Message: "Insufficient balance",
			Details: insufficientDetails{
				Balance:    ibe.Available.Dollars(),
				Charge:     ibe.Charge.Dollars(),
				ActiveDays: ibe.ActiveDays,
			},
		})
		return
	}

	var nts *billing.NothingToScheduleError
	if errors.As(err, &nts) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Message: "No schedules were created as all dates are either holidays, weekends, or already scheduled",
			Details: nothingDetails{
				StartDate:        nts.Start,
				EndDate:          nts.End,
				OffDays:          nts.OffDays,
				AlreadyScheduled: nts.AlreadyScheduled,
			},
		})
		return
	}

	if errors.Is(err, billing.ErrValidation) {
		writeError(w, http.StatusBadRequest, validationMessage(err), nil)
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, billing.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, billing.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, billing.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, billing.ErrUnauthenticated):
		status = http.StatusUnauthorized
	}
	if status == http.StatusInternalServerError {
		h.log.WithContext(r.Context()).Errorw("request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, status, "Internal Server Error", nil)
		return
	}
	writeError(w, status, err.Error(), nil)
}

// validationMessage drops the field prefix of a single ValidationError.
func validationMessage(err error) string {
	var ve *billing.ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Message: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
