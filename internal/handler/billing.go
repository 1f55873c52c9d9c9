package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/lodgepole/rentroll/internal/domain"
	"github.com/lodgepole/rentroll/internal/middleware"
	"github.com/lodgepole/rentroll/internal/scheduler"
)

// BillingHandler exposes the scheduler's trigger surface: the hourly billing
// run and the accounting-mirror repair pass. Both run unattended; responses
// exist for the operator or monitoring system behind the trigger.
type BillingHandler struct {
	runner *scheduler.Runner
	logger *slog.Logger
}

// NewBillingHandler creates the trigger handler.
func NewBillingHandler(runner *scheduler.Runner, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{runner: runner, logger: logger}
}

// HandleRun handles POST /internal/billing/run.
// Returns 200 with the batch summary on any non-fatal completion; 500 only
// when the store prevented the batch from running at all.
func (h *BillingHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context(), h.logger)

	summary, err := h.runner.Run(r.Context())
	if err != nil {
		logger.Error("billing run failed", "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// HandleRepair handles POST /internal/billing/repair.
// Retries the accounting mirror for charges still unsynced past the grace
// period. Idempotent.
func (h *BillingHandler) HandleRepair(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context(), h.logger)

	summary, err := h.runner.Repair(r.Context())
	if err != nil {
		logger.Error("repair pass failed", "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// HandleHealth handles GET /healthz.
func (h *BillingHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// errorResponse is the JSON body for fatal failures.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, err error) {
	// Fatal top-level failures (store unreachable) are the only path here;
	// everything lease-scoped is already folded into the summary.
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error: domain.ErrorMessage(err),
		Code:  domain.ErrorCode(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
