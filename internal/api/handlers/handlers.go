package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/MansurAzad/cashbook/internal/api/middleware"
	"github.com/MansurAzad/cashbook/internal/datasync"
	"github.com/MansurAzad/cashbook/internal/domain"
	"github.com/MansurAzad/cashbook/internal/report"
)

// recordKinds are the kinds the generic record endpoints accept. Transactions
// have their own endpoints because of balance reconciliation.
var recordKinds = map[domain.Kind]bool{
	domain.KindCategory:   true,
	domain.KindBudget:     true,
	domain.KindGoal:       true,
	domain.KindBill:       true,
	domain.KindInvestment: true,
	domain.KindAccount:    true,
	domain.KindLoan:       true,
}

// DataHandler exposes the snapshot and record mutations.
type DataHandler struct {
	svc *datasync.Service
	log zerolog.Logger
}

// NewDataHandler creates a new data handler.
func NewDataHandler(svc *datasync.Service, log zerolog.Logger) *DataHandler {
	return &DataHandler{svc: svc, log: log}
}

// GetData handles GET /api/data
func (h *DataHandler) GetData(w http.ResponseWriter, r *http.Request) {
	snap := h.svc.FetchData(r.Context())
	middleware.WriteJSON(w, http.StatusOK, snap)
}

// AddTransaction handles POST /api/transactions
func (h *DataHandler) AddTransaction(w http.ResponseWriter, r *http.Request) {
	var tx domain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	snap, err := h.svc.AddTransaction(r.Context(), tx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to add transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to add transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, snap)
}

// UpdateTransaction handles PUT /api/transactions/{id}
func (h *DataHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request, id string) {
	var tx domain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	snap, err := h.svc.UpdateTransaction(r.Context(), id, tx)
	if err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("Failed to update transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, snap)
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *DataHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request, id string) {
	snap := h.svc.DeleteTransaction(r.Context(), id)
	middleware.WriteJSON(w, http.StatusOK, snap)
}

// AddRecord handles POST /api/records/{kind}
func (h *DataHandler) AddRecord(w http.ResponseWriter, r *http.Request, kind domain.Kind) {
	if !recordKinds[kind] {
		middleware.WriteError(w, http.StatusBadRequest, "Unknown record kind")
		return
	}
	var data map[string]any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	snap, err := h.svc.Add(r.Context(), kind, data)
	if err != nil {
		h.log.Error().Err(err).Str("kind", string(kind)).Msg("Failed to add record")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to add record")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, snap)
}

// UpdateRecord handles PUT /api/records/{kind}/{id}
func (h *DataHandler) UpdateRecord(w http.ResponseWriter, r *http.Request, kind domain.Kind, id string) {
	if !recordKinds[kind] {
		middleware.WriteError(w, http.StatusBadRequest, "Unknown record kind")
		return
	}
	var data map[string]any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	snap, err := h.svc.Update(r.Context(), kind, id, data)
	if err != nil {
		h.log.Error().Err(err).Str("kind", string(kind)).Str("id", id).Msg("Failed to update record")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update record")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, snap)
}

// DeleteRecord handles DELETE /api/records/{kind}/{id}
func (h *DataHandler) DeleteRecord(w http.ResponseWriter, r *http.Request, kind domain.Kind, id string) {
	if !recordKinds[kind] {
		middleware.WriteError(w, http.StatusBadRequest, "Unknown record kind")
		return
	}
	snap := h.svc.Delete(r.Context(), kind, id)
	middleware.WriteJSON(w, http.StatusOK, snap)
}

// GetSettings handles GET /api/settings
func (h *DataHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.svc.Settings())
}

// SaveSettings handles PUT /api/settings
func (h *DataHandler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	var settings domain.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.svc.SaveSettings(settings)
	middleware.WriteJSON(w, http.StatusOK, settings)
}

// ReportsHandler exposes the derived views.
type ReportsHandler struct {
	svc *datasync.Service
	log zerolog.Logger
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(svc *datasync.Service, log zerolog.Logger) *ReportsHandler {
	return &ReportsHandler{svc: svc, log: log}
}

// GetHealth handles GET /api/reports/health
func (h *ReportsHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	snap := h.svc.FetchData(r.Context())
	middleware.WriteJSON(w, http.StatusOK, report.FinancialHealth(snap))
}

// GetBudgets handles GET /api/reports/budgets?month=YYYY-MM
func (h *ReportsHandler) GetBudgets(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	if month == "" {
		month = time.Now().Format("2006-01")
	}
	if _, err := time.Parse("2006-01", month); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid month format, expected YYYY-MM")
		return
	}

	snap := h.svc.FetchData(r.Context())
	middleware.WriteJSON(w, http.StatusOK, report.MonthlyBudgetStatus(snap.Transactions, snap.Budgets, month))
}

// GetTotals handles GET /api/reports/totals
func (h *ReportsHandler) GetTotals(w http.ResponseWriter, r *http.Request) {
	snap := h.svc.FetchData(r.Context())
	middleware.WriteJSON(w, http.StatusOK, report.CalculateTotals(snap.Transactions))
}
