package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/spsweb/erp-core/internal/core"
	lotdomain "github.com/spsweb/erp-core/internal/lot/domain"
	seqdomain "github.com/spsweb/erp-core/internal/sequence/domain"
	"github.com/spsweb/erp-core/internal/stock/domain"
	"github.com/spsweb/erp-core/internal/stock/usecase/command"
	"github.com/spsweb/erp-core/internal/stock/usecase/query"
	tenantdomain "github.com/spsweb/erp-core/internal/tenant/domain"
	"github.com/spsweb/erp-core/internal/tenant/registry"
	"github.com/spsweb/erp-core/pkg/logger"
)

// SlugHeader carries the license slug routing every request to its tenant
const SlugHeader = "X-License-Slug"

// StockHandler handles HTTP requests for the stock core
type StockHandler struct {
	core *core.Core
}

// NewStockHandler creates a new stock handler
func NewStockHandler(c *core.Core) *StockHandler {
	return &StockHandler{core: c}
}

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// RegisterRoutes registers the stock routes
func (h *StockHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/stock/movements", h.ApplyMovement).Methods("POST")
	router.HandleFunc("/api/stock/movements", h.ListMovements).Methods("GET")
	router.HandleFunc("/api/stock/balance", h.GetBalance).Methods("GET")
	router.HandleFunc("/api/sequences/next", h.NextSequence).Methods("POST")
}

func slugFrom(r *http.Request) string {
	return r.Header.Get(SlugHeader)
}

// ApplyMovement handles POST /api/stock/movements
func (h *StockHandler) ApplyMovement(w http.ResponseWriter, r *http.Request) {
	slug := slugFrom(r)
	if slug == "" {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Missing " + SlugHeader + " header"})
		return
	}

	var req struct {
		Company   string  `json:"company"`
		Branch    string  `json:"branch"`
		Warehouse string  `json:"warehouse"`
		Item      string  `json:"item"`
		Direction string  `json:"direction"`
		Quantity  string  `json:"quantity"`
		UnitCost  *string `json:"unit_cost"`
		Actor     string  `json:"actor"`
		Reference string  `json:"reference"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}

	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid quantity"})
		return
	}
	var unitCost *decimal.Decimal
	if req.UnitCost != nil {
		c, err := decimal.NewFromString(*req.UnitCost)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid unit cost"})
			return
		}
		unitCost = &c
	}

	movement, err := h.core.ApplyMovement(r.Context(), slug, command.ApplyMovementCommand{
		Company:   req.Company,
		Branch:    req.Branch,
		Warehouse: req.Warehouse,
		Item:      req.Item,
		Direction: domain.Direction(req.Direction),
		Quantity:  qty,
		UnitCost:  unitCost,
		Actor:     req.Actor,
		Reference: req.Reference,
	})
	if err != nil {
		logger.Error(r.Context()).Err(err).Str("slug", slug).Msg("Failed to apply movement")
		respondJSON(w, statusFor(err), Response{Success: false, Error: err.Error()})
		return
	}

	respondJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Movement applied successfully",
		Data:    movement,
	})
}

// GetBalance handles GET /api/stock/balance
func (h *StockHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	slug := slugFrom(r)
	if slug == "" {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Missing " + SlugHeader + " header"})
		return
	}

	q := r.URL.Query()
	balance, err := h.core.Balance(r.Context(), slug, query.GetBalanceQuery{
		Company:   q.Get("company"),
		Branch:    q.Get("branch"),
		Warehouse: q.Get("warehouse"),
		Item:      q.Get("item"),
	})
	if err != nil {
		respondJSON(w, statusFor(err), Response{Success: false, Error: err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, Response{Success: true, Data: balance})
}

// ListMovements handles GET /api/stock/movements
func (h *StockHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	slug := slugFrom(r)
	if slug == "" {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Missing " + SlugHeader + " header"})
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	movements, err := h.core.Movements(r.Context(), slug, query.ListMovementsQuery{
		Company:   q.Get("company"),
		Branch:    q.Get("branch"),
		Warehouse: q.Get("warehouse"),
		Item:      q.Get("item"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		respondJSON(w, statusFor(err), Response{Success: false, Error: err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, Response{Success: true, Data: movements})
}

// NextSequence handles POST /api/sequences/next
func (h *StockHandler) NextSequence(w http.ResponseWriter, r *http.Request) {
	slug := slugFrom(r)
	if slug == "" {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Missing " + SlugHeader + " header"})
		return
	}

	var req struct {
		Company        string `json:"company"`
		Branch         string `json:"branch"`
		ScopeType      string `json:"scope_type"`
		ScopeQualifier string `json:"scope_qualifier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}

	next, err := h.core.NextSequence(r.Context(), slug, req.Company, req.Branch, seqdomain.Scope{
		Type:      req.ScopeType,
		Qualifier: req.ScopeQualifier,
	})
	if err != nil {
		respondJSON(w, statusFor(err), Response{Success: false, Error: err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    map[string]int64{"next": next},
	})
}

// statusFor maps core errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, tenantdomain.ErrUnknownTenant):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidDirection),
		errors.Is(err, domain.ErrUnitCostRequired):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, lotdomain.ErrInsufficientLotStock):
		return http.StatusConflict
	case errors.Is(err, domain.ErrMovementConflict),
		errors.Is(err, seqdomain.ErrRetriesExhausted):
		return http.StatusConflict
	case errors.Is(err, registry.ErrCredentialsMissing),
		errors.Is(err, registry.ErrConnectionFailed),
		errors.Is(err, tenantdomain.ErrCatalogUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, payload Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
