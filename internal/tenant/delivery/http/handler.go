package http

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/spsweb/erp-core/internal/tenant/domain"
	"github.com/spsweb/erp-core/internal/tenant/registry"
	"github.com/spsweb/erp-core/pkg/logger"
)

// TenantHandler handles HTTP requests for the license catalog
type TenantHandler struct {
	catalog  domain.CatalogRepository
	registry *registry.Registry
}

// NewTenantHandler creates a new tenant handler
func NewTenantHandler(catalog domain.CatalogRepository, reg *registry.Registry) *TenantHandler {
	return &TenantHandler{catalog: catalog, registry: reg}
}

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// RegisterRoutes registers the tenant routes
func (h *TenantHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/tenants", h.ListTenants).Methods("GET")
}

// RegisterHealthCheck registers the health endpoint against the control DB
func (h *TenantHandler) RegisterHealthCheck(router *mux.Router, db *sql.DB) {
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, Response{Success: false, Error: "control database unreachable"})
			return
		}
		respondJSON(w, http.StatusOK, Response{Success: true, Data: map[string]string{"status": "ok"}})
	}).Methods("GET")
}

type tenantView struct {
	Slug     string `json:"slug"`
	DBName   string `json:"db_name"`
	DBHost   string `json:"db_host"`
	Modules  string `json:"modules"`
	Resolved bool   `json:"resolved"`
}

// ListTenants handles GET /api/tenants. Credentials never leave the server.
func (h *TenantHandler) ListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.catalog.ListTenants(r.Context())
	if err != nil {
		logger.Error(r.Context()).Err(err).Msg("Failed to list tenants")
		respondJSON(w, http.StatusServiceUnavailable, Response{Success: false, Error: err.Error()})
		return
	}

	views := make([]tenantView, 0, len(tenants))
	for _, t := range tenants {
		views = append(views, tenantView{
			Slug:     t.Slug,
			DBName:   t.DBName,
			DBHost:   t.DBHost,
			Modules:  t.Modules,
			Resolved: h.registry.Known(t.Slug),
		})
	}
	respondJSON(w, http.StatusOK, Response{Success: true, Data: views})
}

func respondJSON(w http.ResponseWriter, status int, payload Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
