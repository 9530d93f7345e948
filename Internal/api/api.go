package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	datafeed "github.com/fazecat/mogulscan/Internal/database"
	"github.com/fazecat/mogulscan/Internal/handlers/monitoring"
	"github.com/fazecat/mogulscan/Internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	tokenTTL        = 24 * time.Hour
	maxPurchaseRows = 500
)

type StatusSource interface {
	Stats() monitoring.Stats
	LastScan() *types.ScanResult
}

// PurchaseLister is satisfied by both the journal and the in-memory history.
type PurchaseLister interface {
	RecentPurchases(ctx context.Context, symbol string, limit int) ([]datafeed.PurchaseRecord, error)
}

type API struct {
	Status     StatusSource
	Purchases  PurchaseLister
	JWTManager *JWTManager
	AdminKey   string
	// HealthCheck reports dependency health, nil means always healthy
	HealthCheck func(ctx context.Context) error
}

type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response{Success: true, Data: data}); err != nil {
		log.Printf("⚠️  Failed to encode response: %v", err)
	}
}

func WriteError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response{Success: false, Error: message})
}

func NewRouter(api *API) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(CorsMiddleware)

	r.Get("/health", api.HandleHealth)
	r.Post("/api/token", api.HandleGenerateToken)

	r.Group(func(r chi.Router) {
		r.Use(JWTAuthMiddleware(api.JWTManager))
		r.Get("/api/scanner/status", api.HandleScannerStatus)
		r.Get("/api/scanner/last-scan", api.HandleLastScan)
		r.Get("/api/purchases", api.HandleGetPurchases)
		r.Get("/api/purchases/{symbol}", api.HandleGetPurchases)
	})

	return r
}

func (api *API) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if api.HealthCheck != nil {
		if err := api.HealthCheck(r.Context()); err != nil {
			WriteError(w, http.StatusServiceUnavailable, "unhealthy: "+err.Error())
			return
		}
	}
	WriteJSON(w, http.StatusOK, "healthy")
}

func (api *API) HandleGenerateToken(w http.ResponseWriter, r *http.Request) {
	if api.AdminKey == "" {
		WriteError(w, http.StatusForbidden, "Token issuing is disabled")
		return
	}
	key := r.Header.Get("X-Admin-Key")
	if subtle.ConstantTimeCompare([]byte(key), []byte(api.AdminKey)) != 1 {
		WriteError(w, http.StatusUnauthorized, "Invalid admin key")
		return
	}

	var req struct {
		UserID string `json:"user_id"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	if req.UserID == "" {
		req.UserID = "admin"
	}

	token, err := api.JWTManager.GenerateToken(req.UserID, tokenTTL)
	if err != nil {
		log.Printf("❌ Token generation failed: %v", err)
		WriteError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"expires_in": int(tokenTTL.Seconds()),
	})
}

func (api *API) HandleScannerStatus(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, api.Status.Stats())
}

func (api *API) HandleLastScan(w http.ResponseWriter, r *http.Request) {
	scan := api.Status.LastScan()
	if scan == nil {
		WriteError(w, http.StatusNotFound, "No scan has completed yet")
		return
	}
	WriteJSON(w, http.StatusOK, scan)
}

func (api *API) HandleGetPurchases(w http.ResponseWriter, r *http.Request) {
	if api.Purchases == nil {
		WriteError(w, http.StatusServiceUnavailable, "Purchase history unavailable")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > maxPurchaseRows {
			n = maxPurchaseRows
		}
		limit = n
	}
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))

	records, err := api.Purchases.RecentPurchases(r.Context(), symbol, limit)
	if err != nil {
		log.Printf("❌ Error fetching purchases: %v", err)
		WriteError(w, http.StatusInternalServerError, "Failed to fetch purchases")
		return
	}
	if records == nil {
		records = []datafeed.PurchaseRecord{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"purchases": records,
		"count":     len(records),
	})
}

// Serve runs the HTTP server until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("🌐 Status API listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
