package handler

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ezbirr/p2p-exchange/internal/models"
	"github.com/ezbirr/p2p-exchange/internal/repository"
	service "github.com/ezbirr/p2p-exchange/internal/services"
	pkgerrors "github.com/ezbirr/p2p-exchange/pkg/errors"
	"github.com/gorilla/mux"
)

type Handler struct {
	service service.ExchangeService
}

func NewHandler(s service.ExchangeService) *Handler {
	return &Handler{service: s}
}

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type listResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
	Total   int  `json:"total"`
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/", h.Root).Methods("GET")
	r.HandleFunc("/health", h.Health).Methods("GET")

	r.HandleFunc("/users", h.CreateUser).Methods("POST")
	r.HandleFunc("/users/{id}", h.GetUser).Methods("GET")

	r.HandleFunc("/listings", h.GetListings).Methods("GET")
	r.HandleFunc("/listings", h.CreateListing).Methods("POST")
	r.HandleFunc("/listings/{id}", h.UpdateListing).Methods("PUT")

	r.HandleFunc("/deals", h.CreateDeal).Methods("POST")
	r.HandleFunc("/deals/{trade_code}", h.GetDeal).Methods("GET")
	r.HandleFunc("/deals/{trade_code}/logs", h.GetDealLogs).Methods("GET")
	r.HandleFunc("/confirm-payment", h.ConfirmPayment).Methods("POST")

	r.HandleFunc("/admin/release-funds", h.ReleaseFunds).Methods("POST")
	r.HandleFunc("/admin/pending-deals", h.GetPendingDeals).Methods("GET")
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, pkgerrors.ErrUserNotFound),
		errors.Is(err, pkgerrors.ErrListingNotFound),
		errors.Is(err, pkgerrors.ErrDealNotFound):
		status = http.StatusNotFound
	case errors.Is(err, pkgerrors.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, pkgerrors.ErrInvalidInput),
		errors.Is(err, pkgerrors.ErrInvalidState),
		errors.Is(err, pkgerrors.ErrDuplicateIdentity):
		status = http.StatusBadRequest
	}
	h.writeJSON(w, status, apiResponse{Success: false, Message: err.Error()})
}

func requestMeta(r *http.Request) models.RequestMeta {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return models.RequestMeta{IPAddress: host, UserAgent: r.UserAgent()}
}

func pagination(r *http.Request) (limit, offset int) {
	limit, offset = 50, 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"message": "P2P USDT Trading Platform API",
		"status":  "running",
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name             string          `json:"name"`
		TelegramUsername string          `json:"telegram_username"`
		TelegramID       string          `json:"telegram_id"`
		Role             models.UserRole `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, pkgerrors.ErrInvalidInput)
		return
	}

	user, err := h.service.RegisterUser(r.Context(), req.Name, req.TelegramUsername, req.TelegramID, req.Role, requestMeta(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Message: "User created successfully",
		Data:    map[string]any{"user_id": user.ID},
	})
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.writeError(w, pkgerrors.ErrInvalidInput)
		return
	}
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

func (h *Handler) GetListings(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	filter := repository.ListingFilter{
		Status: models.ListingStatus(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	}
	if t := r.URL.Query().Get("type"); t == "buy" || t == "sell" {
		filter.Direction = models.ListingDirection(t)
	}

	listings, total, err := h.service.ListListings(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if listings == nil {
		listings = []models.Listing{}
	}
	h.writeJSON(w, http.StatusOK, listResponse{Success: true, Data: listings, Total: total})
}

func (h *Handler) CreateListing(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID        int64                   `json:"user_id"`
		Direction     models.ListingDirection `json:"type"`
		Amount        float64                 `json:"amount"`
		Rate          float64                 `json:"rate"`
		PaymentMethod string                  `json:"payment_method"`
		Contact       string                  `json:"contact"`
		MinAmount     *float64                `json:"min_amount"`
		MaxAmount     *float64                `json:"max_amount"`
		Description   string                  `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, pkgerrors.ErrInvalidInput)
		return
	}

	listing := &models.Listing{
		UserID:        req.UserID,
		Direction:     req.Direction,
		Amount:        req.Amount,
		Rate:          req.Rate,
		PaymentMethod: req.PaymentMethod,
		Contact:       req.Contact,
		MinAmount:     req.MinAmount,
		MaxAmount:     req.MaxAmount,
		Description:   req.Description,
	}
	listing, err := h.service.CreateListing(r.Context(), listing, requestMeta(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Message: "Listing created successfully",
		Data:    map[string]any{"listing_id": listing.ID},
	})
}

func (h *Handler) UpdateListing(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.writeError(w, pkgerrors.ErrInvalidInput)
		return
	}
	var upd models.ListingUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		h.writeError(w, pkgerrors.ErrInvalidInput)
		return
	}

	if err := h.service.UpdateListing(r.Context(), id, &upd, requestMeta(r)); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "Listing updated successfully"})
}

func (h *Handler) CreateDeal(w http.ResponseWriter, r *http.Request) {
	var req service.CreateDealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, pkgerrors.ErrInvalidInput)
		return
	}

	deal, err := h.service.CreateDeal(r.Context(), req, requestMeta(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Message: "Deal created successfully",
		Data: map[string]any{
			"deal_id":       deal.ID,
			"trade_code":    deal.TradeCode,
			"escrow_wallet": deal.EscrowWallet,
			"expires_at":    deal.ExpiresAt,
		},
	})
}

func (h *Handler) GetDeal(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.GetDeal(r.Context(), mux.Vars(r)["trade_code"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) GetDealLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.GetDealLogs(r.Context(), mux.Vars(r)["trade_code"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []models.LogEntry{}
	}
	h.writeJSON(w, http.StatusOK, listResponse{Success: true, Data: entries, Total: len(entries)})
}

func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TradeCode string `json:"trade_code"`
		UserID    int64  `json:"user_id"`
		Notes     string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, pkgerrors.ErrInvalidInput)
		return
	}

	deal, err := h.service.ConfirmPayment(r.Context(), req.TradeCode, req.UserID, req.Notes, requestMeta(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Message: "Payment confirmed successfully",
		Data:    map[string]any{"trade_code": deal.TradeCode, "status": deal.Status},
	})
}

func (h *Handler) ReleaseFunds(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TradeCode     string `json:"trade_code"`
		ReleaseSecret string `json:"release_secret"`
		Notes         string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, pkgerrors.ErrInvalidInput)
		return
	}

	deal, err := h.service.ReleaseFunds(r.Context(), req.TradeCode, req.ReleaseSecret, req.Notes, requestMeta(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Message: "Funds released successfully",
		Data: map[string]any{
			"trade_code":  deal.TradeCode,
			"usdt_amount": strconv.FormatFloat(deal.UsdtAmount, 'f', -1, 64),
			"commission":  strconv.FormatFloat(deal.CommissionAmount, 'f', -1, 64),
		},
	})
}

func (h *Handler) GetPendingDeals(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	status := models.DealStatus(r.URL.Query().Get("status"))

	deals, total, err := h.service.ListPendingDeals(r.Context(), status, limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if deals == nil {
		deals = []models.Deal{}
	}
	h.writeJSON(w, http.StatusOK, listResponse{Success: true, Data: deals, Total: total})
}
