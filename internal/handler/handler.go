package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/honeynil/ShopBotLedger/internal/conversation"
	"github.com/honeynil/ShopBotLedger/internal/models"
	service "github.com/honeynil/ShopBotLedger/internal/services"
	pkgerrors "github.com/honeynil/ShopBotLedger/pkg/errors"
)

// EventHandler runs one inbound chat event through the conversation.
type EventHandler interface {
	Handle(ctx context.Context, ev conversation.Event) (conversation.Outcome, error)
}

type Handler struct {
	events   EventHandler
	accounts *service.AccountService
	orders   *service.OrderService
	coins    *service.CoinService
	wallets  *service.WalletService
}

func NewHandler(
	events EventHandler,
	accounts *service.AccountService,
	orders *service.OrderService,
	coins *service.CoinService,
	wallets *service.WalletService,
) *Handler {
	return &Handler{events: events, accounts: accounts, orders: orders, coins: coins, wallets: wallets}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps an error category to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pkgerrors.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, pkgerrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, pkgerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pkgerrors.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		// Store details stay in the logs.
		h.writeError(w, status, errors.New("internal error"))
		return
	}
	h.writeError(w, status, err)
}

func (h *Handler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/admin/login", h.AdminLogin).Methods("POST")
}

func (h *Handler) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/orders", h.ListOrders).Methods("GET")
	r.HandleFunc("/orders/{id:[0-9]+}/confirm", h.ConfirmOrder).Methods("POST")
	r.HandleFunc("/orders/{id:[0-9]+}/cancel", h.CancelOrder).Methods("POST")
	r.HandleFunc("/orders/{id:[0-9]+}", h.DeleteOrder).Methods("DELETE")
	r.HandleFunc("/users/{id:[0-9]+}/coins", h.GrantCoins).Methods("POST")
	r.HandleFunc("/users/{id:[0-9]+}/deposit", h.Deposit).Methods("POST")
}

// HandleEvent answers a webhook delivery with the outcome to show the user.
// Redeliveries are acknowledged with 200 and no outcome.
func (h *Handler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	var ev conversation.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	out, err := h.events.Handle(r.Context(), ev)
	if errors.Is(err, conversation.ErrDuplicateEvent) {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	token, err := h.accounts.AdminLogin(r.Context(), req.Password)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, pkgerrors.ErrInvalidInput)
			return
		}
		limit = n
	}

	var (
		orders []models.Order
		err    error
	)
	switch r.URL.Query().Get("status") {
	case "":
		orders, err = h.orders.ListRecentOrders(r.Context(), limit)
	case string(models.OrderPending):
		orders, err = h.orders.ListPending(r.Context(), limit)
	default:
		h.writeError(w, http.StatusBadRequest, pkgerrors.ErrInvalidStatus)
		return
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, models.OrderConfirmed)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, models.OrderCanceled)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request, status models.OrderStatus) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	changed, err := h.orders.SetStatus(r.Context(), id, status, models.SourceAdmin)
	if err != nil {
		h.fail(w, err)
		return
	}
	if !changed {
		h.writeError(w, http.StatusConflict, pkgerrors.ErrOrderNotPending)
		return
	}
	order, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.orders.DeleteOrder(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GrantCoins(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	balance, err := h.coins.AddCoins(r.Context(), id, req.Amount, models.ReasonAdminGrant)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	balance, err := h.wallets.Deposit(r.Context(), id, req.Amount)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]decimal.Decimal{"balance": balance})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, pkgerrors.ErrInvalidInput)
		return 0, false
	}
	return id, true
}
