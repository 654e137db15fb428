package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/honeynil/ShopBotLedger/internal/config"
	"github.com/honeynil/ShopBotLedger/internal/infrastructure/observability"
	"github.com/honeynil/ShopBotLedger/internal/models"
	"github.com/honeynil/ShopBotLedger/internal/notify"
	"github.com/honeynil/ShopBotLedger/internal/repository"
	pkgerrors "github.com/honeynil/ShopBotLedger/pkg/errors"
)

const defaultOrderListLimit = 20

// Callback data of the admin review keyboard.
const (
	ConfirmOrderPrefix = "order:confirm:"
	CancelOrderPrefix  = "order:cancel:"
)

type OrderRequest struct {
	UserID          int64
	DisplayName     string
	ProductKey      string
	ProofRef        string
	DiscountPercent int
}

type OrderService struct {
	orders    repository.OrderRepository
	products  repository.ProductRepository
	coins     *CoinService
	notifier  notify.Notifier
	adminID   int64
	supportID string
	reward    int64
	newCode   func(prefix string, n int) string
}

func NewOrderService(
	orders repository.OrderRepository,
	products repository.ProductRepository,
	coins *CoinService,
	notifier notify.Notifier,
	adminID int64,
	supportID string,
	economy config.Economy,
) *OrderService {
	return &OrderService{
		orders:    orders,
		products:  products,
		coins:     coins,
		notifier:  notifier,
		adminID:   adminID,
		supportID: supportID,
		reward:    economy.PurchaseReward,
		newCode:   randomCode,
	}
}

// CreateOrder records a submitted payment proof as a pending order. The
// purchase reward and the admin notice are best effort; the order row is the
// source of truth.
func (s *OrderService) CreateOrder(ctx context.Context, req OrderRequest) (*models.Order, error) {
	ctx, span := startSpan(ctx, "CreateOrder",
		attribute.Int64("user_id", req.UserID),
		attribute.String("product_key", req.ProductKey),
	)
	defer span.End()

	if req.ProductKey == "" || req.ProofRef == "" || req.DiscountPercent < 0 || req.DiscountPercent >= 100 {
		failSpan(span, pkgerrors.ErrInvalidInput, "invalid order request")
		return nil, pkgerrors.ErrInvalidInput
	}

	product, err := s.products.Get(ctx, req.ProductKey)
	if err != nil {
		failSpan(span, err, "product lookup failed")
		return nil, err
	}
	reserved, err := s.products.Reserve(ctx, product.Key)
	if err != nil {
		failSpan(span, err, "stock reservation failed")
		return nil, err
	}
	if !reserved {
		return nil, pkgerrors.ErrOutOfStock
	}

	order := &models.Order{
		UserID:          req.UserID,
		DisplayName:     req.DisplayName,
		ProductKey:      product.Key,
		ProductName:     product.Name,
		Price:           product.DiscountedPrice(req.DiscountPercent),
		DiscountPercent: req.DiscountPercent,
		PaymentRef:      req.ProofRef,
	}
	if err := s.insert(ctx, order); err != nil {
		failSpan(span, err, "order insert failed")
		if relErr := s.products.Release(ctx, product.Key); relErr != nil {
			slog.Error("failed to release reserved stock", "product_key", product.Key, "error", relErr)
		}
		return nil, err
	}
	observability.OrdersCreated.Inc()

	if s.reward > 0 {
		if _, err := s.coins.AddCoins(ctx, order.UserID, s.reward, models.ReasonPurchaseReward); err != nil {
			slog.Error("failed to credit purchase reward", "order_id", order.ID, "user_id", order.UserID, "error", err)
		}
	}

	s.send(ctx, notify.Notification{
		ChatID: s.adminID,
		Text: fmt.Sprintf("New payment\nUser: %s (%d)\nProduct: %s\nPrice: %d\nTracking: %s\nProof: %s",
			order.DisplayName, order.UserID, order.ProductName, order.Price, order.TrackingCode, order.PaymentRef),
		PhotoRef: req.ProofRef,
		Keyboard: [][]notify.Button{notify.Row(
			notify.Button{Text: "Confirm", Data: fmt.Sprintf("%s%d", ConfirmOrderPrefix, order.ID)},
			notify.Button{Text: "Reject", Data: fmt.Sprintf("%s%d", CancelOrderPrefix, order.ID)},
		)},
	})

	slog.Info("order created", "order_id", order.ID, "user_id", order.UserID, "tracking_code", order.TrackingCode)
	return order, nil
}

// insert assigns a tracking code and retries once on a code collision.
func (s *OrderService) insert(ctx context.Context, order *models.Order) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		order.TrackingCode = s.newCode(TrackingPrefix, 10)
		err = s.orders.Create(ctx, order)
		if !errors.Is(err, pkgerrors.ErrDuplicateTrackingCode) {
			return err
		}
		slog.Warn("tracking code collision", "attempt", attempt+1)
	}
	return pkgerrors.Persistence("create order", err)
}

// SetStatus moves a pending order to confirmed or canceled. It reports false
// when the order had already left pending; side effects run only on change.
func (s *OrderService) SetStatus(ctx context.Context, orderID int64, status models.OrderStatus, source models.TransitionSource) (bool, error) {
	ctx, span := startSpan(ctx, "SetOrderStatus",
		attribute.Int64("order_id", orderID),
		attribute.String("status", string(status)),
		attribute.String("source", string(source)),
	)
	defer span.End()

	if !status.Valid() {
		failSpan(span, pkgerrors.ErrInvalidStatus, "invalid status")
		return false, pkgerrors.ErrInvalidStatus
	}
	if !status.Terminal() {
		failSpan(span, pkgerrors.ErrInvalidTransition, "illegal transition")
		return false, pkgerrors.ErrInvalidTransition
	}

	license := ""
	if status == models.OrderConfirmed {
		license = s.newCode(LicensePrefix, 16)
	}

	order, changed, err := s.orders.Transition(ctx, orderID, status, license, source)
	if err != nil {
		failSpan(span, err, "transition failed")
		return false, err
	}
	if !changed {
		slog.Info("order already settled", "order_id", orderID, "status", order.Status, "requested", status, "source", source)
		return false, nil
	}
	observability.OrderTransitions.WithLabelValues(string(status), string(source)).Inc()

	switch status {
	case models.OrderConfirmed:
		s.send(ctx, notify.Notification{
			ChatID: order.UserID,
			Text: fmt.Sprintf("Your payment is confirmed.\nTracking code: %s\nLicense: %s\nSend the tracking code to %s to receive the product.",
				order.TrackingCode, order.LicenseCode, s.supportID),
		})
	case models.OrderCanceled:
		if err := s.products.Release(ctx, order.ProductKey); err != nil {
			slog.Error("failed to restore stock", "order_id", order.ID, "product_key", order.ProductKey, "error", err)
		}
		s.send(ctx, notify.Notification{
			ChatID: order.UserID,
			Text: fmt.Sprintf("Your payment for order %s was rejected. Contact %s if you think this is a mistake.",
				order.TrackingCode, s.supportID),
		})
	}

	slog.Info("order status changed", "order_id", order.ID, "status", status, "source", source)
	return true, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

func (s *OrderService) GetByPaymentRef(ctx context.Context, ref string) (*models.Order, error) {
	return s.orders.GetByPaymentRef(ctx, ref)
}

func (s *OrderService) ListOrdersForUser(ctx context.Context, userID int64) ([]models.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

func (s *OrderService) ListRecentOrders(ctx context.Context, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = defaultOrderListLimit
	}
	return s.orders.ListRecent(ctx, limit)
}

func (s *OrderService) ListPending(ctx context.Context, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = defaultOrderListLimit
	}
	return s.orders.ListByStatus(ctx, models.OrderPending, limit)
}

// DeleteOrder is the admin removal path.
func (s *OrderService) DeleteOrder(ctx context.Context, orderID int64) error {
	if err := s.orders.Delete(ctx, orderID); err != nil {
		return err
	}
	slog.Info("order deleted", "order_id", orderID)
	return nil
}

func (s *OrderService) send(ctx context.Context, n notify.Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		slog.Error("failed to send notification", "chat_id", n.ChatID, "error", err)
	}
}
