package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/honeynil/ShopBotLedger/internal/notify"
	service "github.com/honeynil/ShopBotLedger/internal/services"
	pkgerrors "github.com/honeynil/ShopBotLedger/pkg/errors"
)

func (m *Machine) start(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	sess.Transient = Transient{}
	if match[1] != "" {
		if ref, err := strconv.ParseInt(match[1], 10, 64); err == nil && ref != ev.UserID {
			sess.Transient.PendingReferrer = ref
		}
	}
	if !sess.Authenticated && !m.svc.Accounts.IsAdmin(ev.UserID) {
		return m.promptAuth(), nil
	}
	return Outcome{
		Text:     fmt.Sprintf("Hi %s! Choose an action:", ev.DisplayName),
		Keyboard: mainMenu(),
		Next:     StateEnd,
	}, nil
}

func (m *Machine) cancel(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	return m.fallback(sess), nil
}

func (m *Machine) showCatalog(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	products, err := m.svc.Catalog.ListProducts(ctx, true)
	if err != nil {
		return Outcome{}, err
	}
	if len(products) == 0 {
		return Outcome{Text: "Nothing is on sale right now.", Keyboard: mainMenu()}, nil
	}
	var rows [][]notify.Button
	for _, p := range products {
		rows = append(rows, notify.Row(btn(p.Name, productPrefix+p.Key)))
	}
	return Outcome{Text: "Choose a product:", Keyboard: rows}, nil
}

func (m *Machine) selectProduct(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	p, err := m.svc.Catalog.GetProduct(ctx, match[1])
	if err != nil {
		return reject(err)
	}
	if !p.Active || !p.InStock() {
		return Outcome{Text: "This product is not available right now."}, nil
	}

	sess.Transient.SelectedProduct = p.Key
	sess.Transient.DiscountCode = ""
	sess.Transient.DiscountPercent = 0
	return Outcome{
		Text: fmt.Sprintf("Product: %s\nPrice: %s\n\nTransfer the amount to this card:\n%s\n\n"+
			"Then send a photo of the receipt or the transaction hash. You can also send a discount code first.",
			p.Name, formatPrice(p.Price), p.CardNumber),
		Keyboard: cancelKeyboard(),
		Next:     StateAwaitingPaymentProof,
	}, nil
}

func (m *Machine) applyDiscount(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	code := strings.ToUpper(match[1])
	dc, ok, err := m.svc.Discounts.ValidateCode(ctx, ev.UserID, code)
	if err != nil {
		return Outcome{}, err
	}
	if !ok {
		return Outcome{Text: "This discount code is not valid for you."}, nil
	}
	p, err := m.svc.Catalog.GetProduct(ctx, sess.Transient.SelectedProduct)
	if err != nil {
		return reject(err)
	}

	sess.Transient.DiscountCode = code
	sess.Transient.DiscountPercent = dc.Percent
	return Outcome{
		Text: fmt.Sprintf("Discount of %d%% applied. New price: %s\nNow send the payment receipt.",
			dc.Percent, formatPrice(p.DiscountedPrice(dc.Percent))),
		Keyboard: cancelKeyboard(),
	}, nil
}

// submitProof turns a receipt photo or a transaction hash into a pending
// order and schedules its automatic confirmation.
func (m *Machine) submitProof(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	// The code is claimed before the order exists so it can discount one order at most.
	percent := 0
	code := sess.Transient.DiscountCode
	if code != "" {
		used, err := m.svc.Discounts.UseCode(ctx, ev.UserID, code)
		if err != nil {
			return Outcome{}, err
		}
		if used {
			percent = sess.Transient.DiscountPercent
		}
	}

	order, err := m.svc.Orders.CreateOrder(ctx, service.OrderRequest{
		UserID:          ev.UserID,
		DisplayName:     ev.DisplayName,
		ProductKey:      sess.Transient.SelectedProduct,
		ProofRef:        match[1],
		DiscountPercent: percent,
	})
	if err != nil {
		if percent > 0 {
			if relErr := m.svc.Discounts.ReleaseCode(ctx, ev.UserID, code); relErr != nil {
				slog.Error("failed to release discount code", "user_id", ev.UserID, "error", relErr)
			}
		}
		if errors.Is(err, pkgerrors.ErrDuplicatePaymentRef) {
			return Outcome{Text: "This payment proof was already submitted."}, nil
		}
		return reject(err)
	}

	if err := m.scheduler.Schedule(ctx, order); err != nil {
		slog.Error("failed to schedule order confirmation", "order_id", order.ID, "error", err)
	}

	return Outcome{
		Text: fmt.Sprintf("Payment proof received.\nTracking code: %s\nPlease wait while your payment is reviewed. Support: %s",
			order.TrackingCode, m.opts.SupportID),
		Keyboard: mainMenu(),
		Next:     StateEnd,
	}, nil
}

func (m *Machine) showOrders(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	orders, err := m.svc.Orders.ListOrdersForUser(ctx, ev.UserID)
	if err != nil {
		return Outcome{}, err
	}
	if len(orders) == 0 {
		return Outcome{Text: "You have no orders yet.", Keyboard: mainMenu()}, nil
	}
	var b strings.Builder
	b.WriteString("Your orders:\n")
	for _, o := range orders {
		fmt.Fprintf(&b, "%s  %s  %s  %s\n", o.TrackingCode, o.ProductName, formatPrice(o.Price), o.Status)
	}
	return Outcome{Text: b.String(), Keyboard: mainMenu()}, nil
}

// formatPrice renders 450000 as "450,000".
func formatPrice(v int64) string {
	s := strconv.FormatInt(v, 10)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
