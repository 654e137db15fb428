package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/honeynil/ShopBotLedger/internal/models"
	"github.com/honeynil/ShopBotLedger/internal/notify"
	service "github.com/honeynil/ShopBotLedger/internal/services"
)

const adminListLimit = 10

func (m *Machine) adminMenu(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	return Outcome{Text: "Admin panel:", Keyboard: adminMenu(), Next: StateAdminActions}, nil
}

func (m *Machine) adminConfirm(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	return m.adminSetStatus(ctx, match[1], models.OrderConfirmed)
}

func (m *Machine) adminReject(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	return m.adminSetStatus(ctx, match[1], models.OrderCanceled)
}

func (m *Machine) adminSetStatus(ctx context.Context, rawID string, status models.OrderStatus) (Outcome, error) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return Outcome{Text: "Unknown order."}, nil
	}
	changed, err := m.svc.Orders.SetStatus(ctx, id, status, models.SourceAdmin)
	if err != nil {
		return reject(err)
	}
	if !changed {
		return Outcome{Text: fmt.Sprintf("Order #%d was already settled.", id)}, nil
	}
	return Outcome{Text: fmt.Sprintf("Order #%d is now %s.", id, status)}, nil
}

func (m *Machine) adminPending(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	orders, err := m.svc.Orders.ListPending(ctx, adminListLimit)
	if err != nil {
		return Outcome{}, err
	}
	if len(orders) == 0 {
		return Outcome{Text: "No pending orders.", Keyboard: adminMenu()}, nil
	}
	var b strings.Builder
	var rows [][]notify.Button
	for _, o := range orders {
		fmt.Fprintf(&b, "#%d %s %s (%d) %s\n", o.ID, o.TrackingCode, o.DisplayName, o.UserID, formatPrice(o.Price))
		rows = append(rows, notify.Row(
			btn(fmt.Sprintf("Confirm #%d", o.ID), fmt.Sprintf("%s%d", service.ConfirmOrderPrefix, o.ID)),
			btn(fmt.Sprintf("Reject #%d", o.ID), fmt.Sprintf("%s%d", service.CancelOrderPrefix, o.ID)),
		))
	}
	return Outcome{Text: b.String(), Keyboard: rows}, nil
}

func (m *Machine) adminRecent(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	orders, err := m.svc.Orders.ListRecentOrders(ctx, adminListLimit)
	if err != nil {
		return Outcome{}, err
	}
	if len(orders) == 0 {
		return Outcome{Text: "No orders yet.", Keyboard: adminMenu()}, nil
	}
	var b strings.Builder
	var rows [][]notify.Button
	for _, o := range orders {
		fmt.Fprintf(&b, "#%d %s %s %s %s\n", o.ID, o.TrackingCode, o.ProductName, o.Status, o.CreatedAt.Format("2006-01-02 15:04"))
		rows = append(rows, notify.Row(btn(fmt.Sprintf("Delete #%d", o.ID), fmt.Sprintf("%s%d", adminDeleteOrderPfx, o.ID))))
	}
	return Outcome{Text: b.String(), Keyboard: rows}, nil
}

func (m *Machine) adminDelete(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	id, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return Outcome{Text: "Unknown order."}, nil
	}
	if err := m.svc.Orders.DeleteOrder(ctx, id); err != nil {
		return reject(err)
	}
	return Outcome{Text: fmt.Sprintf("Order #%d deleted.", id), Keyboard: adminMenu()}, nil
}

func (m *Machine) adminPromptCoins(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	return Outcome{Text: "Send \"<user id> <coins>\".", Keyboard: cancelKeyboard(), Next: StateAdminAddingCoins}, nil
}

func (m *Machine) adminGrant(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	userID, err1 := strconv.ParseInt(match[1], 10, 64)
	amount, err2 := strconv.ParseInt(match[2], 10, 64)
	if err1 != nil || err2 != nil {
		return Outcome{Text: "Send \"<user id> <coins>\"."}, nil
	}
	balance, err := m.svc.Coins.AddCoins(ctx, userID, amount, models.ReasonAdminGrant)
	if err != nil {
		return reject(err)
	}
	return Outcome{
		Text:     fmt.Sprintf("Granted %d coins to %d. New balance: %d", amount, userID, balance),
		Keyboard: adminMenu(),
		Next:     StateAdminActions,
	}, nil
}

func (m *Machine) adminProducts(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	products, err := m.svc.Catalog.ListProducts(ctx, false)
	if err != nil {
		return Outcome{}, err
	}
	var b strings.Builder
	var rows [][]notify.Button
	for _, p := range products {
		state, toggle := "on sale", "Disable"
		if !p.Active {
			state, toggle = "hidden", "Enable"
		}
		fmt.Fprintf(&b, "%s: %s %s (%s)\n", p.Key, p.Name, formatPrice(p.Price), state)
		rows = append(rows, notify.Row(
			btn("Edit "+p.Key, adminEditPrefix+p.Key),
			btn(toggle+" "+p.Key, adminTogglePrefix+p.Key),
		))
	}
	rows = append(rows, notify.Row(btn("New product", BtnAdminNewProduct), btn("Back", BtnCancel)))
	sess.Transient.EditingProduct = ""
	return Outcome{Text: b.String() + "\n" + productFormHelp, Keyboard: rows, Next: StateAdminManagingProducts}, nil
}

const productFormHelp = "Send the product as four lines: name, price, card number, stock (-1 or empty for unlimited)."

func (m *Machine) adminNewProduct(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	sess.Transient.EditingProduct = ""
	return Outcome{Text: productFormHelp, Keyboard: cancelKeyboard()}, nil
}

func (m *Machine) adminEditProduct(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	p, err := m.svc.Catalog.GetProduct(ctx, match[1])
	if err != nil {
		return reject(err)
	}
	sess.Transient.EditingProduct = p.Key
	return Outcome{
		Text:     fmt.Sprintf("Editing %s. Current values:\n%s\n%d\n%s\n%d\n\n%s", p.Key, p.Name, p.Price, p.CardNumber, p.Stock, productFormHelp),
		Keyboard: cancelKeyboard(),
	}, nil
}

func (m *Machine) adminToggleProduct(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	p, err := m.svc.Catalog.GetProduct(ctx, match[1])
	if err != nil {
		return reject(err)
	}
	if err := m.svc.Catalog.SetActive(ctx, p.Key, !p.Active); err != nil {
		return reject(err)
	}
	return m.adminProducts(ctx, sess, ev, match)
}

func (m *Machine) adminSaveProduct(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	p, err := m.svc.Catalog.SaveProduct(ctx, sess.Transient.EditingProduct, service.ParseProductForm(match[1]))
	if err != nil {
		return reject(err)
	}
	sess.Transient.EditingProduct = ""
	return Outcome{
		Text:     fmt.Sprintf("Saved %s: %s %s", p.Key, p.Name, formatPrice(p.Price)),
		Keyboard: adminMenu(),
		Next:     StateAdminActions,
	}, nil
}
