package memory

import (
	"context"
	"sort"

	"github.com/honeynil/ShopBotLedger/internal/models"
	pkgerrors "github.com/honeynil/ShopBotLedger/pkg/errors"
)

type productRepo struct{ s *Store }

func (r productRepo) List(_ context.Context, activeOnly bool) ([]models.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Product
	for _, p := range r.s.products {
		if p.Active || !activeOnly {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (r productRepo) Get(_ context.Context, key string) (*models.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[key]
	if !ok {
		return nil, pkgerrors.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (r productRepo) Upsert(_ context.Context, p *models.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("products.Upsert"); err != nil {
		return err
	}
	cp := *p
	r.s.products[p.Key] = &cp
	return nil
}

func (r productRepo) Reserve(_ context.Context, key string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[key]
	if !ok || !p.Active || !p.InStock() {
		return false, nil
	}
	if p.Stock != models.UnlimitedStock {
		p.Stock--
	}
	return true, nil
}

func (r productRepo) Release(_ context.Context, key string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.products[key]; ok && p.Stock != models.UnlimitedStock {
		p.Stock++
	}
	return nil
}

type orderRepo struct{ s *Store }

func (r orderRepo) Create(_ context.Context, o *models.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("orders.Create"); err != nil {
		return err
	}
	for _, existing := range r.s.orders {
		if existing.PaymentRef == o.PaymentRef {
			return pkgerrors.ErrDuplicatePaymentRef
		}
		if existing.TrackingCode == o.TrackingCode {
			return pkgerrors.ErrDuplicateTrackingCode
		}
	}
	r.s.nextOrderID++
	o.ID = r.s.nextOrderID
	o.Status = models.OrderPending
	o.CreatedAt = r.s.now()
	o.UpdatedAt = o.CreatedAt
	cp := *o
	r.s.orders[o.ID] = &cp
	return nil
}

func (r orderRepo) GetByID(_ context.Context, id int64) (*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("orders.GetByID"); err != nil {
		return nil, err
	}
	o, ok := r.s.orders[id]
	if !ok {
		return nil, pkgerrors.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r orderRepo) GetByPaymentRef(_ context.Context, ref string) (*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("orders.GetByPaymentRef"); err != nil {
		return nil, err
	}
	for _, o := range r.s.orders {
		if o.PaymentRef == ref {
			cp := *o
			return &cp, nil
		}
	}
	return nil, pkgerrors.ErrOrderNotFound
}

func (r orderRepo) ListByUser(_ context.Context, userID int64) ([]models.Order, error) {
	return r.filter(func(o *models.Order) bool { return o.UserID == userID }, true, 0), nil
}

func (r orderRepo) ListRecent(_ context.Context, limit int) ([]models.Order, error) {
	return r.filter(func(*models.Order) bool { return true }, true, limit), nil
}

func (r orderRepo) ListByStatus(_ context.Context, status models.OrderStatus, limit int) ([]models.Order, error) {
	return r.filter(func(o *models.Order) bool { return o.Status == status }, false, limit), nil
}

func (r orderRepo) filter(keep func(*models.Order) bool, newestFirst bool, limit int) []models.Order {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Order
	for _, o := range r.s.orders {
		if keep(o) {
			out = append(out, *o)
		}
	}
	sortOrders(out, newestFirst)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r orderRepo) Transition(_ context.Context, id int64, status models.OrderStatus, licenseCode string, source models.TransitionSource) (*models.Order, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("orders.Transition"); err != nil {
		return nil, false, err
	}
	o, ok := r.s.orders[id]
	if !ok {
		return nil, false, pkgerrors.ErrOrderNotFound
	}
	if o.Status != models.OrderPending {
		cp := *o
		return &cp, false, nil
	}
	o.Status = status
	if licenseCode != "" {
		o.LicenseCode = licenseCode
	}
	o.ConfirmedBy = string(source)
	o.UpdatedAt = r.s.now()
	cp := *o
	return &cp, true, nil
}

func (r orderRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.orders[id]; !ok {
		return pkgerrors.ErrOrderNotFound
	}
	delete(r.s.orders, id)
	return nil
}
