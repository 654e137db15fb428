package models

import "time"

type Order struct {
	ID              int64       `json:"id"`
	UserID          int64       `json:"user_id"`
	DisplayName     string      `json:"display_name"`
	ProductKey      string      `json:"product_key"`
	ProductName     string      `json:"product_name"`
	Price           int64       `json:"price"`
	DiscountPercent int         `json:"discount_percent"`
	TrackingCode    string      `json:"tracking_code"`
	PaymentRef      string      `json:"payment_ref"`
	Status          OrderStatus `json:"status"`
	LicenseCode     string      `json:"license_code,omitempty"`
	ConfirmedBy     string      `json:"confirmed_by,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderCanceled  OrderStatus = "canceled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderCanceled:
		return true
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == OrderConfirmed || s == OrderCanceled
}

// Source of a status transition.
type TransitionSource string

const (
	SourceAdmin     TransitionSource = "admin"
	SourceScheduler TransitionSource = "scheduler"
)

type Product struct {
	Key        string `json:"key"`
	Name       string `json:"name"`
	Price      int64  `json:"price"`
	CardNumber string `json:"card_number"`
	Stock      int    `json:"stock"` // -1 is unlimited
	Active     bool   `json:"active"`
}

const UnlimitedStock = -1

func (p Product) InStock() bool {
	return p.Stock == UnlimitedStock || p.Stock > 0
}

// DiscountedPrice applies percent to the product price, rounding down.
func (p Product) DiscountedPrice(percent int) int64 {
	if percent <= 0 {
		return p.Price
	}
	if percent >= 100 {
		return 0
	}
	return p.Price * int64(100-percent) / 100
}
