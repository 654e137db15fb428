package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/gosimple/slug"

	"github.com/honeynil/ShopBotLedger/internal/models"
	"github.com/honeynil/ShopBotLedger/internal/repository"
	pkgerrors "github.com/honeynil/ShopBotLedger/pkg/errors"
)

var cardNumberPattern = regexp.MustCompile(`^\d{4}-?\d{4}-?\d{4}-?\d{4}$`)

// ProductForm is the admin product editor input, one field per line:
// name, price, card number and optionally stock (-1 or empty for unlimited).
type ProductForm struct {
	Name       string
	Price      string
	CardNumber string
	Stock      string
}

// FormError lists every problem found in a form at once.
type FormError struct {
	Problems []string
}

func (e *FormError) Error() string {
	return "invalid product form: " + strings.Join(e.Problems, "; ")
}

func (e *FormError) Unwrap() error {
	return pkgerrors.ErrValidation
}

func ParseProductForm(text string) ProductForm {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	field := func(i int) string {
		if i < len(lines) {
			return strings.TrimSpace(lines[i])
		}
		return ""
	}
	return ProductForm{Name: field(0), Price: field(1), CardNumber: field(2), Stock: field(3)}
}

func (f ProductForm) toProduct() (*models.Product, error) {
	var problems []string
	p := &models.Product{
		Name:       strings.TrimSpace(f.Name),
		CardNumber: strings.TrimSpace(f.CardNumber),
		Stock:      models.UnlimitedStock,
		Active:     true,
	}

	if p.Name == "" {
		problems = append(problems, "name is required")
	}
	price, err := strconv.ParseInt(strings.ReplaceAll(strings.TrimSpace(f.Price), ",", ""), 10, 64)
	if err != nil || price <= 0 {
		problems = append(problems, "price must be a positive whole number")
	}
	p.Price = price
	if !cardNumberPattern.MatchString(p.CardNumber) {
		problems = append(problems, "card number must have 16 digits")
	}
	if s := strings.TrimSpace(f.Stock); s != "" {
		stock, err := strconv.Atoi(s)
		if err != nil || stock < models.UnlimitedStock {
			problems = append(problems, "stock must be -1 or a non-negative number")
		}
		p.Stock = stock
	}

	if len(problems) > 0 {
		return nil, &FormError{Problems: problems}
	}
	return p, nil
}

type CatalogService struct {
	products repository.ProductRepository
}

func NewCatalogService(products repository.ProductRepository) *CatalogService {
	return &CatalogService{products: products}
}

func (s *CatalogService) ListProducts(ctx context.Context, activeOnly bool) ([]models.Product, error) {
	return s.products.List(ctx, activeOnly)
}

func (s *CatalogService) GetProduct(ctx context.Context, key string) (*models.Product, error) {
	return s.products.Get(ctx, key)
}

// SaveProduct creates or replaces a product. An empty key derives one from
// the product name.
func (s *CatalogService) SaveProduct(ctx context.Context, key string, form ProductForm) (*models.Product, error) {
	p, err := form.toProduct()
	if err != nil {
		return nil, err
	}
	p.Key = key
	if p.Key == "" {
		p.Key = slug.Make(p.Name)
	}
	if p.Key == "" {
		return nil, &FormError{Problems: []string{"name must contain letters or digits"}}
	}
	if err := s.products.Upsert(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *CatalogService) SetActive(ctx context.Context, key string, active bool) error {
	p, err := s.products.Get(ctx, key)
	if err != nil {
		return err
	}
	p.Active = active
	return s.products.Upsert(ctx, p)
}

// Seed inserts configured products that are not in the store yet; products
// edited by the admin are left alone.
func (s *CatalogService) Seed(ctx context.Context, products []models.Product) error {
	seeded := 0
	for i := range products {
		p := products[i]
		if p.Key == "" {
			p.Key = slug.Make(p.Name)
		}
		_, err := s.products.Get(ctx, p.Key)
		if err == nil {
			continue
		}
		if !errors.Is(err, pkgerrors.ErrProductNotFound) {
			return fmt.Errorf("seed product %s: %w", p.Key, err)
		}
		if err := s.products.Upsert(ctx, &p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.Key, err)
		}
		seeded++
	}
	slog.Info("catalog seeded", "configured", len(products), "inserted", seeded)
	return nil
}
