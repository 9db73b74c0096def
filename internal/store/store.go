package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"cafepos/backend/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidTransaction = errors.New("invalid transaction")
)

// InsufficientStockError identifies which ingredient blocked a sale and by
// how much. It matches errors.Is(err, ErrInsufficientStock).
type InsufficientStockError struct {
	IngredientName string
	Required       decimal.Decimal
	Available      decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: need %s, have %s",
		e.IngredientName, e.Required.String(), e.Available.String())
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	SetProductCost(ctx context.Context, productID string, cost decimal.Decimal, composite bool) error

	ListIngredients(ctx context.Context) ([]domain.Ingredient, error)
	GetIngredientByID(ctx context.Context, id string) (*domain.Ingredient, error)
	GetIngredientsByIDs(ctx context.Context, ids []string) (map[string]domain.Ingredient, error)
	CreateIngredient(ctx context.Context, ingredient domain.Ingredient) (*domain.Ingredient, error)
	UpdateIngredient(ctx context.Context, ingredient domain.Ingredient) (*domain.Ingredient, error)
	DeleteIngredient(ctx context.Context, id string) error
	ListLowStockIngredients(ctx context.Context) ([]domain.Ingredient, error)

	ListRecipeLinks(ctx context.Context, productID string) ([]domain.RecipeLink, error)
	GetRecipeLinksForProducts(ctx context.Context, productIDs []string) (map[string][]domain.RecipeLink, error)
	GetRecipeLinkByID(ctx context.Context, linkID string) (*domain.RecipeLink, error)
	UpsertRecipeLink(ctx context.Context, link domain.RecipeLink) (*domain.RecipeLink, error)
	DeleteRecipeLink(ctx context.Context, linkID string) error

	// CreateSale validates and deducts the aggregated ingredient demand and
	// persists the sale header plus lines in one atomic unit. On shortage it
	// returns *InsufficientStockError and leaves stock untouched.
	CreateSale(ctx context.Context, sale domain.Sale, demand []domain.IngredientDemand) (*domain.Sale, error)
	GetSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error)

	GetSalesTotals(ctx context.Context, from time.Time, to time.Time) (revenueCents int64, transactions int64, err error)
	GetSalesCost(ctx context.Context, from time.Time, to time.Time) (costCents int64, err error)
	GetTopProduct(ctx context.Context, from time.Time, to time.Time) (*domain.TopProduct, error)
	GetSalesByHour(ctx context.Context, from time.Time, to time.Time, offsetHours int) ([]domain.HourlySalesPoint, error)
	GetSalesByWeekday(ctx context.Context, from time.Time, to time.Time, offsetHours int) ([]domain.WeekdaySalesPoint, error)
	GetProfitByProduct(ctx context.Context, from time.Time, to time.Time) ([]domain.ProductProfit, error)

	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)

	GetSettings(ctx context.Context) (map[string]string, error)
	SaveSettings(ctx context.Context, settings map[string]string) error

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
