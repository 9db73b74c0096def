package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable menu item. CostPrice is either entered manually or
// derived from the recipe; IsComposite reports which one is in effect.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category,omitempty"`
	PriceCents  int64           `json:"price_cents"`
	CostPrice   decimal.Decimal `json:"cost_price"`
	Unit        string          `json:"unit"`
	IsComposite bool            `json:"is_composite"`
}

type ProductCreateRequest struct {
	Name       string          `json:"name"`
	Category   string          `json:"category"`
	PriceCents int64           `json:"price_cents"`
	CostPrice  decimal.Decimal `json:"cost_price"`
	Unit       string          `json:"unit"`
}

type ProductUpdateRequest struct {
	Name       *string          `json:"name,omitempty"`
	Category   *string          `json:"category,omitempty"`
	PriceCents *int64           `json:"price_cents,omitempty"`
	CostPrice  *decimal.Decimal `json:"cost_price,omitempty"`
	Unit       *string          `json:"unit,omitempty"`
}

// ProductGroup collects size variants of the same base item for display,
// e.g. "Iced Latte (M)" and "Iced Latte (L)" under "Iced Latte".
type ProductGroup struct {
	BaseName string    `json:"base_name"`
	Variants []Product `json:"variants"`
}

// Ingredient stock quantity and cost are both expressed in the stored unit
// (gram, milliliter, piece).
type Ingredient struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Category          string          `json:"category,omitempty"`
	SupplierID        string          `json:"supplier_id,omitempty"`
	CostPerUnit       decimal.Decimal `json:"cost_per_unit"`
	Quantity          decimal.Decimal `json:"quantity"`
	Unit              string          `json:"unit"`
	LowStockThreshold decimal.Decimal `json:"low_stock_threshold"`
}

type IngredientCreateRequest struct {
	Name              string          `json:"name"`
	Category          string          `json:"category"`
	SupplierID        string          `json:"supplier_id"`
	CostPerUnit       decimal.Decimal `json:"cost_per_unit"`
	Quantity          decimal.Decimal `json:"quantity"`
	Unit              string          `json:"unit"`
	LowStockThreshold decimal.Decimal `json:"low_stock_threshold"`
}

type IngredientUpdateRequest struct {
	Name              *string          `json:"name,omitempty"`
	Category          *string          `json:"category,omitempty"`
	SupplierID        *string          `json:"supplier_id,omitempty"`
	CostPerUnit       *decimal.Decimal `json:"cost_per_unit,omitempty"`
	Quantity          *decimal.Decimal `json:"quantity,omitempty"`
	Unit              *string          `json:"unit,omitempty"`
	LowStockThreshold *decimal.Decimal `json:"low_stock_threshold,omitempty"`
}

// RecipeLink is the quantity of one ingredient consumed per one unit of a
// product. The (product, ingredient) pair is unique.
type RecipeLink struct {
	ID             string          `json:"id"`
	ProductID      string          `json:"product_id"`
	IngredientID   string          `json:"ingredient_id"`
	IngredientName string          `json:"ingredient_name,omitempty"`
	QtyPerUnit     decimal.Decimal `json:"qty_per_unit"`
}

type RecipeLinkUpsertRequest struct {
	IngredientID string          `json:"ingredient_id"`
	QtyPerUnit   decimal.Decimal `json:"qty_per_unit"`
}

// CartLine carries an optional client-side unit price for display purposes
// only; the server always reprices from the catalog.
type CartLine struct {
	ProductID      string `json:"product_id"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents,omitempty"`
}

type RecordSaleRequest struct {
	PaymentMethod string     `json:"payment_method"`
	Items         []CartLine `json:"items"`
}

type SaleLine struct {
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	LineTotalCents int64  `json:"line_total_cents"`
}

// Sale is immutable once committed. TotalCents is always server-computed.
type Sale struct {
	ID            string     `json:"id"`
	TotalCents    int64      `json:"total_cents"`
	PaymentMethod string     `json:"payment_method"`
	CreatedAt     time.Time  `json:"created_at"`
	Lines         []SaleLine `json:"lines"`
}

type RecordSaleResponse struct {
	SaleID        string `json:"sale_id"`
	TotalCents    int64  `json:"total_cents"`
	PaymentMethod string `json:"payment_method"`
	CreatedAt     string `json:"created_at"`
	Message       string `json:"message"`
}

// IngredientDemand is the aggregated quantity of one ingredient required by
// an entire cart, computed before any stock check.
type IngredientDemand struct {
	IngredientID string
	Qty          decimal.Decimal
}

// SaleFilter narrows ticket listings. Payment is "", "cash" or "digital";
// Search matches a sale id exactly or a product name substring.
type SaleFilter struct {
	From    time.Time
	To      time.Time
	Search  string
	Payment string
	Limit   int
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CategoryCreateRequest struct {
	Name string `json:"name"`
}

type Supplier struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContactInfo string `json:"contact_info,omitempty"`
}

type SupplierCreateRequest struct {
	Name        string `json:"name"`
	ContactInfo string `json:"contact_info"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type UserCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type User struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

// DateRange bounds are UTC instants; [From, To) half-open.
type DateRange struct {
	Label string    `json:"label"`
	From  time.Time `json:"from"`
	To    time.Time `json:"to"`
}

type ReportSummary struct {
	Label          string `json:"label"`
	RevenueCents   int64  `json:"revenue_cents"`
	Transactions   int64  `json:"transactions"`
	TotalCostCents int64  `json:"total_cost_cents"`
	ProfitCents    int64  `json:"profit_cents"`
	TopProduct     string `json:"top_product,omitempty"`
}

type TopProduct struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	QtySold   int64  `json:"qty_sold"`
}

type HourlySalesPoint struct {
	Hour         int   `json:"hour"`
	RevenueCents int64 `json:"revenue_cents"`
	Transactions int64 `json:"transactions"`
}

type WeekdaySalesPoint struct {
	Weekday      string `json:"weekday"`
	RevenueCents int64  `json:"revenue_cents"`
	Transactions int64  `json:"transactions"`
}

// ProductProfit uses the product's cost price at report time, not the cost
// at sale time.
type ProductProfit struct {
	ProductID    string `json:"product_id"`
	Name         string `json:"name"`
	QtySold      int64  `json:"qty_sold"`
	RevenueCents int64  `json:"revenue_cents"`
	CostCents    int64  `json:"cost_cents"`
	ProfitCents  int64  `json:"profit_cents"`
}

type SalesForecast struct {
	DailyAverageCents  int64  `json:"daily_average_cents"`
	RecentAverageCents int64  `json:"recent_average_cents"`
	Trend              string `json:"trend"`
	Next1DayCents      int64  `json:"next_1_day_cents"`
	Next7DaysCents     int64  `json:"next_7_days_cents"`
	Next30DaysCents    int64  `json:"next_30_days_cents"`
}

type DashboardSummary struct {
	Date          string `json:"date"`
	RevenueCents  int64  `json:"revenue_cents"`
	Transactions  int64  `json:"transactions"`
	TopProduct    string `json:"top_product,omitempty"`
	LowStockCount int    `json:"low_stock_count"`
}

const (
	PaymentCash    = "Cash"
	PaymentDigital = "GCash / Maya"
)

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

const (
	TrendRising  = "Rising"
	TrendCooling = "Cooling"
	TrendStable  = "Stable"
)
