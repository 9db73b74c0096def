package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"cafepos/backend/internal/domain"
	"cafepos/backend/internal/store"
	"cafepos/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	ingredients     map[string]domain.Ingredient
	recipeLinks     map[string]domain.RecipeLink
	salesByID       map[string]*domain.Sale
	categoriesByID  map[string]domain.Category
	suppliersByID   map[string]domain.Supplier
	settings        map[string]string
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func NewSeeded() *Store {
	ingredients := []domain.Ingredient{
		{ID: "ing-beans", Name: "Espresso Beans", Category: "coffee", SupplierID: "sup-beanbros", CostPerUnit: dec("0.85"), Quantity: dec("5000"), Unit: "g", LowStockThreshold: dec("500")},
		{ID: "ing-milk", Name: "Fresh Milk", Category: "dairy", SupplierID: "sup-metrodairy", CostPerUnit: dec("0.09"), Quantity: dec("20000"), Unit: "ml", LowStockThreshold: dec("2000")},
		{ID: "ing-syrup-vanilla", Name: "Vanilla Syrup", Category: "syrup", SupplierID: "sup-beanbros", CostPerUnit: dec("0.32"), Quantity: dec("3000"), Unit: "ml", LowStockThreshold: dec("300")},
		{ID: "ing-cocoa", Name: "Cocoa Powder", Category: "powder", SupplierID: "sup-beanbros", CostPerUnit: dec("0.65"), Quantity: dec("1500"), Unit: "g", LowStockThreshold: dec("200")},
		{ID: "ing-cup-12", Name: "Paper Cup 12oz", Category: "packaging", SupplierID: "sup-metrodairy", CostPerUnit: dec("4.5"), Quantity: dec("300"), Unit: "pc", LowStockThreshold: dec("50")},
		{ID: "ing-cup-16", Name: "Paper Cup 16oz", Category: "packaging", SupplierID: "sup-metrodairy", CostPerUnit: dec("5.25"), Quantity: dec("300"), Unit: "pc", LowStockThreshold: dec("50")},
	}

	products := []domain.Product{
		{ID: "prod-americano-m", Name: "Americano (M)", Category: "espresso", PriceCents: 9000, CostPrice: dec("19.8"), Unit: "pc", IsComposite: true},
		{ID: "prod-americano-l", Name: "Americano (L)", Category: "espresso", PriceCents: 11000, CostPrice: dec("23.65"), Unit: "pc", IsComposite: true},
		{ID: "prod-latte-m", Name: "Cafe Latte (M)", Category: "espresso", PriceCents: 12000, CostPrice: dec("36"), Unit: "pc", IsComposite: true},
		{ID: "prod-latte-l", Name: "Cafe Latte (L)", Category: "espresso", PriceCents: 14000, CostPrice: dec("42.15"), Unit: "pc", IsComposite: true},
		{ID: "prod-vanilla-latte-m", Name: "Vanilla Latte (M)", Category: "espresso", PriceCents: 13500, CostPrice: dec("40.7"), Unit: "pc", IsComposite: true},
		{ID: "prod-choco-m", Name: "Hot Choco (M)", Category: "non-espresso", PriceCents: 11000, CostPrice: dec("38.75"), Unit: "pc", IsComposite: true},
		{ID: "prod-muffin", Name: "Banana Muffin", Category: "pastry", PriceCents: 7500, CostPrice: dec("32.5"), Unit: "pc", IsComposite: false},
	}

	links := []domain.RecipeLink{
		{ID: "rl-amer-m-beans", ProductID: "prod-americano-m", IngredientID: "ing-beans", QtyPerUnit: dec("18")},
		{ID: "rl-amer-m-cup", ProductID: "prod-americano-m", IngredientID: "ing-cup-12", QtyPerUnit: dec("1")},
		{ID: "rl-amer-l-beans", ProductID: "prod-americano-l", IngredientID: "ing-beans", QtyPerUnit: dec("21.65")},
		{ID: "rl-amer-l-cup", ProductID: "prod-americano-l", IngredientID: "ing-cup-16", QtyPerUnit: dec("1")},
		{ID: "rl-latte-m-beans", ProductID: "prod-latte-m", IngredientID: "ing-beans", QtyPerUnit: dec("18")},
		{ID: "rl-latte-m-milk", ProductID: "prod-latte-m", IngredientID: "ing-milk", QtyPerUnit: dec("180")},
		{ID: "rl-latte-m-cup", ProductID: "prod-latte-m", IngredientID: "ing-cup-12", QtyPerUnit: dec("1")},
		{ID: "rl-latte-l-beans", ProductID: "prod-latte-l", IngredientID: "ing-beans", QtyPerUnit: dec("18")},
		{ID: "rl-latte-l-milk", ProductID: "prod-latte-l", IngredientID: "ing-milk", QtyPerUnit: dec("240")},
		{ID: "rl-latte-l-cup", ProductID: "prod-latte-l", IngredientID: "ing-cup-16", QtyPerUnit: dec("1")},
		{ID: "rl-vanilla-beans", ProductID: "prod-vanilla-latte-m", IngredientID: "ing-beans", QtyPerUnit: dec("18")},
		{ID: "rl-vanilla-milk", ProductID: "prod-vanilla-latte-m", IngredientID: "ing-milk", QtyPerUnit: dec("160")},
		{ID: "rl-vanilla-syrup", ProductID: "prod-vanilla-latte-m", IngredientID: "ing-syrup-vanilla", QtyPerUnit: dec("20")},
		{ID: "rl-vanilla-cup", ProductID: "prod-vanilla-latte-m", IngredientID: "ing-cup-12", QtyPerUnit: dec("1")},
		{ID: "rl-choco-cocoa", ProductID: "prod-choco-m", IngredientID: "ing-cocoa", QtyPerUnit: dec("25")},
		{ID: "rl-choco-milk", ProductID: "prod-choco-m", IngredientID: "ing-milk", QtyPerUnit: dec("200")},
		{ID: "rl-choco-cup", ProductID: "prod-choco-m", IngredientID: "ing-cup-12", QtyPerUnit: dec("1")},
	}

	categories := []domain.Category{
		{ID: "cat-espresso", Name: "Espresso"},
		{ID: "cat-non-espresso", Name: "Non-Espresso"},
		{ID: "cat-pastry", Name: "Pastry"},
	}

	suppliers := []domain.Supplier{
		{ID: "sup-beanbros", Name: "Bean Brothers Trading", ContactInfo: "orders@beanbros.ph"},
		{ID: "sup-metrodairy", Name: "Metro Dairy Supply", ContactInfo: "0917-555-0142"},
	}

	productMap := make(map[string]domain.Product, len(products))
	for _, p := range products {
		productMap[p.ID] = p
	}
	ingredientMap := make(map[string]domain.Ingredient, len(ingredients))
	for _, ing := range ingredients {
		ingredientMap[ing.ID] = ing
	}
	linkMap := make(map[string]domain.RecipeLink, len(links))
	for _, link := range links {
		linkMap[link.ID] = link
	}
	categoryMap := make(map[string]domain.Category, len(categories))
	for _, c := range categories {
		categoryMap[c.ID] = c
	}
	supplierMap := make(map[string]domain.Supplier, len(suppliers))
	for _, s := range suppliers {
		supplierMap[s.ID] = s
	}

	return &Store{
		products:        productMap,
		ingredients:     ingredientMap,
		recipeLinks:     linkMap,
		salesByID:       make(map[string]*domain.Sale),
		categoriesByID:  categoryMap,
		suppliersByID:   supplierMap,
		settings:        make(map[string]string),
		usersByUsername: seedUsers(),
	}
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool {
		if products[i].Category != products[j].Category {
			return products[i].Category < products[j].Category
		}
		return products[i].Name < products[j].Name
	})
	return products, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := product
	return &copied, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if product, ok := s.products[id]; ok {
			result[id] = product
		}
	}
	return result, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidTransaction
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrInvalidTransaction
	}
	s.products[product.ID] = product
	copied := product
	return &copied, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; !exists {
		return nil, store.ErrNotFound
	}
	s.products[product.ID] = product
	copied := product
	return &copied, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.products, id)
	for linkID, link := range s.recipeLinks {
		if link.ProductID == id {
			delete(s.recipeLinks, linkID)
		}
	}
	return nil
}

func (s *Store) SetProductCost(_ context.Context, productID string, cost decimal.Decimal, composite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[productID]
	if !ok {
		return store.ErrNotFound
	}
	product.CostPrice = cost
	product.IsComposite = composite
	s.products[productID] = product
	return nil
}

func (s *Store) ListIngredients(_ context.Context) ([]domain.Ingredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ingredients := make([]domain.Ingredient, 0, len(s.ingredients))
	for _, ing := range s.ingredients {
		ingredients = append(ingredients, ing)
	}
	sort.Slice(ingredients, func(i, j int) bool { return ingredients[i].Name < ingredients[j].Name })
	return ingredients, nil
}

func (s *Store) GetIngredientByID(_ context.Context, id string) (*domain.Ingredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ingredient, ok := s.ingredients[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := ingredient
	return &copied, nil
}

func (s *Store) GetIngredientsByIDs(_ context.Context, ids []string) (map[string]domain.Ingredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Ingredient, len(ids))
	for _, id := range ids {
		if ingredient, ok := s.ingredients[id]; ok {
			result[id] = ingredient
		}
	}
	return result, nil
}

func (s *Store) CreateIngredient(_ context.Context, ingredient domain.Ingredient) (*domain.Ingredient, error) {
	if ingredient.Name == "" || ingredient.Unit == "" {
		return nil, store.ErrInvalidTransaction
	}
	if ingredient.Quantity.IsNegative() || ingredient.CostPerUnit.IsNegative() {
		return nil, store.ErrInvalidTransaction
	}
	if ingredient.ID == "" {
		ingredient.ID = xid.New("ing")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ingredients[ingredient.ID]; exists {
		return nil, store.ErrInvalidTransaction
	}
	s.ingredients[ingredient.ID] = ingredient
	copied := ingredient
	return &copied, nil
}

func (s *Store) UpdateIngredient(_ context.Context, ingredient domain.Ingredient) (*domain.Ingredient, error) {
	if ingredient.ID == "" || ingredient.Name == "" || ingredient.Unit == "" {
		return nil, store.ErrInvalidTransaction
	}
	if ingredient.Quantity.IsNegative() || ingredient.CostPerUnit.IsNegative() {
		return nil, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ingredients[ingredient.ID]; !exists {
		return nil, store.ErrNotFound
	}
	s.ingredients[ingredient.ID] = ingredient
	copied := ingredient
	return &copied, nil
}

func (s *Store) DeleteIngredient(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ingredients[id]; !exists {
		return store.ErrNotFound
	}
	for _, link := range s.recipeLinks {
		if link.IngredientID == id {
			return fmt.Errorf("%w: ingredient %s is referenced by a recipe", store.ErrInvalidTransaction, id)
		}
	}
	delete(s.ingredients, id)
	return nil
}

func (s *Store) ListLowStockIngredients(_ context.Context) ([]domain.Ingredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	low := make([]domain.Ingredient, 0, 8)
	for _, ing := range s.ingredients {
		if ing.Quantity.LessThanOrEqual(ing.LowStockThreshold) {
			low = append(low, ing)
		}
	}
	sort.Slice(low, func(i, j int) bool { return low[i].Name < low[j].Name })
	return low, nil
}

func (s *Store) ListRecipeLinks(_ context.Context, productID string) ([]domain.RecipeLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.linksForProductLocked(productID), nil
}

func (s *Store) GetRecipeLinksForProducts(_ context.Context, productIDs []string) (map[string][]domain.RecipeLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string][]domain.RecipeLink, len(productIDs))
	for _, id := range productIDs {
		result[id] = s.linksForProductLocked(id)
	}
	return result, nil
}

func (s *Store) linksForProductLocked(productID string) []domain.RecipeLink {
	links := make([]domain.RecipeLink, 0, 4)
	for _, link := range s.recipeLinks {
		if link.ProductID != productID {
			continue
		}
		if ing, ok := s.ingredients[link.IngredientID]; ok {
			link.IngredientName = ing.Name
		}
		links = append(links, link)
	}
	sort.Slice(links, func(i, j int) bool { return links[i].IngredientName < links[j].IngredientName })
	return links
}

func (s *Store) GetRecipeLinkByID(_ context.Context, linkID string) (*domain.RecipeLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.recipeLinks[linkID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if ing, ok := s.ingredients[link.IngredientID]; ok {
		link.IngredientName = ing.Name
	}
	return &link, nil
}

func (s *Store) UpsertRecipeLink(_ context.Context, link domain.RecipeLink) (*domain.RecipeLink, error) {
	if link.QtyPerUnit.IsNegative() {
		return nil, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[link.ProductID]; !ok {
		return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, link.ProductID)
	}
	ingredient, ok := s.ingredients[link.IngredientID]
	if !ok {
		return nil, fmt.Errorf("%w: ingredient %s", store.ErrNotFound, link.IngredientID)
	}

	for id, existing := range s.recipeLinks {
		if existing.ProductID == link.ProductID && existing.IngredientID == link.IngredientID {
			existing.QtyPerUnit = link.QtyPerUnit
			s.recipeLinks[id] = existing
			existing.IngredientName = ingredient.Name
			return &existing, nil
		}
	}

	if link.ID == "" {
		link.ID = xid.New("rl")
	}
	s.recipeLinks[link.ID] = link
	link.IngredientName = ingredient.Name
	return &link, nil
}

func (s *Store) DeleteRecipeLink(_ context.Context, linkID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recipeLinks[linkID]; !ok {
		return store.ErrNotFound
	}
	delete(s.recipeLinks, linkID)
	return nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale, demand []domain.IngredientDemand) (*domain.Sale, error) {
	if len(sale.Lines) == 0 {
		return nil, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the entire demand set before touching any quantity so a
	// shortage on the last ingredient leaves the first untouched.
	for _, d := range demand {
		ingredient, ok := s.ingredients[d.IngredientID]
		if !ok {
			return nil, fmt.Errorf("%w: ingredient %s", store.ErrNotFound, d.IngredientID)
		}
		if ingredient.Quantity.LessThan(d.Qty) {
			return nil, &store.InsufficientStockError{
				IngredientName: ingredient.Name,
				Required:       d.Qty,
				Available:      ingredient.Quantity,
			}
		}
	}

	for _, d := range demand {
		ingredient := s.ingredients[d.IngredientID]
		ingredient.Quantity = ingredient.Quantity.Sub(d.Qty)
		s.ingredients[d.IngredientID] = ingredient
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	stored := cloneSale(&sale)
	s.salesByID[sale.ID] = stored

	return cloneSale(stored), nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, 32)
	for _, sale := range s.salesByID {
		if !matchesFilter(sale, filter) {
			continue
		}
		sales = append(sales, *cloneSale(sale))
	}
	sort.Slice(sales, func(i, j int) bool { return sales[i].CreatedAt.After(sales[j].CreatedAt) })
	if filter.Limit > 0 && len(sales) > filter.Limit {
		sales = sales[:filter.Limit]
	}
	return sales, nil
}

func matchesFilter(sale *domain.Sale, filter domain.SaleFilter) bool {
	if !filter.From.IsZero() && sale.CreatedAt.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && !sale.CreatedAt.Before(filter.To) {
		return false
	}

	switch filter.Payment {
	case "cash":
		if sale.PaymentMethod != domain.PaymentCash {
			return false
		}
	case "digital":
		if sale.PaymentMethod == domain.PaymentCash {
			return false
		}
	}

	term := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(filter.Search, "#")))
	if term == "" {
		return true
	}
	if strings.EqualFold(sale.ID, term) {
		return true
	}
	for _, line := range sale.Lines {
		if strings.Contains(strings.ToLower(line.ProductName), term) {
			return true
		}
	}
	return false
}

func (s *Store) GetSalesTotals(_ context.Context, from time.Time, to time.Time) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var revenue, count int64
	for _, sale := range s.salesByID {
		if !inRange(sale.CreatedAt, from, to) {
			continue
		}
		revenue += sale.TotalCents
		count++
	}
	return revenue, count, nil
}

func (s *Store) GetSalesCost(_ context.Context, from time.Time, to time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, sale := range s.salesByID {
		if !inRange(sale.CreatedAt, from, to) {
			continue
		}
		for _, line := range sale.Lines {
			product, ok := s.products[line.ProductID]
			if !ok {
				continue
			}
			total = total.Add(product.CostPrice.Mul(decimal.NewFromInt(int64(line.Qty))))
		}
	}
	return total.Mul(decimal.NewFromInt(100)).Round(0).IntPart(), nil
}

func (s *Store) GetTopProduct(_ context.Context, from time.Time, to time.Time) (*domain.TopProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	qtyByProduct := make(map[string]int64)
	nameByProduct := make(map[string]string)
	for _, sale := range s.salesByID {
		if !inRange(sale.CreatedAt, from, to) {
			continue
		}
		for _, line := range sale.Lines {
			qtyByProduct[line.ProductID] += int64(line.Qty)
			nameByProduct[line.ProductID] = line.ProductName
		}
	}
	if len(qtyByProduct) == 0 {
		return nil, store.ErrNotFound
	}

	best := domain.TopProduct{}
	for id, qty := range qtyByProduct {
		if qty > best.QtySold || (qty == best.QtySold && id < best.ProductID) {
			best = domain.TopProduct{ProductID: id, Name: nameByProduct[id], QtySold: qty}
		}
	}
	return &best, nil
}

func (s *Store) GetSalesByHour(_ context.Context, from time.Time, to time.Time, offsetHours int) ([]domain.HourlySalesPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byHour := make(map[int]*domain.HourlySalesPoint)
	for _, sale := range s.salesByID {
		if !inRange(sale.CreatedAt, from, to) {
			continue
		}
		hour := sale.CreatedAt.Add(time.Duration(offsetHours) * time.Hour).Hour()
		point, ok := byHour[hour]
		if !ok {
			point = &domain.HourlySalesPoint{Hour: hour}
			byHour[hour] = point
		}
		point.RevenueCents += sale.TotalCents
		point.Transactions++
	}

	points := make([]domain.HourlySalesPoint, 0, len(byHour))
	for _, point := range byHour {
		points = append(points, *point)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Hour < points[j].Hour })
	return points, nil
}

func (s *Store) GetSalesByWeekday(_ context.Context, from time.Time, to time.Time, offsetHours int) ([]domain.WeekdaySalesPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDay := make(map[time.Weekday]*domain.WeekdaySalesPoint)
	for _, sale := range s.salesByID {
		if !inRange(sale.CreatedAt, from, to) {
			continue
		}
		day := sale.CreatedAt.Add(time.Duration(offsetHours) * time.Hour).Weekday()
		point, ok := byDay[day]
		if !ok {
			point = &domain.WeekdaySalesPoint{Weekday: day.String()}
			byDay[day] = point
		}
		point.RevenueCents += sale.TotalCents
		point.Transactions++
	}

	order := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday}
	points := make([]domain.WeekdaySalesPoint, 0, len(byDay))
	for _, day := range order {
		if point, ok := byDay[day]; ok {
			points = append(points, *point)
		}
	}
	return points, nil
}

func (s *Store) GetProfitByProduct(_ context.Context, from time.Time, to time.Time) ([]domain.ProductProfit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byProduct := make(map[string]*domain.ProductProfit)
	costByProduct := make(map[string]decimal.Decimal)
	for _, sale := range s.salesByID {
		if !inRange(sale.CreatedAt, from, to) {
			continue
		}
		for _, line := range sale.Lines {
			row, ok := byProduct[line.ProductID]
			if !ok {
				row = &domain.ProductProfit{ProductID: line.ProductID, Name: line.ProductName}
				byProduct[line.ProductID] = row
			}
			row.QtySold += int64(line.Qty)
			row.RevenueCents += line.LineTotalCents
			if product, ok := s.products[line.ProductID]; ok {
				costByProduct[line.ProductID] = costByProduct[line.ProductID].
					Add(product.CostPrice.Mul(decimal.NewFromInt(int64(line.Qty))))
			}
		}
	}

	rows := make([]domain.ProductProfit, 0, len(byProduct))
	for id, row := range byProduct {
		row.CostCents = costByProduct[id].Mul(decimal.NewFromInt(100)).Round(0).IntPart()
		row.ProfitCents = row.RevenueCents - row.CostCents
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ProfitCents > rows[j].ProfitCents })
	return rows, nil
}

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]domain.Category, 0, len(s.categoriesByID))
	for _, c := range s.categoriesByID {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	if category.Name == "" {
		return nil, store.ErrInvalidTransaction
	}
	if category.ID == "" {
		category.ID = xid.New("cat")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.categoriesByID {
		if strings.EqualFold(existing.Name, category.Name) {
			return nil, store.ErrInvalidTransaction
		}
	}
	s.categoriesByID[category.ID] = category
	copied := category
	return &copied, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliersByID))
	for _, sup := range s.suppliersByID {
		suppliers = append(suppliers, sup)
	}
	sort.Slice(suppliers, func(i, j int) bool { return suppliers[i].Name < suppliers[j].Name })
	return suppliers, nil
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if supplier.Name == "" {
		return nil, store.ErrInvalidTransaction
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.suppliersByID[supplier.ID] = supplier
	copied := supplier
	return &copied, nil
}

func (s *Store) GetSettings(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]string, len(s.settings))
	for k, v := range s.settings {
		result[k] = v
	}
	return result, nil
}

func (s *Store) SaveSettings(_ context.Context, settings map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range settings {
		s.settings[k] = v
	}
	return nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrInvalidTransaction
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func inRange(at time.Time, from time.Time, to time.Time) bool {
	if !from.IsZero() && at.Before(from) {
		return false
	}
	if !to.IsZero() && !at.Before(to) {
		return false
	}
	return true
}

func cloneSale(src *domain.Sale) *domain.Sale {
	copied := *src
	copied.Lines = append([]domain.SaleLine(nil), src.Lines...)
	return &copied
}
