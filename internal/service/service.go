package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"cafepos/backend/internal/domain"
	"cafepos/backend/internal/report"
	"cafepos/backend/internal/store"
	"cafepos/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo    store.Repository
	reports *report.Engine
}

func New(repo store.Repository, reports *report.Engine) *Service {
	if reports == nil {
		reports = report.NewEngine(nil, 0, 8)
	}

	return &Service{
		repo:    repo,
		reports: reports,
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrInvalidTransaction
	}
	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

// ListProductGroups folds size variants under a shared base name so the
// register can show one tile per drink.
func (s *Service) ListProductGroups(ctx context.Context) ([]domain.ProductGroup, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	byBase := make(map[string][]domain.Product, len(products))
	for _, product := range products {
		base := normalizeBaseName(product.Name)
		byBase[base] = append(byBase[base], product)
	}

	groups := make([]domain.ProductGroup, 0, len(byBase))
	for base, variants := range byBase {
		sort.Slice(variants, func(i, j int) bool { return variants[i].Name < variants[j].Name })
		groups = append(groups, domain.ProductGroup{BaseName: base, Variants: variants})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].BaseName < groups[j].BaseName })
	return groups, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	req.Unit = strings.TrimSpace(req.Unit)
	if req.Unit == "" {
		req.Unit = "pc"
	}

	if req.Name == "" || req.PriceCents < 1 || req.CostPrice.IsNegative() {
		return domain.Product{}, store.ErrInvalidTransaction
	}

	product := domain.Product{
		ID:          xid.New("prod"),
		Name:        req.Name,
		Category:    req.Category,
		PriceCents:  req.PriceCents,
		CostPrice:   req.CostPrice.Round(4),
		Unit:        req.Unit,
		IsComposite: false,
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("name=%s,price=%d", created.Name, created.PriceCents))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrInvalidTransaction
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidTransaction
		}
		updated.Name = name
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 1 {
			return domain.Product{}, store.ErrInvalidTransaction
		}
		updated.PriceCents = *req.PriceCents
	}
	if req.CostPrice != nil {
		if req.CostPrice.IsNegative() {
			return domain.Product{}, store.ErrInvalidTransaction
		}
		// Manual cost entry only sticks on non-composite products; a
		// recipe recompute overwrites it otherwise.
		updated.CostPrice = req.CostPrice.Round(4)
	}
	if req.Unit != nil {
		unit := strings.TrimSpace(*req.Unit)
		if unit == "" {
			return domain.Product{}, store.ErrInvalidTransaction
		}
		updated.Unit = unit
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_update", "product", saved.ID, fmt.Sprintf("name=%s,price=%d", saved.Name, saved.PriceCents))
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrInvalidTransaction
	}

	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "product_delete", "product", id, "")
	return nil
}

func (s *Service) ListRecipeLinks(ctx context.Context, productID string) ([]domain.RecipeLink, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, store.ErrInvalidTransaction
	}
	if _, err := s.repo.GetProductByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.repo.ListRecipeLinks(ctx, productID)
}

func (s *Service) UpsertRecipeLink(ctx context.Context, productID string, req domain.RecipeLinkUpsertRequest) (domain.RecipeLink, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.RecipeLink{}, fmt.Errorf("admin role required")
	}

	productID = strings.TrimSpace(productID)
	req.IngredientID = strings.TrimSpace(req.IngredientID)
	if productID == "" || req.IngredientID == "" || req.QtyPerUnit.IsNegative() {
		return domain.RecipeLink{}, store.ErrInvalidTransaction
	}

	if _, err := s.repo.GetProductByID(ctx, productID); err != nil {
		return domain.RecipeLink{}, err
	}
	if _, err := s.repo.GetIngredientByID(ctx, req.IngredientID); err != nil {
		return domain.RecipeLink{}, err
	}

	saved, err := s.repo.UpsertRecipeLink(ctx, domain.RecipeLink{
		ProductID:    productID,
		IngredientID: req.IngredientID,
		QtyPerUnit:   req.QtyPerUnit,
	})
	if err != nil {
		return domain.RecipeLink{}, err
	}

	if err := s.recomputeProductCost(ctx, productID); err != nil {
		return domain.RecipeLink{}, err
	}

	s.logAudit(ctx, "recipe_upsert", "recipe_link", saved.ID, fmt.Sprintf("product=%s,ingredient=%s,qty=%s", productID, req.IngredientID, req.QtyPerUnit.String()))
	return *saved, nil
}

func (s *Service) RemoveRecipeLink(ctx context.Context, linkID string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}

	linkID = strings.TrimSpace(linkID)
	if linkID == "" {
		return store.ErrInvalidTransaction
	}

	link, err := s.repo.GetRecipeLinkByID(ctx, linkID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteRecipeLink(ctx, linkID); err != nil {
		return err
	}

	if err := s.recomputeProductCost(ctx, link.ProductID); err != nil {
		return err
	}

	s.logAudit(ctx, "recipe_remove", "recipe_link", linkID, fmt.Sprintf("product=%s", link.ProductID))
	return nil
}

// recomputeProductCost re-derives a product's cost from its current recipe.
// A product with no links keeps whatever cost was entered manually and is
// marked non-composite.
func (s *Service) recomputeProductCost(ctx context.Context, productID string) error {
	links, err := s.repo.ListRecipeLinks(ctx, productID)
	if err != nil {
		return err
	}

	if len(links) == 0 {
		product, err := s.repo.GetProductByID(ctx, productID)
		if err != nil {
			return err
		}
		return s.repo.SetProductCost(ctx, productID, product.CostPrice, false)
	}

	ingredientIDs := make([]string, 0, len(links))
	for _, link := range links {
		ingredientIDs = append(ingredientIDs, link.IngredientID)
	}
	ingredients, err := s.repo.GetIngredientsByIDs(ctx, ingredientIDs)
	if err != nil {
		return err
	}

	cost := decimal.Zero
	for _, link := range links {
		ingredient, ok := ingredients[link.IngredientID]
		if !ok {
			return fmt.Errorf("%w: ingredient %s", store.ErrNotFound, link.IngredientID)
		}
		cost = cost.Add(link.QtyPerUnit.Mul(costPerStoredUnit(ingredient)))
	}

	return s.repo.SetProductCost(ctx, productID, cost.Round(4), true)
}

func (s *Service) ListIngredients(ctx context.Context) ([]domain.Ingredient, error) {
	return s.repo.ListIngredients(ctx)
}

func (s *Service) ListLowStockIngredients(ctx context.Context) ([]domain.Ingredient, error) {
	return s.repo.ListLowStockIngredients(ctx)
}

func (s *Service) CreateIngredient(ctx context.Context, req domain.IngredientCreateRequest) (domain.Ingredient, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Ingredient{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	req.SupplierID = strings.TrimSpace(req.SupplierID)
	req.Unit = strings.TrimSpace(req.Unit)

	if req.Name == "" || req.Unit == "" {
		return domain.Ingredient{}, store.ErrInvalidTransaction
	}
	if req.Quantity.IsNegative() || req.CostPerUnit.IsNegative() || req.LowStockThreshold.IsNegative() {
		return domain.Ingredient{}, store.ErrInvalidTransaction
	}

	created, err := s.repo.CreateIngredient(ctx, domain.Ingredient{
		ID:                xid.New("ing"),
		Name:              req.Name,
		Category:          req.Category,
		SupplierID:        req.SupplierID,
		CostPerUnit:       req.CostPerUnit,
		Quantity:          req.Quantity,
		Unit:              req.Unit,
		LowStockThreshold: req.LowStockThreshold,
	})
	if err != nil {
		return domain.Ingredient{}, err
	}

	s.logAudit(ctx, "ingredient_create", "ingredient", created.ID, fmt.Sprintf("name=%s,qty=%s", created.Name, created.Quantity.String()))
	return *created, nil
}

func (s *Service) UpdateIngredient(ctx context.Context, id string, req domain.IngredientUpdateRequest) (domain.Ingredient, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Ingredient{}, fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Ingredient{}, store.ErrInvalidTransaction
	}

	existing, err := s.repo.GetIngredientByID(ctx, id)
	if err != nil {
		return domain.Ingredient{}, err
	}

	updated := *existing
	costChanged := false
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Ingredient{}, store.ErrInvalidTransaction
		}
		updated.Name = name
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.SupplierID != nil {
		updated.SupplierID = strings.TrimSpace(*req.SupplierID)
	}
	if req.CostPerUnit != nil {
		if req.CostPerUnit.IsNegative() {
			return domain.Ingredient{}, store.ErrInvalidTransaction
		}
		costChanged = !updated.CostPerUnit.Equal(*req.CostPerUnit)
		updated.CostPerUnit = *req.CostPerUnit
	}
	if req.Quantity != nil {
		if req.Quantity.IsNegative() {
			return domain.Ingredient{}, store.ErrInvalidTransaction
		}
		updated.Quantity = *req.Quantity
	}
	if req.Unit != nil {
		unit := strings.TrimSpace(*req.Unit)
		if unit == "" {
			return domain.Ingredient{}, store.ErrInvalidTransaction
		}
		updated.Unit = unit
	}
	if req.LowStockThreshold != nil {
		if req.LowStockThreshold.IsNegative() {
			return domain.Ingredient{}, store.ErrInvalidTransaction
		}
		updated.LowStockThreshold = *req.LowStockThreshold
	}

	saved, err := s.repo.UpdateIngredient(ctx, updated)
	if err != nil {
		return domain.Ingredient{}, err
	}

	if costChanged {
		if err := s.recomputeDependentProductCosts(ctx, saved.ID); err != nil {
			log.Printf("[service] WARN: failed to recompute costs after ingredient %s update: %v", saved.ID, err)
		}
	}

	s.logAudit(ctx, "ingredient_update", "ingredient", saved.ID, fmt.Sprintf("name=%s,qty=%s", saved.Name, saved.Quantity.String()))
	return *saved, nil
}

func (s *Service) DeleteIngredient(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrInvalidTransaction
	}

	if err := s.repo.DeleteIngredient(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "ingredient_delete", "ingredient", id, "")
	return nil
}

// recomputeDependentProductCosts refreshes every composite product whose
// recipe includes the given ingredient.
func (s *Service) recomputeDependentProductCosts(ctx context.Context, ingredientID string) error {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(products))
	for _, product := range products {
		ids = append(ids, product.ID)
	}

	linksByProduct, err := s.repo.GetRecipeLinksForProducts(ctx, ids)
	if err != nil {
		return err
	}

	for productID, links := range linksByProduct {
		for _, link := range links {
			if link.IngredientID != ingredientID {
				continue
			}
			if err := s.recomputeProductCost(ctx, productID); err != nil {
				return err
			}
			break
		}
	}
	return nil
}

// RecordSale is the posting path. Demand for the whole cart is aggregated
// up front so two lines sharing an ingredient are checked against their
// combined draw, then the store validates and deducts atomically.
func (s *Service) RecordSale(ctx context.Context, req domain.RecordSaleRequest) (domain.RecordSaleResponse, error) {
	normalized := normalizeCartLines(req.Items)
	if len(normalized) == 0 {
		return domain.RecordSaleResponse{}, fmt.Errorf("%w: cart is empty", store.ErrInvalidTransaction)
	}

	productIDs := make([]string, 0, len(normalized))
	for _, line := range normalized {
		productIDs = append(productIDs, line.ProductID)
	}

	products, err := s.repo.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return domain.RecordSaleResponse{}, err
	}

	lines := make([]domain.SaleLine, 0, len(normalized))
	total := int64(0)
	for _, line := range normalized {
		product, exists := products[line.ProductID]
		if !exists {
			return domain.RecordSaleResponse{}, fmt.Errorf("%w: product %s", store.ErrNotFound, line.ProductID)
		}
		lineTotal := int64(line.Qty) * product.PriceCents
		lines = append(lines, domain.SaleLine{
			ProductID:      product.ID,
			ProductName:    product.Name,
			Qty:            line.Qty,
			UnitPriceCents: product.PriceCents,
			LineTotalCents: lineTotal,
		})
		total += lineTotal
	}

	linksByProduct, err := s.repo.GetRecipeLinksForProducts(ctx, productIDs)
	if err != nil {
		return domain.RecordSaleResponse{}, err
	}
	demand := aggregateDemand(normalized, linksByProduct)

	sale := domain.Sale{
		ID:            xid.New("sale"),
		TotalCents:    total,
		PaymentMethod: normalizePaymentMethod(req.PaymentMethod),
		CreatedAt:     time.Now().UTC(),
		Lines:         lines,
	}

	created, err := s.repo.CreateSale(ctx, sale, demand)
	if err != nil {
		return domain.RecordSaleResponse{}, err
	}

	s.logAudit(ctx, "sale_record", "sale", created.ID, fmt.Sprintf("total=%d,payment=%s,lines=%d", created.TotalCents, created.PaymentMethod, len(created.Lines)))

	return domain.RecordSaleResponse{
		SaleID:        created.ID,
		TotalCents:    created.TotalCents,
		PaymentMethod: created.PaymentMethod,
		CreatedAt:     created.CreatedAt.Format(time.RFC3339),
		Message:       "sale recorded",
	}, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	id = strings.TrimSpace(strings.TrimPrefix(id, "#"))
	if id == "" {
		return domain.Sale{}, store.ErrInvalidTransaction
	}
	sale, err := s.repo.GetSaleByID(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, preset string, start string, end string, search string, payment string, limit int) ([]domain.Sale, error) {
	dateRange, err := s.reports.ResolveRange(preset, start, end, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidTransaction, err)
	}
	if limit < 1 || limit > 500 {
		limit = 200
	}

	return s.repo.ListSales(ctx, domain.SaleFilter{
		From:    dateRange.From,
		To:      dateRange.To,
		Search:  strings.TrimSpace(search),
		Payment: strings.ToLower(strings.TrimSpace(payment)),
		Limit:   limit,
	})
}

func (s *Service) ExportSales(ctx context.Context, preset string, start string, end string, search string, payment string) (*excelize.File, error) {
	dateRange, err := s.reports.ResolveRange(preset, start, end, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidTransaction, err)
	}

	// No listing cap here: the workbook must carry every sale in the range
	// or its grand total would understate the period.
	sales, err := s.repo.ListSales(ctx, domain.SaleFilter{
		From:    dateRange.From,
		To:      dateRange.To,
		Search:  strings.TrimSpace(search),
		Payment: strings.ToLower(strings.TrimSpace(payment)),
	})
	if err != nil {
		return nil, err
	}
	return s.reports.BuildSalesWorkbook(sales)
}

func (s *Service) SummaryReport(ctx context.Context, preset string, start string, end string) (domain.ReportSummary, error) {
	dateRange, err := s.reports.ResolveRange(preset, start, end, time.Now().UTC())
	if err != nil {
		return domain.ReportSummary{}, fmt.Errorf("%w: %v", store.ErrInvalidTransaction, err)
	}

	revenue, transactions, err := s.repo.GetSalesTotals(ctx, dateRange.From, dateRange.To)
	if err != nil {
		return domain.ReportSummary{}, err
	}
	cost, err := s.repo.GetSalesCost(ctx, dateRange.From, dateRange.To)
	if err != nil {
		return domain.ReportSummary{}, err
	}

	summary := domain.ReportSummary{
		Label:          dateRange.Label,
		RevenueCents:   revenue,
		Transactions:   transactions,
		TotalCostCents: cost,
		ProfitCents:    revenue - cost,
	}

	top, err := s.repo.GetTopProduct(ctx, dateRange.From, dateRange.To)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.ReportSummary{}, err
	}
	if top != nil {
		summary.TopProduct = top.Name
	}

	return summary, nil
}

func (s *Service) HourlyReport(ctx context.Context, preset string, start string, end string) ([]domain.HourlySalesPoint, error) {
	dateRange, err := s.reports.ResolveRange(preset, start, end, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidTransaction, err)
	}
	return s.repo.GetSalesByHour(ctx, dateRange.From, dateRange.To, s.reports.OffsetHours())
}

func (s *Service) WeekdayReport(ctx context.Context, preset string, start string, end string) ([]domain.WeekdaySalesPoint, error) {
	dateRange, err := s.reports.ResolveRange(preset, start, end, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidTransaction, err)
	}
	return s.repo.GetSalesByWeekday(ctx, dateRange.From, dateRange.To, s.reports.OffsetHours())
}

func (s *Service) ProfitReport(ctx context.Context, preset string, start string, end string) ([]domain.ProductProfit, error) {
	dateRange, err := s.reports.ResolveRange(preset, start, end, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidTransaction, err)
	}
	return s.repo.GetProfitByProduct(ctx, dateRange.From, dateRange.To)
}

func (s *Service) Forecast(ctx context.Context) (domain.SalesForecast, error) {
	now := time.Now().UTC()

	last30 := s.reports.TrailingRange(30, now)
	revenue30, _, err := s.repo.GetSalesTotals(ctx, last30.From, last30.To)
	if err != nil {
		return domain.SalesForecast{}, err
	}

	last7 := s.reports.TrailingRange(7, now)
	revenue7, _, err := s.repo.GetSalesTotals(ctx, last7.From, last7.To)
	if err != nil {
		return domain.SalesForecast{}, err
	}

	return s.reports.Forecast(revenue30, revenue7), nil
}

func (s *Service) Dashboard(ctx context.Context) (domain.DashboardSummary, error) {
	now := time.Now().UTC()
	cacheKey := s.reports.DashboardCacheKey(now)
	if cached, ok := s.reports.CachedDashboard(ctx, cacheKey); ok {
		return *cached, nil
	}

	today, err := s.reports.ResolveRange("today", "", "", now)
	if err != nil {
		return domain.DashboardSummary{}, err
	}

	revenue, transactions, err := s.repo.GetSalesTotals(ctx, today.From, today.To)
	if err != nil {
		return domain.DashboardSummary{}, err
	}

	summary := domain.DashboardSummary{
		Date:         now.In(s.reports.Location()).Format("2006-01-02"),
		RevenueCents: revenue,
		Transactions: transactions,
	}

	top, err := s.repo.GetTopProduct(ctx, today.From, today.To)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.DashboardSummary{}, err
	}
	if top != nil {
		summary.TopProduct = top.Name
	}

	lowStock, err := s.repo.ListLowStockIngredients(ctx)
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	summary.LowStockCount = len(lowStock)

	s.reports.SaveDashboard(ctx, cacheKey, &summary)
	return summary, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryCreateRequest) (domain.Category, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Category{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Category{}, store.ErrInvalidTransaction
	}

	created, err := s.repo.CreateCategory(ctx, domain.Category{ID: xid.New("cat"), Name: req.Name})
	if err != nil {
		return domain.Category{}, err
	}
	s.logAudit(ctx, "category_create", "category", created.ID, fmt.Sprintf("name=%s", created.Name))
	return *created, nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Supplier{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.ContactInfo = strings.TrimSpace(req.ContactInfo)
	if req.Name == "" {
		return domain.Supplier{}, store.ErrInvalidTransaction
	}

	created, err := s.repo.CreateSupplier(ctx, domain.Supplier{
		ID:          xid.New("sup"),
		Name:        req.Name,
		ContactInfo: req.ContactInfo,
	})
	if err != nil {
		return domain.Supplier{}, err
	}
	s.logAudit(ctx, "supplier_create", "supplier", created.ID, fmt.Sprintf("name=%s", created.Name))
	return *created, nil
}

func (s *Service) GetSettings(ctx context.Context) (map[string]string, error) {
	stored, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	settings := defaultSettings()
	for key, value := range stored {
		settings[key] = value
	}
	return settings, nil
}

func (s *Service) SaveSettings(ctx context.Context, updates map[string]string) (map[string]string, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("admin role required")
	}

	cleaned := make(map[string]string, len(updates))
	for key, value := range updates {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		cleaned[key] = strings.TrimSpace(value)
	}
	if len(cleaned) == 0 {
		return nil, store.ErrInvalidTransaction
	}

	if err := s.repo.SaveSettings(ctx, cleaned); err != nil {
		return nil, err
	}

	s.logAudit(ctx, "settings_save", "settings", "app", fmt.Sprintf("keys=%d", len(cleaned)))
	return s.GetSettings(ctx)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}
	log.Printf("[audit] action=%s entity=%s/%s actor=%s detail=%s", action, entityType, entityID, actor.Username, detail)
}

func normalizeCartLines(items []domain.CartLine) []domain.CartLine {
	agg := make(map[string]int, len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		id := strings.TrimSpace(item.ProductID)
		if id == "" || item.Qty < 1 {
			continue
		}
		if _, seen := agg[id]; !seen {
			order = append(order, id)
		}
		agg[id] += item.Qty
	}

	normalized := make([]domain.CartLine, 0, len(agg))
	for _, id := range order {
		normalized = append(normalized, domain.CartLine{ProductID: id, Qty: agg[id]})
	}
	return normalized
}

// aggregateDemand sums recipe draw across every cart line before any stock
// check happens. Splitting an order over two products that share an
// ingredient cannot dodge validation this way.
func aggregateDemand(lines []domain.CartLine, linksByProduct map[string][]domain.RecipeLink) []domain.IngredientDemand {
	totals := make(map[string]decimal.Decimal)
	for _, line := range lines {
		qty := decimal.NewFromInt(int64(line.Qty))
		for _, link := range linksByProduct[line.ProductID] {
			totals[link.IngredientID] = totals[link.IngredientID].Add(link.QtyPerUnit.Mul(qty))
		}
	}

	demand := make([]domain.IngredientDemand, 0, len(totals))
	for id, qty := range totals {
		if qty.IsZero() {
			continue
		}
		demand = append(demand, domain.IngredientDemand{IngredientID: id, Qty: qty})
	}
	sort.Slice(demand, func(i, j int) bool { return demand[i].IngredientID < demand[j].IngredientID })
	return demand
}

func normalizePaymentMethod(method string) string {
	method = strings.TrimSpace(method)
	if method == "" {
		return domain.PaymentCash
	}

	lower := strings.ToLower(method)
	if strings.Contains(lower, "gcash") || strings.Contains(lower, "maya") || strings.Contains(lower, "digital") {
		return domain.PaymentDigital
	}
	return method
}

// costPerStoredUnit converts an ingredient's cost into cost per stored unit.
// Stock and cost currently share the same unit so the divisor is one; this
// is the hook for pack-size conversion later.
func costPerStoredUnit(ingredient domain.Ingredient) decimal.Decimal {
	return ingredient.CostPerUnit.Div(decimal.NewFromInt(1)).Round(6)
}

var sizeSuffixPattern = regexp.MustCompile(`(?i)\s*\(?\b(m|l|medium|large)\b\)?\s*$`)

func normalizeBaseName(name string) string {
	base := sizeSuffixPattern.ReplaceAllString(strings.TrimSpace(name), "")
	if base == "" {
		return strings.TrimSpace(name)
	}
	return base
}

func defaultSettings() map[string]string {
	return map[string]string{
		"ShopName":       "91 Cafe",
		"ShopAddress":    "",
		"ContactInfo":    "",
		"CurrencySymbol": "₱",
		"TaxRate":        "0.00",
	}
}
